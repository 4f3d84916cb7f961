package scheduling

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Frequency maps a display label, plus any legacy spellings, to weekdays.
type Frequency struct {
	Label    string         `json:"label"`
	Aliases  []string       `json:"aliases,omitempty"`
	Weekdays []time.Weekday `json:"weekdays"`
}

// ProgramFrequency is one frequency a program can be taught at.
type ProgramFrequency struct {
	Frequency string `json:"frequency"`
	Sessions  int    `json:"sessions"`
	Duration  string `json:"duration"`
}

// Program is a course with its valid cycles and per-frequency session counts.
type Program struct {
	Name        string             `json:"name"`
	Cycles      []int              `json:"cycles"`
	Frequencies []ProgramFrequency `json:"frequencies"`
}

// MaxCycle is the highest cycle the program offers.
func (p Program) MaxCycle() int {
	highest := 0
	for _, c := range p.Cycles {
		if c > highest {
			highest = c
		}
	}
	return highest
}

const (
	FrequencyMonWedFri = "Lun, Mié y Vie"
	FrequencyTueThu    = "Mar y Jue"
	FrequencySatSun    = "Sáb y Dom"
	FrequencyMonWed    = "Lun y Mié"
)

// DefaultFrequencies returns the built-in frequency labels.
func DefaultFrequencies() []Frequency {
	return []Frequency{
		{Label: FrequencyMonWedFri, Aliases: []string{"Lun-Mié-Vie (3 veces/semana)"}, Weekdays: []time.Weekday{time.Monday, time.Wednesday, time.Friday}},
		{Label: FrequencyTueThu, Aliases: []string{"Martes y Jueves (2 veces/semana)"}, Weekdays: []time.Weekday{time.Tuesday, time.Thursday}},
		{Label: FrequencySatSun, Aliases: []string{"Sábados y Domingos (2 veces/semana)"}, Weekdays: []time.Weekday{time.Saturday, time.Sunday}},
		{Label: FrequencyMonWed, Aliases: []string{"Lunes y Miércoles (2 veces/semana)"}, Weekdays: []time.Weekday{time.Monday, time.Wednesday}},
	}
}

func cycleRange(from, to int) []int {
	out := make([]int, 0, to-from+1)
	for c := from; c <= to; c++ {
		out = append(out, c)
	}
	return out
}

// DefaultPrograms returns the built-in program catalog.
func DefaultPrograms() []Program {
	return []Program{
		{
			Name:   "Chino General",
			Cycles: cycleRange(1, 12),
			Frequencies: []ProgramFrequency{
				{Frequency: FrequencyMonWedFri, Sessions: 36, Duration: "1h 45min"},
				{Frequency: FrequencyTueThu, Sessions: 24, Duration: "2h 40min"},
				{Frequency: FrequencySatSun, Sessions: 24, Duration: "2h 40min"},
			},
		},
		{
			Name:   "Chino Niños",
			Cycles: cycleRange(1, 6),
			Frequencies: []ProgramFrequency{
				{Frequency: FrequencyMonWedFri, Sessions: 32, Duration: "1h 30min"},
				{Frequency: FrequencyTueThu, Sessions: 24, Duration: "1h 30min"},
				{Frequency: FrequencySatSun, Sessions: 24, Duration: "1h 30min"},
			},
		},
		{
			Name:   "Importaciones",
			Cycles: []int{1},
			Frequencies: []ProgramFrequency{
				{Frequency: FrequencyMonWed, Sessions: 8, Duration: "2h"},
				{Frequency: FrequencyTueThu, Sessions: 8, Duration: "2h"},
				{Frequency: FrequencySatSun, Sessions: 8, Duration: "2h"},
			},
		},
	}
}

// Catalog resolves programs and frequency labels.
type Catalog struct {
	programs  []Program
	byName    map[string]Program
	weekdays  map[string]Weekdays
	canonical map[string]string
}

// NewCatalog validates and indexes programs and frequencies. Empty inputs fall
// back to the built-in catalog.
func NewCatalog(programs []Program, frequencies []Frequency) (*Catalog, error) {
	if len(programs) == 0 {
		programs = DefaultPrograms()
	}
	if len(frequencies) == 0 {
		frequencies = DefaultFrequencies()
	}

	c := &Catalog{
		byName:    make(map[string]Program, len(programs)),
		weekdays:  make(map[string]Weekdays),
		canonical: make(map[string]string),
	}

	for _, f := range frequencies {
		if strings.TrimSpace(f.Label) == "" || len(f.Weekdays) == 0 {
			return nil, fmt.Errorf("frequency %q needs a label and weekdays", f.Label)
		}
		days := NewWeekdays(f.Weekdays...)
		for _, label := range append([]string{f.Label}, f.Aliases...) {
			key := normalizeLabel(label)
			if _, dup := c.weekdays[key]; dup {
				return nil, fmt.Errorf("frequency label %q declared twice", label)
			}
			c.weekdays[key] = days
			c.canonical[key] = f.Label
		}
	}

	for _, p := range programs {
		if p.Name == "" || len(p.Cycles) == 0 {
			return nil, fmt.Errorf("program %q needs a name and cycles", p.Name)
		}
		if _, dup := c.byName[p.Name]; dup {
			return nil, fmt.Errorf("program %q declared twice", p.Name)
		}
		for _, pf := range p.Frequencies {
			if _, ok := c.weekdays[normalizeLabel(pf.Frequency)]; !ok {
				return nil, fmt.Errorf("program %q: %w %q", p.Name, ErrUnknownFrequency, pf.Frequency)
			}
			if pf.Sessions <= 0 {
				return nil, fmt.Errorf("program %q: frequency %q needs a positive session count", p.Name, pf.Frequency)
			}
		}
		c.byName[p.Name] = p
		c.programs = append(c.programs, p)
	}
	sort.SliceStable(c.programs, func(i, j int) bool { return c.programs[i].Name < c.programs[j].Name })
	return c, nil
}

func normalizeLabel(label string) string {
	return strings.ToLower(strings.TrimSpace(label))
}

// Programs lists the catalog sorted by name.
func (c *Catalog) Programs() []Program {
	out := make([]Program, len(c.programs))
	copy(out, c.programs)
	return out
}

// Program looks a program up by exact name.
func (c *Catalog) Program(name string) (Program, error) {
	p, ok := c.byName[name]
	if !ok {
		return Program{}, fmt.Errorf("%w %q", ErrUnknownProgram, name)
	}
	return p, nil
}

// Weekdays resolves a frequency label, including legacy spellings.
func (c *Catalog) Weekdays(label string) (Weekdays, error) {
	days, ok := c.weekdays[normalizeLabel(label)]
	if !ok {
		return 0, fmt.Errorf("%w %q", ErrUnknownFrequency, label)
	}
	return days, nil
}

// CanonicalFrequency maps a label or alias to its display label.
func (c *Catalog) CanonicalFrequency(label string) (string, error) {
	canonical, ok := c.canonical[normalizeLabel(label)]
	if !ok {
		return "", fmt.Errorf("%w %q", ErrUnknownFrequency, label)
	}
	return canonical, nil
}

// SessionCount returns how many sessions a cycle has for program at frequency.
func (c *Catalog) SessionCount(program, frequency string) (int, error) {
	p, err := c.Program(program)
	if err != nil {
		return 0, err
	}
	canonical, err := c.CanonicalFrequency(frequency)
	if err != nil {
		return 0, err
	}
	for _, pf := range p.Frequencies {
		if normalizeLabel(pf.Frequency) == normalizeLabel(canonical) {
			return pf.Sessions, nil
		}
	}
	return 0, fmt.Errorf("%w %q for program %q", ErrUnknownFrequency, frequency, program)
}

// MaxCycle returns the highest cycle of program.
func (c *Catalog) MaxCycle(program string) (int, error) {
	p, err := c.Program(program)
	if err != nil {
		return 0, err
	}
	return p.MaxCycle(), nil
}

// ValidateCycle checks the cycle is one the program offers.
func (c *Catalog) ValidateCycle(program string, cycle int) error {
	p, err := c.Program(program)
	if err != nil {
		return err
	}
	for _, allowed := range p.Cycles {
		if allowed == cycle {
			return nil
		}
	}
	return fmt.Errorf("%w %d for program %q (max %d)", ErrInvalidCycle, cycle, program, p.MaxCycle())
}

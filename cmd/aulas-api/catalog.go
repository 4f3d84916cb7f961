package main

import (
	"time"

	"github.com/noah-isme/sfd-aulas-api/internal/scheduling"
	"github.com/noah-isme/sfd-aulas-api/pkg/config"
)

// catalogFromConfig builds the program catalog; an empty programs file keeps
// the built-in catalog.
func catalogFromConfig(cfg config.CatalogConfig) (*scheduling.Catalog, error) {
	var frequencies []scheduling.Frequency
	for _, f := range cfg.Frequencies {
		days := make([]time.Weekday, 0, len(f.Weekdays))
		for _, d := range f.Weekdays {
			days = append(days, time.Weekday(d))
		}
		frequencies = append(frequencies, scheduling.Frequency{Label: f.Label, Aliases: f.Aliases, Weekdays: days})
	}

	var programs []scheduling.Program
	for _, p := range cfg.Programs {
		program := scheduling.Program{Name: p.Name, Cycles: p.Cycles}
		for _, pf := range p.Frequencies {
			program.Frequencies = append(program.Frequencies, scheduling.ProgramFrequency{
				Frequency: pf.Frequency,
				Sessions:  pf.Sessions,
				Duration:  pf.Duration,
			})
		}
		programs = append(programs, program)
	}
	return scheduling.NewCatalog(programs, frequencies)
}

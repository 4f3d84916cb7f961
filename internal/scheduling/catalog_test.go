package scheduling

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sfd-aulas-api/internal/models"
)

func TestDefaultCatalog(t *testing.T) {
	cat, err := NewCatalog(nil, nil)
	require.NoError(t, err)

	n, err := cat.SessionCount("Chino General", "Mar y Jue")
	require.NoError(t, err)
	assert.Equal(t, 24, n)

	n, err = cat.SessionCount("Chino General", "Lun-Mié-Vie (3 veces/semana)")
	require.NoError(t, err)
	assert.Equal(t, 36, n)

	n, err = cat.SessionCount("Chino Niños", "Lun, Mié y Vie")
	require.NoError(t, err)
	assert.Equal(t, 32, n)

	_, err = cat.SessionCount("Importaciones", "Lun, Mié y Vie")
	assert.ErrorIs(t, err, ErrUnknownFrequency)

	maxCycle, err := cat.MaxCycle("Chino Niños")
	require.NoError(t, err)
	assert.Equal(t, 6, maxCycle)

	assert.NoError(t, cat.ValidateCycle("Chino General", 12))
	assert.ErrorIs(t, cat.ValidateCycle("Chino General", 13), ErrInvalidCycle)
	assert.ErrorIs(t, cat.ValidateCycle("Importaciones", 2), ErrInvalidCycle)
	assert.ErrorIs(t, cat.ValidateCycle("Alemán", 1), ErrUnknownProgram)

	days, err := cat.Weekdays("sáb y dom")
	require.NoError(t, err)
	assert.Equal(t, []time.Weekday{time.Sunday, time.Saturday}, days.Days())

	label, err := cat.CanonicalFrequency("Martes y Jueves (2 veces/semana)")
	require.NoError(t, err)
	assert.Equal(t, FrequencyTueThu, label)

	_, err = cat.Weekdays("Diario")
	assert.ErrorIs(t, err, ErrUnknownFrequency)

	names := make([]string, 0)
	for _, p := range cat.Programs() {
		names = append(names, p.Name)
	}
	assert.Equal(t, []string{"Chino General", "Chino Niños", "Importaciones"}, names)
}

func TestNewCatalogRejectsInconsistentData(t *testing.T) {
	_, err := NewCatalog([]Program{{Name: "Inglés", Cycles: []int{1}, Frequencies: []ProgramFrequency{{Frequency: "Diario", Sessions: 10}}}}, nil)
	assert.ErrorIs(t, err, ErrUnknownFrequency)

	_, err = NewCatalog([]Program{{Name: "Inglés", Cycles: []int{1}, Frequencies: []ProgramFrequency{{Frequency: FrequencyTueThu}}}}, nil)
	assert.Error(t, err)

	_, err = NewCatalog(nil, []Frequency{{Label: "A", Weekdays: []time.Weekday{time.Monday}}, {Label: "a", Weekdays: []time.Weekday{time.Tuesday}}})
	assert.Error(t, err)
}

func TestBuildArchive(t *testing.T) {
	gen, clk := newTestGenerator(t)
	aula, sessions := tueThuAula(t, gen, clk)
	aula.Code = "CG-03"
	aula.Program = "Chino General"
	aula.Cycle = 3
	at := clk.MakeDate(2025, time.December, 1, 9, 0)

	reversed := []models.Session{sessions[4], sessions[3], sessions[2], sessions[1], sessions[0]}
	archive, err := BuildArchive("arch-1", aula, reversed, models.CycleAdvanceReason(3, 4), at)
	require.NoError(t, err)

	assert.Equal(t, "cycle advance 3→4", archive.Reason)
	assert.Equal(t, "aula-1", archive.AulaID)
	assert.Equal(t, 5, archive.SessionCount)
	assert.True(t, archive.ArchivedAt.Equal(at))

	var snap []models.Session
	require.NoError(t, json.Unmarshal(archive.Sessions, &snap))
	require.Len(t, snap, 5)
	assert.Equal(t, 1, snap[0].Number)
	assert.Equal(t, 5, snap[4].Number)

	var aulaSnap models.Aula
	require.NoError(t, json.Unmarshal(archive.Aula, &aulaSnap))
	assert.Equal(t, "CG-03", aulaSnap.Code)
}

func TestSuggestNextCycleStart(t *testing.T) {
	gen, clk := newTestGenerator(t)
	aula, sessions := tueThuAula(t, gen, clk)

	assert.Equal(t, "2025-11-20", clk.FormatDate(SuggestNextCycleStart(clk, aula, sessions)))
	assert.Equal(t, "2025-11-20", clk.FormatDate(SuggestNextCycleStart(clk, aula, nil)))

	fixed := clk.WithNow(func() time.Time { return time.Date(2026, 1, 2, 15, 0, 0, 0, time.UTC) })
	assert.Equal(t, "2026-01-02", fixed.FormatDate(SuggestNextCycleStart(fixed, models.Aula{}, nil)))
}

func TestWeekdaysSet(t *testing.T) {
	w := NewWeekdays(time.Monday, time.Friday)
	assert.True(t, w.Contains(time.Monday))
	assert.False(t, w.Contains(time.Tuesday))
	assert.False(t, w.Empty())
	assert.True(t, Weekdays(0).Empty())
}

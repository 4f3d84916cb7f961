package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// inTempDir runs the test from an empty directory holding a blank .env file.
func inTempDir(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), nil, 0o600))
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

func TestLoadDefaults(t *testing.T) {
	inTempDir(t)
	t.Setenv("SCHEDULING_HOLIDAYS", "")
	t.Setenv("CACHE_TTL", "not-a-duration")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, -5, cfg.Scheduling.UTCOffsetHours)
	assert.Equal(t, 365, cfg.Scheduling.HorizonDays)
	assert.Equal(t, DefaultHolidays, cfg.Scheduling.Holidays)
	assert.Equal(t, 5*time.Minute, cfg.Cache.TTL)
	assert.Equal(t, "aulas:changes", cfg.ChangeFeed.Channel)
	assert.Equal(t, 2, cfg.StateRefresh.Workers)
}

func TestLoadOverrides(t *testing.T) {
	inTempDir(t)
	t.Setenv("SCHEDULING_HOLIDAYS", " 2027-01-01 ,2027-05-01,")
	t.Setenv("SCHEDULING_HORIZON_DAYS", "90")
	t.Setenv("STATE_REFRESH_INTERVAL", "30s")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, https://b.example")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"2027-01-01", "2027-05-01"}, cfg.Scheduling.Holidays)
	assert.Equal(t, 90, cfg.Scheduling.HorizonDays)
	assert.Equal(t, 30*time.Second, cfg.StateRefresh.Interval)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORS.AllowedOrigins)
}

func TestLoadCatalog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "programs.yaml")
	content := `
frequencies:
  - label: "Lun y Mié"
    weekdays: [1, 3]
programs:
  - name: "Inglés"
    cycles: [1, 2, 3]
    frequencies:
      - frequency: "Lun y Mié"
        sessions: 16
        duration: "2h"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	catalog, err := LoadCatalog(path)
	require.NoError(t, err)
	require.Len(t, catalog.Programs, 1)
	assert.Equal(t, "Inglés", catalog.Programs[0].Name)
	assert.Equal(t, []int{1, 2, 3}, catalog.Programs[0].Cycles)
	assert.Equal(t, 16, catalog.Programs[0].Frequencies[0].Sessions)
	assert.Equal(t, []int{1, 3}, catalog.Frequencies[0].Weekdays)

	_, err = LoadCatalog(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

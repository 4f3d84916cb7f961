package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sfd-aulas-api/internal/models"
	"github.com/noah-isme/sfd-aulas-api/pkg/clock"
	appErrors "github.com/noah-isme/sfd-aulas-api/pkg/errors"
	"github.com/noah-isme/sfd-aulas-api/pkg/events"
)

func newStateFixture(t *testing.T, now time.Time, mutate func(*models.Aula, *[]models.Session)) (*aulaFixture, *StateService) {
	t.Helper()
	clk := clock.New(clock.DefaultOffsetHours)
	aula, sessions := tueThuAula(clk, 4, 6, 11, 13, 18)
	if mutate != nil {
		mutate(&aula, &sessions)
	}
	f := newAulaFixture(t, now, []models.Aula{aula}, sessions)
	f.deps.Metrics = NewMetricsService()
	return f, NewStateService(f.deps, nil, StateRefreshConfig{Interval: time.Hour, Workers: 1})
}

func TestStateServiceRefreshTransitions(t *testing.T) {
	f, svc := newStateFixture(t, at(2025, time.November, 5, 10, 0), nil)

	result, err := svc.Refresh(context.Background(), "aula-1")
	require.NoError(t, err)
	assert.True(t, result.Changed)
	assert.Equal(t, models.AulaStateUpcoming, result.Previous)
	assert.Equal(t, models.AulaStateInProgress, result.Current)
	assert.Equal(t, models.AulaStateInProgress, f.aulas.get("aula-1").State)
	assert.Equal(t, 1, f.aulas.get("aula-1").Revision)
	assert.Equal(t, []events.ChangeKind{events.KindStateChanged}, f.publisher.kinds())

	again, err := svc.Refresh(context.Background(), "aula-1")
	require.NoError(t, err)
	assert.False(t, again.Changed)
	assert.Empty(t, again.Skipped)
	assert.Equal(t, 1, f.aulas.stateWrites)
}

func TestStateServiceRefreshFinishesWhenAllSessionsDone(t *testing.T) {
	f, svc := newStateFixture(t, at(2025, time.November, 18, 22, 0), func(a *models.Aula, _ *[]models.Session) {
		a.State = models.AulaStateInProgress
	})

	result, err := svc.Refresh(context.Background(), "aula-1")
	require.NoError(t, err)
	assert.True(t, result.Changed)
	assert.Equal(t, models.AulaStateFinished, f.aulas.get("aula-1").State)
}

func TestStateServiceRefreshReplacesManualState(t *testing.T) {
	f, svc := newStateFixture(t, at(2026, time.March, 1, 10, 0), func(a *models.Aula, _ *[]models.Session) {
		a.State = models.AulaState("Suspendida")
	})

	result, err := svc.Refresh(context.Background(), "aula-1")
	require.NoError(t, err)
	assert.True(t, result.Changed)
	assert.Empty(t, result.Skipped)
	assert.Equal(t, models.AulaState("Suspendida"), result.Previous)
	assert.Equal(t, models.AulaStateFinished, result.Current)
	assert.Equal(t, models.AulaStateFinished, f.aulas.get("aula-1").State)
}

func TestStateServiceRefreshSkips(t *testing.T) {
	t.Run("manual state kept without schedule data", func(t *testing.T) {
		f, svc := newStateFixture(t, at(2025, time.November, 5, 10, 0), func(a *models.Aula, sessions *[]models.Session) {
			a.State = models.AulaState("Suspendida")
			a.EndDate = nil
			*sessions = []models.Session{{ID: "s-x", AulaID: "aula-other", Number: 1}}
		})

		result, err := svc.Refresh(context.Background(), "aula-1")
		require.NoError(t, err)
		assert.False(t, result.Changed)
		assert.Equal(t, "insufficient schedule data", result.Skipped)
		assert.Equal(t, models.AulaState("Suspendida"), f.aulas.get("aula-1").State)
		assert.Zero(t, f.aulas.stateWrites)
	})

	t.Run("missing schedule", func(t *testing.T) {
		f, svc := newStateFixture(t, at(2025, time.November, 5, 10, 0), func(a *models.Aula, sessions *[]models.Session) {
			a.EndDate = nil
			*sessions = []models.Session{{ID: "s-x", AulaID: "aula-other", Number: 1}}
		})

		result, err := svc.Refresh(context.Background(), "aula-1")
		require.NoError(t, err)
		assert.False(t, result.Changed)
		assert.Equal(t, "insufficient schedule data", result.Skipped)
		assert.Zero(t, f.aulas.stateWrites)
	})
}

func TestStateServiceRefreshUnknownAula(t *testing.T) {
	_, svc := newStateFixture(t, at(2025, time.November, 5, 10, 0), nil)

	_, err := svc.Refresh(context.Background(), "missing")
	requireAppError(t, err, appErrors.ErrNotFound)
}

func TestStateServiceEnqueueRequiresStart(t *testing.T) {
	_, svc := newStateFixture(t, at(2025, time.November, 5, 10, 0), nil)

	_, err := svc.RefreshAll(context.Background())
	assert.Error(t, err)
}

func TestStateServiceStartSweepsAndListens(t *testing.T) {
	clk := clock.New(clock.DefaultOffsetHours)
	aula, sessions := tueThuAula(clk, 4, 6, 11, 13, 18)
	f := newAulaFixture(t, at(2025, time.November, 5, 10, 0), []models.Aula{aula}, sessions)
	feed := events.NewLocalFeed()
	f.deps.Publisher = feed
	svc := NewStateService(f.deps, feed, StateRefreshConfig{Interval: time.Hour, Workers: 1})

	require.NoError(t, svc.Start(context.Background()))
	t.Cleanup(svc.Stop)

	assert.Eventually(t, func() bool {
		stored := f.aulas.get("aula-1")
		return stored != nil && stored.State == models.AulaStateInProgress
	}, 2*time.Second, 10*time.Millisecond)

	f.aulas.mu.Lock()
	f.aulas.items["aula-1"].State = models.AulaStateUpcoming
	f.aulas.mu.Unlock()
	require.NoError(t, feed.Publish(context.Background(), events.ChangeEvent{Kind: events.KindAulaUpdated, AulaID: "aula-1", Revision: 2}))

	assert.Eventually(t, func() bool {
		return f.aulas.get("aula-1").State == models.AulaStateInProgress
	}, 2*time.Second, 10*time.Millisecond)
}

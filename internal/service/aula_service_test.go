package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sfd-aulas-api/internal/dto"
	"github.com/noah-isme/sfd-aulas-api/internal/models"
	"github.com/noah-isme/sfd-aulas-api/internal/scheduling"
	"github.com/noah-isme/sfd-aulas-api/pkg/clock"
	appErrors "github.com/noah-isme/sfd-aulas-api/pkg/errors"
	"github.com/noah-isme/sfd-aulas-api/pkg/events"
)

func at(y int, m time.Month, d, h, min int) time.Time {
	return clock.New(clock.DefaultOffsetHours).MakeDate(y, m, d, h, min)
}

func requireAppError(t *testing.T, err error, want *appErrors.Error) *appErrors.Error {
	t.Helper()
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr), "expected *errors.Error, got %v", err)
	assert.Equal(t, want.Code, appErr.Code, appErr.Message)
	return appErr
}

func validCreateRequest() dto.CreateAulaRequest {
	return dto.CreateAulaRequest{
		Code:      "CHG-NEW",
		Program:   "Chino General",
		Cycle:     1,
		Frequency: "mar y jue",
		TeacherID: "t-1",
		StartDate: "2025-11-04",
		StartTime: "19:00",
		EndTime:   "21:40",
	}
}

func TestAulaServiceCreateGeneratesCalendar(t *testing.T) {
	f := newAulaFixture(t, at(2025, time.October, 15, 10, 0), nil, nil)
	svc := NewAulaService(f.deps)
	f.mock.ExpectBegin()
	f.mock.ExpectCommit()

	detail, err := svc.Create(context.Background(), validCreateRequest())
	require.NoError(t, err)

	assert.Equal(t, "id-1", detail.ID)
	assert.Equal(t, "Mar y Jue", detail.Frequency)
	assert.Equal(t, 24, detail.TotalSessions)
	assert.Equal(t, models.AulaStateUpcoming, detail.State)
	assert.Equal(t, 1, detail.Revision)
	require.Len(t, detail.Sessions, 24)

	dates := dateStrings(f.clock, detail.Sessions)
	assert.Equal(t, "2025-11-04", dates[0])
	assert.Equal(t, "2026-01-27", dates[23])
	assert.NotContains(t, dates, "2025-12-25")
	require.NotNil(t, detail.EndDate)
	assert.Equal(t, "2026-01-27", f.clock.FormatDate(*detail.EndDate))

	assert.Len(t, f.sessions.list("id-1"), 24)
	assert.Equal(t, []events.ChangeKind{events.KindAulaCreated}, f.publisher.kinds())
	require.NoError(t, f.mock.ExpectationsWereMet())
}

func TestAulaServiceCreateRejections(t *testing.T) {
	existing, sessions := tueThuAula(clock.New(clock.DefaultOffsetHours), 4, 6)

	cases := []struct {
		name   string
		mutate func(*dto.CreateAulaRequest)
		want   *appErrors.Error
	}{
		{"duplicate code", func(r *dto.CreateAulaRequest) { r.Code = existing.Code }, appErrors.ErrConflict},
		{"unknown program", func(r *dto.CreateAulaRequest) { r.Program = "Japonés" }, appErrors.ErrValidation},
		{"unknown frequency", func(r *dto.CreateAulaRequest) { r.Frequency = "Diario" }, appErrors.ErrValidation},
		{"cycle out of range", func(r *dto.CreateAulaRequest) { r.Cycle = 13 }, appErrors.ErrValidation},
		{"end before start", func(r *dto.CreateAulaRequest) { r.EndTime = "18:00" }, appErrors.ErrValidation},
		{"inactive teacher", func(r *dto.CreateAulaRequest) { r.TeacherID = "t-9" }, appErrors.ErrValidation},
		{"missing teacher", func(r *dto.CreateAulaRequest) { r.TeacherID = "nobody" }, appErrors.ErrValidation},
		{"bad date", func(r *dto.CreateAulaRequest) { r.StartDate = "2025-13-01" }, appErrors.ErrValidation},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newAulaFixture(t, at(2025, time.October, 15, 10, 0), []models.Aula{existing}, sessions)
			svc := NewAulaService(f.deps)
			req := validCreateRequest()
			tc.mutate(&req)

			_, err := svc.Create(context.Background(), req)
			requireAppError(t, err, tc.want)
			assert.Empty(t, f.publisher.kinds())
			require.NoError(t, f.mock.ExpectationsWereMet())
		})
	}
}

func TestAulaServiceCreateRefusesTruncatedSchedule(t *testing.T) {
	f := newAulaFixture(t, at(2025, time.October, 15, 10, 0), nil, nil)
	f.deps.Metrics = NewMetricsService()
	svc := NewAulaService(f.deps)
	req := validCreateRequest()
	req.StartDate = "2025-12-24"
	// A tiny horizon cannot bridge the Christmas holiday.
	svc.deps.Generator = scheduling.NewGenerator(f.deps.Generator.Calendar(), scheduling.WithHorizonDays(3))

	_, err := svc.Create(context.Background(), req)
	requireAppError(t, err, appErrors.ErrPreconditionFailed)
	assert.Equal(t, uint64(1), f.deps.Metrics.Snapshot().HorizonExhausted)
	require.NoError(t, f.mock.ExpectationsWereMet())
}

func TestAulaServiceUpdateTimesRewritesPendingSessions(t *testing.T) {
	clk := clock.New(clock.DefaultOffsetHours)
	aula, sessions := tueThuAula(clk, 4, 6, 11, 13, 18)
	aula.State = models.AulaStateInProgress
	f := newAulaFixture(t, at(2025, time.November, 7, 12, 0), []models.Aula{aula}, sessions)
	svc := NewAulaService(f.deps)
	f.mock.ExpectBegin()
	f.mock.ExpectCommit()

	end := "22:00"
	teacher := "t-2"
	rev := 1
	detail, err := svc.Update(context.Background(), "aula-1", dto.UpdateAulaRequest{EndTime: &end, TeacherID: &teacher, Revision: &rev})
	require.NoError(t, err)

	assert.Equal(t, 2, detail.Revision)
	assert.Equal(t, "t-2", detail.TeacherID)
	require.Len(t, f.sessions.updates, 1)
	rewritten := f.sessions.updates[0]
	assert.Equal(t, []string{"2025-11-11", "2025-11-13", "2025-11-18"}, dateStrings(f.clock, rewritten))
	for _, s := range rewritten {
		assert.Equal(t, "22:00", s.EndsAt.In(f.clock.Location()).Format("15:04"))
		require.NotNil(t, s.AssignedTeacherID)
		assert.Equal(t, "t-2", *s.AssignedTeacherID)
	}

	stored := f.sessions.list("aula-1")
	assert.Equal(t, "21:40", stored[0].EndsAt.In(f.clock.Location()).Format("15:04"))
	assert.Nil(t, stored[0].AssignedTeacherID)
	assert.Equal(t, []events.ChangeKind{events.KindSessionsChanged}, f.publisher.kinds())
	require.NoError(t, f.mock.ExpectationsWereMet())
}

func TestAulaServiceUpdateStaleRevision(t *testing.T) {
	clk := clock.New(clock.DefaultOffsetHours)
	aula, sessions := tueThuAula(clk, 4, 6)
	aula.Revision = 3
	f := newAulaFixture(t, at(2025, time.October, 15, 10, 0), []models.Aula{aula}, sessions)
	svc := NewAulaService(f.deps)

	code := "CHG-02"
	rev := 2
	_, err := svc.Update(context.Background(), "aula-1", dto.UpdateAulaRequest{Code: &code, Revision: &rev})
	requireAppError(t, err, appErrors.ErrStaleRevision)
	require.NoError(t, f.mock.ExpectationsWereMet())
}

func TestAulaServiceUpdateConflictRollsBack(t *testing.T) {
	clk := clock.New(clock.DefaultOffsetHours)
	aula, sessions := tueThuAula(clk, 4, 6)
	f := newAulaFixture(t, at(2025, time.October, 15, 10, 0), []models.Aula{aula}, sessions)
	f.aulas.forceConflict = true
	svc := NewAulaService(f.deps)
	f.mock.ExpectBegin()
	f.mock.ExpectRollback()

	code := "CHG-02"
	_, err := svc.Update(context.Background(), "aula-1", dto.UpdateAulaRequest{Code: &code})
	requireAppError(t, err, appErrors.ErrStaleRevision)
	assert.Empty(t, f.publisher.kinds())
	require.NoError(t, f.mock.ExpectationsWereMet())
}

func TestAulaServiceManualStateOverride(t *testing.T) {
	clk := clock.New(clock.DefaultOffsetHours)
	aula, sessions := tueThuAula(clk, 4, 6)
	f := newAulaFixture(t, at(2025, time.October, 15, 10, 0), []models.Aula{aula}, sessions)
	svc := NewAulaService(f.deps)
	for i := 0; i < 4; i++ {
		f.mock.ExpectBegin()
		f.mock.ExpectCommit()
	}

	paused := "paused"
	detail, err := svc.Update(context.Background(), "aula-1", dto.UpdateAulaRequest{State: &paused})
	require.NoError(t, err)
	assert.Equal(t, models.AulaState("paused"), detail.State)
	assert.True(t, detail.ManualOverride)
	require.NotNil(t, detail.DerivedState)
	assert.Equal(t, "upcoming", *detail.DerivedState)

	// Any later write stores the derived state over the manual one.
	code := "CHG-09"
	detail, err = svc.Update(context.Background(), "aula-1", dto.UpdateAulaRequest{Code: &code})
	require.NoError(t, err)
	assert.Equal(t, models.AulaStateUpcoming, detail.State)
	assert.False(t, detail.ManualOverride)

	_, err = svc.Update(context.Background(), "aula-1", dto.UpdateAulaRequest{State: &paused})
	require.NoError(t, err)
	auto := "auto"
	detail, err = svc.Update(context.Background(), "aula-1", dto.UpdateAulaRequest{State: &auto})
	require.NoError(t, err)
	assert.Equal(t, models.AulaStateUpcoming, detail.State)
	assert.False(t, detail.ManualOverride)
	require.NoError(t, f.mock.ExpectationsWereMet())
}

func TestAulaServiceDelete(t *testing.T) {
	clk := clock.New(clock.DefaultOffsetHours)
	aula, sessions := tueThuAula(clk, 4, 6, 11)

	t.Run("upcoming aula is removed with its sessions", func(t *testing.T) {
		f := newAulaFixture(t, at(2025, time.October, 15, 10, 0), []models.Aula{aula}, sessions)
		svc := NewAulaService(f.deps)
		f.mock.ExpectBegin()
		f.mock.ExpectCommit()

		require.NoError(t, svc.Delete(context.Background(), "aula-1", dto.DeleteAulaRequest{}))
		assert.Nil(t, f.aulas.get("aula-1"))
		assert.Empty(t, f.sessions.list("aula-1"))
		assert.Equal(t, []events.ChangeKind{events.KindAulaDeleted}, f.publisher.kinds())
		require.NoError(t, f.mock.ExpectationsWereMet())
	})

	t.Run("running aula cannot be deleted", func(t *testing.T) {
		f := newAulaFixture(t, at(2025, time.November, 6, 20, 0), []models.Aula{aula}, sessions)
		svc := NewAulaService(f.deps)

		err := svc.Delete(context.Background(), "aula-1", dto.DeleteAulaRequest{})
		requireAppError(t, err, appErrors.ErrPreconditionFailed)
		assert.NotNil(t, f.aulas.get("aula-1"))
		require.NoError(t, f.mock.ExpectationsWereMet())
	})
}

func TestAulaServiceGetDerivesReadFields(t *testing.T) {
	clk := clock.New(clock.DefaultOffsetHours)
	aula, sessions := tueThuAula(clk, 4, 6, 11)
	f := newAulaFixture(t, at(2025, time.November, 11, 22, 0), []models.Aula{aula}, sessions)
	svc := NewAulaService(f.deps)

	detail, err := svc.Get(context.Background(), "aula-1")
	require.NoError(t, err)
	assert.Equal(t, 3, detail.SessionsCompleted)
	require.NotNil(t, detail.DerivedState)
	assert.Equal(t, string(models.AulaStateFinished), *detail.DerivedState)
	assert.True(t, detail.CanAdvanceOrClose)
	assert.Equal(t, 12, detail.MaxCycle)
	// Stored state only moves through the refresher.
	assert.Equal(t, models.AulaStateUpcoming, detail.State)

	_, err = svc.Get(context.Background(), "missing")
	requireAppError(t, err, appErrors.ErrNotFound)
}

func TestAulaServiceListDefaultsPagination(t *testing.T) {
	clk := clock.New(clock.DefaultOffsetHours)
	aula, sessions := tueThuAula(clk, 4)
	f := newAulaFixture(t, at(2025, time.October, 15, 10, 0), []models.Aula{aula}, sessions)
	svc := NewAulaService(f.deps)

	items, pagination, err := svc.List(context.Background(), dto.AulaQuery{Program: "Chino General"})
	require.NoError(t, err)
	assert.Len(t, items, 1)
	assert.Equal(t, 1, pagination.Page)
	assert.Equal(t, 20, pagination.PageSize)
	assert.Equal(t, 1, pagination.TotalCount)
	assert.NotEmpty(t, svc.Programs())
}

package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/sfd-aulas-api/internal/dto"
	"github.com/noah-isme/sfd-aulas-api/internal/models"
	"github.com/noah-isme/sfd-aulas-api/internal/repository"
	"github.com/noah-isme/sfd-aulas-api/internal/scheduling"
	"github.com/noah-isme/sfd-aulas-api/pkg/clock"
	appErrors "github.com/noah-isme/sfd-aulas-api/pkg/errors"
	"github.com/noah-isme/sfd-aulas-api/pkg/events"
)

type aulaRepository interface {
	List(ctx context.Context, filter models.AulaFilter) ([]models.Aula, int, error)
	ListIDs(ctx context.Context) ([]string, error)
	FindByID(ctx context.Context, id string) (*models.Aula, error)
	ExistsByCode(ctx context.Context, code string, excludeID string) (bool, error)
	Create(ctx context.Context, exec sqlx.ExtContext, aula *models.Aula) error
	Update(ctx context.Context, exec sqlx.ExtContext, aula *models.Aula, expectedRevision int) error
	UpdateState(ctx context.Context, exec sqlx.ExtContext, id string, from, to models.AulaState) (bool, error)
	Delete(ctx context.Context, exec sqlx.ExtContext, id string, expectedRevision int) error
}

type sessionRepository interface {
	ListByAula(ctx context.Context, aulaID string) ([]models.Session, error)
	BulkInsert(ctx context.Context, exec sqlx.ExtContext, sessions []models.Session) error
	UpdateSchedule(ctx context.Context, exec sqlx.ExtContext, sessions []models.Session) error
	DeleteByAula(ctx context.Context, exec sqlx.ExtContext, aulaID string) (int64, error)
}

type teacherLookup interface {
	FindByID(ctx context.Context, id string) (*models.Teacher, error)
}

type changePublisher interface {
	Publish(ctx context.Context, evt events.ChangeEvent) error
}

type txProvider interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

// AulaDeps bundles the collaborators shared by the aula services.
type AulaDeps struct {
	Aulas     aulaRepository
	Sessions  sessionRepository
	Teachers  teacherLookup
	Tx        txProvider
	Catalog   *scheduling.Catalog
	Generator *scheduling.Generator
	Publisher changePublisher
	Cache     *CacheService
	Metrics   *MetricsService
	Validator *validator.Validate
	Logger    *zap.Logger
	NewID     func() string
}

// aulaCore carries the helpers every aula service needs: loading, revision
// checks, batch execution and post-commit notification.
type aulaCore struct {
	deps  AulaDeps
	clock *clock.Clock
}

func newAulaCore(deps AulaDeps) aulaCore {
	if deps.Validator == nil {
		deps.Validator = dto.NewValidator()
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.NewID == nil {
		deps.NewID = uuid.NewString
	}
	return aulaCore{deps: deps, clock: deps.Generator.Calendar().Clock()}
}

func (c aulaCore) loadAula(ctx context.Context, id string) (*models.Aula, error) {
	aula, err := c.deps.Aulas.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "aula not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load aula")
	}
	return aula, nil
}

func (c aulaCore) loadSessions(ctx context.Context, aulaID string) ([]models.Session, error) {
	sessions, err := c.deps.Sessions.ListByAula(ctx, aulaID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load sessions")
	}
	return sessions, nil
}

// loadSnapshot reads an aula and its sessions, going through the cache when enabled.
func (c aulaCore) loadSnapshot(ctx context.Context, id string) (dto.AulaSnapshot, error) {
	var snap dto.AulaSnapshot
	if hit, _ := c.deps.Cache.Get(ctx, AulaKey(id), &snap); hit {
		return snap, nil
	}
	aula, err := c.loadAula(ctx, id)
	if err != nil {
		return dto.AulaSnapshot{}, err
	}
	sessions, err := c.loadSessions(ctx, id)
	if err != nil {
		return dto.AulaSnapshot{}, err
	}
	snap = dto.AulaSnapshot{Aula: *aula, Sessions: sessions}
	_ = c.deps.Cache.Set(ctx, AulaKey(id), snap, 0)
	return snap, nil
}

func (c aulaCore) checkRevision(aula *models.Aula, expected *int) error {
	if expected != nil && *expected != aula.Revision {
		return appErrors.Clone(appErrors.ErrStaleRevision, "")
	}
	return nil
}

func (c aulaCore) ensureTeacher(ctx context.Context, teacherID string) error {
	if c.deps.Teachers == nil {
		return nil
	}
	teacher, err := c.deps.Teachers.FindByID(ctx, teacherID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrValidation, "teacher not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher")
	}
	if !teacher.Active {
		return appErrors.Clone(appErrors.ErrValidation, "teacher is inactive")
	}
	return nil
}

// stateFor returns the state to store after a write. The calculator decides;
// the stored value, manual or not, is kept only when it has nothing to say.
func (c aulaCore) stateFor(aula models.Aula, sessions []models.Session, now time.Time) models.AulaState {
	derived := scheduling.ComputeState(c.clock, now, scheduling.StateInputFor(aula, sessions, now))
	if state, ok := derived.Get(); ok {
		return state
	}
	if aula.State == "" {
		return models.AulaStateUpcoming
	}
	return aula.State
}

// planCycle runs the generator and refuses schedules that could not be
// completed inside the search horizon.
func (c aulaCore) planCycle(startDate time.Time, weekdays scheduling.Weekdays, total int, startTime, endTime string) (scheduling.Plan, error) {
	plan, err := c.deps.Generator.Generate(scheduling.GenerateParams{
		StartDate: startDate,
		Weekdays:  weekdays,
		Count:     total,
		StartTime: startTime,
		EndTime:   endTime,
	})
	if err != nil {
		return scheduling.Plan{}, schedulingError(err, "invalid schedule parameters")
	}
	if plan.Truncated {
		c.deps.Metrics.IncHorizonExhausted()
		return scheduling.Plan{}, appErrors.Clone(appErrors.ErrPreconditionFailed,
			fmt.Sprintf("only %d of %d sessions fit within %d days", len(plan.Sessions), total, c.deps.Generator.HorizonDays()))
	}
	return plan, nil
}

// runBatch executes fn inside one transaction. Revision conflicts surface as
// stale revision errors; anything else fails the whole batch.
func (c aulaCore) runBatch(ctx context.Context, operation string, fn func(tx *sqlx.Tx) error) (err error) {
	start := time.Now()
	defer func() {
		c.deps.Metrics.ObserveBatch(operation, time.Since(start), err != nil)
	}()

	tx, err := c.deps.Tx.BeginTxx(ctx, nil)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(tx); err != nil {
		c.deps.Logger.Warn("aula batch rolled back", zap.String("operation", operation), zap.Error(err))
		return batchError(err)
	}
	if err = tx.Commit(); err != nil {
		c.deps.Logger.Error("aula batch commit failed", zap.String("operation", operation), zap.Error(err))
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit "+operation)
	}
	return nil
}

func batchError(err error) error {
	if errors.Is(err, repository.ErrRevisionConflict) {
		return appErrors.Wrap(err, appErrors.ErrStaleRevision.Code, appErrors.ErrStaleRevision.Status, appErrors.ErrStaleRevision.Message)
	}
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist aula changes")
}

// notify drops cached reads and publishes the change. Publishing happens after
// commit; a failure is logged and the periodic refresh covers the gap.
func (c aulaCore) notify(ctx context.Context, kind events.ChangeKind, aulaID string, revision int) {
	c.deps.Cache.InvalidateAula(ctx, aulaID)
	if c.deps.Publisher == nil {
		return
	}
	evt := events.ChangeEvent{Kind: kind, AulaID: aulaID, Revision: revision, At: c.clock.Now()}
	if err := c.deps.Publisher.Publish(ctx, evt); err != nil {
		c.deps.Logger.Warn("failed to publish aula change",
			zap.String("kind", string(kind)),
			zap.String("aula_id", aulaID),
			zap.Error(err),
		)
	}
}

// schedulingError maps engine errors onto the API taxonomy.
func schedulingError(err error, message string) error {
	switch {
	case errors.Is(err, scheduling.ErrNotSchedulable):
		return appErrors.Wrap(err, appErrors.ErrNotSchedulable.Code, appErrors.ErrNotSchedulable.Status, err.Error())
	case errors.Is(err, scheduling.ErrSessionNotFound):
		return appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, "session not found")
	case errors.Is(err, scheduling.ErrSessionCompleted):
		return appErrors.Wrap(err, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, err.Error())
	case errors.Is(err, scheduling.ErrHorizonExhausted):
		return appErrors.Wrap(err, appErrors.ErrPreconditionFailed.Code, appErrors.ErrPreconditionFailed.Status, err.Error())
	case errors.Is(err, scheduling.ErrUnknownProgram),
		errors.Is(err, scheduling.ErrUnknownFrequency),
		errors.Is(err, scheduling.ErrInvalidCycle),
		errors.Is(err, scheduling.ErrInvalidTimeRange),
		errors.Is(err, scheduling.ErrDateOutOfOrder),
		errors.Is(err, scheduling.ErrDateInPast):
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	default:
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, message)
	}
}

// buildDetail computes the derived read fields of a snapshot at now.
func (c aulaCore) buildDetail(snap dto.AulaSnapshot, now time.Time) dto.AulaDetail {
	in := scheduling.StateInputFor(snap.Aula, snap.Sessions, now)
	detail := dto.AulaDetail{
		Aula:              snap.Aula,
		Sessions:          snap.Sessions,
		SessionsCompleted: in.SessionsCompleted,
		ManualOverride:    snap.Aula.State != "" && !snap.Aula.State.IsDerived(),
		CanAdvanceOrClose: scheduling.CanAdvanceOrClose(c.clock, now, in),
	}
	if detail.Sessions == nil {
		detail.Sessions = []models.Session{}
	}
	if state, ok := scheduling.ComputeState(c.clock, now, in).Get(); ok {
		value := string(state)
		detail.DerivedState = &value
	}
	if maxCycle, err := c.deps.Catalog.MaxCycle(snap.Aula.Program); err == nil {
		detail.MaxCycle = maxCycle
	}
	return detail
}

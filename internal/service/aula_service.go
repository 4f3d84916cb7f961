package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/sfd-aulas-api/internal/dto"
	"github.com/noah-isme/sfd-aulas-api/internal/models"
	"github.com/noah-isme/sfd-aulas-api/internal/scheduling"
	appErrors "github.com/noah-isme/sfd-aulas-api/pkg/errors"
	"github.com/noah-isme/sfd-aulas-api/pkg/events"
)

const autoStateKeyword = "auto"

// AulaService manages the aula lifecycle: creation with its generated
// calendar, edits that propagate to pending sessions, and deletion.
type AulaService struct {
	aulaCore
}

// NewAulaService constructs an AulaService.
func NewAulaService(deps AulaDeps) *AulaService {
	return &AulaService{aulaCore: newAulaCore(deps)}
}

// Programs returns the configured program catalog.
func (s *AulaService) Programs() []scheduling.Program {
	return s.deps.Catalog.Programs()
}

// List returns aulas matching the filter.
func (s *AulaService) List(ctx context.Context, query dto.AulaQuery) ([]models.Aula, *models.Pagination, error) {
	filter := models.AulaFilter{
		Program:   query.Program,
		State:     query.State,
		TeacherID: query.TeacherID,
		Search:    query.Search,
		Page:      query.Page,
		PageSize:  query.PageSize,
		SortBy:    query.SortBy,
		SortOrder: query.SortOrder,
	}
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 20
	}

	key := AulaListKey(filter)
	var cached dto.AulaListResult
	if hit, _ := s.deps.Cache.Get(ctx, key, &cached); hit {
		return cached.Items, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: cached.Total}, nil
	}

	aulas, total, err := s.deps.Aulas.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list aulas")
	}
	if aulas == nil {
		aulas = []models.Aula{}
	}
	_ = s.deps.Cache.Set(ctx, key, dto.AulaListResult{Items: aulas, Total: total}, 0)
	return aulas, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

// Get returns an aula with its sessions and the fields derived at the current instant.
func (s *AulaService) Get(ctx context.Context, id string) (*dto.AulaDetail, error) {
	snap, err := s.loadSnapshot(ctx, id)
	if err != nil {
		return nil, err
	}
	detail := s.buildDetail(snap, s.clock.Now())
	return &detail, nil
}

// Sessions returns the aula's sessions ordered by number.
func (s *AulaService) Sessions(ctx context.Context, id string) ([]models.Session, error) {
	snap, err := s.loadSnapshot(ctx, id)
	if err != nil {
		return nil, err
	}
	if snap.Sessions == nil {
		return []models.Session{}, nil
	}
	return snap.Sessions, nil
}

// Create validates the request against the catalog, generates the first
// cycle and stores the aula with all its sessions in one batch.
func (s *AulaService) Create(ctx context.Context, req dto.CreateAulaRequest) (*dto.AulaDetail, error) {
	if err := s.deps.Validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid aula payload")
	}
	code := strings.TrimSpace(req.Code)

	frequency, err := s.deps.Catalog.CanonicalFrequency(req.Frequency)
	if err != nil {
		return nil, schedulingError(err, "invalid frequency")
	}
	if err := s.deps.Catalog.ValidateCycle(req.Program, req.Cycle); err != nil {
		return nil, schedulingError(err, "invalid cycle")
	}
	total, err := s.deps.Catalog.SessionCount(req.Program, frequency)
	if err != nil {
		return nil, schedulingError(err, "frequency not offered for program")
	}
	weekdays, err := s.deps.Catalog.Weekdays(frequency)
	if err != nil {
		return nil, schedulingError(err, "invalid frequency")
	}
	startDate, err := s.clock.ParseDate(req.StartDate)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid start date")
	}
	if err := s.ensureTeacher(ctx, req.TeacherID); err != nil {
		return nil, err
	}
	exists, err := s.deps.Aulas.ExistsByCode(ctx, code, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check aula code")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "aula code already exists")
	}

	plan, err := s.planCycle(startDate, weekdays, total, req.StartTime, req.EndTime)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	aula := models.Aula{
		ID:            s.deps.NewID(),
		Code:          code,
		Program:       req.Program,
		Cycle:         req.Cycle,
		Frequency:     frequency,
		TeacherID:     req.TeacherID,
		StartDate:     startDate,
		EndDate:       plan.EndDate,
		StartTime:     req.StartTime,
		EndTime:       req.EndTime,
		TotalSessions: total,
	}
	sessions := plan.Materialize(aula.ID, s.deps.NewID, now)
	aula.State = s.stateFor(aula, sessions, now)

	err = s.runBatch(ctx, "create aula", func(tx *sqlx.Tx) error {
		if err := s.deps.Aulas.Create(ctx, tx, &aula); err != nil {
			return err
		}
		return s.deps.Sessions.BulkInsert(ctx, tx, sessions)
	})
	if err != nil {
		return nil, err
	}

	s.deps.Metrics.AddSessionsGenerated(len(sessions))
	s.notify(ctx, events.KindAulaCreated, aula.ID, aula.Revision)
	s.deps.Logger.Info("aula created",
		zap.String("aula_id", aula.ID),
		zap.String("code", aula.Code),
		zap.Int("sessions", len(sessions)),
	)

	detail := s.buildDetail(dto.AulaSnapshot{Aula: aula, Sessions: sessions}, now)
	return &detail, nil
}

// Update applies edits. Time or teacher changes rewrite every pending session
// in the same batch as the aula.
func (s *AulaService) Update(ctx context.Context, id string, req dto.UpdateAulaRequest) (*dto.AulaDetail, error) {
	if err := s.deps.Validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid aula payload")
	}
	aula, err := s.loadAula(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.checkRevision(aula, req.Revision); err != nil {
		return nil, err
	}
	sessions, err := s.loadSessions(ctx, id)
	if err != nil {
		return nil, err
	}
	expected := aula.Revision
	updated := *aula

	if req.Code != nil {
		code := strings.TrimSpace(*req.Code)
		if code == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, "code cannot be empty")
		}
		if code != aula.Code {
			exists, err := s.deps.Aulas.ExistsByCode(ctx, code, id)
			if err != nil {
				return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check aula code")
			}
			if exists {
				return nil, appErrors.Clone(appErrors.ErrConflict, "aula code already exists")
			}
		}
		updated.Code = code
	}

	var newTeacher *string
	if req.TeacherID != nil && *req.TeacherID != aula.TeacherID {
		if err := s.ensureTeacher(ctx, *req.TeacherID); err != nil {
			return nil, err
		}
		updated.TeacherID = *req.TeacherID
		newTeacher = req.TeacherID
	}
	if req.StartTime != nil {
		updated.StartTime = *req.StartTime
	}
	if req.EndTime != nil {
		updated.EndTime = *req.EndTime
	}
	timesChanged := updated.StartTime != aula.StartTime || updated.EndTime != aula.EndTime
	if timesChanged {
		if _, _, err := s.deps.Generator.SessionTimes(updated.StartDate, updated.StartTime, updated.EndTime); err != nil {
			return nil, schedulingError(err, "invalid session times")
		}
	}

	now := s.clock.Now()
	var pending []models.Session
	if timesChanged || newTeacher != nil {
		pending, err = s.deps.Generator.PlanFutureSessionUpdate(scheduling.FutureUpdateInput{
			Sessions:     sessions,
			StartTime:    updated.StartTime,
			EndTime:      updated.EndTime,
			NewTeacherID: newTeacher,
			Now:          now,
		})
		if err != nil {
			return nil, schedulingError(err, "invalid session times")
		}
	}
	merged := mergeSessions(sessions, pending)

	manual := ""
	if req.State != nil {
		manual = strings.TrimSpace(*req.State)
		if strings.EqualFold(manual, autoStateKeyword) {
			manual = ""
		}
	}
	if manual != "" {
		// Stored as given; the next refresh replaces it once a state derives.
		updated.State = models.AulaState(manual)
	} else {
		updated.State = s.stateFor(updated, merged, now)
	}

	err = s.runBatch(ctx, "update aula", func(tx *sqlx.Tx) error {
		if err := s.deps.Aulas.Update(ctx, tx, &updated, expected); err != nil {
			return err
		}
		if len(pending) == 0 {
			return nil
		}
		return s.deps.Sessions.UpdateSchedule(ctx, tx, pending)
	})
	if err != nil {
		return nil, err
	}

	kind := events.KindAulaUpdated
	if len(pending) > 0 {
		kind = events.KindSessionsChanged
	}
	s.notify(ctx, kind, updated.ID, updated.Revision)
	s.deps.Logger.Info("aula updated",
		zap.String("aula_id", updated.ID),
		zap.Int("revision", updated.Revision),
		zap.Int("sessions_rewritten", len(pending)),
	)

	detail := s.buildDetail(dto.AulaSnapshot{Aula: updated, Sessions: merged}, now)
	return &detail, nil
}

// Delete removes an aula and its sessions. Only aulas that have not started
// can be deleted; running or finished ones are closed instead.
func (s *AulaService) Delete(ctx context.Context, id string, req dto.DeleteAulaRequest) error {
	aula, err := s.loadAula(ctx, id)
	if err != nil {
		return err
	}
	if err := s.checkRevision(aula, req.Revision); err != nil {
		return err
	}
	sessions, err := s.loadSessions(ctx, id)
	if err != nil {
		return err
	}
	now := s.clock.Now()
	state := aula.State
	if derived, ok := scheduling.ComputeState(s.clock, now, scheduling.StateInputFor(*aula, sessions, now)).Get(); ok {
		state = derived
	}
	if state != models.AulaStateUpcoming {
		return appErrors.Clone(appErrors.ErrPreconditionFailed, fmt.Sprintf("only upcoming aulas can be deleted (state %s)", state))
	}

	err = s.runBatch(ctx, "delete aula", func(tx *sqlx.Tx) error {
		if _, err := s.deps.Sessions.DeleteByAula(ctx, tx, id); err != nil {
			return err
		}
		return s.deps.Aulas.Delete(ctx, tx, id, aula.Revision)
	})
	if err != nil {
		return err
	}

	s.notify(ctx, events.KindAulaDeleted, id, aula.Revision)
	s.deps.Logger.Info("aula deleted", zap.String("aula_id", id), zap.Int("sessions", len(sessions)))
	return nil
}

// mergeSessions overlays changed sessions onto the full list by id.
func mergeSessions(all, changed []models.Session) []models.Session {
	if len(changed) == 0 {
		return all
	}
	byID := make(map[string]models.Session, len(changed))
	for _, s := range changed {
		byID[s.ID] = s
	}
	out := make([]models.Session, len(all))
	for i, s := range all {
		if c, ok := byID[s.ID]; ok {
			out[i] = c
			continue
		}
		out[i] = s
	}
	return out
}

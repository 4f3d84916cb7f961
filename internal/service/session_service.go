package service

import (
	"context"
	"strings"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/sfd-aulas-api/internal/dto"
	"github.com/noah-isme/sfd-aulas-api/internal/models"
	"github.com/noah-isme/sfd-aulas-api/internal/scheduling"
	appErrors "github.com/noah-isme/sfd-aulas-api/pkg/errors"
	"github.com/noah-isme/sfd-aulas-api/pkg/events"
)

type incidentRepository interface {
	Create(ctx context.Context, exec sqlx.ExtContext, incident *models.Incident) error
	ListByAula(ctx context.Context, aulaID string) ([]models.Incident, error)
}

// SessionService applies per-session changes: reschedules that cascade to the
// rest of the calendar and teacher replacements. Every change is logged as an
// incident in the same batch.
type SessionService struct {
	aulaCore
	incidents incidentRepository
}

// NewSessionService constructs a SessionService.
func NewSessionService(deps AulaDeps, incidents incidentRepository) *SessionService {
	return &SessionService{aulaCore: newAulaCore(deps), incidents: incidents}
}

// Reschedule moves one session to a new date and regenerates the dates of
// every later pending session from the following day on.
func (s *SessionService) Reschedule(ctx context.Context, aulaID, sessionID string, req dto.RescheduleSessionRequest, actor string) (*dto.SessionChangeResult, error) {
	if err := s.deps.Validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid reschedule payload")
	}
	newDate, err := s.clock.ParseDate(req.NewDate)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid new date")
	}
	aula, err := s.loadAula(ctx, aulaID)
	if err != nil {
		return nil, err
	}
	if err := s.checkRevision(aula, req.Revision); err != nil {
		return nil, err
	}
	weekdays, err := s.deps.Catalog.Weekdays(aula.Frequency)
	if err != nil {
		return nil, schedulingError(err, "invalid frequency")
	}
	sessions, err := s.loadSessions(ctx, aulaID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	plan, err := s.deps.Generator.PlanReschedule(scheduling.RescheduleInput{
		Aula:     *aula,
		Sessions: sessions,
		TargetID: sessionID,
		NewDate:  newDate,
		Weekdays: weekdays,
		Now:      now,
	})
	if err != nil {
		return nil, schedulingError(err, "cannot reschedule session")
	}

	expected := aula.Revision
	updated := *aula
	endDate := plan.EndDate
	updated.EndDate = &endDate
	merged := mergeSessions(sessions, plan.Updated)
	updated.State = s.stateFor(updated, merged, now)

	target := plan.Target
	incident := models.Incident{
		ID:            s.deps.NewID(),
		AulaID:        aula.ID,
		AulaCode:      aula.Code,
		SessionID:     target.ID,
		SessionNumber: target.Number,
		Type:          models.IncidentTypeReschedule,
		OriginalDate:  plan.OriginalDate,
		NewDate:       &target.Date,
		Reason:        strings.TrimSpace(req.Reason),
		Status:        models.IncidentStatusApproved,
		RegisteredBy:  actor,
		CreatedAt:     now,
	}

	err = s.runBatch(ctx, "reschedule session", func(tx *sqlx.Tx) error {
		if err := s.deps.Sessions.UpdateSchedule(ctx, tx, plan.Updated); err != nil {
			return err
		}
		if err := s.deps.Aulas.Update(ctx, tx, &updated, expected); err != nil {
			return err
		}
		return s.incidents.Create(ctx, tx, &incident)
	})
	if err != nil {
		return nil, err
	}

	shifted := plan.Updated[1:]
	s.deps.Metrics.RecordCascade(len(shifted))
	s.notify(ctx, events.KindSessionsChanged, updated.ID, updated.Revision)
	s.deps.Logger.Info("session rescheduled",
		zap.String("aula_id", aulaID),
		zap.String("session_id", sessionID),
		zap.String("from", s.clock.FormatDate(plan.OriginalDate)),
		zap.String("to", s.clock.FormatDate(target.Date)),
		zap.Int("shifted", len(shifted)),
	)

	return &dto.SessionChangeResult{
		Session:  target,
		Shifted:  append([]models.Session{}, shifted...),
		EndDate:  updated.EndDate,
		Revision: updated.Revision,
		Incident: incident,
	}, nil
}

// AssignReplacement puts a substitute teacher on one pending session.
func (s *SessionService) AssignReplacement(ctx context.Context, aulaID, sessionID string, req dto.ReplacementRequest, actor string) (*dto.SessionChangeResult, error) {
	if err := s.deps.Validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid replacement payload")
	}
	aula, err := s.loadAula(ctx, aulaID)
	if err != nil {
		return nil, err
	}
	if err := s.checkRevision(aula, req.Revision); err != nil {
		return nil, err
	}
	if err := s.ensureTeacher(ctx, req.TeacherID); err != nil {
		return nil, err
	}
	sessions, err := s.loadSessions(ctx, aulaID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	session, err := scheduling.PlanReplacement(sessions, sessionID, req.TeacherID, now)
	if err != nil {
		return nil, schedulingError(err, "cannot replace teacher")
	}

	expected := aula.Revision
	updated := *aula
	teacherID := req.TeacherID
	incident := models.Incident{
		ID:                   s.deps.NewID(),
		AulaID:               aula.ID,
		AulaCode:             aula.Code,
		SessionID:            session.ID,
		SessionNumber:        session.Number,
		Type:                 models.IncidentTypeReplacement,
		OriginalDate:         session.Date,
		ReplacementTeacherID: &teacherID,
		Reason:               strings.TrimSpace(req.Reason),
		Status:               models.IncidentStatusApproved,
		RegisteredBy:         actor,
		CreatedAt:            now,
	}

	err = s.runBatch(ctx, "replace teacher", func(tx *sqlx.Tx) error {
		if err := s.deps.Sessions.UpdateSchedule(ctx, tx, []models.Session{session}); err != nil {
			return err
		}
		if err := s.deps.Aulas.Update(ctx, tx, &updated, expected); err != nil {
			return err
		}
		return s.incidents.Create(ctx, tx, &incident)
	})
	if err != nil {
		return nil, err
	}

	s.notify(ctx, events.KindSessionsChanged, updated.ID, updated.Revision)
	s.deps.Logger.Info("replacement teacher assigned",
		zap.String("aula_id", aulaID),
		zap.String("session_id", sessionID),
		zap.String("teacher_id", teacherID),
	)

	return &dto.SessionChangeResult{
		Session:  session,
		Shifted:  []models.Session{},
		EndDate:  updated.EndDate,
		Revision: updated.Revision,
		Incident: incident,
	}, nil
}

// Incidents lists the incident log of an aula. Records outlive the aula itself.
func (s *SessionService) Incidents(ctx context.Context, aulaID string) ([]models.Incident, error) {
	incidents, err := s.incidents.ListByAula(ctx, aulaID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list incidents")
	}
	if incidents == nil {
		incidents = []models.Incident{}
	}
	return incidents, nil
}

package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/sfd-aulas-api/internal/dto"
	"github.com/noah-isme/sfd-aulas-api/internal/models"
	"github.com/noah-isme/sfd-aulas-api/internal/scheduling"
	appErrors "github.com/noah-isme/sfd-aulas-api/pkg/errors"
	"github.com/noah-isme/sfd-aulas-api/pkg/events"
)

type archiveRepository interface {
	Create(ctx context.Context, exec sqlx.ExtContext, archive *models.AulaArchive) error
	FindByID(ctx context.Context, id string) (*models.AulaArchive, error)
	List(ctx context.Context, filter models.ArchiveFilter) ([]models.AulaArchive, int, error)
}

// CycleService ends cycles: advancing an aula to its next cycle or closing it
// for good. Both archive the finished calendar first.
type CycleService struct {
	aulaCore
	archives archiveRepository
}

// NewCycleService constructs a CycleService.
func NewCycleService(deps AulaDeps, archives archiveRepository) *CycleService {
	return &CycleService{aulaCore: newAulaCore(deps), archives: archives}
}

// Preview reports what advancing would produce with the suggested defaults.
func (s *CycleService) Preview(ctx context.Context, id string) (*dto.AdvancePreview, error) {
	aula, err := s.loadAula(ctx, id)
	if err != nil {
		return nil, err
	}
	sessions, err := s.loadSessions(ctx, id)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()
	maxCycle, err := s.deps.Catalog.MaxCycle(aula.Program)
	if err != nil {
		return nil, schedulingError(err, "unknown program")
	}

	suggested := scheduling.SuggestNextCycleStart(s.clock, *aula, sessions)
	preview := &dto.AdvancePreview{
		AulaID:             aula.ID,
		CurrentCycle:       aula.Cycle,
		NextCycle:          aula.Cycle + 1,
		MaxCycle:           maxCycle,
		TeacherID:          aula.TeacherID,
		Frequency:          aula.Frequency,
		StartTime:          aula.StartTime,
		EndTime:            aula.EndTime,
		SuggestedStartDate: s.clock.FormatDate(suggested),
		Blockers:           []string{},
		Revision:           aula.Revision,
	}

	if !scheduling.CanAdvanceOrClose(s.clock, now, scheduling.StateInputFor(*aula, sessions, now)) {
		preview.Blockers = append(preview.Blockers, "current cycle has not finished")
	}
	if aula.Cycle+1 > maxCycle {
		preview.Blockers = append(preview.Blockers, fmt.Sprintf("cycle %d is the last one of %s", aula.Cycle, aula.Program))
	}
	if total, err := s.deps.Catalog.SessionCount(aula.Program, aula.Frequency); err == nil {
		preview.TotalSessions = total
		if weekdays, err := s.deps.Catalog.Weekdays(aula.Frequency); err == nil {
			if plan, err := s.planCycle(suggested, weekdays, total, aula.StartTime, aula.EndTime); err == nil {
				preview.ProjectedEndDate = plan.EndDate
			} else {
				preview.Blockers = append(preview.Blockers, appErrors.FromError(err).Message)
			}
		}
	} else {
		preview.Blockers = append(preview.Blockers, "frequency not offered for program")
	}
	preview.CanAdvance = len(preview.Blockers) == 0
	return preview, nil
}

// Advance archives the finished cycle and replaces its calendar with the next
// cycle's. The new schedule is planned before anything is written; the
// archive, session swap and aula update commit together or not at all.
func (s *CycleService) Advance(ctx context.Context, id string, req dto.AdvanceCycleRequest, actor string) (*dto.AulaDetail, error) {
	if err := s.deps.Validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid advance payload")
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
	now := s.clock.Now()
	if !scheduling.CanAdvanceOrClose(s.clock, now, scheduling.StateInputFor(*aula, sessions, now)) {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "current cycle has not finished")
	}

	next := aula.Cycle + 1
	if err := s.deps.Catalog.ValidateCycle(aula.Program, next); err != nil {
		if errors.Is(err, scheduling.ErrInvalidCycle) {
			return nil, appErrors.Wrap(err, appErrors.ErrPreconditionFailed.Code, appErrors.ErrPreconditionFailed.Status,
				fmt.Sprintf("cycle %d is the last one of %s", aula.Cycle, aula.Program))
		}
		return nil, schedulingError(err, "invalid cycle")
	}

	teacherID := aula.TeacherID
	if req.TeacherID != "" && req.TeacherID != teacherID {
		if err := s.ensureTeacher(ctx, req.TeacherID); err != nil {
			return nil, err
		}
		teacherID = req.TeacherID
	}
	startTime, endTime := aula.StartTime, aula.EndTime
	if req.StartTime != "" {
		startTime = req.StartTime
	}
	if req.EndTime != "" {
		endTime = req.EndTime
	}
	startDate := scheduling.SuggestNextCycleStart(s.clock, *aula, sessions)
	if req.StartDate != "" {
		startDate, err = s.clock.ParseDate(req.StartDate)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid start date")
		}
	}

	total, err := s.deps.Catalog.SessionCount(aula.Program, aula.Frequency)
	if err != nil {
		return nil, schedulingError(err, "frequency not offered for program")
	}
	weekdays, err := s.deps.Catalog.Weekdays(aula.Frequency)
	if err != nil {
		return nil, schedulingError(err, "invalid frequency")
	}
	plan, err := s.planCycle(startDate, weekdays, total, startTime, endTime)
	if err != nil {
		return nil, err
	}

	reason := models.CycleAdvanceReason(aula.Cycle, next)
	archive, err := scheduling.BuildArchive(s.deps.NewID(), *aula, sessions, reason, now)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to build archive")
	}

	expected := aula.Revision
	updated := *aula
	updated.Cycle = next
	updated.TeacherID = teacherID
	updated.StartDate = startDate
	updated.EndDate = plan.EndDate
	updated.StartTime = startTime
	updated.EndTime = endTime
	updated.TotalSessions = total
	updated.State = ""
	newSessions := plan.Materialize(updated.ID, s.deps.NewID, now)
	updated.State = s.stateFor(updated, newSessions, now)

	err = s.runBatch(ctx, "advance cycle", func(tx *sqlx.Tx) error {
		if err := s.archives.Create(ctx, tx, &archive); err != nil {
			return err
		}
		if _, err := s.deps.Sessions.DeleteByAula(ctx, tx, id); err != nil {
			return err
		}
		if err := s.deps.Aulas.Update(ctx, tx, &updated, expected); err != nil {
			return err
		}
		return s.deps.Sessions.BulkInsert(ctx, tx, newSessions)
	})
	if err != nil {
		return nil, err
	}

	s.deps.Metrics.RecordArchive("advance")
	s.deps.Metrics.AddSessionsGenerated(len(newSessions))
	s.notify(ctx, events.KindCycleAdvanced, updated.ID, updated.Revision)
	s.deps.Logger.Info("aula cycle advanced",
		zap.String("aula_id", id),
		zap.String("archive_id", archive.ID),
		zap.Int("from_cycle", aula.Cycle),
		zap.Int("to_cycle", next),
		zap.String("actor", actor),
	)

	detail := s.buildDetail(dto.AulaSnapshot{Aula: updated, Sessions: newSessions}, now)
	return &detail, nil
}

// Close archives the aula with all its sessions and removes both.
func (s *CycleService) Close(ctx context.Context, id string, req dto.CloseAulaRequest, actor string) (*models.AulaArchive, error) {
	if err := s.deps.Validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid close payload")
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
	now := s.clock.Now()
	if !scheduling.CanAdvanceOrClose(s.clock, now, scheduling.StateInputFor(*aula, sessions, now)) {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "current cycle has not finished")
	}

	archive, err := scheduling.BuildArchive(s.deps.NewID(), *aula, sessions, models.ArchiveReasonManualClosure, now)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to build archive")
	}

	err = s.runBatch(ctx, "close aula", func(tx *sqlx.Tx) error {
		if err := s.archives.Create(ctx, tx, &archive); err != nil {
			return err
		}
		if _, err := s.deps.Sessions.DeleteByAula(ctx, tx, id); err != nil {
			return err
		}
		return s.deps.Aulas.Delete(ctx, tx, id, aula.Revision)
	})
	if err != nil {
		return nil, err
	}

	s.deps.Metrics.RecordArchive("closure")
	s.notify(ctx, events.KindAulaClosed, id, aula.Revision)
	s.deps.Logger.Info("aula closed",
		zap.String("aula_id", id),
		zap.String("archive_id", archive.ID),
		zap.Int("sessions", len(sessions)),
		zap.String("actor", actor),
	)
	return &archive, nil
}

// ListArchives returns archive headers, newest first.
func (s *CycleService) ListArchives(ctx context.Context, query dto.ArchiveQuery) ([]models.AulaArchive, *models.Pagination, error) {
	if query.Page <= 0 {
		query.Page = 1
	}
	if query.PageSize <= 0 {
		query.PageSize = 20
	}
	filter := models.ArchiveFilter{
		AulaID:  query.AulaID,
		Program: query.Program,
		Limit:   query.PageSize,
		Offset:  (query.Page - 1) * query.PageSize,
	}
	archives, total, err := s.archives.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list archives")
	}
	if archives == nil {
		archives = []models.AulaArchive{}
	}
	return archives, &models.Pagination{Page: query.Page, PageSize: query.PageSize, TotalCount: total}, nil
}

// GetArchive returns one archive with its snapshots.
func (s *CycleService) GetArchive(ctx context.Context, id string) (*models.AulaArchive, error) {
	archive, err := s.archives.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "archive not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load archive")
	}
	return archive, nil
}

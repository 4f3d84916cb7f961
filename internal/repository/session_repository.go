package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sfd-aulas-api/internal/models"
	"github.com/noah-isme/sfd-aulas-api/pkg/clock"
)

const sessionColumns = `id, aula_id, number, session_date, starts_at, ends_at, status, override_teacher_id,
assigned_teacher_id, created_at, updated_at`

// SessionRepository persists the sessions of every aula.
type SessionRepository struct {
	db    *sqlx.DB
	clock *clock.Clock
}

// NewSessionRepository constructs a SessionRepository. Session dates are read
// back on clk's calendar; nil uses the default offset.
func NewSessionRepository(db *sqlx.DB, clk *clock.Clock) *SessionRepository {
	return &SessionRepository{db: db, clock: anchorClock(clk)}
}

func (r *SessionRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// ListByAula returns an aula's sessions ordered by sequence number.
func (r *SessionRepository) ListByAula(ctx context.Context, aulaID string) ([]models.Session, error) {
	query := "SELECT " + sessionColumns + " FROM aula_sessions WHERE aula_id = $1 ORDER BY number ASC"
	var sessions []models.Session
	if err := r.db.SelectContext(ctx, &sessions, query, aulaID); err != nil {
		return nil, fmt.Errorf("list aula sessions: %w", err)
	}
	for i := range sessions {
		sessions[i].Date = r.clock.StoredDate(sessions[i].Date)
	}
	return sessions, nil
}

// BulkInsert stores freshly generated sessions.
func (r *SessionRepository) BulkInsert(ctx context.Context, exec sqlx.ExtContext, sessions []models.Session) error {
	if len(sessions) == 0 {
		return nil
	}
	target := r.exec(exec)
	now := time.Now().UTC()

	const query = `INSERT INTO aula_sessions (` + sessionColumns + `)
VALUES (:id, :aula_id, :number, :session_date, :starts_at, :ends_at, :status, :override_teacher_id,
:assigned_teacher_id, :created_at, :updated_at)`

	for i := range sessions {
		s := &sessions[i]
		if s.ID == "" {
			s.ID = uuid.NewString()
		}
		if s.CreatedAt.IsZero() {
			s.CreatedAt = now
		}
		s.UpdatedAt = now
		if _, err := sqlx.NamedExecContext(ctx, target, query, s); err != nil {
			return fmt.Errorf("insert aula session %d: %w", s.Number, err)
		}
	}
	return nil
}

// UpdateSchedule rewrites date, times, status and teacher tags of sessions.
func (r *SessionRepository) UpdateSchedule(ctx context.Context, exec sqlx.ExtContext, sessions []models.Session) error {
	target := r.exec(exec)
	now := time.Now().UTC()

	const query = `UPDATE aula_sessions SET session_date = $1, starts_at = $2, ends_at = $3, status = $4,
override_teacher_id = $5, assigned_teacher_id = $6, updated_at = $7 WHERE id = $8 AND aula_id = $9`

	for i := range sessions {
		s := &sessions[i]
		result, err := target.ExecContext(ctx, query,
			s.Date, s.StartsAt, s.EndsAt, s.Status, s.OverrideTeacherID, s.AssignedTeacherID, now, s.ID, s.AulaID)
		if err != nil {
			return fmt.Errorf("update aula session %d: %w", s.Number, err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("aula session rows affected: %w", err)
		}
		if affected == 0 {
			return fmt.Errorf("update aula session %s: %w", s.ID, ErrRevisionConflict)
		}
		s.UpdatedAt = now
	}
	return nil
}

// DeleteByAula removes every session of an aula and returns how many went.
func (r *SessionRepository) DeleteByAula(ctx context.Context, exec sqlx.ExtContext, aulaID string) (int64, error) {
	result, err := r.exec(exec).ExecContext(ctx, `DELETE FROM aula_sessions WHERE aula_id = $1`, aulaID)
	if err != nil {
		return 0, fmt.Errorf("delete aula sessions: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("aula sessions rows affected: %w", err)
	}
	return affected, nil
}

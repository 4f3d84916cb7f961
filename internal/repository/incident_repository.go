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

const incidentColumns = `id, aula_id, aula_code, session_id, session_number, type, original_date, new_date,
replacement_teacher_id, reason, status, registered_by, created_at`

// IncidentRepository records reschedules and teacher replacements.
type IncidentRepository struct {
	db    *sqlx.DB
	clock *clock.Clock
}

// NewIncidentRepository constructs the repository.
func NewIncidentRepository(db *sqlx.DB, clk *clock.Clock) *IncidentRepository {
	return &IncidentRepository{db: db, clock: anchorClock(clk)}
}

func (r *IncidentRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// Create inserts an incident, normally inside the batch that applied it.
func (r *IncidentRepository) Create(ctx context.Context, exec sqlx.ExtContext, incident *models.Incident) error {
	if incident.ID == "" {
		incident.ID = uuid.NewString()
	}
	if incident.CreatedAt.IsZero() {
		incident.CreatedAt = time.Now().UTC()
	}
	if incident.Status == "" {
		incident.Status = models.IncidentStatusApproved
	}
	const query = `INSERT INTO aula_incidents (` + incidentColumns + `)
VALUES (:id, :aula_id, :aula_code, :session_id, :session_number, :type, :original_date, :new_date,
:replacement_teacher_id, :reason, :status, :registered_by, :created_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, incident); err != nil {
		return fmt.Errorf("insert aula incident: %w", err)
	}
	return nil
}

// ListByAula returns incidents of an aula, newest first.
func (r *IncidentRepository) ListByAula(ctx context.Context, aulaID string) ([]models.Incident, error) {
	query := "SELECT " + incidentColumns + " FROM aula_incidents WHERE aula_id = $1 ORDER BY created_at DESC"
	var incidents []models.Incident
	if err := r.db.SelectContext(ctx, &incidents, query, aulaID); err != nil {
		return nil, fmt.Errorf("list aula incidents: %w", err)
	}
	for i := range incidents {
		incidents[i].OriginalDate = r.clock.StoredDate(incidents[i].OriginalDate)
		if incidents[i].NewDate != nil {
			moved := r.clock.StoredDate(*incidents[i].NewDate)
			incidents[i].NewDate = &moved
		}
	}
	return incidents, nil
}

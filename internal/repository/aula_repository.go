package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sfd-aulas-api/internal/models"
	"github.com/noah-isme/sfd-aulas-api/pkg/clock"
)

// ErrRevisionConflict is returned when a guarded write finds a different revision.
var ErrRevisionConflict = errors.New("aula revision conflict")

const aulaColumns = `id, code, program, cycle, frequency, teacher_id, start_date, end_date, start_time, end_time,
total_sessions, state, revision, created_at, updated_at`

// AulaRepository persists aulas.
type AulaRepository struct {
	db    *sqlx.DB
	clock *clock.Clock
}

// NewAulaRepository constructs an AulaRepository. Start and end dates are read
// back on clk's calendar; nil uses the default offset.
func NewAulaRepository(db *sqlx.DB, clk *clock.Clock) *AulaRepository {
	return &AulaRepository{db: db, clock: anchorClock(clk)}
}

func (r *AulaRepository) anchorDates(aula *models.Aula) {
	aula.StartDate = r.clock.StoredDate(aula.StartDate)
	if aula.EndDate != nil {
		end := r.clock.StoredDate(*aula.EndDate)
		aula.EndDate = &end
	}
}

func (r *AulaRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// List returns aulas matching filters along with total count.
func (r *AulaRepository) List(ctx context.Context, filter models.AulaFilter) ([]models.Aula, int, error) {
	base := "FROM aulas WHERE 1=1"
	var conditions []string
	var args []interface{}

	if filter.Program != "" {
		conditions = append(conditions, fmt.Sprintf("program = $%d", len(args)+1))
		args = append(args, filter.Program)
	}
	if filter.State != "" {
		conditions = append(conditions, fmt.Sprintf("state = $%d", len(args)+1))
		args = append(args, filter.State)
	}
	if filter.TeacherID != "" {
		conditions = append(conditions, fmt.Sprintf("teacher_id = $%d", len(args)+1))
		args = append(args, filter.TeacherID)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("LOWER(code) LIKE $%d", len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}
	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]string{
		"code":       "code",
		"program":    "program",
		"start_date": "start_date",
		"end_date":   "end_date",
		"created_at": "created_at",
	}
	column, ok := allowedSorts[filter.SortBy]
	if !ok {
		column = "start_date"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s %s ORDER BY %s %s, id ASC LIMIT %d OFFSET %d", aulaColumns, base, column, order, size, offset)
	var aulas []models.Aula
	if err := r.db.SelectContext(ctx, &aulas, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list aulas: %w", err)
	}
	for i := range aulas {
		r.anchorDates(&aulas[i])
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+base, args...); err != nil {
		return nil, 0, fmt.Errorf("count aulas: %w", err)
	}
	return aulas, total, nil
}

// ListIDs returns every aula id, used by the periodic state refresh.
func (r *AulaRepository) ListIDs(ctx context.Context) ([]string, error) {
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, `SELECT id FROM aulas ORDER BY id`); err != nil {
		return nil, fmt.Errorf("list aula ids: %w", err)
	}
	return ids, nil
}

// FindByID fetches an aula by ID.
func (r *AulaRepository) FindByID(ctx context.Context, id string) (*models.Aula, error) {
	query := "SELECT " + aulaColumns + " FROM aulas WHERE id = $1"
	var aula models.Aula
	if err := r.db.GetContext(ctx, &aula, query, id); err != nil {
		return nil, err
	}
	r.anchorDates(&aula)
	return &aula, nil
}

// ExistsByCode checks if another aula uses the same code.
func (r *AulaRepository) ExistsByCode(ctx context.Context, code string, excludeID string) (bool, error) {
	query := "SELECT 1 FROM aulas WHERE LOWER(code) = LOWER($1)"
	args := []interface{}{code}
	if excludeID != "" {
		query += " AND id <> $2"
		args = append(args, excludeID)
	}
	var exists int
	if err := r.db.GetContext(ctx, &exists, query+" LIMIT 1", args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check aula code: %w", err)
	}
	return true, nil
}

// Create inserts a new aula at revision 1.
func (r *AulaRepository) Create(ctx context.Context, exec sqlx.ExtContext, aula *models.Aula) error {
	if aula.ID == "" {
		aula.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	aula.CreatedAt = now
	aula.UpdatedAt = now
	aula.Revision = 1

	const query = `INSERT INTO aulas (` + aulaColumns + `)
VALUES (:id, :code, :program, :cycle, :frequency, :teacher_id, :start_date, :end_date, :start_time, :end_time,
:total_sessions, :state, :revision, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, aula); err != nil {
		return fmt.Errorf("insert aula: %w", err)
	}
	return nil
}

// Update writes every mutable field when the stored revision equals
// expectedRevision and bumps it. On success aula.Revision holds the new value.
func (r *AulaRepository) Update(ctx context.Context, exec sqlx.ExtContext, aula *models.Aula, expectedRevision int) error {
	now := time.Now().UTC()
	const query = `UPDATE aulas SET code = $1, cycle = $2, frequency = $3, teacher_id = $4, start_date = $5, end_date = $6,
start_time = $7, end_time = $8, total_sessions = $9, state = $10, revision = revision + 1, updated_at = $11
WHERE id = $12 AND revision = $13`
	result, err := r.exec(exec).ExecContext(ctx, query,
		aula.Code, aula.Cycle, aula.Frequency, aula.TeacherID, aula.StartDate, aula.EndDate,
		aula.StartTime, aula.EndTime, aula.TotalSessions, aula.State, now,
		aula.ID, expectedRevision,
	)
	if err != nil {
		return fmt.Errorf("update aula: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("aula rows affected: %w", err)
	}
	if affected == 0 {
		return ErrRevisionConflict
	}
	aula.Revision = expectedRevision + 1
	aula.UpdatedAt = now
	return nil
}

// UpdateState stores a derived state only if the row still holds from. It
// reports whether a row changed and leaves the revision untouched.
func (r *AulaRepository) UpdateState(ctx context.Context, exec sqlx.ExtContext, id string, from, to models.AulaState) (bool, error) {
	const query = `UPDATE aulas SET state = $1, updated_at = $2 WHERE id = $3 AND state = $4`
	result, err := r.exec(exec).ExecContext(ctx, query, to, time.Now().UTC(), id, from)
	if err != nil {
		return false, fmt.Errorf("update aula state: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("aula state rows affected: %w", err)
	}
	return affected > 0, nil
}

// Delete removes an aula when the stored revision equals expectedRevision.
func (r *AulaRepository) Delete(ctx context.Context, exec sqlx.ExtContext, id string, expectedRevision int) error {
	const query = `DELETE FROM aulas WHERE id = $1 AND revision = $2`
	result, err := r.exec(exec).ExecContext(ctx, query, id, expectedRevision)
	if err != nil {
		return fmt.Errorf("delete aula: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("aula rows affected: %w", err)
	}
	if affected == 0 {
		return ErrRevisionConflict
	}
	return nil
}

func anchorClock(clk *clock.Clock) *clock.Clock {
	if clk == nil {
		return clock.New(clock.DefaultOffsetHours)
	}
	return clk
}

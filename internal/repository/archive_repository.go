package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sfd-aulas-api/internal/models"
)

const archiveColumns = `id, aula_id, code, program, cycle, reason, aula, sessions, session_count, archived_at`

// ArchiveRepository stores immutable aula snapshots. There is no update or
// delete path.
type ArchiveRepository struct {
	db *sqlx.DB
}

// NewArchiveRepository constructs the repository.
func NewArchiveRepository(db *sqlx.DB) *ArchiveRepository {
	return &ArchiveRepository{db: db}
}

func (r *ArchiveRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// Create inserts a snapshot.
func (r *ArchiveRepository) Create(ctx context.Context, exec sqlx.ExtContext, archive *models.AulaArchive) error {
	if archive.ID == "" {
		archive.ID = uuid.NewString()
	}
	if archive.ArchivedAt.IsZero() {
		archive.ArchivedAt = time.Now().UTC()
	}
	const query = `INSERT INTO aula_archives (` + archiveColumns + `)
VALUES (:id, :aula_id, :code, :program, :cycle, :reason, :aula, :sessions, :session_count, :archived_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, archive); err != nil {
		return fmt.Errorf("insert aula archive: %w", err)
	}
	return nil
}

// FindByID retrieves one snapshot including its payloads.
func (r *ArchiveRepository) FindByID(ctx context.Context, id string) (*models.AulaArchive, error) {
	var archive models.AulaArchive
	if err := r.db.GetContext(ctx, &archive, "SELECT "+archiveColumns+" FROM aula_archives WHERE id = $1", id); err != nil {
		return nil, err
	}
	return &archive, nil
}

// List returns snapshots newest first. Payload columns are left out.
func (r *ArchiveRepository) List(ctx context.Context, filter models.ArchiveFilter) ([]models.AulaArchive, int, error) {
	base := "FROM aula_archives WHERE 1=1"
	var conditions []string
	var args []interface{}
	if filter.AulaID != "" {
		conditions = append(conditions, fmt.Sprintf("aula_id = $%d", len(args)+1))
		args = append(args, filter.AulaID)
	}
	if filter.Program != "" {
		conditions = append(conditions, fmt.Sprintf("program = $%d", len(args)+1))
		args = append(args, filter.Program)
	}
	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	limit := filter.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`SELECT id, aula_id, code, program, cycle, reason, session_count, archived_at %s
ORDER BY archived_at DESC LIMIT %d OFFSET %d`, base, limit, offset)
	var archives []models.AulaArchive
	if err := r.db.SelectContext(ctx, &archives, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list aula archives: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+base, args...); err != nil {
		return nil, 0, fmt.Errorf("count aula archives: %w", err)
	}
	return archives, total, nil
}

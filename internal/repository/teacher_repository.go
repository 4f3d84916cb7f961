package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sfd-aulas-api/internal/models"
)

const rosterColumns = `id, email, full_name, phone, active, created_at, updated_at`

// rosterSorts maps accepted sort keys to columns. The default keeps teachers
// who can still be assigned to an aula at the top.
var rosterSorts = map[string]string{
	"full_name":  "full_name",
	"email":      "email",
	"created_at": "created_at",
}

// TeacherRepository is the read side of the teacher roster. Aulas, sessions
// and replacements point at these rows; nothing here writes them.
type TeacherRepository struct {
	db *sqlx.DB
}

// NewTeacherRepository constructs a TeacherRepository.
func NewTeacherRepository(db *sqlx.DB) *TeacherRepository {
	return &TeacherRepository{db: db}
}

// List pages through the roster for teacher pickers, optionally restricted to
// active teachers and a name or email fragment.
func (r *TeacherRepository) List(ctx context.Context, filter models.TeacherFilter) ([]models.Teacher, int, error) {
	where := []string{"1=1"}
	var args []interface{}
	if filter.Active != nil {
		args = append(args, *filter.Active)
		where = append(where, fmt.Sprintf("active = $%d", len(args)))
	}
	if filter.Search != "" {
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
		where = append(where, fmt.Sprintf("(LOWER(full_name) LIKE $%[1]d OR LOWER(email) LIKE $%[1]d)", len(args)))
	}
	base := "FROM teachers WHERE " + strings.Join(where, " AND ")

	orderBy := "active DESC, full_name ASC"
	if column, ok := rosterSorts[filter.SortBy]; ok {
		direction := "ASC"
		if strings.EqualFold(filter.SortOrder, "desc") {
			direction = "DESC"
		}
		orderBy = column + " " + direction
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}

	query := fmt.Sprintf("SELECT %s %s ORDER BY %s, id ASC LIMIT %d OFFSET %d", rosterColumns, base, orderBy, size, (page-1)*size)
	var teachers []models.Teacher
	if err := r.db.SelectContext(ctx, &teachers, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list roster: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+base, args...); err != nil {
		return nil, 0, fmt.Errorf("count roster: %w", err)
	}
	return teachers, total, nil
}

// FindByID resolves the teacher an aula or session refers to. A missing row
// comes back as sql.ErrNoRows.
func (r *TeacherRepository) FindByID(ctx context.Context, id string) (*models.Teacher, error) {
	var teacher models.Teacher
	if err := r.db.GetContext(ctx, &teacher, "SELECT "+rosterColumns+" FROM teachers WHERE id = $1", id); err != nil {
		return nil, err
	}
	return &teacher, nil
}

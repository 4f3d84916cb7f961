package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/sfd-aulas-api/internal/models"
	appErrors "github.com/noah-isme/sfd-aulas-api/pkg/errors"
)

type mockTeacherRepo struct {
	items      map[string]*models.Teacher
	listResult []models.Teacher
	listTotal  int
	listErr    error
	lastFilter models.TeacherFilter
}

func (m *mockTeacherRepo) List(ctx context.Context, filter models.TeacherFilter) ([]models.Teacher, int, error) {
	m.lastFilter = filter
	if m.listErr != nil {
		return nil, 0, m.listErr
	}
	return m.listResult, m.listTotal, nil
}

func (m *mockTeacherRepo) FindByID(ctx context.Context, id string) (*models.Teacher, error) {
	if teacher, ok := m.items[id]; ok {
		cp := *teacher
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func TestTeacherServiceList(t *testing.T) {
	repo := &mockTeacherRepo{listResult: []models.Teacher{{ID: "t1", FullName: "Li Wei", Active: true}}, listTotal: 1}
	svc := NewTeacherService(repo, zap.NewNop())

	teachers, pagination, err := svc.List(context.Background(), models.TeacherFilter{Search: "  li "})
	require.NoError(t, err)
	assert.Len(t, teachers, 1)
	assert.Equal(t, "li", repo.lastFilter.Search)
	assert.Equal(t, 1, repo.lastFilter.Page)
	assert.Equal(t, 20, repo.lastFilter.PageSize)
	assert.Equal(t, 1, pagination.Page)
	assert.Equal(t, 20, pagination.PageSize)
	assert.Equal(t, 1, pagination.TotalCount)
}

func TestTeacherServiceListError(t *testing.T) {
	svc := NewTeacherService(&mockTeacherRepo{listErr: errors.New("boom")}, nil)

	_, _, err := svc.List(context.Background(), models.TeacherFilter{})
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrInternal.Code, appErr.Code)
}

func TestTeacherServiceGetNotFound(t *testing.T) {
	svc := NewTeacherService(&mockTeacherRepo{}, nil)

	_, err := svc.Get(context.Background(), "missing")
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}

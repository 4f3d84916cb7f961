package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sfd-aulas-api/internal/models"
)

func TestIncidentRepositoryCreateDefaultsStatus(t *testing.T) {
	db, mock, cleanup := newAulaRepoMock(t)
	defer cleanup()
	repo := NewIncidentRepository(db, nil)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO aula_incidents")).
		WithArgs(sqlmock.AnyArg(), "a-1", "CG-01", "s-2", 2, "reschedule", sqlmock.AnyArg(), sqlmock.AnyArg(),
			nil, "teacher sick", "approved", "admin@example.com", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	newDate := time.Date(2025, 11, 11, 5, 0, 0, 0, time.UTC)
	incident := &models.Incident{
		AulaID: "a-1", AulaCode: "CG-01", SessionID: "s-2", SessionNumber: 2, Type: models.IncidentTypeReschedule,
		OriginalDate: newDate.AddDate(0, 0, -5), NewDate: &newDate, Reason: "teacher sick", RegisteredBy: "admin@example.com",
	}
	require.NoError(t, repo.Create(context.Background(), nil, incident))
	assert.Equal(t, models.IncidentStatusApproved, incident.Status)
	assert.NotEmpty(t, incident.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIncidentRepositoryListByAula(t *testing.T) {
	db, mock, cleanup := newAulaRepoMock(t)
	defer cleanup()
	repo := NewIncidentRepository(db, nil)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "aula_id", "aula_code", "session_id", "session_number", "type", "original_date",
		"new_date", "replacement_teacher_id", "reason", "status", "registered_by", "created_at"}).
		AddRow("i-1", "a-1", "CG-01", "s-3", 3, "replacement", now, nil, "t-9", "", "approved", "admin", now)
	mock.ExpectQuery(regexp.QuoteMeta("FROM aula_incidents WHERE aula_id = $1 ORDER BY created_at DESC")).
		WithArgs("a-1").
		WillReturnRows(rows)

	list, err := repo.ListByAula(context.Background(), "a-1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, models.IncidentTypeReplacement, list[0].Type)
	assert.Nil(t, list[0].NewDate)
	assert.NoError(t, mock.ExpectationsWereMet())
}

package service

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/sfd-aulas-api/internal/dto"
	"github.com/noah-isme/sfd-aulas-api/internal/models"
	"github.com/noah-isme/sfd-aulas-api/internal/repository"
	"github.com/noah-isme/sfd-aulas-api/internal/scheduling"
	"github.com/noah-isme/sfd-aulas-api/pkg/clock"
	"github.com/noah-isme/sfd-aulas-api/pkg/events"
)

type txProviderMock struct {
	db   *sqlx.DB
	mock sqlmock.Sqlmock
}

func newTxProviderMock(t *testing.T) (txProvider, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	sqlxdb := sqlx.NewDb(db, "sqlmock")
	t.Cleanup(func() { db.Close() })
	return &txProviderMock{db: sqlxdb, mock: mock}, mock
}

func (t *txProviderMock) BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error) {
	return t.db.BeginTxx(ctx, opts)
}

type mockAulaRepo struct {
	mu            sync.Mutex
	items         map[string]*models.Aula
	codes         map[string]string
	forceConflict bool
	stateWrites   int
}

func newMockAulaRepo(aulas ...models.Aula) *mockAulaRepo {
	repo := &mockAulaRepo{items: map[string]*models.Aula{}, codes: map[string]string{}}
	for _, a := range aulas {
		cp := a
		repo.items[a.ID] = &cp
		repo.codes[a.Code] = a.ID
	}
	return repo
}

func (m *mockAulaRepo) List(ctx context.Context, filter models.AulaFilter) ([]models.Aula, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Aula
	for _, a := range m.items {
		if filter.Program != "" && a.Program != filter.Program {
			continue
		}
		out = append(out, *a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, len(out), nil
}

func (m *mockAulaRepo) ListIDs(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.items))
	for id := range m.items {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (m *mockAulaRepo) FindByID(ctx context.Context, id string) (*models.Aula, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.items[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *a
	return &cp, nil
}

func (m *mockAulaRepo) ExistsByCode(ctx context.Context, code string, excludeID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	owner, ok := m.codes[code]
	return ok && owner != excludeID, nil
}

func (m *mockAulaRepo) Create(ctx context.Context, exec sqlx.ExtContext, aula *models.Aula) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	aula.Revision = 1
	cp := *aula
	m.items[aula.ID] = &cp
	m.codes[aula.Code] = aula.ID
	return nil
}

func (m *mockAulaRepo) Update(ctx context.Context, exec sqlx.ExtContext, aula *models.Aula, expectedRevision int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.items[aula.ID]
	if !ok || m.forceConflict || stored.Revision != expectedRevision {
		return repository.ErrRevisionConflict
	}
	aula.Revision = expectedRevision + 1
	cp := *aula
	m.items[aula.ID] = &cp
	m.codes[aula.Code] = aula.ID
	return nil
}

func (m *mockAulaRepo) UpdateState(ctx context.Context, exec sqlx.ExtContext, id string, from, to models.AulaState) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.items[id]
	if !ok || stored.State != from {
		return false, nil
	}
	stored.State = to
	m.stateWrites++
	return true, nil
}

func (m *mockAulaRepo) Delete(ctx context.Context, exec sqlx.ExtContext, id string, expectedRevision int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.items[id]
	if !ok || m.forceConflict || stored.Revision != expectedRevision {
		return repository.ErrRevisionConflict
	}
	delete(m.codes, stored.Code)
	delete(m.items, id)
	return nil
}

func (m *mockAulaRepo) get(id string) *models.Aula {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.items[id]
	if !ok {
		return nil
	}
	cp := *a
	return &cp
}

type mockSessionRepo struct {
	mu      sync.Mutex
	byAula  map[string][]models.Session
	updates [][]models.Session
}

func newMockSessionRepo(sessions ...models.Session) *mockSessionRepo {
	repo := &mockSessionRepo{byAula: map[string][]models.Session{}}
	for _, s := range sessions {
		repo.byAula[s.AulaID] = append(repo.byAula[s.AulaID], s)
	}
	return repo
}

func (m *mockSessionRepo) ListByAula(ctx context.Context, aulaID string) ([]models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := append([]models.Session(nil), m.byAula[aulaID]...)
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out, nil
}

func (m *mockSessionRepo) BulkInsert(ctx context.Context, exec sqlx.ExtContext, sessions []models.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range sessions {
		m.byAula[s.AulaID] = append(m.byAula[s.AulaID], s)
	}
	return nil
}

func (m *mockSessionRepo) UpdateSchedule(ctx context.Context, exec sqlx.ExtContext, sessions []models.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updates = append(m.updates, sessions)
	for _, changed := range sessions {
		list := m.byAula[changed.AulaID]
		found := false
		for i := range list {
			if list[i].ID == changed.ID {
				list[i] = changed
				found = true
			}
		}
		if !found {
			return fmt.Errorf("session %s: %w", changed.ID, repository.ErrRevisionConflict)
		}
	}
	return nil
}

func (m *mockSessionRepo) DeleteByAula(ctx context.Context, exec sqlx.ExtContext, aulaID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := len(m.byAula[aulaID])
	delete(m.byAula, aulaID)
	return int64(n), nil
}

func (m *mockSessionRepo) list(aulaID string) []models.Session {
	out, _ := m.ListByAula(context.Background(), aulaID)
	return out
}

type mockIncidentRepo struct {
	items []models.Incident
}

func (m *mockIncidentRepo) Create(ctx context.Context, exec sqlx.ExtContext, incident *models.Incident) error {
	m.items = append(m.items, *incident)
	return nil
}

func (m *mockIncidentRepo) ListByAula(ctx context.Context, aulaID string) ([]models.Incident, error) {
	var out []models.Incident
	for _, i := range m.items {
		if i.AulaID == aulaID {
			out = append(out, i)
		}
	}
	return out, nil
}

type mockArchiveRepo struct {
	items []models.AulaArchive
}

func (m *mockArchiveRepo) Create(ctx context.Context, exec sqlx.ExtContext, archive *models.AulaArchive) error {
	m.items = append(m.items, *archive)
	return nil
}

func (m *mockArchiveRepo) FindByID(ctx context.Context, id string) (*models.AulaArchive, error) {
	for _, a := range m.items {
		if a.ID == id {
			cp := a
			return &cp, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockArchiveRepo) List(ctx context.Context, filter models.ArchiveFilter) ([]models.AulaArchive, int, error) {
	var out []models.AulaArchive
	for _, a := range m.items {
		if filter.AulaID != "" && a.AulaID != filter.AulaID {
			continue
		}
		out = append(out, a)
	}
	return out, len(out), nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.ChangeEvent
	err    error
}

func (p *recordingPublisher) Publish(ctx context.Context, evt events.ChangeEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evt)
	return p.err
}

func (p *recordingPublisher) kinds() []events.ChangeKind {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]events.ChangeKind, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Kind)
	}
	return out
}

type aulaFixture struct {
	clock     *clock.Clock
	aulas     *mockAulaRepo
	sessions  *mockSessionRepo
	teachers  *mockTeacherRepo
	incidents *mockIncidentRepo
	archives  *mockArchiveRepo
	publisher *recordingPublisher
	mock      sqlmock.Sqlmock
	deps      AulaDeps
}

func sequentialIDs(prefix string) func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("%s-%d", prefix, n)
	}
}

// newAulaFixture wires every aula service collaborator with in-memory stores
// and a clock frozen at now. December 8 and 25 of 2025 are holidays.
func newAulaFixture(t *testing.T, now time.Time, aulas []models.Aula, sessions []models.Session) *aulaFixture {
	t.Helper()
	clk := clock.New(clock.DefaultOffsetHours).WithNow(func() time.Time { return now })
	calendar, err := scheduling.NewCalendar(clk, []string{"2025-12-08", "2025-12-25"})
	require.NoError(t, err)
	catalog, err := scheduling.NewCatalog(nil, nil)
	require.NoError(t, err)
	generator := scheduling.NewGenerator(calendar)
	tx, mock := newTxProviderMock(t)

	f := &aulaFixture{
		clock:    clk,
		aulas:    newMockAulaRepo(aulas...),
		sessions: newMockSessionRepo(sessions...),
		teachers: &mockTeacherRepo{items: map[string]*models.Teacher{
			"t-1": {ID: "t-1", FullName: "Li Wei", Active: true},
			"t-2": {ID: "t-2", FullName: "Zhang Min", Active: true},
			"t-9": {ID: "t-9", FullName: "Retired", Active: false},
		}},
		incidents: &mockIncidentRepo{},
		archives:  &mockArchiveRepo{},
		publisher: &recordingPublisher{},
		mock:      mock,
	}
	f.deps = AulaDeps{
		Aulas:     f.aulas,
		Sessions:  f.sessions,
		Teachers:  f.teachers,
		Tx:        tx,
		Catalog:   catalog,
		Generator: generator,
		Publisher: f.publisher,
		Validator: dto.NewValidator(),
		Logger:    zap.NewNop(),
		NewID:     sequentialIDs("id"),
	}
	return f
}

// tueThuAula returns a Chino General aula meeting Tuesday and Thursday 19:00
// to 21:40 with sessions on the given November 2025 days.
func tueThuAula(clk *clock.Clock, days ...int) (models.Aula, []models.Session) {
	var sessions []models.Session
	for i, day := range days {
		date := clk.MakeDate(2025, time.November, day)
		sessions = append(sessions, models.Session{
			ID:       fmt.Sprintf("s-%d", i+1),
			AulaID:   "aula-1",
			Number:   i + 1,
			Date:     date,
			StartsAt: clk.MakeDate(2025, time.November, day, 19, 0),
			EndsAt:   clk.MakeDate(2025, time.November, day, 21, 40),
			Status:   models.SessionStatusScheduled,
		})
	}
	end := sessions[len(sessions)-1].Date
	aula := models.Aula{
		ID:            "aula-1",
		Code:          "CHG-01",
		Program:       "Chino General",
		Cycle:         1,
		Frequency:     scheduling.FrequencyTueThu,
		TeacherID:     "t-1",
		StartDate:     sessions[0].Date,
		EndDate:       &end,
		StartTime:     "19:00",
		EndTime:       "21:40",
		TotalSessions: len(sessions),
		State:         models.AulaStateUpcoming,
		Revision:      1,
	}
	return aula, sessions
}

func dateStrings(clk *clock.Clock, sessions []models.Session) []string {
	out := make([]string, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, clk.FormatDate(s.Date))
	}
	return out
}

package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sfd-aulas-api/internal/models"
	"github.com/noah-isme/sfd-aulas-api/internal/service"
	appErrors "github.com/noah-isme/sfd-aulas-api/pkg/errors"
)

func TestMetricsHandlerReady(t *testing.T) {
	gin.SetMode(gin.TestMode)
	healthy := PingFunc(func(context.Context) error { return nil })
	broken := PingFunc(func(context.Context) error { return errors.New("dial tcp: refused") })

	router := gin.New()
	router.GET("/ready-ok", NewMetricsHandler(nil, map[string]Pinger{"postgres": healthy}).Ready)
	router.GET("/ready-bad", NewMetricsHandler(nil, map[string]Pinger{"postgres": healthy, "redis": broken}).Ready)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready-ok", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready-bad", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "refused")
}

func TestMetricsHandlerPrometheus(t *testing.T) {
	gin.SetMode(gin.TestMode)
	metrics := service.NewMetricsService()
	metrics.AddSessionsGenerated(2)
	h := NewMetricsHandler(metrics, nil)

	router := gin.New()
	router.GET("/metrics", h.Prometheus)
	router.GET("/health", h.Health)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "aula_sessions_generated_total 2")

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

type fakeTeacherSrv struct {
	lastFilter models.TeacherFilter
}

func (f *fakeTeacherSrv) List(_ context.Context, filter models.TeacherFilter) ([]models.Teacher, *models.Pagination, error) {
	f.lastFilter = filter
	return []models.Teacher{{ID: "t-1", FullName: "Li Wei"}}, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: 1}, nil
}

func (f *fakeTeacherSrv) Get(_ context.Context, id string) (*models.Teacher, error) {
	if id != "t-1" {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
	}
	return &models.Teacher{ID: id, FullName: "Li Wei"}, nil
}

func TestTeacherHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	srv := &fakeTeacherSrv{}
	h := NewTeacherHandler(srv)
	router := gin.New()
	router.GET("/teachers", h.List)
	router.GET("/teachers/:id", h.Get)

	rec := serve(router, http.MethodGet, "/teachers?active=true&limit=5", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, srv.lastFilter.Active)
	assert.True(t, *srv.lastFilter.Active)
	assert.Equal(t, 5, srv.lastFilter.PageSize)

	rec = serve(router, http.MethodGet, "/teachers/t-404", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

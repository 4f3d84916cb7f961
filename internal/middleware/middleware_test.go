package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/noah-isme/sfd-aulas-api/internal/models"
	"github.com/noah-isme/sfd-aulas-api/internal/service"
	appErrors "github.com/noah-isme/sfd-aulas-api/pkg/errors"
)

type stubValidator struct {
	claims map[string]*models.JWTClaims
}

func (s stubValidator) ValidateToken(token string) (*models.JWTClaims, error) {
	if claims, ok := s.claims[token]; ok {
		return claims, nil
	}
	return nil, appErrors.Wrap(errors.New("bad token"), appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid token")
}

func newProtectedRouter(handlers ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	validator := stubValidator{claims: map[string]*models.JWTClaims{
		"admin":   {UserID: "u-1", Role: models.RoleAdmin},
		"teacher": {UserID: "u-2", Role: models.RoleTeacher},
	}}
	router := gin.New()
	chain := append([]gin.HandlerFunc{JWT(validator)}, handlers...)
	chain = append(chain, func(c *gin.Context) { c.Status(http.StatusNoContent) })
	router.POST("/aulas/:id", chain...)
	return router
}

func doRequest(router *gin.Engine, auth string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/aulas/aula-1", nil)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestJWTMiddleware(t *testing.T) {
	router := newProtectedRouter()

	assert.Equal(t, http.StatusUnauthorized, doRequest(router, "").Code)
	assert.Equal(t, http.StatusUnauthorized, doRequest(router, "Token admin").Code)
	assert.Equal(t, http.StatusUnauthorized, doRequest(router, "Bearer nope").Code)
	assert.Equal(t, http.StatusNoContent, doRequest(router, "Bearer admin").Code)
	assert.Equal(t, http.StatusNoContent, doRequest(router, "bearer teacher").Code)
}

func TestRequireRoles(t *testing.T) {
	router := newProtectedRouter(RequireRoles(Operators...))

	assert.Equal(t, http.StatusNoContent, doRequest(router, "Bearer admin").Code)
	assert.Equal(t, http.StatusForbidden, doRequest(router, "Bearer teacher").Code)
}

func TestRequireRolesWithoutClaims(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/", RequireRoles(Readers...), func(c *gin.Context) { c.Status(http.StatusOK) })

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuditLogsSuccessfulChanges(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	router := newProtectedRouter(Audit(zap.New(core), "aula.update"))

	require.Equal(t, http.StatusNoContent, doRequest(router, "Bearer admin").Code)
	require.Equal(t, http.StatusUnauthorized, doRequest(router, "Bearer nope").Code)

	entries := logs.FilterMessage("aula change").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "aula.update", fields["action"])
	assert.Equal(t, "u-1", fields["user_id"])
	assert.Equal(t, "aula-1", fields["aula_id"])
}

func TestMetricsMiddlewareObservesRoute(t *testing.T) {
	gin.SetMode(gin.TestMode)
	metrics := service.NewMetricsService()
	router := gin.New()
	router.Use(Metrics(metrics))
	router.GET("/aulas/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/aulas/x", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, uint64(1), metrics.Snapshot().RequestsTotal)
}

func TestResponseMeta(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	var meta map[string]interface{}
	router.GET("/", WithResponseMeta(), func(c *gin.Context) {
		SetMeta(c, "derived", true)
		meta = ExtractMeta(c)
		c.Status(http.StatusOK)
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NotNil(t, meta)
	assert.Equal(t, true, meta["derived"])
	assert.Contains(t, meta, "processing_time_ms")
}

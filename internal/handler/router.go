package handler

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/sfd-aulas-api/internal/middleware"
	"github.com/noah-isme/sfd-aulas-api/internal/models"
	"github.com/noah-isme/sfd-aulas-api/internal/service"
	"github.com/noah-isme/sfd-aulas-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/sfd-aulas-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/sfd-aulas-api/pkg/middleware/requestid"
)

type tokenValidator interface {
	ValidateToken(token string) (*models.JWTClaims, error)
}

// RouterConfig gathers everything the HTTP surface is built from.
type RouterConfig struct {
	APIPrefix   string
	CORSOrigins []string
	EnableDocs  bool
	Logger      *zap.Logger
	Metrics     *service.MetricsService
	Auth        tokenValidator

	Aulas    *AulaHandler
	Sessions *SessionHandler
	Cycles   *CycleHandler
	Teachers *TeacherHandler
	Ops      *MetricsHandler
}

// NewRouter builds the gin engine with the middleware chain and every route.
// Teachers may read everything; only admins change aulas.
func NewRouter(cfg RouterConfig) *gin.Engine {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(cfg.Logger))
	r.Use(corsmiddleware.New(cfg.CORSOrigins))
	r.Use(middleware.Metrics(cfg.Metrics))

	r.GET("/health", cfg.Ops.Health)
	r.GET("/ready", cfg.Ops.Ready)
	r.GET("/metrics", cfg.Ops.Prometheus)
	if cfg.EnableDocs {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.JWT(cfg.Auth), middleware.WithResponseMeta())

	read := api.Group("", middleware.RequireRoles(middleware.Readers...))
	read.GET("/programs", cfg.Aulas.Programs)
	read.GET("/teachers", cfg.Teachers.List)
	read.GET("/teachers/:id", cfg.Teachers.Get)
	read.GET("/aulas", cfg.Aulas.List)
	read.GET("/aulas/:id", cfg.Aulas.Get)
	read.GET("/aulas/:id/sessions", cfg.Aulas.Sessions)
	read.GET("/aulas/:id/sessions/export", cfg.Aulas.Export)
	read.GET("/aulas/:id/incidents", cfg.Sessions.Incidents)
	read.GET("/aulas/:id/advance/preview", cfg.Cycles.Preview)
	read.GET("/archives", cfg.Cycles.ListArchives)
	read.GET("/archives/:id", cfg.Cycles.GetArchive)

	write := api.Group("", middleware.RequireRoles(middleware.Operators...))
	write.POST("/aulas", middleware.Audit(cfg.Logger, "aula.create"), cfg.Aulas.Create)
	write.PUT("/aulas/:id", middleware.Audit(cfg.Logger, "aula.update"), cfg.Aulas.Update)
	write.DELETE("/aulas/:id", middleware.Audit(cfg.Logger, "aula.delete"), cfg.Aulas.Delete)
	write.POST("/aulas/:id/sessions/:sessionId/reschedule", middleware.Audit(cfg.Logger, "session.reschedule"), cfg.Sessions.Reschedule)
	write.POST("/aulas/:id/sessions/:sessionId/replacement", middleware.Audit(cfg.Logger, "session.replacement"), cfg.Sessions.Replacement)
	write.POST("/aulas/:id/state/refresh", middleware.Audit(cfg.Logger, "aula.state_refresh"), cfg.Aulas.RefreshState)
	write.POST("/aulas/:id/advance", middleware.Audit(cfg.Logger, "aula.advance"), cfg.Cycles.Advance)
	write.POST("/aulas/:id/close", middleware.Audit(cfg.Logger, "aula.close"), cfg.Cycles.Close)

	return r
}

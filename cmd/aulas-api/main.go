package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	_ "github.com/noah-isme/sfd-aulas-api/api/swagger"
	"github.com/noah-isme/sfd-aulas-api/internal/handler"
	"github.com/noah-isme/sfd-aulas-api/internal/repository"
	"github.com/noah-isme/sfd-aulas-api/internal/scheduling"
	"github.com/noah-isme/sfd-aulas-api/internal/service"
	"github.com/noah-isme/sfd-aulas-api/pkg/cache"
	"github.com/noah-isme/sfd-aulas-api/pkg/clock"
	"github.com/noah-isme/sfd-aulas-api/pkg/config"
	"github.com/noah-isme/sfd-aulas-api/pkg/database"
	"github.com/noah-isme/sfd-aulas-api/pkg/events"
	"github.com/noah-isme/sfd-aulas-api/pkg/logger"
)

// @title SFD Aulas API
// @version 1.0.0
// @description Aula scheduling: session calendars, reschedules, cycle advancement and archives.
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer db.Close()

	var redisClient *redis.Client
	if cfg.Cache.Enabled || cfg.ChangeFeed.Enabled {
		redisClient, err = cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logr.Fatal("failed to connect to redis", zap.Error(err))
		}
		defer redisClient.Close()
	}

	clk := clock.New(cfg.Scheduling.UTCOffsetHours)
	calendar, err := scheduling.NewCalendar(clk, cfg.Scheduling.Holidays)
	if err != nil {
		logr.Fatal("invalid holiday calendar", zap.Error(err))
	}
	catalog, err := catalogFromConfig(cfg.Scheduling.Catalog)
	if err != nil {
		logr.Fatal("invalid program catalog", zap.Error(err))
	}
	generator := scheduling.NewGenerator(calendar,
		scheduling.WithHorizonDays(cfg.Scheduling.HorizonDays),
		scheduling.WithLogger(logr.Named("scheduling")),
	)

	metrics := service.NewMetricsService()

	var cacheSvc *service.CacheService
	if cfg.Cache.Enabled && redisClient != nil {
		cacheRepo := repository.NewCacheRepository(redisClient, "sfd", logr)
		cacheSvc = service.NewCacheService(cacheRepo, metrics, cfg.Cache.TTL, logr, true)
	}

	var feed events.Feed = events.NewLocalFeed()
	if cfg.ChangeFeed.Enabled && redisClient != nil {
		feed = events.NewRedisFeed(redisClient, cfg.ChangeFeed.Channel, logr.Named("feed"))
	}

	aulaRepo := repository.NewAulaRepository(db, clk)
	sessionRepo := repository.NewSessionRepository(db, clk)
	teacherRepo := repository.NewTeacherRepository(db)

	deps := service.AulaDeps{
		Aulas:     aulaRepo,
		Sessions:  sessionRepo,
		Teachers:  teacherRepo,
		Tx:        db,
		Catalog:   catalog,
		Generator: generator,
		Publisher: feed,
		Cache:     cacheSvc,
		Metrics:   metrics,
		Logger:    logr,
	}

	aulaSvc := service.NewAulaService(deps)
	sessionSvc := service.NewSessionService(deps, repository.NewIncidentRepository(db, clk))
	cycleSvc := service.NewCycleService(deps, repository.NewArchiveRepository(db))
	teacherSvc := service.NewTeacherService(teacherRepo, logr)
	exportSvc := service.NewExportService(aulaSvc, teacherRepo, clk, logr, nil, nil)
	authSvc := service.NewAuthService(logr, service.AuthConfig{AccessTokenSecret: cfg.JWT.Secret, Issuer: cfg.JWT.Issuer})

	stateSvc := service.NewStateService(deps, feed, service.StateRefreshConfig{
		Interval: cfg.StateRefresh.Interval,
		Workers:  cfg.StateRefresh.Workers,
		Retries:  cfg.StateRefresh.Retries,
	})
	if err := stateSvc.Start(ctx); err != nil {
		logr.Fatal("failed to start state refresher", zap.Error(err))
	}
	defer stateSvc.Stop()

	readiness := map[string]handler.Pinger{"postgres": db}
	if redisClient != nil {
		readiness["redis"] = handler.PingFunc(func(ctx context.Context) error { return redisClient.Ping(ctx).Err() })
	}

	router := handler.NewRouter(handler.RouterConfig{
		APIPrefix:   cfg.APIPrefix,
		CORSOrigins: cfg.CORS.AllowedOrigins,
		EnableDocs:  cfg.Env != config.EnvProduction,
		Logger:      logr,
		Metrics:     metrics,
		Auth:        authSvc,
		Aulas:       handler.NewAulaHandler(aulaSvc, stateSvc, exportSvc),
		Sessions:    handler.NewSessionHandler(sessionSvc),
		Cycles:      handler.NewCycleHandler(cycleSvc),
		Teachers:    handler.NewTeacherHandler(teacherSvc),
		Ops:         handler.NewMetricsHandler(metrics, readiness),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}

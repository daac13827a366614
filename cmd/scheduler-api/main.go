package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/easydeed/reportscompany-sub005/api/swagger"
	"github.com/easydeed/reportscompany-sub005/internal/handler"
	"github.com/easydeed/reportscompany-sub005/internal/middleware"
	"github.com/easydeed/reportscompany-sub005/internal/repository"
	"github.com/easydeed/reportscompany-sub005/internal/service"
	"github.com/easydeed/reportscompany-sub005/pkg/cache"
	"github.com/easydeed/reportscompany-sub005/pkg/config"
	"github.com/easydeed/reportscompany-sub005/pkg/database"
	"github.com/easydeed/reportscompany-sub005/pkg/jobs"
	"github.com/easydeed/reportscompany-sub005/pkg/logger"
	"github.com/easydeed/reportscompany-sub005/pkg/mailer"
	corsmiddleware "github.com/easydeed/reportscompany-sub005/pkg/middleware/cors"
	reqidmiddleware "github.com/easydeed/reportscompany-sub005/pkg/middleware/requestid"
	"github.com/easydeed/reportscompany-sub005/pkg/storage"
)

// @title ReportsCompany Scheduler API
// @version 0.1.0
// @description Recurring MLS report schedules and delivery
// @BasePath /api/v1
// @schemes http

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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, caching and run locks disabled", "error", err)
		redisClient = nil
	}

	scheduleRepo := repository.NewScheduleRepository(db)
	runRepo := repository.NewRunRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	metricsSvc := service.NewMetricsService()
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Schedules.ListCacheTTL, logr, redisClient != nil)

	scheduleSvc := service.NewScheduleService(scheduleRepo, cacheSvc, nil, logr, service.ScheduleServiceConfig{
		DefaultTimezone: cfg.Schedules.DefaultTimezone,
		PreviewCount:    cfg.Schedules.PreviewCount,
		ListCacheTTL:    cfg.Schedules.ListCacheTTL,
	})

	artifacts, err := storage.NewArtifactStore(cfg.Artifacts.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init artifact store", "error", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Artifacts.SignedURLSecret, cfg.Artifacts.SignedURLTTL)
	smtp := mailer.New(cfg.SMTP)

	runner := service.NewRunnerService(
		scheduleRepo,
		runRepo,
		nil, // queue is wired below once the handler exists
		cacheSvc,
		metricsSvc,
		service.NewStubListingSource(),
		service.NewEmailOnlyResolver(logr),
		artifacts,
		signer,
		smtp,
		logr,
		service.RunnerServiceConfig{
			TickSpec:        cfg.Runner.TickSpec,
			ClaimBatchSize:  cfg.Runner.ClaimBatchSize,
			RunLockTTL:      cfg.Runner.RunLockTTL,
			ResultTTL:       cfg.Artifacts.ResultTTL,
			CleanupInterval: cfg.Artifacts.CleanupInterval,
			APIPrefix:       cfg.APIPrefix,
		},
	)

	queue := jobs.NewQueue("report-delivery", runner.Deliver, jobs.QueueConfig{
		Workers:    cfg.Runner.WorkerConcurrency,
		MaxRetries: cfg.Runner.WorkerRetries,
		Logger:     logr,
	})
	runner.SetQueue(queue)

	if cfg.Runner.Enabled {
		queue.Start(ctx)
		defer queue.Stop()

		if err := runner.RecoverQueuedRuns(ctx); err != nil {
			logr.Sugar().Warnw("queued run recovery failed", "error", err)
		}
		if err := runner.Start(ctx); err != nil {
			logr.Sugar().Fatalw("failed to start runner", "error", err)
		}
		defer runner.Stop()
		runner.StartCleanup(ctx)
	}

	scheduleHandler := handler.NewScheduleHandler(scheduleSvc)
	reportHandler := handler.NewReportHandler(runRepo, scheduleSvc, artifacts, func(token string) (string, string, error) {
		runID, relPath, _, err := signer.Parse(token, false)
		return runID, relPath, err
	})
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	// Signed link, no session required.
	api.GET("/reports/:id/artifact", reportHandler.DownloadArtifact)

	authed := api.Group("")
	authed.Use(middleware.JWT(cfg.JWT.Secret))
	{
		authed.POST("/schedules", scheduleHandler.Create)
		authed.GET("/schedules", scheduleHandler.List)
		authed.POST("/schedules/preview", scheduleHandler.Preview)
		authed.GET("/schedules/:id", scheduleHandler.Get)
		authed.PUT("/schedules/:id", scheduleHandler.Update)
		authed.DELETE("/schedules/:id", scheduleHandler.Delete)
		authed.POST("/schedules/:id/pause", scheduleHandler.Pause)
		authed.POST("/schedules/:id/resume", scheduleHandler.Resume)
		authed.GET("/schedules/:id/runs", reportHandler.ScheduleRuns)
		authed.GET("/reports/:id", reportHandler.RunStatus)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env, "runner", cfg.Runner.Enabled)

	srv := &http.Server{Addr: addr, Handler: r}
	go func() {
		<-ctx.Done()
		_ = srv.Shutdown(context.Background())
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}

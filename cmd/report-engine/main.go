package main

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/openlearnhq/report-engine/api/swagger"
	"github.com/openlearnhq/report-engine/internal/compiler"
	"github.com/openlearnhq/report-engine/internal/extrafield"
	"github.com/openlearnhq/report-engine/internal/handler"
	"github.com/openlearnhq/report-engine/internal/hydra"
	"github.com/openlearnhq/report-engine/internal/middleware"
	"github.com/openlearnhq/report-engine/internal/repository"
	"github.com/openlearnhq/report-engine/internal/service"
	"github.com/openlearnhq/report-engine/internal/warehouse"
	"github.com/openlearnhq/report-engine/pkg/cache"
	"github.com/openlearnhq/report-engine/pkg/config"
	"github.com/openlearnhq/report-engine/pkg/database"
	"github.com/openlearnhq/report-engine/pkg/jobs"
	"github.com/openlearnhq/report-engine/pkg/logger"
	corsmiddleware "github.com/openlearnhq/report-engine/pkg/middleware/cors"
	reqidmiddleware "github.com/openlearnhq/report-engine/pkg/middleware/requestid"
	"github.com/openlearnhq/report-engine/pkg/storage"
)

// @title Report Engine API
// @version 1.0.0
// @description Compiles LMS report definitions into dialect-specific analytic SQL
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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect redis", "error", err)
	}
	defer redisClient.Close()

	var inspector warehouse.Inspector
	if cfg.Warehouse.DSN != "" {
		warehouseDB, err := database.NewWarehouse(cfg.Warehouse.DSN)
		if err != nil {
			logr.Sugar().Fatalw("failed to connect warehouse", "error", err)
		}
		defer warehouseDB.Close()
		inspector = warehouse.NewSchemaInspector(warehouseDB, cfg.Warehouse.Schema, cfg.Hydra.CacheTTL)
	}

	hydraHTTP := hydra.NewHTTPClient(hydra.Options{
		BaseURL: cfg.Hydra.BaseURL,
		Token:   cfg.Hydra.Token,
		Timeout: cfg.Hydra.Timeout,
		Logger:  logr,
	})
	hydraClient := hydra.NewCachedClient(hydraHTTP, redisClient, cfg.Hydra.CacheTTL, logr)

	metricsSvc := service.NewMetricsService()
	deps := compiler.Deps{
		Hydra:    hydraClient,
		Extras:   extrafield.NewResolver(hydraClient, inspector),
		Logger:   logr,
		Unmapped: metricsSvc,
	}

	reportRepo := repository.NewReportRepository(db)
	jobRepo := repository.NewJobRepository(db)

	cacheSvc := service.NewCacheService(repository.NewCacheRepository(redisClient, logr), metricsSvc, cfg.Hydra.CacheTTL, logr, true)
	reportSvc := service.NewReportService(reportRepo, deps, metricsSvc, cacheSvc, cfg.Exports.RowLimit, logr)

	store, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init artifact storage", "error", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)

	worker := service.NewCompileWorker(reportRepo, jobRepo, reportSvc, store, cfg.Scheduler.Retries, logr)
	queue := jobs.NewQueue("compile", worker.Handle, jobs.QueueConfig{
		Workers:    cfg.Scheduler.Workers,
		BufferSize: cfg.Scheduler.QueueCapacity,
		MaxRetries: cfg.Scheduler.Retries,
		Logger:     logr,
	})

	scheduleSvc := service.NewScheduleService(reportRepo, jobRepo, queue, store, signer, logr, service.ScheduleServiceConfig{
		CronSpec:   cfg.Scheduler.CronSpec,
		Dialect:    cfg.Scheduler.Dialect,
		RowLimit:   cfg.Exports.RowLimit,
		MaxRetries: cfg.Scheduler.Retries,
		ResultTTL:  cfg.Exports.SignedURLTTL,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	queue.Start(ctx)
	defer queue.Stop()
	if cfg.Scheduler.Enabled {
		if err := scheduleSvc.Start(ctx); err != nil {
			logr.Sugar().Fatalw("failed to start scheduler", "error", err)
		}
		defer scheduleSvc.Stop()
	}

	authSvc := service.NewAuthService(service.AuthConfig{Secret: cfg.JWT.Secret, Expiry: cfg.JWT.Expiration}, logr)

	reportHandler := handler.NewReportHandler(reportSvc, scheduleSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.WithResponseMeta())
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.GET("/downloads/:token", reportHandler.Download)

	authed := api.Group("")
	authed.Use(middleware.JWT(authSvc))
	{
		authed.POST("/reports", reportHandler.Create)
		authed.GET("/reports", reportHandler.List)
		authed.GET("/reports/:id", reportHandler.Get)
		authed.DELETE("/reports/:id", reportHandler.Delete)
		authed.PUT("/reports/:id/fields", reportHandler.UpdateFields)
		authed.PUT("/reports/:id/sorting", reportHandler.UpdateSorting)
		authed.POST("/reports/:id/query", reportHandler.Compile)
		authed.POST("/reports/:id/schedule", reportHandler.Schedule)
		authed.POST("/reports/legacy-import", reportHandler.ImportLegacy)
		authed.GET("/jobs/:id", reportHandler.Job)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}

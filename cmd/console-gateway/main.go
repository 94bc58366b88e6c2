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
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/sma-class-console/api/swagger"
	"github.com/noah-isme/sma-class-console/internal/handler"
	internalmiddleware "github.com/noah-isme/sma-class-console/internal/middleware"
	"github.com/noah-isme/sma-class-console/internal/models"
	"github.com/noah-isme/sma-class-console/internal/repository"
	"github.com/noah-isme/sma-class-console/internal/service"
	"github.com/noah-isme/sma-class-console/pkg/cache"
	"github.com/noah-isme/sma-class-console/pkg/config"
	"github.com/noah-isme/sma-class-console/pkg/database"
	"github.com/noah-isme/sma-class-console/pkg/jobs"
	"github.com/noah-isme/sma-class-console/pkg/logger"
	corsmiddleware "github.com/noah-isme/sma-class-console/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/sma-class-console/pkg/middleware/requestid"
	"github.com/noah-isme/sma-class-console/pkg/storage"
	"github.com/noah-isme/sma-class-console/pkg/upstream"
)

// @title SMA Class Console API
// @version 1.0.0
// @description Gateway behind the principal console for authoring classes and their weekly schedules
// @BasePath /api/v1
// @schemes http
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

	metrics := service.NewMetricsService()
	checks := map[string]handler.ReadinessCheck{}

	client := upstream.New(cfg.Upstream.BaseURL, cfg.Upstream.Timeout,
		upstream.WithObserver(metrics),
		upstream.WithLogger(logr),
	)

	var redisClient *redis.Client
	if cfg.Drafts.Store == config.DraftStoreRedis || cfg.Reference.CacheEnabled {
		redisClient, err = cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Fatal("failed to connect redis", zap.Error(err))
		}
		defer redisClient.Close()
		checks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}

	var cacheSvc *service.CacheService
	if redisClient != nil {
		cacheSvc = service.NewCacheService(repository.NewCacheRepository(redisClient, "console"), metrics, cfg.Reference.CacheTTL, logr, cfg.Reference.CacheEnabled)
	}

	var drafts service.DraftRepository
	if cfg.Drafts.Store == config.DraftStoreMemory {
		drafts = repository.NewMemoryDraftRepository()
	} else {
		drafts = repository.NewDraftRepository(redisClient)
	}

	var (
		db         *sqlx.DB
		journalSvc *service.JournalService
		queue      *jobs.Queue
	)
	if cfg.Journal.Enabled {
		db, err = database.NewPostgres(cfg.Database)
		if err != nil {
			logr.Fatal("failed to connect database", zap.Error(err))
		}
		defer db.Close()
		checks["database"] = db.PingContext

		journalSvc = service.NewJournalService(repository.NewJournalRepository(db, metrics), logr)
		queue = jobs.NewQueue("submission-journal", journalSvc.Handle, jobs.QueueConfig{
			Workers:    cfg.Journal.Workers,
			MaxRetries: cfg.Journal.Retries,
			Logger:     logr,
		})
		queue.Start(ctx)
		journalSvc.UseQueue(queue)
	}

	draftValidator := service.NewDraftValidator(cfg.Drafts.EnforceDateOrder)
	referenceSvc := service.NewReferenceService(client, cacheSvc, cfg.Reference.CacheTTL, logr)
	classEditSvc := service.NewClassEditService(client)
	submissionSvc := service.NewSubmissionService(client, draftValidator, metrics, logr, cfg.Upstream.MaxConcurrentWrites)
	draftSvc := service.NewDraftService(drafts, referenceSvc, classEditSvc, submissionSvc, draftValidator, journalSvc,
		service.DraftConfig{TTL: cfg.Drafts.TTL, SubmitLockTTL: cfg.Drafts.SubmitLockTTL, EditLockWait: cfg.Drafts.EditLockWait}, logr)
	authSvc := service.NewAuthService(client, validator.New(), logr, cfg.JWT.Secret)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metrics))

	metricsHandler := handler.NewMetricsHandler(metrics, checks)
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	authHandler := handler.NewAuthHandler(authSvc, logr)
	api.POST("/auth/login", authHandler.Login)

	secured := api.Group("")
	secured.Use(internalmiddleware.JWT(authSvc))
	secured.GET("/auth/me", authHandler.Me)

	authoring := secured.Group("")
	authoring.Use(internalmiddleware.RequireRoles(models.AuthoringRoles...))

	referenceHandler := handler.NewReferenceHandler(referenceSvc)
	authoring.GET("/reference", referenceHandler.Get)

	draftHandler := handler.NewDraftHandler(draftSvc)
	authoring.POST("/class-drafts", draftHandler.Create)
	authoring.GET("/class-drafts/:id", draftHandler.Get)
	authoring.DELETE("/class-drafts/:id", draftHandler.Discard)
	authoring.PATCH("/class-drafts/:id", draftHandler.UpdateField)
	authoring.POST("/class-drafts/:id/slots", draftHandler.AddSlot)
	authoring.PATCH("/class-drafts/:id/slots/:index", draftHandler.UpdateSlot)
	authoring.DELETE("/class-drafts/:id/slots/:index", draftHandler.RemoveSlot)
	authoring.POST("/class-drafts/:id/validate", draftHandler.Validate)
	authoring.POST("/class-drafts/:id/submit", draftHandler.Submit)

	if journalSvc != nil {
		submissionHandler := handler.NewSubmissionHandler(referenceSvc, journalSvc)
		authoring.GET("/submissions", submissionHandler.List)
		authoring.GET("/submissions/:id", submissionHandler.Get)
	}

	if cfg.Exports.Enabled {
		store, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
		if err != nil {
			logr.Fatal("failed to prepare export storage", zap.Error(err))
		}
		signer := storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)
		timetableSvc := service.NewTimetableService(classEditSvc, referenceSvc, store, signer, cfg.APIPrefix, cfg.Exports.SignedURLTTL, logr)
		go timetableSvc.RunCleanup(ctx, cfg.Exports.CleanupInterval)

		exportHandler := handler.NewExportHandler(timetableSvc)
		authoring.POST("/classes/:id/timetable/exports", exportHandler.Create)
		api.GET("/exports/:token", exportHandler.Download)
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env, "draft_store", cfg.Drafts.Store)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Warn("graceful shutdown failed", zap.Error(err))
	}
	if queue != nil {
		queue.Stop()
	}
}

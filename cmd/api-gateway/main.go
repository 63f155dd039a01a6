package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	_ "github.com/noah-isme/permit-deadline-api/api/swagger"
	"github.com/noah-isme/permit-deadline-api/internal/handler"
	"github.com/noah-isme/permit-deadline-api/internal/permit"
	"github.com/noah-isme/permit-deadline-api/internal/repository"
	"github.com/noah-isme/permit-deadline-api/internal/service"
	"github.com/noah-isme/permit-deadline-api/pkg/cache"
	"github.com/noah-isme/permit-deadline-api/pkg/config"
	"github.com/noah-isme/permit-deadline-api/pkg/database"
	"github.com/noah-isme/permit-deadline-api/pkg/export"
	"github.com/noah-isme/permit-deadline-api/pkg/jobs"
	"github.com/noah-isme/permit-deadline-api/pkg/logger"
	"github.com/noah-isme/permit-deadline-api/pkg/storage"
)

// @title Permit Deadline API
// @version 1.0.0
// @description Residence-permit roster tracking: elapsed days, renewal deadlines and alert lists.
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

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics := service.NewMetricsService()
	checks := map[string]handler.ReadinessCheck{}

	var cacheRepo service.CacheRepository
	if cfg.Cache.Enabled {
		client, err := cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logr.Sugar().Warnw("redis unavailable, caching disabled", "addr", cache.Addr(cfg.Redis), "error", err)
		} else {
			defer client.Close() //nolint:errcheck
			cacheRepo = repository.NewCacheRepository(client, "permit", logr)
			checks["redis"] = redisCheck(client)
		}
	}
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Cache.TTL, logr, cacheRepo != nil)

	sessions := repository.NewDatasetStore(cfg.Session.TTL)
	sessions.OnEvicted(func(handle string) {
		metrics.SetDatasetsLoaded(sessions.Count())
		if err := cacheSvc.Forget(context.Background(), handle); err != nil {
			logr.Sugar().Debugw("cache cleanup after eviction failed", "handle", handle, "error", err)
		}
	})

	workbook := service.NewWorkbookService(
		service.WorkbookServiceConfig{Dir: cfg.Workbook.Dir, DefaultFile: cfg.Workbook.DefaultFile},
		export.NewXLSXWriter(),
		export.NewCSVExporter(),
		export.NewPDFExporter(cfg.Exports.PDFFontPath),
		metrics,
		logr,
	)

	// The autosave worker reads through the record service, which schedules
	// into this queue; the handler closure breaks the cycle.
	var autosaveWorker *service.AutosaveWorker
	autosaveQueue := jobs.NewQueue("autosave", func(ctx context.Context, job jobs.Job) error {
		return autosaveWorker.Handle(ctx, job)
	}, jobs.QueueConfig{Workers: 1, MaxRetries: 2, RetryDelay: 2 * time.Second, Logger: logr})
	autosave := service.NewAutosaveService(autosaveQueue, cfg.Workbook.Autosave, logr)

	records := service.NewRecordService(service.RecordServiceParams{
		Sessions:  sessions,
		Loader:    workbook,
		Cache:     cacheSvc,
		Autosave:  autosave,
		Metrics:   metrics,
		Validator: validator.New(),
		Logger:    logr,
		Config: service.RecordServiceConfig{
			Policy: permit.Policy{
				GraceDays:  cfg.Policy.ElapsedGraceDays,
				CapDays:    cfg.Policy.ElapsedCapDays,
				Thresholds: cfg.Policy.Thresholds,
			},
		},
	})
	autosaveWorker = service.NewAutosaveWorker(records, workbook, logr)
	// The queue outlives the signal context so pending saves drain after the
	// server stops taking edits.
	autosaveQueue.Start(context.Background())

	exportHandler := handler.NewExportHandler(records, workbook, nil)
	if cfg.Exports.Enabled {
		jobSvc, exportQueue, db, err := setupExportJobs(ctx, cfg, records, workbook, logr)
		if err != nil {
			logr.Sugar().Fatalw("failed to initialise export jobs", "error", err)
		}
		defer db.Close() //nolint:errcheck
		defer exportQueue.Stop()
		checks["postgres"] = db.PingContext
		exportHandler = handler.NewExportHandler(records, workbook, jobSvc)
	}

	router := handler.NewRouter(handler.RouterDeps{
		Config:        cfg,
		Logger:        logr,
		Metrics:       metrics,
		Datasets:      handler.NewDatasetHandler(records),
		Exports:       exportHandler,
		Observability: handler.NewMetricsHandler(metrics, checks),
	})

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{Addr: addr, Handler: router, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env, "autosave", cfg.Workbook.Autosave, "export_jobs", cfg.Exports.Enabled)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Warnw("graceful shutdown failed", "error", err)
	}
	autosaveQueue.Drain(shutdownCtx)
	logr.Info("server stopped")
}

func setupExportJobs(ctx context.Context, cfg *config.Config, records *service.RecordService, workbook *service.WorkbookService, logr *zap.Logger) (*service.ExportJobService, *jobs.Queue, *sqlx.DB, error) {
	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := database.EnsureSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, nil, nil, err
	}
	store, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
	if err != nil {
		_ = db.Close()
		return nil, nil, nil, fmt.Errorf("init export storage: %w", err)
	}

	repo := repository.NewExportJobRepository(db)
	signer := storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)
	exportSvc := service.NewExportService(records, workbook, store, signer, service.ExportConfig{
		APIPrefix: cfg.APIPrefix,
		ResultTTL: cfg.Exports.SignedURLTTL,
	}, logr)

	worker := service.NewExportWorker(repo, exportSvc, cfg.Exports.WorkerRetries, logr)
	queue := jobs.NewQueue("exports", worker.Handle, jobs.QueueConfig{
		Workers:    cfg.Exports.WorkerConcurrency,
		MaxRetries: cfg.Exports.WorkerRetries,
		Logger:     logr,
	})
	queue.Start(ctx)

	jobSvc := service.NewExportJobService(repo, records, queue, exportSvc, logr, service.ExportJobServiceConfig{
		ResultTTL:       cfg.Exports.SignedURLTTL,
		CleanupInterval: cfg.Exports.CleanupInterval,
		MaxRetries:      cfg.Exports.WorkerRetries,
	})
	jobSvc.RecoverPendingJobs(ctx)
	jobSvc.StartCleanup(ctx)
	return jobSvc, queue, db, nil
}

func redisCheck(client *redis.Client) handler.ReadinessCheck {
	return func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	}
}

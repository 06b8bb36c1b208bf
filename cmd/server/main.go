package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	appcollection "github.com/wakfboard/backend/internal/application/collection"
	"github.com/wakfboard/backend/internal/application/dcb"
	"github.com/wakfboard/backend/internal/application/ledgersync"
	"github.com/wakfboard/backend/internal/application/seeding"
	"github.com/wakfboard/backend/internal/domain/ledger"
	"github.com/wakfboard/backend/internal/infrastructure/cache"
	"github.com/wakfboard/backend/internal/infrastructure/config"
	"github.com/wakfboard/backend/internal/infrastructure/logger"
	"github.com/wakfboard/backend/internal/infrastructure/persistence"
	"github.com/wakfboard/backend/internal/interfaces/http/handler"
	"github.com/wakfboard/backend/internal/interfaces/http/middleware"
	"github.com/wakfboard/backend/internal/interfaces/http/router"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync() //nolint:errcheck

	log.Info("starting server",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	gormLogLevel := logger.MapGormLogLevel(cfg.Log.Level)
	gormLogger := logger.NewGormLogger(log, gormLogLevel)

	db, err := persistence.NewDatabaseWithLogger(&cfg.Database, gormLogger)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	// The partition router is built once at startup from the registered
	// districts. Adding a district requires a master data change plus a
	// restart, which matches how rarely districts change.
	districtRepo := persistence.NewDistrictRepository(db.DB)
	ctx := context.Background()
	districts, err := districtRepo.FindAllActive(ctx)
	if err != nil {
		log.Fatal("failed to load districts", zap.Error(err))
	}
	if len(districts) == 0 {
		log.Fatal("no active districts registered; run migrations and seed master data first")
	}
	names := make([]string, 0, len(districts))
	for _, d := range districts {
		names = append(names, d.Name)
	}
	partitionRouter, err := ledger.NewRouter(names)
	if err != nil {
		log.Fatal("failed to build partition router", zap.Error(err))
	}
	if err := persistence.EnsurePartitions(ctx, db.DB, partitionRouter, log); err != nil {
		log.Fatal("failed to ensure ledger partitions", zap.Error(err))
	}
	log.Info("partition router ready", zap.Int("districts", len(districts)))

	collectionRepo := persistence.NewCollectionRepository(db.DB)
	institutionRepo := persistence.NewInstitutionRepository(db.DB)
	outboxRepo := persistence.NewOutboxRepository(db.DB)
	partitionRepo, err := persistence.NewPartitionRepository(persistence.PartitionRepositoryConfig{
		DB:               db.DB,
		Router:           partitionRouter,
		Logger:           log,
		FanOutWorkers:    cfg.Dashboard.FanOutWorkers,
		PartitionTimeout: cfg.Dashboard.PartitionTimeout,
		RowCap:           cfg.Dashboard.DetailRowCap,
	})
	if err != nil {
		log.Fatal("failed to create partition repository", zap.Error(err))
	}

	idempotencyStore, err := cache.NewIdempotencyStore(cfg.Redis, log)
	if err != nil {
		log.Fatal("failed to create idempotency store", zap.Error(err))
	}

	submissionService := appcollection.NewSubmissionService(appcollection.SubmissionServiceConfig{
		CollectionRepo:  collectionRepo,
		InstitutionRepo: institutionRepo,
		LedgerRepo:      partitionRepo,
		Router:          partitionRouter,
		Logger:          log,
	})
	verificationService := appcollection.NewVerificationService(appcollection.VerificationServiceConfig{
		CollectionRepo: collectionRepo,
		Router:         partitionRouter,
		Logger:         log,
	})
	aggregationService := dcb.NewAggregationService(dcb.AggregationServiceConfig{
		Reader: partitionRepo,
		Router: partitionRouter,
		Config: dcb.AggregationConfig{
			Workers:          cfg.Dashboard.FanOutWorkers,
			PartitionTimeout: cfg.Dashboard.PartitionTimeout,
			DetailRowCap:     cfg.Dashboard.DetailRowCap,
		},
		Logger: log,
	})
	importService := seeding.NewDCBImportService(seeding.DCBImportServiceConfig{
		DistrictRepo:      districtRepo,
		InstitutionRepo:   institutionRepo,
		InstitutionWriter: institutionRepo,
		LedgerRepo:        partitionRepo,
		Router:            partitionRouter,
		Logger:            log,
	})

	var syncWorker *ledgersync.Worker
	if cfg.Outbox.WorkerEnabled {
		syncWorker = ledgersync.NewWorker(outboxRepo, partitionRepo, idempotencyStore, ledgersync.WorkerConfig{
			BatchSize:        cfg.Outbox.BatchSize,
			PollInterval:     cfg.Outbox.PollInterval,
			IdempotencyTTL:   cfg.Outbox.IdempotencyTTL,
			CleanupEnabled:   cfg.Outbox.CleanupEnabled,
			CleanupRetention: cfg.Outbox.CleanupRetention,
			CleanupInterval:  1 * time.Hour,
		}, log)
		if err := syncWorker.Start(ctx); err != nil {
			log.Fatal("failed to start ledger sync worker", zap.Error(err))
		}
	} else {
		log.Warn("ledger sync worker disabled; outbox entries will accumulate until another instance drains them")
	}

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Fatal("failed to set trusted proxies", zap.Error(err))
		}
	}

	corsConfig := middleware.DefaultCORSConfig()
	corsConfig.AllowOrigins = cfg.HTTP.CORSAllowOrigins
	if len(cfg.HTTP.CORSAllowMethods) > 0 {
		corsConfig.AllowMethods = cfg.HTTP.CORSAllowMethods
	}
	if len(cfg.HTTP.CORSAllowHeaders) > 0 {
		corsConfig.AllowHeaders = cfg.HTTP.CORSAllowHeaders
	}

	engine.Use(
		middleware.RequestID(),
		logger.Recovery(log),
		logger.GinMiddleware(log),
		middleware.CORSWithConfig(corsConfig),
	)

	importOpts := seeding.ImportOptions{
		SheetName:  cfg.Import.SheetName,
		HeaderRows: cfg.Import.HeaderRows,
		MaxRows:    cfg.Import.MaxRows,
		StrictMode: cfg.Import.StrictMode,
	}

	r := router.NewRouter(engine, router.WithAPIVersion("v1"))
	r.Register(handler.NewSystemHandler(db)).
		Register(handler.NewCollectionHandler(submissionService, collectionRepo)).
		Register(handler.NewVerificationHandler(verificationService)).
		Register(handler.NewDashboardHandler(aggregationService)).
		Register(handler.NewImportHandler(importService, importOpts))
	r.Setup()

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("http server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("http server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http server shutdown failed", zap.Error(err))
	}
	if syncWorker != nil {
		if err := syncWorker.Stop(shutdownCtx); err != nil {
			log.Error("ledger sync worker shutdown failed", zap.Error(err))
		}
	}

	log.Info("server stopped")
}

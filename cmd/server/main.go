package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/photoexchange/server/internal/config"
	"github.com/photoexchange/server/internal/handlers"
	"github.com/photoexchange/server/internal/observability"
	"github.com/photoexchange/server/internal/repository"
	"github.com/photoexchange/server/internal/services"
)

func main() {
	logger := observability.GetLogger()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.WithError(err).Error("Failed to load configuration")
		os.Exit(1)
	}
	logger.SetLevel(observability.ParseLevel(cfg.LogLevel))

	// Telemetry
	telemetry, err := observability.Initialize(context.Background(), observability.Config{
		ServiceName:    cfg.Telemetry.ServiceName,
		ServiceVersion: handlers.Version,
		Environment:    cfg.Telemetry.Environment,
		OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
		Enabled:        cfg.Telemetry.Enabled,
		SampleRatio:    cfg.Telemetry.SampleRatio,
		ExportInterval: cfg.Telemetry.ExportInterval(),
	})
	if err != nil {
		logger.WithError(err).Error("Failed to initialize telemetry")
		os.Exit(1)
	}

	exchangeMetrics, err := observability.NewExchangeMetrics()
	if err != nil {
		logger.WithError(err).Warn("Exchange metrics unavailable")
	}
	httpMetrics, err := observability.NewHTTPMetrics()
	if err != nil {
		logger.WithError(err).Warn("HTTP metrics unavailable")
	}

	// Initialize database
	var db *sql.DB
	if cfg.UsePostgres() {
		logger.Info("Using PostgreSQL database")
		db, err = repository.NewPostgresDB(cfg.DatabaseURL)
	} else {
		logger.Infof("Using SQLite database at %s", cfg.DatabasePath)
		db, err = repository.NewSQLiteDB(cfg.DatabasePath)
	}
	if err != nil {
		logger.WithError(err).Error("Failed to initialize database")
		os.Exit(1)
	}
	defer db.Close()

	photoRepo := repository.NewPhotoRepository(db)
	userRepo := repository.NewUserRepository(db)
	favouriteRepo := repository.NewFavouriteRepository(db)
	reportRepo := repository.NewReportRepository(db)

	// Initialize services
	clock := services.SystemClock{}
	storageService, err := services.NewPhotoStorageService(
		cfg.PhotoStorage.BasePath,
		cfg.PhotoStorage.Variants,
		cfg.PhotoStorage.MaxFileSizeMB,
	)
	if err != nil {
		logger.WithError(err).Error("Failed to initialize storage service")
		os.Exit(1)
	}

	exchangeService := services.NewExchangeService(photoRepo, userRepo, cfg.Exchange.MaxAttempts, exchangeMetrics)
	toggleService := services.NewToggleService(photoRepo, userRepo, favouriteRepo, reportRepo, clock, exchangeMetrics)
	uploadService := services.NewUploadService(
		userRepo,
		photoRepo,
		storageService,
		services.NewIPHasher(cfg.Security.IPHashSalt),
		services.NewGridLocationMaps(cfg.PhotoStorage.MapCellDegrees),
		exchangeService,
		clock,
	)
	lifecycleService := services.NewLifecycleService(photoRepo, storageService, exchangeMetrics)
	scheduler := services.NewLifecycleScheduler(lifecycleService, clock, services.LifecycleSchedule{
		Interval:        cfg.Lifecycle.Interval(),
		SoftDeleteAfter: cfg.Lifecycle.SoftDeleteAfter(),
		HardDeleteAfter: cfg.Lifecycle.HardDeleteAfter(),
		BatchSize:       cfg.Lifecycle.BatchSize,
	})
	if cfg.Lifecycle.Enabled {
		scheduler.Start()
	}

	// Setup router
	router := newRouter(cfg.Security, routes{
		health:      handlers.NewHealthHandler(db),
		photos:      handlers.NewPhotoHandler(photoRepo, uploadService, toggleService, cfg.PhotoStorage.MaxFileSizeMB),
		admin:       handlers.NewAdminHandler(userRepo, scheduler),
		httpMetrics: httpMetrics,
	})

	// Create server
	srv := &http.Server{
		Addr:         cfg.ServerAddress,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second, // Longer for uploads
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Infof("Photo exchange server starting on %s", cfg.ServerAddress)
		logger.Infof("Photo storage path: %s", cfg.PhotoStorage.BasePath)
		logger.Infof("Max file size: %dMB", cfg.PhotoStorage.MaxFileSizeMB)

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("Server error")
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
	}

	scheduler.Stop()

	if err := telemetry.Shutdown(ctx); err != nil {
		logger.WithError(err).Warn("Telemetry shutdown incomplete")
	}

	logger.Info("Server stopped")
}

//	@title			Gallery API
//	@version		1.0
//	@description	Content service for a photo gallery: categories, albums and photos with image processing and object storage.
//
//	@host		localhost:8080
//	@BasePath	/v1
//
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				Identity provider token. Format: **Bearer {token}**

package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gallery/service/internal/album"
	"github.com/gallery/service/internal/auth"
	"github.com/gallery/service/internal/category"
	"github.com/gallery/service/internal/config"
	"github.com/gallery/service/internal/db"
	"github.com/gallery/service/internal/imageproc"
	"github.com/gallery/service/internal/logging"
	"github.com/gallery/service/internal/photo"
	"github.com/gallery/service/internal/purge"
	"github.com/gallery/service/internal/router"
	"github.com/gallery/service/internal/stats"
	"github.com/gallery/service/internal/storage"
	"github.com/gallery/service/internal/upload"

	_ "github.com/gallery/service/docs/swagger"
)

func main() {
	cfg := config.Load()

	logger, closeLog, err := logging.New(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		slog.Error("logger init failed", "error", err)
		os.Exit(1)
	}
	defer closeLog()
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited", "error", err)
		closeLog()
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx := context.Background()

	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := db.Migrate(cfg.DatabaseURL); err != nil {
		return err
	}

	store := storage.NewMinioStore(storage.Options{
		Endpoint:    cfg.StorageEndpoint,
		AccessKey:   cfg.StorageAccessKey,
		SecretKey:   cfg.StorageSecretKey,
		Bucket:      cfg.StorageBucket,
		Region:      cfg.StorageRegion,
		UseSSL:      cfg.StorageUseSSL,
		PublicBase:  cfg.StoragePublicBase,
		MaxAttempts: cfg.StorageMaxAttempts,
		BaseDelay:   cfg.StorageRetryBaseDelay,
	}, logger)
	// The session is re-created on demand, so an unreachable store is not fatal.
	if err := store.Connect(ctx); err != nil {
		logger.Warn("object storage not reachable at startup", "error", err)
	}

	verifier, err := auth.NewVerifier(auth.Options{
		Secret:   cfg.AuthJWTSecret,
		Issuer:   cfg.AuthIssuer,
		Audience: cfg.AuthAudience,
	})
	if err != nil {
		return err
	}

	// Wire dependencies: repository → service → handler
	purger := purge.NewPurger(purge.NewRepository(pool), store, cfg.PurgeMaxAttempts, logger)
	uploader := upload.NewService(store, imageproc.NewGenerator(logger), upload.Options{
		MaxBytes:     cfg.UploadMaxBytes,
		MaxPixels:    cfg.UploadMaxPixels,
		GenerateWebP: cfg.UploadGenerateWebP,
	}, logger)

	categorySvc := category.NewService(category.NewRepository(pool), logger)
	albumSvc := album.NewService(album.NewRepository(pool), purger, logger)
	photoSvc := photo.NewService(photo.NewRepository(pool), uploader, purger, logger)

	handler := router.New(router.Handlers{
		Category: category.NewHandler(categorySvc),
		Album:    album.NewHandler(albumSvc),
		Photo:    photo.NewHandler(photoSvc, uploader.MaxBytes()),
		Stats:    stats.NewHandler(stats.NewRepository(pool, cfg.PurgeMaxAttempts)),
		Auth:     auth.NewHandler(),
	}, router.Options{
		Verifier:            verifier,
		Logger:              logger,
		DB:                  pool,
		CORSOrigins:         cfg.CORSOrigins,
		UploadRatePerMinute: cfg.UploadRatePerMinute,
	})

	scheduler, err := purge.NewScheduler(purger, cfg.PurgeSchedule, logger)
	if err != nil {
		return err
	}
	scheduler.Start()
	defer scheduler.Stop()

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine; wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "port", cfg.Port, "env", cfg.AppEnv)
		logger.Info("swagger UI available", "url", "http://localhost:"+cfg.Port+"/swagger/")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-quit:
	}
	logger.Info("shutting down gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	logger.Info("server stopped")
	return nil
}

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"notedrop/internal/auth"
	"notedrop/internal/blob"
	"notedrop/internal/config"
	"notedrop/internal/db"
	"notedrop/internal/logging"
	"notedrop/internal/notes"
	"notedrop/internal/recovery"
	"notedrop/internal/server"
	"notedrop/internal/store"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "run the HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger := logging.New(cfg.LogLevel, cfg.LogFormat, os.Stderr)
			slog.SetDefault(logger)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, logger)
		},
	}
}

// serve runs until ctx is cancelled or the listener fails, then drains
// in-flight requests for up to five seconds.
func serve(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	logger.Info("running migrations", "driver", cfg.DatabaseDriver)
	version, err := db.RunMigrations(cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	logger.Info("migrations complete", "version", version)

	conn, err := db.Open(cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("db connect: %w", err)
	}
	defer func() { _ = conn.Close() }()
	repo := store.New(conn, cfg.DatabaseDriver)

	blobs, err := openBlobStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("blob store: %w", err)
	}

	sessions := auth.NewMemorySessionStore(time.Minute)
	defer sessions.Close()
	loginLock := auth.NewLockout(cfg.LoginMaxAttempts, cfg.LockoutDuration, cfg.LockoutDuration)
	defer loginLock.Close()
	otpLock := auth.NewLockout(cfg.LoginMaxAttempts, cfg.LockoutDuration, cfg.OTPTTL)
	defer otpLock.Close()

	srv, err := server.New(server.Config{
		Addr:           cfg.Addr,
		Version:        cfg.Version,
		MaxUploadBytes: cfg.MaxUploadBytes,
		CookieSecure:   cfg.CookieSecure,
		OwnerName:      cfg.OwnerName,
		FormRateLimit:  cfg.FormRateLimit,
		FormRateWindow: cfg.FormRateWindow,
		TrustProxy:     cfg.TrustProxy,
	}, server.Deps{
		Auth: auth.NewService(repo, sessions, loginLock, logger, auth.Config{SessionTTL: cfg.SessionTTL}),
		Recovery: recovery.NewService(repo, recovery.LogNotifier{Logger: logger}, otpLock, logger,
			recovery.Config{TTL: cfg.OTPTTL, LoginLockout: loginLock}),
		Notes:  notes.NewService(repo, blobs, logger, nil),
		DB:     repo,
		Logger: logger,
	})
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting", "addr", cfg.Addr, "version", cfg.Version, "blob_backend", cfg.BlobBackend)
		errCh <- srv.Start()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		logger.Info("shutdown complete")
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func openBlobStore(ctx context.Context, cfg *config.Config) (blob.Store, error) {
	switch cfg.BlobBackend {
	case "minio":
		return blob.NewMinioStore(ctx, blob.MinioConfig{
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			Bucket:    cfg.Bucket,
		})
	default:
		return blob.NewFSStore(cfg.UploadDir)
	}
}

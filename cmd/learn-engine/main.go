package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/skillcoin/learn-engine/internal/api"
	"github.com/skillcoin/learn-engine/internal/auth"
	"github.com/skillcoin/learn-engine/internal/catalog"
	"github.com/skillcoin/learn-engine/internal/certificate"
	"github.com/skillcoin/learn-engine/internal/cleanup"
	"github.com/skillcoin/learn-engine/internal/config"
	"github.com/skillcoin/learn-engine/internal/jobs"
	"github.com/skillcoin/learn-engine/internal/profile"
	"github.com/skillcoin/learn-engine/internal/progress"
	"github.com/skillcoin/learn-engine/internal/storage"
	"github.com/skillcoin/learn-engine/internal/store"
	"github.com/skillcoin/learn-engine/internal/subscription"
)

func main() {
	// Setup structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	slog.Info("starting learn-engine",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)

	// Create context for initialization
	initCtx, initCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer initCancel()

	// Create the database if it doesn't exist yet
	if cfg.Database.Bootstrap {
		if err := storage.EnsureDatabase(cfg.Database.DSN); err != nil {
			slog.Error("failed to ensure database exists", "error", err)
			os.Exit(1)
		}
	}

	// Run database migrations
	slog.Info("running database migrations", "dir", cfg.Database.MigrationsDir)
	if err := storage.MigrateFromDSN(initCtx, cfg.Database.DSN, cfg.Database.MigrationsDir); err != nil {
		slog.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	// Initialize user repository
	users, err := storage.NewPostgresRepository(initCtx, storage.PostgresConfig{
		DSN:          cfg.Database.DSN,
		MaxOpenConns: int32(cfg.Database.MaxOpenConns),
		MaxIdleConns: int32(cfg.Database.MaxIdleConns),
	})
	if err != nil {
		slog.Error("failed to create user repository", "error", err)
		os.Exit(1)
	}
	defer users.Close()
	slog.Info("database connected successfully")

	// Initialize key-value store
	kv, err := store.NewRedisStore(cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.KeyPrefix)
	if err != nil {
		slog.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	defer kv.Close()
	slog.Info("redis connected successfully")

	// Load the skill-track and job catalog
	cat := catalog.New()
	if err := cat.LoadFromDir(cfg.Catalog.Dir); err != nil {
		slog.Warn("failed to load catalog from dir", "dir", cfg.Catalog.Dir, "error", err)
	}

	// Wire up services
	locks := store.NewKeyMutex()

	authSvc := auth.NewService(users, kv, auth.Config{
		AdminEmail: cfg.Auth.AdminEmail,
		SessionTTL: cfg.Auth.SessionTTL,
	})
	profiles := profile.NewService(kv, locks)
	usage := subscription.NewService(kv, locks)
	issuer := certificate.NewIssuer(kv, locks, nil, certificate.Config{
		VerifyBaseURL: cfg.Certificates.VerifyBaseURL,
		MintDelay:     cfg.Certificates.MintDelay,
	})
	tracker := progress.NewTracker(kv, locks, cat, issuer, profiles, usage)
	jobBoard := jobs.NewService(kv, locks, cat, profiles)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start cleanup worker
	worker := cleanup.NewWorker(authSvc, usage, cfg.Cleanup.Interval)
	worker.Start(ctx)

	// Setup HTTP server
	server := api.NewServer(cfg.Server, api.Deps{
		Auth:     authSvc,
		Tracker:  tracker,
		Issuer:   issuer,
		Jobs:     jobBoard,
		Profiles: profiles,
		Usage:    usage,
		Catalog:  cat,
		Store:    kv,
		Users:    users,
	})
	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      server.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		slog.Info("HTTP server starting", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down gracefully...")

	// Cancel context to stop background workers
	cancel()

	// Shutdown HTTP server with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	slog.Info("learn-engine stopped")
}

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

	"github.com/gianverdum/member-registry/internal/audit"
	"github.com/gianverdum/member-registry/internal/cache"
	"github.com/gianverdum/member-registry/internal/config"
	"github.com/gianverdum/member-registry/internal/database"
	"github.com/gianverdum/member-registry/internal/handlers"
	"github.com/gianverdum/member-registry/internal/middleware"
	"github.com/gianverdum/member-registry/internal/models"
	"github.com/gianverdum/member-registry/internal/monitoring"
	"github.com/gianverdum/member-registry/internal/repository"
	"github.com/gianverdum/member-registry/internal/services"
	"github.com/gianverdum/member-registry/internal/utils"
)

const rateLimitCleanupInterval = time.Minute

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API (default command)",
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	utils.SetupLogging(cfg.Logging.Format, cfg.Logging.Level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer func() {
		if err := database.Close(db); err != nil {
			slog.Error("Failed to close database", "error", err)
		}
	}()

	if cfg.Database.RunMigration {
		if err := database.Migrate(db); err != nil {
			return err
		}
	}

	memberCache, err := cache.New(cfg.Cache)
	if err != nil {
		slog.Warn("Member cache unavailable, continuing without cache", "error", err)
		memberCache = cache.NoopCache{}
	}
	defer memberCache.Close()

	auditClient := audit.NewClient(cfg.Audit)
	defer auditClient.Wait()

	metrics, err := monitoring.New(ctx, cfg.Metrics)
	if err != nil {
		return fmt.Errorf("failed to initialize metrics: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := metrics.Shutdown(shutdownCtx); err != nil {
			slog.Error("Failed to flush metrics", "error", err)
		}
	}()

	memberService := services.NewMemberService(
		repository.NewMemberRepository(db),
		services.WithCache(memberCache),
		services.WithAuditor(auditClient),
		services.WithMetrics(metrics),
		services.WithValidationOptions(models.ValidationOptions{RequireFullName: cfg.Validation.RequireFullName}),
		services.WithActorID(cfg.Metrics.ServiceName),
		services.WithStoreName(cfg.Database.Driver),
	)

	routerConfig := handlers.RouterConfig{
		Members: handlers.NewMemberHandler(memberService),
		Health:  handlers.NewHealthHandler(db, memberCache, cfg.Metrics.ServiceName),
		Metrics: metrics,
		CORS:    cfg.CORS,
	}
	if cfg.RateLimit.RPS > 0 {
		limiter := middleware.NewRateLimiter(cfg.RateLimit)
		limiter.StartCleanup(ctx, rateLimitCleanupInterval)
		routerConfig.RateLimiter = limiter
	}

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      handlers.NewRouter(routerConfig),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("Member registry listening",
			"addr", server.Addr,
			"version", Version,
			"driver", cfg.Database.Driver,
			"cache", memberCache.Enabled(),
			"audit", auditClient.IsEnabled())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
	}

	slog.Info("Shutting down the server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	slog.Info("Server gracefully stopped")
	return nil
}

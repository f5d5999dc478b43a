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

	"github.com/pairly/wallet/internal/app"
	"github.com/pairly/wallet/internal/auth"
	"github.com/pairly/wallet/internal/guard"
	"github.com/pairly/wallet/internal/infra"
	"github.com/pairly/wallet/internal/notify"
	"github.com/pairly/wallet/internal/projection"
	"github.com/pairly/wallet/internal/provider"
	"golang.org/x/sync/errgroup"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load config
	cfg, err := infra.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}
	if cfg.AllowInsecureDefaults {
		logger.Warn("ALLOW_INSECURE_DEFAULTS is set; do not run this configuration in production")
	}

	if cfg.MigrateOnStart {
		if err := infra.RunMigrations(cfg.DSN(), cfg.MigrationsPath, logger); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
	}

	// Connect to Postgres
	pool, err := infra.NewPostgresPool(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pool.Close()
	logger.Info("connected to postgres")

	// Kafka carries payment notifications; the outbox relay owns domain events.
	producer := infra.NewKafkaProducer(cfg.KafkaBrokers, cfg.KafkaEnabled, logger)
	defer producer.Close()

	// External providers share one breaker, keyed per upstream.
	breaker := guard.NewCircuitBreaker(5, 30*time.Second)
	gateway, err := provider.NewSecureProcessorClient(cfg.SecureProcessor, breaker, logger)
	if err != nil {
		return fmt.Errorf("init payment gateway: %w", err)
	}
	if !gateway.VerifiesSignatures() {
		logger.Warn("SECURE_PROCESSOR_PUBLIC_KEY is empty; webhook signatures are not verified")
	}
	matches := provider.NewMatchClient(cfg.MatchServiceURL, breaker, logger)

	limiter := guard.NewRateLimiter(cfg.RateLimitPerMinute, time.Minute)

	router := app.NewRouter(app.RouterDeps{
		DB:                 pool,
		Repos:              app.PostgresRepositories(),
		JWTMgr:             auth.NewJWTManager(cfg.JWTSecret, 24*time.Hour),
		Logger:             logger,
		Gateway:            gateway,
		Verifier:           gateway,
		Matches:            matches,
		Notifier:           notify.NewKafkaNotifier(producer, cfg.NotificationsTopic, logger),
		RateLimiter:        limiter,
		Cache:              projection.NewInMemoryStore(),
		CatalogCacheTTL:    cfg.CatalogCacheTTL,
		BackendURL:         cfg.BackendURL,
		FrontendURL:        cfg.FrontendURL,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
	})

	addr := fmt.Sprintf(":%d", cfg.APIPort)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("api server starting", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		limiter.RunSweeper(gctx, 5*time.Minute)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("server stopped gracefully")
	return nil
}

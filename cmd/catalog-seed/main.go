package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/pairly/wallet/internal/catalog"
	"github.com/pairly/wallet/internal/infra"
	"github.com/pairly/wallet/internal/repository"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("catalog seed failed", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	cfg, err := infra.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	file := flag.String("file", cfg.CatalogFile, "gift catalog YAML file")
	migrate := flag.Bool("migrate", cfg.MigrateOnStart, "apply migrations before seeding")
	dryRun := flag.Bool("dry-run", false, "validate the file without writing")
	flag.Parse()

	items, err := catalog.LoadFile(*file)
	if err != nil {
		return err
	}
	logger.Info("catalog file loaded", "file", *file, "count", len(items))
	if *dryRun {
		return nil
	}

	if *migrate {
		if err := infra.RunMigrations(cfg.DSN(), cfg.MigrationsPath, logger); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
	}

	ctx := context.Background()
	pool, err := infra.NewPostgresPool(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pool.Close()

	// The API caches the catalog in-process; running instances pick changes up after CATALOG_CACHE_TTL.
	return catalog.Seed(ctx, pool, repository.NewGiftRepository(), nil, items, logger)
}

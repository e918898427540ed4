package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"time"

	"github.com/busassist/busassist/internal/config"
	"github.com/busassist/busassist/internal/db"
	"github.com/busassist/busassist/internal/demo/seed"
	"github.com/busassist/busassist/internal/migrations"
	"github.com/busassist/busassist/internal/observability"
)

func main() {
	migrate := flag.Bool("migrate", false, "apply pending migrations before seeding")
	flag.Parse()

	cfg, err := config.LoadFromEnv("busassist-seed")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := observability.NewLogger(cfg, os.Stdout)

	seedCfg, err := seed.LoadConfigFromEnv(os.LookupEnv)
	if err != nil {
		logger.Error("failed to load seed config", slog.Any("error", err))
		os.Exit(1)
	}
	dialect, err := db.ParseDialect(cfg.DB.Driver)
	if err != nil {
		logger.Error("invalid db driver", slog.Any("error", err))
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	handle, err := db.Open(ctx, cfg.DB)
	if err != nil {
		logger.Error("failed to open transit db", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() { _ = handle.Close() }()

	if *migrate {
		applied, err := migrations.NewRunner(dialect).Up(ctx, handle, 0)
		if err != nil {
			logger.Error("migration up failed", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("applied migrations", slog.Int("count", applied))
	}

	dataset := seed.NewGenerator(seedCfg).Generate()
	if _, err := seed.NewLoader(handle, dialect, logger).Load(ctx, dataset); err != nil {
		if errors.Is(err, seed.ErrAlreadySeeded) {
			logger.Info("transit tables already seeded; nothing to do")
			return
		}
		logger.Error("seed failed", slog.Any("error", err))
		os.Exit(1)
	}
}

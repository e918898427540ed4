package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/busassist/busassist/internal/archive"
	"github.com/busassist/busassist/internal/chatlog"
	"github.com/busassist/busassist/internal/config"
	"github.com/busassist/busassist/internal/db"
	"github.com/busassist/busassist/internal/observability"
	s3store "github.com/busassist/busassist/internal/storage/s3"
)

func main() {
	once := flag.Bool("once", false, "archive everything pending and exit")
	verify := flag.Bool("verify", false, "summarize the archived parquet objects and exit")
	flag.Parse()

	cfg, err := config.LoadFromEnv("busassist-archive")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := observability.NewLogger(cfg, os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	objectStore, err := s3store.New(ctx, cfg.ObjectStore)
	if err != nil {
		logger.Error("failed to initialize object store", slog.Any("error", err))
		os.Exit(1)
	}

	if *verify {
		summary, err := archive.NewVerifier(objectStore).VerifyAll(ctx)
		if err != nil {
			logger.Error("archive verification failed", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("archive verified",
			slog.Int("files", summary.Files),
			slog.Int64("rows", summary.Rows),
			slog.Int64("first_chat_id", summary.FirstChatID),
			slog.Int64("last_chat_id", summary.LastChatID),
			slog.Int64("users", summary.Users),
		)
		return
	}

	dialect, err := db.ParseDialect(cfg.DB.Driver)
	if err != nil {
		logger.Error("invalid db driver", slog.Any("error", err))
		os.Exit(1)
	}
	transitDB, err := db.Open(ctx, cfg.DB)
	if err != nil {
		logger.Error("failed to open transit db", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() { _ = transitDB.Close() }()

	repo := chatlog.NewRepository(transitDB, dialect)
	service := &archive.Service{
		Source:      repo,
		Purger:      repo,
		ObjectStore: objectStore,
		Config: archive.Config{
			BatchSize: cfg.Archive.BatchSize,
			Interval:  cfg.Archive.Interval,
			Retention: cfg.Archive.Retention,
			SettleLag: cfg.Archive.SettleLag,
		},
		Logger: logger,
	}

	if *once {
		batches, err := service.Drain(ctx)
		if err != nil {
			logger.Error("archive run failed", slog.Any("error", err))
			os.Exit(1)
		}
		purged, err := service.Purge(ctx)
		if err != nil {
			logger.Error("retention run failed", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("archive run complete", slog.Int("objects", len(batches)), slog.Int64("purged", purged))
		return
	}

	logger.Info("starting chatlog archiver",
		slog.String("bucket", cfg.ObjectStore.Bucket),
		slog.Duration("interval", cfg.Archive.Interval),
		slog.Duration("retention", cfg.Archive.Retention),
	)
	if err := service.Run(ctx); err != nil {
		logger.Error("archiver stopped", slog.Any("error", err))
		os.Exit(1)
	}
}

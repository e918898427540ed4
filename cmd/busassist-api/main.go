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

	"golang.org/x/sync/errgroup"

	"github.com/busassist/busassist/internal/api"
	"github.com/busassist/busassist/internal/auth"
	"github.com/busassist/busassist/internal/chat"
	"github.com/busassist/busassist/internal/chatlog"
	"github.com/busassist/busassist/internal/config"
	"github.com/busassist/busassist/internal/db"
	"github.com/busassist/busassist/internal/history"
	"github.com/busassist/busassist/internal/llm"
	"github.com/busassist/busassist/internal/nl2sql"
	"github.com/busassist/busassist/internal/observability"
	"github.com/busassist/busassist/internal/query"
	"github.com/busassist/busassist/internal/reply"
)

func main() {
	cfg, err := config.LoadFromEnv("busassist-api")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg, os.Stdout)
	dialect, err := db.ParseDialect(cfg.DB.Driver)
	if err != nil {
		logger.Error("invalid db driver", slog.Any("error", err))
		os.Exit(1)
	}
	transitDB, err := db.Open(context.Background(), cfg.DB)
	if err != nil {
		logger.Error("failed to open transit db", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() { _ = transitDB.Close() }()

	model, err := llm.New(context.Background(), cfg.LLM, logger)
	if err != nil {
		logger.Error("failed to initialize language model", slog.Any("error", err))
		os.Exit(1)
	}
	generator, err := nl2sql.NewGenerator(model)
	if err != nil {
		logger.Error("failed to initialize sql generator", slog.Any("error", err))
		os.Exit(1)
	}
	formatter, err := reply.NewFormatter(model)
	if err != nil {
		logger.Error("failed to initialize reply formatter", slog.Any("error", err))
		os.Exit(1)
	}

	executorOpts := []query.Option{query.WithTimeout(cfg.Query.Timeout), query.WithLogger(logger)}
	var guard *nl2sql.Guard
	if cfg.Query.Guard {
		guard = nl2sql.DefaultGuard()
		executorOpts = append(executorOpts, query.WithChecker(guard))
	}
	executor := query.NewExecutor(transitDB, executorOpts...)

	chatlogRepo := chatlog.NewRepository(transitDB, dialect)
	sessions := history.NewStore(cfg.Session.WindowSize, cfg.Session.IdleTimeout, history.WithSizeHook(observability.SetActiveSessions))

	service, err := chat.NewService(chat.Dependencies{
		Generator: generator,
		Executor:  executor,
		Formatter: formatter,
		Chatlog:   chatlogRepo,
		History:   sessions,
		Logger:    logger,
	})
	if err != nil {
		logger.Error("failed to initialize chat service", slog.Any("error", err))
		os.Exit(1)
	}

	deps := api.Dependencies{
		Logger:            logger,
		Readiness:         api.CombineReadinessChecks(chatlogRepo.HealthCheck),
		DependencyTimeout: time.Second,
		Chat:              service,
		Chatlogs:          chatlogRepo,
		Previewer:         generator,
		History:           sessions,
	}
	if guard != nil {
		deps.Guard = guard
	}
	if cfg.Auth.Required {
		validator, err := auth.NewStaticAPIKeyValidator(cfg.Auth.StaticKeys)
		if err != nil {
			logger.Error("failed to parse static auth keys", slog.Any("error", err))
			os.Exit(1)
		}
		deps.AuthMiddleware = auth.Middleware(logger, validator)
	}

	handler := api.NewHandler(cfg, deps)
	server := &http.Server{
		Addr:         cfg.HTTP.Address,
		Handler:      handler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sessions.StartJanitor(ctx, cfg.Session.JanitorInterval)

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		logger.Info("starting api server",
			slog.String("addr", cfg.HTTP.Address),
			slog.String("db_driver", dialect.String()),
			slog.String("llm_provider", cfg.LLM.Provider),
			slog.Bool("sql_guard", cfg.Query.Guard),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		logger.Info("shutting down api server")
		if err := server.Shutdown(shutdownCtx); err != nil {
			_ = server.Close()
			return err
		}
		return nil
	})

	if err := group.Wait(); err != nil {
		logger.Error("api server failed", slog.Any("error", err))
		os.Exit(1)
	}
}

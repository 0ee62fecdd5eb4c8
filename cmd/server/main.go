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

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/ChamsBouzaiene/interviewd/internal/audit"
	"github.com/ChamsBouzaiene/interviewd/internal/config"
	"github.com/ChamsBouzaiene/interviewd/internal/httpapi"
	"github.com/ChamsBouzaiene/interviewd/internal/interview"
	"github.com/ChamsBouzaiene/interviewd/internal/moderation"
	"github.com/ChamsBouzaiene/interviewd/internal/prompts"
	"github.com/ChamsBouzaiene/interviewd/internal/providers"
	"github.com/ChamsBouzaiene/interviewd/internal/session"
)

func main() {
	// Load .env if present.
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("server exited", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// Session store: Redis when configured, in-memory otherwise.
	var store session.Store
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Username: cfg.RedisUsername,
			Password: cfg.RedisPassword,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			return err
		}
		defer client.Close()
		store = session.NewRedisStore(client, cfg.KeyPrefix)
		logger.Info("using redis session store", slog.String("addr", cfg.RedisAddr))
	} else {
		store = session.NewMemoryStore()
		logger.Warn("REDIS_ADDR not set, using in-memory session store")
	}

	sessions := session.NewService(store, cfg.SessionTTL)

	generator, modelName, err := providers.NewGeneratorFromEnv()
	if err != nil {
		return err
	}
	logger.Info("llm collaborator ready", slog.String("model", modelName))

	auditor, err := audit.NewSQLiteRecorder(ctx, cfg.AuditDBPath)
	if err != nil {
		return err
	}
	defer auditor.Close()

	classifier := moderation.NewClassifier(cfg.OffensiveKeywords)
	if cfg.KeywordsFile != "" {
		watcher, err := moderation.NewWatcher(cfg.KeywordsFile, classifier, logger)
		if err != nil {
			return err
		}
		if err := watcher.Start(); err != nil {
			return err
		}
		defer watcher.Stop()
	}

	registry := prompts.NewRegistry()
	if cfg.RolesFile != "" {
		if err := registry.LoadFile(cfg.RolesFile); err != nil {
			return err
		}
	}

	orch := interview.New(sessions, generator, auditor, registry, interview.Config{
		MaxQuestions: cfg.MaxQuestions,
		GenTimeout:   cfg.GenTimeout,
	}, logger)

	api := httpapi.New(sessions, orch, classifier, auditor, logger, cfg.Production)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", slog.String("addr", cfg.HTTPAddr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

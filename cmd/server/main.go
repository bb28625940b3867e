package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/quizforge/mocktest-backend/internal/config"
	"github.com/quizforge/mocktest-backend/internal/database"
	"github.com/quizforge/mocktest-backend/internal/handler"
	"github.com/quizforge/mocktest-backend/internal/loader"
	"github.com/quizforge/mocktest-backend/internal/logger"
	"github.com/quizforge/mocktest-backend/internal/router"
	"github.com/quizforge/mocktest-backend/internal/session"
	"github.com/quizforge/mocktest-backend/internal/store"
	"github.com/quizforge/mocktest-backend/internal/validator"
	"github.com/quizforge/mocktest-backend/internal/worker"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("question_source", cfg.QuestionSourceURL).
		Dur("quiz_duration", cfg.QuizDuration).
		Msg("Starting Mock Test Backend")

	// ─── Initialize Validator ──────────────────────────────────────────
	validator.Setup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ─── Connect to Redis ──────────────────────────────────────────────
	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	// ─── Initialize Core ───────────────────────────────────────────────
	questionLoader := loader.New(cfg.QuestionSourceURL, cfg.FetchTimeout, log)
	sessionStore := store.NewSessionStore(rdb, log)
	manager := session.NewManager(questionLoader, sessionStore, session.ManagerConfig{
		BudgetSeconds: int(cfg.QuizDuration.Seconds()),
		TickInterval:  time.Second,
		Retention:     cfg.SessionRetention,
	}, log)

	// Rebuild live sessions from snapshots BEFORE accepting traffic so a
	// restart looks like a page reload to in-flight test takers.
	if err := manager.RestoreAll(ctx); err != nil {
		log.Warn().Err(err).Msg("Session restore failed")
	}

	// ─── Initialize Handlers ───────────────────────────────────────────
	warningSeconds := int(cfg.TimerWarning.Seconds())
	handlers := &router.Handlers{
		Session: handler.NewSessionHandler(manager, warningSeconds, log),
		WS:      handler.NewWSHandler(manager, warningSeconds, log, cfg.AllowedOrigins),
	}

	// ─── Start Background Workers ──────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())

	janitor := worker.NewJanitor(manager, time.Minute, log)
	go janitor.Start(workerCtx)

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(handlers, cfg)

	// ─── Create HTTP Server ────────────────────────────────────────────
	srv := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: r,
	}

	// ─── Start Server in Goroutine ─────────────────────────────────────
	go func() {
		log.Info().Str("addr", ":"+cfg.ServerPort).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// ─── Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")

	// 1. Stop accepting new HTTP requests (5s timeout).
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// 2. Stop workers and every live countdown ticker. Snapshots keep the
	// remaining time, so restore picks sessions back up on next boot.
	workerCancel()
	manager.StopAll()

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}

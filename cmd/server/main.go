// voxgate - voice assistant backend gateway
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

	"github.com/ashureev/voxgate/internal/api"
	"github.com/ashureev/voxgate/internal/auth"
	"github.com/ashureev/voxgate/internal/config"
	"github.com/ashureev/voxgate/internal/history"
	"github.com/ashureev/voxgate/internal/llm"
	"github.com/ashureev/voxgate/internal/middleware"
	"github.com/ashureev/voxgate/internal/session"
	"github.com/ashureev/voxgate/internal/store"
	"github.com/ashureev/voxgate/internal/tasks"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("Starting server", "port", cfg.Port, "auth_required", cfg.Auth.Required)

	// Initialize dependencies.
	db, err := store.Open(cfg.DBPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			slog.Error("Failed to close database", "error", closeErr)
		}
	}()

	if err := db.Ping(context.Background()); err != nil {
		slog.Error("Database health check failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Database connected", "path", db.Path())

	conversations := store.NewConversationStore(db, cfg.ExportDir)
	wakeEvents := store.NewWakeEventStore(db)

	historyStore, err := history.NewStore(cfg.HistoryDir)
	if err != nil {
		slog.Error("Failed to initialize history store", "error", err)
		os.Exit(1)
	}

	sessions := session.NewStore(session.Options{
		MaxMessages:   cfg.Session.MaxMessages,
		Timeout:       cfg.Session.Timeout,
		SweepInterval: cfg.Session.SweepInterval,
	})
	defer sessions.Close()
	slog.Info("Session store started",
		"max_messages", cfg.Session.MaxMessages,
		"timeout", cfg.Session.Timeout,
		"sweep_interval", cfg.Session.SweepInterval)

	keystore, err := auth.NewKeystore(cfg.KeyFile)
	if err != nil {
		slog.Error("Failed to initialize API key store", "error", err)
		os.Exit(1)
	}
	if cfg.Auth.Required && keystore.Count() == 0 {
		secret, key, err := keystore.Generate("bootstrap")
		if err != nil {
			slog.Error("Failed to generate bootstrap API key", "error", err)
			os.Exit(1)
		}
		// Logged once so the operator can reach the locked-down API.
		slog.Info("Generated bootstrap API key", "id", key.ID, "secret", secret)
	}

	llmClient, err := llm.NewClient(llm.Options{
		BaseURL: cfg.LLM.BaseURL,
		APIKey:  cfg.LLM.APIKey,
		Timeout: cfg.LLM.Timeout,
	})
	if err != nil {
		slog.Error("Failed to initialize LLM client", "error", err)
		os.Exit(1)
	}

	tracker := tasks.NewTracker()

	handler := api.NewHandler(api.Deps{
		Config:        cfg,
		Sessions:      sessions,
		Conversations: conversations,
		Wake:          wakeEvents,
		History:       historyStore,
		LLM:           llmClient,
		Keys:          keystore,
		Tasks:         tracker,
		DB:            db,
	})

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(middleware.CORS([]string{"*"}))
	r.Use(auth.Middleware(keystore, cfg.Auth.Required))

	handler.RegisterRoutes(r)

	// Scheduled maintenance: nightly backup, then retention cleanup.
	scheduler := cron.New()
	if _, err := scheduler.AddFunc(cfg.Retention.BackupCron, func() {
		path, err := conversations.CreateBackup()
		if err != nil {
			slog.Error("Scheduled backup failed", "error", err)
			return
		}
		slog.Info("Scheduled backup complete", "path", path)
	}); err != nil {
		slog.Error("Failed to schedule backup job", "error", err)
		os.Exit(1)
	}
	if _, err := scheduler.AddFunc(cfg.Retention.CleanupCron, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()

		removed, err := conversations.CleanupOld(ctx, cfg.Retention.ConversationDays)
		if err != nil {
			slog.Error("Conversation cleanup failed", "error", err)
		} else {
			slog.Info("Conversation cleanup complete", "removed", removed)
		}

		removedEvents, err := wakeEvents.CleanupOld(ctx, cfg.Retention.WakeEventDays)
		if err != nil {
			slog.Error("Wake event cleanup failed", "error", err)
		} else {
			slog.Info("Wake event cleanup complete", "removed", removedEvents)
		}
	}); err != nil {
		slog.Error("Failed to schedule cleanup job", "error", err)
		os.Exit(1)
	}
	scheduler.Start()
	slog.Info("Maintenance scheduler started",
		"backup_cron", cfg.Retention.BackupCron,
		"cleanup_cron", cfg.Retention.CleanupCron)

	// Create server.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Start server.
	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal.
	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...")

	cronCtx := scheduler.Stop()
	select {
	case <-cronCtx.Done():
	case <-time.After(10 * time.Second):
		slog.Warn("Timed out waiting for scheduled jobs to finish")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}

	slog.Info("Server stopped")
}

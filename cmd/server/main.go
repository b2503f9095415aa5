package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/viveksharma1514/UniVerse/internal/api"
	"github.com/viveksharma1514/UniVerse/internal/chat"
	"github.com/viveksharma1514/UniVerse/internal/config"
	"github.com/viveksharma1514/UniVerse/internal/handlers"
	"github.com/viveksharma1514/UniVerse/internal/notify"
	"github.com/viveksharma1514/UniVerse/internal/realtime"
	"github.com/viveksharma1514/UniVerse/internal/reminder"
	"github.com/viveksharma1514/UniVerse/internal/store"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	var logger zerolog.Logger
	if cfg.IsDevelopment() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
			With().
			Timestamp().
			Logger()
	} else {
		logger = zerolog.New(os.Stdout).
			With().
			Timestamp().
			Logger()
	}

	ctx := context.Background()

	// Run migrations
	if cfg.DatabaseURL != "" {
		logger.Info().Msg("running database migrations...")
		if err := store.RunMigrations(cfg.DatabaseURL); err != nil {
			logger.Fatal().Err(err).Msg("migration failed")
		}
		logger.Info().Msg("migrations completed")
	}

	// Initialize the primary store: PostgreSQL when configured, an
	// embedded SQLite database otherwise.
	var dataStore store.DataStore
	if cfg.DatabaseURL != "" {
		pgStore, err := store.NewPostgresStore(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("postgres connection failed")
		}
		dataStore = pgStore
		logger.Info().Msg("connected to PostgreSQL")
	} else {
		sqliteStore, err := store.NewSQLiteStore(ctx, cfg.SQLitePath)
		if err != nil {
			logger.Fatal().Err(err).Msg("sqlite open failed")
		}
		dataStore = sqliteStore
		logger.Info().Str("path", cfg.SQLitePath).Msg("using SQLite store")
	}
	defer dataStore.Close()

	// Initialize Redis store
	var redisStore *store.RedisStore
	if cfg.RedisURL != "" {
		var err error
		redisStore, err = store.NewRedisStore(ctx, cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("redis connection failed")
		}
		defer redisStore.Close()
		logger.Info().Msg("connected to Redis")
	}

	// Wire the realtime hub and the services on top of it
	hub := realtime.NewHub(realtime.NewRegistry(), logger)
	notifier := notify.NewService(dataStore, redisStore, hub, logger, cfg.DedupWindow)
	chatSvc := chat.NewService(dataStore, hub, notifier, logger)
	hub.SetMessageSender(chatSvc)

	// Start the reminder engine
	engineCtx, stopEngine := context.WithCancel(ctx)
	defer stopEngine()
	engine := reminder.NewEngine(dataStore, notifier, logger, reminder.Config{
		Interval:            cfg.SweepInterval,
		MeetingWindowStart:  cfg.MeetingWindowStart,
		MeetingWindowEnd:    cfg.MeetingWindowEnd,
		AttendanceThreshold: cfg.AttendanceThreshold,
	})
	go engine.Run(engineCtx)

	// Create router
	h := handlers.NewHandler(dataStore, redisStore, notifier, chatSvc, hub, cfg.AllowedOrigins, logger)
	router := api.NewRouter(logger, cfg, h, redisStore)

	// Create server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info().
			Str("port", cfg.Port).
			Str("env", cfg.Env).
			Msg("starting UniVerse realtime core")

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server failed to start")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server...")
	stopEngine()

	// Graceful shutdown with 30 second timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server forced to shutdown")
	}

	logger.Info().Msg("server stopped")
}

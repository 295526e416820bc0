package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/hughes7370/fundconnectv3-sub001/internal/api"
	"github.com/hughes7370/fundconnectv3-sub001/internal/bus"
	"github.com/hughes7370/fundconnectv3-sub001/internal/config"
	"github.com/hughes7370/fundconnectv3-sub001/internal/handlers"
	"github.com/hughes7370/fundconnectv3-sub001/internal/interest"
	"github.com/hughes7370/fundconnectv3-sub001/internal/messaging"
	"github.com/hughes7370/fundconnectv3-sub001/internal/notify"
	"github.com/hughes7370/fundconnectv3-sub001/internal/session"
	"github.com/hughes7370/fundconnectv3-sub001/internal/storage"
	"github.com/hughes7370/fundconnectv3-sub001/internal/store"
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

	// Initialize the data store: PostgreSQL when configured, SQLite
	// otherwise.
	var ds store.DataStore
	if cfg.DatabaseURL != "" {
		pgStore, err := store.NewPostgresStore(ctx, cfg.DatabaseURL, cfg.AllowDuplicateInterests)
		if err != nil {
			logger.Fatal().Err(err).Msg("postgres connection failed")
		}
		ds = pgStore
		logger.Info().Msg("connected to PostgreSQL")
	} else {
		sqliteStore, err := store.NewSQLiteStore(ctx, cfg.SQLitePath, cfg.AllowDuplicateInterests)
		if err != nil {
			logger.Fatal().Err(err).Msg("sqlite open failed")
		}
		ds = sqliteStore
		logger.Info().Str("path", cfg.SQLitePath).Msg("opened SQLite database")
	}
	defer ds.Close()

	// Initialize Redis (sessions, rate limiting, message event bus)
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

	var sessions session.Store
	var eventBus bus.Bus
	if redisStore != nil {
		sessions = session.NewRedisStore(redisStore.Client())
		eventBus = bus.NewRedisBus(redisStore.Client(), logger)
	} else {
		if !cfg.IsDevelopment() {
			logger.Warn().Msg("no Redis configured, sessions and events are in-process only")
		}
		sessions = session.NewMemoryStore()
		eventBus = bus.NewMemoryBus()
	}

	// Object storage for fund documents (optional)
	var objects storage.ObjectStore
	if cfg.StorageEndpoint != "" {
		minioStore, err := storage.NewMinioStore(cfg)
		if err != nil {
			logger.Fatal().Err(err).Msg("object storage client failed")
		}
		objects = minioStore
		logger.Info().Str("bucket", cfg.StorageBucket).Msg("object storage configured")
	}

	// Domain services
	messagingSvc := messaging.NewService(ds, eventBus, logger, cfg.MessageWindow)
	ledger := interest.NewLedger(ds, logger, cfg.AllowDuplicateInterests)
	hub := notify.NewHub(eventBus, messagingSvc, logger, cfg.NotifyDebounce)

	h := handlers.NewHandler(ds, redisStore, sessions, messagingSvc, ledger, hub, objects, cfg, logger)
	router := api.NewRouter(cfg, logger, h, ds, redisStore, sessions)

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
			Msg("starting Fund Connect server")

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server failed to start")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server...")

	// Graceful shutdown with 30 second timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server forced to shutdown")
	}

	logger.Info().Msg("server stopped")
}

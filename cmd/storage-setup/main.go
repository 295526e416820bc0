package main

import (
	"context"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/hughes7370/fundconnectv3-sub001/internal/config"
	"github.com/hughes7370/fundconnectv3-sub001/internal/storage"
)

// storage-setup creates the document bucket and applies the public-read
// policy. Run once per environment before starting the server.
func main() {
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
		With().
		Timestamp().
		Logger()

	cfg := config.Load()
	if cfg.StorageEndpoint == "" {
		logger.Fatal().Msg("STORAGE_ENDPOINT is not set")
	}

	objects, err := storage.NewMinioStore(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("object storage client failed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := objects.EnsureBucket(ctx); err != nil {
		logger.Fatal().Err(err).Str("bucket", cfg.StorageBucket).Msg("bucket setup failed")
	}

	status, err := objects.CheckBucket(ctx)
	if err != nil {
		logger.Fatal().Err(err).Msg("bucket verification failed")
	}

	logger.Info().
		Str("bucket", status.Bucket).
		Bool("exists", status.Exists).
		Bool("public_read", status.PublicRead).
		Msg("bucket ready")
}

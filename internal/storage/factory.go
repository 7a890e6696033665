package storage

import (
	"context"
	"fmt"

	"github.com/galleylabs/galley/internal/config"
	"github.com/galleylabs/galley/internal/storage/local"
	s3backend "github.com/galleylabs/galley/internal/storage/s3"
)

// New creates the backend selected by cfg.StorageBackend.
func New(ctx context.Context, cfg *config.Config) (Backend, error) {
	switch cfg.StorageBackend {
	case "local":
		return local.New(local.Config{RootPath: cfg.LocalStoragePath})
	case "s3":
		return s3backend.New(ctx, s3backend.Config{
			Endpoint:  cfg.S3Endpoint,
			Bucket:    cfg.S3Bucket,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			Region:    cfg.S3Region,
			UseSSL:    cfg.S3UseSSL,
		})
	default:
		return nil, fmt.Errorf("unknown storage backend: %s", cfg.StorageBackend)
	}
}

// Package storage uploads and removes objects in named buckets and builds
// their public URLs.
package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/yiback/gatherly/internal/config"
)

type ObjectStore interface {
	Upload(ctx context.Context, bucket, path string, data []byte, contentType string) error
	Delete(ctx context.Context, bucket, path string) error
	PublicURL(bucket, path string) string
}

// New returns the store selected by cfg.Driver.
func New(cfg *config.StorageConfig) (ObjectStore, error) {
	switch cfg.Driver {
	case "", "local":
		return NewLocalStore(cfg.LocalDir, cfg.PublicURL), nil
	case "s3":
		return NewS3Store(cfg)
	default:
		return nil, fmt.Errorf("unsupported storage driver: %s", cfg.Driver)
	}
}

func joinURL(base, bucket, path string) string {
	return strings.TrimSuffix(base, "/") + "/" + bucket + "/" + strings.TrimPrefix(path, "/")
}

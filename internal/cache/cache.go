// Package cache stores rendered GET responses and drops them by view path
// after a mutation.
package cache

import (
	"context"
	"strings"
	"time"

	"github.com/yiback/gatherly/pkg/logger"
)

const keyPrefix = "view:"

// Store is a byte cache with prefix deletion.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	DeletePrefix(ctx context.Context, prefix string) error
	Close() error
}

// Key builds the cache key for a view path as seen by one user.
func Key(path, userID, query string) string {
	return keyPrefix + path + "|" + userID + "|" + query
}

// Invalidator drops every cached variant of the given view paths.
type Invalidator interface {
	Invalidate(ctx context.Context, paths ...string)
}

type PathInvalidator struct {
	store Store
}

func NewPathInvalidator(store Store) *PathInvalidator {
	return &PathInvalidator{store: store}
}

// Invalidate is best effort; failures are logged and otherwise ignored.
func (p *PathInvalidator) Invalidate(ctx context.Context, paths ...string) {
	for _, path := range paths {
		path = strings.TrimSuffix(path, "/")
		if err := p.store.DeletePrefix(ctx, keyPrefix+path+"|"); err != nil {
			logger.Warn().Err(err).Str("path", path).Msg("cache invalidation failed")
		}
	}
}

// Nop is used when caching is disabled.
type Nop struct{}

func (Nop) Invalidate(context.Context, ...string) {}

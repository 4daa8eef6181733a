// Package storage holds preview bytes under short-lived, releasable handles.
// A handle is what the display layer dereferences to load the image without
// re-transmitting it; callers release handles when the preview is no longer
// shown, and the purge job expires the ones they forget.
package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/previewlab/previewd/config"
)

// Logger is global since we will need it everywhere
var Logger *slog.Logger

// ErrNotFound is returned when a handle does not exist or has been released.
var ErrNotFound = errors.New("handle not found")

// Store is the handle store contract. Implementations are safe for
// concurrent use.
type Store interface {
	// Put stores data under id. A zero ttl means no expiry.
	Put(ctx context.Context, id string, data []byte, ttl time.Duration) error

	// Get returns the bytes for id, or ErrNotFound
	Get(ctx context.Context, id string) ([]byte, error)

	// Release frees the handle. Releasing an unknown handle returns ErrNotFound.
	Release(ctx context.Context, id string) error

	// PurgeExpired drops handles past their ttl and reports how many went
	PurgeExpired(ctx context.Context) (int, error)

	Close() error
}

// NewStore builds the configured handle store backend.
func NewStore(serverConfig config.ServerConfig) (Store, error) {
	switch serverConfig.StoreBackend {
	case "memory", "":
		Logger.Info("Using in-memory handle store")
		return NewMemoryStore(), nil
	case "redis":
		Logger.Info("Using redis handle store", "addr", serverConfig.RedisAddr)
		return NewRedisStore(serverConfig.RedisAddr, serverConfig.RedisPassword, serverConfig.RedisDB)
	default:
		return nil, fmt.Errorf("unknown handle store backend: %s", serverConfig.StoreBackend)
	}
}

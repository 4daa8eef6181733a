package engine

import (
	"context"
	"time"

	"github.com/previewlab/previewd/storage"
)

// StartupChecks performs all the checks to make sure everything works
func (serverHandler *ServerHandler) StartupChecks() error {
	renderingChecks(serverHandler)
	storeChecks(serverHandler.Store)
	return nil
}

// renderingChecks reports how conversions will behave on this replica
func renderingChecks(serverHandler *ServerHandler) {
	if serverHandler.ServerConfig.RenderingDisabled {
		Logger.Warn("Rendering disabled, preview conversions will fail on this replica")
		return
	}
	// The engine loads lazily on the first conversion; nothing to probe here
	// beyond logging the intent.
	Logger.Info("Rendering enabled, engine will load on first conversion")
}

// storeChecks verifies the handle store round-trips bytes
func storeChecks(store storage.Store) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	const probe = "startup-probe"
	if err := store.Put(ctx, probe, []byte("ok"), time.Minute); err != nil {
		Logger.Error("Handle store probe write failed", "error", err)
		return
	}
	if _, err := store.Get(ctx, probe); err != nil {
		Logger.Error("Handle store probe read failed", "error", err)
		return
	}
	if err := store.Release(ctx, probe); err != nil {
		Logger.Warn("Handle store probe release failed", "error", err)
	}
	Logger.Info("Handle store verified")
}

package rasterizer

import (
	"context"
	"fmt"
	"sync"
)

// LoaderFunc initializes a rendering engine. It runs at most once per cell.
type LoaderFunc func(ctx context.Context) (Engine, error)

// engineCell is the process-wide memoized engine handle. The first caller
// starts the load; concurrent callers wait on the same attempt instead of
// starting a second one. The outcome is cached for the life of the process,
// including a failed outcome - a failed load is not retried on later calls.
type engineCell struct {
	mu      sync.Mutex
	loader  LoaderFunc
	started bool
	done    chan struct{}
	engine  Engine
	err     error
}

func newEngineCell(loader LoaderFunc) *engineCell {
	return &engineCell{loader: loader}
}

// get returns the shared engine, starting the one-time load if needed.
// Waiting callers can bail out via ctx, but the load itself runs to
// completion so late arrivals still observe a settled outcome.
func (c *engineCell) get(ctx context.Context) (Engine, error) {
	c.mu.Lock()
	if !c.started {
		c.started = true
		c.done = make(chan struct{})
		go c.load()
	}
	done := c.done
	c.mu.Unlock()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-done:
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.engine, c.err
}

func (c *engineCell) load() {
	// Not tied to any single caller's context: the engine outlives the call
	// that happened to trigger the load.
	engine, err := c.loader(context.Background())

	c.mu.Lock()
	c.engine = engine
	c.err = err
	c.mu.Unlock()
	close(c.done)

	if err != nil {
		Logger.Error("Rendering engine initialization failed, later conversions will fail without retrying", "error", err)
		return
	}
	Logger.Info("Rendering engine initialized", "backend", engine.Name())
}

// close tears down the engine if one was loaded. Only used on shutdown.
func (c *engineCell) close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.engine == nil {
		return nil
	}
	err := c.engine.Close()
	c.engine = nil
	return err
}

// DefaultLoader is the production engine load strategy. The primary backend
// is the PDFium WebAssembly worker pool, which carries its own worker runtime
// in the library distribution. When the pool cannot be started the loader
// logs a warning and falls back to the in-process MuPDF engine rather than
// failing the load - the fallback only degrades where the rendering work
// runs. Initialization fails only when neither backend is available.
func DefaultLoader() LoaderFunc {
	return func(ctx context.Context) (Engine, error) {
		engine, primaryErr := newPdfiumEngine()
		if primaryErr == nil {
			return engine, nil
		}
		Logger.Warn("PDFium worker pool unavailable, falling back to in-process MuPDF engine", "error", primaryErr)

		fallback, fallbackErr := newFitzEngine()
		if fallbackErr != nil {
			return nil, fmt.Errorf("no rendering engine available (pdfium: %v): %w", primaryErr, fallbackErr)
		}
		return fallback, nil
	}
}

package rasterizer

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestEngineCellLoadsOnce(t *testing.T) {
	var loads int64
	cell := newEngineCell(func(ctx context.Context) (Engine, error) {
		atomic.AddInt64(&loads, 1)
		time.Sleep(50 * time.Millisecond)
		return &fakeEngine{pages: 1, width: 100, height: 100}, nil
	})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			engine, err := cell.get(context.Background())
			if err != nil {
				t.Errorf("get returned error: %v", err)
			}
			if engine == nil {
				t.Error("get returned nil engine")
			}
		}()
	}
	wg.Wait()

	if got := atomic.LoadInt64(&loads); got != 1 {
		t.Errorf("Expected exactly one load, got %d", got)
	}
}

func TestEngineCellFailureIsNotRetried(t *testing.T) {
	var loads int64
	loadErr := errors.New("engine exploded")
	cell := newEngineCell(func(ctx context.Context) (Engine, error) {
		atomic.AddInt64(&loads, 1)
		return nil, loadErr
	})

	for i := 0; i < 3; i++ {
		if _, err := cell.get(context.Background()); !errors.Is(err, loadErr) {
			t.Fatalf("Call %d: expected the memoized load error, got %v", i, err)
		}
	}

	if got := atomic.LoadInt64(&loads); got != 1 {
		t.Errorf("Failed load must not be retried, got %d loads", got)
	}
}

func TestEngineCellWaiterCanBail(t *testing.T) {
	unblock := make(chan struct{})
	cell := newEngineCell(func(ctx context.Context) (Engine, error) {
		<-unblock
		return &fakeEngine{pages: 1, width: 100, height: 100}, nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := cell.get(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected context.Canceled while load is pending, got %v", err)
	}

	// The load keeps running and later callers see the settled engine.
	close(unblock)
	engine, err := cell.get(context.Background())
	if err != nil {
		t.Fatalf("Expected settled engine after unblocking: %v", err)
	}
	if engine == nil {
		t.Fatal("Expected non-nil engine")
	}
}

func TestEngineCellCloseIdempotent(t *testing.T) {
	engine := &fakeEngine{pages: 1, width: 100, height: 100}
	cell := newEngineCell(func(ctx context.Context) (Engine, error) {
		return engine, nil
	})

	if _, err := cell.get(context.Background()); err != nil {
		t.Fatalf("get: %v", err)
	}

	if err := cell.close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := cell.close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	if engine.closeCalls != 1 {
		t.Errorf("Expected one engine close, got %d", engine.closeCalls)
	}
}

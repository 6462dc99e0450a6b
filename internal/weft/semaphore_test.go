package weft

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestNoneSemaphoreIsIdentity(t *testing.T) {
	sem := NoneSemaphore()
	ran := false
	if err := sem.WithToken(context.Background(), func() error {
		ran = true
		return nil
	}); err != nil {
		t.Fatalf("WithToken: %v", err)
	}
	if !ran {
		t.Error("expected action to run")
	}
}

func TestNoneSemaphoreRespectsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ran := false
	err := NoneSemaphore().WithToken(ctx, func() error {
		ran = true
		return nil
	})
	if err == nil {
		t.Error("expected error from a canceled context")
	}
	if ran {
		t.Error("action should not run once context is canceled")
	}
}

func TestBoundedSemaphoreLimitsConcurrency(t *testing.T) {
	const limit = 2
	sem := BoundedSemaphore(limit)

	var (
		mu         sync.Mutex
		cur, peak  int32
		wg         sync.WaitGroup
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = sem.WithToken(context.Background(), func() error {
				n := atomic.AddInt32(&cur, 1)
				mu.Lock()
				if int32(peak) < n {
					peak = n
				}
				mu.Unlock()
				time.Sleep(5 * time.Millisecond)
				atomic.AddInt32(&cur, -1)
				return nil
			})
		}()
	}
	wg.Wait()

	if peak > int32(limit) {
		t.Errorf("observed peak concurrency %d, want <= %d", peak, limit)
	}
}

func TestBoundedSemaphorePanicsOnNonPositiveN(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic for n < 1")
		}
	}()
	BoundedSemaphore(0)
}

func TestNewSemaphoreAliasesNonPositiveToNone(t *testing.T) {
	if _, ok := NewSemaphore(0).(noneSemaphore); !ok {
		t.Error("NewSemaphore(0) should alias to NoneSemaphore")
	}
	if _, ok := NewSemaphore(-3).(noneSemaphore); !ok {
		t.Error("NewSemaphore(-3) should alias to NoneSemaphore")
	}
	if _, ok := NewSemaphore(4).(*boundedSemaphore); !ok {
		t.Error("NewSemaphore(4) should return a boundedSemaphore")
	}
}

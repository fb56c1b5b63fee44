package framepool

import (
	"errors"
	"sync"
	"testing"
)

func TestSyncPoolConcurrentAccess(t *testing.T) {
	p, ctx := newTestPool(t, 1000, false)
	sp := NewSyncPool(p)

	const workers = 8
	const iterations = 1000
	var wg sync.WaitGroup
	errCh := make(chan error, workers)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range iterations {
				f, err := sp.Allocate(100)
				if errors.Is(err, ErrPoolExhausted) {
					continue
				}
				if err != nil {
					errCh <- err
					return
				}
				f[0]++
				sp.Release(f)
			}
		}()
	}
	wg.Wait()
	close(errCh)
	for err := range errCh {
		t.Fatalf("unexpected error: %v", err)
	}

	if sp.AllocatedBytes() > sp.BudgetBytes() {
		t.Errorf("allocated %d exceeds budget %d", sp.AllocatedBytes(), sp.BudgetBytes())
	}
	// Every worker holds at most one frame, so at most one frame per worker is ever allocated.
	if ctx.AllocCalls() > workers {
		t.Errorf("expected at most %d context allocations, got %d", workers, ctx.AllocCalls())
	}

	sp.Close()
	if ctx.BytesInUse() != 0 {
		t.Errorf("expected all bytes returned to the context, got %d in use", ctx.BytesInUse())
	}
}

func TestSyncPoolResize(t *testing.T) {
	p, _ := newTestPool(t, 200, true)
	sp := NewSyncPool(p)
	if !sp.Dynamic() {
		t.Fatal("expected dynamic pool")
	}
	if !sp.Resize(4) {
		t.Error("expected grow to be applied")
	}
	if sp.BudgetBytes() != 400 {
		t.Errorf("expected budget 400, got %d", sp.BudgetBytes())
	}

	f, err := sp.Allocate(100)
	if err != nil {
		t.Fatal(err)
	}
	sp.Release(f)
	sp.Reset()
	if sp.AllocatedBytes() != 0 {
		t.Errorf("expected 0 allocated bytes after reset, got %d", sp.AllocatedBytes())
	}
}

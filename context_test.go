package framepool

import (
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/holmberd/go-framepool/internal/testutils"
)

func TestHeapContext(t *testing.T) {
	t.Run("Allocate and deallocate", func(t *testing.T) {
		ctx := NewHeapContext(128)
		if ctx.MinFrameSize() != 128 {
			t.Fatalf("expected min frame size 128, got %d", ctx.MinFrameSize())
		}
		f, err := ctx.AllocateFrame(256)
		if err != nil {
			t.Fatal(err)
		}
		if len(f) != 256 || cap(f) != 256 {
			t.Errorf("expected len/cap 256, got len=%d, cap=%d", len(f), cap(f))
		}
		if ctx.InUse() != 256 {
			t.Errorf("expected 256 bytes in use, got %d", ctx.InUse())
		}
		ctx.DeallocateFrame(f[:0])
		if ctx.InUse() != 0 {
			t.Errorf("expected 0 bytes in use, got %d", ctx.InUse())
		}
	})

	t.Run("Size below minimum", func(t *testing.T) {
		ctx := NewHeapContext(128)
		if _, err := ctx.AllocateFrame(127); err == nil {
			t.Fatal("expected an error for a frame below the minimum size, but got nil")
		}
		if ctx.InUse() != 0 {
			t.Errorf("expected 0 bytes in use, got %d", ctx.InUse())
		}
	})
}

func TestLimitContext(t *testing.T) {
	t.Run("Allocations within limit", func(t *testing.T) {
		ctx := NewLimitContext(&testutils.MockContext{}, 300)
		if ctx.MinFrameSize() != testutils.MockFrameSize {
			t.Fatalf("expected min frame size %d, got %d", testutils.MockFrameSize, ctx.MinFrameSize())
		}
		for range 3 {
			if _, err := ctx.AllocateFrame(100); err != nil {
				t.Fatal(err)
			}
		}
		_, err := ctx.AllocateFrame(100)
		if !errors.Is(err, ErrContextLimit) {
			t.Fatalf("expected error %q, got %v", ErrContextLimit, err)
		}
		if ctx.InUse() != 300 {
			t.Errorf("expected 300 bytes in use, got %d", ctx.InUse())
		}
	})

	t.Run("Wrapped context failure", func(t *testing.T) {
		mock := &testutils.MockContext{FailAfter: 1}
		ctx := NewLimitContext(mock, 1000)
		if _, err := ctx.AllocateFrame(100); err != nil {
			t.Fatal(err)
		}
		if _, err := ctx.AllocateFrame(100); !errors.Is(err, testutils.ErrMockAllocation) {
			t.Fatalf("expected error %q, got %v", testutils.ErrMockAllocation, err)
		}
		if ctx.InUse() != 100 {
			t.Errorf("expected 100 bytes in use, got %d", ctx.InUse())
		}
	})

	t.Run("Pool surfaces limit as context failure", func(t *testing.T) {
		mock := &testutils.MockContext{}
		ctx := NewLimitContext(mock, 200)
		discardLogger := slog.New(slog.NewTextHandler(io.Discard, nil))
		p, err := New(ctx, discardLogger, Config{BudgetBytes: 500})
		if err != nil {
			t.Fatal(err)
		}
		frames := mustAllocate(t, p, 100, 2)
		if _, err := p.Allocate(100); !errors.Is(err, ErrContextLimit) {
			t.Fatalf("expected error %q, got %v", ErrContextLimit, err)
		}
		assertAllocated(t, p, 200)

		p.Release(frames[0])
		p.Release(frames[1])
		p.Close()
		if ctx.InUse() != 0 || mock.BytesInUse() != 0 {
			t.Errorf("expected all bytes returned, got %d and %d in use", ctx.InUse(), mock.BytesInUse())
		}
	})
}

func TestMmapContext(t *testing.T) {
	discardLogger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx := NewMmapContext(4*KiB, discardLogger)

	t.Run("Map and unmap frames", func(t *testing.T) {
		f, err := ctx.AllocateFrame(16 * KiB)
		if err != nil {
			t.Fatal(err)
		}
		if len(f) != 16*KiB || cap(f) != 16*KiB {
			t.Errorf("expected len/cap %d, got len=%d, cap=%d", 16*KiB, len(f), cap(f))
		}
		f[0], f[len(f)-1] = 1, 2 // Mapping must be writable.
		if ctx.Mapped() != 16*KiB {
			t.Errorf("expected %d bytes mapped, got %d", 16*KiB, ctx.Mapped())
		}
		ctx.DeallocateFrame(f[:8])
		if ctx.Mapped() != 0 {
			t.Errorf("expected 0 bytes mapped, got %d", ctx.Mapped())
		}
	})

	t.Run("Size below minimum", func(t *testing.T) {
		if _, err := ctx.AllocateFrame(KiB); err == nil {
			t.Fatal("expected an error for a frame below the minimum size, but got nil")
		}
	})

	t.Run("Pool over mmap context", func(t *testing.T) {
		p, err := New(ctx, discardLogger, DefaultConfig(ctx, 4))
		if err != nil {
			t.Fatal(err)
		}
		frames := make([][]byte, 4)
		for i := range frames {
			if frames[i], err = p.Allocate(4 * KiB); err != nil {
				t.Fatal(err)
			}
		}
		for _, f := range frames {
			p.Release(f)
		}
		merged, err := p.Allocate(10 * KiB)
		if err != nil {
			t.Fatal(err)
		}
		if cap(merged) != 12*KiB {
			t.Errorf("expected merged frame of %d bytes, got %d", 12*KiB, cap(merged))
		}
		p.Release(merged)
		p.Close()
		if ctx.Mapped() != 0 {
			t.Errorf("expected 0 bytes mapped after close, got %d", ctx.Mapped())
		}
	})
}

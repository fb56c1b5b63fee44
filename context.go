package framepool

import (
	"errors"
	"fmt"
	"sync/atomic"
)

// ErrContextLimit is returned by LimitContext when an allocation would exceed its limit.
var ErrContextLimit = errors.New("allocation context memory limit exceeded")

// AllocationContext defines the contract for the memory source behind a Pool.
type AllocationContext interface {
	MinFrameSize() int                      // Returns the granularity below which no frame is created.
	AllocateFrame(size int) ([]byte, error) // Allocates a frame of exactly size bytes.
	DeallocateFrame(frame []byte)           // Returns cap(frame) bytes to the context.
}

// HeapContext allocates frames on the Go heap.
// Deallocation only updates the context's accounting; the memory is reclaimed by the GC.
// A HeapContext is safe for concurrent use by multiple goroutines.
type HeapContext struct {
	frameSize int
	inUse     atomic.Int64
}

// NewHeapContext creates a heap context with a minimum frame size of frameSize bytes.
func NewHeapContext(frameSize int) *HeapContext {
	if frameSize <= 0 {
		panic(fmt.Sprintf("invalid minimum frame size: %d", frameSize))
	}
	return &HeapContext{frameSize: frameSize}
}

func (c *HeapContext) MinFrameSize() int {
	return c.frameSize
}

func (c *HeapContext) AllocateFrame(size int) ([]byte, error) {
	if size < c.frameSize {
		return nil, fmt.Errorf("frame size %d is below the minimum frame size %d", size, c.frameSize)
	}
	c.inUse.Add(int64(size))
	return make([]byte, size), nil
}

func (c *HeapContext) DeallocateFrame(frame []byte) {
	c.inUse.Add(-int64(cap(frame)))
}

// InUse returns the number of bytes allocated and not yet deallocated.
func (c *HeapContext) InUse() int64 {
	return c.inUse.Load()
}

// LimitContext wraps an AllocationContext and fails allocations that would
// take the bytes in use above a fixed limit, e.g. a job-wide memory ceiling
// shared by several pools.
// A LimitContext is safe for concurrent use if the wrapped context is.
type LimitContext struct {
	AllocationContext
	limit int64
	inUse atomic.Int64
}

// NewLimitContext creates a context allowing at most limit bytes in use through ctx.
func NewLimitContext(ctx AllocationContext, limit int) *LimitContext {
	return &LimitContext{AllocationContext: ctx, limit: int64(limit)}
}

func (c *LimitContext) AllocateFrame(size int) ([]byte, error) {
	if n := c.inUse.Add(int64(size)); n > c.limit {
		c.inUse.Add(-int64(size))
		return nil, fmt.Errorf("%w: requested %d bytes with %d of %d in use",
			ErrContextLimit, size, n-int64(size), c.limit)
	}
	frame, err := c.AllocationContext.AllocateFrame(size)
	if err != nil {
		c.inUse.Add(-int64(size))
		return nil, err
	}
	return frame, nil
}

func (c *LimitContext) DeallocateFrame(frame []byte) {
	c.inUse.Add(-int64(cap(frame)))
	c.AllocationContext.DeallocateFrame(frame)
}

// InUse returns the number of bytes allocated through c and not yet deallocated.
func (c *LimitContext) InUse() int64 {
	return c.inUse.Load()
}

package testutils

import (
	"errors"
	"sync/atomic"
)

var (
	MockFrameSize = 100

	ErrMockAllocation = errors.New("mock allocation failure")
)

// MockContext is an allocation context that counts calls and bytes.
type MockContext struct {
	allocCalls   atomic.Int64
	deallocCalls atomic.Int64
	allocBytes   atomic.Int64
	deallocBytes atomic.Int64

	// FailAfter makes AllocateFrame fail once that many allocations succeeded.
	// A value <= 0 disables failures.
	FailAfter int64
}

func (c *MockContext) MinFrameSize() int {
	return MockFrameSize
}

func (c *MockContext) AllocateFrame(size int) ([]byte, error) {
	if c.FailAfter > 0 && c.allocCalls.Load() >= c.FailAfter {
		return nil, ErrMockAllocation
	}
	c.allocCalls.Add(1)
	c.allocBytes.Add(int64(size))
	return make([]byte, size), nil
}

func (c *MockContext) DeallocateFrame(frame []byte) {
	c.deallocCalls.Add(1)
	c.deallocBytes.Add(int64(cap(frame)))
}

func (c *MockContext) AllocCalls() int64 {
	return c.allocCalls.Load()
}

func (c *MockContext) DeallocCalls() int64 {
	return c.deallocCalls.Load()
}

func (c *MockContext) DeallocBytes() int64 {
	return c.deallocBytes.Load()
}

// BytesInUse returns the bytes allocated and not yet deallocated.
func (c *MockContext) BytesInUse() int64 {
	return c.allocBytes.Load() - c.deallocBytes.Load()
}

func (c *MockContext) Reset() {
	c.allocCalls.Store(0)
	c.deallocCalls.Store(0)
	c.allocBytes.Store(0)
	c.deallocBytes.Store(0)
}

// Package framepool implements a memory pool for the fixed-granularity
// frames consumed by query operators (sorts, joins, group-bys) during execution.
//
// A Pool satisfies variable-size frame requests from a fixed or dynamically
// resizable byte budget. It reuses released frames first, allocates fresh
// frames while the budget allows it, and otherwise merges pooled frames into
// a single larger frame.
package framepool

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/eapache/queue"
)

var (
	// ErrPoolExhausted is returned by Allocate when neither reuse, fresh allocation
	// nor merging pooled frames can satisfy a request under the current budget.
	// Operators are expected to react by spilling or applying backpressure.
	ErrPoolExhausted    = errors.New("frame pool exhausted")
	ErrInvalidFrameSize = errors.New("frame size must be positive")
)

// Stats represents pool stats.
type Stats struct {
	Reuses        uint64 // Requests served from the free list.
	Allocations   uint64 // Fresh frames requested from the allocation context.
	Merges        uint64 // Requests served by merging pooled frames.
	Exhaustions   uint64 // Requests that failed with ErrPoolExhausted.
	Deallocations uint64 // Frames returned to the allocation context.

	AllocatedBytes int // Bytes outstanding or pooled.
	BudgetBytes    int
	FreeFrames     int
}

// Reset zeroes s for re-use.
func (s *Stats) Reset() {
	*s = Stats{}
}

// add accumulates other into s.
func (s *Stats) add(other Stats) {
	s.Reuses += other.Reuses
	s.Allocations += other.Allocations
	s.Merges += other.Merges
	s.Exhaustions += other.Exhaustions
	s.Deallocations += other.Deallocations
	s.AllocatedBytes += other.AllocatedBytes
	s.BudgetBytes += other.BudgetBytes
	s.FreeFrames += other.FreeFrames
}

// Pool hands out, reuses, merges and reclaims frames on behalf of a single
// execution unit.
//
// A frame is either outstanding (held by a consumer) or pooled (in the free
// list), never both. Both states are counted in the allocated bytes.
//
// A Pool is not safe for concurrent use; see SyncPool.
type Pool struct {
	logger *slog.Logger
	ctx    AllocationContext

	budget    int // Enforced ceiling on allocated bytes.
	desired   int // Target budget in dynamic mode.
	allocated int // Bytes outstanding or pooled.
	dynamic   bool

	// free contains released frames of exactly MinFrameSize capacity, oldest first.
	// Since Release never pools any other capacity the head is always the first fit.
	free  *queue.Queue
	stats Stats
}

// New creates a new, empty Pool drawing frames from ctx.
func New(ctx AllocationContext, logger *slog.Logger, config Config) (*Pool, error) {
	if err := config.Validate(ctx); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pool{
		logger:  logger,
		ctx:     ctx,
		budget:  config.BudgetBytes,
		desired: config.BudgetBytes,
		dynamic: config.Dynamic,
		free:    queue.New(),
	}, nil
}

// MinFrameSize returns the allocation context's minimum frame size.
func (p *Pool) MinFrameSize() int {
	return p.ctx.MinFrameSize()
}

// BudgetBytes returns the currently enforced memory budget in bytes.
func (p *Pool) BudgetBytes() int {
	return p.budget
}

// DesiredBudgetBytes returns the budget the pool is converging to.
// It differs from BudgetBytes only while a shrink is pending.
func (p *Pool) DesiredBudgetBytes() int {
	return p.desired
}

// AllocatedBytes returns the bytes currently outstanding or pooled.
func (p *Pool) AllocatedBytes() int {
	return p.allocated
}

// FreeFrames returns the number of pooled frames.
func (p *Pool) FreeFrames() int {
	return p.free.Length()
}

// Dynamic reports whether the pool's budget can be resized.
func (p *Pool) Dynamic() bool {
	return p.dynamic
}

// Allocate returns a frame with a capacity of at least size bytes.
//
// The returned frame may be larger than requested; callers must track their
// own logical length. Allocate returns ErrPoolExhausted if the budget cannot
// accommodate the request, and any allocation context error unchanged.
//
// A request that is not served by a pooled frame is passed to the allocation
// context as is. HeapContext and MmapContext reject sizes below MinFrameSize,
// so callers should request at least MinFrameSize bytes.
func (p *Pool) Allocate(size int) ([]byte, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidFrameSize, size)
	}
	if frame := p.findFree(size); frame != nil {
		p.stats.Reuses++
		return frame, nil
	}
	if p.allocated+size <= p.budget {
		frame, err := p.newFrame(size)
		if err != nil {
			return nil, err
		}
		p.stats.Allocations++
		return frame, nil
	}
	return p.merge(size)
}

// findFree removes and returns the first pooled frame that fits size, or nil.
func (p *Pool) findFree(size int) []byte {
	if p.free.Length() == 0 {
		return nil
	}
	if frame := p.free.Peek().([]byte); cap(frame) >= size {
		p.free.Remove()
		return frame
	}
	return nil
}

// newFrame allocates a frame of exactly size bytes from the context.
func (p *Pool) newFrame(size int) ([]byte, error) {
	frame, err := p.ctx.AllocateFrame(size)
	if err != nil {
		return nil, err
	}
	p.allocated += size
	return frame, nil
}

// merge drains pooled frames until the freed bytes plus the unused headroom
// cover size, then allocates a single frame of the merged size.
// Drained frames are not restored if the request still cannot be satisfied.
func (p *Pool) merge(size int) ([]byte, error) {
	merged := p.budget - p.allocated
	for p.free.Length() > 0 {
		frame := p.free.Remove().([]byte)
		merged += cap(frame)
		p.deallocate(frame)
		if merged >= size {
			frame, err := p.newFrame(merged)
			if err != nil {
				return nil, err
			}
			p.stats.Merges++
			p.logger.Debug("merged pooled frames", "size", size, "merged", merged)
			return frame, nil
		}
	}
	p.stats.Exhaustions++
	p.logger.Debug("frame pool exhausted",
		"size", size,
		"allocated", p.allocated,
		"budget", p.budget,
	)
	return nil, ErrPoolExhausted
}

func (p *Pool) deallocate(frame []byte) {
	p.ctx.DeallocateFrame(frame)
	p.allocated -= cap(frame)
	p.stats.Deallocations++
}

// Release returns a frame obtained from Allocate to the pool.
//
// Frames larger than the minimum frame size are returned to the allocation
// context immediately, as are all frames while a dynamic pool is above its
// desired budget. Releasing a frame twice corrupts the pool's accounting.
func (p *Pool) Release(frame []byte) {
	if frame == nil {
		return
	}
	if p.shouldDeallocate(frame) {
		p.deallocate(frame)
		return
	}
	p.free.Add(frame[:cap(frame)])
}

func (p *Pool) shouldDeallocate(frame []byte) bool {
	if cap(frame) != p.ctx.MinFrameSize() {
		return true
	}
	return p.dynamic && p.allocated > p.desired
}

// Resize requests a new budget of desiredFrames minimum-size frames.
//
// In static mode the budget is left as is. A growing budget, or a shrinking one
// the current usage already fits under, is applied immediately; otherwise the
// shrink is deferred and the pool deallocates released frames until usage drains.
// Resize reports whether the requested budget is in effect.
func (p *Pool) Resize(desiredFrames int) bool {
	if p.dynamic {
		p.desired = desiredFrames * p.ctx.MinFrameSize()
	} else {
		p.desired = p.budget
	}
	if p.desired >= p.budget || p.allocated <= p.desired {
		p.budget = p.desired
	}
	return p.budget == p.desired
}

// Reset forgets all pooled frames without returning them to the allocation
// context. It must only be used when the context itself is being reset.
func (p *Pool) Reset() {
	p.allocated = 0
	p.free = queue.New()
}

// Close returns all pooled frames to the allocation context.
// Outstanding frames are not tracked and remain owned by their consumers.
func (p *Pool) Close() {
	for p.free.Length() > 0 {
		p.deallocate(p.free.Remove().([]byte))
	}
	p.allocated = 0
}

// UpdateStats adds the pool's stats to s.
func (p *Pool) UpdateStats(s *Stats) {
	st := p.stats
	st.AllocatedBytes = p.allocated
	st.BudgetBytes = p.budget
	st.FreeFrames = p.free.Length()
	s.add(st)
}

package framepool

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
)

var (
	ErrPoolExists = errors.New("frame pool already registered")
	ErrEmptyID    = errors.New("frame pool id cannot be empty")
)

const (
	shardCount = 64 // Must be a power of two for unbiased modulo.
)

func shardIndex(n uint64) uint64 {
	// Faster modulo via bitwise AND; requires shardCount to be a power of two.
	return n & (shardCount - 1)
}

// Manager is a registry of the frame pools of the operators running on a node.
// Dynamic pools share a fixed number of frames which the manager
// redistributes between them on Rebalance.
//
// A Manager is safe for concurrent use by multiple goroutines.
type Manager struct {
	logger *slog.Logger
	ctx    AllocationContext
	config ManagerConfig
	shards [shardCount]shard

	// retired holds the counters of unregistered pools so exported totals never decrease.
	retiredMu sync.Mutex
	retired   Stats
}

// NewManager creates a new, empty manager whose pools draw frames from ctx.
func NewManager(ctx AllocationContext, logger *slog.Logger, config ManagerConfig) (*Manager, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	m := &Manager{logger: logger, ctx: ctx, config: config}
	for i := range m.shards[:] {
		m.shards[i].Init()
	}
	return m, nil
}

func (m *Manager) shard(id string) *shard {
	return &m.shards[shardIndex(xxhash.Sum64String(id))]
}

// Register creates a pool with an initial budget of budgetFrames minimum-size frames.
func (m *Manager) Register(id string, dynamic bool, budgetFrames int) (*SyncPool, error) {
	if id == "" {
		return nil, ErrEmptyID
	}
	config := Config{
		BudgetBytes: budgetFrames * m.ctx.MinFrameSize(),
		Dynamic:     dynamic,
	}
	p, err := New(m.ctx, m.logger.With("pool", id), config)
	if err != nil {
		return nil, err
	}
	sp := NewSyncPool(p)
	if !m.shard(id).Add(id, sp) {
		return nil, fmt.Errorf("%w: %q", ErrPoolExists, id)
	}
	return sp, nil
}

// Get returns the pool registered under id.
func (m *Manager) Get(id string) (*SyncPool, bool) {
	return m.shard(id).Get(id)
}

// Unregister closes and removes the pool registered under id.
// It returns false if no such pool exists.
//
// The pool handle returned by Register must not be used afterwards: its
// frames are no longer accounted for in the manager's stats.
func (m *Manager) Unregister(id string) bool {
	p, ok := m.shard(id).Remove(id)
	if ok {
		m.retire(p)
	}
	return ok
}

// retire closes p and keeps its counters.
func (m *Manager) retire(p *SyncPool) {
	p.Close()
	var s Stats
	p.UpdateStats(&s)
	s.AllocatedBytes, s.BudgetBytes, s.FreeFrames = 0, 0, 0

	m.retiredMu.Lock()
	m.retired.add(s)
	m.retiredMu.Unlock()
}

// Len returns the number of registered pools.
func (m *Manager) Len() int {
	n := 0
	for i := range m.shards {
		n += m.shards[i].Len()
	}
	return n
}

func (m *Manager) pools() []*SyncPool {
	var pools []*SyncPool
	for i := range m.shards {
		pools = m.shards[i].Snapshot(pools)
	}
	return pools
}

// Rebalance divides the total frames evenly between all dynamic pools, with at
// least one frame per pool. It returns the number of pools whose shrink was
// deferred until their outstanding frames are released.
func (m *Manager) Rebalance() (pending int) {
	var dynamic []*SyncPool
	for _, p := range m.pools() {
		if p.Dynamic() {
			dynamic = append(dynamic, p)
		}
	}
	if len(dynamic) == 0 {
		return 0
	}
	share := max(1, m.config.TotalFrames/len(dynamic))
	for _, p := range dynamic {
		if !p.Resize(share) {
			pending++
		}
	}
	return pending
}

// Run rebalances the pools every RebalanceInterval until ctx is cancelled.
func (m *Manager) Run(ctx context.Context) {
	if m.config.RebalanceInterval <= 0 {
		return
	}
	ticker := time.NewTicker(m.config.RebalanceInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if pending := m.Rebalance(); pending > 0 {
				m.logger.Debug("deferred frame pool shrink", "pending", pending)
			}
		}
	}
}

// UpdateStats adds the stats of all registered pools, and the counters of
// unregistered ones, to s.
func (m *Manager) UpdateStats(s *Stats) {
	m.retiredMu.Lock()
	s.add(m.retired)
	m.retiredMu.Unlock()
	for _, p := range m.pools() {
		p.UpdateStats(s)
	}
}

// Close closes and removes all registered pools.
func (m *Manager) Close() {
	for i := range m.shards {
		for _, p := range m.shards[i].Drain() {
			m.retire(p)
		}
	}
}

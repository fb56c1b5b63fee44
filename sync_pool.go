package framepool

import "sync"

// SyncPool guards a Pool with a mutex so it can be shared by several
// operator goroutines.
type SyncPool struct {
	mu   sync.Mutex
	pool *Pool
}

// NewSyncPool wraps p. The caller must not use p directly afterwards.
func NewSyncPool(p *Pool) *SyncPool {
	return &SyncPool{pool: p}
}

func (s *SyncPool) MinFrameSize() int {
	return s.pool.MinFrameSize()
}

func (s *SyncPool) BudgetBytes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pool.BudgetBytes()
}

func (s *SyncPool) AllocatedBytes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pool.AllocatedBytes()
}

func (s *SyncPool) Dynamic() bool {
	return s.pool.Dynamic()
}

// Allocate is the synchronized equivalent of Pool.Allocate.
func (s *SyncPool) Allocate(size int) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pool.Allocate(size)
}

// Release is the synchronized equivalent of Pool.Release.
func (s *SyncPool) Release(frame []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pool.Release(frame)
}

// Resize is the synchronized equivalent of Pool.Resize.
func (s *SyncPool) Resize(desiredFrames int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pool.Resize(desiredFrames)
}

func (s *SyncPool) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pool.Reset()
}

func (s *SyncPool) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pool.Close()
}

func (s *SyncPool) UpdateStats(st *Stats) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pool.UpdateStats(st)
}

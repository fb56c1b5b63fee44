package framepool

import "sync"

// shard is a lock-guarded partition of the manager's pool registry.
type shard struct {
	sync.RWMutex
	pools map[string]*SyncPool
}

func (s *shard) Init() {
	s.pools = make(map[string]*SyncPool)
}

func (s *shard) Get(id string) (*SyncPool, bool) {
	s.RLock()
	defer s.RUnlock()
	p, ok := s.pools[id]
	return p, ok
}

// Add registers p under id. It returns false if id is already registered.
func (s *shard) Add(id string, p *SyncPool) bool {
	s.Lock()
	defer s.Unlock()
	if _, exists := s.pools[id]; exists {
		return false
	}
	s.pools[id] = p
	return true
}

// Remove unregisters and returns the pool registered under id.
func (s *shard) Remove(id string) (*SyncPool, bool) {
	s.Lock()
	defer s.Unlock()
	p, ok := s.pools[id]
	if ok {
		delete(s.pools, id)
	}
	return p, ok
}

// Snapshot appends all pools in the shard to dst.
// The pools are used outside of the shard lock.
func (s *shard) Snapshot(dst []*SyncPool) []*SyncPool {
	s.RLock()
	defer s.RUnlock()
	for _, p := range s.pools {
		dst = append(dst, p)
	}
	return dst
}

func (s *shard) Len() int {
	s.RLock()
	defer s.RUnlock()
	return len(s.pools)
}

// Drain unregisters and returns all pools in the shard.
func (s *shard) Drain() []*SyncPool {
	s.Lock()
	defer s.Unlock()
	pools := make([]*SyncPool, 0, len(s.pools))
	for _, p := range s.pools {
		pools = append(pools, p)
	}
	s.pools = make(map[string]*SyncPool)
	return pools
}

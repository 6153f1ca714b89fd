package llm

import (
	"sync"
	"sync/atomic"
	"time"
)

// modelState tracks one model's load verification. The mutex serializes
// "ensure loaded" for a single model; verifiedAt is atomic so the fast path
// can check freshness without taking the mutex.
type modelState struct {
	mu         sync.Mutex
	verifiedAt atomic.Int64 // unix nanos of last successful verification, 0 = never
}

func (s *modelState) fresh(ttl time.Duration) bool {
	at := s.verifiedAt.Load()
	if at == 0 {
		return false
	}
	return time.Since(time.Unix(0, at)) < ttl
}

func (s *modelState) markVerified() {
	s.verifiedAt.Store(time.Now().UnixNano())
}

// registry holds per-model load state. The outer mutex guards only map
// inserts, so first access to a new model name cannot lose an entry under
// concurrent callers; the per-entry mutex is what serializes loads.
type registry struct {
	mu      sync.Mutex
	entries map[string]*modelState
	ttl     time.Duration
}

func newRegistry(ttl time.Duration) *registry {
	return &registry{
		entries: make(map[string]*modelState),
		ttl:     ttl,
	}
}

func (r *registry) entry(model string) *modelState {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.entries[model]
	if !ok {
		st = &modelState{}
		r.entries[model] = st
	}
	return st
}

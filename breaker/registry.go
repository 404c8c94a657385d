package breaker

import (
	"sort"
	"sync"
	"time"
)

// Registry is a process-wide, name-indexed store of breakers. It lazily
// constructs a breaker on first use; subsequent
// GetBreaker calls for an existing name ignore their threshold/timeout
// arguments — breaker configuration is first-writer-wins per name, so
// callers never unknowingly reconfigure a shared breaker.
type Registry struct {
	mu       sync.Mutex
	breakers map[string]*Breaker
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{breakers: make(map[string]*Breaker)}
}

// GetBreaker returns the named breaker, constructing it with the given
// tuning if it doesn't exist yet.
func (r *Registry) GetBreaker(name string, failureThreshold int, recoveryTimeout time.Duration) *Breaker {
	r.mu.Lock()
	defer r.mu.Unlock()

	if b, ok := r.breakers[name]; ok {
		return b
	}
	b := New(name, failureThreshold, recoveryTimeout)
	r.breakers[name] = b
	return b
}

// GetAllStates returns a consistent snapshot of every registered
// breaker, sorted by name for deterministic output.
func (r *Registry) GetAllStates() []Snapshot {
	r.mu.Lock()
	breakers := make([]*Breaker, 0, len(r.breakers))
	for _, b := range r.breakers {
		breakers = append(breakers, b)
	}
	r.mu.Unlock()

	snapshots := make([]Snapshot, len(breakers))
	for i, b := range breakers {
		snapshots[i] = b.Snapshot()
	}
	sort.Slice(snapshots, func(i, j int) bool { return snapshots[i].Name < snapshots[j].Name })
	return snapshots
}

// ResetAll forces every registered breaker closed.
func (r *Registry) ResetAll() {
	r.mu.Lock()
	breakers := make([]*Breaker, 0, len(r.breakers))
	for _, b := range r.breakers {
		breakers = append(breakers, b)
	}
	r.mu.Unlock()

	for _, b := range breakers {
		b.Reset()
	}
}

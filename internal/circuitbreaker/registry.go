package circuitbreaker

import (
	"sort"
	"sync"
	"time"
)

// Registry owns one breaker per channel name. A breaker, once created, lives
// as long as the registry and is only ever mutated.
type Registry struct {
	mutex     sync.RWMutex
	breakers  map[string]*CircuitBreaker
	threshold int
	timeout   time.Duration
	opts      []Option
}

// Stat is a point-in-time view of one breaker.
type Stat struct {
	State    State `json:"state"`
	Failures int   `json:"failures"`
}

func NewRegistry(threshold int, timeout time.Duration, opts ...Option) *Registry {
	return &Registry{
		breakers:  make(map[string]*CircuitBreaker),
		threshold: threshold,
		timeout:   timeout,
		opts:      opts,
	}
}

func (r *Registry) Get(channel string) *CircuitBreaker {
	r.mutex.RLock()
	cb, exists := r.breakers[channel]
	r.mutex.RUnlock()

	if exists {
		return cb
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	// Double-check: another goroutine may have created it
	if cb, exists = r.breakers[channel]; exists {
		return cb
	}

	cb = NewCircuitBreaker(channel, r.threshold, r.timeout, r.opts...)
	r.breakers[channel] = cb
	return cb
}

// Lookup returns the breaker for channel without creating one.
func (r *Registry) Lookup(channel string) (*CircuitBreaker, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	cb, ok := r.breakers[channel]
	return cb, ok
}

// Reset closes the named breaker. It reports false for unknown channels.
func (r *Registry) Reset(channel string) bool {
	cb, ok := r.Lookup(channel)
	if !ok {
		return false
	}
	cb.Reset()
	return true
}

func (r *Registry) ResetAll() {
	for _, cb := range r.snapshot() {
		cb.Reset()
	}
}

func (r *Registry) Channels() []string {
	r.mutex.RLock()
	names := make([]string, 0, len(r.breakers))
	for name := range r.breakers {
		names = append(names, name)
	}
	r.mutex.RUnlock()

	sort.Strings(names)
	return names
}

func (r *Registry) Stats() map[string]Stat {
	breakers := r.snapshot()

	stats := make(map[string]Stat, len(breakers))
	for _, cb := range breakers {
		// State first: it may apply a pending HALF-OPEN move.
		state := cb.State()
		stats[cb.Channel()] = Stat{State: state, Failures: cb.Failures()}
	}
	return stats
}

// snapshot copies the breaker list so per-breaker locks are never taken
// while holding the registry lock.
func (r *Registry) snapshot() []*CircuitBreaker {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	out := make([]*CircuitBreaker, 0, len(r.breakers))
	for _, cb := range r.breakers {
		out = append(out, cb)
	}
	return out
}

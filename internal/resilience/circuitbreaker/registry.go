package circuitbreaker

import (
	"fmt"
	"sort"
	"sync"
)

// Registry owns the named circuit breakers of one process. It is created once by the
// composition root and passed to whoever needs a breaker, so tests can start from a fresh
// registry.
type Registry struct {
	defaults Config
	opts     []Option

	mu       sync.RWMutex
	breakers map[string]*CircuitBreaker
}

// NewRegistry creates a registry whose Get creates breakers from defaults (with the
// requested name). The options are applied to every breaker the registry creates.
func NewRegistry(defaults Config, opts ...Option) *Registry {
	return &Registry{
		defaults: defaults,
		opts:     opts,
		breakers: make(map[string]*CircuitBreaker),
	}
}

// Get returns the breaker registered under name, creating it from the registry defaults
// if it does not exist yet.
func (r *Registry) Get(name string) *CircuitBreaker {
	r.mu.RLock()
	cb, ok := r.breakers[name]
	r.mu.RUnlock()
	if ok {
		return cb
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if cb, ok := r.breakers[name]; ok {
		return cb
	}
	cfg := r.defaults
	cfg.Name = name
	cb = New(cfg, r.opts...)
	r.breakers[name] = cb
	return cb
}

// Register creates a breaker from cfg. It fails if the configuration is invalid or a
// breaker with the same name already exists.
func (r *Registry) Register(cfg Config) (*CircuitBreaker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("register circuit breaker: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.breakers[cfg.Name]; exists {
		return nil, fmt.Errorf("circuit breaker %q already registered", cfg.Name)
	}
	if cfg.OnStateChange == nil {
		cfg.OnStateChange = r.defaults.OnStateChange
	}
	cb := New(cfg, r.opts...)
	r.breakers[cfg.Name] = cb
	return cb, nil
}

// Lookup returns the breaker registered under name, if any.
func (r *Registry) Lookup(name string) (*CircuitBreaker, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cb, ok := r.breakers[name]
	return cb, ok
}

// Reset force-closes the named breaker. It reports false if no such breaker exists.
func (r *Registry) Reset(name string) bool {
	cb, ok := r.Lookup(name)
	if !ok {
		return false
	}
	cb.Reset()
	return true
}

// Statuses returns a snapshot of every registered breaker, sorted by name.
func (r *Registry) Statuses() []Status {
	r.mu.RLock()
	breakers := make([]*CircuitBreaker, 0, len(r.breakers))
	for _, cb := range r.breakers {
		breakers = append(breakers, cb)
	}
	r.mu.RUnlock()

	statuses := make([]Status, 0, len(breakers))
	for _, cb := range breakers {
		statuses = append(statuses, cb.Status())
	}
	sort.Slice(statuses, func(i, j int) bool { return statuses[i].Name < statuses[j].Name })
	return statuses
}

package circuitbreaker

import "sync"

// Registry manages one breaker per resource key (host, URL, ...).
type Registry struct {
	mu       sync.Mutex
	cfg      Config
	breakers map[string]*Breaker
}

// NewRegistry creates a registry using cfg for every breaker it mints.
func NewRegistry(cfg Config) *Registry {
	return &Registry{
		cfg:      cfg.withDefaults(),
		breakers: make(map[string]*Breaker),
	}
}

// Get returns the breaker for a key, creating it on first use.
func (r *Registry) Get(key string) *Breaker {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.breakers[key]
	if !ok {
		b = New(r.cfg)
		r.breakers[key] = b
	}
	return b
}

// Stats summarizes registry state.
type Stats struct {
	Total int // breakers tracked
	Open  int // breakers currently blocking
}

// Stats returns the current registry statistics.
func (r *Registry) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := Stats{Total: len(r.breakers)}
	for _, b := range r.breakers {
		if b.State() == Open {
			s.Open++
		}
	}
	return s
}

package resilience

import "sync"

// Registry holds one breaker per protected downstream.  It is constructed
// once at process start and passed by reference to whichever component needs
// it; there is no package-global instance.
type Registry struct {
	mu       sync.Mutex
	defaults BreakerSettings
	breakers map[string]*Breaker
}

// NewRegistry builds an empty registry.  defaults apply to breakers created
// lazily through Get.
func NewRegistry(defaults BreakerSettings) *Registry {
	return &Registry{defaults: defaults, breakers: make(map[string]*Breaker)}
}

// Get returns the breaker for the named downstream, creating it from the
// registry defaults on first use.  One breaker instance exists per name for
// the life of the process.
func (r *Registry) Get(name string) *Breaker {
	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.breakers[name]; ok {
		return b
	}
	cfg := r.defaults
	cfg.Name = name
	b := NewBreaker(cfg)
	r.breakers[name] = b
	return b
}

// Register installs a breaker with explicit settings, replacing any breaker
// previously created for the name.
func (r *Registry) Register(cfg BreakerSettings) *Breaker {
	r.mu.Lock()
	defer r.mu.Unlock()
	b := NewBreaker(cfg)
	r.breakers[cfg.Name] = b
	return b
}

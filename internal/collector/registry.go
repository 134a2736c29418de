package collector

import (
	"sort"
	"strings"
	"sync"

	"github.com/newthinker/algotrade/internal/core"
)

// Registry maps data provider names to collectors.
type Registry struct {
	mu         sync.RWMutex
	collectors map[string]Collector
}

func NewRegistry(cs ...Collector) *Registry {
	r := &Registry{collectors: make(map[string]Collector, len(cs))}
	for _, c := range cs {
		r.Register(c)
	}
	return r
}

// Register adds c under its lower-cased name, replacing any earlier
// collector with the same name.
func (r *Registry) Register(c Collector) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.collectors[strings.ToLower(c.Name())] = c
}

// Get looks a provider up case-insensitively.
func (r *Registry) Get(name string) (Collector, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.collectors[strings.ToLower(strings.TrimSpace(name))]
	return c, ok
}

// Open resolves the named provider and initializes it with cfg.
func (r *Registry) Open(name string, cfg Config) (Collector, error) {
	c, ok := r.Get(name)
	if !ok {
		return nil, core.Errorf(core.ErrConfigInvalid, "unknown data provider %q (available: %s)",
			name, strings.Join(r.Names(), ", "))
	}
	if err := c.Init(cfg); err != nil {
		return nil, core.Errorf(core.ErrConfigInvalid, "initializing %s provider: %w", c.Name(), err)
	}
	return c, nil
}

// Names returns registered provider names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.collectors))
	for name := range r.collectors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

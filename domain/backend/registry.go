package backend

import (
	"sort"
	"sync"
)

// Registry holds the backends configured at startup, keyed by database
// name. Registration happens during composition; lookups are concurrent.
type Registry struct {
	mu       sync.RWMutex
	backends map[string]Backend
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{backends: make(map[string]Backend)}
}

// Register adds a backend under its name.
func (r *Registry) Register(b Backend) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.backends[b.Name()]; exists {
		return ErrAlreadyRegistered
	}
	r.backends[b.Name()] = b
	return nil
}

// Get retrieves a backend by database name.
func (r *Registry) Get(name string) (Backend, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	b, ok := r.backends[name]
	if !ok {
		return nil, ErrUnknownDatabase
	}
	return b, nil
}

// Names returns the registered database names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.backends))
	for name := range r.backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

package builder

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Registry stores builders by platform name.
type Registry struct {
	mu       sync.RWMutex
	builders map[string]Builder
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{builders: make(map[string]Builder)}
}

// Register adds a builder by its Platform(). Duplicate names return an error.
func (r *Registry) Register(b Builder) error {
	if b == nil {
		return fmt.Errorf("builder: builder is required")
	}
	name := strings.ToLower(strings.TrimSpace(b.Platform()))
	if name == "" {
		return fmt.Errorf("builder: platform name is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.builders[name]; exists {
		return fmt.Errorf("builder: platform %q already registered", name)
	}
	r.builders[name] = b
	return nil
}

// MustRegister panics on registration failure. Useful for init-time wiring.
func (r *Registry) MustRegister(b Builder) {
	if err := r.Register(b); err != nil {
		panic(err)
	}
}

// Get retrieves the builder for a platform.
func (r *Registry) Get(platform string) (Builder, error) {
	key := strings.ToLower(strings.TrimSpace(platform))
	r.mu.RLock()
	defer r.mu.RUnlock()

	b, ok := r.builders[key]
	if !ok {
		return nil, fmt.Errorf("builder: platform %q not found (available: %s)", key, strings.Join(r.namesLocked(), ", "))
	}
	return b, nil
}

// List returns a sorted list of platform names.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.namesLocked()
}

// Has reports whether a platform is registered.
func (r *Registry) Has(platform string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.builders[strings.ToLower(strings.TrimSpace(platform))]
	return ok
}

func (r *Registry) namesLocked() []string {
	names := make([]string, 0, len(r.builders))
	for name := range r.builders {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

package deployer

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Factory builds a deployer from settings.
type Factory func(Settings) (Deployer, error)

// Registry stores deployer factories by platform name.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a factory. Duplicate names return an error.
func (r *Registry) Register(platform string, factory Factory) error {
	if factory == nil {
		return fmt.Errorf("deployer: factory is required")
	}
	name := strings.ToLower(strings.TrimSpace(platform))
	if name == "" {
		return fmt.Errorf("deployer: platform name is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[name]; exists {
		return fmt.Errorf("deployer: platform %q already registered", name)
	}
	r.factories[name] = factory
	return nil
}

// MustRegister panics on registration failure.
func (r *Registry) MustRegister(platform string, factory Factory) {
	if err := r.Register(platform, factory); err != nil {
		panic(err)
	}
}

// New builds the deployer registered for platform.
func (r *Registry) New(platform string, settings Settings) (Deployer, error) {
	key := strings.ToLower(strings.TrimSpace(platform))
	r.mu.RLock()
	factory, ok := r.factories[key]
	names := r.namesLocked()
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("deployer: platform %q not found (available: %s)", key, strings.Join(names, ", "))
	}
	return factory(settings)
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
	_, ok := r.factories[strings.ToLower(strings.TrimSpace(platform))]
	return ok
}

func (r *Registry) namesLocked() []string {
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

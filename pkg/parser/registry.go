package parser

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// Registry stores parsers by name.
type Registry struct {
	mu      sync.RWMutex
	parsers map[string]Parser
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{parsers: make(map[string]Parser)}
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Register adds a parser by its Name(). Duplicate names return an error.
func (r *Registry) Register(p Parser) error {
	if p == nil {
		return fmt.Errorf("parser: parser is required")
	}
	name := normalizeName(p.Name())
	if name == "" {
		return fmt.Errorf("parser: parser name is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.parsers[name]; exists {
		return fmt.Errorf("parser: parser %q already registered", name)
	}
	r.parsers[name] = p
	return nil
}

// MustRegister panics on registration failure.
func (r *Registry) MustRegister(p Parser) {
	if err := r.Register(p); err != nil {
		panic(err)
	}
}

// Get retrieves a parser by name.
func (r *Registry) Get(name string) (Parser, error) {
	key := normalizeName(name)
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.parsers[key]
	if !ok {
		return nil, fmt.Errorf("parser: parser %q not found (available: %s)", key, strings.Join(r.namesLocked(), ", "))
	}
	return p, nil
}

// Detect picks the parser claiming the extension of path. Ties between
// parsers claiming the same extension resolve to the lexically first name.
func (r *Registry) Detect(path string) (Parser, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == "" {
		return nil, fmt.Errorf("parser: cannot detect format of %q without an extension", path)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, name := range r.namesLocked() {
		p := r.parsers[name]
		for _, claimed := range p.Extensions() {
			if strings.ToLower(claimed) == ext {
				return p, nil
			}
		}
	}
	return nil, fmt.Errorf("parser: no parser registered for %q files", ext)
}

// List returns a sorted list of parser names.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.namesLocked()
}

// Has reports whether a parser is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.parsers[normalizeName(name)]
	return ok
}

func (r *Registry) namesLocked() []string {
	names := make([]string, 0, len(r.parsers))
	for name := range r.parsers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

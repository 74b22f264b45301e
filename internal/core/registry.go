package core

import (
	"fmt"
	"sort"
	"sync"

	"github.com/samber/lo"
)

// Registry holds named file loaders.
type Registry struct {
	mu      sync.RWMutex
	loaders map[string]*FileLoader
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{loaders: make(map[string]*FileLoader)}
}

// Register adds a file loader under its Key.
// Returns an error if the key is empty, taken, or the loader is misconfigured.
func (r *Registry) Register(f *FileLoader) error {
	if f == nil || f.Key == "" {
		return fmt.Errorf("register: file loader needs a key")
	}
	if err := f.Check(); err != nil {
		return fmt.Errorf("register: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.loaders[f.Key]; exists {
		return fmt.Errorf("register: loader already registered: %s", f.Key)
	}
	r.loaders[f.Key] = f
	return nil
}

// Get returns a file loader by key.
func (r *Registry) Get(key string) (*FileLoader, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	f, ok := r.loaders[key]
	return f, ok
}

// Lookup is like Get but returns ErrUnknownLoader when key is absent.
func (r *Registry) Lookup(key string) (*FileLoader, error) {
	if f, ok := r.Get(key); ok {
		return f, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownLoader, key)
}

// Keys returns all registered keys, sorted.
func (r *Registry) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	keys := lo.Keys(r.loaders)
	sort.Strings(keys)
	return keys
}

// Len returns the number of registered loaders.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.loaders)
}

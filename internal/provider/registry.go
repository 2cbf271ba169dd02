package provider

import (
	"fmt"
	"slices"
	"strings"
	"sync"

	gateway "github.com/skyward-io/skygate/internal"
	"github.com/skyward-io/skygate/internal/config"
)

// Registry maps provider names to descriptors. It is safe for concurrent use.
type Registry struct {
	mu          sync.RWMutex
	descriptors map[string]*Descriptor
}

// NewRegistry returns an empty, ready-to-use Registry.
func NewRegistry() *Registry {
	return &Registry{descriptors: make(map[string]*Descriptor)}
}

// FromConfig builds a registry holding every enabled configured provider.
func FromConfig(cfg *config.Config) (*Registry, error) {
	r := NewRegistry()
	for _, e := range cfg.Providers {
		if !e.IsEnabled() {
			continue
		}
		d, err := New(e)
		if err != nil {
			return nil, err
		}
		r.Register(d)
	}
	return r, nil
}

// Register adds a descriptor under its name, overwriting any previous one.
func (r *Registry) Register(d *Descriptor) {
	r.mu.Lock()
	r.descriptors[d.Name] = d
	r.mu.Unlock()
}

// Get returns the descriptor registered under name, or an error if not found.
func (r *Registry) Get(name string) (*Descriptor, error) {
	r.mu.RLock()
	d, ok := r.descriptors[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("provider %q not registered", name)
	}
	return d, nil
}

// ByCategory returns all registered descriptors for a category, sorted by name.
func (r *Registry) ByCategory(cat gateway.Category) []*Descriptor {
	r.mu.RLock()
	var out []*Descriptor
	for _, d := range r.descriptors {
		if d.Category == cat {
			out = append(out, d)
		}
	}
	r.mu.RUnlock()
	slices.SortFunc(out, func(a, b *Descriptor) int {
		return strings.Compare(a.Name, b.Name)
	})
	return out
}

// List returns a sorted slice of all registered provider names.
func (r *Registry) List() []string {
	r.mu.RLock()
	names := slices.Collect(func(yield func(string) bool) {
		for name := range r.descriptors {
			if !yield(name) {
				return
			}
		}
	})
	r.mu.RUnlock()
	slices.Sort(names)
	return names
}

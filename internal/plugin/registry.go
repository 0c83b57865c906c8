package plugin

import (
	"sort"
	"sync"
)

// Info stores metadata about a loaded plugin.
type Info struct {
	Name        string
	Version     string
	Description string
	Author      string
	Runtime     Runtime
	Memory      uint32
	Protoops    []string
}

// Registry manages plugin metadata.
type Registry struct {
	plugins map[string]*Info
	mu      sync.RWMutex
}

// NewRegistry creates a new plugin registry.
func NewRegistry() *Registry {
	return &Registry{
		plugins: make(map[string]*Info),
	}
}

// Register adds or updates plugin metadata in the registry.
func (r *Registry) Register(info *Info) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.plugins[info.Name] = info
}

// Remove drops a plugin from the registry.
func (r *Registry) Remove(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.plugins, name)
}

// Get retrieves plugin metadata by name.
func (r *Registry) Get(name string) (*Info, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	info, ok := r.plugins[name]
	return info, ok
}

// List returns all registered plugins sorted by name.
func (r *Registry) List() []*Info {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*Info, 0, len(r.plugins))
	for _, info := range r.plugins {
		result = append(result, info)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })

	return result
}

// Len returns the number of registered plugins.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.plugins)
}

package host

import (
	"fmt"
	"sort"
	"sync"
)

// Registry maps platform names to their factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]registration
}

type registration struct {
	plugin  string
	factory PlatformFactory
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]registration)}
}

// RegisterPlatform registers a platform factory under platform for plugin.
func (r *Registry) RegisterPlatform(plugin, platform string, factory PlatformFactory) error {
	if platform == "" {
		return fmt.Errorf("platform name cannot be empty")
	}
	if factory == nil {
		return fmt.Errorf("platform %s: factory cannot be nil", platform)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.factories[platform]; exists {
		return fmt.Errorf("platform %s already registered", platform)
	}
	r.factories[platform] = registration{plugin: plugin, factory: factory}
	return nil
}

// Lookup returns the factory and owning plugin for platform.
func (r *Registry) Lookup(platform string) (PlatformFactory, string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, ok := r.factories[platform]
	return reg.factory, reg.plugin, ok
}

// ListPlatforms returns the registered platform names, sorted.
func (r *Registry) ListPlatforms() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

package registry

import (
	"fmt"
	"sort"
	"sync"

	"github.com/martinsuchenak/invd/internal/config"
	"github.com/martinsuchenak/invd/internal/syncer"
)

// Dependencies are the shared services a finding source may need
type Dependencies struct {
	Store   syncer.Store
	Classes SourceClasses
}

// SourceClasses answers class hierarchy questions for sources
type SourceClasses interface {
	IsSubclassOf(class, super string) bool
	CanContain(parent, child string) bool
}

// SourceFactory creates a finding source
type SourceFactory func(cfg *config.Config, deps Dependencies) (syncer.Source, error)

// Registry keeps the finding sources available to the sync runner
type Registry struct {
	mu      sync.RWMutex
	sources map[string]SourceFactory
}

var (
	registryInstance *Registry
	registryOnce     sync.Once
)

// GetRegistry returns the singleton registry instance
func GetRegistry() *Registry {
	registryOnce.Do(func() {
		registryInstance = New()
	})
	return registryInstance
}

// New creates an empty registry
func New() *Registry {
	return &Registry{sources: make(map[string]SourceFactory)}
}

// RegisterSource registers a finding source factory under name
func (r *Registry) RegisterSource(name string, factory SourceFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sources[name] = factory
}

// GetSource returns a source factory by name
func (r *Registry) GetSource(name string) (SourceFactory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	factory, exists := r.sources[name]
	return factory, exists
}

// Sources returns the registered source names, sorted
func (r *Registry) Sources() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.sources))
	for name := range r.sources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NewSource builds the named source
func (r *Registry) NewSource(name string, cfg *config.Config, deps Dependencies) (syncer.Source, error) {
	factory, ok := r.GetSource(name)
	if !ok {
		return nil, fmt.Errorf("unknown finding source %q (registered: %v)", name, r.Sources())
	}
	return factory(cfg, deps)
}

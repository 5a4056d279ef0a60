// Package registry maps connector names to factories and keeps descriptive
// metadata for the spec command.
//
// Connectors register themselves from init:
//
//	func init() {
//	    _ = registry.RegisterSource("gocardless", NewSource)
//	}
//
// and are created by the name in a config document's type field.
package registry

import (
	"sort"
	"sync"

	"github.com/ajitpratap0/nebula-gocardless/pkg/config"
	"github.com/ajitpratap0/nebula-gocardless/pkg/connector/core"
	"github.com/ajitpratap0/nebula-gocardless/pkg/errors"
	"github.com/ajitpratap0/nebula-gocardless/pkg/logger"
	"go.uber.org/zap"
)

// SourceFactory creates a source connector from its configuration.
type SourceFactory func(config *config.BaseConfig) (core.Source, error)

// DestinationFactory creates a destination connector from its configuration.
type DestinationFactory func(config *config.BaseConfig) (core.Destination, error)

// factorySet holds the factories of one connector kind.
type factorySet[T any] struct {
	kind      string
	mu        sync.RWMutex
	factories map[string]func(*config.BaseConfig) (T, error)
}

func newFactorySet[T any](kind string) *factorySet[T] {
	return &factorySet[T]{kind: kind, factories: make(map[string]func(*config.BaseConfig) (T, error))}
}

func (s *factorySet[T]) register(name string, factory func(*config.BaseConfig) (T, error)) error {
	if name == "" || factory == nil {
		return errors.Newf(errors.ErrorTypeConfig, "%s connector needs a name and a factory", s.kind)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.factories[name]; exists {
		return errors.Newf(errors.ErrorTypeConfig, "%s connector %s already registered", s.kind, name)
	}
	s.factories[name] = factory

	logger.Get().Debug("connector registered", zap.String("kind", s.kind), zap.String("name", name))
	return nil
}

func (s *factorySet[T]) create(name string, cfg *config.BaseConfig) (T, error) {
	var zero T
	s.mu.RLock()
	factory, exists := s.factories[name]
	s.mu.RUnlock()
	if !exists {
		return zero, errors.Newf(errors.ErrorTypeConfig, "%s connector %s not found (registered: %v)", s.kind, name, s.names())
	}

	c, err := factory(cfg)
	if err != nil {
		return zero, errors.Wrap(err, errors.ErrorTypeConfig, "failed to create "+s.kind+" connector "+name)
	}
	return c, nil
}

func (s *factorySet[T]) has(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, exists := s.factories[name]
	return exists
}

func (s *factorySet[T]) names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.factories))
	for name := range s.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Registry manages connector registration and instantiation
type Registry struct {
	sources      *factorySet[core.Source]
	destinations *factorySet[core.Destination]
}

var globalRegistry = NewRegistry()

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		sources:      newFactorySet[core.Source]("source"),
		destinations: newFactorySet[core.Destination]("destination"),
	}
}

// RegisterSource registers a source factory. Names are unique per kind.
func (r *Registry) RegisterSource(name string, factory SourceFactory) error {
	return r.sources.register(name, factory)
}

// RegisterDestination registers a destination factory.
func (r *Registry) RegisterDestination(name string, factory DestinationFactory) error {
	return r.destinations.register(name, factory)
}

// CreateSource builds an uninitialized source.
func (r *Registry) CreateSource(name string, cfg *config.BaseConfig) (core.Source, error) {
	return r.sources.create(name, cfg)
}

// CreateDestination builds an uninitialized destination.
func (r *Registry) CreateDestination(name string, cfg *config.BaseConfig) (core.Destination, error) {
	return r.destinations.create(name, cfg)
}

// ListSources returns the registered source names in sorted order.
func (r *Registry) ListSources() []string { return r.sources.names() }

// ListDestinations returns the registered destination names in sorted order.
func (r *Registry) ListDestinations() []string { return r.destinations.names() }

func (r *Registry) HasSource(name string) bool      { return r.sources.has(name) }
func (r *Registry) HasDestination(name string) bool { return r.destinations.has(name) }

// RegisterSource registers a source connector in the global registry
func RegisterSource(name string, factory SourceFactory) error {
	return globalRegistry.RegisterSource(name, factory)
}

// RegisterDestination registers a destination connector in the global registry
func RegisterDestination(name string, factory DestinationFactory) error {
	return globalRegistry.RegisterDestination(name, factory)
}

// CreateSource creates a source connector from the global registry
func CreateSource(name string, cfg *config.BaseConfig) (core.Source, error) {
	return globalRegistry.CreateSource(name, cfg)
}

// CreateDestination creates a destination connector from the global registry
func CreateDestination(name string, cfg *config.BaseConfig) (core.Destination, error) {
	return globalRegistry.CreateDestination(name, cfg)
}

// ListSources returns registered sources from the global registry
func ListSources() []string {
	return globalRegistry.ListSources()
}

// ListDestinations returns registered destinations from the global registry
func ListDestinations() []string {
	return globalRegistry.ListDestinations()
}

// HasSource checks if a source is registered in the global registry
func HasSource(name string) bool {
	return globalRegistry.HasSource(name)
}

// HasDestination checks if a destination is registered in the global registry
func HasDestination(name string) bool {
	return globalRegistry.HasDestination(name)
}

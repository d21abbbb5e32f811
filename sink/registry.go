package sink

import (
	"errors"
	"fmt"
	"io"
	"slices"
	"sort"
	"sync"
)

// ErrUnknownSink is returned when a name is not registered.
var ErrUnknownSink = errors.New("sink: unknown transfer method")

// ErrDuplicateSink is returned when two plugins claim the same name.
var ErrDuplicateSink = errors.New("sink: duplicate transfer method")

// Registry maps plugin names to plugins. It is populated once at startup.
type Registry struct {
	mu      sync.RWMutex
	plugins map[string]Plugin
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{plugins: make(map[string]Plugin)}
}

// Register adds a plugin.
func (r *Registry) Register(p Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.plugins[p.Name()]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateSink, p.Name())
	}
	r.plugins[p.Name()] = p
	return nil
}

// Discover returns a copy of the name to plugin mapping.
func (r *Registry) Discover() map[string]Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]Plugin, len(r.plugins))
	for name, p := range r.plugins {
		out[name] = p
	}
	return out
}

// Get looks up a plugin by name.
func (r *Registry) Get(name string) (Plugin, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.plugins[name]
	return p, ok
}

// Names returns the registered names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.plugins))
	for name := range r.plugins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Target is a plugin bound to its effective configuration.
type Target struct {
	Plugin Plugin
	Config Config
}

// Name returns the plugin name.
func (t Target) Name() string { return t.Plugin.Name() }

// Resolve binds each named plugin to its defaults merged with overrides[name].
// Order follows names; duplicates are dropped.
func (r *Registry) Resolve(names []string, overrides map[string]map[string]any) ([]Target, error) {
	var seen []string
	targets := make([]Target, 0, len(names))
	for _, name := range names {
		if slices.Contains(seen, name) {
			continue
		}
		seen = append(seen, name)

		p, ok := r.Get(name)
		if !ok {
			return nil, fmt.Errorf("%w: %s (available: %v)", ErrUnknownSink, name, r.Names())
		}
		targets = append(targets, Target{
			Plugin: p,
			Config: p.DefaultConfig().Merge(overrides[name]),
		})
	}
	return targets, nil
}

// Close releases plugins that hold connections.
func (r *Registry) Close() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var errs []error
	for _, p := range r.plugins {
		if c, ok := p.(io.Closer); ok {
			errs = append(errs, c.Close())
		}
	}
	return errors.Join(errs...)
}

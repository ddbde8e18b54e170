package ioc

import (
	"fmt"
	"plugin"
	"sync"
)

// PluginLoader loads the object exported by a plugin at path.
type PluginLoader interface {
	Load(path string) (any, error)
}

// PluginLoaderFunc adapts a function to the PluginLoader interface.
type PluginLoaderFunc func(path string) (any, error)

// Load calls f(path).
func (f PluginLoaderFunc) Load(path string) (any, error) {
	return f(path)
}

// StaticPluginLoader is a registration table of plugin factories keyed by
// path, filled at process start. Each Load calls the factory again.
type StaticPluginLoader struct {
	mu        sync.RWMutex
	factories map[string]func() (any, error)
}

// NewStaticPluginLoader creates an empty loader.
func NewStaticPluginLoader() *StaticPluginLoader {
	return &StaticPluginLoader{factories: make(map[string]func() (any, error))}
}

// Register adds a factory for path. Paths are matched after placeholder
// expansion, so register the expanded form.
func (l *StaticPluginLoader) Register(path string, factory func() (any, error)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.factories[path] = factory
}

// Load runs the factory registered for path.
func (l *StaticPluginLoader) Load(path string) (any, error) {
	l.mu.RLock()
	factory, ok := l.factories[path]
	l.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPluginNotRegistered, path)
	}
	return factory()
}

// GoPluginLoader loads shared objects built with -buildmode=plugin and
// calls their exported constructor symbol.
type GoPluginLoader struct {
	// Symbol is the exported constructor looked up in the plugin.
	// Defaults to "New".
	Symbol string
}

// Load opens the plugin and calls its constructor. The symbol must be a
// func() any or a func() (any, error).
func (l GoPluginLoader) Load(path string) (any, error) {
	p, err := plugin.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening plugin: %w", err)
	}
	name := l.Symbol
	if name == "" {
		name = "New"
	}
	sym, err := p.Lookup(name)
	if err != nil {
		return nil, fmt.Errorf("looking up %s: %w", name, err)
	}

	switch ctor := sym.(type) {
	case func() any:
		return ctor(), nil
	case func() (any, error):
		return ctor()
	default:
		return nil, fmt.Errorf("%w: %s is %T", ErrPluginSymbolType, name, sym)
	}
}

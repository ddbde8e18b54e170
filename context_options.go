package ioc

import (
	"fmt"

	"github.com/GoCodeAlone/ioc/config"
)

// ContextOption represents a configuration option for an ApplicationContext
type ContextOption func(*ApplicationContext) error

// WithRoutineRegistry makes the context run startup and shutdown routines
// from r instead of the process-wide registry.
func WithRoutineRegistry(r *RoutineRegistry) ContextOption {
	return func(c *ApplicationContext) error {
		c.routines = r
		return nil
	}
}

// WithPluginLoader sets the loader used for definitions with a PluginPath.
func WithPluginLoader(loader PluginLoader) ContextOption {
	return func(c *ApplicationContext) error {
		c.plugins = loader
		return nil
	}
}

// WithExecutionContext registers execution contexts that beans can declare
// a thread affinity for.
func WithExecutionContext(contexts ...ExecutionContext) ContextOption {
	return func(c *ApplicationContext) error {
		for _, ec := range contexts {
			if ec == nil {
				return ErrNilExecutionContext
			}
			if _, exists := c.execContexts[ec.Name()]; exists {
				return fmt.Errorf("%w: %s", ErrDuplicateExecContext, ec.Name())
			}
			c.execContexts[ec.Name()] = ec
		}
		return nil
	}
}

// WithConfig applies cfg, including the name of the execution context the
// context builds on.
func WithConfig(cfg *config.Config) ContextOption {
	return func(c *ApplicationContext) error {
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}
		c.execName = cfg.ExecutionContext
		c.ApplyConfig(cfg)
		return nil
	}
}

// WithDefinitions registers the definitions produced by src.
func WithDefinitions(src DefinitionSource) ContextOption {
	return func(c *ApplicationContext) error {
		return c.LoadDefinitions(src)
	}
}

// WithObserver registers an observer for the given event types, or for all
// events when none are given.
func WithObserver(observer Observer, eventTypes ...string) ContextOption {
	return func(c *ApplicationContext) error {
		return c.RegisterObserver(observer, eventTypes...)
	}
}

// WithSynchronousObservers delivers lifecycle events inline on the building
// goroutine. Observers reach beans through LookupFromContext in this mode;
// calling GetBean from the observer would wait on the running build.
func WithSynchronousObservers() ContextOption {
	return func(c *ApplicationContext) error {
		c.syncEvents = true
		return nil
	}
}

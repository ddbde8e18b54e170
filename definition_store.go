package ioc

import (
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
)

// DefinitionStore holds every bean definition known to a context.
//
// The store is filled incrementally (usually by a DefinitionSource) and
// frozen by ApplicationContext.Refresh. After Freeze the store is read-only,
// so lookups take no lock.
type DefinitionStore struct {
	mu     sync.Mutex
	defs   map[string]*BeanDefinition
	order  []string
	frozen atomic.Bool
	// invalid holds definitions rejected by Freeze, keyed by name.
	invalid map[string]error
}

// NewDefinitionStore creates an empty store.
func NewDefinitionStore() *DefinitionStore {
	return &DefinitionStore{
		defs:    make(map[string]*BeanDefinition),
		invalid: make(map[string]error),
	}
}

// AddDefinition registers a definition. The store keeps its own copy.
func (s *DefinitionStore) AddDefinition(def *BeanDefinition) error {
	if def == nil {
		return ErrNilDefinition
	}
	if def.Name == "" {
		return ErrEmptyBeanName
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.frozen.Load() {
		return fmt.Errorf("%w: cannot add %q", ErrStoreFrozen, def.Name)
	}
	if _, exists := s.defs[def.Name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateBean, def.Name)
	}

	s.defs[def.Name] = def.clone()
	s.order = append(s.order, def.Name)
	return nil
}

// Load adds every definition produced by the source and returns all
// registration failures joined together.
func (s *DefinitionStore) Load(src DefinitionSource) error {
	defs, err := src.ParseAll()
	if err != nil {
		return fmt.Errorf("failed to parse definitions: %w", err)
	}
	var errs []error
	for _, def := range defs {
		if err := s.AddDefinition(def); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Freeze validates every definition and makes the store read-only. Invalid
// definitions stay in the store so their names remain known, and the
// validation failure for each of them is returned keyed by bean name.
// Freezing twice is a no-op.
func (s *DefinitionStore) Freeze() map[string]error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.frozen.Load() {
		return s.invalid
	}
	for _, name := range s.order {
		if err := validateDefinition(s.defs[name]); err != nil {
			s.invalid[name] = err
		}
	}
	s.frozen.Store(true)
	return s.invalid
}

// Frozen reports whether Freeze has been called.
func (s *DefinitionStore) Frozen() bool {
	return s.frozen.Load()
}

// Get returns the definition for name.
func (s *DefinitionStore) Get(name string) (*BeanDefinition, bool) {
	if !s.Frozen() {
		s.mu.Lock()
		defer s.mu.Unlock()
	}
	def, ok := s.defs[name]
	return def, ok
}

// Contains reports whether a definition exists for name.
func (s *DefinitionStore) Contains(name string) bool {
	_, ok := s.Get(name)
	return ok
}

// Names returns every bean name in registration order.
func (s *DefinitionStore) Names() []string {
	if !s.Frozen() {
		s.mu.Lock()
		defer s.mu.Unlock()
	}
	return slices.Clone(s.order)
}

// Len returns the number of definitions.
func (s *DefinitionStore) Len() int {
	return len(s.Names())
}

// validateDefinition checks the invariants of a single definition that do not
// depend on other definitions. Cross-bean problems (unknown references,
// cycles) surface during resolution.
func validateDefinition(def *BeanDefinition) error {
	switch {
	case def.TypeName == "" && def.PluginPath == "":
		return fmt.Errorf("%w: %s", ErrMissingRecipe, def.Name)
	case def.TypeName != "" && def.PluginPath != "":
		return fmt.Errorf("%w: %s", ErrAmbiguousRecipe, def.Name)
	case !def.Scope.IsValid():
		return fmt.Errorf("%w: %s has scope %q", ErrInvalidScope, def.Name, def.Scope)
	}

	var positional, named bool
	indices := make(map[int]bool, len(def.ConstructorArgs))
	names := make(map[string]bool, len(def.ConstructorArgs))
	for _, arg := range def.ConstructorArgs {
		switch {
		case arg.IsNamed():
			named = true
			if names[arg.Name] {
				return fmt.Errorf("%w: %s parameter %q", ErrDuplicateArgument, def.Name, arg.Name)
			}
			names[arg.Name] = true
		case arg.Index >= 0:
			positional = true
			if indices[arg.Index] {
				return fmt.Errorf("%w: %s index %d", ErrDuplicateArgument, def.Name, arg.Index)
			}
			indices[arg.Index] = true
		default:
			return fmt.Errorf("%w: %s", ErrInvalidArgument, def.Name)
		}
		if err := validateValue(def.Name, arg.Value); err != nil {
			return err
		}
	}
	if positional && named {
		return fmt.Errorf("%w: %s", ErrMixedArguments, def.Name)
	}

	for _, prop := range def.PropertyNames() {
		if prop == "" {
			return fmt.Errorf("%w: %s has an unnamed property", ErrDefinition, def.Name)
		}
		if err := validateValue(def.Name, def.Properties[prop]); err != nil {
			return err
		}
	}
	return nil
}

func validateValue(bean string, v any) error {
	ref, ok := v.(BeanReference)
	if !ok {
		return nil
	}
	if ref.Target == "" {
		return fmt.Errorf("%w: %s references a bean without a name", ErrEmptyBeanName, bean)
	}
	if !ref.Mode.IsValid() {
		return fmt.Errorf("%w: %s references %s with mode %q", ErrInvalidReferenceMode, bean, ref.Target, ref.Mode)
	}
	return nil
}

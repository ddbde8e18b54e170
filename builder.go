package ioc

import (
	"cmp"
	"fmt"
	"reflect"
	"slices"
)

// BeanBuilder turns one definition into a raw, unwired instance. Property
// wiring and lifecycle transitions are handled by the ApplicationContext.
type BeanBuilder interface {
	// IsPointer reports whether Create yields a handle with reference
	// semantics rather than a value.
	IsPointer() bool

	// Create builds the raw instance.
	Create() (any, error)
}

// ArgResolver evaluates one constructor argument value, resolving bean
// references and passing literals through.
type ArgResolver func(value any) (any, error)

// ClassBuilder constructs beans through a constructor registered in the
// TypeRegistry.
type ClassBuilder struct {
	def     *BeanDefinition
	types   *TypeRegistry
	resolve ArgResolver
}

// NewClassBuilder creates a builder for def. A nil resolve passes argument
// values through unchanged.
func NewClassBuilder(def *BeanDefinition, types *TypeRegistry, resolve ArgResolver) *ClassBuilder {
	if resolve == nil {
		resolve = func(v any) (any, error) { return v, nil }
	}
	return &ClassBuilder{def: def, types: types, resolve: resolve}
}

// IsPointer reports whether the registered constructor returns a pointer
// or interface.
func (b *ClassBuilder) IsPointer() bool {
	return b.types.IsPointer(b.def.TypeName)
}

// Create evaluates the constructor arguments and invokes the constructor.
func (b *ClassBuilder) Create() (any, error) {
	arity, err := b.types.Arity(b.def.TypeName)
	if err != nil {
		return nil, err
	}

	positional, named := splitArgs(b.def.ConstructorArgs)
	for i, arg := range positional {
		if arg.Index != i {
			return nil, fmt.Errorf("%w: %s positional arguments are not contiguous at index %d", ErrArgumentCountMismatch, b.def.Name, arg.Index)
		}
	}
	if n := len(positional) + len(named); n > arity {
		return nil, fmt.Errorf("%w: %s constructor takes %d arguments, got %d", ErrArgumentCountMismatch, b.def.Name, arity, n)
	}

	var args []any
	if len(positional) > 0 {
		args = make([]any, len(positional))
		for i, arg := range positional {
			v, err := b.resolve(arg.Value)
			if err != nil {
				return nil, fmt.Errorf("constructor argument %d: %w", i, err)
			}
			args[i] = v
		}
	}

	var kwargs map[string]any
	if len(named) > 0 {
		kwargs = make(map[string]any, len(named))
		for _, arg := range named {
			v, err := b.resolve(arg.Value)
			if err != nil {
				return nil, fmt.Errorf("constructor argument %q: %w", arg.Name, err)
			}
			kwargs[arg.Name] = v
		}
	}

	return b.types.Construct(b.def.TypeName, args, kwargs)
}

// splitArgs separates positional arguments, sorted by index, from named ones
// in declaration order.
func splitArgs(args []ConstructorArg) (positional, named []ConstructorArg) {
	for _, arg := range args {
		if arg.IsNamed() {
			named = append(named, arg)
		} else {
			positional = append(positional, arg)
		}
	}
	slices.SortFunc(positional, func(a, b ConstructorArg) int {
		return cmp.Compare(a.Index, b.Index)
	})
	return positional, named
}

// PluginBuilder constructs beans by loading a plugin. The concrete type of
// the loaded object is only known afterwards and is exposed through
// EffectiveType.
type PluginBuilder struct {
	def           *BeanDefinition
	loader        PluginLoader
	types         *TypeRegistry
	effectiveType string
}

// NewPluginBuilder creates a builder for def.
func NewPluginBuilder(def *BeanDefinition, loader PluginLoader, types *TypeRegistry) *PluginBuilder {
	return &PluginBuilder{def: def, loader: loader, types: types}
}

// IsPointer is always true: plugins hand out a handle owned by the plugin.
func (b *PluginBuilder) IsPointer() bool {
	return true
}

// Create expands the plugin path and loads the plugin.
func (b *PluginBuilder) Create() (any, error) {
	if b.loader == nil {
		return nil, fmt.Errorf("%w: %s: no plugin loader configured", ErrPluginLoad, b.def.Name)
	}
	path := ExpandPath(b.def.PluginPath)
	instance, err := b.loader.Load(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrPluginLoad, path, err)
	}
	if instance == nil {
		return nil, fmt.Errorf("%w: plugin %s", ErrNilInstance, path)
	}
	b.effectiveType = b.discoverType(instance)
	return instance, nil
}

// EffectiveType returns the type discovered by the last successful Create:
// the registered type name when the loaded type is registered, otherwise
// the Go type name.
func (b *PluginBuilder) EffectiveType() string {
	return b.effectiveType
}

func (b *PluginBuilder) discoverType(instance any) string {
	if b.types != nil {
		if name, ok := b.types.NameOf(instance); ok {
			return name
		}
	}
	return reflect.TypeOf(instance).String()
}

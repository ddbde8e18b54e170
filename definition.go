package ioc

import (
	"fmt"
	"maps"
	"slices"
)

// BeanDefinition is the declarative recipe for one bean.
//
// A definition either names a registered type (TypeName, built by the
// ClassBuilder) or a plugin path (PluginPath, built by the PluginBuilder).
// Constructor arguments and property values hold either a literal or a
// BeanReference. Definitions are owned by the DefinitionStore and must not be
// modified once the store is frozen.
type BeanDefinition struct {
	// Name is the unique key of the bean.
	Name string

	// TypeName selects the constructor registered in the TypeRegistry.
	TypeName string

	// PluginPath selects the PluginBuilder. Path placeholders such as
	// {home} or {config} are expanded before loading.
	PluginPath string

	// Scope is the lifetime policy. The zero value means ScopeSingleton.
	Scope Scope

	// ConstructorArgs are evaluated in order and passed to the constructor.
	ConstructorArgs []ConstructorArg

	// Properties are applied after construction, in name order.
	Properties map[string]any

	// ThreadAffinity names the execution context the bean is handed to
	// after its properties are bound. Empty means no handoff.
	ThreadAffinity string

	// Lazy defers construction of a singleton until it is first requested.
	Lazy bool

	// DestroyMethod names a method invoked on Close. When empty, Destroyer
	// and io.Closer implementations are used instead.
	DestroyMethod string

	// Component tags the bean with a component kind, e.g. "controller".
	Component string
}

// EffectiveScope returns the scope with the empty value mapped to ScopeSingleton.
func (d *BeanDefinition) EffectiveScope() Scope {
	if d.Scope == "" {
		return ScopeSingleton
	}
	return d.Scope
}

// IsSingleton reports whether the bean is shared.
func (d *BeanDefinition) IsSingleton() bool {
	return d.EffectiveScope() == ScopeSingleton
}

// PropertyNames returns the declared property names in application order.
func (d *BeanDefinition) PropertyNames() []string {
	return slices.Sorted(maps.Keys(d.Properties))
}

// References lists the names of all beans this definition refers to.
func (d *BeanDefinition) References() []string {
	var refs []string
	for _, arg := range d.ConstructorArgs {
		if ref, ok := arg.Value.(BeanReference); ok {
			refs = append(refs, ref.Target)
		}
	}
	for _, name := range d.PropertyNames() {
		if ref, ok := d.Properties[name].(BeanReference); ok {
			refs = append(refs, ref.Target)
		}
	}
	return refs
}

// clone returns a deep enough copy that later edits of the caller's value
// never leak into a frozen store.
func (d *BeanDefinition) clone() *BeanDefinition {
	c := *d
	c.ConstructorArgs = slices.Clone(d.ConstructorArgs)
	c.Properties = maps.Clone(d.Properties)
	return &c
}

// ConstructorArg is one constructor argument, either positional or named.
type ConstructorArg struct {
	// Index is the zero-based position of a positional argument, or -1.
	Index int
	// Name is the parameter name of a named argument.
	Name string
	// Value is a literal or a BeanReference.
	Value any
}

// Arg creates a positional constructor argument.
func Arg(index int, value any) ConstructorArg {
	return ConstructorArg{Index: index, Value: value}
}

// NamedArg creates a named constructor argument.
func NamedArg(name string, value any) ConstructorArg {
	return ConstructorArg{Index: -1, Name: name, Value: value}
}

// IsNamed reports whether the argument is matched by parameter name.
func (a ConstructorArg) IsNamed() bool {
	return a.Name != ""
}

// BeanReference points at another bean by name. It never owns the target;
// it is resolved when the referring bean is built.
type BeanReference struct {
	Target string
	Mode   ReferenceMode
}

// Ref creates a by-pointer reference to the named bean.
func Ref(target string) BeanReference {
	return BeanReference{Target: target, Mode: ByPointer}
}

// ValueRef creates a by-value reference to the named bean.
func ValueRef(target string) BeanReference {
	return BeanReference{Target: target, Mode: ByValue}
}

// IsPointer reports whether the reference hands over the instance handle.
func (r BeanReference) IsPointer() bool {
	return r.Mode != ByValue
}

func (r BeanReference) String() string {
	return fmt.Sprintf("ref(%s, %s)", r.Target, r.effectiveMode())
}

func (r BeanReference) effectiveMode() ReferenceMode {
	if r.Mode == "" {
		return ByPointer
	}
	return r.Mode
}

// DefinitionSource produces bean definitions, typically by parsing a
// declarative document. The grammar of such documents is owned by the
// source, not by the container.
type DefinitionSource interface {
	ParseAll() ([]*BeanDefinition, error)
}

// StaticSource is a DefinitionSource over definitions built in code.
type StaticSource []*BeanDefinition

// ParseAll returns the definitions in declaration order.
func (s StaticSource) ParseAll() ([]*BeanDefinition, error) {
	return slices.Clone(s), nil
}

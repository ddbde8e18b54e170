package ioc

import (
	"fmt"
	"reflect"
	"sync"
)

var errorType = reflect.TypeOf((*error)(nil)).Elem()

// TypeRegistry is the explicit table of constructible types. Each entry maps a
// type name used in bean definitions to a constructor function registered at
// process start, replacing any ambient reflection scanning.
type TypeRegistry struct {
	mu    sync.RWMutex
	types map[string]*typeEntry
	// byType maps a constructed Go type back to its registered name.
	byType map[reflect.Type]string
}

type typeEntry struct {
	name        string
	constructor reflect.Value // zero for interface-only entries
	outType     reflect.Type
	paramNames  []string
	paramIndex  map[string]int
}

// NewTypeRegistry creates an empty registry.
func NewTypeRegistry() *TypeRegistry {
	return &TypeRegistry{
		types:  make(map[string]*typeEntry),
		byType: make(map[reflect.Type]string),
	}
}

// Register adds a constructor under typeName. The constructor must be a
// function with the signature func(args...) T or func(args...) (T, error).
// paramNames optionally names the parameters, in order, so definitions can
// use named constructor arguments.
//
//	registry.Register("Server", NewServer, "addr", "timeout")
func (r *TypeRegistry) Register(typeName string, constructor any, paramNames ...string) error {
	val := reflect.ValueOf(constructor)
	if !val.IsValid() || val.Kind() != reflect.Func {
		return fmt.Errorf("%w: %s", ErrConstructorNotFunc, typeName)
	}
	typ := val.Type()
	if typ.IsVariadic() {
		return fmt.Errorf("%w: %s", ErrConstructorVariadic, typeName)
	}
	if typ.NumOut() == 0 || typ.NumOut() > 2 {
		return fmt.Errorf("%w: %s", ErrConstructorSignature, typeName)
	}
	if typ.NumOut() == 2 && !typ.Out(1).Implements(errorType) {
		return fmt.Errorf("%w: %s", ErrConstructorSignature, typeName)
	}
	if len(paramNames) > typ.NumIn() {
		return fmt.Errorf("%w: %s takes %d, got %d names", ErrTooManyParameterNames, typeName, typ.NumIn(), len(paramNames))
	}

	entry := &typeEntry{
		name:        typeName,
		constructor: val,
		outType:     typ.Out(0),
		paramNames:  paramNames,
		paramIndex:  make(map[string]int, len(paramNames)),
	}
	for i, name := range paramNames {
		entry.paramIndex[name] = i
	}
	return r.add(entry)
}

// MustRegister is Register that panics on error. Intended for registration
// tables populated from init-free setup code in main.
func (r *TypeRegistry) MustRegister(typeName string, constructor any, paramNames ...string) {
	if err := r.Register(typeName, constructor, paramNames...); err != nil {
		panic(err)
	}
}

// RegisterInterface registers a name for an interface type so instances can
// be cast to it with CastTo. ifacePtr must be a nil pointer to the interface:
//
//	registry.RegisterInterface("Closer", (*io.Closer)(nil))
func (r *TypeRegistry) RegisterInterface(typeName string, ifacePtr any) error {
	t := reflect.TypeOf(ifacePtr)
	if t == nil || t.Kind() != reflect.Pointer || t.Elem().Kind() != reflect.Interface {
		return fmt.Errorf("%w: %s", ErrInterfacePointerNeeded, typeName)
	}
	return r.add(&typeEntry{name: typeName, outType: t.Elem()})
}

func (r *TypeRegistry) add(entry *typeEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.types[entry.name]; exists {
		return fmt.Errorf("%w: %s", ErrTypeAlreadyRegistered, entry.name)
	}
	r.types[entry.name] = entry
	if _, exists := r.byType[entry.outType]; !exists {
		r.byType[entry.outType] = entry.name
	}
	return nil
}

// Has reports whether typeName is registered.
func (r *TypeRegistry) Has(typeName string) bool {
	_, ok := r.lookup(typeName)
	return ok
}

// Arity returns the number of constructor parameters for typeName.
func (r *TypeRegistry) Arity(typeName string) (int, error) {
	entry, ok := r.lookup(typeName)
	if !ok || !entry.constructor.IsValid() {
		return 0, fmt.Errorf("%w: %s", ErrTypeNotRegistered, typeName)
	}
	return entry.constructor.Type().NumIn(), nil
}

// IsPointer reports whether typeName constructs a handle with reference
// semantics (a pointer or an interface value).
func (r *TypeRegistry) IsPointer(typeName string) bool {
	entry, ok := r.lookup(typeName)
	if !ok {
		return false
	}
	k := entry.outType.Kind()
	return k == reflect.Pointer || k == reflect.Interface
}

// NameOf returns the registered type name for the dynamic type of instance.
func (r *TypeRegistry) NameOf(instance any) (string, bool) {
	t := reflect.TypeOf(instance)
	if t == nil {
		return "", false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	name, ok := r.byType[t]
	return name, ok
}

// Construct invokes the constructor registered for typeName. Arguments are
// either all positional or all named; each value is converted to the
// declared parameter type.
func (r *TypeRegistry) Construct(typeName string, positional []any, named map[string]any) (any, error) {
	entry, ok := r.lookup(typeName)
	if !ok || !entry.constructor.IsValid() {
		return nil, fmt.Errorf("%w: %s", ErrTypeNotRegistered, typeName)
	}
	if len(positional) > 0 && len(named) > 0 {
		return nil, fmt.Errorf("%w: %s mixes positional and named arguments", ErrArgumentCountMismatch, typeName)
	}

	fnType := entry.constructor.Type()
	arity := fnType.NumIn()
	values := positional
	if len(named) > 0 {
		values = make([]any, arity)
		for name, v := range named {
			idx, ok := entry.paramIndex[name]
			if !ok {
				return nil, fmt.Errorf("%w: %s has no parameter %q", ErrArgumentCountMismatch, typeName, name)
			}
			values[idx] = v
		}
		if len(named) != arity {
			return nil, fmt.Errorf("%w: %s takes %d arguments, got %d", ErrArgumentCountMismatch, typeName, arity, len(named))
		}
	}
	if len(values) != arity {
		return nil, fmt.Errorf("%w: %s takes %d arguments, got %d", ErrArgumentCountMismatch, typeName, arity, len(values))
	}

	args := make([]reflect.Value, arity)
	for i, v := range values {
		arg, err := convertValue(v, fnType.In(i))
		if err != nil {
			return nil, fmt.Errorf("%s argument %d: %w", typeName, i, err)
		}
		args[i] = arg
	}

	results := entry.constructor.Call(args)
	if len(results) == 2 && !results[1].IsNil() {
		return nil, fmt.Errorf("constructing %s: %w", typeName, results[1].Interface().(error))
	}
	out := results[0]
	if isNillable(out.Kind()) && out.IsNil() {
		return nil, fmt.Errorf("%w: %s", ErrNilInstance, typeName)
	}
	return out.Interface(), nil
}

// CastTo returns instance viewed as the registered type typeName. The
// instance must be assignable to that type, or point to a value that is.
func (r *TypeRegistry) CastTo(instance any, typeName string) (any, error) {
	entry, ok := r.lookup(typeName)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTypeNotRegistered, typeName)
	}
	if instance == nil {
		return nil, fmt.Errorf("%w: nil to %s", ErrCastFailed, typeName)
	}

	rv := reflect.ValueOf(instance)
	if rv.Type().AssignableTo(entry.outType) {
		out := reflect.New(entry.outType).Elem()
		out.Set(rv)
		return out.Interface(), nil
	}
	if rv.Kind() == reflect.Pointer && !rv.IsNil() && rv.Elem().Type().AssignableTo(entry.outType) {
		return rv.Elem().Interface(), nil
	}
	return nil, fmt.Errorf("%w: %s to %s", ErrCastFailed, rv.Type(), typeName)
}

func (r *TypeRegistry) lookup(typeName string) (*typeEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.types[typeName]
	return entry, ok
}

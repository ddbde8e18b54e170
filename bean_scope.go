package ioc

import (
	"fmt"
)

// Scope defines the lifetime and sharing policy of a bean.
type Scope string

const (
	// ScopeSingleton creates a single instance shared across the whole
	// context lifetime. The instance is built once (eagerly during Refresh
	// unless the definition is lazy) and owned by the context until Close.
	ScopeSingleton Scope = "singleton"

	// ScopePrototype creates a new instance on every request. The caller owns
	// the returned instance; the context keeps no reference to it.
	ScopePrototype Scope = "prototype"
)

// String returns the string representation of the scope.
func (s Scope) String() string {
	return string(s)
}

// IsValid returns true if the scope is one of the defined constants.
// The empty scope is accepted and treated as ScopeSingleton.
func (s Scope) IsValid() bool {
	switch s {
	case ScopeSingleton, ScopePrototype, "":
		return true
	default:
		return false
	}
}

// IsCacheable returns true if instances of this scope are cached by the
// context and shared between callers.
func (s Scope) IsCacheable() bool {
	return s == ScopeSingleton || s == ""
}

// ParseScope parses a string into a Scope.
func ParseScope(s string) (Scope, error) {
	scope := Scope(s)
	if s == "" || !scope.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidScope, s)
	}
	return scope, nil
}

// ReferenceMode controls how a resolved reference is handed to its consumer.
type ReferenceMode string

const (
	// ByPointer hands over the instance handle itself. A pointer reference may
	// observe a bean that is still being built when it closes a property cycle.
	ByPointer ReferenceMode = "pointer"

	// ByValue hands over a copy of the referenced value. It always requires
	// the target to be fully built.
	ByValue ReferenceMode = "value"
)

// IsValid returns true if the mode is one of the defined constants or empty
// (which means ByPointer).
func (m ReferenceMode) IsValid() bool {
	switch m {
	case ByPointer, ByValue, "":
		return true
	default:
		return false
	}
}

package ioc

import (
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type endpoint struct {
	Host string
	Port int
}

func newEndpoint(host string, port int) (*endpoint, error) {
	if host == "" {
		return nil, errors.New("host required")
	}
	return &endpoint{Host: host, Port: port}, nil
}

func TestTypeRegistry_Register(t *testing.T) {
	r := NewTypeRegistry()

	require.NoError(t, r.Register("Endpoint", newEndpoint, "host", "port"))
	assert.True(t, r.Has("Endpoint"))
	assert.ErrorIs(t, r.Register("Endpoint", newEndpoint), ErrTypeAlreadyRegistered)

	tests := []struct {
		name        string
		constructor any
		params      []string
		want        error
	}{
		{"not a function", 42, nil, ErrConstructorNotFunc},
		{"nil", nil, nil, ErrConstructorNotFunc},
		{"no result", func() {}, nil, ErrConstructorSignature},
		{"second result not error", func() (int, int) { return 0, 0 }, nil, ErrConstructorSignature},
		{"three results", func() (int, int, error) { return 0, 0, nil }, nil, ErrConstructorSignature},
		{"variadic", func(...string) int { return 0 }, nil, ErrConstructorVariadic},
		{"too many names", func(string) int { return 0 }, []string{"a", "b"}, ErrTooManyParameterNames},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, r.Register(tt.name, tt.constructor, tt.params...), tt.want)
			assert.False(t, r.Has(tt.name))
		})
	}

	assert.Panics(t, func() { r.MustRegister("Endpoint", newEndpoint) })
}

func TestTypeRegistry_Construct(t *testing.T) {
	r := NewTypeRegistry()
	r.MustRegister("Endpoint", newEndpoint, "host", "port")
	r.MustRegister("Empty", func() *endpoint { return nil })

	t.Run("positional", func(t *testing.T) {
		v, err := r.Construct("Endpoint", []any{"localhost", "8080"}, nil)
		require.NoError(t, err)
		assert.Equal(t, &endpoint{Host: "localhost", Port: 8080}, v)
	})

	t.Run("named", func(t *testing.T) {
		v, err := r.Construct("Endpoint", nil, map[string]any{"port": int64(9000), "host": "db"})
		require.NoError(t, err)
		assert.Equal(t, &endpoint{Host: "db", Port: 9000}, v)
	})

	t.Run("unknown parameter name", func(t *testing.T) {
		_, err := r.Construct("Endpoint", nil, map[string]any{"hostname": "db", "port": 1})
		assert.ErrorIs(t, err, ErrArgumentCountMismatch)
	})

	t.Run("missing named argument", func(t *testing.T) {
		_, err := r.Construct("Endpoint", nil, map[string]any{"host": "db"})
		assert.ErrorIs(t, err, ErrArgumentCountMismatch)
	})

	t.Run("wrong positional count", func(t *testing.T) {
		_, err := r.Construct("Endpoint", []any{"db"}, nil)
		assert.ErrorIs(t, err, ErrArgumentCountMismatch)
	})

	t.Run("mixed arguments", func(t *testing.T) {
		_, err := r.Construct("Endpoint", []any{"db"}, map[string]any{"port": 1})
		assert.ErrorIs(t, err, ErrArgumentCountMismatch)
	})

	t.Run("argument type mismatch", func(t *testing.T) {
		_, err := r.Construct("Endpoint", []any{"db", "eighty"}, nil)
		assert.ErrorIs(t, err, ErrArgumentTypeMismatch)
		assert.ErrorIs(t, err, ErrConstruction)
	})

	t.Run("constructor error", func(t *testing.T) {
		_, err := r.Construct("Endpoint", []any{"", 1}, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "host required")
	})

	t.Run("nil result", func(t *testing.T) {
		_, err := r.Construct("Empty", nil, nil)
		assert.ErrorIs(t, err, ErrNilInstance)
	})

	t.Run("unregistered", func(t *testing.T) {
		_, err := r.Construct("Ghost", nil, nil)
		assert.ErrorIs(t, err, ErrTypeNotRegistered)
	})
}

func TestTypeRegistry_Introspection(t *testing.T) {
	r := NewTypeRegistry()
	r.MustRegister("Endpoint", newEndpoint)
	r.MustRegister("Label", func() string { return "x" })
	require.NoError(t, r.RegisterInterface("Stringer", (*fmt.Stringer)(nil)))
	assert.ErrorIs(t, r.RegisterInterface("Bad", endpoint{}), ErrInterfacePointerNeeded)
	assert.ErrorIs(t, r.RegisterInterface("Bad", (*endpoint)(nil)), ErrInterfacePointerNeeded)

	arity, err := r.Arity("Endpoint")
	require.NoError(t, err)
	assert.Equal(t, 2, arity)
	_, err = r.Arity("Stringer")
	assert.ErrorIs(t, err, ErrTypeNotRegistered, "interface entries cannot be constructed")

	assert.True(t, r.IsPointer("Endpoint"))
	assert.True(t, r.IsPointer("Stringer"))
	assert.False(t, r.IsPointer("Label"))
	assert.False(t, r.IsPointer("Ghost"))

	name, ok := r.NameOf(&endpoint{})
	assert.True(t, ok)
	assert.Equal(t, "Endpoint", name)
	_, ok = r.NameOf(endpoint{})
	assert.False(t, ok)
	_, ok = r.NameOf(nil)
	assert.False(t, ok)
}

func TestTypeRegistry_CastTo(t *testing.T) {
	r := NewTypeRegistry()
	r.MustRegister("Endpoint", newEndpoint)
	require.NoError(t, r.RegisterInterface("Closer", (*io.Closer)(nil)))
	require.NoError(t, r.RegisterInterface("Affine", (*Affine)(nil)))

	ep := &endpoint{Host: "h"}
	v, err := r.CastTo(ep, "Endpoint")
	require.NoError(t, err)
	assert.Same(t, ep, v)

	_, err = r.CastTo(ep, "Closer")
	assert.ErrorIs(t, err, ErrCastFailed)

	h := &hooked{}
	v, err = r.CastTo(h, "Affine")
	require.NoError(t, err)
	assert.Implements(t, (*Affine)(nil), v)

	_, err = r.CastTo(nil, "Endpoint")
	assert.ErrorIs(t, err, ErrCastFailed)
	_, err = r.CastTo(ep, "Ghost")
	assert.ErrorIs(t, err, ErrTypeNotRegistered)
}

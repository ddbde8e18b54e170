package ioc

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassBuilder(t *testing.T) {
	f := newFixture(t)
	left, right := &node{ID: "l"}, &node{ID: "r"}
	refs := map[string]any{"left": left, "right": right}
	resolve := func(v any) (any, error) {
		if ref, ok := v.(BeanReference); ok {
			target, found := refs[ref.Target]
			if !found {
				return nil, ErrUnknownBeanReference
			}
			return target, nil
		}
		return v, nil
	}

	t.Run("positional arguments in any declaration order", func(t *testing.T) {
		def := &BeanDefinition{Name: "p", TypeName: "Pair", ConstructorArgs: []ConstructorArg{
			Arg(1, Ref("right")),
			Arg(0, Ref("left")),
		}}
		b := NewClassBuilder(def, f.types, resolve)
		assert.True(t, b.IsPointer())

		v, err := b.Create()
		require.NoError(t, err)
		p := v.(*pair)
		assert.Same(t, left, p.Left)
		assert.Same(t, right, p.Right)
	})

	t.Run("named arguments", func(t *testing.T) {
		def := &BeanDefinition{Name: "p", TypeName: "Pair", ConstructorArgs: []ConstructorArg{
			NamedArg("right", Ref("right")),
			NamedArg("left", Ref("left")),
		}}
		v, err := NewClassBuilder(def, f.types, resolve).Create()
		require.NoError(t, err)
		assert.Same(t, right, v.(*pair).Right)
	})

	t.Run("gap in positional arguments", func(t *testing.T) {
		def := &BeanDefinition{Name: "p", TypeName: "Pair", ConstructorArgs: []ConstructorArg{
			Arg(0, Ref("left")),
			Arg(2, Ref("right")),
		}}
		_, err := NewClassBuilder(def, f.types, resolve).Create()
		assert.ErrorIs(t, err, ErrArgumentCountMismatch)
	})

	t.Run("too many arguments", func(t *testing.T) {
		def := &BeanDefinition{Name: "n", TypeName: "Node", ConstructorArgs: []ConstructorArg{Arg(0, "a"), Arg(1, "b")}}
		_, err := NewClassBuilder(def, f.types, nil).Create()
		assert.ErrorIs(t, err, ErrArgumentCountMismatch)
	})

	t.Run("too few arguments", func(t *testing.T) {
		def := &BeanDefinition{Name: "p", TypeName: "Pair", ConstructorArgs: []ConstructorArg{Arg(0, Ref("left"))}}
		_, err := NewClassBuilder(def, f.types, resolve).Create()
		assert.ErrorIs(t, err, ErrArgumentCountMismatch)
	})

	t.Run("resolution failure", func(t *testing.T) {
		def := &BeanDefinition{Name: "p", TypeName: "Pair", ConstructorArgs: []ConstructorArg{
			Arg(0, Ref("ghost")),
			Arg(1, Ref("right")),
		}}
		_, err := NewClassBuilder(def, f.types, resolve).Create()
		assert.ErrorIs(t, err, ErrUnknownBeanReference)
		assert.Contains(t, err.Error(), "constructor argument 0")
	})

	t.Run("unregistered type", func(t *testing.T) {
		def := &BeanDefinition{Name: "x", TypeName: "Ghost"}
		b := NewClassBuilder(def, f.types, nil)
		assert.False(t, b.IsPointer())
		_, err := b.Create()
		assert.ErrorIs(t, err, ErrTypeNotRegistered)
	})

	t.Run("value type", func(t *testing.T) {
		def := &BeanDefinition{Name: "v", TypeName: "NodeValue", ConstructorArgs: []ConstructorArg{Arg(0, &node{ID: "copied"})}}
		b := NewClassBuilder(def, f.types, nil)
		assert.False(t, b.IsPointer())
		v, err := b.Create()
		require.NoError(t, err)
		assert.Equal(t, "copied", v)
	})
}

func TestPluginBuilder(t *testing.T) {
	types := NewTypeRegistry()
	types.MustRegister("Endpoint", newEndpoint)

	loader := PluginLoaderFunc(func(path string) (any, error) {
		switch path {
		case "/opt/plugins/endpoint.so":
			return &endpoint{Host: "plugin"}, nil
		case "/opt/plugins/plain.so":
			return &plainPlugin{}, nil
		case "/opt/plugins/nil.so":
			return nil, nil
		}
		return nil, errors.New("no such file")
	})

	t.Run("registered product", func(t *testing.T) {
		b := NewPluginBuilder(&BeanDefinition{Name: "e", PluginPath: "/opt/plugins/endpoint.so"}, loader, types)
		assert.True(t, b.IsPointer())
		assert.Empty(t, b.EffectiveType(), "type is unknown before loading")

		v, err := b.Create()
		require.NoError(t, err)
		assert.Equal(t, "plugin", v.(*endpoint).Host)
		assert.Equal(t, "Endpoint", b.EffectiveType())
	})

	t.Run("unregistered product", func(t *testing.T) {
		b := NewPluginBuilder(&BeanDefinition{Name: "p", PluginPath: "/opt/plugins/plain.so"}, loader, nil)
		_, err := b.Create()
		require.NoError(t, err)
		assert.Equal(t, "*ioc.plainPlugin", b.EffectiveType())
	})

	t.Run("nil product", func(t *testing.T) {
		_, err := NewPluginBuilder(&BeanDefinition{Name: "n", PluginPath: "/opt/plugins/nil.so"}, loader, types).Create()
		assert.ErrorIs(t, err, ErrNilInstance)
	})

	t.Run("load failure", func(t *testing.T) {
		_, err := NewPluginBuilder(&BeanDefinition{Name: "m", PluginPath: "/opt/plugins/missing.so"}, loader, types).Create()
		assert.ErrorIs(t, err, ErrPluginLoad)
		assert.Contains(t, err.Error(), "no such file")
	})

	t.Run("no loader", func(t *testing.T) {
		_, err := NewPluginBuilder(&BeanDefinition{Name: "m", PluginPath: "/opt/plugins/endpoint.so"}, nil, types).Create()
		assert.ErrorIs(t, err, ErrPluginLoad)
	})

	t.Run("placeholders are expanded", func(t *testing.T) {
		RegisterPathPlaceholder("{opt}", func() string { return "/opt" })
		b := NewPluginBuilder(&BeanDefinition{Name: "e", PluginPath: "{opt}/plugins/endpoint.so"}, loader, types)
		_, err := b.Create()
		require.NoError(t, err)
	})
}

func TestStaticPluginLoader(t *testing.T) {
	loader := NewStaticPluginLoader()
	calls := 0
	loader.Register("/p.so", func() (any, error) {
		calls++
		return &plainPlugin{}, nil
	})

	a, err := loader.Load("/p.so")
	require.NoError(t, err)
	b, err := loader.Load("/p.so")
	require.NoError(t, err)
	assert.NotSame(t, a, b)
	assert.Equal(t, 2, calls)

	_, err = loader.Load("/q.so")
	assert.ErrorIs(t, err, ErrPluginNotRegistered)
}

func TestGoPluginLoaderMissingFile(t *testing.T) {
	_, err := GoPluginLoader{}.Load("/nonexistent/plugin.so")
	assert.Error(t, err)
}

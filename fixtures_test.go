package ioc

import (
	"errors"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/GoCodeAlone/ioc/config"
	"github.com/stretchr/testify/require"
)

var errHookFailed = errors.New("hook failed")

// eventLog records names in call order from any goroutine.
type eventLog struct {
	mu    sync.Mutex
	names []string
}

func (l *eventLog) record(name string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.names = append(l.names, name)
}

func (l *eventLog) list() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.names)
}

// node is a general purpose bean with pointer properties.
type node struct {
	ID     string
	Peer   *node
	Other  *node
	Size   int           `bean:"size"`
	Wait   time.Duration `bean:"wait"`
	Holder *holder       `bean:"holder"`

	destroyed *eventLog
}

// Shutdown is used as an explicit destroy method.
func (n *node) Shutdown() {
	n.destroyed.record("shutdown:" + n.ID)
}

func (n *node) Close() error {
	if n.destroyed != nil {
		n.destroyed.record(n.ID)
	}
	return nil
}

// pair is built from two constructor arguments.
type pair struct {
	Left  *node
	Right *node
}

// link takes its successor as a constructor argument.
type link struct {
	Next *link
	Peer *link
}

// holder keeps a copy of a node.
type holder struct {
	Copy node
}

// plainPlugin is a plugin product without a registered type.
type plainPlugin struct{}

// hooked records every lifecycle hook it receives.
type hooked struct {
	Peer *hooked

	calls       *eventLog
	failOnBound bool
	loop        string
	// peerBoundAtBind captures whether Peer had finished binding when it
	// was assigned.
	peerBoundAtBind bool
	bound           atomic.Bool
}

func (h *hooked) OnConstructed() error {
	h.calls.record("constructed")
	return nil
}

func (h *hooked) SetPeer(p *hooked) {
	h.Peer = p
	h.peerBoundAtBind = p.bound.Load()
}

func (h *hooked) OnPropertiesBound() error {
	h.calls.record("properties_bound")
	if h.failOnBound {
		return errHookFailed
	}
	h.bound.Store(true)
	return nil
}

func (h *hooked) SetExecutionContext(ec ExecutionContext) {
	h.loop = ec.Name()
}

func (h *hooked) OnAffinityChanged(ec ExecutionContext) {
	h.calls.record("affinity_changed:" + ec.Name())
}

func (h *hooked) OnCompleted() {
	h.calls.record("completed")
}

// seeker looks up its target from OnPropertiesBound.
type seeker struct {
	target string
	lookup BeanLookup
	found  any
}

func (s *seeker) SetBeanLookup(lookup BeanLookup) {
	s.lookup = lookup
}

func (s *seeker) OnPropertiesBound() error {
	v, err := s.lookup.GetBean(s.target)
	if err != nil {
		return err
	}
	s.found = v
	return nil
}

// volatile panics from OnPropertiesBound.
type volatile struct{}

func (volatile) OnPropertiesBound() error {
	panic("hook exploded")
}

// fixture bundles a type registry with construction counters.
type fixture struct {
	types     *TypeRegistry
	built     sync.Map // type name -> *atomic.Int32
	destroyed *eventLog
	calls     *eventLog
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{types: NewTypeRegistry(), destroyed: &eventLog{}, calls: &eventLog{}}
	require.NoError(t, f.types.Register("Node", func(id string) *node {
		f.count("Node")
		return &node{ID: id, destroyed: f.destroyed}
	}, "id"))
	require.NoError(t, f.types.Register("SlowNode", func(id string) *node {
		f.count("SlowNode")
		time.Sleep(20 * time.Millisecond)
		return &node{ID: id, destroyed: f.destroyed}
	}, "id"))
	require.NoError(t, f.types.Register("Pair", func(left, right *node) *pair {
		f.count("Pair")
		return &pair{Left: left, Right: right}
	}, "left", "right"))
	require.NoError(t, f.types.Register("Hooked", func() *hooked {
		f.count("Hooked")
		return &hooked{calls: f.calls}
	}))
	require.NoError(t, f.types.Register("FailingHooked", func() *hooked {
		f.count("FailingHooked")
		return &hooked{calls: f.calls, failOnBound: true}
	}))
	require.NoError(t, f.types.Register("Link", func(next *link) *link {
		f.count("Link")
		return &link{Next: next}
	}, "next"))
	require.NoError(t, f.types.Register("Holder", func() *holder {
		return &holder{}
	}))
	require.NoError(t, f.types.Register("NodeValue", func(n node) string {
		return n.ID
	}))
	require.NoError(t, f.types.Register("Seeker", func(target string) *seeker {
		return &seeker{target: target}
	}, "target"))
	require.NoError(t, f.types.Register("Panicky", func() *node {
		panic("boom")
	}))
	require.NoError(t, f.types.Register("Volatile", func() *volatile {
		return &volatile{}
	}))
	return f
}

func (f *fixture) count(typeName string) {
	c, _ := f.built.LoadOrStore(typeName, &atomic.Int32{})
	c.(*atomic.Int32).Add(1)
}

func (f *fixture) builds(typeName string) int {
	c, ok := f.built.Load(typeName)
	if !ok {
		return 0
	}
	return int(c.(*atomic.Int32).Load())
}

// newContext creates a context with a private routine registry.
func (f *fixture) newContext(t *testing.T, defs []*BeanDefinition, opts ...ContextOption) *ApplicationContext {
	t.Helper()
	opts = append([]ContextOption{WithRoutineRegistry(NewRoutineRegistry(&logger{t}))}, opts...)
	ctx, err := NewApplicationContext(f.types, &logger{t}, opts...)
	require.NoError(t, err)
	for _, def := range defs {
		require.NoError(t, ctx.AddDefinition(def))
	}
	return ctx
}

func nodeDef(name string, props map[string]any) *BeanDefinition {
	return &BeanDefinition{
		Name:            name,
		TypeName:        "Node",
		ConstructorArgs: []ConstructorArg{NamedArg("id", name)},
		Properties:      props,
	}
}

// stalledContext accepts tasks and never runs them.
type stalledContext struct {
	name   string
	posted atomic.Int32
}

func (s *stalledContext) Name() string { return s.name }

func (s *stalledContext) Post(func()) error {
	s.posted.Add(1)
	return nil
}

// refreshWithin runs Refresh and fails the test if it does not return
// within limit.
func refreshWithin(t *testing.T, ctx *ApplicationContext, limit time.Duration) error {
	t.Helper()
	done := make(chan error, 1)
	go func() { done <- ctx.Refresh() }()
	select {
	case err := <-done:
		return err
	case <-time.After(limit):
		t.Fatalf("Refresh still running after %s", limit)
		return nil
	}
}

func fastHandoff(timeout time.Duration) *config.Config {
	cfg := config.Default()
	cfg.HandoffTimeout = timeout
	cfg.PollInterval = 5 * time.Millisecond
	return cfg
}

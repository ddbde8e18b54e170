package ioc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"reflect"
	"slices"
	"sync"
	"time"

	"github.com/GoCodeAlone/ioc/config"
)

// beanEntry is the per-name build record of a singleton. Prototype builds
// use a transient entry that is dropped once the instance is handed out.
type beanEntry struct {
	def           *BeanDefinition
	state         BuildState
	lastState     BuildState
	instance      any
	err           error
	effectiveType string
	// published is set once the outermost build that completed the bean
	// has returned; only published instances are served without the build lock.
	published bool
	// dependents are singletons holding a reference to this bean.
	dependents map[string]struct{}
}

// BeanStatus describes where a bean is in its lifecycle.
type BeanStatus struct {
	Name string
	// State is the current state.
	State BuildState
	// LastState is the last state reached before an error; it equals State
	// for beans that have not failed.
	LastState BuildState
	// EffectiveType is the registered type name, or for plugin beans the
	// type discovered after loading.
	EffectiveType string
	Err           error
}

// ApplicationContext builds and owns the bean graph described by its
// definition store.
//
// All builds run on one logical thread: they serialize on the build lock,
// whose holder owns the active build stack used for cycle detection.
// Completed singletons are served from the cache without taking that lock.
type ApplicationContext struct {
	id       string
	store    *DefinitionStore
	types    *TypeRegistry
	plugins  PluginLoader
	routines *RoutineRegistry
	logger   Logger
	resolver *ReferenceResolver

	execName     string
	execContexts map[string]ExecutionContext

	cfgMu          sync.RWMutex
	handoffTimeout time.Duration
	pollInterval   time.Duration

	buildMu sync.Mutex
	stack   []string
	pending []*beanEntry
	scope   *buildLookup

	mu        sync.RWMutex
	entries   map[string]*beanEntry
	completed []string
	refreshed bool
	closed    bool

	observers     map[string]*observerRegistration
	observerMutex sync.RWMutex
	syncEvents    bool
}

// NewApplicationContext creates a context over types. A nil types gets an
// empty registry and a nil logger discards output. By default the context
// uses the process-wide RoutineRegistry and builds on the "main" execution
// context.
func NewApplicationContext(types *TypeRegistry, logger Logger, opts ...ContextOption) (*ApplicationContext, error) {
	if types == nil {
		types = NewTypeRegistry()
	}
	if logger == nil {
		logger = nopLogger()
	}
	c := &ApplicationContext{
		id:             generateID(),
		store:          NewDefinitionStore(),
		types:          types,
		logger:         logger,
		execName:       config.DefaultExecutionContext,
		execContexts:   make(map[string]ExecutionContext),
		handoffTimeout: config.DefaultHandoffTimeout,
		pollInterval:   config.DefaultPollInterval,
		entries:        make(map[string]*beanEntry),
		observers:      make(map[string]*observerRegistration),
	}
	c.resolver = &ReferenceResolver{ctx: c}

	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	if c.routines == nil {
		c.routines = Routines()
	}
	return c, nil
}

// ID returns the unique identifier of the context.
func (c *ApplicationContext) ID() string {
	return c.id
}

// Store returns the definition store.
func (c *ApplicationContext) Store() *DefinitionStore {
	return c.store
}

// Types returns the type registry.
func (c *ApplicationContext) Types() *TypeRegistry {
	return c.types
}

// Resolver returns the reference resolver bound to this context.
func (c *ApplicationContext) Resolver() *ReferenceResolver {
	return c.resolver
}

// ExecutionContextName returns the name of the context builds run on.
func (c *ApplicationContext) ExecutionContextName() string {
	return c.execName
}

// AddDefinition registers a definition. It fails once the context is refreshed.
func (c *ApplicationContext) AddDefinition(def *BeanDefinition) error {
	if err := c.store.AddDefinition(def); err != nil {
		return err
	}
	c.logger.Debug("Bean definition registered", "bean", def.Name, "type", def.TypeName, "scope", def.EffectiveScope())
	return nil
}

// LoadDefinitions registers every definition produced by src.
func (c *ApplicationContext) LoadDefinitions(src DefinitionSource) error {
	return c.store.Load(src)
}

// ApplyConfig applies the dynamic settings of cfg: handoff timeout, poll
// interval and the {plugins} path placeholder. The execution context name
// is fixed at construction.
func (c *ApplicationContext) ApplyConfig(cfg *config.Config) {
	c.cfgMu.Lock()
	c.handoffTimeout = cfg.HandoffTimeout
	if cfg.PollInterval > 0 {
		c.pollInterval = cfg.PollInterval
	}
	c.cfgMu.Unlock()

	if cfg.PluginDir != "" {
		dir := cfg.PluginDir
		RegisterPathPlaceholder("{plugins}", func() string { return dir })
	}
	c.logger.Debug("Configuration applied", "handoffTimeout", cfg.HandoffTimeout, "pollInterval", cfg.PollInterval)
	c.emitEvent(EventTypeConfigApplied, map[string]any{
		"handoffTimeout": cfg.HandoffTimeout.String(),
		"pollInterval":   cfg.PollInterval.String(),
	})
}

func (c *ApplicationContext) handoffSettings() (interval, timeout time.Duration) {
	c.cfgMu.RLock()
	defer c.cfgMu.RUnlock()
	return c.pollInterval, c.handoffTimeout
}

// Refresh freezes the definition store, runs the startup routines and
// builds every non-lazy singleton. A failing bean does not stop the others;
// all failures are returned together as a *RefreshError. The context stays
// usable after a partial failure.
func (c *ApplicationContext) Refresh() error {
	c.mu.Lock()
	switch {
	case c.closed:
		c.mu.Unlock()
		return ErrContextClosed
	case c.refreshed:
		c.mu.Unlock()
		return ErrContextAlreadyRefreshed
	}
	c.refreshed = true

	invalid := c.store.Freeze()
	for _, name := range c.store.Names() {
		def, _ := c.store.Get(name)
		e := &beanEntry{def: def, effectiveType: def.TypeName}
		if err, bad := invalid[name]; bad {
			e.state = StateError
			e.err = err
		}
		c.entries[name] = e
	}
	c.mu.Unlock()

	c.logger.Info("Refreshing application context", "context", c.id, "definitions", c.store.Len(), "invalid", len(invalid))

	if err := c.routines.RunStartup(); err != nil {
		c.logger.Error("Startup routines failed", "error", err)
		c.emitEvent(EventTypeContextRefreshFailed, map[string]any{"phase": "startup", "error": err.Error()})
		return fmt.Errorf("startup routines failed: %w", err)
	}

	for _, name := range c.store.Names() {
		def, _ := c.store.Get(name)
		if !def.IsSingleton() || def.Lazy {
			continue
		}
		c.buildTopLevel(name)
	}

	if failures := c.failures(); len(failures) > 0 {
		err := &RefreshError{Failures: failures}
		c.logger.Error("Application context refreshed with failures", "context", c.id, "failed", len(failures))
		c.emitEvent(EventTypeContextRefreshFailed, map[string]any{"phase": "build", "failed": len(failures), "error": err.Error()})
		return err
	}

	c.logger.Info("Application context refreshed", "context", c.id)
	c.emitEvent(EventTypeContextRefreshed, map[string]any{"beans": c.store.Len()})
	return nil
}

// failures collects every failed bean in registration order.
func (c *ApplicationContext) failures() []*BeanError {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var failures []*BeanError
	for _, name := range c.store.Names() {
		e := c.entries[name]
		if e.state == StateError {
			failures = append(failures, &BeanError{Bean: name, State: e.lastState, Err: e.err})
		}
	}
	return failures
}

// GetBean returns the instance for name, building it when needed.
// Singletons are built at most once; concurrent callers wait for the build
// and all observe the same instance. A bean whose build chain failed
// returns ErrBuildFailed.
//
// GetBean waits for the build lock, so lifecycle hooks and synchronous
// observers must not call it while a build is running. They reach other
// beans through the BeanLookup handed to LookupAware beans or carried by
// the event context (LookupFromContext).
func (c *ApplicationContext) GetBean(name string) (any, error) {
	if err := c.checkActive(); err != nil {
		return nil, err
	}

	c.mu.RLock()
	e, ok := c.entries[name]
	if !ok {
		c.mu.RUnlock()
		return nil, fmt.Errorf("%w: %s", ErrBeanNotFound, name)
	}
	if e.state == StateCompleted && e.published {
		instance := e.instance
		c.mu.RUnlock()
		return instance, nil
	}
	c.mu.RUnlock()

	c.lockBuild()
	defer c.unlockBuild()
	return c.obtain(name)
}

// GetBeanAs returns the bean cast to the registered type typeName.
func (c *ApplicationContext) GetBeanAs(name, typeName string) (any, error) {
	instance, err := c.GetBean(name)
	if err != nil {
		return nil, err
	}
	cast, err := c.types.CastTo(instance, typeName)
	if err != nil {
		status, _ := c.Status(name)
		return nil, fmt.Errorf("bean %s (effective type %s): %w", name, status.EffectiveType, err)
	}
	return cast, nil
}

// Bean returns the named bean as T. Pointer beans are dereferenced when T
// is their element type.
func Bean[T any](c *ApplicationContext, name string) (T, error) {
	var zero T
	instance, err := c.GetBean(name)
	if err != nil {
		return zero, err
	}
	if v, ok := instance.(T); ok {
		return v, nil
	}
	if v, ok := copyValue(instance).(T); ok {
		return v, nil
	}
	return zero, fmt.Errorf("%w: %s is %T", ErrCastFailed, name, instance)
}

// ContainsBean reports whether a definition exists for name.
func (c *ApplicationContext) ContainsBean(name string) bool {
	return c.store.Contains(name)
}

// BeanNames returns every bean name in registration order.
func (c *ApplicationContext) BeanNames() []string {
	return c.store.Names()
}

// ComponentNames returns the beans tagged with component kind, or every
// tagged bean when kind is empty, in registration order.
func (c *ApplicationContext) ComponentNames(kind string) []string {
	var names []string
	for _, name := range c.store.Names() {
		def, _ := c.store.Get(name)
		if def.Component != "" && (kind == "" || def.Component == kind) {
			names = append(names, name)
		}
	}
	return names
}

// Status reports the lifecycle position of name.
func (c *ApplicationContext) Status(name string) (BeanStatus, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if e, ok := c.entries[name]; ok {
		return BeanStatus{Name: name, State: e.state, LastState: e.lastState, EffectiveType: e.effectiveType, Err: e.err}, true
	}
	if def, ok := c.store.Get(name); ok {
		return BeanStatus{Name: name, EffectiveType: def.TypeName}, true
	}
	return BeanStatus{}, false
}

// Close destroys the singletons in reverse completion order, then runs the
// shutdown routines. Destroy failures are collected, not fatal. Closing
// twice is a no-op.
func (c *ApplicationContext) Close() error {
	c.buildMu.Lock()
	defer c.buildMu.Unlock()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	order := slices.Clone(c.completed)
	c.completed = nil
	c.mu.Unlock()
	slices.Reverse(order)

	c.logger.Info("Closing application context", "context", c.id, "singletons", len(order))

	var errs []error
	for _, name := range order {
		c.mu.Lock()
		e := c.entries[name]
		instance := e.instance
		e.instance = nil
		e.state, e.lastState = StateUnbuilt, StateUnbuilt
		c.mu.Unlock()

		if err := destroyBean(e.def, instance); err != nil {
			c.logger.Error("Failed to destroy bean", "bean", name, "error", err)
			errs = append(errs, fmt.Errorf("destroying %s: %w", name, err))
			continue
		}
		c.logger.Debug("Bean destroyed", "bean", name)
		c.emitEvent(EventTypeBeanDestroyed, map[string]any{"bean": name})
	}

	if err := c.routines.RunShutdown(); err != nil {
		errs = append(errs, err)
	}

	c.logger.Info("Application context closed", "context", c.id)
	c.emitEvent(EventTypeContextClosed, nil)
	return errors.Join(errs...)
}

func (c *ApplicationContext) checkActive() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	switch {
	case c.closed:
		return ErrContextClosed
	case !c.refreshed:
		return ErrContextNotRefreshed
	}
	return nil
}

// lockBuild takes the build lock and opens the lookup scope used by the
// hooks and synchronous observers of the builds that follow.
func (c *ApplicationContext) lockBuild() {
	c.buildMu.Lock()
	c.scope = &buildLookup{ctx: c}
	c.scope.live.Store(true)
}

// unlockBuild publishes the completed singletons, closes the lookup scope
// and releases the build lock.
func (c *ApplicationContext) unlockBuild() {
	c.publishPending()
	c.scope.live.Store(false)
	c.scope = nil
	c.buildMu.Unlock()
}

func (c *ApplicationContext) buildTopLevel(name string) {
	c.lockBuild()
	defer c.unlockBuild()
	_, _ = c.obtain(name)
}

// obtain returns the instance for name, building it if needed. The caller
// holds the build lock.
func (c *ApplicationContext) obtain(name string) (any, error) {
	c.mu.RLock()
	e, ok := c.entries[name]
	if !ok {
		c.mu.RUnlock()
		return nil, fmt.Errorf("%w: %s", ErrBeanNotFound, name)
	}
	state, instance := e.state, e.instance
	beanErr := &BeanError{Bean: name, State: e.lastState, Err: e.err}
	c.mu.RUnlock()

	switch {
	case state == StateError:
		return nil, fmt.Errorf("%w: %w", ErrBuildFailed, beanErr)
	case !e.def.IsSingleton():
		return c.build(&beanEntry{def: e.def, effectiveType: e.def.TypeName})
	case state == StateCompleted:
		return instance, nil
	}
	return c.build(e)
}

// build drives one bean from Unbuilt to Completed. The caller holds the
// build lock. A panic in a constructor, setter or hook fails the bean.
func (c *ApplicationContext) build(e *beanEntry) (built any, err error) {
	def := e.def
	c.stack = append(c.stack, def.Name)
	defer func() { c.stack = c.stack[:len(c.stack)-1] }()
	defer func() {
		if r := recover(); r != nil {
			built, err = nil, c.fail(e, fmt.Errorf("%w: %v", ErrBuildPanicked, r))
		}
	}()

	c.logger.Debug("Building bean", "bean", def.Name, "scope", def.EffectiveScope(), "depth", len(c.stack))

	builder := c.builderFor(def)
	instance, err := builder.Create()
	if err != nil {
		return nil, c.fail(e, err)
	}
	if pb, ok := builder.(*PluginBuilder); ok {
		c.mu.Lock()
		e.effectiveType = pb.EffectiveType()
		c.mu.Unlock()
	}
	c.advance(e, StateConstructed, instance)
	if l, ok := instance.(LookupAware); ok {
		l.SetBeanLookup(c.scope)
	}
	if h, ok := instance.(ConstructedAware); ok {
		if err := h.OnConstructed(); err != nil {
			return nil, c.fail(e, fmt.Errorf("OnConstructed: %w", err))
		}
	}

	for _, prop := range def.PropertyNames() {
		value, err := c.resolver.resolveValue(def.Properties[prop], siteProperty)
		if err != nil {
			return nil, c.fail(e, fmt.Errorf("property %q: %w", prop, err))
		}
		if err := bindProperty(instance, prop, value); err != nil {
			return nil, c.fail(e, err)
		}
	}
	c.advance(e, StatePropertiesBound, nil)
	if h, ok := instance.(PropertiesBoundAware); ok {
		if err := h.OnPropertiesBound(); err != nil {
			return nil, c.fail(e, fmt.Errorf("OnPropertiesBound: %w", err))
		}
	}

	if err := c.handoff(def, instance); err != nil {
		return nil, c.fail(e, err)
	}
	c.advance(e, StateThreadAssigned, nil)

	c.complete(e)
	if h, ok := instance.(CompletedAware); ok {
		h.OnCompleted()
	}
	return instance, nil
}

func (c *ApplicationContext) builderFor(def *BeanDefinition) BeanBuilder {
	if def.PluginPath != "" {
		return NewPluginBuilder(def, c.plugins, c.types)
	}
	return NewClassBuilder(def, c.types, func(v any) (any, error) {
		return c.resolver.resolveValue(v, siteConstructor)
	})
}

// handoff moves instance to the execution context named by its thread
// affinity and waits for the target to take it over.
func (c *ApplicationContext) handoff(def *BeanDefinition, instance any) error {
	affinity := def.ThreadAffinity
	if affinity == "" || affinity == c.execName {
		return nil
	}
	target, ok := c.execContexts[affinity]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownExecutionContext, affinity)
	}

	var onMoved func()
	if h, ok := instance.(AffinityAware); ok {
		onMoved = func() { h.OnAffinityChanged(target) }
	}
	interval, timeout := c.handoffSettings()
	if err := moveTo(instance, target, interval, timeout, onMoved); err != nil {
		return err
	}
	c.logger.Debug("Bean moved to execution context", "bean", def.Name, "executionContext", affinity)
	return nil
}

func (c *ApplicationContext) advance(e *beanEntry, next BuildState, instance any) {
	c.mu.Lock()
	if !e.state.canAdvance(next) {
		c.mu.Unlock()
		panic(fmt.Sprintf("ioc: illegal transition of %s from %s to %s", e.def.Name, e.state, next))
	}
	e.state, e.lastState = next, next
	if instance != nil {
		e.instance = instance
	}
	c.mu.Unlock()

	c.logger.Debug("Bean state changed", "bean", e.def.Name, "state", next)
	c.emitBuildEvent(stateEventTypes[next], map[string]any{"bean": e.def.Name, "state": next.String()})
}

var stateEventTypes = map[BuildState]string{
	StateConstructed:     EventTypeBeanConstructed,
	StatePropertiesBound: EventTypeBeanPropertiesBound,
	StateThreadAssigned:  EventTypeBeanThreadAssigned,
	StateCompleted:       EventTypeBeanCompleted,
}

// complete caches a singleton and records its completion order.
func (c *ApplicationContext) complete(e *beanEntry) {
	singleton := e.def.IsSingleton()
	if singleton {
		c.mu.Lock()
		c.completed = append(c.completed, e.def.Name)
		c.mu.Unlock()
		c.pending = append(c.pending, e)
	}
	c.advance(e, StateCompleted, nil)
	c.logger.Info("Bean completed", "bean", e.def.Name, "scope", e.def.EffectiveScope())
}

// publishPending makes the singletons completed by the finished top-level
// build visible to lock-free readers. The caller holds the build lock.
func (c *ApplicationContext) publishPending() {
	if len(c.pending) == 0 {
		return
	}
	c.mu.Lock()
	for _, e := range c.pending {
		if e.state == StateCompleted {
			e.published = true
		}
	}
	c.mu.Unlock()
	c.pending = nil
}

// fail moves e to Error, propagates the failure to completed dependents and
// returns the error reported to whoever requested the bean.
func (c *ApplicationContext) fail(e *beanEntry, cause error) error {
	name := e.def.Name

	c.mu.Lock()
	e.state = StateError
	e.err = cause
	e.instance = nil
	c.completed = slices.DeleteFunc(c.completed, func(n string) bool { return n == name })
	beanErr := &BeanError{Bean: name, State: e.lastState, Err: cause}
	tainted := c.taintDependentsLocked(e, beanErr)
	c.mu.Unlock()

	c.logger.Error("Bean build failed", "bean", name, "state", e.lastState, "error", cause)
	c.emitBuildEvent(EventTypeBeanFailed, map[string]any{"bean": name, "state": e.lastState.String(), "error": cause.Error()})
	for _, dep := range tainted {
		c.logger.Warn("Evicted bean holding a reference to a failed bean", "bean", dep, "failed", name)
		c.emitBuildEvent(EventTypeBeanFailed, map[string]any{"bean": dep, "state": StateCompleted.String(), "cause": name})
	}
	return fmt.Errorf("%w: %w", ErrBuildFailed, beanErr)
}

// taintDependentsLocked fails every completed singleton that transitively
// holds a reference to the failed bean and evicts it from the cache.
// Dependents still on the build stack see the failure directly.
func (c *ApplicationContext) taintDependentsLocked(failed *beanEntry, cause *BeanError) []string {
	var tainted []string
	queue := slices.Sorted(maps.Keys(failed.dependents))
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		e, ok := c.entries[name]
		if !ok || e.state != StateCompleted {
			continue
		}
		e.state = StateError
		e.err = fmt.Errorf("%w: depends on %s: %w", ErrBuildFailed, cause.Bean, cause)
		e.instance = nil
		e.published = false
		c.completed = slices.DeleteFunc(c.completed, func(n string) bool { return n == name })
		tainted = append(tainted, name)
		queue = append(queue, slices.Sorted(maps.Keys(e.dependents))...)
	}
	return tainted
}

// recordDependent notes that holder received a reference to target.
func (c *ApplicationContext) recordDependent(target, holder string) {
	if holder == "" || target == holder {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.entries[target]
	if !ok || !t.def.IsSingleton() {
		return
	}
	if h, ok := c.entries[holder]; !ok || !h.def.IsSingleton() {
		return
	}
	if t.dependents == nil {
		t.dependents = make(map[string]struct{})
	}
	t.dependents[holder] = struct{}{}
}

func (c *ApplicationContext) currentBuild() string {
	if len(c.stack) == 0 {
		return ""
	}
	return c.stack[len(c.stack)-1]
}

func (c *ApplicationContext) onStack(name string) bool {
	return slices.Contains(c.stack, name)
}

func (c *ApplicationContext) stackSnapshot() []string {
	return slices.Clone(c.stack)
}

func (c *ApplicationContext) entryState(name string) (BuildState, any) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[name]
	if !ok {
		return StateUnbuilt, nil
	}
	return e.state, e.instance
}

// destroyBean runs the destroy hook of a singleton: the declared
// DestroyMethod, else Destroyer, else io.Closer.
func destroyBean(def *BeanDefinition, instance any) (err error) {
	if instance == nil {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("destroy hook panicked: %v", r)
		}
	}()

	if def.DestroyMethod != "" {
		method := reflect.ValueOf(instance).MethodByName(def.DestroyMethod)
		if !method.IsValid() || method.Type().NumIn() != 0 {
			return fmt.Errorf("%w: %s on %T", ErrDestroyMethodNotFound, def.DestroyMethod, instance)
		}
		for _, out := range method.Call(nil) {
			if e, ok := out.Interface().(error); ok && e != nil {
				return e
			}
		}
		return nil
	}

	switch d := instance.(type) {
	case Destroyer:
		return d.Destroy()
	case io.Closer:
		return d.Close()
	}
	return nil
}

// emitEvent delivers a lifecycle event to the observers. Delivery is
// asynchronous unless the context was created WithSynchronousObservers.
func (c *ApplicationContext) emitEvent(eventType string, data map[string]any) {
	c.emitEventIn(nil, eventType, data)
}

// emitBuildEvent is emitEvent for events raised by the build holding the
// lock. Synchronous observers find the build lookup in their context.
func (c *ApplicationContext) emitBuildEvent(eventType string, data map[string]any) {
	c.emitEventIn(c.scope, eventType, data)
}

func (c *ApplicationContext) emitEventIn(scope *buildLookup, eventType string, data map[string]any) {
	c.observerMutex.RLock()
	none := len(c.observers) == 0
	c.observerMutex.RUnlock()
	if none {
		return
	}

	event := NewCloudEvent(eventType, "ioc/context/"+c.id, data, nil)
	if c.syncEvents {
		ctx := WithSynchronousNotification(context.Background())
		if scope != nil {
			ctx = withBuildLookup(ctx, scope)
		}
		if err := c.NotifyObservers(ctx, event); err != nil {
			c.logger.Error("Failed to notify observers", "event", eventType, "error", err)
		}
		return
	}
	go func() {
		if err := c.NotifyObservers(context.Background(), event); err != nil {
			c.logger.Error("Failed to notify observers", "event", eventType, "error", err)
		}
	}()
}

package ioc

import "sync/atomic"

// Lifecycle hooks. A bean opts into a hook by implementing the interface;
// the context calls it when the bean reaches the matching state.

// ConstructedAware is called right after the builder produced the raw
// instance, before any property is applied. An error fails the bean.
type ConstructedAware interface {
	OnConstructed() error
}

// PropertiesBoundAware is called once every declared property has been
// applied. An error fails the bean.
type PropertiesBoundAware interface {
	OnPropertiesBound() error
}

// AffinityAware is called on the target execution context once a thread
// affinity handoff has moved the bean there.
type AffinityAware interface {
	OnAffinityChanged(ec ExecutionContext)
}

// CompletedAware is called after the bean reached the completed state and,
// for singletons, was cached.
type CompletedAware interface {
	OnCompleted()
}

// Destroyer is called by Close for singletons without a DestroyMethod.
type Destroyer interface {
	Destroy() error
}

// PropertySetter lets a bean take over property binding. When implemented,
// it receives every declared property instead of field or setter binding.
type PropertySetter interface {
	SetProperty(name string, value any) error
}

// BeanLookup finds beans by name.
type BeanLookup interface {
	GetBean(name string) (any, error)
}

// LookupAware receives, right after construction, a lookup for reaching
// other beans from its hooks. While the build that created the bean is
// running the lookup resolves on the building goroutine, with the cycle
// rules of a property reference by pointer. Afterwards it behaves like
// ApplicationContext.GetBean.
type LookupAware interface {
	SetBeanLookup(lookup BeanLookup)
}

// buildLookup is the BeanLookup of one top-level build. The building
// goroutine already holds the build lock, so a live lookup resolves
// directly.
type buildLookup struct {
	ctx  *ApplicationContext
	live atomic.Bool
}

func (l *buildLookup) GetBean(name string) (any, error) {
	if !l.live.Load() {
		return l.ctx.GetBean(name)
	}
	return l.ctx.resolver.resolve(Ref(name), siteProperty)
}

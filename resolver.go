package ioc

import "fmt"

// resolveSite tells the resolver whether a reference feeds a constructor
// argument or a property.
type resolveSite int

const (
	siteProperty resolveSite = iota
	siteConstructor
)

func (s resolveSite) String() string {
	if s == siteConstructor {
		return "constructor"
	}
	return "property"
}

// ReferenceResolver turns BeanReferences into live instances, building
// targets on demand so forward references work regardless of registration
// order.
//
// A reference to a bean that is itself on the active build stack closes a
// cycle. Such a cycle can only be broken through a property reference by
// pointer to a target that already has an instance; everything else fails.
type ReferenceResolver struct {
	ctx *ApplicationContext
}

// Resolve resolves ref outside of any build, with property semantics.
func (r *ReferenceResolver) Resolve(ref BeanReference) (any, error) {
	c := r.ctx
	if err := c.checkActive(); err != nil {
		return nil, err
	}
	c.lockBuild()
	defer c.unlockBuild()
	return r.resolve(ref, siteProperty)
}

// resolveValue returns literals unchanged and resolves references. The
// caller holds the build lock.
func (r *ReferenceResolver) resolveValue(v any, site resolveSite) (any, error) {
	ref, ok := v.(BeanReference)
	if !ok {
		return v, nil
	}
	return r.resolve(ref, site)
}

func (r *ReferenceResolver) resolve(ref BeanReference, site resolveSite) (any, error) {
	c := r.ctx
	def, ok := c.store.Get(ref.Target)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownBeanReference, ref.Target)
	}
	holder := c.currentBuild()

	if c.onStack(ref.Target) {
		instance, err := r.resolveInProgress(ref, def, site)
		if err != nil {
			c.logger.Debug("Reference cycle rejected", "bean", holder, "target", ref.Target, "site", site.String(), "error", err)
			return nil, err
		}
		c.logger.Debug("Reference cycle broken with partial instance", "bean", holder, "target", ref.Target)
		c.recordDependent(ref.Target, holder)
		return instance, nil
	}

	instance, err := c.obtain(ref.Target)
	if err != nil {
		return nil, err
	}
	c.recordDependent(ref.Target, holder)
	if !ref.IsPointer() {
		return copyValue(instance), nil
	}
	return instance, nil
}

// resolveInProgress handles a reference to a bean that is being built
// further down the stack.
func (r *ReferenceResolver) resolveInProgress(ref BeanReference, def *BeanDefinition, site resolveSite) (any, error) {
	c := r.ctx
	chain := c.stackSnapshot()

	// Each prototype request builds a new instance, so a prototype cycle
	// never closes.
	if !def.IsSingleton() {
		return nil, cycleError(ErrUnresolvableConstructorCycle, chain, ref.Target)
	}

	state, instance := c.entryState(ref.Target)
	if site == siteConstructor || !state.HasInstance() {
		return nil, cycleError(ErrUnresolvableConstructorCycle, chain, ref.Target)
	}
	if !ref.IsPointer() {
		return nil, cycleError(ErrPartialValueReference, chain, ref.Target)
	}
	return instance, nil
}

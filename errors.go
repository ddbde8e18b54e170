package ioc

import (
	"errors"
	"fmt"
	"strings"
)

// Error kinds. Every concrete error below wraps exactly one of these so
// callers can test either the precise failure or its category.
var (
	ErrDefinition   = errors.New("definition error")
	ErrResolution   = errors.New("resolution error")
	ErrConstruction = errors.New("construction error")
	ErrHandoff      = errors.New("handoff error")
)

// Container errors
var (
	// Definition errors
	ErrEmptyBeanName        = fmt.Errorf("%w: bean name is empty", ErrDefinition)
	ErrDuplicateBean        = fmt.Errorf("%w: bean already defined", ErrDefinition)
	ErrMissingRecipe        = fmt.Errorf("%w: definition has neither a type name nor a plugin path", ErrDefinition)
	ErrAmbiguousRecipe      = fmt.Errorf("%w: definition has both a type name and a plugin path", ErrDefinition)
	ErrInvalidScope         = fmt.Errorf("%w: invalid bean scope", ErrDefinition)
	ErrMixedArguments       = fmt.Errorf("%w: positional and named constructor arguments are mixed", ErrDefinition)
	ErrDuplicateArgument    = fmt.Errorf("%w: constructor argument declared twice", ErrDefinition)
	ErrInvalidArgument      = fmt.Errorf("%w: constructor argument has neither index nor name", ErrDefinition)
	ErrStoreFrozen          = fmt.Errorf("%w: definition store is frozen", ErrDefinition)
	ErrNilDefinition        = fmt.Errorf("%w: definition is nil", ErrDefinition)
	ErrInvalidReferenceMode = fmt.Errorf("%w: invalid reference mode", ErrDefinition)

	// Resolution errors
	ErrUnknownBeanReference         = fmt.Errorf("%w: unknown bean reference", ErrResolution)
	ErrUnresolvableConstructorCycle = fmt.Errorf("%w: unresolvable constructor cycle", ErrResolution)
	ErrPartialValueReference        = fmt.Errorf("%w: by-value reference into a bean that is still being built", ErrResolution)

	// Construction errors
	ErrTypeNotRegistered     = fmt.Errorf("%w: type not registered", ErrConstruction)
	ErrArgumentCountMismatch = fmt.Errorf("%w: argument count mismatch", ErrConstruction)
	ErrArgumentTypeMismatch  = fmt.Errorf("%w: argument type mismatch", ErrConstruction)
	ErrPluginLoad            = fmt.Errorf("%w: plugin load failed", ErrConstruction)
	ErrPropertyBinding       = fmt.Errorf("%w: property binding failed", ErrConstruction)
	ErrNilInstance           = fmt.Errorf("%w: builder produced a nil instance", ErrConstruction)
	ErrBuildPanicked         = fmt.Errorf("%w: build panicked", ErrConstruction)

	// Handoff errors
	ErrHandoffTimeout          = fmt.Errorf("%w: timed out waiting for execution context", ErrHandoff)
	ErrUnknownExecutionContext = fmt.Errorf("%w: unknown execution context", ErrHandoff)
	ErrLoopStopped             = fmt.Errorf("%w: event loop is not running", ErrHandoff)
	ErrPostTimeout             = fmt.Errorf("%w: execution context did not accept the task in time", ErrHandoff)

	// Bean access errors
	ErrBeanNotFound = errors.New("bean not found")
	ErrBuildFailed  = errors.New("bean build failed")
	ErrCastFailed   = errors.New("bean cannot be cast to type")

	// Type registry errors
	ErrConstructorNotFunc     = errors.New("constructor must be a function")
	ErrConstructorSignature   = errors.New("constructor must return (T) or (T, error)")
	ErrConstructorVariadic    = errors.New("variadic constructors are not supported")
	ErrTypeAlreadyRegistered  = errors.New("type already registered")
	ErrTooManyParameterNames  = errors.New("more parameter names than constructor parameters")
	ErrInterfacePointerNeeded = errors.New("interface registration needs a nil pointer to an interface")

	// Plugin errors
	ErrPluginNotRegistered = errors.New("no plugin registered for path")
	ErrPluginSymbolType    = errors.New("plugin symbol has an unsupported signature")

	// Context lifecycle errors
	ErrContextNotRefreshed     = errors.New("application context not refreshed")
	ErrContextAlreadyRefreshed = errors.New("application context already refreshed")
	ErrContextClosed           = errors.New("application context closed")
	ErrDestroyMethodNotFound   = errors.New("destroy method not found")
	ErrDuplicateExecContext    = errors.New("execution context already registered")
	ErrNilExecutionContext     = errors.New("execution context is nil")

	// Routine errors
	ErrStartupAlreadyRun = errors.New("startup routines already ran")
	ErrNilRoutine        = errors.New("routine is nil")
)

// BeanError records the failure of one bean's build chain.
type BeanError struct {
	// Bean is the name of the failed bean.
	Bean string
	// State is the last state the bean reached before failing.
	State BuildState
	// Err is the underlying cause.
	Err error
}

func (e *BeanError) Error() string {
	return fmt.Sprintf("bean %q failed after %s: %v", e.Bean, e.State, e.Err)
}

func (e *BeanError) Unwrap() error {
	return e.Err
}

// RefreshError aggregates every per-bean failure observed during Refresh so a
// misconfigured graph can be diagnosed from a single call.
type RefreshError struct {
	Failures []*BeanError
}

func (e *RefreshError) Error() string {
	msgs := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		msgs = append(msgs, f.Error())
	}
	return fmt.Sprintf("refresh failed for %d bean(s): %s", len(e.Failures), strings.Join(msgs, "; "))
}

func (e *RefreshError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failures))
	for _, f := range e.Failures {
		errs = append(errs, f)
	}
	return errs
}

// Failed reports whether the named bean is part of the aggregate.
func (e *RefreshError) Failed(name string) bool {
	for _, f := range e.Failures {
		if f.Bean == name {
			return true
		}
	}
	return false
}

// cycleError formats the active build chain that closed a cycle.
func cycleError(kind error, chain []string, target string) error {
	path := make([]string, 0, len(chain)+1)
	path = append(path, chain...)
	path = append(path, target)
	return fmt.Errorf("%w: %s", kind, strings.Join(path, " -> "))
}

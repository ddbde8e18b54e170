package ioc

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"
)

// Routine is a startup or shutdown callback.
type Routine func() error

// Routine priorities. Any int is accepted; these name the usual bands.
const (
	PriorityMin    = -100
	PriorityNormal = 0
	PriorityMax    = 100
)

type startupState int

const (
	startupUninitialized startupState = iota
	startupRunning
	startupInitialized
)

// RoutineRegistry holds priority-ordered startup and shutdown routines.
//
// Higher priorities run first. Within one priority the most recently
// registered routine runs first, so shutdown unwinds the registrations made
// by each subsystem in reverse.
type RoutineRegistry struct {
	mu       sync.Mutex
	cond     *sync.Cond
	state    startupState
	startup  map[int][]Routine
	shutdown map[int][]Routine
	logger   Logger
}

// NewRoutineRegistry creates an empty registry. A nil logger discards output.
func NewRoutineRegistry(logger Logger) *RoutineRegistry {
	if logger == nil {
		logger = nopLogger()
	}
	r := &RoutineRegistry{
		startup:  make(map[int][]Routine),
		shutdown: make(map[int][]Routine),
		logger:   logger,
	}
	r.cond = sync.NewCond(&r.mu)
	return r
}

// RegisterStartup adds a startup routine. Registration after RunStartup has
// started fails with ErrStartupAlreadyRun, since the routine would never run.
func (r *RoutineRegistry) RegisterStartup(priority int, fn Routine) error {
	if fn == nil {
		return ErrNilRoutine
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != startupUninitialized {
		return fmt.Errorf("%w: priority %d", ErrStartupAlreadyRun, priority)
	}
	r.startup[priority] = append(r.startup[priority], fn)
	return nil
}

// RegisterShutdown adds a shutdown routine. Routines registered while
// RunShutdown is executing are kept for the next RunShutdown.
func (r *RoutineRegistry) RegisterShutdown(priority int, fn Routine) error {
	if fn == nil {
		return ErrNilRoutine
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.shutdown[priority] = append(r.shutdown[priority], fn)
	return nil
}

// RunStartup runs every startup routine exactly once. Concurrent callers
// wait for the first run to finish; later calls return nil immediately.
// A failing routine does not stop the others; all failures are joined.
func (r *RoutineRegistry) RunStartup() error {
	r.mu.Lock()
	for r.state == startupRunning {
		r.cond.Wait()
	}
	if r.state == startupInitialized {
		r.mu.Unlock()
		return nil
	}
	r.state = startupRunning
	routines := r.startup
	r.startup = make(map[int][]Routine)
	r.mu.Unlock()

	err := r.run("startup", routines)

	r.mu.Lock()
	r.state = startupInitialized
	r.cond.Broadcast()
	r.mu.Unlock()
	return err
}

// RunShutdown drains the shutdown routines and runs them. The registry is
// emptied before the first routine runs.
func (r *RoutineRegistry) RunShutdown() error {
	r.mu.Lock()
	routines := r.shutdown
	r.shutdown = make(map[int][]Routine)
	r.mu.Unlock()

	return r.run("shutdown", routines)
}

// Started reports whether RunStartup has completed.
func (r *RoutineRegistry) Started() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state == startupInitialized
}

// Pending returns the number of registered startup and shutdown routines
// that have not run yet.
func (r *RoutineRegistry) Pending() (startup, shutdown int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, bucket := range r.startup {
		startup += len(bucket)
	}
	for _, bucket := range r.shutdown {
		shutdown += len(bucket)
	}
	return startup, shutdown
}

func (r *RoutineRegistry) run(phase string, routines map[int][]Routine) error {
	var errs []error
	for _, fn := range ordered(routines) {
		if err := r.invoke(fn.routine); err != nil {
			r.logger.Error("Routine failed", "phase", phase, "priority", fn.priority, "error", err)
			errs = append(errs, fmt.Errorf("%s routine (priority %d): %w", phase, fn.priority, err))
		}
	}
	r.logger.Debug("Routines finished", "phase", phase, "failures", len(errs))
	return errors.Join(errs...)
}

func (r *RoutineRegistry) invoke(fn Routine) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("routine panicked: %v", p)
		}
	}()
	return fn()
}

type prioritizedRoutine struct {
	priority int
	routine  Routine
}

// ordered flattens the buckets: highest priority first, latest registration
// first within a bucket.
func ordered(routines map[int][]Routine) []prioritizedRoutine {
	priorities := slices.Sorted(maps.Keys(routines))
	slices.Reverse(priorities)

	var out []prioritizedRoutine
	for _, p := range priorities {
		bucket := routines[p]
		for i := len(bucket) - 1; i >= 0; i-- {
			out = append(out, prioritizedRoutine{priority: p, routine: bucket[i]})
		}
	}
	return out
}

var (
	defaultRoutinesOnce sync.Once
	defaultRoutines     *RoutineRegistry
)

// Routines returns the process-wide routine registry.
func Routines() *RoutineRegistry {
	defaultRoutinesOnce.Do(func() {
		defaultRoutines = NewRoutineRegistry(nil)
	})
	return defaultRoutines
}

// RegisterStartup adds a startup routine to the process-wide registry.
func RegisterStartup(priority int, fn Routine) error {
	return Routines().RegisterStartup(priority, fn)
}

// RegisterShutdown adds a shutdown routine to the process-wide registry.
func RegisterShutdown(priority int, fn Routine) error {
	return Routines().RegisterShutdown(priority, fn)
}

// Init runs the process-wide startup routines. It is meant to be called
// once by main; further calls are no-ops.
func Init() error {
	return Routines().RunStartup()
}

// Shutdown runs the process-wide shutdown routines.
func Shutdown() error {
	return Routines().RunShutdown()
}

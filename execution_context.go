package ioc

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// ExecutionContext is a cooperative event loop that beans can be bound to.
// Post queues a task to run on the context; it must not run the task on the
// caller's goroutine.
type ExecutionContext interface {
	Name() string
	Post(task func()) error
}

// Affine is implemented by beans that need to know which execution context
// owns them. SetExecutionContext runs on the target context during handoff.
type Affine interface {
	SetExecutionContext(ec ExecutionContext)
}

const (
	handoffPending int32 = iota
	handoffMoving
	handoffDone
	handoffCancelled
)

// TimedPoster is implemented by execution contexts that can bound how long
// queueing a task may block.
type TimedPoster interface {
	PostTimeout(task func(), timeout time.Duration) error
}

// MoveTo hands instance off to target and blocks until the target context
// has taken ownership, polling every interval for at most timeout. The
// timeout covers queueing the task as well as waiting for it to run. A
// handoff that times out is cancelled: the queued task becomes a no-op, so
// the instance is never touched by both contexts.
func MoveTo(instance any, target ExecutionContext, interval, timeout time.Duration) error {
	return moveTo(instance, target, interval, timeout, nil)
}

func moveTo(instance any, target ExecutionContext, interval, timeout time.Duration, onMoved func()) error {
	if target == nil {
		return fmt.Errorf("%w: nil target", ErrUnknownExecutionContext)
	}

	var state atomic.Int32
	task := func() {
		if !state.CompareAndSwap(handoffPending, handoffMoving) {
			return
		}
		defer state.Store(handoffDone)
		if a, ok := instance.(Affine); ok {
			a.SetExecutionContext(target)
		}
		if onMoved != nil {
			onMoved()
		}
	}
	done := func() bool { return state.Load() == handoffDone }
	cancel := func() error {
		if state.CompareAndSwap(handoffPending, handoffCancelled) {
			return fmt.Errorf("%w: %s after %s", ErrHandoffTimeout, target.Name(), timeout)
		}
		// The task already started on the target; it owns the instance now.
		WaitFor(done, interval, -1)
		return nil
	}

	start := time.Now()
	if err := postWithin(target, task, timeout); err != nil {
		if errors.Is(err, ErrPostTimeout) {
			return cancel()
		}
		return fmt.Errorf("%w: posting to %s: %w", ErrHandoff, target.Name(), err)
	}

	remaining := timeout
	if timeout >= 0 {
		remaining = max(timeout-time.Since(start), 0)
	}
	if WaitFor(done, interval, remaining) {
		return nil
	}
	return cancel()
}

// postWithin queues task on target, giving up after timeout. A negative
// timeout blocks until the target accepts the task. Targets that are not a
// TimedPoster are posted to from a helper goroutine; a task they accept
// after the deadline finds the handoff cancelled.
func postWithin(target ExecutionContext, task func(), timeout time.Duration) error {
	if timeout < 0 {
		return target.Post(task)
	}
	if tp, ok := target.(TimedPoster); ok {
		return tp.PostTimeout(task, timeout)
	}

	result := make(chan error, 1)
	go func() { result <- target.Post(task) }()

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case err := <-result:
		return err
	case <-timer.C:
		return fmt.Errorf("%w: %s", ErrPostTimeout, target.Name())
	}
}

// EventLoop is an ExecutionContext backed by a single goroutine draining a
// task queue.
type EventLoop struct {
	name   string
	tasks  chan func()
	logger Logger

	mu      sync.Mutex
	running bool
	quit    chan struct{}
	done    chan struct{}
}

// NewEventLoop creates a stopped event loop with the given queue capacity.
func NewEventLoop(name string, capacity int, logger Logger) *EventLoop {
	if logger == nil {
		logger = nopLogger()
	}
	if capacity < 0 {
		capacity = 0
	}
	return &EventLoop{
		name:   name,
		tasks:  make(chan func(), capacity),
		logger: logger,
	}
}

// Name returns the loop's name.
func (l *EventLoop) Name() string {
	return l.name
}

// Start launches the loop goroutine. Starting a running loop is a no-op.
func (l *EventLoop) Start() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.running {
		return
	}
	l.running = true
	l.quit = make(chan struct{})
	l.done = make(chan struct{})
	go l.loop(l.quit, l.done)
	l.logger.Debug("Event loop started", "loop", l.name)
}

// Stop ends the loop and waits for the current task to finish. Queued
// tasks that have not started are dropped.
func (l *EventLoop) Stop() {
	l.mu.Lock()
	if !l.running {
		l.mu.Unlock()
		return
	}
	l.running = false
	close(l.quit)
	done := l.done
	l.mu.Unlock()

	<-done
	l.logger.Debug("Event loop stopped", "loop", l.name)
}

// Running reports whether the loop accepts tasks.
func (l *EventLoop) Running() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.running
}

// Post queues task. It blocks while the queue is full and fails with
// ErrLoopStopped when the loop is not running.
func (l *EventLoop) Post(task func()) error {
	return l.PostTimeout(task, -1)
}

// PostTimeout queues task like Post but gives up with ErrPostTimeout when
// the queue has no room within timeout. A negative timeout never gives up.
func (l *EventLoop) PostTimeout(task func(), timeout time.Duration) error {
	l.mu.Lock()
	if !l.running {
		l.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrLoopStopped, l.name)
	}
	quit := l.quit
	l.mu.Unlock()

	var expired <-chan time.Time
	if timeout >= 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}

	select {
	case l.tasks <- task:
		return nil
	case <-quit:
		return fmt.Errorf("%w: %s", ErrLoopStopped, l.name)
	case <-expired:
		return fmt.Errorf("%w: %s after %s", ErrPostTimeout, l.name, timeout)
	}
}

func (l *EventLoop) loop(quit, done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-quit:
			return
		case task := <-l.tasks:
			l.runTask(task)
		}
	}
}

func (l *EventLoop) runTask(task func()) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("Event loop task panicked", "loop", l.name, "panic", r)
		}
	}()
	task()
}

package ioc

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type affineBean struct {
	owner atomic.Value
}

func (p *affineBean) SetExecutionContext(ec ExecutionContext) {
	p.owner.Store(ec.Name())
}

func TestEventLoop(t *testing.T) {
	loop := NewEventLoop("ui", 2, &logger{t})
	assert.Equal(t, "ui", loop.Name())
	assert.False(t, loop.Running())
	assert.ErrorIs(t, loop.Post(func() {}), ErrLoopStopped)

	loop.Start()
	loop.Start()
	require.True(t, loop.Running())

	done := make(chan struct{})
	require.NoError(t, loop.Post(func() { panic("task failure") }))
	require.NoError(t, loop.Post(func() { close(done) }))

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("task after a panicking task did not run")
	}

	loop.Stop()
	loop.Stop()
	assert.False(t, loop.Running())
	assert.ErrorIs(t, loop.Post(func() {}), ErrLoopStopped)
}

func TestMoveTo(t *testing.T) {
	t.Run("target takes ownership", func(t *testing.T) {
		loop := NewEventLoop("worker", 1, &logger{t})
		loop.Start()
		defer loop.Stop()

		bean := &affineBean{}
		require.NoError(t, MoveTo(bean, loop, time.Millisecond, time.Second))
		assert.Equal(t, "worker", bean.owner.Load())
	})

	t.Run("timeout cancels the pending task", func(t *testing.T) {
		var task func()
		capture := &capturingContext{post: func(fn func()) { task = fn }}

		bean := &affineBean{}
		err := MoveTo(bean, capture, time.Millisecond, 10*time.Millisecond)
		require.ErrorIs(t, err, ErrHandoffTimeout)

		require.NotNil(t, task)
		task()
		assert.Nil(t, bean.owner.Load(), "a cancelled handoff never touches the instance")
	})

	t.Run("stopped target", func(t *testing.T) {
		loop := NewEventLoop("stopped", 1, nil)
		err := MoveTo(&affineBean{}, loop, time.Millisecond, time.Second)
		assert.ErrorIs(t, err, ErrLoopStopped)
		assert.ErrorIs(t, err, ErrHandoff)
	})

	t.Run("nil target", func(t *testing.T) {
		assert.ErrorIs(t, MoveTo(&affineBean{}, nil, time.Millisecond, time.Second), ErrUnknownExecutionContext)
	})

	t.Run("busy loop times out while queueing", func(t *testing.T) {
		loop := NewEventLoop("busy", 0, &logger{t})
		loop.Start()
		started, release := make(chan struct{}), make(chan struct{})
		require.NoError(t, loop.Post(func() {
			close(started)
			<-release
		}))
		<-started
		defer loop.Stop()
		defer close(release)

		bean := &affineBean{}
		start := time.Now()
		err := MoveTo(bean, loop, time.Millisecond, 20*time.Millisecond)
		require.ErrorIs(t, err, ErrHandoffTimeout)
		assert.Less(t, time.Since(start), time.Second)
		assert.Nil(t, bean.owner.Load())
	})

	t.Run("blocking post on a plain context times out", func(t *testing.T) {
		target := &blockingContext{release: make(chan struct{}), ran: make(chan struct{})}
		bean := &affineBean{}
		err := MoveTo(bean, target, time.Millisecond, 20*time.Millisecond)
		require.ErrorIs(t, err, ErrHandoffTimeout)

		close(target.release)
		<-target.ran
		assert.Nil(t, bean.owner.Load(), "a task accepted after the deadline is a no-op")
	})

	t.Run("callback runs on the target", func(t *testing.T) {
		loop := NewEventLoop("cb", 1, nil)
		loop.Start()
		defer loop.Stop()

		var ran atomic.Bool
		require.NoError(t, moveTo(struct{}{}, loop, time.Millisecond, time.Second, func() { ran.Store(true) }))
		assert.True(t, ran.Load())
	})
}

// capturingContext hands posted tasks to post instead of running them.
type capturingContext struct {
	post func(func())
}

func (c *capturingContext) Name() string { return "capturing" }

func (c *capturingContext) Post(task func()) error {
	c.post(task)
	return nil
}

// blockingContext accepts a task only once release is closed, then runs it
// inline.
type blockingContext struct {
	release chan struct{}
	ran     chan struct{}
}

func (b *blockingContext) Name() string { return "blocking" }

func (b *blockingContext) Post(task func()) error {
	<-b.release
	task()
	close(b.ran)
	return nil
}

func TestEventLoopPostTimeout(t *testing.T) {
	loop := NewEventLoop("bounded", 0, nil)
	assert.ErrorIs(t, loop.PostTimeout(func() {}, time.Millisecond), ErrLoopStopped)

	loop.Start()
	defer loop.Stop()
	started, release := make(chan struct{}), make(chan struct{})
	require.NoError(t, loop.PostTimeout(func() {
		close(started)
		<-release
	}, time.Second))
	<-started

	err := loop.PostTimeout(func() {}, 10*time.Millisecond)
	assert.ErrorIs(t, err, ErrPostTimeout)
	assert.ErrorIs(t, err, ErrHandoff)
	close(release)

	ran := make(chan struct{})
	require.NoError(t, loop.PostTimeout(func() { close(ran) }, time.Second))
	<-ran
}

func TestWaitFor(t *testing.T) {
	t.Run("satisfied immediately", func(t *testing.T) {
		calls := 0
		assert.True(t, WaitFor(func() bool { calls++; return true }, time.Hour, 0))
		assert.Equal(t, 1, calls)
	})

	t.Run("satisfied after polling", func(t *testing.T) {
		var n atomic.Int32
		assert.True(t, WaitFor(func() bool { return n.Add(1) >= 3 }, time.Millisecond, time.Second))
	})

	t.Run("times out", func(t *testing.T) {
		start := time.Now()
		assert.False(t, WaitFor(func() bool { return false }, 5*time.Millisecond, 20*time.Millisecond))
		assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
	})

	t.Run("negative timeout waits until satisfied", func(t *testing.T) {
		var flag atomic.Bool
		time.AfterFunc(30*time.Millisecond, func() { flag.Store(true) })
		assert.True(t, WaitFor(flag.Load, time.Millisecond, -1))
	})

	t.Run("non-positive interval uses the default", func(t *testing.T) {
		var n atomic.Int32
		assert.True(t, WaitFor(func() bool { return n.Add(1) >= 2 }, 0, time.Second))
	})
}

package clock

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Dispatch hands a timer callback to the goroutine that owns the state.
type Dispatch func(fn func())

// Real is a wall-clock Scheduler. Fires are delivered through dispatch so
// they interleave with the owner's other messages instead of racing them.
type Real struct {
	ctx      context.Context
	dispatch Dispatch
}

func NewReal(ctx context.Context, dispatch Dispatch) *Real {
	return &Real{ctx: ctx, dispatch: dispatch}
}

type realTimer struct {
	stopped atomic.Bool
	done    chan struct{}
	once    sync.Once
}

func (t *realTimer) Stop() {
	t.stopped.Store(true)
	t.once.Do(func() { close(t.done) })
}

// wrap drops a fire that was already queued when Stop was called. The
// check runs on the owner's goroutine, the same one that calls Stop.
func (t *realTimer) wrap(fn func()) func() {
	return func() {
		if t.stopped.Load() {
			return
		}
		fn()
	}
}

func (r *Real) Every(d time.Duration, fn func()) Timer {
	t := &realTimer{done: make(chan struct{})}
	ticker := time.NewTicker(d)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-r.ctx.Done():
				return
			case <-t.done:
				return
			case <-ticker.C:
				r.dispatch(t.wrap(fn))
			}
		}
	}()
	return t
}

func (r *Real) After(d time.Duration, fn func()) Timer {
	t := &realTimer{done: make(chan struct{})}
	timer := time.NewTimer(d)
	go func() {
		defer timer.Stop()
		select {
		case <-r.ctx.Done():
		case <-t.done:
		case <-timer.C:
			wrapped := t.wrap(fn)
			// a one-shot is spent once delivered
			r.dispatch(func() {
				wrapped()
				t.Stop()
			})
		}
	}()
	return t
}

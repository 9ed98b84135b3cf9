package clock

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManual_EveryFiresOncePerPeriod(t *testing.T) {
	m := NewManual()
	n := 0
	m.Every(100*time.Millisecond, func() { n++ })

	m.Advance(99 * time.Millisecond)
	assert.Equal(t, 0, n)

	m.Advance(1 * time.Millisecond)
	assert.Equal(t, 1, n)

	m.Advance(time.Second)
	assert.Equal(t, 11, n)
	assert.Equal(t, 1100*time.Millisecond, m.Now())
}

func TestManual_AfterFiresOnce(t *testing.T) {
	m := NewManual()
	n := 0
	m.After(time.Second, func() { n++ })

	m.Advance(5 * time.Second)
	assert.Equal(t, 1, n)
	assert.Equal(t, 0, m.Pending())
}

func TestManual_StopInsideCallbackPreventsLaterFires(t *testing.T) {
	m := NewManual()
	n := 0
	var tm Timer
	tm = m.Every(10*time.Millisecond, func() {
		n++
		if n == 3 {
			tm.Stop()
		}
	})

	m.Advance(time.Second)
	assert.Equal(t, 3, n)
	assert.Equal(t, 0, m.Pending())
}

func TestManual_CallbackCanScheduleFollowUp(t *testing.T) {
	m := NewManual()
	var order []string
	m.After(10*time.Millisecond, func() {
		order = append(order, "first")
		m.After(10*time.Millisecond, func() { order = append(order, "second") })
	})

	m.Advance(25 * time.Millisecond)
	assert.Equal(t, []string{"first", "second"}, order)
}

func TestManual_SameInstantFiresInScheduleOrder(t *testing.T) {
	m := NewManual()
	var order []int
	m.After(5*time.Millisecond, func() { order = append(order, 1) })
	m.After(5*time.Millisecond, func() { order = append(order, 2) })

	m.Advance(5 * time.Millisecond)
	assert.Equal(t, []int{1, 2}, order)
}

// owner mimics an actor goroutine draining dispatched callbacks.
func owner(ctx context.Context) (Dispatch, <-chan func()) {
	ch := make(chan func(), 16)
	return func(fn func()) {
		select {
		case ch <- fn:
		case <-ctx.Done():
		}
	}, ch
}

func TestReal_EveryDeliversThroughDispatch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dispatch, inbox := owner(ctx)
	r := NewReal(ctx, dispatch)

	fired := 0
	tm := r.Every(5*time.Millisecond, func() { fired++ })
	defer tm.Stop()

	for fired < 2 {
		select {
		case fn := <-inbox:
			fn()
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for ticks, fired=%d", fired)
		}
	}
}

func TestReal_StoppedTimerDropsQueuedFire(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dispatch, inbox := owner(ctx)
	r := NewReal(ctx, dispatch)

	fired := false
	tm := r.After(time.Millisecond, func() { fired = true })

	var queued func()
	select {
	case queued = <-inbox:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for fire")
	}

	tm.Stop()
	queued()
	require.False(t, fired, "stale fire must be dropped after Stop")
}

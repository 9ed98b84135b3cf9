package clock

import "time"

// Timer is a scheduled callback that can be cancelled. Stop is idempotent.
type Timer interface {
	Stop()
}

// Scheduler hands out repeating and one-shot timers.
//
// Callbacks must run on the goroutine that owns the state they touch.
// Manual runs them inside Advance; Real routes them through a dispatch
// func supplied by the owner.
type Scheduler interface {
	Every(d time.Duration, fn func()) Timer
	After(d time.Duration, fn func()) Timer
}

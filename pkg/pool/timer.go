package pool

import (
	"sync"
	"time"
)

var timerPool = sync.Pool{}

// GetTimer returns a stopped-and-drained timer from the pool, reset to d.
func GetTimer(d time.Duration) *time.Timer {
	timer, ok := timerPool.Get().(*time.Timer)
	if !ok {
		return time.NewTimer(d)
	}
	stopAndDrain(timer)
	timer.Reset(d)
	return timer
}

// ReleaseTimer stops the timer and returns it to the pool.
// The caller must not use timer afterwards.
func ReleaseTimer(timer *time.Timer) {
	if timer == nil {
		return
	}
	stopAndDrain(timer)
	timerPool.Put(timer)
}

// ResetAndDrainTimer stops the timer, drains the channel and starts it again
// with d.
func ResetAndDrainTimer(timer *time.Timer, d time.Duration) {
	if timer == nil {
		return
	}
	stopAndDrain(timer)
	timer.Reset(d)
}

func stopAndDrain(timer *time.Timer) {
	if !timer.Stop() {
		select {
		case <-timer.C:
		default:
		}
	}
}

package client

import (
	"sync"
	"time"
)

// TypingIdle is the quiet period after the last keystroke before the
// "stopped typing" signal fires. It matches the server's flag TTL.
const TypingIdle = 1800 * time.Millisecond

// Debouncer smooths raw input events into typing start/stop signals.
//
// Every Touch signals "typing" immediately (resending is harmless, the
// server just refreshes the flag's TTL) and arms a single idle timer;
// the next Touch restarts it. When the timer expires, "stopped typing"
// fires once.
//
// Both signals are emitted with the lock held, so starts and stops are
// totally ordered. An expiry that fires concurrently with a new Touch
// (timer.Stop comes back false, the callback is already queued) is
// detected by its generation and stays silent: a stop can never land
// after the keystroke that should have superseded it.
//
// Each composer owns its own Debouncer. The timer handle is instance
// state, never shared, so switching tickets can never let a stale timer
// from the previous ticket flip the new one's flag.
type Debouncer struct {
	// Idle is the quiet period. Defaults to TypingIdle; tests shrink it.
	Idle time.Duration

	signal func(typing bool)

	mu         sync.Mutex
	timer      *time.Timer
	generation uint64
}

// NewDebouncer wires a debouncer to a signal function. The function is
// called with the debouncer's lock held; it must be cheap or
// fire-and-forget and must not call back into the debouncer.
func NewDebouncer(signal func(typing bool)) *Debouncer {
	return &Debouncer{
		Idle:   TypingIdle,
		signal: signal,
	}
}

// Touch records one input event: signal typing now, (re)arm the idle
// timer.
func (d *Debouncer) Touch() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.generation++
	generation := d.generation

	idle := d.Idle
	if idle <= 0 {
		idle = TypingIdle
	}

	d.signal(true)

	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(idle, func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		// A Touch or Cancel raced this expiry and owns the flag now.
		if d.generation != generation {
			return
		}
		d.timer = nil
		d.signal(false)
	})
}

// Cancel drops the pending idle timer without signaling. Used when the
// stop signal has already been sent by other means (a successful send)
// or when the composer is being torn down.
func (d *Debouncer) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.generation++
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

package transport

import (
	"context"
	"sync/atomic"
	"time"

	"go-arpsync/debug"
)

const (
	// DefaultWatchdogInterval is the supervisory tick period
	DefaultWatchdogInterval = 100 * time.Millisecond
	// DefaultMissedLimit is how many silent ticks are tolerated; the next one desyncs
	DefaultMissedLimit = 14
)

// Watchdog drops external sync after too many ticks without a clock pulse.
// It runs on its own goroutine and only touches State through atomics.
type Watchdog struct {
	state    *State
	interval time.Duration
	limit    int32

	armed atomic.Bool
	wake  chan struct{}
}

// NewWatchdog creates a watchdog. Zero values select the defaults.
func NewWatchdog(state *State, interval time.Duration, limit int) *Watchdog {
	if interval <= 0 {
		interval = DefaultWatchdogInterval
	}
	if limit <= 0 {
		limit = DefaultMissedLimit
	}
	return &Watchdog{
		state:    state,
		interval: interval,
		limit:    int32(limit),
		wake:     make(chan struct{}, 1),
	}
}

// Arm starts ticking if the watchdog is idle. Safe to call from the audio
// callback: it never blocks.
func (w *Watchdog) Arm() {
	if !w.armed.CompareAndSwap(false, true) {
		return
	}
	// fresh budget for a new sync session
	w.state.missed.Store(0)
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

// Armed reports whether the watchdog is ticking
func (w *Watchdog) Armed() bool {
	return w.armed.Load()
}

// Tick runs one supervisory step. It returns false once the watchdog has
// disarmed itself because sync is gone.
func (w *Watchdog) Tick() bool {
	if !w.state.synced.Load() {
		w.armed.Store(false)
		// a clock may have synced between the load and the store while its
		// Arm saw armed=true; take that session over instead of going idle
		if w.state.synced.Load() && w.armed.CompareAndSwap(false, true) {
			w.state.missed.Store(0)
			return true
		}
		return false
	}

	if w.state.pulseSeen.Swap(false) {
		w.state.missed.Store(0)
		return true
	}

	if missed := w.state.missed.Add(1); missed > w.limit {
		w.state.synced.Store(false)
		debug.Log("sync", "no clock for %d ticks, extern sync lost", missed)
	}
	return true
}

// Run drives Tick at the configured interval whenever armed (blocking - run
// in goroutine)
func (w *Watchdog) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.wake:
		}

		debug.Log("sync", "watchdog armed")
		if !w.tickUntilDisarmed(ctx) {
			return
		}
		debug.Log("sync", "watchdog stopped")
	}
}

// tickUntilDisarmed returns false if ctx ended
func (w *Watchdog) tickUntilDisarmed(ctx context.Context) bool {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
			if !w.Tick() {
				return true
			}
		}
	}
}

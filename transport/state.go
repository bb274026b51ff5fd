package transport

import (
	"math"
	"sync/atomic"
)

// State is the transport state shared between the audio callback, the sync
// watchdog and the monitor. Every field is atomic; the audio callback never
// takes a lock.
type State struct {
	running        atomic.Bool
	synced         atomic.Bool
	pendingRestart atomic.Bool
	missed         atomic.Int32
	pulseSeen      atomic.Bool   // a clock arrived since the last watchdog tick
	tempo          atomic.Uint64 // float64 bits, smoothed BPM
}

// Snapshot is a point-in-time copy of State
type Snapshot struct {
	Running        bool
	Synced         bool
	PendingRestart bool
	Missed         int
	Tempo          float64
}

func (s *State) Running() bool        { return s.running.Load() }
func (s *State) Synced() bool         { return s.synced.Load() }
func (s *State) PendingRestart() bool { return s.pendingRestart.Load() }
func (s *State) Missed() int          { return int(s.missed.Load()) }

// Tempo returns the published smoothed BPM
func (s *State) Tempo() float64 {
	return math.Float64frombits(s.tempo.Load())
}

func (s *State) setTempo(bpm float64) {
	s.tempo.Store(math.Float64bits(bpm))
}

// Desync drops external sync (free-running from here on)
func (s *State) Desync() {
	s.synced.Store(false)
}

// Snapshot reads every field. Fields are loaded one by one, so the copy is
// not a single atomic view.
func (s *State) Snapshot() Snapshot {
	return Snapshot{
		Running:        s.Running(),
		Synced:         s.Synced(),
		PendingRestart: s.PendingRestart(),
		Missed:         s.Missed(),
		Tempo:          s.Tempo(),
	}
}

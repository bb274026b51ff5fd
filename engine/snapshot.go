package engine

import (
	"sync/atomic"

	"go-arpsync/clock"
	"go-arpsync/transport"
)

// stats are written by the audio goroutine and read by the monitor
type stats struct {
	blocks     atomic.Int64
	skipped    atomic.Int64
	idle       atomic.Int64
	prepared   atomic.Int64
	sampleRate atomic.Int64
	blockSize  atomic.Int64
	position   atomic.Int32 // pulse position in bar
	step       atomic.Int32 // index of the last step due, -1 before the first
	stepsDue   atomic.Int64
	dropped    atomic.Int64
	sampleTime atomic.Int64
}

// Snapshot is a monitor view of the engine
type Snapshot struct {
	Transport    transport.Snapshot
	Speed        clock.Speed
	SyncEnabled  bool
	Position     int // pulse position in bar
	Step         int // last step index due, -1 if none yet
	StepsDue     int64
	DroppedSteps int64
	Blocks       int64
	Skipped      int64
	Idle         int64
	Prepared     int64
	SampleRate   int
	BlockSize    int
	SampleTime   int64
}

func (s *stats) publish(e *Engine, blockStart int64, n int, steps []clock.StepEvent) {
	end := blockStart + int64(n)
	for _, st := range steps {
		if st.Time >= end {
			break
		}
		if st.Time >= blockStart {
			s.step.Store(int32(st.Index))
			s.stepsDue.Add(1)
		}
	}
	s.blocks.Add(1)
	s.position.Store(int32(e.machine.Counter().Position()))
	s.dropped.Store(int64(e.machine.Queue().Dropped()))
	s.sampleTime.Store(end)
}

// Snapshot reads the published engine state; safe from any goroutine
func (e *Engine) Snapshot() Snapshot {
	s := &e.stats
	return Snapshot{
		Transport:    e.machine.State().Snapshot(),
		Speed:        e.Speed(),
		SyncEnabled:  e.syncOn.Load(),
		Position:     int(s.position.Load()),
		Step:         int(s.step.Load()),
		StepsDue:     s.stepsDue.Load(),
		DroppedSteps: s.dropped.Load(),
		Blocks:       s.blocks.Load(),
		Skipped:      s.skipped.Load(),
		Idle:         s.idle.Load(),
		Prepared:     s.prepared.Load(),
		SampleRate:   int(s.sampleRate.Load()),
		BlockSize:    int(s.blockSize.Load()),
		SampleTime:   s.sampleTime.Load(),
	}
}

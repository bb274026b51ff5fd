package engine

import (
	"context"
	"sync/atomic"
	"time"

	"go-arpsync/midi"
)

// TimerHost pulls blocks on a timer without an audio device, the way a plugin
// host would: it owns the timeline and reports it through PlayHead. Output
// audio is discarded.
type TimerHost struct {
	input      *midi.InputQueue
	sampleRate float64
	blockSize  int

	pos     atomic.Int64
	playing atomic.Bool

	block  Block
	events []midi.Event
}

// NewTimerHost creates a stopped host. input may be nil.
func NewTimerHost(input *midi.InputQueue, sampleRate float64, blockSize, maxEvents int) *TimerHost {
	if maxEvents <= 0 {
		maxEvents = DefaultMaxEvents
	}
	h := &TimerHost{
		input:      input,
		sampleRate: sampleRate,
		blockSize:  blockSize,
		events:     make([]midi.Event, 0, maxEvents),
	}
	h.block.Channels = [][]float32{make([]float32, blockSize), make([]float32, blockSize)}
	h.block.SampleRate = sampleRate
	return h
}

// PlayHead reports the host timeline to the engine
func (h *TimerHost) PlayHead() HostPlayHead {
	return HostPlayHead{Query: func() (Position, bool) {
		return Position{Time: h.pos.Load(), Playing: h.playing.Load()}, true
	}}
}

// SetPlaying starts or pauses the host timeline
func (h *TimerHost) SetPlaying(on bool) {
	h.playing.Store(on)
}

func (h *TimerHost) Playing() bool {
	return h.playing.Load()
}

// Process runs one block through e. The timeline only advances while playing.
func (h *TimerHost) Process(e *Engine, now time.Time) {
	h.events = h.events[:0]
	if h.input != nil {
		h.events = h.input.Drain(h.events, now, h.blockSize, h.sampleRate)
	}
	h.block.Events = h.events

	e.ProcessBlock(&h.block)

	if h.playing.Load() {
		h.pos.Add(int64(h.blockSize))
	}
}

// Run processes a block every block duration until ctx ends (blocking - run
// in goroutine)
func (h *TimerHost) Run(ctx context.Context, e *Engine) {
	period := time.Duration(float64(h.blockSize) / h.sampleRate * float64(time.Second))
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			h.Process(e, now)
		}
	}
}

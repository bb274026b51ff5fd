package engine

import (
	"sync/atomic"

	"go-arpsync/clock"
	"go-arpsync/midi"
	"go-arpsync/transport"
)

// Voice is the sequencer/arpeggiator voice that renders steps.
// All methods run on the audio goroutine.
type Voice interface {
	transport.Director

	// Reset re-initializes the voice for a new sample rate or block size
	Reset(sampleRate float64, blockSize int)

	// Render handles one block. Steps may extend past the block end; the
	// voice acts only on those inside [BlockStart, BlockStart+len(out[0])).
	Render(out [][]float32, info BlockInfo)
}

// BlockInfo is what the voice gets for each block
type BlockInfo struct {
	BlockStart int64
	Steps      []clock.StepEvent
	Tempo      float64
	Running    bool
	Events     []midi.Event // non-transport events (notes, CCs)
}

// Block is one audio callback: output channels plus the MIDI that arrived
// with it. Events are consumed by ProcessBlock.
type Block struct {
	Channels   [][]float32
	Events     []midi.Event
	SampleRate float64
}

// Options configures an Engine
type Options struct {
	Voice     Voice
	PlayHead  PlayHead
	State     *transport.State
	Watchdog  transport.Armer
	SeedTempo float64
	QueueSize int // step queue capacity
	MaxEvents int // forwarded non-transport events per block
}

// DefaultMaxEvents bounds the per-block forwarded event list
const DefaultMaxEvents = 256

// Engine is the per-callback driver: transport, step generation, voice
type Engine struct {
	machine *transport.Machine
	voice   Voice
	head    PlayHead
	meters  MeterSlot

	sampleRate float64
	blockSize  int
	forward    []midi.Event

	// written by control goroutines, applied at block start
	speed  atomic.Uint64 // Num<<32 | Den
	syncOn atomic.Bool

	stats stats
}

// New wires an engine. Missing PlayHead means standalone.
func New(opts Options) *Engine {
	if opts.PlayHead == nil {
		opts.PlayHead = &StandalonePlayHead{}
	}
	if opts.State == nil {
		opts.State = &transport.State{}
	}
	if opts.MaxEvents <= 0 {
		opts.MaxEvents = DefaultMaxEvents
	}

	e := &Engine{
		voice: opts.Voice,
		head:  opts.PlayHead,
		machine: transport.NewMachine(transport.Options{
			State:     opts.State,
			Watchdog:  opts.Watchdog,
			Voice:     opts.Voice,
			SeedTempo: opts.SeedTempo,
			QueueSize: opts.QueueSize,
		}),
		forward: make([]midi.Event, 0, opts.MaxEvents),
	}
	e.SetSpeed(clock.Unity)
	e.syncOn.Store(true)
	e.stats.step.Store(-1)
	return e
}

// SetSpeed sets the step multiplier; takes effect at the next block
func (e *Engine) SetSpeed(sp clock.Speed) {
	if !sp.Valid() {
		return
	}
	e.speed.Store(uint64(uint32(sp.Num))<<32 | uint64(uint32(sp.Den)))
}

// Speed returns the configured multiplier
func (e *Engine) Speed() clock.Speed {
	v := e.speed.Load()
	return clock.Speed{Num: int(v >> 32), Den: int(uint32(v))}
}

// SetSync enables or disables following the external clock
func (e *Engine) SetSync(on bool) {
	e.syncOn.Store(on)
}

// SyncEnabled reports the configured sync toggle
func (e *Engine) SyncEnabled() bool {
	return e.syncOn.Load()
}

// Meters returns the meter slot so a display can attach itself
func (e *Engine) Meters() *MeterSlot {
	return &e.meters
}

// Machine exposes the transport machine (audio goroutine only)
func (e *Engine) Machine() *transport.Machine {
	return e.machine
}

// ProcessBlock runs one audio callback
func (e *Engine) ProcessBlock(b *Block) {
	defer func() { b.Events = b.Events[:0] }()

	n, ok := blockFrames(b)
	if !ok {
		e.stats.skipped.Add(1)
		return
	}

	if b.SampleRate != e.sampleRate || n != e.blockSize {
		e.prepare(b.SampleRate, n)
	}

	for _, ch := range b.Channels {
		clear(ch)
	}

	e.machine.SetSpeed(e.Speed())
	e.machine.SetSyncEnabled(e.syncOn.Load())

	pos := e.head.Position(n)
	if pos.Time+int64(n) < 0 || !pos.Playing {
		e.stats.idle.Add(1)
		return
	}

	e.machine.Prune(pos.Time)

	e.forward = e.forward[:0]
	for _, ev := range b.Events {
		if e.machine.Handle(ev, pos.Time) {
			continue
		}
		if len(e.forward) < cap(e.forward) {
			e.forward = append(e.forward, ev)
		}
	}

	state := e.machine.State()
	steps := e.machine.Steps()
	if e.voice != nil {
		e.voice.Render(b.Channels, BlockInfo{
			BlockStart: pos.Time,
			Steps:      steps,
			Tempo:      state.Tempo(),
			Running:    state.Running(),
			Events:     e.forward,
		})
	}

	e.meters.process(b.Channels[0])
	e.stats.publish(e, pos.Time, n, steps)
}

// blockFrames validates the channel layout: at least stereo, equal lengths,
// a positive sample rate
func blockFrames(b *Block) (int, bool) {
	if len(b.Channels) < 2 || b.SampleRate <= 0 {
		return 0, false
	}
	n := len(b.Channels[0])
	if n == 0 {
		return 0, false
	}
	for _, ch := range b.Channels[1:] {
		if len(ch) != n {
			return 0, false
		}
	}
	return n, true
}

func (e *Engine) prepare(sampleRate float64, blockSize int) {
	e.sampleRate = sampleRate
	e.blockSize = blockSize
	e.machine.SetSampleRate(sampleRate)
	if e.voice != nil {
		e.voice.Reset(sampleRate, blockSize)
	}
	e.stats.prepared.Add(1)
	e.stats.sampleRate.Store(int64(sampleRate))
	e.stats.blockSize.Store(int64(blockSize))
}

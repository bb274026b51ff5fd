package transport

import (
	"go-arpsync/clock"
	"go-arpsync/midi"
)

// Director receives restart/stop directives for the arpeggiator voice
type Director interface {
	Restart(sampleOffset int)
	Stop()
}

// Armer is what the machine needs from the sync watchdog
type Armer interface {
	Arm()
}

// DefaultQueueSize bounds the per-block step queue. x16 emits at most three
// steps per pulse, and a block rarely holds more than a few pulses.
const DefaultQueueSize = 256

// Options configures a Machine
type Options struct {
	State      *State
	Watchdog   Armer
	Voice      Director
	SeedTempo  float64
	QueueSize  int
	SampleRate float64
}

// Machine turns clock and transport messages into step events and tempo.
// Everything except State is owned by the audio goroutine.
type Machine struct {
	state    *State
	watchdog Armer
	voice    Director

	counter    clock.Counter
	tempo      *clock.Averager
	steps      *clock.StepQueue
	lastPulse  int64
	sampleRate float64

	speed       clock.Speed
	syncEnabled bool
}

// NewMachine creates a stopped machine with sync enabled and unity speed
func NewMachine(opts Options) *Machine {
	if opts.State == nil {
		opts.State = &State{}
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = DefaultQueueSize
	}
	m := &Machine{
		state:       opts.State,
		watchdog:    opts.Watchdog,
		voice:       opts.Voice,
		tempo:       clock.NewAverager(opts.SeedTempo),
		steps:       clock.NewStepQueue(opts.QueueSize),
		sampleRate:  opts.SampleRate,
		speed:       clock.Unity,
		syncEnabled: true,
	}
	m.state.setTempo(m.tempo.Average())
	return m
}

// SetSampleRate updates the rate used for tempo estimation and drops queued steps
func (m *Machine) SetSampleRate(sr float64) {
	m.sampleRate = sr
	m.steps.Clear()
}

// SetSpeed changes the step grid multiplier; invalid values are ignored
func (m *Machine) SetSpeed(sp clock.Speed) {
	if sp.Valid() {
		m.speed = sp
	}
}

// SetSyncEnabled gates clock processing
func (m *Machine) SetSyncEnabled(on bool) {
	m.syncEnabled = on
}

func (m *Machine) Speed() clock.Speed { return m.speed }
func (m *Machine) SyncEnabled() bool  { return m.syncEnabled }
func (m *Machine) State() *State      { return m.state }

// Counter exposes the pulse position (read only use)
func (m *Machine) Counter() clock.Counter { return m.counter }

// Steps returns the queued steps, oldest first
func (m *Machine) Steps() []clock.StepEvent { return m.steps.Steps() }

// Queue returns the step queue
func (m *Machine) Queue() *clock.StepQueue { return m.steps }

// Prune drops steps stamped before blockStart
func (m *Machine) Prune(blockStart int64) {
	m.steps.PruneBefore(blockStart)
}

// Handle dispatches one block event. blockStart is the absolute sample time
// of the block's first sample. Returns false for messages the transport
// does not consume.
func (m *Machine) Handle(ev midi.Event, blockStart int64) bool {
	switch ev.Kind() {
	case midi.KindClock:
		m.Clock(blockStart + int64(ev.Offset))
	case midi.KindStart:
		m.Start(ev.Offset)
	case midi.KindStop:
		m.Stop()
	case midi.KindContinue:
		m.Continue(ev.Offset)
	default:
		return false
	}
	return true
}

// Start rewinds to the bar start and runs
func (m *Machine) Start(offset int) {
	m.counter.Reset()
	m.resume(offset)
}

// Continue runs from the current bar position
func (m *Machine) Continue(offset int) {
	m.resume(offset)
}

func (m *Machine) resume(offset int) {
	m.steps.Clear()
	m.state.running.Store(true)
	m.state.synced.Store(true)
	m.arm()

	if m.state.pendingRestart.Swap(false) && m.voice != nil {
		m.voice.Restart(offset)
	}
}

// Stop halts step generation and asks the voice to stop
func (m *Machine) Stop() {
	m.state.running.Store(false)
	if m.voice != nil {
		m.voice.Stop()
	}
	m.state.pendingRestart.Store(true)
}

// Clock handles one timing pulse at absolute sample time at. Ignored while
// sync is disabled. Every accepted pulse generates steps and advances the
// counter, running or not; the voice decides whether to play them.
func (m *Machine) Clock(at int64) {
	if !m.syncEnabled {
		return
	}

	m.state.pulseSeen.Store(true)
	m.state.synced.Store(true)
	m.arm()

	interval := at - m.lastPulse

	m.steps.PushPulse(clock.Pulse{
		Position: m.counter.Position(),
		Absolute: m.counter.Absolute(),
		Time:     at,
		Interval: interval,
	}, m.speed)
	m.counter.Advance()

	m.state.setTempo(m.tempo.AddAndAverage(clock.TempoSample(interval, m.sampleRate)))
	m.lastPulse = at
}

func (m *Machine) arm() {
	if m.watchdog != nil {
		m.watchdog.Arm()
	}
}

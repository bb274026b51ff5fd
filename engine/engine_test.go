package engine

import (
	"sync"
	"testing"

	"go-arpsync/clock"
	"go-arpsync/midi"
)

type recordingVoice struct {
	resets   [][2]float64
	restarts []int
	stops    int
	blocks   []BlockInfo
	due      []clock.StepEvent
	notes    int
}

func (v *recordingVoice) Restart(offset int) { v.restarts = append(v.restarts, offset) }
func (v *recordingVoice) Stop()              { v.stops++ }

func (v *recordingVoice) Reset(sampleRate float64, blockSize int) {
	v.resets = append(v.resets, [2]float64{sampleRate, float64(blockSize)})
}

func (v *recordingVoice) Render(out [][]float32, info BlockInfo) {
	end := info.BlockStart + int64(len(out[0]))
	for _, s := range info.Steps {
		if s.Time >= info.BlockStart && s.Time < end {
			v.due = append(v.due, s)
			out[0][s.Time-info.BlockStart] = 1
		}
	}
	v.notes += len(info.Events)
	v.blocks = append(v.blocks, BlockInfo{BlockStart: info.BlockStart, Tempo: info.Tempo, Running: info.Running})
}

type peakMeter struct {
	calls int
	peak  float32
}

func (m *peakMeter) Process(samples []float32) {
	m.calls++
	for _, s := range samples {
		if s > m.peak {
			m.peak = s
		}
	}
}

const (
	testRate  = 48000
	testBlock = 480
	testPulse = 1000 // samples per clock at 120 BPM
)

func newBlock(n int, events ...midi.Event) *Block {
	return &Block{
		Channels:   [][]float32{make([]float32, n), make([]float32, n)},
		Events:     events,
		SampleRate: testRate,
	}
}

// clocksIn returns clock events for pulses falling inside [start, start+n),
// with pulses every testPulse samples from first to last inclusive
func clocksIn(start int64, n int, first, last int64) []midi.Event {
	var evs []midi.Event
	for t := first; t < start+int64(n) && t <= last; t += testPulse {
		if t >= start {
			evs = append(evs, midi.ClockAt(int(t-start)))
		}
	}
	return evs
}

func TestStandalonePlayHeadCounts(t *testing.T) {
	var p StandalonePlayHead
	if got := p.Position(128); got.Time != 0 || !got.Playing {
		t.Fatalf("first block = %+v", got)
	}
	if got := p.Position(64); got.Time != 128 {
		t.Fatalf("second block time = %d, want 128", got.Time)
	}
	if got := p.Position(64); got.Time != 192 {
		t.Fatalf("third block time = %d, want 192", got.Time)
	}
}

func TestHostPlayHead(t *testing.T) {
	h := HostPlayHead{Query: func() (Position, bool) { return Position{Time: 99, Playing: true}, true }}
	if got := h.Position(10); got.Time != 99 || !got.Playing {
		t.Fatalf("got %+v", got)
	}
	h = HostPlayHead{Query: func() (Position, bool) { return Position{Time: 99, Playing: true}, false }}
	if got := h.Position(10); got.Playing {
		t.Fatal("failed query reported playing")
	}
	if got := (HostPlayHead{}).Position(10); got.Playing {
		t.Fatal("nil query reported playing")
	}
}

func TestProcessBlockSkipsMonoAndMismatchedChannels(t *testing.T) {
	v := &recordingVoice{}
	e := New(Options{Voice: v, SeedTempo: 120})

	mono := &Block{Channels: [][]float32{make([]float32, 64)}, SampleRate: testRate, Events: []midi.Event{midi.StartAt(0)}}
	e.ProcessBlock(mono)
	ragged := &Block{Channels: [][]float32{make([]float32, 64), make([]float32, 32)}, SampleRate: testRate}
	e.ProcessBlock(ragged)

	if len(v.blocks) != 0 || len(v.resets) != 0 {
		t.Fatalf("voice touched by skipped blocks: %d renders %d resets", len(v.blocks), len(v.resets))
	}
	if got := e.Snapshot().Skipped; got != 2 {
		t.Fatalf("skipped = %d, want 2", got)
	}
	if e.Snapshot().Transport.Running {
		t.Fatal("Start inside a skipped block was processed")
	}
	if len(mono.Events) != 0 {
		t.Fatal("skipped block events not consumed")
	}
}

func TestProcessBlockPreparesOnFormatChange(t *testing.T) {
	v := &recordingVoice{}
	e := New(Options{Voice: v, SeedTempo: 120})

	e.ProcessBlock(newBlock(256))
	e.ProcessBlock(newBlock(256))
	e.ProcessBlock(newBlock(512))
	b := newBlock(512)
	b.SampleRate = 44100
	e.ProcessBlock(b)

	want := [][2]float64{{testRate, 256}, {testRate, 512}, {44100, 512}}
	if len(v.resets) != len(want) {
		t.Fatalf("resets = %v, want %v", v.resets, want)
	}
	for i := range want {
		if v.resets[i] != want[i] {
			t.Errorf("reset %d = %v, want %v", i, v.resets[i], want[i])
		}
	}
	snap := e.Snapshot()
	if snap.SampleRate != 44100 || snap.BlockSize != 512 {
		t.Errorf("snapshot format %d/%d", snap.SampleRate, snap.BlockSize)
	}
}

func TestProcessBlockOneBeatAt120(t *testing.T) {
	v := &recordingVoice{}
	e := New(Options{Voice: v, SeedTempo: 120})

	// Start at sample 0, 24 clocks at 1000, 2000, ... 24000
	var start int64
	for i := 0; i < 60; i++ {
		evs := clocksIn(start, testBlock, testPulse, 24*testPulse)
		if i == 0 {
			evs = append([]midi.Event{midi.StartAt(0)}, evs...)
		}
		b := newBlock(testBlock, evs...)
		e.ProcessBlock(b)
		if len(b.Events) != 0 {
			t.Fatalf("block %d: events not cleared", i)
		}
		start += testBlock
	}

	if len(v.due) != 4 {
		t.Fatalf("got %d steps due, want 4: %+v", len(v.due), v.due)
	}
	for i, s := range v.due {
		if s.Index != i || s.Time != int64(i*6+1)*testPulse {
			t.Errorf("step %d = %+v", i, s)
		}
	}

	snap := e.Snapshot()
	if snap.Transport.Tempo < 119.999 || snap.Transport.Tempo > 120.001 {
		t.Errorf("tempo = %v, want ~120", snap.Transport.Tempo)
	}
	if snap.Step != 3 || snap.StepsDue != 4 {
		t.Errorf("snapshot step %d due %d", snap.Step, snap.StepsDue)
	}
	if snap.Position != 24 {
		t.Errorf("position = %d, want 24", snap.Position)
	}
}

func TestProcessBlockCarriesSubdividedStepsAcrossBlocks(t *testing.T) {
	v := &recordingVoice{}
	e := New(Options{Voice: v, SeedTempo: 120})
	e.SetSpeed(clock.Speed{Num: 12, Den: 1})

	// pulse at 0 starts; pulse at 1000 has interval 1000, so the x12 sub
	// steps land at 1000 and 1500; the block [960, 1440) only holds the first
	e.ProcessBlock(newBlock(testBlock, midi.StartAt(0)))
	e.ProcessBlock(newBlock(testBlock))
	e.ProcessBlock(newBlock(testBlock, midi.ClockAt(40)))

	if got := len(e.Machine().Steps()); got != 2 {
		t.Fatalf("queued %d steps, want 2", got)
	}
	if len(v.due) != 1 || v.due[0].Time != 1000 {
		t.Fatalf("due after block 3 = %+v", v.due)
	}

	e.ProcessBlock(newBlock(testBlock)) // [1440, 1920)
	if len(v.due) != 2 || v.due[1].Time != 1500 {
		t.Fatalf("carried step not rendered: %+v", v.due)
	}

	e.ProcessBlock(newBlock(testBlock)) // [1920, 2400)
	if got := len(e.Machine().Steps()); got != 0 {
		t.Fatalf("stale steps not pruned: %d left", got)
	}
}

func TestProcessBlockForwardsNotesOnly(t *testing.T) {
	v := &recordingVoice{}
	e := New(Options{Voice: v, SeedTempo: 120, MaxEvents: 2})

	e.ProcessBlock(newBlock(testBlock,
		midi.StartAt(0),
		midi.NoteOnAt(1, 0, 60, 100),
		midi.ClockAt(2),
		midi.NoteOnAt(3, 0, 64, 100),
		midi.NoteOnAt(4, 0, 67, 100), // over MaxEvents, dropped
	))
	if v.notes != 2 {
		t.Fatalf("forwarded %d events, want 2", v.notes)
	}
	if !e.Snapshot().Transport.Running {
		t.Fatal("Start not processed")
	}
}

func TestProcessBlockIdleWhenHostStopped(t *testing.T) {
	v := &recordingVoice{}
	playing := false
	e := New(Options{
		Voice:     v,
		SeedTempo: 120,
		PlayHead: HostPlayHead{Query: func() (Position, bool) {
			return Position{Time: 0, Playing: playing}, true
		}},
	})

	e.ProcessBlock(newBlock(testBlock, midi.StartAt(0)))
	if len(v.blocks) != 0 || e.Snapshot().Transport.Running {
		t.Fatal("processed while host stopped")
	}

	playing = true
	e.ProcessBlock(newBlock(testBlock, midi.StartAt(0)))
	if len(v.blocks) != 1 || !e.Snapshot().Transport.Running {
		t.Fatal("not processed while host playing")
	}
}

func TestProcessBlockAppliesSyncToggle(t *testing.T) {
	e := New(Options{Voice: &recordingVoice{}, SeedTempo: 120})
	e.SetSync(false)
	e.ProcessBlock(newBlock(testBlock, midi.StartAt(0), midi.ClockAt(10)))
	if e.Snapshot().Position != 0 {
		t.Fatal("clock processed with sync off")
	}

	e.SetSync(true)
	e.ProcessBlock(newBlock(testBlock, midi.ClockAt(10)))
	if e.Snapshot().Position != 1 {
		t.Fatalf("position = %d, want 1", e.Snapshot().Position)
	}
}

func TestSpeedRoundTrip(t *testing.T) {
	e := New(Options{})
	for _, sp := range clock.Speeds {
		e.SetSpeed(sp)
		if got := e.Speed(); got != sp {
			t.Errorf("Speed() = %v, want %v", got, sp)
		}
	}
	e.SetSpeed(clock.Speed{Num: 0, Den: 1})
	if got := e.Speed(); got != clock.Speeds[len(clock.Speeds)-1] {
		t.Errorf("invalid speed accepted: %v", got)
	}
}

func TestMeterSlot(t *testing.T) {
	v := &recordingVoice{}
	e := New(Options{Voice: v, SeedTempo: 120})
	m := &peakMeter{}

	e.ProcessBlock(newBlock(testBlock, midi.StartAt(0), midi.ClockAt(5)))
	e.Meters().Register(m)
	e.ProcessBlock(newBlock(testBlock))
	if m.calls != 1 {
		t.Fatalf("meter calls = %d, want 1", m.calls)
	}

	e.Meters().Unregister()
	e.ProcessBlock(newBlock(testBlock))
	if m.calls != 1 {
		t.Fatalf("meter called after unregister")
	}
}

func TestMeterSlotNeverBlocksAudio(t *testing.T) {
	var slot MeterSlot
	m := &peakMeter{}
	slot.Register(m)

	slot.mu.Lock()
	done := make(chan bool)
	go func() { done <- slot.process([]float32{1}) }()
	if <-done {
		t.Fatal("process ran while the slot was locked")
	}
	slot.mu.Unlock()

	if !slot.process([]float32{0.5}) || m.peak != 0.5 {
		t.Fatalf("process after unlock: peak %v", m.peak)
	}
}

func TestMeterSlotConcurrentRegister(t *testing.T) {
	var slot MeterSlot
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			slot.Register(&peakMeter{})
			slot.Unregister()
		}
	}()
	go func() {
		defer wg.Done()
		buf := []float32{0.1, 0.2}
		for i := 0; i < 1000; i++ {
			slot.process(buf)
		}
	}()
	wg.Wait()
}

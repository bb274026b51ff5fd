package clock

import (
	"math"
	"testing"
)

func TestAveragerSeedRoundTrip(t *testing.T) {
	for _, seed := range []float64{0, 120, 97.5, -3} {
		a := NewAverager(seed)
		if got := a.Average(); got != seed {
			t.Errorf("seed %v: average = %v, want exactly %v", seed, got, seed)
		}
	}
}

func TestAveragerEvictsOldest(t *testing.T) {
	a := NewAverager(0)
	for i := 0; i < TempoWindow; i++ {
		a.Add(48)
	}
	if got := a.Average(); math.Abs(got-48) > 1e-9 {
		t.Fatalf("average after full window = %v, want 48", got)
	}

	// one more sample replaces exactly one 48
	got := a.AddAndAverage(72)
	want := (48*float64(TempoWindow-1) + 72) / TempoWindow
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("average = %v, want %v", got, want)
	}

	a.Reset(100)
	if got := a.Average(); got != 100 {
		t.Errorf("average after reset = %v, want 100", got)
	}
}

func TestCounterWrapsAtBar(t *testing.T) {
	var c Counter
	for i := 0; i < 250; i++ {
		if int64(c.Position()) != c.Absolute()%PulsesPerBar {
			t.Fatalf("pulse %d: position %d, absolute %d", i, c.Position(), c.Absolute())
		}
		c.Advance()
	}
	if c.Absolute() != 250 || c.Position() != 250%PulsesPerBar {
		t.Fatalf("got position %d absolute %d", c.Position(), c.Absolute())
	}

	c.Reset()
	if c.Position() != 0 || c.Absolute() != 0 {
		t.Errorf("reset: got position %d absolute %d", c.Position(), c.Absolute())
	}
}

// runBar feeds `pulses` pulses with a fixed interval through Generate
func runBar(sp Speed, pulses int, interval int64) []StepEvent {
	var c Counter
	var out []StepEvent
	for i := 0; i < pulses; i++ {
		out = Generate(out, Pulse{
			Position: c.Position(),
			Absolute: c.Absolute(),
			Time:     int64(i) * interval,
			Interval: interval,
		}, sp)
		c.Advance()
	}
	return out
}

func TestGenerateUnity(t *testing.T) {
	steps := runBar(Unity, 2*PulsesPerBar, 1000)
	if len(steps) != 2*StepsPerBar {
		t.Fatalf("got %d steps, want %d", len(steps), 2*StepsPerBar)
	}
	for i, s := range steps {
		if s.Index != i%StepsPerBar {
			t.Errorf("step %d: index %d, want %d", i, s.Index, i%StepsPerBar)
		}
		if s.Time != int64(i*PulsesPerStep)*1000 {
			t.Errorf("step %d: time %d, want %d", i, s.Time, i*PulsesPerStep*1000)
		}
		if s.Duration != 1000 {
			t.Errorf("step %d: duration %v, want 1000", i, s.Duration)
		}
	}
}

func TestGenerateSubdivide(t *testing.T) {
	tests := []struct {
		k          int
		perBar     int
		firstTimes []int64
	}{
		{k: 2, perBar: 32, firstTimes: []int64{0, 3000}},
		{k: 3, perBar: 48, firstTimes: []int64{0, 2000}},
		{k: 6, perBar: 96, firstTimes: []int64{0, 1000}},
		{k: 12, perBar: 192, firstTimes: []int64{0, 500}},
	}

	for _, tt := range tests {
		sp := Speed{Num: tt.k, Den: 1}
		steps := runBar(sp, PulsesPerBar, 1200)
		if len(steps) != tt.perBar {
			t.Errorf("x%d: got %d steps per bar, want %d", tt.k, len(steps), tt.perBar)
			continue
		}
		for i, want := range tt.firstTimes {
			// with 1200 samples per pulse and k subs, virtual pulse spacing is 1200/k
			want = want * 1200 / 1000
			if steps[i].Time != want {
				t.Errorf("x%d: step %d time %d, want %d", tt.k, i, steps[i].Time, want)
			}
		}
		if d := steps[0].Duration; d != 1200/float64(tt.k) {
			t.Errorf("x%d: duration %v, want %v", tt.k, d, 1200/float64(tt.k))
		}
		// indices cycle through the bar k times
		for i, s := range steps {
			if s.Index != i%StepsPerBar {
				t.Errorf("x%d: step %d index %d, want %d", tt.k, i, s.Index, i%StepsPerBar)
				break
			}
		}
	}
}

func TestGenerateSubdivideSixEmitsEveryPulse(t *testing.T) {
	// x6: one virtual step lands on every real pulse
	sp := Speed{Num: 6, Den: 1}
	for pos := 0; pos < PulsesPerBar; pos++ {
		got := Generate(nil, Pulse{Position: pos, Absolute: int64(pos), Time: 0, Interval: 600}, sp)
		if len(got) != 1 {
			t.Fatalf("pos %d: got %d steps, want 1", pos, len(got))
		}
	}
	// x12: two per pulse
	sp = Speed{Num: 12, Den: 1}
	got := Generate(nil, Pulse{Position: 5, Absolute: 5, Time: 6000, Interval: 600}, sp)
	if len(got) != 2 {
		t.Fatalf("x12: got %d steps, want 2", len(got))
	}
	if got[0].Time != 6000 || got[1].Time != 6300 {
		t.Errorf("x12: times %d,%d want 6000,6300", got[0].Time, got[1].Time)
	}
}

func TestGenerateConsolidate(t *testing.T) {
	tests := []struct {
		sp     Speed
		pulses int
		steps  int
		every  int
	}{
		{Speed{1, 2}, 2 * PulsesPerBar, StepsPerBar, 12},
		{Speed{1, 4}, 4 * PulsesPerBar, StepsPerBar, 24},
		{Speed{1, 3}, 3 * PulsesPerBar, StepsPerBar, 18},
	}

	for _, tt := range tests {
		steps := runBar(tt.sp, tt.pulses, 500)
		if len(steps) != tt.steps {
			t.Errorf("%v: got %d steps, want %d", tt.sp, len(steps), tt.steps)
			continue
		}
		inv := float64(tt.sp.Den / tt.sp.Num)
		for i, s := range steps {
			if s.Index != i {
				t.Errorf("%v: step %d index %d", tt.sp, i, s.Index)
			}
			if s.Time != int64(i*tt.every)*500 {
				t.Errorf("%v: step %d time %d, want %d", tt.sp, i, s.Time, i*tt.every*500)
			}
			if s.Duration != 500*inv {
				t.Errorf("%v: step %d duration %v, want %v", tt.sp, i, s.Duration, 500*inv)
			}
		}
	}
}

func TestGenerateConsolidateUsesAbsoluteCount(t *testing.T) {
	// at 1/2 the bar spans 192 pulses; position in the real bar is ignored
	sp := Speed{1, 2}
	got := Generate(nil, Pulse{Position: 0, Absolute: 96, Time: 0, Interval: 10}, sp)
	if len(got) != 1 || got[0].Index != 8 {
		t.Fatalf("got %+v, want one step with index 8", got)
	}
	got = Generate(nil, Pulse{Position: 6, Absolute: 6, Time: 0, Interval: 10}, sp)
	if len(got) != 0 {
		t.Fatalf("got %+v, want no step", got)
	}
}

func TestGenerateDeterministic(t *testing.T) {
	for _, sp := range Speeds {
		a := runBar(sp, 3*PulsesPerBar, 777)
		b := runBar(sp, 3*PulsesPerBar, 777)
		if len(a) != len(b) {
			t.Fatalf("%v: lengths differ %d vs %d", sp, len(a), len(b))
		}
		for i := range a {
			if a[i] != b[i] {
				t.Fatalf("%v: step %d differs: %+v vs %+v", sp, i, a[i], b[i])
			}
		}
	}
}

func TestTempoSample(t *testing.T) {
	// 1000 samples per pulse at 48 kHz is 0.5 s per beat
	if got := TempoSample(1000, 48000); math.Abs(got-120) > 1e-9 {
		t.Errorf("TempoSample(1000, 48000) = %v, want 120", got)
	}
	// zero and negative intervals clamp to 1 ms per beat
	for _, iv := range []int64{0, -5} {
		if got := TempoSample(iv, 48000); got != 60000 {
			t.Errorf("TempoSample(%d) = %v, want 60000", iv, got)
		}
	}
}

func TestParseSpeed(t *testing.T) {
	tests := []struct {
		in      string
		want    Speed
		wantErr bool
	}{
		{"1", Unity, false},
		{"x4", Speed{4, 1}, false},
		{"1/2", Speed{1, 2}, false},
		{" 3 / 2 ", Speed{3, 2}, false},
		{"0", Speed{}, true},
		{"1/0", Speed{}, true},
		{"fast", Speed{}, true},
	}
	for _, tt := range tests {
		got, err := ParseSpeed(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseSpeed(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseSpeed(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestStepQueuePruneAndOverflow(t *testing.T) {
	q := NewStepQueue(4)
	for i := 0; i < 6; i++ {
		q.Push(StepEvent{Index: i, Time: int64(i * 100)})
	}
	if q.Len() != 4 || q.Dropped() != 2 {
		t.Fatalf("len %d dropped %d, want 4 and 2", q.Len(), q.Dropped())
	}

	q.PruneBefore(200)
	steps := q.Steps()
	if len(steps) != 2 || steps[0].Time != 200 || steps[1].Time != 300 {
		t.Fatalf("after prune got %+v", steps)
	}

	q.PruneBefore(10_000)
	if q.Len() != 0 {
		t.Fatalf("len %d after pruning everything", q.Len())
	}
}

func TestStepQueuePushPulse(t *testing.T) {
	q := NewStepQueue(3)
	// x12 at a step boundary emits 2 steps
	n := q.PushPulse(Pulse{Position: 0, Time: 0, Interval: 1200}, Speed{12, 1})
	if n != 2 || q.Len() != 2 {
		t.Fatalf("first pulse: n %d len %d", n, q.Len())
	}
	n = q.PushPulse(Pulse{Position: 1, Time: 1200, Interval: 1200}, Speed{12, 1})
	if n != 1 || q.Len() != 3 || q.Dropped() != 1 {
		t.Fatalf("second pulse: n %d len %d dropped %d", n, q.Len(), q.Dropped())
	}
	steps := q.Steps()
	if steps[2].Time != 1200 {
		t.Errorf("kept step time %d, want 1200", steps[2].Time)
	}
}

package clock

import (
	"fmt"
	"strconv"
	"strings"
)

// StepEvent is one quantized sequencer tick
type StepEvent struct {
	Index    int     // slot in the speed-adjusted 1/16 grid
	Time     int64   // absolute sample time
	Duration float64 // samples until the next equivalent step
}

// Pulse describes one received clock pulse
type Pulse struct {
	Position int   // counter position in bar before advancing
	Absolute int64 // counter absolute count before advancing
	Time     int64 // absolute sample time of this pulse
	Interval int64 // samples since the previous pulse
}

// Speed is the step grid multiplier as a ratio Num/Den.
// Values above 1 subdivide each pulse, values below 1 consolidate pulses.
type Speed struct {
	Num int
	Den int
}

// Unity is the native 1/16 grid
var Unity = Speed{Num: 1, Den: 1}

// Speeds lists the multipliers offered by the UI, slowest grid first
var Speeds = []Speed{
	{1, 16}, {1, 12}, {1, 8}, {1, 6}, {1, 4}, {1, 3}, {1, 2}, {2, 3},
	{1, 1},
	{3, 2}, {2, 1}, {3, 1}, {4, 1}, {6, 1}, {8, 1}, {12, 1}, {16, 1},
}

// ParseSpeed accepts "n", "n/d" or "x<n>"
func ParseSpeed(s string) (Speed, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "x")
	num, den := s, "1"
	if i := strings.IndexByte(s, '/'); i >= 0 {
		num, den = s[:i], s[i+1:]
	}
	n, err := strconv.Atoi(strings.TrimSpace(num))
	if err != nil {
		return Speed{}, fmt.Errorf("parse speed %q: %w", s, err)
	}
	d, err := strconv.Atoi(strings.TrimSpace(den))
	if err != nil {
		return Speed{}, fmt.Errorf("parse speed %q: %w", s, err)
	}
	sp := Speed{Num: n, Den: d}
	if !sp.Valid() {
		return Speed{}, fmt.Errorf("parse speed %q: must be positive", s)
	}
	return sp, nil
}

// Valid reports whether both terms are positive
func (sp Speed) Valid() bool {
	return sp.Num > 0 && sp.Den > 0
}

// Cmp compares the ratio with 1 exactly: -1 below, 0 unity, 1 above
func (sp Speed) Cmp() int {
	switch {
	case sp.Num > sp.Den:
		return 1
	case sp.Num < sp.Den:
		return -1
	}
	return 0
}

// Float returns the ratio as float64
func (sp Speed) Float() float64 {
	return float64(sp.Num) / float64(sp.Den)
}

func (sp Speed) String() string {
	if sp.Den == 1 {
		return fmt.Sprintf("x%d", sp.Num)
	}
	return fmt.Sprintf("%d/%d", sp.Num, sp.Den)
}

// Generate appends the steps produced by one pulse to dst.
// An invalid speed falls back to Unity.
func Generate(dst []StepEvent, p Pulse, sp Speed) []StepEvent {
	if !sp.Valid() {
		sp = Unity
	}

	switch sp.Cmp() {
	case 0:
		if p.Position%PulsesPerStep == 0 {
			dst = append(dst, StepEvent{
				Index:    p.Position / PulsesPerStep,
				Time:     p.Time,
				Duration: float64(p.Interval),
			})
		}

	case 1:
		// virtual sub-pulses between this pulse and the next one
		subs := sp.Num / sp.Den
		subInterval := float64(p.Interval) * float64(sp.Den) / float64(sp.Num)
		base := p.Position * sp.Num / sp.Den
		for i := 0; i < subs; i++ {
			vid := (base + i) % PulsesPerBar
			if vid%PulsesPerStep != 0 {
				continue
			}
			dst = append(dst, StepEvent{
				Index:    vid / PulsesPerStep,
				Time:     p.Time + int64(i)*p.Interval*int64(sp.Den)/int64(sp.Num),
				Duration: subInterval,
			})
		}

	case -1:
		// several real pulses per step
		factor := int64(PulsesPerStep * sp.Den / sp.Num)
		span := int64(PulsesPerBar * sp.Den / sp.Num)
		semi := p.Absolute % span
		if semi%factor == 0 {
			dst = append(dst, StepEvent{
				Index:    int(semi / factor),
				Time:     p.Time,
				Duration: float64(p.Interval) * float64(sp.Den) / float64(sp.Num),
			})
		}
	}

	return dst
}

// TempoSample converts a pulse interval into an instantaneous BPM value.
// Non-positive beat lengths are clamped to 1 ms.
func TempoSample(interval int64, sampleRate float64) float64 {
	samplesPerBeat := interval * PulsesPerBeat
	msPerBeat := float64(samplesPerBeat) / sampleRate * 1000
	if !(msPerBeat > 0) {
		msPerBeat = 1
	}
	return 60.0 * 1000 / msPerBeat
}

package tui

import (
	"math"
	"sync/atomic"

	"go-arpsync/engine"
)

// PeakMeter holds the loudest sample since the last Take
type PeakMeter struct {
	peak atomic.Uint32 // float32 bits
}

var _ engine.Meter = (*PeakMeter)(nil)

// Process runs on the audio goroutine
func (p *PeakMeter) Process(samples []float32) {
	var top float32
	for _, s := range samples {
		if s < 0 {
			s = -s
		}
		if s > top {
			top = s
		}
	}
	for {
		old := p.peak.Load()
		if math.Float32frombits(old) >= top {
			return
		}
		if p.peak.CompareAndSwap(old, math.Float32bits(top)) {
			return
		}
	}
}

// Take returns the peak and resets it
func (p *PeakMeter) Take() float64 {
	return float64(math.Float32frombits(p.peak.Swap(0)))
}

package engine

import (
	"fmt"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/speaker"

	"go-arpsync/midi"
)

// Streamer drives the engine from beep's speaker: every Stream call is one
// audio block. Live MIDI is pulled from an InputQueue at block start.
type Streamer struct {
	engine     *Engine
	input      *midi.InputQueue
	sampleRate float64

	block    Block
	channels [2][]float32
	events   []midi.Event
}

// NewStreamer creates a stereo streamer. input may be nil.
func NewStreamer(e *Engine, input *midi.InputQueue, sampleRate beep.SampleRate, maxEvents int) *Streamer {
	if maxEvents <= 0 {
		maxEvents = DefaultMaxEvents
	}
	s := &Streamer{
		engine:     e,
		input:      input,
		sampleRate: float64(sampleRate),
		events:     make([]midi.Event, 0, maxEvents),
	}
	s.block.Channels = make([][]float32, 2)
	return s
}

// Stream implements beep.Streamer
func (s *Streamer) Stream(samples [][2]float64) (n int, ok bool) {
	n = len(samples)
	if n == 0 {
		return 0, true
	}
	for i := range s.channels {
		if cap(s.channels[i]) < n {
			s.channels[i] = make([]float32, n)
		}
		s.block.Channels[i] = s.channels[i][:n]
	}

	s.events = s.events[:0]
	if s.input != nil {
		s.events = s.input.Drain(s.events, time.Now(), n, s.sampleRate)
	}
	s.block.Events = s.events
	s.block.SampleRate = s.sampleRate

	s.engine.ProcessBlock(&s.block)

	left, right := s.block.Channels[0], s.block.Channels[1]
	for i := range samples {
		samples[i][0] = float64(left[i])
		samples[i][1] = float64(right[i])
	}
	return n, true
}

// Err implements beep.Streamer
func (s *Streamer) Err() error {
	return nil
}

// Speaker plays a Streamer on the default audio device
type Speaker struct {
	sampleRate beep.SampleRate
	bufferSize int
}

// NewSpeaker opens the default audio device. bufferSize is in frames and
// becomes the engine's block size.
func NewSpeaker(sampleRate, bufferSize int) (*Speaker, error) {
	sr := beep.SampleRate(sampleRate)
	if err := speaker.Init(sr, bufferSize); err != nil {
		return nil, fmt.Errorf("init speaker at %d Hz: %w", sampleRate, err)
	}
	return &Speaker{sampleRate: sr, bufferSize: bufferSize}, nil
}

// SampleRate returns the device rate
func (sp *Speaker) SampleRate() beep.SampleRate {
	return sp.sampleRate
}

// BufferDuration returns the latency of one block
func (sp *Speaker) BufferDuration() time.Duration {
	return sp.sampleRate.D(sp.bufferSize)
}

// Play starts pulling blocks from s
func (sp *Speaker) Play(s *Streamer) {
	speaker.Play(s)
}

// Stop removes every streamer from the device
func (sp *Speaker) Stop() {
	speaker.Clear()
}

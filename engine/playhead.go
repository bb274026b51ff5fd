package engine

// Position is what the host reports about the timeline for one block
type Position struct {
	Time    int64 // absolute sample of the block's first sample
	Playing bool
	BPM     float64 // host tempo, 0 if unknown
}

// PlayHead answers where the current block sits on the host timeline.
// Called once per block from the audio callback.
type PlayHead interface {
	Position(numSamples int) Position
}

// StandalonePlayHead is the playhead when no host timeline exists: it counts
// rendered samples and always reports playing in 4/4
type StandalonePlayHead struct {
	next int64
}

func (s *StandalonePlayHead) Position(numSamples int) Position {
	p := Position{Time: s.next, Playing: true}
	s.next += int64(numSamples)
	return p
}

// HostPlayHead adapts a plugin host's transport query. Query returns false
// when the host has no position for this block.
type HostPlayHead struct {
	Query func() (Position, bool)
}

func (h HostPlayHead) Position(numSamples int) Position {
	if h.Query == nil {
		return Position{}
	}
	p, ok := h.Query()
	if !ok {
		return Position{}
	}
	return p
}

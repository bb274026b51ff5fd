package clock

// MIDI clock grid (24 PPQN, 4/4)
const (
	PulsesPerStep = 6
	PulsesPerBeat = 24
	PulsesPerBar  = 96
	StepsPerBar   = PulsesPerBar / PulsesPerStep
)

// Counter tracks the pulse position inside the bar and since the last reset.
// Position() == Absolute() % PulsesPerBar always holds.
type Counter struct {
	position int
	absolute int64
}

// Advance moves the counter one pulse forward
func (c *Counter) Advance() {
	c.absolute++
	c.position++
	if c.position == PulsesPerBar {
		c.position = 0
	}
}

// Reset zeroes the counter (transport Start)
func (c *Counter) Reset() {
	c.position = 0
	c.absolute = 0
}

// Position returns pulses since the last bar boundary
func (c Counter) Position() int {
	return c.position
}

// Absolute returns pulses since the last reset
func (c Counter) Absolute() int64 {
	return c.absolute
}

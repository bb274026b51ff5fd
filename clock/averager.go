package clock

// TempoWindow is how many tempo samples the averager keeps (one beat of clocks)
const TempoWindow = PulsesPerBeat

// Averager keeps a running mean over the last TempoWindow samples
type Averager struct {
	buf  [TempoWindow]float64
	pos  int
	sum  float64
	seed float64
	fed  bool // a sample arrived since the last Reset
}

// NewAverager creates an averager with every slot pre-filled with seed
func NewAverager(seed float64) *Averager {
	a := &Averager{}
	a.Reset(seed)
	return a
}

// Add inserts a sample, evicting the oldest one
func (a *Averager) Add(v float64) {
	a.sum -= a.buf[a.pos]
	a.buf[a.pos] = v
	a.sum += v
	a.fed = true

	a.pos++
	if a.pos == TempoWindow {
		a.pos = 0
	}
}

// AddAndAverage adds a sample and returns the new mean
func (a *Averager) AddAndAverage(v float64) float64 {
	a.Add(v)
	return a.Average()
}

// Average returns the current mean. Until a sample arrives it is the seed.
func (a *Averager) Average() float64 {
	if !a.fed {
		return a.seed
	}
	return a.sum / TempoWindow
}

// Reset refills every slot with seed
func (a *Averager) Reset(seed float64) {
	a.sum = 0
	a.pos = 0
	a.seed = seed
	a.fed = false
	for i := range a.buf {
		a.buf[i] = seed
		a.sum += seed
	}
}

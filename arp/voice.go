package arp

import (
	gomidi "gitlab.com/gomidi/midi/v2"

	"go-arpsync/clock"
	"go-arpsync/engine"
)

// Mode is the arpeggio direction
type Mode int

const (
	ModeUp Mode = iota
	ModeDown
	ModeUpDown
)

func (m Mode) String() string {
	switch m {
	case ModeDown:
		return "down"
	case ModeUpDown:
		return "updown"
	}
	return "up"
}

// ParseMode maps a config string to a Mode (unknown values mean up)
func ParseMode(s string) Mode {
	switch s {
	case "down":
		return ModeDown
	case "updown", "up-down":
		return ModeUpDown
	}
	return ModeUp
}

const (
	allNotesOff = 123
	accentBoost = 20
	clickMs     = 4
)

// Options configures a Voice
type Options struct {
	Channel uint8   // 0-based MIDI channel for output
	Mode    Mode    // note order through the held pool
	Gate    float64 // note length as a fraction of the step duration
	Click   float32 // audible tick level per step, 0 disables
}

// Voice is the arpeggiator: it plays held notes on each due step and sends
// them through an Outbox. Implements engine.Voice; every method runs on the
// audio goroutine.
type Voice struct {
	out  *Outbox
	opts Options

	held  [128]uint8 // velocity per key, 0 = not held
	pool  [128]uint8 // held keys ascending
	nPool int

	cursor  int
	dir     int
	enabled bool

	sounding  int // key currently on, -1 for none
	noteOffAt int64

	sampleRate float64
	clickLen   int
	clickPos   int
	clickAmp   float32
}

var _ engine.Voice = (*Voice)(nil)

// NewVoice creates an enabled voice posting to out
func NewVoice(out *Outbox, opts Options) *Voice {
	if opts.Gate <= 0 || opts.Gate > 1 {
		opts.Gate = 0.5
	}
	if opts.Channel > 15 {
		opts.Channel = 0
	}
	return &Voice{
		out:      out,
		opts:     opts,
		cursor:   -1,
		dir:      1,
		enabled:  true,
		sounding: -1,
	}
}

// Reset prepares for a new sample rate or block size
func (v *Voice) Reset(sampleRate float64, blockSize int) {
	v.sampleRate = sampleRate
	v.clickLen = int(sampleRate * clickMs / 1000)
	v.clickPos = v.clickLen
}

// Restart re-enables the arp from the first note of the pool
func (v *Voice) Restart(sampleOffset int) {
	v.enabled = true
	v.cursor = -1
	v.dir = 1
}

// Stop silences the arp and its output channel
func (v *Voice) Stop() {
	v.enabled = false
	v.release()
	v.out.Post(gomidi.ControlChange(v.opts.Channel, allNotesOff, 0))
}

// Enabled reports whether steps currently trigger notes
func (v *Voice) Enabled() bool {
	return v.enabled
}

// Held returns the held keys in ascending order (copy)
func (v *Voice) Held() []uint8 {
	out := make([]uint8, v.nPool)
	copy(out, v.pool[:v.nPool])
	return out
}

// Render handles note input and the steps due in this block
func (v *Voice) Render(out [][]float32, info engine.BlockInfo) {
	for _, ev := range info.Events {
		v.handleInput(ev.Msg)
	}

	n := len(out[0])
	end := info.BlockStart + int64(n)
	v.renderClick(out, 0)

	for _, s := range info.Steps {
		if s.Time >= end {
			break
		}
		if s.Time < info.BlockStart {
			continue
		}
		if v.sounding >= 0 && v.noteOffAt <= s.Time {
			v.release()
		}
		if !v.enabled {
			continue
		}
		v.trigger(s)
		if v.opts.Click > 0 {
			v.clickPos = 0
			v.clickAmp = v.opts.Click
			if s.Index%4 == 0 {
				v.clickAmp *= 1.5
			}
			v.renderClick(out, int(s.Time-info.BlockStart))
		}
	}

	if v.sounding >= 0 && (v.noteOffAt < end || v.nPool == 0) {
		v.release()
	}
}

func (v *Voice) trigger(s clock.StepEvent) {
	if v.nPool == 0 {
		return
	}
	v.release()

	key := v.next()
	vel := int(v.held[key])
	if s.Index%4 == 0 {
		vel += accentBoost
	}
	if vel > 127 {
		vel = 127
	}

	v.out.Post(gomidi.NoteOn(v.opts.Channel, key, uint8(vel)))
	v.sounding = int(key)
	v.noteOffAt = s.Time + int64(s.Duration*v.opts.Gate)
}

// next advances the cursor through the pool according to the mode
func (v *Voice) next() uint8 {
	n := v.nPool
	switch v.opts.Mode {
	case ModeDown:
		if v.cursor <= 0 || v.cursor >= n {
			v.cursor = n - 1
		} else {
			v.cursor--
		}
	case ModeUpDown:
		if n == 1 {
			v.cursor = 0
			break
		}
		if v.cursor < 0 || v.cursor >= n {
			v.cursor, v.dir = 0, 1
			break
		}
		if v.cursor+v.dir < 0 || v.cursor+v.dir >= n {
			v.dir = -v.dir
		}
		v.cursor += v.dir
	default:
		v.cursor++
		if v.cursor >= n {
			v.cursor = 0
		}
	}
	return v.pool[v.cursor]
}

func (v *Voice) release() {
	if v.sounding < 0 {
		return
	}
	v.out.Post(gomidi.NoteOff(v.opts.Channel, uint8(v.sounding)))
	v.sounding = -1
}

func (v *Voice) handleInput(msg gomidi.Message) {
	var ch, key, vel uint8
	switch {
	case msg.GetNoteOn(&ch, &key, &vel) && vel > 0:
		v.held[key] = vel
	case msg.GetNoteOff(&ch, &key, &vel), msg.GetNoteOn(&ch, &key, &vel):
		v.held[key] = 0
	default:
		return
	}
	v.rebuildPool()
}

func (v *Voice) rebuildPool() {
	v.nPool = 0
	for k, vel := range v.held {
		if vel > 0 {
			v.pool[v.nPool] = uint8(k)
			v.nPool++
		}
	}
	if v.cursor >= v.nPool {
		v.cursor = v.nPool - 1
	}
}

// renderClick writes the remaining part of a decaying tick from offset on
func (v *Voice) renderClick(out [][]float32, offset int) {
	n := len(out[0])
	for i := offset; i < n && v.clickPos < v.clickLen; i++ {
		s := v.clickAmp * float32(v.clickLen-v.clickPos) / float32(v.clickLen)
		for _, ch := range out {
			ch[i] += s
		}
		v.clickPos++
	}
}

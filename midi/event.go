package midi

import (
	gomidi "gitlab.com/gomidi/midi/v2"
)

// MIDI realtime status bytes the transport cares about
const (
	StatusClock    uint8 = 0xF8
	StatusStart    uint8 = 0xFA
	StatusContinue uint8 = 0xFB
	StatusStop     uint8 = 0xFC
)

// Kind classifies a message for the transport
type Kind int

const (
	KindOther Kind = iota // notes, CCs, anything the transport ignores
	KindClock
	KindStart
	KindStop
	KindContinue
)

func (k Kind) String() string {
	switch k {
	case KindClock:
		return "clock"
	case KindStart:
		return "start"
	case KindStop:
		return "stop"
	case KindContinue:
		return "continue"
	}
	return "other"
}

// Event is a MIDI message placed inside an audio block
type Event struct {
	Offset int // sample offset from block start
	Msg    gomidi.Message
}

// Kind returns the transport classification of the event
func (e Event) Kind() Kind {
	return Classify(e.Msg)
}

// Classify maps a raw message to its transport kind
func Classify(msg gomidi.Message) Kind {
	if len(msg) == 0 {
		return KindOther
	}
	switch msg[0] {
	case StatusClock:
		return KindClock
	case StatusStart:
		return KindStart
	case StatusStop:
		return KindStop
	case StatusContinue:
		return KindContinue
	}
	return KindOther
}

// IsTransport reports whether the message is a clock or transport message
func IsTransport(msg gomidi.Message) bool {
	return Classify(msg) != KindOther
}

// Realtime message constructors, mostly for tests and the clock sender

func ClockAt(offset int) Event    { return Event{Offset: offset, Msg: gomidi.Message{StatusClock}} }
func StartAt(offset int) Event    { return Event{Offset: offset, Msg: gomidi.Message{StatusStart}} }
func StopAt(offset int) Event     { return Event{Offset: offset, Msg: gomidi.Message{StatusStop}} }
func ContinueAt(offset int) Event { return Event{Offset: offset, Msg: gomidi.Message{StatusContinue}} }

// NoteOnAt builds a note-on event (channel is 0-based)
func NoteOnAt(offset int, channel, key, velocity uint8) Event {
	return Event{Offset: offset, Msg: gomidi.NoteOn(channel, key, velocity)}
}

// NoteOffAt builds a note-off event (channel is 0-based)
func NoteOffAt(offset int, channel, key uint8) Event {
	return Event{Offset: offset, Msg: gomidi.NoteOff(channel, key)}
}

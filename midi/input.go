package midi

import (
	"fmt"
	"time"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
)

// Input listens on one MIDI input port and feeds clock, transport and note
// messages into an InputQueue
type Input struct {
	id       string
	inPort   drivers.In
	queue    *InputQueue
	stopFunc func()
}

// NewInput opens inPort and starts forwarding into queue
func NewInput(id string, inPort drivers.In, queue *InputQueue) (*Input, error) {
	in := &Input{
		id:     id,
		inPort: inPort,
		queue:  queue,
	}

	if inPort != nil {
		// UseTimeCode keeps the driver from filtering timing clock messages
		stop, err := gomidi.ListenTo(inPort, in.receive, gomidi.UseTimeCode())
		if err != nil {
			return nil, fmt.Errorf("open input %s: %w", id, err)
		}
		in.stopFunc = stop
	}

	return in, nil
}

func (in *Input) receive(msg gomidi.Message, timestampms int32) {
	now := time.Now()
	if !wanted(msg) {
		return
	}
	// drivers may reuse the buffer after the callback returns
	cp := make(gomidi.Message, len(msg))
	copy(cp, msg)
	in.queue.Push(cp, now)
}

// wanted filters what the engine consumes: realtime transport plus notes
func wanted(msg gomidi.Message) bool {
	if IsTransport(msg) {
		return true
	}
	var ch, key, vel uint8
	return msg.GetNoteOn(&ch, &key, &vel) || msg.GetNoteOff(&ch, &key, &vel)
}

func (in *Input) ID() string {
	return in.id
}

func (in *Input) Close() error {
	if in.stopFunc != nil {
		in.stopFunc()
	}
	return nil
}

package arp

import (
	"context"
	"sync/atomic"

	"go-arpsync/debug"

	gomidi "gitlab.com/gomidi/midi/v2"
)

// Outbox moves MIDI from the audio goroutine to the output port.
// Post never blocks; Run does the actual (possibly slow) sending.
type Outbox struct {
	ch      chan gomidi.Message
	dropped atomic.Int64
	sent    atomic.Int64
}

// NewOutbox creates an outbox holding up to size pending messages
func NewOutbox(size int) *Outbox {
	return &Outbox{ch: make(chan gomidi.Message, size)}
}

// Post queues msg, dropping it when the outbox is full
func (o *Outbox) Post(msg gomidi.Message) bool {
	select {
	case o.ch <- msg:
		return true
	default:
		o.dropped.Add(1)
		return false
	}
}

// Run sends queued messages until ctx ends (blocking - run in goroutine)
func (o *Outbox) Run(ctx context.Context, send func(gomidi.Message) error) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-o.ch:
			if err := send(msg); err != nil {
				debug.LogEvery(100, "arp", "send %s: %v", msg, err)
				continue
			}
			o.sent.Add(1)
		}
	}
}

// Pending returns the number of queued messages
func (o *Outbox) Pending() int {
	return len(o.ch)
}

func (o *Outbox) Dropped() int64 { return o.dropped.Load() }
func (o *Outbox) Sent() int64    { return o.sent.Load() }

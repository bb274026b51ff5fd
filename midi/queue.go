package midi

import (
	"sync/atomic"
	"time"

	gomidi "gitlab.com/gomidi/midi/v2"
)

type stamped struct {
	msg gomidi.Message
	at  time.Time
}

// InputQueue carries live MIDI from listener goroutines to the audio callback.
// Push never blocks; when the queue is full the message is dropped.
type InputQueue struct {
	ch      chan stamped
	dropped atomic.Int64
}

// NewInputQueue creates a queue with room for size messages
func NewInputQueue(size int) *InputQueue {
	return &InputQueue{ch: make(chan stamped, size)}
}

// Push enqueues a message received at time at
func (q *InputQueue) Push(msg gomidi.Message, at time.Time) bool {
	select {
	case q.ch <- stamped{msg: msg, at: at}:
		return true
	default:
		q.dropped.Add(1)
		return false
	}
}

// Drain moves queued messages into dst as block events, stopping once dst is
// full. Arrival times are mapped onto the block that ends at now: a message
// that arrived one block length ago lands at offset 0.
func (q *InputQueue) Drain(dst []Event, now time.Time, numSamples int, sampleRate float64) []Event {
	if numSamples <= 0 || sampleRate <= 0 {
		return dst
	}
	blockDur := time.Duration(float64(numSamples) / sampleRate * float64(time.Second))
	start := now.Add(-blockDur)
	for len(dst) < cap(dst) {
		select {
		case s := <-q.ch:
			offset := int(s.at.Sub(start).Seconds() * sampleRate)
			if offset < 0 {
				offset = 0
			} else if offset >= numSamples {
				offset = numSamples - 1
			}
			// keep arrival order monotonic inside the block
			if n := len(dst); n > 0 && offset < dst[n-1].Offset {
				offset = dst[n-1].Offset
			}
			dst = append(dst, Event{Offset: offset, Msg: s.msg})
		default:
			return dst
		}
	}
	return dst
}

// Dropped returns how many messages were discarded because the queue was full
func (q *InputQueue) Dropped() int64 {
	return q.dropped.Load()
}

package engine

import "sync"

// Meter consumes rendered audio for display (peak meters and the like)
type Meter interface {
	Process(samples []float32)
}

// MeterSlot holds at most one attached Meter. Register and Unregister are the
// only mutators. The audio callback never waits on the lock: if the slot is
// busy the block is simply not metered.
type MeterSlot struct {
	mu    sync.Mutex
	meter Meter
}

// Register attaches m, replacing any previous meter
func (s *MeterSlot) Register(m Meter) {
	s.mu.Lock()
	s.meter = m
	s.mu.Unlock()
}

// Unregister detaches the current meter
func (s *MeterSlot) Unregister() {
	s.mu.Lock()
	s.meter = nil
	s.mu.Unlock()
}

// process feeds samples to the attached meter, if any
func (s *MeterSlot) process(samples []float32) bool {
	if !s.mu.TryLock() {
		return false
	}
	defer s.mu.Unlock()
	if s.meter == nil {
		return false
	}
	s.meter.Process(samples)
	return true
}

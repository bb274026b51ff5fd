package clock

// StepQueue holds the steps of the current and upcoming blocks.
// Capacity is fixed at construction; Push never allocates.
type StepQueue struct {
	steps   []StepEvent
	dropped int
}

// NewStepQueue creates a queue holding at most capacity steps
func NewStepQueue(capacity int) *StepQueue {
	if capacity < 1 {
		capacity = 1
	}
	return &StepQueue{steps: make([]StepEvent, 0, capacity)}
}

// Push appends a step, dropping it if the queue is full.
// Returns false when the step was dropped.
func (q *StepQueue) Push(s StepEvent) bool {
	if len(q.steps) == cap(q.steps) {
		q.dropped++
		return false
	}
	q.steps = append(q.steps, s)
	return true
}

// PushPulse runs the step generator for one pulse into the queue
func (q *StepQueue) PushPulse(p Pulse, sp Speed) int {
	// generate into the free tail, then account for overflow
	free := q.steps[len(q.steps):cap(q.steps)]
	out := Generate(free[:0], p, sp)
	n := len(out)
	if n > len(free) {
		// Generate grew past capacity and allocated; keep what fits
		copy(free, out)
		q.dropped += n - len(free)
		n = len(free)
	}
	q.steps = q.steps[:len(q.steps)+n]
	return n
}

// PruneBefore removes leading steps stamped before t
func (q *StepQueue) PruneBefore(t int64) {
	i := 0
	for i < len(q.steps) && q.steps[i].Time < t {
		i++
	}
	if i == 0 {
		return
	}
	n := copy(q.steps, q.steps[i:])
	q.steps = q.steps[:n]
}

// Clear drops every queued step
func (q *StepQueue) Clear() {
	q.steps = q.steps[:0]
}

// Steps returns the queued steps in order. The slice is only valid until
// the next mutation.
func (q *StepQueue) Steps() []StepEvent {
	return q.steps
}

// Len returns the number of queued steps
func (q *StepQueue) Len() int {
	return len(q.steps)
}

// Dropped returns how many steps were rejected because the queue was full
func (q *StepQueue) Dropped() int {
	return q.dropped
}

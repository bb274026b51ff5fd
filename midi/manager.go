package midi

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go-arpsync/debug"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
)

// PortNone as a port match disables that role
const PortNone = "none"

// ErrNoOutput is returned by Send while no output port is connected
var ErrNoOutput = errors.New("midi: no output port connected")

// DeviceEvent is emitted when the sync input or the arp output connects/disconnects
type DeviceEvent struct {
	Type DeviceEventType
	Role PortRole
	ID   string
}

type DeviceEventType int

const (
	DeviceConnected DeviceEventType = iota
	DeviceDisconnected
)

// PortRole says what a port is used for
type PortRole int

const (
	RoleInput PortRole = iota
	RoleOutput
)

// DeviceManager handles hot-plug detection of the clock input and arp output
type DeviceManager struct {
	inMatch  string
	outMatch string
	queue    *InputQueue

	mu       sync.RWMutex
	input    *Input
	outID    string
	sender   func(gomidi.Message) error
	events   chan DeviceEvent
	pollRate time.Duration
}

// NewDeviceManager creates a manager. inMatch and outMatch are matched
// case-insensitively against port names. An empty match takes the first
// port available and "none" disables that role.
func NewDeviceManager(inMatch, outMatch string, queue *InputQueue) *DeviceManager {
	return &DeviceManager{
		inMatch:  strings.ToLower(inMatch),
		outMatch: strings.ToLower(outMatch),
		queue:    queue,
		events:   make(chan DeviceEvent, 16),
		pollRate: time.Second,
	}
}

// Events returns a channel of device connect/disconnect events
func (dm *DeviceManager) Events() <-chan DeviceEvent {
	return dm.events
}

// Ports returns the IDs of the connected input and output ("" if none)
func (dm *DeviceManager) Ports() (in, out string) {
	dm.mu.RLock()
	defer dm.mu.RUnlock()
	if dm.input != nil {
		in = dm.input.ID()
	}
	return in, dm.outID
}

// Send writes a message to the connected output port
func (dm *DeviceManager) Send(msg gomidi.Message) error {
	dm.mu.RLock()
	sender := dm.sender
	dm.mu.RUnlock()
	if sender == nil {
		return ErrNoOutput
	}
	return sender(msg)
}

// Run starts the polling loop (blocking - run in goroutine)
func (dm *DeviceManager) Run(ctx context.Context) {
	ticker := time.NewTicker(dm.pollRate)
	defer ticker.Stop()

	dm.scan()

	for {
		select {
		case <-ctx.Done():
			dm.closeAll()
			close(dm.events)
			return
		case <-ticker.C:
			dm.scan()
		}
	}
}

func (dm *DeviceManager) scan() {
	// Get current MIDI ports with timeout (CoreMIDI can hang)
	type portsResult struct {
		inPorts  []drivers.In
		outPorts []drivers.Out
	}

	ch := make(chan portsResult, 1)
	go func() {
		ch <- portsResult{inPorts: gomidi.GetInPorts(), outPorts: gomidi.GetOutPorts()}
	}()

	var result portsResult
	select {
	case result = <-ch:
	case <-time.After(3 * time.Second):
		debug.Log("midi", "port scan timed out")
		return
	}

	dm.scanInput(result.inPorts)
	dm.scanOutput(result.outPorts)
}

func (dm *DeviceManager) scanInput(ports []drivers.In) {
	if dm.inMatch == PortNone {
		return
	}

	names := make([]string, len(ports))
	for i, p := range ports {
		names[i] = p.String()
	}
	var found drivers.In
	if i := pickPort(names, dm.inMatch); i >= 0 {
		found = ports[i]
	}

	dm.mu.RLock()
	current := dm.input
	dm.mu.RUnlock()

	switch {
	case current != nil && (found == nil || found.String() != current.ID()):
		dm.mu.Lock()
		dm.input = nil
		dm.mu.Unlock()
		current.Close()
		debug.Log("midi", "input disconnected: %s", current.ID())
		dm.emit(DeviceEvent{Type: DeviceDisconnected, Role: RoleInput, ID: current.ID()})
		if found == nil {
			return
		}
		fallthrough
	case current == nil && found != nil:
		in, err := NewInput(found.String(), found, dm.queue)
		if err != nil {
			debug.Log("midi", "open input %s: %v", found.String(), err)
			return
		}
		dm.mu.Lock()
		dm.input = in
		dm.mu.Unlock()
		debug.Log("midi", "input connected: %s", in.ID())
		dm.emit(DeviceEvent{Type: DeviceConnected, Role: RoleInput, ID: in.ID()})
	}
}

func (dm *DeviceManager) scanOutput(ports []drivers.Out) {
	if dm.outMatch == PortNone {
		return
	}

	names := make([]string, len(ports))
	for i, p := range ports {
		names[i] = p.String()
	}
	var found drivers.Out
	if i := pickPort(names, dm.outMatch); i >= 0 {
		found = ports[i]
	}

	dm.mu.RLock()
	currentID := dm.outID
	dm.mu.RUnlock()

	if found != nil && found.String() == currentID {
		return
	}

	if currentID != "" {
		dm.mu.Lock()
		dm.outID = ""
		dm.sender = nil
		dm.mu.Unlock()
		debug.Log("midi", "output disconnected: %s", currentID)
		dm.emit(DeviceEvent{Type: DeviceDisconnected, Role: RoleOutput, ID: currentID})
	}

	if found == nil {
		return
	}

	sender, err := gomidi.SendTo(found)
	if err != nil {
		debug.Log("midi", "open output %s: %v", found.String(), err)
		return
	}
	dm.mu.Lock()
	dm.outID = found.String()
	dm.sender = sender
	dm.mu.Unlock()
	debug.Log("midi", "output connected: %s", found.String())
	dm.emit(DeviceEvent{Type: DeviceConnected, Role: RoleOutput, ID: found.String()})
}

func (dm *DeviceManager) emit(ev DeviceEvent) {
	select {
	case dm.events <- ev:
	default:
	}
}

func (dm *DeviceManager) closeAll() {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	if dm.input != nil {
		dm.input.Close()
		dm.input = nil
	}
	dm.sender = nil
	dm.outID = ""
}

// pickPort returns the index of the port to open, or -1. match is already
// lowercased: empty picks the first port, PortNone picks nothing.
func pickPort(names []string, match string) int {
	if match == PortNone {
		return -1
	}
	for i, name := range names {
		if matches(name, match) {
			return i
		}
	}
	return -1
}

func matches(name, match string) bool {
	return strings.Contains(strings.ToLower(name), match)
}

package tui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"go-arpsync/clock"
	"go-arpsync/engine"
	"go-arpsync/midi"
	"go-arpsync/theme"
	"go-arpsync/widgets"
)

const refreshRate = 50 * time.Millisecond

// Engine is the part of the engine the monitor reads and controls
type Engine interface {
	Snapshot() engine.Snapshot
	SetSync(on bool)
	SetSpeed(sp clock.Speed)
}

type Model struct {
	Engine  Engine
	Devices <-chan midi.DeviceEvent
	Theme   *theme.Theme
	Meter   *PeakMeter

	snap     engine.Snapshot
	inPort   string
	outPort  string
	level    float64
	quitting bool
}

type TickMsg time.Time

type DeviceEventMsg midi.DeviceEvent

// devicesClosedMsg is sent once the device manager has shut down
type devicesClosedMsg struct{}

func NewModel(e Engine, devices <-chan midi.DeviceEvent, th *theme.Theme, meter *PeakMeter) Model {
	return Model{
		Engine:  e,
		Devices: devices,
		Theme:   th,
		Meter:   meter,
		snap:    e.Snapshot(),
	}
}

func tick() tea.Cmd {
	return tea.Tick(refreshRate, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

func ListenForDevices(events <-chan midi.DeviceEvent) tea.Cmd {
	return func() tea.Msg {
		event, ok := <-events
		if !ok {
			return devicesClosedMsg{}
		}
		return DeviceEventMsg(event)
	}
}

func (m Model) Init() tea.Cmd {
	if m.Devices == nil {
		return tick()
	}
	return tea.Batch(tick(), ListenForDevices(m.Devices))
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit

		case "s":
			m.Engine.SetSync(!m.snap.SyncEnabled)
			m.snap = m.Engine.Snapshot()

		case "[", "-":
			m.Engine.SetSpeed(StepSpeed(m.snap.Speed, -1))
			m.snap = m.Engine.Snapshot()

		case "]", "+", "=":
			m.Engine.SetSpeed(StepSpeed(m.snap.Speed, 1))
			m.snap = m.Engine.Snapshot()
		}

	case TickMsg:
		m.snap = m.Engine.Snapshot()
		if m.Meter != nil {
			m.level = m.Meter.Take()
		}
		return m, tick()

	case DeviceEventMsg:
		event := midi.DeviceEvent(msg)
		name := event.ID
		if event.Type == midi.DeviceDisconnected {
			name = ""
		}
		if event.Role == midi.RoleInput {
			m.inPort = name
		} else {
			m.outPort = name
		}
		return m, ListenForDevices(m.Devices)

	case devicesClosedMsg:
		m.Devices = nil
	}

	return m, nil
}

// StepSpeed moves dir places through clock.Speeds from sp, clamped at both ends.
// A speed not in the list snaps to Unity.
func StepSpeed(sp clock.Speed, dir int) clock.Speed {
	idx := -1
	for i, s := range clock.Speeds {
		if s == sp {
			idx = i
			break
		}
	}
	if idx < 0 {
		return clock.Unity
	}
	idx += dir
	if idx < 0 {
		idx = 0
	}
	if idx >= len(clock.Speeds) {
		idx = len(clock.Speeds) - 1
	}
	return clock.Speeds[idx]
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	s := m.snap
	headerStyle := lipgloss.NewStyle().Foreground(m.Theme.Accent())
	dimStyle := lipgloss.NewStyle().Foreground(m.Theme.Muted())

	playState := "STOP"
	if s.Transport.Running {
		playState = "PLAY"
	}

	header := headerStyle.Render(fmt.Sprintf("go-arpsync  %s  %6.2fbpm  %-5s", playState, s.Transport.Tempo, s.Speed))
	badge := widgets.RenderSyncBadge(m.Theme, s.SyncEnabled, s.Transport.Synced)
	steps := widgets.RenderStepRow(m.Theme, s.Step, s.Transport.Running)
	meter := widgets.RenderMeter(m.Theme, m.level, 31)

	ports := dimStyle.Render(fmt.Sprintf("in: %s   out: %s", orNone(m.inPort), orNone(m.outPort)))
	stats := dimStyle.Render(fmt.Sprintf("pulse %02d/%d  steps %d  dropped %d  missed %d  %d Hz/%d",
		s.Position, clock.PulsesPerBar, s.StepsDue, s.DroppedSteps, s.Transport.Missed, s.SampleRate, s.BlockSize))
	help := dimStyle.Render("s:sync  [/]:speed  q:quit")

	var out strings.Builder
	out.WriteString("\n")
	out.WriteString(header + "  " + badge)
	out.WriteString("\n\n")
	out.WriteString(steps)
	out.WriteString("\n")
	out.WriteString(meter)
	out.WriteString("\n\n")
	out.WriteString(ports)
	out.WriteString("\n")
	out.WriteString(stats)
	out.WriteString("\n\n")
	out.WriteString(help)

	return out.String()
}

func orNone(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

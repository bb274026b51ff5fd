package widgets

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"go-arpsync/clock"
	"go-arpsync/theme"
)

// RenderStepRow renders one bar of 1/16 steps with the playhead on step.
// step < 0 means no step has played yet.
func RenderStepRow(th *theme.Theme, step int, running bool) string {
	muted := lipgloss.NewStyle().Foreground(th.Muted())
	beat := lipgloss.NewStyle().Foreground(th.FG())
	head := lipgloss.NewStyle().Foreground(th.Active()).Bold(true)

	var out strings.Builder
	for i := 0; i < clock.StepsPerBar; i++ {
		if i > 0 {
			out.WriteString(" ")
		}
		switch {
		case !running:
			out.WriteString(muted.Render(string(th.Symbols.StepIdle)))
		case i == step:
			out.WriteString(head.Render(string(th.Symbols.StepPlayhead)))
		case i%4 == 0:
			out.WriteString(beat.Render(string(th.Symbols.StepBeat)))
		default:
			out.WriteString(muted.Render(string(th.Symbols.StepEmpty)))
		}
	}
	return out.String()
}

// RenderMeter renders a level bar of width cells for level 0-1
func RenderMeter(th *theme.Theme, level float64, width int) string {
	if level < 0 {
		level = 0
	}
	if level > 1 {
		level = 1
	}
	filled := int(level*float64(width) + 0.5)

	var out strings.Builder
	for i := 0; i < width; i++ {
		if i >= filled {
			out.WriteString(" ")
			continue
		}
		style := lipgloss.NewStyle().Foreground(th.Color(float64(i) / float64(width)))
		out.WriteString(style.Render(string(th.Symbols.Meter)))
	}
	return out.String()
}

// RenderSyncBadge shows whether an external clock is being followed
func RenderSyncBadge(th *theme.Theme, enabled, synced bool) string {
	switch {
	case !enabled:
		return lipgloss.NewStyle().Foreground(th.Muted()).Render(fmt.Sprintf("%c off", th.Symbols.Unsynced))
	case synced:
		return lipgloss.NewStyle().Foreground(th.Success()).Render(fmt.Sprintf("%c sync", th.Symbols.Synced))
	}
	return lipgloss.NewStyle().Foreground(th.Warning()).Render(fmt.Sprintf("%c wait", th.Symbols.Unsynced))
}

// RenderKeyHelp formats key bindings in a friendly way
func RenderKeyHelp(sections []KeySection) string {
	var lines []string
	for _, sec := range sections {
		if sec.Title != "" {
			lines = append(lines, sec.Title)
		}
		for _, k := range sec.Keys {
			lines = append(lines, fmt.Sprintf("  %-12s %s", k.Key, k.Desc))
		}
	}
	return strings.Join(lines, "\n")
}

// KeySection groups related key bindings
type KeySection struct {
	Title string
	Keys  []KeyBinding
}

// KeyBinding is a single key and its description
type KeyBinding struct {
	Key  string
	Desc string
}

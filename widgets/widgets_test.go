package widgets

import (
	"strings"
	"testing"

	"go-arpsync/theme"
)

func TestRenderStepRow(t *testing.T) {
	th := theme.New(nil)

	row := RenderStepRow(th, 5, true)
	if n := strings.Count(row, "●"); n != 1 {
		t.Fatalf("playhead drawn %d times", n)
	}
	if n := strings.Count(row, "○"); n != 4 {
		t.Fatalf("beat markers = %d, want 4", n)
	}

	// playhead on a beat replaces the marker
	row = RenderStepRow(th, 4, true)
	if n := strings.Count(row, "○"); n != 3 {
		t.Fatalf("beat markers = %d, want 3", n)
	}

	row = RenderStepRow(th, 5, false)
	if strings.Contains(row, "●") || strings.Count(row, "-") != 16 {
		t.Fatalf("stopped row = %q", row)
	}
}

func TestRenderMeter(t *testing.T) {
	th := theme.New(nil)
	tests := []struct {
		level float64
		want  int
	}{
		{-1, 0}, {0, 0}, {0.5, 5}, {1, 10}, {3, 10},
	}
	for _, tt := range tests {
		if got := strings.Count(RenderMeter(th, tt.level, 10), "█"); got != tt.want {
			t.Errorf("level %v: %d cells, want %d", tt.level, got, tt.want)
		}
	}
}

func TestRenderSyncBadge(t *testing.T) {
	th := theme.New(nil)
	for _, tt := range []struct {
		enabled, synced bool
		want            string
	}{
		{false, true, "off"},
		{true, true, "sync"},
		{true, false, "wait"},
	} {
		if got := RenderSyncBadge(th, tt.enabled, tt.synced); !strings.Contains(got, tt.want) {
			t.Errorf("badge(%v, %v) = %q", tt.enabled, tt.synced, got)
		}
	}
}

func TestRenderKeyHelp(t *testing.T) {
	out := RenderKeyHelp([]KeySection{{Title: "Sync", Keys: []KeyBinding{{"s", "toggle"}}}})
	if !strings.HasPrefix(out, "Sync\n") || !strings.Contains(out, "toggle") {
		t.Fatalf("help = %q", out)
	}
}

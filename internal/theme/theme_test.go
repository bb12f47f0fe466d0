package theme

import (
	"image/color"
	"strings"
	"testing"
)

func TestBoxStyle_HasBorder(t *testing.T) {
	rendered := BoxStyle.Render("test")
	// Rounded border uses ╭ at top-left
	if !strings.ContainsRune(rendered, '╭') {
		t.Error("expected BoxStyle to use rounded border")
	}
}

func TestStatusColor(t *testing.T) {
	tests := []struct {
		status string
		want   string
	}{
		{"finalized", "success"},
		{"OK", "success"},
		{"invalid", "error"},
		{"cycle", "error"},
		{"wired", "warning"},
		{"no changes", "warning"},
		{"something-random", "muted"},
	}

	colors := map[string]color.Color{"success": Success, "error": Error, "warning": Warning, "muted": Muted}
	for _, tt := range tests {
		if got := StatusColor(tt.status); got != colors[tt.want] {
			t.Errorf("StatusColor(%q) = %v, want %s", tt.status, got, tt.want)
		}
	}
}

func TestRenderStatus_ContainsBullet(t *testing.T) {
	r := RenderStatus("finalized")
	if !strings.ContainsRune(r, '●') {
		t.Error("RenderStatus should contain bullet ●")
	}
	if !strings.Contains(r, "finalized") {
		t.Error("RenderStatus should contain the status text")
	}
}

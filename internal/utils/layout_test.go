package utils

import (
	"strings"
	"testing"

	"charm.land/lipgloss/v2"
)

func TestDetailBuilder_Row(t *testing.T) {
	db := NewDetailBuilder(16, lipgloss.NewStyle())
	db.Row("web/Public/HTTP", "finalized")

	got := db.String()
	if !strings.Contains(got, "web/Public/HTTP") {
		t.Error("Row should contain label")
	}
	if !strings.Contains(got, "finalized") {
		t.Error("Row should contain value")
	}
}

func TestDetailBuilder_Section(t *testing.T) {
	db := NewDetailBuilder(16, lipgloss.NewStyle())
	db.Section("Listeners")

	got := db.String()
	if !strings.Contains(got, "── Listeners") {
		t.Error("Section should contain heading")
	}
	if !strings.Contains(got, "───") {
		t.Error("Section should contain padding dashes")
	}
}

func TestDetailBuilder_Item(t *testing.T) {
	db := NewDetailBuilder(16, lipgloss.NewStyle())
	db.Item("✗", "web/LB/HTTP: listener has no default action")

	if got := db.String(); got != "  ✗ web/LB/HTTP: listener has no default action\n" {
		t.Errorf("Item = %q", got)
	}
}

func TestDetailBuilder_Report(t *testing.T) {
	db := NewDetailBuilder(16, lipgloss.NewStyle())
	db.Section("Listeners")
	db.Row("web/Public/HTTP", "HTTP:80, 2 rules")
	db.Blank()
	db.Section("Scopes")
	db.Row("web", "depends on [app]")

	got := db.String()
	if !strings.Contains(got, "\n\n") {
		t.Error("Blank should insert empty line")
	}
	if strings.Index(got, "Listeners") > strings.Index(got, "Scopes") {
		t.Error("sections should keep insertion order")
	}
	for _, want := range []string{"HTTP:80, 2 rules", "depends on [app]"} {
		if !strings.Contains(got, want) {
			t.Errorf("report should contain %q", want)
		}
	}
}

func TestDetailBuilder_WriteString(t *testing.T) {
	db := NewDetailBuilder(16, lipgloss.NewStyle())
	db.WriteString("raw\n")
	if db.String() != "raw\n" {
		t.Errorf("WriteString = %q", db.String())
	}
}

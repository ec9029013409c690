package main

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"nestbox.dev/internal/engine"
	"nestbox.dev/internal/script"
)

const rowScenario = `DEFINE BOX #room SIZE (4,1)
DEFINE BOX #crate SOLID
DEFINE BOX #barrel SOLID
PLACE #crate AT (0,0) IN #room
PLACE #barrel AT (2,0) IN #room
`

func newRowModel(t *testing.T) model {
	t.Helper()
	cmds, err := script.Parse("row.box", []byte(rowScenario))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	m, err := newModel("row.box", cmds)
	if err != nil {
		t.Fatalf("model: %v", err)
	}
	return m
}

func press(t *testing.T, m model, key tea.KeyMsg) (model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(key)
	nm, ok := next.(model)
	if !ok {
		t.Fatalf("update returned %T", next)
	}
	return nm, cmd
}

func placementX(t *testing.T, m model, name string) int {
	t.Helper()
	id, ok := m.w.Lookup(name)
	if !ok {
		t.Fatalf("lookup %s", name)
	}
	pl, ok := m.w.PlacementOf(id)
	if !ok {
		t.Fatalf("%s not placed", name)
	}
	return pl.Cell.X
}

func TestModel_PushSelectReset(t *testing.T) {
	m := newRowModel(t)
	if len(m.boxes) != 2 {
		t.Fatalf("selectable boxes = %d, want 2", len(m.boxes))
	}
	if name := m.w.Name(m.boxes[m.sel]); name != "crate" {
		t.Fatalf("initial selection = %s, want crate", name)
	}
	initial := m.w.Digest()

	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyRight})
	if x := placementX(t, m, "crate"); x != 1 {
		t.Fatalf("crate x = %d after push east, want 1", x)
	}
	if !m.rec.ok || m.rec.last.Outcome != engine.Moved.String() {
		t.Fatalf("expected recorded MOVED, got %+v", m.rec.last)
	}

	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyTab})
	if name := m.w.Name(m.boxes[m.sel]); name != "barrel" {
		t.Fatalf("selection after tab = %s, want barrel", name)
	}

	// Barrel shoves the crate back to the west edge.
	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyLeft})
	if x := placementX(t, m, "barrel"); x != 1 {
		t.Fatalf("barrel x = %d, want 1", x)
	}
	if x := placementX(t, m, "crate"); x != 0 {
		t.Fatalf("crate x = %d, want 0", x)
	}

	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("r")})
	if got := m.w.Digest(); got != initial {
		t.Fatalf("digest after reset = %s, want %s", got, initial)
	}
	if m.rec.ok {
		t.Fatalf("reset should clear the recorded push")
	}

	_, cmd := press(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if cmd == nil {
		t.Fatalf("q should quit")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatalf("q should produce a quit message")
	}
}

func TestModel_ViewShowsOutcome(t *testing.T) {
	m := newRowModel(t)
	view := m.View()
	if !strings.Contains(view, "#crate") {
		t.Fatalf("view missing selection:\n%s", view)
	}
	if !strings.Contains(view, "no pushes yet") {
		t.Fatalf("view missing idle status:\n%s", view)
	}

	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyLeft})
	view = m.View()
	if !strings.Contains(view, "BLOCKED") || !strings.Contains(view, "boundary") {
		t.Fatalf("view missing blocked status:\n%s", view)
	}
}

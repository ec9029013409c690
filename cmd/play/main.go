package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"nestbox.dev/internal/engine"
	"nestbox.dev/internal/script"
	"nestbox.dev/internal/textgrid"
)

func main() {
	flag.Parse()
	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: play scenario.box")
		os.Exit(2)
	}
	path := flag.Arg(0)

	cmds, err := script.ParseFile(path)
	if err != nil {
		var se *script.Error
		if errors.As(err, &se) {
			fmt.Fprint(os.Stderr, se.Render())
		} else {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}

	m, err := newModel(filepath.Base(path), cmds)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if _, err := tea.NewProgram(m).Run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// traceRecorder keeps the latest push record. The model is copied on
// every update, so the recorder lives behind a pointer.
type traceRecorder struct {
	last engine.PushTrace
	ok   bool
}

func (r *traceRecorder) RecordPush(t engine.PushTrace) {
	r.last = t
	r.ok = true
}

type model struct {
	title string
	cmds  []script.Command

	w     *engine.World
	rec   *traceRecorder
	boxes []engine.EntityID
	sel   int
	err   error

	titleStyle   lipgloss.Style
	selectStyle  lipgloss.Style
	movedStyle   lipgloss.Style
	blockedStyle lipgloss.Style
	helpStyle    lipgloss.Style
}

func newModel(title string, cmds []script.Command) (model, error) {
	m := model{
		title:        title,
		cmds:         cmds,
		titleStyle:   lipgloss.NewStyle().Bold(true),
		selectStyle:  lipgloss.NewStyle().Foreground(lipgloss.Color("57")),
		movedStyle:   lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		blockedStyle: lipgloss.NewStyle().Foreground(lipgloss.Color("203")),
		helpStyle:    lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
	}
	if err := m.rebuild(); err != nil {
		return model{}, err
	}
	return m, nil
}

// rebuild runs the scenario's setup statements into a fresh world.
// Scripted pushes are skipped; the player drives those.
func (m *model) rebuild() error {
	w, err := script.Setup(m.cmds)
	if err != nil {
		return err
	}
	rec := &traceRecorder{}
	w.SetTraceSink(rec)
	m.w, m.rec = w, rec
	m.boxes = selectable(w)
	if len(m.boxes) == 0 {
		return fmt.Errorf("%s: no solid box to push", m.title)
	}
	if m.sel >= len(m.boxes) {
		m.sel = 0
	}
	return nil
}

// selectable lists the placed solid boxes, in definition order. Walls
// are pinned and aliases resolve to a box already in the list.
func selectable(w *engine.World) []engine.EntityID {
	var out []engine.EntityID
	for _, id := range w.Entities() {
		if w.KindOf(id) != engine.KindBox || !w.IsSolid(id) {
			continue
		}
		if _, ok := w.PlacementOf(id); !ok {
			continue
		}
		out = append(out, id)
	}
	return out
}

func (m model) Init() tea.Cmd { return nil }

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch key.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "tab":
		m.sel = (m.sel + 1) % len(m.boxes)
	case "shift+tab":
		m.sel = (m.sel - 1 + len(m.boxes)) % len(m.boxes)
	case "r":
		if err := m.rebuild(); err != nil {
			m.err = err
			return m, tea.Quit
		}
	case "up", "k":
		m.push(engine.North)
	case "down", "j":
		m.push(engine.South)
	case "left", "h":
		m.push(engine.West)
	case "right", "l":
		m.push(engine.East)
	}
	return m, nil
}

func (m *model) push(dir engine.Direction) {
	if _, err := m.w.Push(m.boxes[m.sel], dir); err != nil {
		m.err = err
	}
}

func (m model) View() string {
	var b strings.Builder
	b.WriteString(m.titleStyle.Render("nestbox " + m.title))
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("pushing %s %s\n\n",
		m.selectStyle.Render("#"+m.w.Name(m.boxes[m.sel])),
		m.helpStyle.Render(fmt.Sprintf("(%d/%d)", m.sel+1, len(m.boxes)))))
	b.WriteString(textgrid.Render(m.w, textgrid.Options{}))
	b.WriteString("\n")
	b.WriteString(m.statusLine())
	b.WriteString("\n")
	b.WriteString(m.helpStyle.Render("arrows/hjkl push · tab cycle · r reset · q quit"))
	b.WriteString("\n")
	return b.String()
}

func (m model) statusLine() string {
	if m.err != nil {
		return m.blockedStyle.Render(m.err.Error())
	}
	if !m.rec.ok {
		return m.helpStyle.Render("no pushes yet")
	}
	t := m.rec.last
	line := fmt.Sprintf("%d #%s %s: %s", t.Seq, t.Entity, t.Direction, t.Outcome)
	if t.Reason != "" {
		line += " (" + t.Reason + ")"
	}
	if t.Wraps > 0 {
		line += fmt.Sprintf(" wraps=%d", t.Wraps)
	}
	if t.Outcome == engine.Moved.String() {
		return m.movedStyle.Render(line)
	}
	return m.blockedStyle.Render(line)
}

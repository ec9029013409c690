package textgrid

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"nestbox.dev/internal/engine"
)

const (
	containerGlyphs = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	boxGlyphs       = "abcdefghijklmnopqrstuvwxyz"
	wallGlyph       = '#'
	overflowGlyph   = '?'
)

// Options control glyph choice. The zero value uses a Unicode middle dot
// for empty cells; ASCII swaps it for '.' so log output stays 7-bit.
type Options struct {
	ASCII bool
}

// Render draws every container side by side, in definition order: a
// header line with the container's glyph and name, then its bordered
// interior with north up. Containers take '0'-'9' then 'A'-'Z', plain
// solid boxes 'a'-'z', walls '#'. An alias shows its canonical's glyph.
func Render(w *engine.World, opts Options) string {
	g := buildGlyphs(w, opts)
	var panels [][]string
	for _, c := range w.Containers() {
		panels = append(panels, panel(w, g, c))
	}
	return joinPanels(panels)
}

type glyphs struct {
	byID  map[engine.EntityID]rune
	empty rune
}

func (g glyphs) of(id engine.EntityID) rune {
	if r, ok := g.byID[id]; ok {
		return r
	}
	return overflowGlyph
}

func buildGlyphs(w *engine.World, opts Options) glyphs {
	g := glyphs{byID: make(map[engine.EntityID]rune), empty: '·'}
	if opts.ASCII {
		g.empty = '.'
	}
	containers, boxes := 0, 0
	var aliases []engine.EntityID
	for _, id := range w.Entities() {
		switch w.KindOf(id) {
		case engine.KindWall:
			g.byID[id] = wallGlyph
		case engine.KindAlias:
			// Resolved after every base glyph is assigned; targets may
			// be defined later than the alias.
			aliases = append(aliases, id)
		case engine.KindBox:
			if _, ok := w.GridSize(id); ok {
				if containers < len(containerGlyphs) {
					g.byID[id] = rune(containerGlyphs[containers])
				}
				containers++
			} else {
				if boxes < len(boxGlyphs) {
					g.byID[id] = rune(boxGlyphs[boxes])
				}
				boxes++
			}
		}
	}
	for _, id := range aliases {
		canon, err := w.Resolve(w.Name(id))
		if err != nil {
			continue
		}
		if r, ok := g.byID[canon]; ok {
			g.byID[id] = r
		}
	}
	return g
}

// panel renders one container as its line stack. Row order is y
// descending so north points up.
func panel(w *engine.World, g glyphs, c engine.EntityID) []string {
	sz, ok := w.GridSize(c)
	if !ok {
		return nil
	}
	border := "+" + strings.Repeat("-", sz.W) + "+"
	lines := []string{
		fmt.Sprintf("%c #%s", g.of(c), w.Name(c)),
		border,
	}
	for y := sz.H - 1; y >= 0; y-- {
		var row strings.Builder
		row.WriteByte('|')
		for x := 0; x < sz.W; x++ {
			if id, ok := w.OccupantAt(c, engine.Point{X: x, Y: y}); ok {
				row.WriteRune(g.of(id))
			} else {
				row.WriteRune(g.empty)
			}
		}
		row.WriteByte('|')
		lines = append(lines, row.String())
	}
	return append(lines, border)
}

// joinPanels zips panel line stacks into one block, two spaces apart,
// padding short panels with blank space. Trailing spaces are trimmed so
// rendered output diffs cleanly.
func joinPanels(panels [][]string) string {
	if len(panels) == 0 {
		return ""
	}
	height := 0
	widths := make([]int, len(panels))
	for i, p := range panels {
		if len(p) > height {
			height = len(p)
		}
		for _, ln := range p {
			if n := utf8.RuneCountInString(ln); n > widths[i] {
				widths[i] = n
			}
		}
	}
	var b strings.Builder
	for row := 0; row < height; row++ {
		var line strings.Builder
		for i, p := range panels {
			cell := ""
			if row < len(p) {
				cell = p[row]
			}
			if i > 0 {
				line.WriteString("  ")
			}
			line.WriteString(cell)
			line.WriteString(strings.Repeat(" ", widths[i]-utf8.RuneCountInString(cell)))
		}
		b.WriteString(strings.TrimRight(line.String(), " "))
		b.WriteByte('\n')
	}
	return b.String()
}

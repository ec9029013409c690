package puzzles

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"sort"

	"nestbox.dev/internal/engine"
	"nestbox.dev/internal/protocol"
	"nestbox.dev/internal/script"
)

var ErrUnknownPuzzle = errors.New("unknown puzzle")

// Catalog holds every loadable puzzle with its parsed script and the
// script's SHA-256.
type Catalog struct {
	order []string
	byID  map[string]*puzzle
}

type puzzle struct {
	spec      Spec
	cmds      []script.Command
	scriptSHA string
}

// Open reads and parses every script in cfg and trial-builds each board,
// so a broken script fails at startup instead of at JOIN.
func Open(cfg Config) (*Catalog, error) {
	c := &Catalog{byID: make(map[string]*puzzle, len(cfg.Puzzles))}
	for _, sp := range cfg.Puzzles {
		raw, err := os.ReadFile(sp.Path)
		if err != nil {
			return nil, fmt.Errorf("puzzle %s: %w", sp.ID, err)
		}
		cmds, err := script.Parse(sp.Path, raw)
		if err != nil {
			return nil, fmt.Errorf("puzzle %s: %w", sp.ID, err)
		}
		if _, err := script.Setup(cmds); err != nil {
			return nil, fmt.Errorf("puzzle %s: %w", sp.ID, err)
		}
		c.order = append(c.order, sp.ID)
		c.byID[sp.ID] = &puzzle{spec: sp, cmds: cmds, scriptSHA: sha256Hex(raw)}
	}
	return c, nil
}

// Build constructs a fresh world from the puzzle's DEFINE and PLACE
// statements. PUSH and EXPECT lines in a script are the checker's
// business; a joined session starts at the initial board.
func (c *Catalog) Build(id string) (*engine.World, error) {
	p, ok := c.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownPuzzle, id)
	}
	return script.Setup(p.cmds)
}

// Script returns the puzzle's parsed statements, pushes included.
func (c *Catalog) Script(id string) ([]script.Command, bool) {
	p, ok := c.byID[id]
	if !ok {
		return nil, false
	}
	return p.cmds, true
}

func (c *Catalog) ScriptSHA(id string) (string, bool) {
	p, ok := c.byID[id]
	if !ok {
		return "", false
	}
	return p.scriptSHA, true
}

func (c *Catalog) Spec(id string) (Spec, bool) {
	p, ok := c.byID[id]
	if !ok {
		return Spec{}, false
	}
	return p.spec, true
}

// Specs lists every puzzle in manifest order.
func (c *Catalog) Specs() []Spec {
	out := make([]Spec, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.byID[id].spec)
	}
	return out
}

// Manifest renders the WELCOME puzzle list, sorted by id.
func (c *Catalog) Manifest() []protocol.PuzzleRef {
	out := make([]protocol.PuzzleRef, 0, len(c.order))
	for _, id := range c.order {
		sp := c.byID[id].spec
		out = append(out, protocol.PuzzleRef{ID: sp.ID, Name: sp.Name, Description: sp.Description})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

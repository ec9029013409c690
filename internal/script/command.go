// Package script implements the textual scenario language the engine's
// fixtures, checker, and front-ends share: DEFINE/PLACE build a world,
// PUSH drives the resolver, EXPECT asserts final placements. Statements
// are line-oriented; // starts a comment. Parsing and execution are
// separate so front-ends can replay, step, or re-run a parsed scenario.
package script

import (
	"fmt"
	"strings"

	"nestbox.dev/internal/engine"
)

// Span locates a statement in its source file, with enough context to
// render a caret diagnostic.
type Span struct {
	File  string
	Line  int // 1-based
	Col   int // 1-based byte column of the statement's first token
	Width int // byte width of the marked range
	Src   string
}

func (s Span) span() Span { return s }

// Command is one parsed scenario statement.
type Command interface {
	fmt.Stringer
	span() Span
}

// Expectation is the optional MOVED/BLOCKED assertion on a PUSH.
type Expectation uint8

const (
	ExpectNone Expectation = iota
	ExpectMoved
	ExpectBlocked
)

// DefineBox declares a box, optionally a container, optionally solid.
type DefineBox struct {
	Span
	Name  string
	Size  *engine.Size
	Solid bool
}

func (c *DefineBox) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "DEFINE BOX #%s", c.Name)
	if c.Size != nil {
		fmt.Fprintf(&b, " SIZE (%d,%d)", c.Size.W, c.Size.H)
	}
	if c.Solid {
		b.WriteString(" SOLID")
	}
	return b.String()
}

type DefineWall struct {
	Span
	Name string
}

func (c *DefineWall) String() string { return fmt.Sprintf("DEFINE WALL #%s", c.Name) }

type DefineAlias struct {
	Span
	Name   string
	Target string
}

func (c *DefineAlias) String() string {
	return fmt.Sprintf("DEFINE ALIAS #%s REF #%s", c.Name, c.Target)
}

// Place puts a named entity into a cell of a named container.
type Place struct {
	Span
	Name      string
	At        engine.Point
	Container string
}

func (c *Place) String() string {
	return fmt.Sprintf("PLACE #%s AT (%d,%d) IN #%s", c.Name, c.At.X, c.At.Y, c.Container)
}

// Push pushes a named entity one step, optionally asserting the outcome.
type Push struct {
	Span
	Name   string
	Dir    engine.Direction
	Expect Expectation
}

func (c *Push) String() string {
	s := fmt.Sprintf("PUSH #%s %s", c.Name, strings.ToUpper(c.Dir.String()))
	switch c.Expect {
	case ExpectMoved:
		s += " MOVED"
	case ExpectBlocked:
		s += " BLOCKED"
	}
	return s
}

// Expect asserts an entity's final placement.
type Expect struct {
	Span
	Name      string
	At        engine.Point
	Container string
}

func (c *Expect) String() string {
	return fmt.Sprintf("EXPECT #%s AT (%d,%d) IN #%s", c.Name, c.At.X, c.At.Y, c.Container)
}

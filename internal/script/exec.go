package script

import (
	"fmt"
	"strings"

	"nestbox.dev/internal/engine"
)

// Runner executes a parsed scenario one statement at a time against its
// own world. Front-ends that need per-statement progress (the checker's
// verbose mode, interactive play, replay) drive Step directly; Run covers
// the whole-script case.
type Runner struct {
	World  *engine.World
	Pushes int // PUSH statements executed so far

	cmds []Command
	next int
}

func NewRunner(cmds []Command) *Runner {
	return &Runner{World: engine.New(), cmds: cmds}
}

func (r *Runner) Done() bool { return r.next >= len(r.cmds) }

func (r *Runner) Len() int { return len(r.cmds) }

// Step executes the next statement. The statement is returned even when
// execution fails, so callers can report what was being attempted.
func (r *Runner) Step() (Command, error) {
	cmd := r.cmds[r.next]
	r.next++
	if _, ok := cmd.(*Push); ok {
		r.Pushes++
	}
	return cmd, apply(r.World, cmd)
}

// Run executes a whole scenario from scratch. The world is returned even
// on error, in whatever state the failing statement left it; setup errors
// abort construction, and a failed push leaves state untouched by the
// engine's own atomicity.
func Run(cmds []Command) (*engine.World, error) {
	r := NewRunner(cmds)
	for !r.Done() {
		if _, err := r.Step(); err != nil {
			return r.World, err
		}
	}
	return r.World, nil
}

// Setup executes only the DEFINE and PLACE statements, for front-ends
// that drive pushes themselves.
func Setup(cmds []Command) (*engine.World, error) {
	w := engine.New()
	for _, cmd := range cmds {
		switch cmd.(type) {
		case *DefineBox, *DefineWall, *DefineAlias, *Place:
			if err := apply(w, cmd); err != nil {
				return w, err
			}
		}
	}
	return w, nil
}

func apply(w *engine.World, c Command) error {
	switch cmd := c.(type) {
	case *DefineBox:
		_, err := w.DefineBox(cmd.Name, engine.BoxOptions{Size: cmd.Size, Solid: cmd.Solid})
		return spanErr(cmd.Span, err)
	case *DefineWall:
		_, err := w.DefineWall(cmd.Name)
		return spanErr(cmd.Span, err)
	case *DefineAlias:
		_, err := w.DefineAlias(cmd.Name, cmd.Target)
		return spanErr(cmd.Span, err)
	case *Place:
		id, err := lookup(w, cmd.Span, cmd.Name)
		if err != nil {
			return err
		}
		container, err := lookup(w, cmd.Span, cmd.Container)
		if err != nil {
			return err
		}
		return spanErr(cmd.Span, w.Place(container, id, cmd.At))
	case *Push:
		id, err := lookup(w, cmd.Span, cmd.Name)
		if err != nil {
			return err
		}
		out, err := w.Push(id, cmd.Dir)
		if err != nil {
			return spanErr(cmd.Span, err)
		}
		if cmd.Expect == ExpectMoved && out != engine.Moved {
			return spanErrf(cmd.Span, ErrAssertion, "push #%s %s: got %s, want MOVED", cmd.Name, cmd.Dir, out)
		}
		if cmd.Expect == ExpectBlocked && out != engine.Blocked {
			return spanErrf(cmd.Span, ErrAssertion, "push #%s %s: got %s, want BLOCKED", cmd.Name, cmd.Dir, out)
		}
		return nil
	case *Expect:
		id, err := lookup(w, cmd.Span, cmd.Name)
		if err != nil {
			return err
		}
		container, err := lookup(w, cmd.Span, cmd.Container)
		if err != nil {
			return err
		}
		pl, ok := w.PlacementOf(id)
		if !ok {
			return spanErrf(cmd.Span, ErrAssertion, "#%s is not placed, want (%d,%d) in #%s",
				cmd.Name, cmd.At.X, cmd.At.Y, cmd.Container)
		}
		if pl.Container != container || pl.Cell != cmd.At {
			return spanErrf(cmd.Span, ErrAssertion, "#%s is at (%d,%d) in #%s, want (%d,%d) in #%s",
				cmd.Name, pl.Cell.X, pl.Cell.Y, w.Name(pl.Container), cmd.At.X, cmd.At.Y, cmd.Container)
		}
		return nil
	default:
		return fmt.Errorf("unhandled statement %T", c)
	}
}

// lookup binds a script name without following aliases: placement and
// assertion statements address the named block itself.
func lookup(w *engine.World, sp Span, name string) (engine.EntityID, error) {
	id, ok := w.Lookup(name)
	if !ok {
		return 0, spanErrf(sp, engine.ErrUnknownEntity, "unknown entity #%s", name)
	}
	return id, nil
}

// Summary renders a one-line statement census for logs.
func Summary(cmds []Command) string {
	defines, places, pushes, expects := 0, 0, 0, 0
	for _, c := range cmds {
		switch c.(type) {
		case *DefineBox, *DefineWall, *DefineAlias:
			defines++
		case *Place:
			places++
		case *Push:
			pushes++
		case *Expect:
			expects++
		}
	}
	parts := []string{
		fmt.Sprintf("%d defines", defines),
		fmt.Sprintf("%d places", places),
		fmt.Sprintf("%d pushes", pushes),
	}
	if expects > 0 {
		parts = append(parts, fmt.Sprintf("%d expects", expects))
	}
	return strings.Join(parts, ", ")
}

package engine

import "testing"

func sizeOf(w, h int) *Size { return &Size{W: w, H: h} }

func mustBox(t *testing.T, w *World, name string, opt BoxOptions) EntityID {
	t.Helper()
	id, err := w.DefineBox(name, opt)
	if err != nil {
		t.Fatalf("define box %s: %v", name, err)
	}
	return id
}

func mustWall(t *testing.T, w *World, name string) EntityID {
	t.Helper()
	id, err := w.DefineWall(name)
	if err != nil {
		t.Fatalf("define wall %s: %v", name, err)
	}
	return id
}

func mustAlias(t *testing.T, w *World, name, target string) EntityID {
	t.Helper()
	id, err := w.DefineAlias(name, target)
	if err != nil {
		t.Fatalf("define alias %s: %v", name, err)
	}
	return id
}

func mustPlace(t *testing.T, w *World, container, id EntityID, x, y int) {
	t.Helper()
	if err := w.Place(container, id, Point{X: x, Y: y}); err != nil {
		t.Fatalf("place %s: %v", w.Name(id), err)
	}
}

func mustPush(t *testing.T, w *World, id EntityID, dir Direction) Outcome {
	t.Helper()
	out, err := w.Push(id, dir)
	if err != nil {
		t.Fatalf("push %s %s: %v", w.Name(id), dir, err)
	}
	return out
}

func expectAt(t *testing.T, w *World, id, container EntityID, x, y int) {
	t.Helper()
	pl, ok := w.PlacementOf(id)
	if !ok {
		t.Fatalf("%s: not placed", w.Name(id))
	}
	if pl.Container != container || pl.Cell != (Point{X: x, Y: y}) {
		t.Fatalf("%s: at (%d,%d) in %s, want (%d,%d) in %s",
			w.Name(id), pl.Cell.X, pl.Cell.Y, w.Name(pl.Container), x, y, w.Name(container))
	}
}

// cycleWorld builds the recursive-container fixture used across the push
// tests: a 5x5 outer world holding a solid box, a wall, and an alias door
// into a 5x5 container that occupies a cell of its own grid next to a row
// of three boxes and a wall.
//
//	outer row y=2:  . W D b .       cycle row y=2:  W C 1 2 3
//
// (W wall, D door alias, b outer_box, C the container itself, 1-3 boxes)
func cycleWorld(t *testing.T) (*World, map[string]EntityID) {
	t.Helper()
	w := New()
	ids := map[string]EntityID{
		"container":  mustBox(t, w, "container", BoxOptions{Size: sizeOf(5, 5)}),
		"cycle":      mustBox(t, w, "cycle", BoxOptions{Size: sizeOf(5, 5), Solid: true}),
		"outer_box":  mustBox(t, w, "outer_box", BoxOptions{Solid: true}),
		"box1":       mustBox(t, w, "box1", BoxOptions{Solid: true}),
		"box2":       mustBox(t, w, "box2", BoxOptions{Solid: true}),
		"box3":       mustBox(t, w, "box3", BoxOptions{Solid: true}),
		"outer_wall": mustWall(t, w, "outer_wall"),
		"cycle_wall": mustWall(t, w, "cycle_wall"),
		"cycle_door": mustAlias(t, w, "cycle_door", "cycle"),
	}
	mustPlace(t, w, ids["container"], ids["outer_wall"], 1, 2)
	mustPlace(t, w, ids["container"], ids["cycle_door"], 2, 2)
	mustPlace(t, w, ids["container"], ids["outer_box"], 3, 2)
	mustPlace(t, w, ids["cycle"], ids["cycle_wall"], 0, 2)
	mustPlace(t, w, ids["cycle"], ids["cycle"], 1, 2)
	mustPlace(t, w, ids["cycle"], ids["box1"], 2, 2)
	mustPlace(t, w, ids["cycle"], ids["box2"], 3, 2)
	mustPlace(t, w, ids["cycle"], ids["box3"], 4, 2)
	return w, ids
}

// placementTable snapshots entity -> container for every placed entity,
// for conservation checks.
func placementTable(w *World) map[EntityID]EntityID {
	out := make(map[EntityID]EntityID)
	for _, id := range w.Entities() {
		if c, ok := w.ContainerOf(id); ok {
			out[id] = c
		}
	}
	return out
}

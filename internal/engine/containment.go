package engine

import "sort"

// ContainerOf reports which container currently holds the entity.
func (w *World) ContainerOf(id EntityID) (EntityID, bool) {
	pl, ok := w.placed[id]
	if !ok {
		return 0, false
	}
	return pl.Container, true
}

// PlacementOf reports the entity's full current placement.
func (w *World) PlacementOf(id EntityID) (Placement, bool) {
	pl, ok := w.placed[id]
	return pl, ok
}

// OccupantAt reports the occupant of a container cell, if any.
func (w *World) OccupantAt(container EntityID, at Point) (EntityID, bool) {
	e, err := w.entityByID(container)
	if err != nil || e.grid == nil || !e.grid.inBounds(at) {
		return 0, false
	}
	occ := e.grid.at(at)
	return occ, occ != 0
}

// Name returns the name an entity was defined under, or "" for a bad id.
func (w *World) Name(id EntityID) string {
	e, err := w.entityByID(id)
	if err != nil {
		return ""
	}
	return e.name
}

// KindOf returns the entity's kind, or the zero Kind for a bad id.
func (w *World) KindOf(id EntityID) Kind {
	e, err := w.entityByID(id)
	if err != nil {
		return 0
	}
	return e.kind
}

func (w *World) IsSolid(id EntityID) bool {
	e, err := w.entityByID(id)
	return err == nil && e.solid
}

// GridSize reports a container's interior size; ok is false for
// non-containers.
func (w *World) GridSize(id EntityID) (Size, bool) {
	e, err := w.entityByID(id)
	if err != nil || e.grid == nil {
		return Size{}, false
	}
	return Size{W: e.grid.w, H: e.grid.h}, true
}

// Entities lists every defined entity id in definition order.
func (w *World) Entities() []EntityID {
	out := make([]EntityID, 0, len(w.entities)-1)
	for _, e := range w.entities[1:] {
		out = append(out, e.id)
	}
	return out
}

// Containers lists every container id in definition order.
func (w *World) Containers() []EntityID {
	var out []EntityID
	for _, e := range w.entities[1:] {
		if e.grid != nil {
			out = append(out, e.id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// selfContaining reports whether container c is reachable from its own
// interior through the containment graph, following the canonical ids of
// occupants (an alias to c inside c counts). Such a container acts as a
// cycle gateway during push resolution.
func (w *World) selfContaining(c EntityID) bool {
	if w.entities[c].grid == nil {
		return false
	}
	seen := make(map[EntityID]bool)
	stack := []EntityID{c}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[cur] {
			continue
		}
		seen[cur] = true
		g := w.entities[cur].grid
		for x := 0; x < g.w; x++ {
			for y := 0; y < g.h; y++ {
				occ := g.cells[x][y]
				if occ == 0 {
					continue
				}
				canon, err := w.canonical(occ)
				if err != nil {
					continue
				}
				if canon == c {
					return true
				}
				if w.entities[canon].grid != nil && !seen[canon] {
					stack = append(stack, canon)
				}
			}
		}
	}
	return false
}

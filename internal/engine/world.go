// Package engine simulates grid puzzles whose boxes can themselves be
// containers holding further entities to unlimited depth. Containment may
// legally form cycles (a container reachable inside its own interior), a
// single underlying entity may be reachable through several aliases, and
// the push resolver handles both without unbounded recursion.
//
// A World is built once through the setup API (define, place) and then
// driven by Push. It is single-threaded by contract: no internal locking,
// pushes apply strictly in call order, and identical call sequences yield
// identical digests.
package engine

import "fmt"

// World holds one puzzle's entire mutable state: the entity table, name
// bindings, every container grid, and the placement relation the
// containment graph derives from.
type World struct {
	entities []*entity // index 0 unused; EntityID indexes this slice
	byName   map[string]EntityID
	placed   map[EntityID]Placement

	pushSeq uint64
	sink    TraceSink
}

func New() *World {
	return &World{
		entities: make([]*entity, 1),
		byName:   make(map[string]EntityID),
		placed:   make(map[EntityID]Placement),
	}
}

func (w *World) define(name string, e *entity) (EntityID, error) {
	if name == "" {
		return 0, fmt.Errorf("define: empty name")
	}
	if _, ok := w.byName[name]; ok {
		return 0, fmt.Errorf("define %q: %w", name, ErrDuplicateName)
	}
	id := EntityID(len(w.entities))
	e.id = id
	e.name = name
	w.entities = append(w.entities, e)
	w.byName[name] = id
	return id, nil
}

// DefineBox declares a box under a fresh name.
func (w *World) DefineBox(name string, opt BoxOptions) (EntityID, error) {
	if opt.Size == nil && !opt.Solid {
		return 0, fmt.Errorf("define %q: %w", name, ErrBareBox)
	}
	e := &entity{kind: KindBox, solid: opt.Solid}
	if opt.Size != nil {
		if opt.Size.W <= 0 || opt.Size.H <= 0 {
			return 0, fmt.Errorf("define %q: size %dx%d: %w", name, opt.Size.W, opt.Size.H, ErrOutOfBounds)
		}
		e.grid = newGrid(opt.Size.W, opt.Size.H)
	}
	return w.define(name, e)
}

// DefineWall declares a wall: always solid, never a container, never
// pushable.
func (w *World) DefineWall(name string) (EntityID, error) {
	return w.define(name, &entity{kind: KindWall, solid: true})
}

// DefineAlias declares a placeable indirection entity resolving to target.
// The target may be defined later; resolution is lazy, so a broken or
// cyclic chain surfaces at first resolve rather than here.
func (w *World) DefineAlias(name, target string) (EntityID, error) {
	if target == "" {
		return 0, fmt.Errorf("alias %q: empty target", name)
	}
	return w.define(name, &entity{kind: KindAlias, solid: true, target: target})
}

func (w *World) entityByID(id EntityID) (*entity, error) {
	if id <= 0 || int(id) >= len(w.entities) {
		return nil, fmt.Errorf("id %d: %w", id, ErrUnknownEntity)
	}
	return w.entities[id], nil
}

// Lookup returns the entity bound directly to name, without following
// aliases. Placement primitives and post-hoc assertions address entities
// this way; pushes go through Resolve.
func (w *World) Lookup(name string) (EntityID, bool) {
	id, ok := w.byName[name]
	return id, ok
}

// Resolve follows alias chains from name to a canonical entity id.
func (w *World) Resolve(name string) (EntityID, error) {
	id, ok := w.byName[name]
	if !ok {
		return 0, fmt.Errorf("resolve %q: %w", name, ErrUnknownEntity)
	}
	return w.canonical(id)
}

// canonical collapses an alias id, possibly through a chain, to the
// underlying entity id. Non-alias ids canonicalize to themselves.
func (w *World) canonical(id EntityID) (EntityID, error) {
	e, err := w.entityByID(id)
	if err != nil {
		return 0, err
	}
	var seen map[EntityID]bool
	for e.kind == KindAlias {
		if seen[e.id] {
			return 0, fmt.Errorf("alias %q: %w", e.name, ErrAliasCycle)
		}
		if seen == nil {
			seen = make(map[EntityID]bool)
		}
		seen[e.id] = true
		next, ok := w.byName[e.target]
		if !ok {
			return 0, fmt.Errorf("alias %q -> %q: %w", e.name, e.target, ErrUnknownEntity)
		}
		e = w.entities[next]
	}
	return e.id, nil
}

// Place puts entity into a cell of container, relocating it if it was
// already placed. Setup primitive; after setup only the push resolver
// moves entities, and then only between cells of one container.
func (w *World) Place(container, entityID EntityID, at Point) error {
	c, err := w.entityByID(container)
	if err != nil {
		return fmt.Errorf("place: container: %w", err)
	}
	e, err := w.entityByID(entityID)
	if err != nil {
		return fmt.Errorf("place: %w", err)
	}
	if c.grid == nil {
		return fmt.Errorf("place %q in %q: %w", e.name, c.name, ErrNotContainer)
	}
	if !c.grid.inBounds(at) {
		return fmt.Errorf("place %q at (%d,%d) in %q: %w", e.name, at.X, at.Y, c.name, ErrOutOfBounds)
	}
	if occ := c.grid.at(at); occ != 0 && occ != entityID {
		return fmt.Errorf("place %q at (%d,%d) in %q: %w", e.name, at.X, at.Y, c.name, ErrCellOccupied)
	}
	if prev, ok := w.placed[entityID]; ok {
		w.entities[prev.Container].grid.clear(prev.Cell)
	}
	c.grid.set(at, entityID)
	w.placed[entityID] = Placement{Container: container, Cell: at}
	return nil
}

// SetTraceSink installs an observer invoked once per resolved push. The
// sink must not call back into the World.
func (w *World) SetTraceSink(s TraceSink) { w.sink = s }

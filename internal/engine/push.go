package engine

import "fmt"

// link is one chained occupant: the block occupying a scanned cell plus
// the cell the scan visited immediately after it. The successor crosses
// wrap boundaries, so it is not always cell+delta; it is the cell the
// link shifts into when the push commits.
type link struct {
	entity EntityID // the occupant itself; may be an alias block
	canon  EntityID
	pl     Placement
	succ   Point
}

// wrapKey guards against unbounded wrapping: one push may pass through a
// given gateway occupant placement at a given projection point only once.
// Two distinct placements of the same canonical container are distinct
// entries; the end-to-end cycle scenario wraps through one container
// twice that way, legally.
type wrapKey struct {
	pl       Placement
	num, den int64
}

// Push resolves one push request and commits or rejects it atomically.
// The entity id is canonicalized first, so pushing any alias of an entity
// is exactly pushing the entity. ErrNotPlaced reports a push against an
// entity with no placement; a placed wall or non-solid box yields Blocked.
func (w *World) Push(id EntityID, dir Direction) (Outcome, error) {
	origin, err := w.canonical(id)
	if err != nil {
		return Blocked, err
	}
	oe := w.entities[origin]
	pl, ok := w.placed[origin]
	if !ok {
		return Blocked, fmt.Errorf("push %q: %w", oe.name, ErrNotPlaced)
	}

	outcome, reason, moves, wraps, err := w.resolve(origin, pl, dir)
	if err != nil {
		return Blocked, err
	}
	if outcome == Moved && !w.commit(moves) {
		outcome, reason, moves = Blocked, ReasonConflict, nil
	}

	w.pushSeq++
	if w.sink != nil {
		w.sink.RecordPush(PushTrace{
			Seq:       w.pushSeq,
			Entity:    oe.name,
			Direction: dir.String(),
			Outcome:   outcome.String(),
			Reason:    reason,
			Wraps:     wraps,
			Moves:     moves,
			Digest:    w.Digest(),
		})
	}
	return outcome, nil
}

// resolve builds the push chain with a flat scan along dir. The scan
// walks cell by cell inside one container at a time; meeting a cycle
// gateway pins it and re-enters the gateway's own grid from the opposite
// boundary instead of recursing. An error means an occupant's alias
// chain could not be canonicalized (a setup defect surfacing late).
func (w *World) resolve(origin EntityID, pl Placement, dir Direction) (Outcome, string, []Move, int, error) {
	oe := w.entities[origin]
	if oe.kind == KindWall {
		return Blocked, ReasonWall, nil, 0, nil
	}
	if !oe.solid {
		return Blocked, ReasonNonsolid, nil, 0, nil
	}

	dx, dy := dir.Delta()
	chain := []link{{entity: origin, canon: origin, pl: pl}}
	inChain := map[EntityID]bool{origin: true}
	container := pl.Container
	// lastWrap is the index of the first link that can still shift. A
	// wrap into a different container strands everything chained so far
	// on the far side of a pinned gateway; those links stay put even
	// when the push succeeds. A self-wrap keeps the scan in the same
	// container, so its links keep participating.
	lastWrap := 0
	wraps := 0
	precise := half
	visited := make(map[wrapKey]bool)

	next := pl.Cell.Add(dx, dy)
	for {
		g := w.entities[container].grid
		if !g.inBounds(next) {
			return Blocked, ReasonBoundary, nil, wraps, nil
		}
		occ := g.at(next)

		if occ == 0 {
			chain[len(chain)-1].succ = next
			moves := w.segmentMoves(chain[lastWrap:])
			if len(moves) == 0 {
				return Blocked, ReasonPinned, nil, wraps, nil
			}
			return Moved, "", moves, wraps, nil
		}

		canon, err := w.canonical(occ)
		if err != nil {
			return Blocked, "", nil, wraps, err
		}

		if inChain[canon] {
			at := Placement{Container: container, Cell: next}
			for i := range chain {
				if chain[i].pl == at {
					if i < lastWrap {
						// Closing onto a stranded link: its cell never
						// vacates, so the ring cannot rotate.
						return Blocked, ReasonPinned, nil, wraps, nil
					}
					// Ring closure: the scan path loops back onto the
					// chain, so the suffix from here rotates one step.
					chain[len(chain)-1].succ = next
					moves := w.segmentMoves(chain[i:])
					if len(moves) == 0 {
						return Blocked, ReasonIdentity, nil, wraps, nil
					}
					return Moved, "", moves, wraps, nil
				}
			}
			return Blocked, ReasonDuplicate, nil, wraps, nil
		}

		ce := w.entities[canon]
		if ce.grid != nil && w.selfContaining(canon) {
			key := wrapKey{pl: Placement{Container: container, Cell: next}, num: precise.num, den: precise.den}
			if visited[key] {
				return Blocked, ReasonCycle, nil, wraps, nil
			}
			visited[key] = true
			landing, rem := wrapEntry(ce.grid, dir, precise)
			precise = rem
			if canon != container {
				lastWrap = len(chain)
			}
			container = canon
			wraps++
			next = landing
			continue
		}

		if ce.kind == KindWall {
			return Blocked, ReasonWall, nil, wraps, nil
		}
		if ce.kind == KindBox && ce.solid {
			chain[len(chain)-1].succ = next
			chain = append(chain, link{
				entity: occ,
				canon:  canon,
				pl:     Placement{Container: container, Cell: next},
			})
			inChain[canon] = true
			next = next.Add(dx, dy)
			continue
		}
		return Blocked, ReasonNonsolid, nil, wraps, nil
	}
}

// segmentMoves turns a chain segment into its relocation batch: every
// link shifts to its recorded successor cell. Identity shifts are
// dropped, so an empty batch means nothing would change.
func (w *World) segmentMoves(seg []link) []Move {
	moves := make([]Move, 0, len(seg))
	for _, l := range seg {
		if l.succ == l.pl.Cell {
			continue
		}
		moves = append(moves, Move{
			entity:    l.entity,
			container: l.pl.Container,
			Name:      w.entities[l.entity].name,
			Container: w.entities[l.pl.Container].name,
			From:      l.pl.Cell,
			To:        l.succ,
		})
	}
	return moves
}

// wrapEntry computes the landing cell for a scan wrapping into a gateway
// grid: the opposite boundary along the push axis, with the perpendicular
// coordinate projected at the carried fraction (initially the midpoint).
func wrapEntry(g *grid, dir Direction, precise rational) (Point, rational) {
	switch dir {
	case East:
		q, rem := precise.mulSplit(g.h)
		return Point{X: 0, Y: q}, rem
	case West:
		q, rem := precise.mulSplit(g.h)
		return Point{X: g.w - 1, Y: q}, rem
	case North:
		q, rem := precise.mulSplit(g.w)
		return Point{X: q, Y: 0}, rem
	default: // South
		q, rem := precise.mulSplit(g.w)
		return Point{X: q, Y: g.h - 1}, rem
	}
}

// commit applies an accepted push as one batch: all sources clear before
// any destination fills, so rotations never collide with themselves. Any
// violation rolls the grids back and rejects the push.
func (w *World) commit(moves []Move) bool {
	for _, m := range moves {
		w.entities[m.container].grid.clear(m.From)
	}
	for i, m := range moves {
		g := w.entities[m.container].grid
		if !g.inBounds(m.To) || g.at(m.To) != 0 {
			for j := 0; j < i; j++ {
				w.entities[moves[j].container].grid.clear(moves[j].To)
			}
			for _, mm := range moves {
				w.entities[mm.container].grid.set(mm.From, mm.entity)
			}
			return false
		}
		g.set(m.To, m.entity)
	}
	for _, m := range moves {
		w.placed[m.entity] = Placement{Container: m.container, Cell: m.To}
	}
	return true
}

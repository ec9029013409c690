package engine

// grid is a container's owned cell storage, indexed [x][y]. Zero means
// empty. Each cell holds at most one occupant; occupants relocate between
// cells of one grid only.
type grid struct {
	w, h  int
	cells [][]EntityID
}

func newGrid(w, h int) *grid {
	cells := make([][]EntityID, w)
	for x := range cells {
		cells[x] = make([]EntityID, h)
	}
	return &grid{w: w, h: h, cells: cells}
}

func (g *grid) inBounds(p Point) bool {
	return p.X >= 0 && p.X < g.w && p.Y >= 0 && p.Y < g.h
}

func (g *grid) at(p Point) EntityID      { return g.cells[p.X][p.Y] }
func (g *grid) set(p Point, id EntityID) { g.cells[p.X][p.Y] = id }
func (g *grid) clear(p Point)            { g.cells[p.X][p.Y] = 0 }

package engine

// EntityID identifies an entity within one World. Ids are dense, assigned
// in definition order, and never reused. The zero value is invalid.
type EntityID int32

type Kind uint8

const (
	KindBox Kind = iota + 1
	KindWall
	KindAlias
)

func (k Kind) String() string {
	switch k {
	case KindBox:
		return "box"
	case KindWall:
		return "wall"
	case KindAlias:
		return "alias"
	}
	return "invalid"
}

// Point is a cell coordinate inside a container grid.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

func (p Point) Add(dx, dy int) Point { return Point{X: p.X + dx, Y: p.Y + dy} }

// Size is a container's interior dimensions.
type Size struct {
	W int `json:"w"`
	H int `json:"h"`
}

// Placement is the relation "entity occupies cell (x,y) of container C".
// An entity has at most one placement at a time.
type Placement struct {
	Container EntityID
	Cell      Point
}

// BoxOptions declares a box's attributes. Size makes it a container,
// Solid makes it occupy space and be pushable; at least one is required.
type BoxOptions struct {
	Size  *Size
	Solid bool
}

type entity struct {
	id    EntityID
	name  string
	kind  Kind
	solid bool
	grid  *grid // non-nil iff the entity is a container

	// Alias target name, kept unresolved so forward references work;
	// canonical resolution is lazy.
	target string
}

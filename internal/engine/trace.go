package engine

// Move is one cell relocation inside an accepted push.
type Move struct {
	entity    EntityID
	container EntityID

	Name      string `json:"entity"`
	Container string `json:"container"`
	From      Point  `json:"from"`
	To        Point  `json:"to"`
}

// Blocked reasons recorded in traces. The public outcome stays
// two-valued; these exist for logs, the wire protocol, and tests.
const (
	ReasonWall      = "wall"      // chain hit a wall
	ReasonNonsolid  = "nonsolid"  // chain hit a non-solid, non-gateway entity
	ReasonBoundary  = "boundary"  // chain hit the container edge
	ReasonCycle     = "cycle"     // wrap guard tripped: no absorbing empty cell
	ReasonPinned    = "pinned"    // wrapped straight into an empty cell; nothing to rotate
	ReasonDuplicate = "duplicate" // same underlying entity reached twice via distinct cells
	ReasonIdentity  = "identity"  // one-cell ring rotating onto itself
	ReasonConflict  = "conflict"  // commit validation rejected the batch
)

// PushTrace describes one resolved push. Digest is the world digest after
// the push (unchanged from before when the outcome is Blocked).
type PushTrace struct {
	Seq       uint64 `json:"seq"`
	Entity    string `json:"entity"`
	Direction string `json:"direction"`
	Outcome   string `json:"outcome"`
	Reason    string `json:"reason,omitempty"`
	Wraps     int    `json:"wraps"`
	Moves     []Move `json:"moves,omitempty"`
	Digest    string `json:"digest"`
}

// TraceSink observes resolved pushes.
type TraceSink interface {
	RecordPush(PushTrace)
}

// TraceFunc adapts a plain function to TraceSink.
type TraceFunc func(PushTrace)

func (f TraceFunc) RecordPush(t PushTrace) { f(t) }

package engine

// Outcome is a push result: either at least one cell changed, or nothing
// did. A push stopped by the cycle guard reports Blocked; from outside, a
// cycle with no absorbing empty cell is indistinguishable from an
// ordinary block.
type Outcome uint8

const (
	Blocked Outcome = iota
	Moved
)

func (o Outcome) String() string {
	if o == Moved {
		return "MOVED"
	}
	return "BLOCKED"
}

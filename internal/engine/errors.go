package engine

import "errors"

// Setup-time errors. They abort scenario construction; a world that
// returned one may be partially built and should be discarded.
var (
	ErrDuplicateName = errors.New("duplicate name")
	ErrUnknownEntity = errors.New("unknown entity")
	ErrAliasCycle    = errors.New("alias cycle")
	ErrOutOfBounds   = errors.New("out of bounds")
	ErrCellOccupied  = errors.New("cell occupied")
	ErrNotContainer  = errors.New("not a container")
	ErrBareBox       = errors.New("box declared with neither size nor solid")
)

// ErrNotPlaced reports a push against an entity that has no placement.
// It is a caller error, never folded into a Blocked outcome.
var ErrNotPlaced = errors.New("entity not placed")

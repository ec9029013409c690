package protocol

const (
	// Malformed or unroutable frames.
	ErrProtoBadRequest = "E_PROTO_BAD_REQUEST"

	// Session/puzzle routing.
	ErrUnknownPuzzle = "E_UNKNOWN_PUZZLE"
	ErrNoPuzzle      = "E_NO_PUZZLE"
	ErrBusy          = "E_BUSY"

	// Push layer.
	ErrUnknownEntity = "E_UNKNOWN_ENTITY"
	ErrAliasCycle    = "E_ALIAS_CYCLE"
	ErrNotPlaced     = "E_NOT_PLACED"
	ErrBadDirection  = "E_BAD_DIRECTION"

	ErrInternal = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrProtoBadRequest: {},
	ErrUnknownPuzzle:   {},
	ErrNoPuzzle:        {},
	ErrBusy:            {},
	ErrUnknownEntity:   {},
	ErrAliasCycle:      {},
	ErrNotPlaced:       {},
	ErrBadDirection:    {},
	ErrInternal:        {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}

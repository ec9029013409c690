package protocol

// HELLO (client -> server)
type HelloMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ClientName      string `json:"client_name,omitempty"`
}

// WELCOME (server -> client)
type WelcomeMsg struct {
	Type            string      `json:"type"`
	ProtocolVersion string      `json:"protocol_version"`
	SessionID       string      `json:"session_id"`
	Puzzles         []PuzzleRef `json:"puzzles"`
}

// PuzzleRef names one loadable puzzle in the WELCOME manifest.
type PuzzleRef struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// JOIN (client -> server): build a fresh world from a puzzle script.
type JoinMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	PuzzleID        string `json:"puzzle_id"`
}

// STATE (server -> client): the full board, sent after JOIN and RESET.
type StateMsg struct {
	Type            string           `json:"type"`
	ProtocolVersion string           `json:"protocol_version"`
	PuzzleID        string           `json:"puzzle_id"`
	Seq             uint64           `json:"seq"`
	Digest          string           `json:"digest"`
	Containers      []ContainerState `json:"containers"`
}

type ContainerState struct {
	Name      string     `json:"name"`
	W         int        `json:"w"`
	H         int        `json:"h"`
	Solid     bool       `json:"solid"`
	Occupants []Occupant `json:"occupants"`
}

type Occupant struct {
	Entity string `json:"entity"`
	Kind   string `json:"kind"`
	X      int    `json:"x"`
	Y      int    `json:"y"`
}

// PUSH (client -> server)
type PushMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Entity          string `json:"entity"`
	Direction       string `json:"direction"`
}

// RESULT (server -> client): one push resolved.
type ResultMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Seq             uint64 `json:"seq"`
	Outcome         string `json:"outcome"`
	Reason          string `json:"reason,omitempty"`
	Moves           []Move `json:"moves"`
	Digest          string `json:"digest"`
}

type Cell struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Move is one relocation of an accepted push, same shape the trace log
// records.
type Move struct {
	Entity    string `json:"entity"`
	Container string `json:"container"`
	From      Cell   `json:"from"`
	To        Cell   `json:"to"`
}

// RESET (client -> server): rebuild the joined puzzle from its script.
type ResetMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
}

// ERROR (server -> client)
type ErrorMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Code            string `json:"code"`
	Message         string `json:"message,omitempty"`
}

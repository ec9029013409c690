package protocol

import "encoding/json"

const Version = "1.0"

// Message types.
const (
	TypeHello   = "HELLO"
	TypeWelcome = "WELCOME"
	TypeJoin    = "JOIN"
	TypeState   = "STATE"
	TypePush    = "PUSH"
	TypeResult  = "RESULT"
	TypeReset   = "RESET"
	TypeError   = "ERROR"
)

// BaseMessage carries the fields needed to route a frame before the
// full message type is known.
type BaseMessage struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version,omitempty"`
}

func DecodeBase(b []byte) (BaseMessage, error) {
	var m BaseMessage
	err := json.Unmarshal(b, &m)
	return m, err
}

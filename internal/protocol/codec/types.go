package codec

import "maps"

// MessageType is the closed set of protocol message kinds.
// TypeUnknown is the bucket for any wire type name outside the vocabulary.
type MessageType int

const (
	TypeUnknown MessageType = iota
	TypeChallenge
	TypeResponse
	TypeSuccess
	TypeSessionMessage
	TypeEnd
)

// Types lists every known message type in wire order.
var Types = []MessageType{TypeChallenge, TypeResponse, TypeSuccess, TypeSessionMessage, TypeEnd}

func (t MessageType) String() string {
	if name, ok := DefaultTypeNames()[t]; ok {
		return name
	}
	return "UNKNOWN"
}

// Message is one decoded protocol record.
type Message struct {
	Type    MessageType
	Payload string
	Sender  string

	// Unrecognized carries the raw wire type name when Type is TypeUnknown.
	Unrecognized string
}

// TypeNames maps each message type to its wire name.
type TypeNames map[MessageType]string

// DefaultTypeNames returns the wire vocabulary used by the reference server.
func DefaultTypeNames() TypeNames {
	return TypeNames{
		TypeChallenge:      "CHALLENGE",
		TypeResponse:       "RESPONSE",
		TypeSuccess:        "SUCCESS",
		TypeSessionMessage: "SESSION_MESSAGE",
		TypeEnd:            "END",
	}
}

// Clone returns an independent copy of n.
func (n TypeNames) Clone() TypeNames {
	return maps.Clone(n)
}

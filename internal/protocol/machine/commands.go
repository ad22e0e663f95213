package machine

import "github.com/danmuck/authctl/internal/protocol/codec"

// Command is an action the Machine asks its driver to perform, in order.
// The set is closed: Send, Deliver, and Close.
type Command interface {
	isCommand()
}

// Send writes Message to the transport.
type Send struct {
	Message codec.Message
}

// DeliverKind distinguishes the session-establishing payload from later ones.
type DeliverKind int

const (
	DeliverEstablished DeliverKind = iota
	DeliverSessionMessage
)

func (k DeliverKind) String() string {
	if k == DeliverEstablished {
		return "established"
	}
	return "session_message"
}

// Deliver hands a session payload to the caller.
type Deliver struct {
	Kind    DeliverKind
	Payload string
}

// Close ends the transport. Graceful closes only the outbound side after END;
// otherwise the connection is torn down because of Reason.
type Close struct {
	Graceful bool
	Reason   error
}

func (Send) isCommand()    {}
func (Deliver) isCommand() {}
func (Close) isCommand()   {}

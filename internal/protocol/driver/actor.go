package driver

import (
	"fmt"

	"github.com/danmuck/authctl/internal/protocol"
	"github.com/danmuck/authctl/internal/protocol/certpolicy"
	"github.com/danmuck/authctl/internal/protocol/codec"
	"github.com/danmuck/authctl/internal/protocol/machine"
)

// Actor adapts transport events for one connection to its Machine. It owns the
// connection's decode buffer and holds no protocol logic of its own.
// Events must be handled one at a time.
type Actor struct {
	policy  *certpolicy.Policy
	decoder *codec.Decoder
	machine *machine.Machine
}

func NewActor(policy *certpolicy.Policy, c *codec.Codec, m *machine.Machine) *Actor {
	return &Actor{
		policy:  policy,
		decoder: c.NewDecoder(),
		machine: m,
	}
}

// Handle applies ev and returns the commands to execute, in order. Once the
// machine is terminal every event is ignored.
func (a *Actor) Handle(ev Event) []machine.Command {
	if a.machine.Terminal() {
		return nil
	}
	switch ev := ev.(type) {
	case HandshakeComplete:
		if err := a.policy.Check(ev.Cert); err != nil {
			return a.machine.Fail(err)
		}
		return nil

	case DataReceived:
		msgs, decodeErr := a.decoder.Feed(ev.Bytes)
		var cmds []machine.Command
		for _, msg := range msgs {
			cmds = append(cmds, a.machine.Deliver(msg)...)
			if a.machine.Terminal() {
				return cmds
			}
		}
		if decodeErr != nil {
			cmds = append(cmds, a.machine.Fail(decodeErr)...)
		}
		return cmds

	case Closed:
		if err := a.decoder.Close(); err != nil {
			return a.machine.Fail(err)
		}
		return a.machine.Fail(fmt.Errorf("%w: peer closed connection in state %s", protocol.ErrTransport, a.machine.State()))

	case ErrorOccurred:
		return a.machine.Fail(fmt.Errorf("%w: %v", protocol.ErrTransport, ev.Err))

	default:
		return a.machine.Fail(fmt.Errorf("%w: unhandled event %T", protocol.ErrTransport, ev))
	}
}

// Done reports whether the connection reached END or ABORT.
func (a *Actor) Done() bool {
	return a.machine.Terminal()
}

func (a *Actor) State() machine.State {
	return a.machine.State()
}

func (a *Actor) Err() error {
	return a.machine.Err()
}

// Package machine implements the client side of the challenge-response
// protocol as a socket-free state machine.
//
// A Machine consumes decoded messages and failure reports and returns the
// commands its driver must execute. It never returns errors: every failure
// moves it to StateAbort and yields a single Close command.
package machine

import (
	"errors"
	"fmt"

	"github.com/danmuck/authctl/internal/protocol"
	"github.com/danmuck/authctl/internal/protocol/codec"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var ErrSignerRequired = errors.New("machine: signer required")

// Signer signs a hex challenge and returns a hex signature.
type Signer interface {
	SignHex(challenge string) (string, error)
}

// Observer is notified of every state change and abort.
type Observer interface {
	Transition(from, to State)
	Aborted(from State, reason error)
}

// Config configures one Machine.
type Config struct {
	Signer   Signer
	Sender   string
	Policy   SessionPolicy
	Observer Observer
	Logger   *zerolog.Logger
}

// Machine owns the ProtocolState of a single connection.
// It is not safe for concurrent use; the driver serializes calls.
type Machine struct {
	cfg    Config
	logger zerolog.Logger
	state  State
	err    error
}

func New(cfg Config) (*Machine, error) {
	if cfg.Signer == nil {
		return nil, ErrSignerRequired
	}
	logger := log.Logger
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}
	return &Machine{
		cfg:    cfg,
		logger: logger.With().Str("component", "machine").Logger(),
		state:  StateStart,
	}, nil
}

func (m *Machine) State() State {
	return m.state
}

// Err returns the reason for the abort, or nil.
func (m *Machine) Err() error {
	return m.err
}

func (m *Machine) Terminal() bool {
	return m.state.Terminal()
}

// Deliver applies one inbound message.
func (m *Machine) Deliver(msg codec.Message) []Command {
	if m.state.Terminal() {
		return nil
	}

	switch msg.Type {
	case codec.TypeChallenge:
		if m.state != StateStart {
			return m.badState(msg)
		}
		m.logger.Debug().Str("challenge", msg.Payload).Msg("received challenge")
		response, err := m.cfg.Signer.SignHex(msg.Payload)
		if err != nil {
			return m.Abort(fmt.Errorf("%w: sign challenge: %v", protocol.ErrProtocolViolation, err))
		}
		m.transition(StateChallenge)
		m.logger.Debug().Str("response", response).Msg("sent response")
		return []Command{Send{Message: codec.Message{
			Type:    codec.TypeResponse,
			Payload: response,
			Sender:  m.cfg.Sender,
		}}}

	case codec.TypeSuccess:
		if m.state != StateChallenge {
			return m.badState(msg)
		}
		m.transition(StateSession)
		m.logger.Info().Msg("session established")
		cmds := []Command{Deliver{Kind: DeliverEstablished, Payload: msg.Payload}}
		if m.cfg.Policy == CloseAfterFirstMessage {
			cmds = append(cmds, m.Abort(protocol.ErrSessionClosed)...)
		}
		return cmds

	case codec.TypeSessionMessage:
		if m.state != StateSession {
			return m.badState(msg)
		}
		m.logger.Debug().Msg("received session message")
		return []Command{Deliver{Kind: DeliverSessionMessage, Payload: msg.Payload}}

	case codec.TypeEnd:
		if m.state != StateSession {
			return m.badState(msg)
		}
		m.transition(StateEnd)
		m.logger.Info().Msg("session ended")
		return []Command{Close{Graceful: true}}

	case codec.TypeResponse:
		return m.badState(msg)

	case codec.TypeUnknown:
		return m.Abort(fmt.Errorf("%w: unknown message type %q", protocol.ErrProtocolViolation, msg.Unrecognized))

	default:
		return m.Abort(fmt.Errorf("%w: unhandled message type %d", protocol.ErrProtocolViolation, int(msg.Type)))
	}
}

// Fail aborts because of a failure outside message handling: a decode error,
// a rejected certificate, or a transport close or error.
func (m *Machine) Fail(reason error) []Command {
	return m.Abort(reason)
}

// Abort moves to StateAbort and requests a transport close. It is a no-op once
// the machine is terminal, so at most one Close is ever emitted for an abort.
func (m *Machine) Abort(reason error) []Command {
	if m.state.Terminal() {
		return nil
	}
	if reason == nil {
		reason = protocol.ErrProtocolViolation
	}
	from := m.state
	m.err = reason
	m.state = StateAbort
	m.logger.Warn().Str("from", from.String()).Str("kind", protocol.Kind(reason)).Err(reason).Msg("protocol aborted")
	if m.cfg.Observer != nil {
		m.cfg.Observer.Transition(from, StateAbort)
		m.cfg.Observer.Aborted(from, reason)
	}
	return []Command{Close{Reason: reason}}
}

func (m *Machine) badState(msg codec.Message) []Command {
	m.logger.Warn().Str("type", msg.Type.String()).Str("state", m.state.String()).Msg("received message in bad state")
	return m.Abort(fmt.Errorf("%w: %s in state %s", protocol.ErrProtocolViolation, msg.Type, m.state))
}

func (m *Machine) transition(to State) {
	from := m.state
	m.state = to
	m.logger.Debug().Str("from", from.String()).Str("to", to.String()).Msg("transition")
	if m.cfg.Observer != nil {
		m.cfg.Observer.Transition(from, to)
	}
}

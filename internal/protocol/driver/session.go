package driver

import (
	"context"
	"crypto/tls"
	"errors"
	"io"
	"net"
	"time"

	"github.com/danmuck/authctl/internal/protocol/certpolicy"
	"github.com/danmuck/authctl/internal/protocol/codec"
	"github.com/danmuck/authctl/internal/protocol/machine"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const readChunkSize = 4096

// PayloadHandler receives session payloads in arrival order.
type PayloadHandler func(kind machine.DeliverKind, payload string)

// Payload is one delivered session payload.
type Payload struct {
	Kind    machine.DeliverKind
	Content string
}

// Result summarizes a finished protocol run.
type Result struct {
	State    machine.State
	Err      error
	Payloads []Payload
}

// Established reports whether the server accepted the challenge response.
func (r Result) Established() bool {
	for _, p := range r.Payloads {
		if p.Kind == machine.DeliverEstablished {
			return true
		}
	}
	return false
}

// SessionConfig configures one Session.
type SessionConfig struct {
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	OnPayload    PayloadHandler
	Logger       *zerolog.Logger
}

// Session owns one connection and pumps its events through an Actor from a
// single goroutine.
type Session struct {
	conn   net.Conn
	actor  *Actor
	codec  *codec.Codec
	cfg    SessionConfig
	logger zerolog.Logger

	result Result
	closed bool
}

func NewSession(conn net.Conn, actor *Actor, c *codec.Codec, cfg SessionConfig) *Session {
	logger := log.Logger
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}
	return &Session{
		conn:   conn,
		actor:  actor,
		codec:  c,
		cfg:    cfg,
		logger: logger.With().Str("component", "driver").Str("remote", conn.RemoteAddr().String()).Logger(),
	}
}

// Run drives the connection until the protocol reaches END or ABORT, or ctx is
// cancelled. The connection is always closed when Run returns.
func (s *Session) Run(ctx context.Context) Result {
	defer s.closeConn()

	stop := context.AfterFunc(ctx, func() {
		_ = s.conn.Close()
	})
	defer stop()

	s.dispatch(s.handshake(ctx))

	buf := make([]byte, readChunkSize)
	for !s.actor.Done() {
		if s.cfg.ReadTimeout > 0 {
			_ = s.conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
		}
		n, err := s.conn.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			s.dispatch(DataReceived{Bytes: chunk})
		}
		if err == nil || s.actor.Done() {
			continue
		}
		switch {
		case ctx.Err() != nil:
			s.dispatch(ErrorOccurred{Err: ctx.Err()})
		case errors.Is(err, io.EOF):
			s.dispatch(Closed{})
		default:
			s.dispatch(ErrorOccurred{Err: err})
		}
	}

	s.result.State = s.actor.State()
	s.result.Err = s.actor.Err()
	return s.result
}

func (s *Session) handshake(ctx context.Context) Event {
	tc, ok := s.conn.(*tls.Conn)
	if !ok {
		return HandshakeComplete{}
	}
	if err := tc.HandshakeContext(ctx); err != nil {
		s.logger.Error().Err(err).Msg("tls handshake failed")
		return ErrorOccurred{Err: err}
	}
	state := tc.ConnectionState()
	if len(state.PeerCertificates) == 0 {
		return HandshakeComplete{}
	}
	s.logger.Debug().Msg("connected to server")
	return HandshakeComplete{Cert: certpolicy.FromX509(state.PeerCertificates[0])}
}

func (s *Session) dispatch(ev Event) {
	pending := s.actor.Handle(ev)
	for len(pending) > 0 {
		cmd := pending[0]
		pending = pending[1:]
		if follow := s.execute(cmd); follow != nil {
			pending = append(pending, s.actor.Handle(follow)...)
		}
	}
}

// execute performs cmd and returns a follow-up event when it fails.
func (s *Session) execute(cmd machine.Command) Event {
	switch cmd := cmd.(type) {
	case machine.Send:
		wire, err := s.codec.Encode(cmd.Message)
		if err != nil {
			return ErrorOccurred{Err: err}
		}
		if s.cfg.WriteTimeout > 0 {
			_ = s.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
		}
		if _, err := s.conn.Write(wire); err != nil {
			return ErrorOccurred{Err: err}
		}
	case machine.Deliver:
		s.result.Payloads = append(s.result.Payloads, Payload{Kind: cmd.Kind, Content: cmd.Payload})
		s.logger.Info().Str("kind", cmd.Kind.String()).Str("payload", cmd.Payload).Msg("session payload")
		if s.cfg.OnPayload != nil {
			s.cfg.OnPayload(cmd.Kind, cmd.Payload)
		}
	case machine.Close:
		if cmd.Graceful {
			s.closeWrite()
			return nil
		}
		s.closeConn()
	}
	return nil
}

func (s *Session) closeWrite() {
	type closeWriter interface {
		CloseWrite() error
	}
	if cw, ok := s.conn.(closeWriter); ok {
		if err := cw.CloseWrite(); err != nil {
			s.logger.Debug().Err(err).Msg("close write")
		}
		return
	}
	s.closeConn()
}

func (s *Session) closeConn() {
	if s.closed {
		return
	}
	s.closed = true
	_ = s.conn.Close()
}

// Package client dials the authentication server over TLS and runs one
// challenge-response protocol per connection.
package client

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/danmuck/authctl/internal/observability"
	"github.com/danmuck/authctl/internal/protocol"
	"github.com/danmuck/authctl/internal/protocol/codec"
	"github.com/danmuck/authctl/internal/protocol/driver"
	"github.com/danmuck/authctl/internal/protocol/machine"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Run is the outcome of one connection.
type Run struct {
	ID         string
	Addr       string
	Started    time.Time
	Duration   time.Duration
	Challenged bool
	driver.Result
}

// Options are per-client hooks.
type Options struct {
	// OnPayload receives session payloads as they are delivered.
	OnPayload driver.PayloadHandler
	// OnRun is called once per finished run, including failed dials.
	OnRun  func(Run)
	Logger *zerolog.Logger
}

type Client struct {
	cfg    Config
	tls    *tls.Config
	codec  *codec.Codec
	opts   Options
	logger zerolog.Logger
}

func New(cfg Config, opts Options) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	pool, err := cfg.rootPool()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", protocol.ErrConfiguration, err)
	}
	c, err := cfg.Profile.Codec()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", protocol.ErrConfiguration, err)
	}
	logger := log.Logger
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	return &Client{
		cfg: cfg,
		tls: &tls.Config{
			MinVersion: tls.VersionTLS12,
			RootCAs:    pool,
			ServerName: cfg.Host,
		},
		codec:  c,
		opts:   opts,
		logger: logger.With().Str("component", "client").Str("suid", cfg.SUID).Logger(),
	}, nil
}

// Connect dials once and runs the protocol to completion. The returned error
// is nil only when the server authenticated the client and the run ended as
// the session policy expects; otherwise it carries the failure kind.
func (c *Client) Connect(ctx context.Context) (Run, error) {
	run := Run{
		ID:      uuid.NewString(),
		Addr:    c.cfg.addr(),
		Started: time.Now(),
	}
	logger := c.logger.With().Str("run_id", run.ID).Str("addr", run.Addr).Logger()

	run.Result = c.run(ctx, &run, logger)
	run.Duration = time.Since(run.Started)

	observability.RecordProtocolRun(run.State, run.Duration)
	logger.Info().
		Str("state", run.State.String()).
		Bool("established", run.Established()).
		Int("payloads", len(run.Payloads)).
		Str("kind", protocol.Kind(run.Err)).
		Dur("duration", run.Duration).
		Msg("protocol run finished")
	if c.opts.OnRun != nil {
		c.opts.OnRun(run)
	}
	return run, runError(run, c.cfg.Profile.SessionPolicy)
}

func (c *Client) run(ctx context.Context, run *Run, logger zerolog.Logger) driver.Result {
	dialer := &net.Dialer{Timeout: c.cfg.ConnectTimeout}
	raw, err := dialer.DialContext(ctx, "tcp", run.Addr)
	if err != nil {
		logger.Warn().Err(err).Msg("dial failed")
		return driver.Result{
			State: machine.StateAbort,
			Err:   fmt.Errorf("%w: dial %s: %w", protocol.ErrTransport, run.Addr, err),
		}
	}

	m, err := machine.New(machine.Config{
		Signer:   c.cfg.Signer,
		Sender:   c.cfg.SUID,
		Policy:   c.cfg.Profile.SessionPolicy,
		Observer: progressObserver{run: run},
		Logger:   &logger,
	})
	if err != nil {
		_ = raw.Close()
		return driver.Result{State: machine.StateAbort, Err: fmt.Errorf("%w: %w", protocol.ErrConfiguration, err)}
	}

	hsCtx := ctx
	if c.cfg.HandshakeTimeout > 0 {
		var cancel context.CancelFunc
		hsCtx, cancel = context.WithTimeout(ctx, c.cfg.HandshakeTimeout)
		defer cancel()
	}
	conn := tls.Client(raw, c.tls.Clone())
	if err := conn.HandshakeContext(hsCtx); err != nil {
		logger.Error().Err(err).Msg("tls handshake failed")
		_ = conn.Close()
		kind := protocol.ErrTransport
		var verr *tls.CertificateVerificationError
		if errors.As(err, &verr) {
			kind = protocol.ErrCertificate
		}
		return driver.Result{
			State: machine.StateAbort,
			Err:   fmt.Errorf("%w: tls handshake: %w", kind, err),
		}
	}

	actor := driver.NewActor(c.cfg.Profile.Policy(), c.codec, m)
	session := driver.NewSession(conn, actor, c.codec, driver.SessionConfig{
		ReadTimeout:  c.cfg.ReadTimeout,
		WriteTimeout: c.cfg.WriteTimeout,
		OnPayload:    c.opts.OnPayload,
		Logger:       &logger,
	})
	return session.Run(ctx)
}

func runError(run Run, policy machine.SessionPolicy) error {
	switch {
	case run.State == machine.StateEnd:
		return nil
	case policy == machine.CloseAfterFirstMessage && run.Established() && errors.Is(run.Err, protocol.ErrSessionClosed):
		return nil
	case run.Err != nil:
		return run.Err
	default:
		return fmt.Errorf("%w: run stopped in state %s", protocol.ErrProtocolViolation, run.State)
	}
}

// progressObserver records whether the server ever issued a challenge and
// forwards every event to the metrics observer.
type progressObserver struct {
	run *Run
}

func (o progressObserver) Transition(from, to machine.State) {
	if to == machine.StateChallenge {
		o.run.Challenged = true
	}
	observability.MachineObserver{}.Transition(from, to)
}

func (o progressObserver) Aborted(from machine.State, reason error) {
	observability.MachineObserver{}.Aborted(from, reason)
}

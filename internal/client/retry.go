package client

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"

	"github.com/danmuck/authctl/internal/protocol"
)

// Delay returns the wait before attempt n (1-based). jitter returns a value
// in [0,1); nil disables the random part and uses the midpoint.
func (b BackoffConfig) Delay(attempt int, jitter func() float64) time.Duration {
	if attempt <= 1 || b.InitialDelay <= 0 {
		return max(b.InitialDelay, 0)
	}
	mult := max(b.Multiplier, 1.0)
	delay := float64(b.InitialDelay) * math.Pow(mult, float64(attempt-1))
	if b.MaxDelay > 0 {
		delay = min(delay, float64(b.MaxDelay))
	}
	if b.Jitter {
		f := 0.5
		if jitter != nil {
			f = 0.5 + jitter()
		}
		delay *= f
	}
	return time.Duration(delay)
}

// Retryable reports whether run failed on the transport before the server
// issued a challenge. A run that received a challenge is never repeated.
func Retryable(run Run, err error) bool {
	return err != nil && !run.Challenged && errors.Is(err, protocol.ErrTransport)
}

// ConnectWithRetry calls Connect until it succeeds, fails in a way that is
// not Retryable, the attempts in cfg.Backoff run out, or ctx ends.
func (c *Client) ConnectWithRetry(ctx context.Context) (Run, error) {
	attempts := max(c.cfg.Backoff.MaxAttempts, 1)
	var (
		run Run
		err error
	)
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			wait := c.cfg.Backoff.Delay(attempt-1, rand.Float64)
			c.logger.Info().Int("attempt", attempt).Dur("wait", wait).Msg("retrying connect")
			t := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				t.Stop()
				return run, errors.Join(err, ctx.Err())
			case <-t.C:
			}
		}
		run, err = c.Connect(ctx)
		if !Retryable(run, err) {
			return run, err
		}
	}
	return run, err
}

package client

import (
	"crypto/x509"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/danmuck/authctl/internal/config"
	"github.com/danmuck/authctl/internal/protocol"
	"github.com/danmuck/authctl/internal/protocol/machine"
)

var (
	ErrSignerRequired = errors.New("client: signer required")
	ErrSUIDRequired   = errors.New("client: suid required")
	ErrHostRequired   = errors.New("client: host required")
	ErrInvalidPort    = errors.New("client: invalid port")
	ErrCARequired     = errors.New("client: ca certificate required")
	ErrInvalidCA      = errors.New("client: ca pem has no certificates")
)

// BackoffConfig defines retry backoff behavior.
type BackoffConfig struct {
	InitialDelay time.Duration
	Multiplier   float64
	MaxDelay     time.Duration
	Jitter       bool
	MaxAttempts  int
}

// Config is the startup configuration of one Client.
type Config struct {
	Signer  machine.Signer
	SUID    string
	CAPEM   []byte
	Host    string
	Port    int
	Profile config.Profile

	ConnectTimeout   time.Duration
	HandshakeTimeout time.Duration
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
	Backoff          BackoffConfig
}

// DefaultConfig returns timeouts and backoff defaults around the default
// profile. Identity and endpoint fields are left empty.
func DefaultConfig() Config {
	return Config{
		Port:             8999,
		Profile:          config.DefaultProfile(),
		ConnectTimeout:   5 * time.Second,
		HandshakeTimeout: 5 * time.Second,
		ReadTimeout:      30 * time.Second,
		WriteTimeout:     15 * time.Second,
		Backoff: BackoffConfig{
			InitialDelay: 250 * time.Millisecond,
			Multiplier:   2.0,
			MaxDelay:     5 * time.Second,
			Jitter:       true,
			MaxAttempts:  3,
		},
	}
}

// Validate rejects incomplete configurations. Every error wraps
// protocol.ErrConfiguration.
func (c Config) Validate() error {
	if err := c.validate(); err != nil {
		return fmt.Errorf("%w: %w", protocol.ErrConfiguration, err)
	}
	return nil
}

func (c Config) validate() error {
	if c.Signer == nil {
		return ErrSignerRequired
	}
	if strings.TrimSpace(c.SUID) == "" {
		return ErrSUIDRequired
	}
	if strings.TrimSpace(c.Host) == "" {
		return ErrHostRequired
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("%w: %d", ErrInvalidPort, c.Port)
	}
	if len(c.CAPEM) == 0 {
		return ErrCARequired
	}
	if _, err := c.rootPool(); err != nil {
		return err
	}
	return config.ValidateProfile(c.Profile)
}

func (c Config) rootPool() (*x509.CertPool, error) {
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(c.CAPEM) {
		return nil, ErrInvalidCA
	}
	return pool, nil
}

func (c Config) addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}

package config

import (
	"fmt"
	"maps"
	"os"
	"strings"
	"time"

	"github.com/danmuck/authctl/internal/protocol"
	"github.com/danmuck/authctl/internal/protocol/certpolicy"
	"github.com/danmuck/authctl/internal/protocol/codec"
	"github.com/danmuck/authctl/internal/protocol/machine"
	"github.com/pelletier/go-toml/v2"
)

// Profile is the immutable trust and wire configuration for protocol runs.
type Profile struct {
	Subject              map[string]string
	MinRemainingValidity time.Duration
	SessionPolicy        machine.SessionPolicy
	TypeNames            codec.TypeNames
}

type profileFile struct {
	Subject              map[string]string `toml:"subject"`
	MinRemainingValidity string            `toml:"min_remaining_validity"`
	SessionPolicy        string            `toml:"session_policy"`
	TypeNames            typeNamesFile     `toml:"type_names"`
}

type typeNamesFile struct {
	Challenge      string `toml:"challenge"`
	Response       string `toml:"response"`
	Success        string `toml:"success"`
	SessionMessage string `toml:"session_message"`
	End            string `toml:"end"`
}

// DefaultProfile returns the reference server identity with a 120 day buffer.
func DefaultProfile() Profile {
	return Profile{
		Subject: map[string]string{
			certpolicy.FieldCountry:      "US",
			certpolicy.FieldState:        "CA",
			certpolicy.FieldLocality:     "Stanford",
			certpolicy.FieldOrganization: "CS 255",
			certpolicy.FieldOrgUnit:      "Project 2",
			certpolicy.FieldCommonName:   "ec2-54-67-122-91.us-west-1.compute.amazonaws.com",
			certpolicy.FieldEmail:        "cs255ta@cs.stanford.edu",
		},
		MinRemainingValidity: certpolicy.DefaultMinRemaining,
		SessionPolicy:        machine.RemainOpenUntilEnd,
		TypeNames:            codec.DefaultTypeNames(),
	}
}

// LoadProfile reads a TOML profile. Absent keys keep DefaultProfile values,
// except [subject], which replaces the default subject entirely when present.
func LoadProfile(path string) (Profile, error) {
	var raw profileFile
	if err := loadToml(path, &raw); err != nil {
		return Profile{}, err
	}
	cfg := DefaultProfile()
	if raw.Subject != nil {
		cfg.Subject = maps.Clone(raw.Subject)
	}
	if v := strings.TrimSpace(raw.MinRemainingValidity); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Profile{}, fmt.Errorf("%w: parse min_remaining_validity: %v", protocol.ErrConfiguration, err)
		}
		cfg.MinRemainingValidity = d
	}
	if v := strings.TrimSpace(raw.SessionPolicy); v != "" {
		p, err := machine.ParseSessionPolicy(v)
		if err != nil {
			return Profile{}, fmt.Errorf("%w: %v", protocol.ErrConfiguration, err)
		}
		cfg.SessionPolicy = p
	}
	overrideName(cfg.TypeNames, codec.TypeChallenge, raw.TypeNames.Challenge)
	overrideName(cfg.TypeNames, codec.TypeResponse, raw.TypeNames.Response)
	overrideName(cfg.TypeNames, codec.TypeSuccess, raw.TypeNames.Success)
	overrideName(cfg.TypeNames, codec.TypeSessionMessage, raw.TypeNames.SessionMessage)
	overrideName(cfg.TypeNames, codec.TypeEnd, raw.TypeNames.End)

	if err := ValidateProfile(cfg); err != nil {
		return Profile{}, err
	}
	return cfg, nil
}

func overrideName(names codec.TypeNames, t codec.MessageType, v string) {
	if v = strings.TrimSpace(v); v != "" {
		names[t] = v
	}
}

func loadToml(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("%w: config load failed (%s): %v", protocol.ErrConfiguration, path, err)
	}
	if err := toml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: config parse failed (%s): %v", protocol.ErrConfiguration, path, err)
	}
	return nil
}

func ValidateProfile(cfg Profile) error {
	if len(cfg.Subject) == 0 {
		return fmt.Errorf("%w: profile missing subject", protocol.ErrConfiguration)
	}
	for field, v := range cfg.Subject {
		if strings.TrimSpace(field) == "" || v == "" {
			return fmt.Errorf("%w: profile subject field %q is empty", protocol.ErrConfiguration, field)
		}
	}
	if cfg.MinRemainingValidity < 0 {
		return fmt.Errorf("%w: negative min_remaining_validity", protocol.ErrConfiguration)
	}
	if _, err := codec.New(cfg.TypeNames); err != nil {
		return fmt.Errorf("%w: %v", protocol.ErrConfiguration, err)
	}
	return nil
}

// Policy builds the certificate policy for this profile.
func (p Profile) Policy() *certpolicy.Policy {
	return certpolicy.New(p.Subject, p.MinRemainingValidity)
}

// Codec builds the message codec for this profile.
func (p Profile) Codec() (*codec.Codec, error) {
	return codec.New(p.TypeNames)
}

// Encode writes p in the same TOML form LoadProfile reads.
func (p Profile) Encode() ([]byte, error) {
	return toml.Marshal(profileFile{
		Subject:              maps.Clone(p.Subject),
		MinRemainingValidity: p.MinRemainingValidity.String(),
		SessionPolicy:        p.SessionPolicy.String(),
		TypeNames: typeNamesFile{
			Challenge:      p.TypeNames[codec.TypeChallenge],
			Response:       p.TypeNames[codec.TypeResponse],
			Success:        p.TypeNames[codec.TypeSuccess],
			SessionMessage: p.TypeNames[codec.TypeSessionMessage],
			End:            p.TypeNames[codec.TypeEnd],
		},
	})
}

package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/danmuck/authctl/internal/protocol"
	"github.com/danmuck/authctl/internal/protocol/certpolicy"
	"github.com/danmuck/authctl/internal/protocol/codec"
	"github.com/danmuck/authctl/internal/protocol/machine"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "profile.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write profile: %v", err)
	}
	return path
}

func TestDefaultProfileIsValid(t *testing.T) {
	cfg := DefaultProfile()
	if err := ValidateProfile(cfg); err != nil {
		t.Fatalf("default profile invalid: %v", err)
	}
	if cfg.MinRemainingValidity != 120*24*time.Hour {
		t.Fatalf("unexpected buffer: %v", cfg.MinRemainingValidity)
	}
	if len(cfg.Subject) != 7 {
		t.Fatalf("unexpected subject: %+v", cfg.Subject)
	}
}

func TestLoadProfileOverrides(t *testing.T) {
	path := writeFile(t, `
min_remaining_validity = "720h"
session_policy = "close-after-first-message"

[subject]
CN = "auth.example.test"
O = "Example"

[type_names]
challenge = "0"
end = "4"
`)
	cfg, err := LoadProfile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.MinRemainingValidity != 720*time.Hour {
		t.Fatalf("unexpected buffer: %v", cfg.MinRemainingValidity)
	}
	if cfg.SessionPolicy != machine.CloseAfterFirstMessage {
		t.Fatalf("unexpected policy: %v", cfg.SessionPolicy)
	}
	if len(cfg.Subject) != 2 || cfg.Subject[certpolicy.FieldCommonName] != "auth.example.test" {
		t.Fatalf("unexpected subject: %+v", cfg.Subject)
	}
	if cfg.TypeNames[codec.TypeChallenge] != "0" || cfg.TypeNames[codec.TypeSuccess] != "SUCCESS" {
		t.Fatalf("unexpected names: %+v", cfg.TypeNames)
	}
	if _, err := cfg.Codec(); err != nil {
		t.Fatalf("codec: %v", err)
	}
	if got := cfg.Policy().Expected(); got[certpolicy.FieldOrganization] != "Example" {
		t.Fatalf("unexpected policy subject: %+v", got)
	}
}

func TestLoadProfileErrors(t *testing.T) {
	cases := map[string]string{
		"bad duration":   `min_remaining_validity = "soon"`,
		"bad policy":     `session_policy = "forever"`,
		"duplicate name": "[type_names]\nchallenge = \"END\"",
		"empty subject":  "[subject]\nCN = \"\"",
		"bad toml":       `subject = [`,
	}
	for name, content := range cases {
		if _, err := LoadProfile(writeFile(t, content)); !errors.Is(err, protocol.ErrConfiguration) {
			t.Fatalf("%s: expected ErrConfiguration, got %v", name, err)
		}
	}
	if _, err := LoadProfile(filepath.Join(t.TempDir(), "missing.toml")); !errors.Is(err, protocol.ErrConfiguration) {
		t.Fatalf("missing file: expected ErrConfiguration, got %v", err)
	}
}

func TestProfileEncodeRoundTrip(t *testing.T) {
	in := DefaultProfile()
	in.SessionPolicy = machine.CloseAfterFirstMessage
	data, err := in.Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	out, err := LoadProfile(writeFile(t, string(data)))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if out.SessionPolicy != in.SessionPolicy || out.MinRemainingValidity != in.MinRemainingValidity {
		t.Fatalf("profile mismatch: in=%+v out=%+v", in, out)
	}
	for k, v := range in.Subject {
		if out.Subject[k] != v {
			t.Fatalf("subject %s mismatch: %q vs %q", k, out.Subject[k], v)
		}
	}
}

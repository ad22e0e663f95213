package crypto

import (
	"errors"
	"strings"
	"testing"
)

const challenge = "102fae05e50ebf4dad16b50dbe6184227b4cb4e31ea2f28416f501c122dc2022"

func newTestSigner(t *testing.T) *Signer {
	t.Helper()
	key, err := GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	s, err := NewSigner(key)
	if err != nil {
		t.Fatalf("new signer: %v", err)
	}
	return s
}

func TestSignHexVerifies(t *testing.T) {
	s := newTestSigner(t)
	sig, err := s.SignHex(challenge)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if len(sig) != 2*signatureSize {
		t.Fatalf("unexpected signature length: %d", len(sig))
	}
	if !VerifyHex(s.Public(), challenge, sig) {
		t.Fatalf("signature did not verify")
	}
	if VerifyHex(s.Public(), strings.Replace(challenge, "1", "2", 1), sig) {
		t.Fatalf("signature verified over a different challenge")
	}
}

func TestSignHexRejectsBadHex(t *testing.T) {
	s := newTestSigner(t)
	for _, in := range []string{"", "zz", "abc"} {
		if _, err := s.SignHex(in); !errors.Is(err, ErrInvalidHex) {
			t.Fatalf("SignHex(%q) expected ErrInvalidHex, got %v", in, err)
		}
	}
}

func TestPublicKeyRoundTrip(t *testing.T) {
	s := newTestSigner(t)
	wire, err := MarshalPublicKey(s.Public())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	pub, err := ParsePublicKey(wire)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !pub.Equal(s.Public()) {
		t.Fatalf("public key mismatch")
	}
	if Fingerprint(pub) != Fingerprint(s.Public()) || len(Fingerprint(pub)) != 20 {
		t.Fatalf("unexpected fingerprint: %q", Fingerprint(pub))
	}
}

func TestParsePublicKeyRejectsOffCurve(t *testing.T) {
	if _, err := ParsePublicKey(strings.Repeat("01", 64)); !errors.Is(err, ErrInvalidPublicKey) {
		t.Fatalf("expected ErrInvalidPublicKey, got %v", err)
	}
	if _, err := ParsePublicKey("0102"); !errors.Is(err, ErrInvalidPublicKey) {
		t.Fatalf("expected ErrInvalidPublicKey for short key, got %v", err)
	}
}

func TestPrivateKeyRoundTrip(t *testing.T) {
	key, err := GenerateKey()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	der, err := MarshalPrivateKey(key)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	back, err := ParsePrivateKey(der)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !back.Equal(key) {
		t.Fatalf("private key mismatch")
	}
}

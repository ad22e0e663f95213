// Package certpolicy decides whether a server certificate is acceptable for a
// protocol run beyond what chain verification already established.
package certpolicy

import (
	"crypto/sha256"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"fmt"
	"maps"
	"strings"
	"time"

	"github.com/danmuck/authctl/internal/protocol"
)

// Subject field keys, named the way certificate dumps name them.
const (
	FieldCountry      = "C"
	FieldState        = "ST"
	FieldLocality     = "L"
	FieldOrganization = "O"
	FieldOrgUnit      = "OU"
	FieldCommonName   = "CN"
	FieldEmail        = "emailAddress"
)

// DefaultMinRemaining is the validity buffer a certificate must still cover.
const DefaultMinRemaining = 120 * 24 * time.Hour

var oidEmailAddress = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 9, 1}

// PeerCertificate is the transport-neutral view of a server certificate.
// Nil times and nil maps mean the field was absent.
type PeerCertificate struct {
	ValidFrom   *time.Time
	ValidTo     *time.Time
	Issuer      map[string]string
	Subject     map[string]string
	Fingerprint string
}

// FromX509 projects an x509 certificate onto PeerCertificate.
func FromX509(cert *x509.Certificate) PeerCertificate {
	if cert == nil {
		return PeerCertificate{}
	}
	from, to := cert.NotBefore, cert.NotAfter
	sum := sha256.Sum256(cert.Raw)
	return PeerCertificate{
		ValidFrom:   &from,
		ValidTo:     &to,
		Issuer:      nameFields(cert.Issuer),
		Subject:     nameFields(cert.Subject),
		Fingerprint: colonHex(sum[:]),
	}
}

func nameFields(n pkix.Name) map[string]string {
	out := map[string]string{}
	put := func(key string, vals []string) {
		if len(vals) > 0 {
			out[key] = strings.Join(vals, "\n")
		}
	}
	put(FieldCountry, n.Country)
	put(FieldState, n.Province)
	put(FieldLocality, n.Locality)
	put(FieldOrganization, n.Organization)
	put(FieldOrgUnit, n.OrganizationalUnit)
	if n.CommonName != "" {
		out[FieldCommonName] = n.CommonName
	}
	for _, atv := range n.Names {
		if atv.Type.Equal(oidEmailAddress) {
			if v, ok := atv.Value.(string); ok {
				out[FieldEmail] = v
			}
		}
	}
	return out
}

func colonHex(b []byte) string {
	parts := make([]string, len(b))
	for i, c := range b {
		parts[i] = fmt.Sprintf("%02X", c)
	}
	return strings.Join(parts, ":")
}

// Policy holds the expected server identity. It is immutable once built.
type Policy struct {
	expected     map[string]string
	minRemaining time.Duration
	now          func() time.Time
}

// New builds a Policy from the expected subject fields and validity buffer.
func New(expected map[string]string, minRemaining time.Duration) *Policy {
	return &Policy{
		expected:     maps.Clone(expected),
		minRemaining: minRemaining,
		now:          time.Now,
	}
}

// WithClock returns a copy of p that reads the current time from now.
func (p *Policy) WithClock(now func() time.Time) *Policy {
	cp := *p
	cp.now = now
	return &cp
}

// Expected returns a copy of the expected subject fields.
func (p *Policy) Expected() map[string]string {
	return maps.Clone(p.expected)
}

// Validate reports whether cert is acceptable. It never panics on partial input.
func (p *Policy) Validate(cert PeerCertificate) bool {
	return p.Check(cert) == nil
}

// Check is Validate with the rejection reason wrapped in protocol.ErrCertificate.
func (p *Policy) Check(cert PeerCertificate) error {
	switch {
	case cert.ValidFrom == nil:
		return fmt.Errorf("%w: missing valid_from", protocol.ErrCertificate)
	case cert.ValidTo == nil:
		return fmt.Errorf("%w: missing valid_to", protocol.ErrCertificate)
	case cert.Issuer == nil:
		return fmt.Errorf("%w: missing issuer", protocol.ErrCertificate)
	case cert.Subject == nil:
		return fmt.Errorf("%w: missing subject", protocol.ErrCertificate)
	case cert.Fingerprint == "":
		return fmt.Errorf("%w: missing fingerprint", protocol.ErrCertificate)
	}

	now := p.now()
	if now.Before(*cert.ValidFrom) {
		return fmt.Errorf("%w: not valid before %s", protocol.ErrCertificate, cert.ValidFrom.Format(time.RFC3339))
	}
	if now.Add(p.minRemaining).After(*cert.ValidTo) {
		return fmt.Errorf("%w: expires %s within %s", protocol.ErrCertificate, cert.ValidTo.Format(time.RFC3339), p.minRemaining)
	}

	for field, want := range p.expected {
		got, ok := cert.Subject[field]
		if !ok || got != want {
			return fmt.Errorf("%w: subject %s expected %q found %q", protocol.ErrCertificate, field, want, got)
		}
	}
	return nil
}

package crypto

import (
	"crypto/ecdh"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"math/big"
)

const (
	// CurveName identifies the curve for interoperability with peers.
	CurveName = "P-256"

	coordSize     = 32
	signatureSize = 2 * coordSize
)

var (
	ErrNilKey           = errors.New("crypto: nil key")
	ErrInvalidPublicKey = errors.New("crypto: invalid public key")
	ErrInvalidSignature = errors.New("crypto: invalid signature")
)

// GenerateKey returns a fresh P-256 signing key.
func GenerateKey() (*ecdsa.PrivateKey, error) {
	return ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
}

// MarshalPrivateKey returns the SEC1 DER form of key.
func MarshalPrivateKey(key *ecdsa.PrivateKey) ([]byte, error) {
	if key == nil {
		return nil, ErrNilKey
	}
	return x509.MarshalECPrivateKey(key)
}

// ParsePrivateKey parses a SEC1 DER P-256 key.
func ParsePrivateKey(der []byte) (*ecdsa.PrivateKey, error) {
	key, err := x509.ParseECPrivateKey(der)
	if err != nil {
		return nil, err
	}
	if key.Curve != elliptic.P256() {
		return nil, fmt.Errorf("crypto: unsupported curve %s", key.Curve.Params().Name)
	}
	return key, nil
}

// MarshalPublicKey returns hex of the uncompressed X||Y coordinates.
func MarshalPublicKey(pub *ecdsa.PublicKey) (string, error) {
	if pub == nil {
		return "", ErrNilKey
	}
	ek, err := pub.ECDH()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidPublicKey, err)
	}
	// strip the 0x04 uncompressed point prefix
	return BitsToHex(ek.Bytes()[1:]), nil
}

// ParsePublicKey reverses MarshalPublicKey and checks the point is on the curve.
func ParsePublicKey(s string) (*ecdsa.PublicKey, error) {
	raw, err := HexToBits(s)
	if err != nil {
		return nil, err
	}
	if len(raw) != 2*coordSize {
		return nil, fmt.Errorf("%w: length %d", ErrInvalidPublicKey, len(raw))
	}
	point := append([]byte{0x04}, raw...)
	if _, err := ecdh.P256().NewPublicKey(point); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPublicKey, err)
	}
	return &ecdsa.PublicKey{
		Curve: elliptic.P256(),
		X:     new(big.Int).SetBytes(raw[:coordSize]),
		Y:     new(big.Int).SetBytes(raw[coordSize:]),
	}, nil
}

// Signer produces hex signatures over hex-encoded inputs with a held key.
type Signer struct {
	key  *ecdsa.PrivateKey
	rand io.Reader
}

func NewSigner(key *ecdsa.PrivateKey) (*Signer, error) {
	if key == nil {
		return nil, ErrNilKey
	}
	return &Signer{key: key, rand: rand.Reader}, nil
}

func (s *Signer) Public() *ecdsa.PublicKey {
	return &s.key.PublicKey
}

// SignHex decodes the hex input, signs it, and returns hex of r||s.
func (s *Signer) SignHex(input string) (string, error) {
	digest, err := HexToBits(input)
	if err != nil {
		return "", err
	}
	sig, err := s.Sign(digest)
	if err != nil {
		return "", err
	}
	return BitsToHex(sig), nil
}

// Sign returns the fixed-width r||s signature over digest.
func (s *Signer) Sign(digest []byte) ([]byte, error) {
	r, ss, err := ecdsa.Sign(s.rand, s.key, digest)
	if err != nil {
		return nil, err
	}
	out := make([]byte, signatureSize)
	r.FillBytes(out[:coordSize])
	ss.FillBytes(out[coordSize:])
	return out, nil
}

// VerifyHex reports whether sigHex is a valid signature by pub over inputHex.
func VerifyHex(pub *ecdsa.PublicKey, inputHex, sigHex string) bool {
	if pub == nil {
		return false
	}
	digest, err := HexToBits(inputHex)
	if err != nil {
		return false
	}
	sig, err := HexToBits(sigHex)
	if err != nil || len(sig) != signatureSize {
		return false
	}
	r := new(big.Int).SetBytes(sig[:coordSize])
	s := new(big.Int).SetBytes(sig[coordSize:])
	return ecdsa.Verify(pub, digest, r, s)
}

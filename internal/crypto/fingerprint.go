package crypto

import (
	"crypto/ecdsa"
	"crypto/sha256"
	"encoding/hex"
)

// Fingerprint returns a short hex fingerprint of a public key.
//
// It hashes the wire form with SHA-256 and truncates to 10 bytes (20 hex chars).
func Fingerprint(pub *ecdsa.PublicKey) string {
	wire, err := MarshalPublicKey(pub)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256([]byte(wire))
	return hex.EncodeToString(sum[:10])
}

package crypto

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

var ErrInvalidHex = errors.New("crypto: invalid hex")

// HexToBits decodes a hex string into the raw bytes handed to the signer.
func HexToBits(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("%w: empty input", ErrInvalidHex)
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidHex, err)
	}
	return b, nil
}

// BitsToHex encodes raw bytes as lowercase hex.
func BitsToHex(b []byte) string {
	return hex.EncodeToString(b)
}

// Package crypto adapts ECDSA P-256 signing to the hex encodings used on the wire.
//
// Challenges and tokens arrive as hex strings. They are decoded to raw bytes,
// signed as the digest, and the fixed-width r||s signature is returned as hex.
// Public keys travel as hex of the uncompressed X||Y coordinates.
package crypto

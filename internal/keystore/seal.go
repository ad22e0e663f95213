// Package keystore persists signing identities sealed under a passphrase.
//
// A Record holds the scrypt parameters, a chacha20poly1305 ciphertext of the
// SEC1 private key, and the public key in clear so identities can be listed
// without the passphrase. Records are CBOR encoded, both in the bbolt Store
// and in standalone key files.
package keystore

import (
	"crypto/cipher"
	"crypto/ecdsa"
	"crypto/rand"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/danmuck/authctl/internal/crypto"
	"github.com/fxamacker/cbor/v2"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/scrypt"
)

const recordVersion = 1

var (
	ErrWrongPassphrase = errors.New("keystore: wrong passphrase or corrupted record")
	ErrEmptyPassphrase = errors.New("keystore: passphrase required")
	ErrSUIDRequired    = errors.New("keystore: suid required")
	ErrUnsupported     = errors.New("keystore: unsupported record version")
)

// Params are the scrypt cost parameters.
type Params struct {
	N int
	R int
	P int
}

func DefaultParams() Params {
	return Params{N: 1 << 15, R: 8, P: 1}
}

// Record is the sealed form of one identity.
type Record struct {
	Version   int       `cbor:"1,keyasint"`
	SUID      string    `cbor:"2,keyasint"`
	PubKey    string    `cbor:"3,keyasint"`
	Salt      []byte    `cbor:"4,keyasint"`
	N         int       `cbor:"5,keyasint"`
	R         int       `cbor:"6,keyasint"`
	P         int       `cbor:"7,keyasint"`
	Nonce     []byte    `cbor:"8,keyasint"`
	Cipher    []byte    `cbor:"9,keyasint"`
	CreatedAt time.Time `cbor:"10,keyasint"`
}

// Identity is an unsealed signing key and the user it belongs to.
type Identity struct {
	SUID string
	Key  *ecdsa.PrivateKey
}

// Signer returns a crypto.Signer over the identity's key.
func (id Identity) Signer() (*crypto.Signer, error) {
	return crypto.NewSigner(id.Key)
}

// Seal encrypts key for suid under passphrase.
func Seal(suid, passphrase string, key *ecdsa.PrivateKey, params Params) (Record, error) {
	suid = strings.TrimSpace(suid)
	if suid == "" {
		return Record{}, ErrSUIDRequired
	}
	if passphrase == "" {
		return Record{}, ErrEmptyPassphrase
	}
	raw, err := crypto.MarshalPrivateKey(key)
	if err != nil {
		return Record{}, err
	}
	pub, err := crypto.MarshalPublicKey(&key.PublicKey)
	if err != nil {
		return Record{}, err
	}

	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return Record{}, err
	}
	aead, err := deriveAEAD(passphrase, salt, params)
	if err != nil {
		return Record{}, err
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return Record{}, err
	}

	return Record{
		Version:   recordVersion,
		SUID:      suid,
		PubKey:    pub,
		Salt:      salt,
		N:         params.N,
		R:         params.R,
		P:         params.P,
		Nonce:     nonce,
		Cipher:    aead.Seal(nil, nonce, raw, []byte(suid)),
		CreatedAt: time.Now().UTC(),
	}, nil
}

// Open decrypts rec with passphrase.
func Open(rec Record, passphrase string) (Identity, error) {
	if rec.Version > recordVersion {
		return Identity{}, fmt.Errorf("%w: %d", ErrUnsupported, rec.Version)
	}
	if passphrase == "" {
		return Identity{}, ErrEmptyPassphrase
	}
	aead, err := deriveAEAD(passphrase, rec.Salt, Params{N: rec.N, R: rec.R, P: rec.P})
	if err != nil {
		return Identity{}, err
	}
	if len(rec.Nonce) != aead.NonceSize() {
		return Identity{}, ErrWrongPassphrase
	}
	raw, err := aead.Open(nil, rec.Nonce, rec.Cipher, []byte(rec.SUID))
	if err != nil {
		return Identity{}, ErrWrongPassphrase
	}
	key, err := crypto.ParsePrivateKey(raw)
	if err != nil {
		return Identity{}, err
	}
	return Identity{SUID: rec.SUID, Key: key}, nil
}

func deriveAEAD(passphrase string, salt []byte, params Params) (cipher.AEAD, error) {
	key, err := scrypt.Key([]byte(passphrase), salt, params.N, params.R, params.P, chacha20poly1305.KeySize)
	if err != nil {
		return nil, err
	}
	return chacha20poly1305.New(key)
}

// Marshal returns the CBOR form of rec.
func (rec Record) Marshal() ([]byte, error) {
	return cbor.Marshal(rec)
}

// UnmarshalRecord parses the CBOR form of a Record.
func UnmarshalRecord(b []byte) (Record, error) {
	var rec Record
	if err := cbor.Unmarshal(b, &rec); err != nil {
		return Record{}, fmt.Errorf("keystore: decode record: %w", err)
	}
	return rec, nil
}

// WriteFile stores rec at path via a temp file then rename.
func WriteFile(path string, rec Record) error {
	b, err := rec.Marshal()
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// ReadFile loads a Record written by WriteFile.
func ReadFile(path string) (Record, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Record{}, err
	}
	return UnmarshalRecord(b)
}

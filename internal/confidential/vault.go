// Package confidential provides the opaque encryption capability used for
// privacy flags and moves. Plaintext is only recoverable through Decrypt by a
// principal the ciphertext was authorized for.
package confidential

import (
	"crypto/cipher"
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"slices"
	"strings"

	"cipher-rooms/internal/ids"

	"golang.org/x/crypto/chacha20poly1305"
)

type Kind string

const (
	KindBool  Kind = "ebool"
	KindUint8 Kind = "euint8"
)

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrMalformed    = errors.New("malformed_ciphertext")
	ErrOutOfRange   = errors.New("value_out_of_range")
)

// Ciphertext is self-contained: the reader list travels with the sealed
// value and is bound to it as associated data.
type Ciphertext struct {
	Handle  string   `json:"handle"`
	Kind    Kind     `json:"kind"`
	Readers []string `json:"readers,omitempty"`
	Nonce   []byte   `json:"nonce"`
	Sealed  []byte   `json:"sealed"`
}

func (c Ciphertext) IsZero() bool {
	return c.Handle == ""
}

func (c Ciphertext) ReadableBy(principal string) bool {
	return principal != "" && slices.Contains(c.Readers, principal)
}

type Cipher interface {
	Encrypt(kind Kind, value uint64) (Ciphertext, error)
	Authorize(ct Ciphertext, principal string) (Ciphertext, error)
	Decrypt(ct Ciphertext, principal string) (uint64, error)
}

// Vault seals values with XChaCha20-Poly1305 under a single key.
type Vault struct {
	aead cipher.AEAD
}

// NewVault builds a vault from a 32-byte key. An empty key generates a random
// one, which makes ciphertexts unreadable after a restart.
func NewVault(key []byte) (*Vault, error) {
	if len(key) == 0 {
		key = make([]byte, chacha20poly1305.KeySize)
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("generate vault key: %w", err)
		}
	}
	if len(key) != chacha20poly1305.KeySize {
		return nil, fmt.Errorf("vault key must be %d bytes, got %d", chacha20poly1305.KeySize, len(key))
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	return &Vault{aead: aead}, nil
}

// ParseKey decodes a hex key. Empty input yields a nil key.
func ParseKey(raw string) ([]byte, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	key, err := hex.DecodeString(raw)
	if err != nil {
		return nil, fmt.Errorf("decode vault key: %w", err)
	}
	return key, nil
}

func (v *Vault) Encrypt(kind Kind, value uint64) (Ciphertext, error) {
	if err := checkRange(kind, value); err != nil {
		return Ciphertext{}, err
	}
	ct := Ciphertext{Handle: ids.New(), Kind: kind}
	return v.seal(ct, value)
}

func (v *Vault) Authorize(ct Ciphertext, principal string) (Ciphertext, error) {
	principal = strings.TrimSpace(principal)
	if principal == "" {
		return Ciphertext{}, fmt.Errorf("principal is required")
	}
	if ct.ReadableBy(principal) {
		return ct, nil
	}
	value, err := v.open(ct)
	if err != nil {
		return Ciphertext{}, err
	}
	next := Ciphertext{
		Handle:  ct.Handle,
		Kind:    ct.Kind,
		Readers: append(slices.Clone(ct.Readers), principal),
	}
	slices.Sort(next.Readers)
	return v.seal(next, value)
}

func (v *Vault) Decrypt(ct Ciphertext, principal string) (uint64, error) {
	if !ct.ReadableBy(principal) {
		return 0, ErrUnauthorized
	}
	return v.open(ct)
}

func (v *Vault) seal(ct Ciphertext, value uint64) (Ciphertext, error) {
	nonce := make([]byte, v.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return Ciphertext{}, fmt.Errorf("generate nonce: %w", err)
	}
	var plain [8]byte
	binary.BigEndian.PutUint64(plain[:], value)
	ct.Nonce = nonce
	ct.Sealed = v.aead.Seal(nil, nonce, plain[:], associatedData(ct))
	return ct, nil
}

func (v *Vault) open(ct Ciphertext) (uint64, error) {
	if ct.Handle == "" || len(ct.Nonce) != v.aead.NonceSize() {
		return 0, ErrMalformed
	}
	plain, err := v.aead.Open(nil, ct.Nonce, ct.Sealed, associatedData(ct))
	if err != nil || len(plain) != 8 {
		return 0, ErrMalformed
	}
	value := binary.BigEndian.Uint64(plain)
	if err := checkRange(ct.Kind, value); err != nil {
		return 0, ErrMalformed
	}
	return value, nil
}

func associatedData(ct Ciphertext) []byte {
	var b strings.Builder
	b.WriteString(ct.Handle)
	b.WriteByte('|')
	b.WriteString(string(ct.Kind))
	for _, r := range ct.Readers {
		b.WriteByte('|')
		b.WriteString(r)
	}
	return []byte(b.String())
}

func checkRange(kind Kind, value uint64) error {
	switch kind {
	case KindBool:
		if value > 1 {
			return ErrOutOfRange
		}
	case KindUint8:
		if value > 255 {
			return ErrOutOfRange
		}
	default:
		return fmt.Errorf("unknown ciphertext kind %q", kind)
	}
	return nil
}

// Bool converts a flag to its encrypted-domain integer form.
func Bool(v bool) uint64 {
	if v {
		return 1
	}
	return 0
}

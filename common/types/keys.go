package types

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

const (
	// SeedSize is the size of the secret a publisher derives its logs from.
	SeedSize = 32
	// KeySize is the size of a log public key and of a discovery key.
	KeySize = 32

	// URLScheme prefixes published drive urls.
	URLScheme = "hyper://"
)

var (
	// ErrInvalidSeed is returned when a seed can't be decoded.
	ErrInvalidSeed = errors.New("invalid seed")
	// ErrInvalidKey is returned when a public key or url can't be decoded.
	ErrInvalidKey = errors.New("invalid key")
)

// Seed is the secret that deterministically derives the key pairs of a publisher logs.
type Seed [SeedSize]byte

// RandomSeed generates a new seed from crypto/rand.
func RandomSeed() (Seed, error) {
	var s Seed
	if _, err := rand.Read(s[:]); err != nil {
		return s, fmt.Errorf("read random seed: %w", err)
	}
	return s, nil
}

// ParseSeed decodes a hex encoded seed.
func ParseSeed(s string) (Seed, error) {
	var seed Seed
	if err := decodeHex(seed[:], strings.TrimSpace(s)); err != nil {
		return seed, fmt.Errorf("%w: %w", ErrInvalidSeed, err)
	}
	return seed, nil
}

// String returns hex encoding of the seed.
func (s Seed) String() string {
	return hex.EncodeToString(s[:])
}

// IsZero is true for the zero value.
func (s Seed) IsZero() bool {
	return s == Seed{}
}

// PublicKey is the public half of a log key pair and the public identity of a log.
type PublicKey [KeySize]byte

// ParsePublicKey decodes a hex encoded key, with or without the url scheme.
func ParsePublicKey(s string) (PublicKey, error) {
	var key PublicKey
	s = strings.TrimPrefix(strings.TrimSpace(s), URLScheme)
	s = strings.TrimSuffix(s, "/")
	if err := decodeHex(key[:], s); err != nil {
		return key, fmt.Errorf("%w: %w", ErrInvalidKey, err)
	}
	return key, nil
}

// String returns hex encoding of the key.
func (k PublicKey) String() string {
	return hex.EncodeToString(k[:])
}

// ShortString returns the first 4 bytes of the key in hex.
func (k PublicKey) ShortString() string {
	return hex.EncodeToString(k[:4])
}

// URL returns the public url of a drive whose metadata log has this key.
func (k PublicKey) URL() string {
	return URLScheme + k.String()
}

// DiscoveryKey identifies a log on the wire without revealing its public key.
type DiscoveryKey [KeySize]byte

// String returns hex encoding of the key.
func (k DiscoveryKey) String() string {
	return hex.EncodeToString(k[:])
}

// ShortString returns the first 4 bytes of the key in hex.
func (k DiscoveryKey) ShortString() string {
	return hex.EncodeToString(k[:4])
}

func decodeHex(dst []byte, s string) error {
	if hex.DecodedLen(len(s)) != len(dst) {
		return fmt.Errorf("expected %d hex characters, got %d", hex.EncodedLen(len(dst)), len(s))
	}
	_, err := hex.Decode(dst, []byte(s))
	return err
}

// EdSignatureSize is the size of an ed25519 signature.
const EdSignatureSize = 64

// EdSignature is an ed25519 signature.
type EdSignature [EdSignatureSize]byte

// String returns hex encoding of the signature.
func (s EdSignature) String() string {
	return hex.EncodeToString(s[:])
}

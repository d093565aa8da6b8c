package signing

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/oasisprotocol/curve25519-voi/primitives/ed25519"

	"github.com/spacemeshos/go-publisher/common/types"
)

// Domain separates signatures of different message kinds made with the same key.
type Domain byte

const (
	BLOCK Domain = 0
)

// String returns the string representation of a domain.
func (d Domain) String() string {
	switch d {
	case BLOCK:
		return "BLOCK"
	default:
		return "UNKNOWN"
	}
}

type edSignerOption struct {
	priv   PrivateKey
	prefix []byte
}

// EdSignerOptionFunc modifies EdSigner.
type EdSignerOptionFunc func(*edSignerOption) error

// WithPrefix sets the prefix used by EdSigner. For log signers this is the discovery key of the log.
func WithPrefix(prefix []byte) EdSignerOptionFunc {
	return func(opt *edSignerOption) error {
		opt.prefix = prefix
		return nil
	}
}

// WithPrivateKey sets the private key used by EdSigner.
func WithPrivateKey(priv PrivateKey) EdSignerOptionFunc {
	return func(opt *edSignerOption) error {
		if opt.priv != nil {
			return errors.New("invalid option WithPrivateKey: private key already set")
		}
		if len(priv) != ed25519.PrivateKeySize {
			return errors.New("could not create EdSigner: invalid key length")
		}
		keyPair := ed25519.NewKeyFromSeed(priv[:ed25519.SeedSize])
		if !bytes.Equal(keyPair[ed25519.SeedSize:], priv.Public().(ed25519.PublicKey)) {
			return errors.New("private and public do not match")
		}
		opt.priv = priv
		return nil
	}
}

// WithKeySeed derives the private key from a 32 byte seed.
func WithKeySeed(seed [ed25519.SeedSize]byte) EdSignerOptionFunc {
	return func(opt *edSignerOption) error {
		if opt.priv != nil {
			return errors.New("invalid option WithKeySeed: private key already set")
		}
		opt.priv = ed25519.NewKeyFromSeed(seed[:])
		return nil
	}
}

// EdSigner represents an ED25519 signer.
type EdSigner struct {
	priv   PrivateKey
	prefix []byte
}

// NewEdSigner returns an ed signer, with a random key unless one of the key options is used.
func NewEdSigner(opts ...EdSignerOptionFunc) (*EdSigner, error) {
	cfg := &edSignerOption{}
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}
	if cfg.priv == nil {
		_, priv, err := ed25519.GenerateKey(nil)
		if err != nil {
			return nil, fmt.Errorf("could not generate key pair: %w", err)
		}
		cfg.priv = priv
	}
	return &EdSigner{
		priv:   cfg.priv,
		prefix: cfg.prefix,
	}, nil
}

// Sign signs the provided message.
func (es *EdSigner) Sign(d Domain, m []byte) types.EdSignature {
	return *(*[types.EdSignatureSize]byte)(ed25519.Sign(es.priv, message(es.prefix, d, m)))
}

// PublicKey returns the public key of the signer.
func (es *EdSigner) PublicKey() types.PublicKey {
	return types.PublicKey(es.priv.Public().(ed25519.PublicKey))
}

// PrivateKey returns private key.
func (es *EdSigner) PrivateKey() PrivateKey {
	return es.priv
}

func message(prefix []byte, d Domain, m []byte) []byte {
	msg := make([]byte, 0, len(prefix)+1+len(m))
	msg = append(msg, prefix...)
	msg = append(msg, byte(d))
	msg = append(msg, m...)
	return msg
}

package signing

import (
	"github.com/oasisprotocol/curve25519-voi/primitives/ed25519"

	"github.com/spacemeshos/go-publisher/common/types"
)

type edVerifierOption struct {
	prefix []byte
}

// VerifierOptionFunc to modify verifier.
type VerifierOptionFunc func(*edVerifierOption)

// WithVerifierPrefix sets the prefix used by EdVerifier. It must match the prefix of the signer.
func WithVerifierPrefix(prefix []byte) VerifierOptionFunc {
	return func(opts *edVerifierOption) {
		opts.prefix = prefix
	}
}

// EdVerifier verifies signatures made by EdSigner.
type EdVerifier struct {
	prefix []byte
}

func NewEdVerifier(opts ...VerifierOptionFunc) *EdVerifier {
	cfg := &edVerifierOption{}
	for _, opt := range opts {
		opt(cfg)
	}
	return &EdVerifier{prefix: cfg.prefix}
}

// Verify verifies that a signature matches public key and message.
func (ev *EdVerifier) Verify(d Domain, pub types.PublicKey, m []byte, sig types.EdSignature) bool {
	return ed25519.Verify(pub[:], message(ev.prefix, d, m), sig[:])
}

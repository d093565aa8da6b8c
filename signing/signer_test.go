package signing

import (
	"crypto/rand"
	"testing"

	"github.com/oasisprotocol/curve25519-voi/primitives/ed25519"
	"github.com/stretchr/testify/require"

	"github.com/spacemeshos/go-publisher/common/types"
)

func TestNewEdSignerFromBuffer(t *testing.T) {
	b := []byte{1, 2, 3}
	_, err := NewEdSigner(WithPrivateKey(b))
	require.ErrorContains(t, err, "invalid key length")

	b = make([]byte, 64)
	_, err = NewEdSigner(WithPrivateKey(b))
	require.ErrorContains(t, err, "private and public do not match")
}

func TestEdSigner_Sign(t *testing.T) {
	ed, err := NewEdSigner()
	require.NoError(t, err)

	m := make([]byte, 4)
	rand.Read(m)
	sig := ed.Sign(BLOCK, m)
	signed := make([]byte, len(m)+1)
	signed[0] = byte(BLOCK)
	copy(signed[1:], m)

	pub := ed.PublicKey()
	ok := ed25519.Verify(pub[:], signed, sig[:])
	require.Truef(t, ok, "failed to verify message %x with sig %x", m, sig)
}

func TestEdSigner_KeySeedIsDeterministic(t *testing.T) {
	var seed [32]byte
	seed[0] = 7
	a, err := NewEdSigner(WithKeySeed(seed))
	require.NoError(t, err)
	b, err := NewEdSigner(WithKeySeed(seed))
	require.NoError(t, err)
	require.Equal(t, a.PublicKey(), b.PublicKey())

	c, err := NewEdSigner(WithPrivateKey(a.PrivateKey()))
	require.NoError(t, err)
	require.Equal(t, a.PublicKey(), c.PublicKey())

	_, err = NewEdSigner(WithKeySeed(seed), WithPrivateKey(a.PrivateKey()))
	require.Error(t, err)
}

func TestEdVerifier_Prefix(t *testing.T) {
	prefix := []byte("discovery")
	signer, err := NewEdSigner(WithPrefix(prefix))
	require.NoError(t, err)
	msg := []byte("block")
	sig := signer.Sign(BLOCK, msg)

	require.True(t, NewEdVerifier(WithVerifierPrefix(prefix)).Verify(BLOCK, signer.PublicKey(), msg, sig))
	require.False(t, NewEdVerifier().Verify(BLOCK, signer.PublicKey(), msg, sig))
	require.False(t, NewEdVerifier(WithVerifierPrefix(prefix)).Verify(Domain(1), signer.PublicKey(), msg, sig))

	var other types.PublicKey
	require.False(t, NewEdVerifier(WithVerifierPrefix(prefix)).Verify(BLOCK, other, msg, sig))
}

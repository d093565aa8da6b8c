package blocklog

import (
	"encoding/binary"

	"github.com/spacemeshos/go-scale"

	"github.com/spacemeshos/go-publisher/common/types"
	"github.com/spacemeshos/go-publisher/hash"
	"github.com/spacemeshos/go-publisher/signing"
)

// MaxBlockSize is the largest value a single block can hold.
const MaxBlockSize = 4 << 20

// MaxAckLength is the largest number of blocks a single acknowledgment covers.
const MaxAckLength = types.MaxAckLength

const (
	discoveryContext = "publisher/discovery"
	keyContext       = "publisher/log/"
)

// Block is a single signed entry of a log.
type Block struct {
	Index     types.BlockIndex
	Value     []byte
	Signature types.EdSignature
}

// EncodeScale implements scale.Encodable.
func (b *Block) EncodeScale(enc *scale.Encoder) (int, error) {
	var total int
	{
		n, err := scale.EncodeCompact64(enc, uint64(b.Index))
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		n, err := scale.EncodeByteSliceWithLimit(enc, b.Value, MaxBlockSize)
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		n, err := scale.EncodeByteArray(enc, b.Signature[:])
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

// DecodeScale implements scale.Decodable.
func (b *Block) DecodeScale(dec *scale.Decoder) (int, error) {
	var total int
	{
		index, n, err := scale.DecodeCompact64(dec)
		if err != nil {
			return total, err
		}
		total += n
		b.Index = types.BlockIndex(index)
	}
	{
		value, n, err := scale.DecodeByteSliceWithLimit(dec, MaxBlockSize)
		if err != nil {
			return total, err
		}
		total += n
		b.Value = value
	}
	{
		n, err := scale.DecodeByteArray(dec, b.Signature[:])
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

// signedMessage is the part of a block covered by its signature.
// The discovery key of the log is the signer prefix.
func signedMessage(index types.BlockIndex, value []byte) []byte {
	digest := hash.Sum(value)
	msg := make([]byte, 8, 8+len(digest))
	binary.BigEndian.PutUint64(msg, uint64(index))
	return append(msg, digest[:]...)
}

// DiscoveryKeyOf returns the discovery key of the log with the given public key.
func DiscoveryKeyOf(key types.PublicKey) types.DiscoveryKey {
	return types.DiscoveryKey(hash.Sum([]byte(discoveryContext), key[:]))
}

// DeriveSigner returns the signer of the log called name owned by seed.
// The same seed and name always produce the same key.
func DeriveSigner(seed types.Seed, name string) (*signing.EdSigner, error) {
	return signing.NewEdSigner(signing.WithKeySeed(hash.DeriveKey(keyContext+name, seed[:])))
}

package ack

import (
	"github.com/bits-and-blooms/bitset"

	"github.com/spacemeshos/go-publisher/common/types"
)

// chunkBits is the number of indices covered by one lazily allocated chunk.
const chunkBits = 1 << 15

// Bitfield is a grow-only set of block indices.
//
// Indices are kept in fixed size chunks allocated on first use, so a set
// holding a few indices far from zero stays small.
// Bitfield is not safe for concurrent use.
type Bitfield struct {
	chunks map[uint64]*bitset.BitSet
	count  uint64
}

// NewBitfield returns an empty Bitfield.
func NewBitfield() *Bitfield {
	return &Bitfield{chunks: map[uint64]*bitset.BitSet{}}
}

func split(i types.BlockIndex) (uint64, uint) {
	return uint64(i) / chunkBits, uint(uint64(i) % chunkBits)
}

func (b *Bitfield) chunk(n uint64) *bitset.BitSet {
	bs, ok := b.chunks[n]
	if !ok {
		bs = bitset.New(chunkBits)
		b.chunks[n] = bs
	}
	return bs
}

// Set marks i and reports whether it was unset before.
func (b *Bitfield) Set(i types.BlockIndex) bool {
	n, bit := split(i)
	bs := b.chunk(n)
	if bs.Test(bit) {
		return false
	}
	bs.Set(bit)
	b.count++
	return true
}

// Has reports whether i is set.
func (b *Bitfield) Has(i types.BlockIndex) bool {
	n, bit := split(i)
	bs, ok := b.chunks[n]
	return ok && bs.Test(bit)
}

// Fill marks [start, end) and returns the number of indices that were unset before.
func (b *Bitfield) Fill(start, end types.BlockIndex) uint64 {
	var (
		added uint64
		mask  *bitset.BitSet
	)
	for start < end {
		n, lo := split(start)
		hi := uint(chunkBits)
		if rem := uint64(end - start); rem < uint64(hi-lo) {
			hi = lo + uint(rem)
		}
		if mask == nil {
			mask = bitset.New(chunkBits)
		} else {
			mask.ClearAll()
		}
		mask.FlipRange(lo, hi)
		bs := b.chunk(n)
		before := bs.Count()
		bs.InPlaceUnion(mask)
		added += uint64(bs.Count() - before)
		start += types.BlockIndex(hi - lo)
	}
	b.count += added
	return added
}

// FirstMissing returns the lowest unset index in [start, end).
// The second return value is false when the whole span is set.
func (b *Bitfield) FirstMissing(start, end types.BlockIndex) (types.BlockIndex, bool) {
	for start < end {
		n, lo := split(start)
		hi := uint(chunkBits)
		if rem := uint64(end - start); rem < uint64(hi-lo) {
			hi = lo + uint(rem)
		}
		bs, ok := b.chunks[n]
		if !ok {
			return start, true
		}
		if next, found := bs.NextClear(lo); found && next < hi {
			return types.BlockIndex(n*chunkBits + uint64(next)), true
		}
		start += types.BlockIndex(hi - lo)
	}
	return 0, false
}

// Covers reports whether every index in [start, end) is set.
func (b *Bitfield) Covers(start, end types.BlockIndex) bool {
	_, missing := b.FirstMissing(start, end)
	return !missing
}

// Count returns the number of set indices.
func (b *Bitfield) Count() uint64 {
	return b.count
}

package types

import (
	"github.com/libp2p/go-libp2p/core/peer"
	"go.uber.org/zap/zapcore"
)

// MaxAckLength is the largest number of blocks a single acknowledgment covers.
// Longer spans are sent as several acknowledgments.
const MaxAckLength = 1 << 16

// AckEvent is a notification that a peer holds Length contiguous blocks
// starting at Start.
//
// Events may repeat, overlap and arrive in any order. Ack is false for
// notifications that share the channel but are not acknowledgments,
// such as blocks uploaded to the peer.
type AckEvent struct {
	Peer   peer.ID
	Start  BlockIndex
	Length uint64
	Ack    bool
}

// End returns the exclusive end of the acknowledged span.
func (e AckEvent) End() BlockIndex {
	return e.Start + BlockIndex(e.Length)
}

// Valid reports whether the span fits MaxAckLength and does not wrap around.
func (e AckEvent) Valid() bool {
	return e.Length <= MaxAckLength && e.End() >= e.Start
}

// MarshalLogObject implements logging encoder for AckEvent.
func (e AckEvent) MarshalLogObject(encoder zapcore.ObjectEncoder) error {
	encoder.AddString("peer", e.Peer.String())
	encoder.AddUint64("start", uint64(e.Start))
	encoder.AddUint64("length", e.Length)
	encoder.AddBool("ack", e.Ack)
	return nil
}

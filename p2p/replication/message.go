package replication

import (
	"fmt"

	"github.com/spacemeshos/go-scale"
	"go.uber.org/zap/zapcore"

	"github.com/spacemeshos/go-publisher/blocklog"
	"github.com/spacemeshos/go-publisher/common/types"
)

// MessageType is the first byte of every message.
type MessageType byte

const (
	MessageOpen MessageType = iota + 1
	MessageHave
	MessageRequest
	MessageData
	MessageAck
	MessageUnavailable
	MessageClose
)

func (t MessageType) String() string {
	switch t {
	case MessageOpen:
		return "open"
	case MessageHave:
		return "have"
	case MessageRequest:
		return "request"
	case MessageData:
		return "data"
	case MessageAck:
		return "ack"
	case MessageUnavailable:
		return "unavailable"
	case MessageClose:
		return "close"
	}
	return fmt.Sprintf("unknown(%d)", byte(t))
}

// Message is a replication message for a single log, identified by its discovery key.
//
// Fields used by type:
//   - Open, Close: none.
//   - Have: Length.
//   - Request, Unavailable: Index.
//   - Data: Block.
//   - Ack: Index (start) and Length.
type Message struct {
	Type   MessageType
	Key    types.DiscoveryKey
	Index  types.BlockIndex
	Length uint64
	Block  *blocklog.Block
}

// MarshalLogObject implements zapcore.ObjectMarshaler.
func (m *Message) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("type", m.Type.String())
	enc.AddString("dkey", m.Key.ShortString())
	switch m.Type {
	case MessageHave:
		enc.AddUint64("length", m.Length)
	case MessageRequest, MessageUnavailable:
		enc.AddUint64("index", uint64(m.Index))
	case MessageData:
		enc.AddUint64("index", uint64(m.Block.Index))
		enc.AddInt("size", len(m.Block.Value))
	case MessageAck:
		enc.AddUint64("start", uint64(m.Index))
		enc.AddUint64("length", m.Length)
	}
	return nil
}

// EncodeScale implements scale.Encodable.
func (m *Message) EncodeScale(enc *scale.Encoder) (int, error) {
	var total int
	{
		n, err := scale.EncodeByteArray(enc, []byte{byte(m.Type)})
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		n, err := scale.EncodeByteArray(enc, m.Key[:])
		if err != nil {
			return total, err
		}
		total += n
	}
	switch m.Type {
	case MessageOpen, MessageClose:
	case MessageHave:
		n, err := scale.EncodeCompact64(enc, m.Length)
		if err != nil {
			return total, err
		}
		total += n
	case MessageRequest, MessageUnavailable:
		n, err := scale.EncodeCompact64(enc, uint64(m.Index))
		if err != nil {
			return total, err
		}
		total += n
	case MessageData:
		if m.Block == nil {
			return total, fmt.Errorf("data message without block")
		}
		n, err := m.Block.EncodeScale(enc)
		if err != nil {
			return total, err
		}
		total += n
	case MessageAck:
		{
			n, err := scale.EncodeCompact64(enc, uint64(m.Index))
			if err != nil {
				return total, err
			}
			total += n
		}
		{
			n, err := scale.EncodeCompact64(enc, m.Length)
			if err != nil {
				return total, err
			}
			total += n
		}
	default:
		return total, fmt.Errorf("unknown message type %d", m.Type)
	}
	return total, nil
}

// DecodeScale implements scale.Decodable.
func (m *Message) DecodeScale(dec *scale.Decoder) (int, error) {
	var total int
	{
		var typ [1]byte
		n, err := scale.DecodeByteArray(dec, typ[:])
		if err != nil {
			return total, err
		}
		total += n
		m.Type = MessageType(typ[0])
	}
	{
		n, err := scale.DecodeByteArray(dec, m.Key[:])
		if err != nil {
			return total, err
		}
		total += n
	}
	switch m.Type {
	case MessageOpen, MessageClose:
	case MessageHave:
		length, n, err := scale.DecodeCompact64(dec)
		if err != nil {
			return total, err
		}
		total += n
		m.Length = length
	case MessageRequest, MessageUnavailable:
		index, n, err := scale.DecodeCompact64(dec)
		if err != nil {
			return total, err
		}
		total += n
		m.Index = types.BlockIndex(index)
	case MessageData:
		var b blocklog.Block
		n, err := b.DecodeScale(dec)
		if err != nil {
			return total, err
		}
		total += n
		m.Block = &b
	case MessageAck:
		{
			start, n, err := scale.DecodeCompact64(dec)
			if err != nil {
				return total, err
			}
			total += n
			m.Index = types.BlockIndex(start)
		}
		{
			length, n, err := scale.DecodeCompact64(dec)
			if err != nil {
				return total, err
			}
			total += n
			if length > blocklog.MaxAckLength {
				return total, fmt.Errorf("ack of %d blocks exceeds limit of %d", length, blocklog.MaxAckLength)
			}
			m.Length = length
		}
	default:
		return total, fmt.Errorf("unknown message type %d", m.Type)
	}
	return total, nil
}

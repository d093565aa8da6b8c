package drive

import (
	"fmt"
	"io/fs"
	"time"

	"github.com/spacemeshos/go-scale"
	"go.uber.org/zap/zapcore"

	"github.com/spacemeshos/go-publisher/common/types"
	"github.com/spacemeshos/go-publisher/hash"
)

const maxPathLength = 4096

// Header is the first block of the metadata log.
type Header struct {
	Version    uint32
	ContentKey types.PublicKey
}

// EncodeScale implements scale.Encodable.
func (h *Header) EncodeScale(enc *scale.Encoder) (int, error) {
	var total int
	{
		n, err := scale.EncodeCompact32(enc, h.Version)
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		n, err := scale.EncodeByteArray(enc, h.ContentKey[:])
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

// DecodeScale implements scale.Decodable.
func (h *Header) DecodeScale(dec *scale.Decoder) (int, error) {
	var total int
	{
		version, n, err := scale.DecodeCompact32(dec)
		if err != nil {
			return total, err
		}
		total += n
		h.Version = version
	}
	{
		n, err := scale.DecodeByteArray(dec, h.ContentKey[:])
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

// Stat describes a file stored in the content log.
type Stat struct {
	// Offset is the index of the first content block.
	Offset types.BlockIndex
	Blocks uint64
	Size   uint64
	Mode   fs.FileMode
	// ModTime in unix nanoseconds.
	ModTime int64
	Hash    hash.Hash
}

// Range returns the span of content blocks holding the file.
func (s *Stat) Range(path string) types.FileRange {
	return types.FileRange{Path: path, Start: s.Offset, End: s.Offset + types.BlockIndex(s.Blocks)}
}

// Time returns ModTime as time.Time.
func (s *Stat) Time() time.Time {
	return time.Unix(0, s.ModTime)
}

// MarshalLogObject implements zapcore.ObjectMarshaler.
func (s *Stat) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddUint64("offset", uint64(s.Offset))
	enc.AddUint64("blocks", s.Blocks)
	enc.AddUint64("size", s.Size)
	enc.AddString("mode", s.Mode.String())
	enc.AddTime("mtime", s.Time())
	enc.AddString("hash", fmt.Sprintf("%x", s.Hash[:4]))
	return nil
}

// EncodeScale implements scale.Encodable.
func (s *Stat) EncodeScale(enc *scale.Encoder) (int, error) {
	var total int
	for _, v := range []uint64{uint64(s.Offset), s.Blocks, s.Size, uint64(s.Mode), uint64(s.ModTime)} {
		n, err := scale.EncodeCompact64(enc, v)
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		n, err := scale.EncodeByteArray(enc, s.Hash[:])
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

// DecodeScale implements scale.Decodable.
func (s *Stat) DecodeScale(dec *scale.Decoder) (int, error) {
	var (
		total  int
		fields [5]uint64
	)
	for i := range fields {
		v, n, err := scale.DecodeCompact64(dec)
		if err != nil {
			return total, err
		}
		total += n
		fields[i] = v
	}
	s.Offset = types.BlockIndex(fields[0])
	s.Blocks = fields[1]
	s.Size = fields[2]
	s.Mode = fs.FileMode(fields[3])
	s.ModTime = int64(fields[4])
	{
		n, err := scale.DecodeByteArray(dec, s.Hash[:])
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

// Kind of a metadata record.
type Kind uint8

const (
	// KindPut stores or replaces a file.
	KindPut Kind = iota + 1
	// KindDel removes a file.
	KindDel
	// KindTag names the metadata version it is stored at.
	KindTag
)

func (k Kind) String() string {
	switch k {
	case KindPut:
		return "put"
	case KindDel:
		return "del"
	case KindTag:
		return "tag"
	}
	return fmt.Sprintf("unknown(%d)", uint8(k))
}

// Record is every metadata block after the header. For KindTag, Path is the tag name.
type Record struct {
	Kind Kind
	Path string
	// Stat is set for KindPut only.
	Stat Stat
	// ContentEnd is the length of the content log when the record was written.
	ContentEnd uint64
}

// EncodeScale implements scale.Encodable.
func (r *Record) EncodeScale(enc *scale.Encoder) (int, error) {
	var total int
	{
		n, err := scale.EncodeCompact8(enc, uint8(r.Kind))
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		n, err := scale.EncodeByteSliceWithLimit(enc, []byte(r.Path), maxPathLength)
		if err != nil {
			return total, err
		}
		total += n
	}
	if r.Kind == KindPut {
		n, err := r.Stat.EncodeScale(enc)
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		n, err := scale.EncodeCompact64(enc, r.ContentEnd)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

// DecodeScale implements scale.Decodable.
func (r *Record) DecodeScale(dec *scale.Decoder) (int, error) {
	var total int
	{
		kind, n, err := scale.DecodeCompact8(dec)
		if err != nil {
			return total, err
		}
		total += n
		r.Kind = Kind(kind)
	}
	switch r.Kind {
	case KindPut, KindDel, KindTag:
	default:
		return total, fmt.Errorf("unknown record kind %d", r.Kind)
	}
	{
		path, n, err := scale.DecodeByteSliceWithLimit(dec, maxPathLength)
		if err != nil {
			return total, err
		}
		total += n
		r.Path = string(path)
	}
	if r.Kind == KindPut {
		n, err := r.Stat.DecodeScale(dec)
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		end, n, err := scale.DecodeCompact64(dec)
		if err != nil {
			return total, err
		}
		total += n
		r.ContentEnd = end
	}
	return total, nil
}

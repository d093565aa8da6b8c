package types

import (
	"errors"
	"fmt"

	"go.uber.org/zap/zapcore"
)

// ErrInvalidRange is returned for ranges that end before they start.
var ErrInvalidRange = errors.New("invalid block range")

// BlockIndex is the position of a block in a replicated log.
// Indices are assigned on append and never reused.
type BlockIndex uint64

// FileRange is the span of blocks holding the content of a single file.
// End is exclusive.
type FileRange struct {
	Path  string
	Start BlockIndex
	End   BlockIndex
}

// Len returns the number of blocks in the range.
func (r FileRange) Len() uint64 {
	if r.End <= r.Start {
		return 0
	}
	return uint64(r.End - r.Start)
}

// Empty is true for ranges without blocks, such as the range of an empty file.
func (r FileRange) Empty() bool {
	return r.Len() == 0
}

// Validate checks that Start <= End.
func (r FileRange) Validate() error {
	if r.Start > r.End {
		return fmt.Errorf("%w: %s [%d, %d)", ErrInvalidRange, r.Path, r.Start, r.End)
	}
	return nil
}

func (r FileRange) String() string {
	return fmt.Sprintf("%s[%d:%d]", r.Path, r.Start, r.End)
}

// MarshalLogObject implements logging encoder for FileRange.
func (r FileRange) MarshalLogObject(encoder zapcore.ObjectEncoder) error {
	encoder.AddString("path", r.Path)
	encoder.AddUint64("start", uint64(r.Start))
	encoder.AddUint64("end", uint64(r.End))
	return nil
}

// FileRanges is a loggable list of ranges.
type FileRanges []FileRange

// MarshalLogArray implements logging encoder for FileRanges.
func (rs FileRanges) MarshalLogArray(encoder zapcore.ArrayEncoder) error {
	for _, r := range rs {
		if err := encoder.AppendObject(r); err != nil {
			return err
		}
	}
	return nil
}

// Blocks returns the total number of blocks over all ranges.
func (rs FileRanges) Blocks() uint64 {
	var total uint64
	for _, r := range rs {
		total += r.Len()
	}
	return total
}

package types

import (
	"fmt"

	"go.uber.org/zap/zapcore"
)

// ChangeKind is the kind of a single entry in a directory diff.
type ChangeKind uint8

const (
	// ChangeAdd is a file present in the source and missing from the drive.
	ChangeAdd ChangeKind = iota + 1
	// ChangeMod is a file present on both sides with different content.
	ChangeMod
	// ChangeDel is a file present in the drive and missing from the source.
	ChangeDel
)

func (k ChangeKind) String() string {
	switch k {
	case ChangeAdd:
		return "add"
	case ChangeMod:
		return "mod"
	case ChangeDel:
		return "del"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(k))
	}
}

// Change is a single entry of a directory diff. Path is the path in the drive.
type Change struct {
	Path string
	Kind ChangeKind
}

func (c Change) String() string {
	return c.Kind.String() + " " + c.Path
}

// MarshalLogObject implements logging encoder for Change.
func (c Change) MarshalLogObject(encoder zapcore.ObjectEncoder) error {
	encoder.AddString("path", c.Path)
	encoder.AddString("kind", c.Kind.String())
	return nil
}

// Changes is a loggable list of changes.
type Changes []Change

// MarshalLogArray implements logging encoder for Changes.
func (cs Changes) MarshalLogArray(encoder zapcore.ArrayEncoder) error {
	for _, c := range cs {
		if err := encoder.AppendObject(c); err != nil {
			return err
		}
	}
	return nil
}

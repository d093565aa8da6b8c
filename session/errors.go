package session

import "errors"

var (
	// ErrNoPeerFound is returned when no peer opens the metadata log in time.
	ErrNoPeerFound = errors.New("no peer found")
	// ErrMetadataUnreachable is returned when a sync can't load the latest
	// metadata from the network. Nothing is written in that case.
	ErrMetadataUnreachable = errors.New("metadata unreachable")
	// ErrAckTimeout is returned when written blocks are not acknowledged in
	// time. The blocks are written, only their replication is unconfirmed.
	ErrAckTimeout      = errors.New("ack timeout")
	ErrInvalidArgument = errors.New("invalid argument")
)

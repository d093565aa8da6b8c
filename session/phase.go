package session

import "fmt"

// Phase is a state of a session.
type Phase uint8

const (
	Opening Phase = iota
	AwaitingPeer
	SyncingMetadata
	Diffing
	Applying
	AwaitingAck
	Done
	Failed
)

func (p Phase) String() string {
	switch p {
	case Opening:
		return "opening"
	case AwaitingPeer:
		return "awaiting_peer"
	case SyncingMetadata:
		return "syncing_metadata"
	case Diffing:
		return "diffing"
	case Applying:
		return "applying"
	case AwaitingAck:
		return "awaiting_ack"
	case Done:
		return "done"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("phase(%d)", uint8(p))
	}
}

// Terminal returns true for Done and Failed.
func (p Phase) Terminal() bool {
	return p == Done || p == Failed
}

package session

import (
	"time"

	"github.com/spacemeshos/go-publisher/drive"
)

// Config parametrizes create and sync sessions.
type Config struct {
	// PeerTimeout bounds the wait for the first peer of the metadata log.
	// Zero waits until the context is done.
	PeerTimeout time.Duration `mapstructure:"peer-timeout"`
	// UpdateTimeout bounds the metadata update of a sync.
	UpdateTimeout time.Duration `mapstructure:"update-timeout"`
	// AckTimeout bounds the wait for peers to acknowledge written blocks.
	// Zero waits until the context is done.
	AckTimeout time.Duration `mapstructure:"ack-timeout"`
	// MinMetadataLength is the metadata length a sync expects to find on the
	// network: the header and the index written by create.
	MinMetadataLength uint64 `mapstructure:"min-metadata-length"`
	BlockSize         int    `mapstructure:"block-size"`
	// CompareContent compares hashes instead of modification times of
	// files with equal size.
	CompareContent bool `mapstructure:"compare-content"`
	// Ignore patterns are applied to every sync in addition to the ones
	// passed with SyncOptions.
	Ignore []string `mapstructure:"ignore"`
}

// DefaultConfig returns the default session configuration.
func DefaultConfig() Config {
	return Config{
		PeerTimeout:       30 * time.Second,
		UpdateTimeout:     10 * time.Second,
		AckTimeout:        time.Minute,
		MinMetadataLength: 2,
		BlockSize:         drive.DefaultBlockSize,
		CompareContent:    true,
	}
}

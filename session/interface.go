package session

import (
	"context"

	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/spf13/afero"

	"github.com/spacemeshos/go-publisher/blocklog"
	"github.com/spacemeshos/go-publisher/common/types"
	"github.com/spacemeshos/go-publisher/dirdiff"
	"github.com/spacemeshos/go-publisher/events"
)

//go:generate mockgen -typed -package=session -destination=./mocks.go -source=./interface.go

// Opener opens replicated logs.
type Opener interface {
	// Open opens the writable log called name derived from seed.
	Open(ctx context.Context, seed types.Seed, name string) (Log, error)
	// Join opens a read only log. Eager logs download every block.
	Join(ctx context.Context, key types.PublicKey, eager bool) (Log, error)
}

// Log is a replicated append-only log.
type Log interface {
	Key() types.PublicKey
	DiscoveryKey() types.DiscoveryKey
	Length() uint64
	Append(ctx context.Context, values ...[]byte) (types.BlockIndex, error)
	Get(ctx context.Context, index types.BlockIndex) (*blocklog.Block, error)
	Head(ctx context.Context) (*blocklog.Block, error)
	Update(ctx context.Context, opts blocklog.UpdateOptions) error
	Peers() []peer.ID
	PeerConnects() *events.Feed[peer.ID]
	Acks() *events.Feed[types.AckEvent]
	Close() error
}

// Differ computes and applies the changes between a source tree and a drive.
type Differ interface {
	Diff(ctx context.Context, src afero.Fs, dst dirdiff.Dest, opts dirdiff.Options) ([]types.Change, error)
	Apply(ctx context.Context, src afero.Fs, dst dirdiff.Dest, changes []types.Change, opts dirdiff.Options) error
}

package session

import (
	"context"

	"github.com/spacemeshos/go-publisher/blocklog"
	"github.com/spacemeshos/go-publisher/common/types"
	"github.com/spacemeshos/go-publisher/node"
)

// NodeOpener opens logs on a node.
type NodeOpener struct {
	Node *node.Node
}

var _ Opener = NodeOpener{}

// Open implements Opener.
func (o NodeOpener) Open(ctx context.Context, seed types.Seed, name string) (Log, error) {
	l, err := o.Node.Open(ctx, seed, name)
	if err != nil {
		return nil, err
	}
	return l, nil
}

// Join implements Opener.
func (o NodeOpener) Join(ctx context.Context, key types.PublicKey, eager bool) (Log, error) {
	var opts []blocklog.Opt
	if eager {
		opts = append(opts, blocklog.WithEager())
	}
	l, err := o.Node.Join(ctx, key, opts...)
	if err != nil {
		return nil, err
	}
	return l, nil
}

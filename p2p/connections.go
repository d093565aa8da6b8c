package p2p

import (
	"github.com/libp2p/go-libp2p/core/network"
	ma "github.com/multiformats/go-multiaddr"

	"github.com/spacemeshos/go-publisher/metrics"
)

// connectionsMeter tracks the number of open connections by direction.
type connectionsMeter struct{}

var _ network.Notifiee = (*connectionsMeter)(nil)

func (*connectionsMeter) Listen(network.Network, ma.Multiaddr)      {}
func (*connectionsMeter) ListenClose(network.Network, ma.Multiaddr) {}

func (*connectionsMeter) Connected(_ network.Network, c network.Conn) {
	metrics.Connections.WithLabelValues(c.Stat().Direction.String()).Inc()
}

func (*connectionsMeter) Disconnected(_ network.Network, c network.Conn) {
	metrics.Connections.WithLabelValues(c.Stat().Direction.String()).Dec()
}

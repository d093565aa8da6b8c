package p2p

import (
	"sync/atomic"

	"github.com/libp2p/go-libp2p/core/control"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/multiformats/go-multiaddr"
)

// gater refuses new connections once the host is connected to more than max peers.
// Connections are allowed until the host is set.
type gater struct {
	h   atomic.Pointer[host.Host]
	max int
}

func newGater(max int) *gater {
	return &gater{max: max}
}

func (g *gater) setHost(h host.Host) {
	g.h.Store(&h)
}

func (g *gater) full() bool {
	h := g.h.Load()
	if h == nil || g.max <= 0 {
		return false
	}
	return len((*h).Network().Peers()) > g.max
}

func (*gater) InterceptPeerDial(peer.ID) bool {
	return true
}

func (g *gater) InterceptAddrDial(peer.ID, multiaddr.Multiaddr) bool {
	return !g.full()
}

func (g *gater) InterceptAccept(network.ConnMultiaddrs) bool {
	return !g.full()
}

func (*gater) InterceptSecured(network.Direction, peer.ID, network.ConnMultiaddrs) bool {
	return true
}

func (*gater) InterceptUpgraded(network.Conn) (allow bool, reason control.DisconnectReason) {
	return true, 0
}

package p2p

import (
	"context"
	"testing"
	"time"

	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/stretchr/testify/require"

	"github.com/spacemeshos/go-publisher/log/logtest"
)

func TestEnsureIdentity(t *testing.T) {
	dir := t.TempDir()
	key1, err := EnsureIdentity(dir)
	require.NoError(t, err)
	key2, err := EnsureIdentity(dir)
	require.NoError(t, err)
	require.True(t, key1.Equals(key2))

	key3, err := EnsureIdentity(t.TempDir())
	require.NoError(t, err)
	require.False(t, key1.Equals(key3))
}

func newHost(tb testing.TB, bootnodes ...string) *Host {
	cfg := DefaultConfig()
	cfg.DataDir = tb.TempDir()
	cfg.Listen = []string{"/ip4/127.0.0.1/tcp/0"}
	cfg.Bootnodes = bootnodes
	cfg.DialTimeout = 2 * time.Second
	h, err := New(context.Background(), logtest.New(tb), cfg)
	require.NoError(tb, err)
	tb.Cleanup(func() { h.Stop() })
	return h
}

func TestBootstrap(t *testing.T) {
	h1 := newHost(t)
	require.NoError(t, h1.Bootstrap(context.Background()))

	addrs, err := FullAddrs(h1)
	require.NoError(t, err)
	require.NotEmpty(t, addrs)

	h2 := newHost(t, addrs...)
	require.NoError(t, h2.Bootstrap(context.Background()))
	require.Equal(t, network.Connected, h2.Network().Connectedness(h1.ID()))
}

func TestBootstrapUnreachable(t *testing.T) {
	h1 := newHost(t)
	addrs, err := FullAddrs(h1)
	require.NoError(t, err)
	require.NoError(t, h1.Stop())

	h2 := newHost(t, addrs...)
	require.ErrorIs(t, h2.Bootstrap(context.Background()), ErrNoBootnodes)
}

func TestParseAddrInfos(t *testing.T) {
	_, err := ParseAddrInfos([]string{"/ip4/127.0.0.1/tcp/7600"})
	require.Error(t, err)

	key, err := EnsureIdentity(t.TempDir())
	require.NoError(t, err)
	id, err := peer.IDFromPrivateKey(key)
	require.NoError(t, err)
	infos, err := ParseAddrInfos([]string{"/ip4/10.0.0.1/tcp/7600/p2p/" + id.String()})
	require.NoError(t, err)
	require.Len(t, infos, 1)
	require.Equal(t, id, infos[0].ID)
	require.Len(t, infos[0].Addrs, 1)
}

func TestGaterLimitsPeers(t *testing.T) {
	h1 := newHost(t)
	for range 2 {
		other := newHost(t)
		require.NoError(t, h1.Connect(context.Background(), peer.AddrInfo{ID: other.ID(), Addrs: other.Addrs()}))
	}

	g := newGater(1)
	require.True(t, g.InterceptAccept(nil), "allowed before the host is set")
	g.setHost(h1)
	require.False(t, g.InterceptAccept(nil))
	require.False(t, g.InterceptAddrDial("", nil))
	require.True(t, g.InterceptPeerDial(""))

	g = newGater(2)
	g.setHost(h1)
	require.True(t, g.InterceptAccept(nil))

	g = newGater(0)
	g.setHost(h1)
	require.True(t, g.InterceptAccept(nil), "zero disables the limit")
}

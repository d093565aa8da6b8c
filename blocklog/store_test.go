package blocklog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/spacemeshos/go-publisher/common/types"
	"github.com/spacemeshos/go-publisher/log/logtest"
)

func openLevel(tb testing.TB, dir string) *LevelStore {
	s, err := OpenLevelStore(dir, WithStoreLogger(logtest.New(tb)), WithCacheSize(2))
	require.NoError(tb, err)
	return s
}

func TestStores(t *testing.T) {
	for _, tc := range []struct {
		desc string
		open func(testing.TB) Store
	}{
		{"memory", func(testing.TB) Store { return NewMemoryStore() }},
		{"level", func(tb testing.TB) Store {
			s := openLevel(tb, tb.TempDir())
			tb.Cleanup(func() { s.Close() })
			return s
		}},
	} {
		t.Run(tc.desc, func(t *testing.T) {
			s := tc.open(t)
			var a, b types.DiscoveryKey
			a[0], b[0] = 1, 2

			length, err := s.Length(a)
			require.NoError(t, err)
			require.Zero(t, length)
			_, err = s.Get(a, 0)
			require.ErrorIs(t, err, ErrNotFound)

			for _, i := range []types.BlockIndex{0, 3, 7} {
				require.NoError(t, s.Put(a, &Block{Index: i, Value: []byte{byte(i)}}))
			}
			require.NoError(t, s.Put(b, &Block{Index: 1, Value: []byte("other")}))
			require.NoError(t, s.SetLength(a, 8))

			length, err = s.Length(a)
			require.NoError(t, err)
			require.EqualValues(t, 8, length)
			length, err = s.Length(b)
			require.NoError(t, err)
			require.Zero(t, length)

			for _, i := range []types.BlockIndex{0, 3, 7} {
				blk, err := s.Get(a, i)
				require.NoError(t, err)
				require.Equal(t, []byte{byte(i)}, blk.Value)
				has, err := s.Has(a, i)
				require.NoError(t, err)
				require.True(t, has)
			}
			has, err := s.Has(a, 1)
			require.NoError(t, err)
			require.False(t, has)

			var stored []types.BlockIndex
			require.NoError(t, s.Blocks(a, func(i types.BlockIndex) bool {
				stored = append(stored, i)
				return true
			}))
			require.ElementsMatch(t, []types.BlockIndex{0, 3, 7}, stored)

			var visited int
			require.NoError(t, s.Blocks(a, func(types.BlockIndex) bool {
				visited++
				return false
			}))
			require.Equal(t, 1, visited)
		})
	}
}

func TestLevelStoreLocked(t *testing.T) {
	dir := t.TempDir()
	s := openLevel(t, dir)
	_, err := OpenLevelStore(dir)
	require.ErrorIs(t, err, ErrLocked)
	require.NoError(t, s.Close())

	s = openLevel(t, dir)
	require.NoError(t, s.Close())
}

func TestLevelStoreReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s := openLevel(t, dir)
	w := newWriter(t, s)
	_, err := w.Append(ctx, values(5)...)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, s.Close())

	s = openLevel(t, dir)
	t.Cleanup(func() { s.Close() })
	w = newWriter(t, s)
	require.EqualValues(t, 5, w.Length())
	require.EqualValues(t, 5, w.Stored())
	b, err := w.Get(ctx, 4)
	require.NoError(t, err)
	require.Equal(t, []byte{4, 'v'}, b.Value)
	require.True(t, w.verify(b))

	first, err := w.Append(ctx, []byte("next"))
	require.NoError(t, err)
	require.Equal(t, types.BlockIndex(5), first)
}

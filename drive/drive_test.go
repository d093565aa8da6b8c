package drive

import (
	"context"
	"io/fs"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/spacemeshos/go-publisher/blocklog"
	"github.com/spacemeshos/go-publisher/codec"
	"github.com/spacemeshos/go-publisher/common/types"
	"github.com/spacemeshos/go-publisher/hash"
	"github.com/spacemeshos/go-publisher/log/logtest"
)

func newLog(tb testing.TB, seed byte, name string) *blocklog.Log {
	var s types.Seed
	s[0] = seed
	signer, err := blocklog.DeriveSigner(s, name)
	require.NoError(tb, err)
	l, err := blocklog.New(signer.PublicKey(), blocklog.NewMemoryStore(),
		blocklog.WithName(name),
		blocklog.WithPrivateKey(signer.PrivateKey()),
	)
	require.NoError(tb, err)
	tb.Cleanup(func() { l.Close() })
	return l
}

func newTestDrive(tb testing.TB) (*Drive, *blocklog.Log, *blocklog.Log) {
	meta, content := newLog(tb, 1, "metadata"), newLog(tb, 1, "content")
	d, err := Init(context.Background(), meta, content, WithBlockSize(4), WithLogger(logtest.New(tb)))
	require.NoError(tb, err)
	return d, meta, content
}

func TestInit(t *testing.T) {
	ctx := context.Background()
	d, meta, content := newTestDrive(t)
	require.EqualValues(t, 1, meta.Length())
	require.Equal(t, meta.Key(), d.Key())
	require.Equal(t, content.Key(), d.ContentKey())
	require.EqualValues(t, 1, d.Version())

	h, err := ReadHeader(ctx, meta)
	require.NoError(t, err)
	require.EqualValues(t, Version, h.Version)
	require.Equal(t, content.Key(), h.ContentKey)

	_, err = Init(ctx, meta, content)
	require.ErrorIs(t, err, ErrNotEmpty)
}

func TestWriteRead(t *testing.T) {
	ctx := context.Background()
	d, _, content := newTestDrive(t)
	mtime := time.Unix(1700000000, 0)

	stat, err := d.WriteFile(ctx, "dir/a.txt", []byte("0123456789"), 0o644, mtime)
	require.NoError(t, err)
	require.Equal(t, types.BlockIndex(0), stat.Offset)
	require.EqualValues(t, 3, stat.Blocks)
	require.EqualValues(t, 10, stat.Size)
	require.Equal(t, hash.Sum([]byte("0123456789")), stat.Hash)
	require.Equal(t, mtime, stat.Time())
	require.EqualValues(t, 3, content.Length())
	require.EqualValues(t, 3, d.ContentLength())

	stat, err = d.WriteFile(ctx, "/b.txt", []byte("xy"), 0o600, mtime)
	require.NoError(t, err)
	require.Equal(t, types.BlockIndex(3), stat.Offset)

	empty, err := d.WriteFile(ctx, "/empty", nil, 0o600, mtime)
	require.NoError(t, err)
	require.Zero(t, empty.Blocks)
	require.EqualValues(t, 4, d.ContentLength())
	rng, err := d.Range("empty")
	require.NoError(t, err)
	require.True(t, rng.Empty())

	data, err := d.ReadFile(ctx, "/dir/a.txt")
	require.NoError(t, err)
	require.Equal(t, []byte("0123456789"), data)
	data, err = d.ReadFile(ctx, "/empty")
	require.NoError(t, err)
	require.Empty(t, data)

	rng, err = d.Range("/dir/a.txt")
	require.NoError(t, err)
	require.Equal(t, types.FileRange{Path: "/dir/a.txt", Start: 0, End: 3}, rng)

	_, err = d.Stat("/missing")
	require.ErrorIs(t, err, fs.ErrNotExist)

	// rewriting appends new content and replaces the entry
	stat, err = d.WriteFile(ctx, "/b.txt", []byte("xyz"), 0o600, mtime)
	require.NoError(t, err)
	require.Equal(t, types.BlockIndex(4), stat.Offset)
	require.EqualValues(t, 5, d.ContentLength())
	require.Equal(t, 3, d.Len())
}

func TestReaddirEntries(t *testing.T) {
	ctx := context.Background()
	d, _, _ := newTestDrive(t)
	for _, p := range []string{"/index.json", "/docs/a.md", "/docs/b.md", "/docs/img/c.png"} {
		_, err := d.WriteFile(ctx, p, []byte(p), 0o644, time.Now())
		require.NoError(t, err)
	}

	names, err := d.Readdir("/")
	require.NoError(t, err)
	require.Equal(t, []string{"docs", "index.json"}, names)
	names, err = d.Readdir("docs")
	require.NoError(t, err)
	require.Equal(t, []string{"a.md", "b.md", "img"}, names)
	_, err = d.Readdir("/nope")
	require.ErrorIs(t, err, fs.ErrNotExist)
	_, err = d.Readdir("/index.json")
	require.Error(t, err)

	var paths []string
	for _, e := range d.Entries() {
		paths = append(paths, e.Path)
	}
	require.Equal(t, []string{"/docs/a.md", "/docs/b.md", "/docs/img/c.png", "/index.json"}, paths)
}

func TestRemoveTag(t *testing.T) {
	ctx := context.Background()
	d, meta, _ := newTestDrive(t)
	_, err := d.WriteFile(ctx, "/a", []byte("a"), 0o644, time.Now())
	require.NoError(t, err)

	version, err := d.Tag(ctx, "v1")
	require.NoError(t, err)
	require.EqualValues(t, 2, version)

	require.NoError(t, d.Remove(ctx, "/a"))
	require.ErrorIs(t, d.Remove(ctx, "/a"), fs.ErrNotExist)
	_, err = d.Stat("/a")
	require.ErrorIs(t, err, fs.ErrNotExist)

	require.Equal(t, map[string]uint64{"v1": 2}, d.Tags())
	require.EqualValues(t, 4, meta.Length())
	require.EqualValues(t, 4, d.Version())
}

func TestLoad(t *testing.T) {
	ctx := context.Background()
	d, meta, content := newTestDrive(t)
	_, err := d.WriteFile(ctx, "/a", []byte("hello world"), 0o644, time.Now())
	require.NoError(t, err)
	_, err = d.WriteFile(ctx, "/b", []byte("b"), 0o644, time.Now())
	require.NoError(t, err)
	require.NoError(t, d.Remove(ctx, "/b"))
	_, err = d.Tag(ctx, "release")
	require.NoError(t, err)

	loaded, err := Load(ctx, meta, content, WithBlockSize(4))
	require.NoError(t, err)
	require.Equal(t, d.Entries(), loaded.Entries())
	require.Equal(t, d.Tags(), loaded.Tags())
	require.Equal(t, d.ContentLength(), loaded.ContentLength())
	require.Equal(t, d.Version(), loaded.Version())

	data, err := loaded.ReadFile(ctx, "/a")
	require.NoError(t, err)
	require.Equal(t, []byte("hello world"), data)

	// loaded drive can keep writing
	_, err = loaded.WriteFile(ctx, "/c", []byte("c"), 0o644, time.Now())
	require.NoError(t, err)
	require.NoError(t, d.Refresh(ctx))
	_, err = d.Stat("/c")
	require.NoError(t, err)
}

func TestLoadErrors(t *testing.T) {
	ctx := context.Background()
	meta, content := newLog(t, 2, "metadata"), newLog(t, 2, "content")
	_, err := Load(ctx, meta, content)
	require.ErrorIs(t, err, ErrNoHeader)

	_, err = Init(ctx, meta, content)
	require.NoError(t, err)
	other := newLog(t, 3, "content")
	_, err = Load(ctx, meta, other)
	require.ErrorIs(t, err, ErrContentMismatch)
}

func TestRecordDecodeUnknownKind(t *testing.T) {
	buf, err := codec.Encode(&Record{Kind: KindDel, Path: "/a"})
	require.NoError(t, err)
	buf[0] = 0x40 // compact encoding of 16
	var r Record
	require.ErrorContains(t, codec.Decode(buf, &r), "unknown record kind")
}

func TestClean(t *testing.T) {
	for _, tc := range []struct{ in, out string }{
		{"a", "/a"},
		{"/a/../b", "/b"},
		{"a/b/", "/a/b"},
		{"/", "/"},
	} {
		got, err := Clean(tc.in)
		require.NoError(t, err)
		require.Equal(t, tc.out, got)
	}
	_, err := Clean("")
	require.ErrorIs(t, err, ErrInvalidPath)
}

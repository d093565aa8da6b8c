package dirdiff

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/spacemeshos/go-publisher/blocklog"
	"github.com/spacemeshos/go-publisher/common/types"
	"github.com/spacemeshos/go-publisher/drive"
	"github.com/spacemeshos/go-publisher/log/logtest"
)

func newDrive(tb testing.TB) *drive.Drive {
	var seed types.Seed
	seed[0] = 5
	open := func(name string) *blocklog.Log {
		signer, err := blocklog.DeriveSigner(seed, name)
		require.NoError(tb, err)
		l, err := blocklog.New(signer.PublicKey(), blocklog.NewMemoryStore(),
			blocklog.WithPrivateKey(signer.PrivateKey()))
		require.NoError(tb, err)
		tb.Cleanup(func() { l.Close() })
		return l
	}
	d, err := drive.Init(context.Background(), open("metadata"), open("content"))
	require.NoError(tb, err)
	return d
}

func writeFiles(tb testing.TB, fs afero.Fs, files map[string]string) {
	for name, data := range files {
		require.NoError(tb, afero.WriteFile(fs, name, []byte(data), 0o644))
	}
}

func newSource(tb testing.TB, files map[string]string) afero.Fs {
	mem := afero.NewMemMapFs()
	writeFiles(tb, mem, files)
	return mem
}

func TestDiffApply(t *testing.T) {
	ctx := context.Background()
	differ := New(WithLogger(logtest.New(t)))
	d := newDrive(t)
	_, err := d.WriteFile(ctx, "/index.json", []byte("{}"), 0o644, time.Now())
	require.NoError(t, err)

	src := newSource(t, map[string]string{
		"/b.txt":       "bbb",
		"/a.txt":       "aaa",
		"/dir/c.txt":   "ccc",
		"/index.json":  "{}",
		"/.git/config": "x",
	})
	opts := Options{Ignore: []string{".git"}, CompareContent: true}
	changes, err := differ.Diff(ctx, src, d, opts)
	require.NoError(t, err)
	expected := []types.Change{
		{Path: "/a.txt", Kind: types.ChangeAdd},
		{Path: "/b.txt", Kind: types.ChangeAdd},
		{Path: "/dir/c.txt", Kind: types.ChangeAdd},
	}
	if diff := cmp.Diff(expected, changes); diff != "" {
		t.Fatalf("unexpected changes (-want +got):\n%s", diff)
	}

	require.NoError(t, differ.Apply(ctx, src, d, changes, opts))
	data, err := d.ReadFile(ctx, "/dir/c.txt")
	require.NoError(t, err)
	require.Equal(t, []byte("ccc"), data)

	changes, err = differ.Diff(ctx, src, d, opts)
	require.NoError(t, err)
	require.Empty(t, changes)

	// same size, different content
	writeFiles(t, src, map[string]string{"/a.txt": "AAA"})
	changes, err = differ.Diff(ctx, src, d, opts)
	require.NoError(t, err)
	require.Equal(t, []types.Change{{Path: "/a.txt", Kind: types.ChangeMod}}, changes)
}

func TestDiffIgnore(t *testing.T) {
	ctx := context.Background()
	d := newDrive(t)
	src := newSource(t, map[string]string{
		"/keep.txt":         "keep",
		"/skip.log":         "skip",
		"/build/out.bin":    "bin",
		"/.publisherignore": "build\n# comment\n",
	})
	changes, err := New().Diff(ctx, src, d, Options{Ignore: []string{"*.log"}})
	require.NoError(t, err)
	require.Equal(t, []types.Change{{Path: "/keep.txt", Kind: types.ChangeAdd}}, changes)
}

func TestDiffDelete(t *testing.T) {
	ctx := context.Background()
	differ := New()
	d := newDrive(t)
	for _, p := range []string{"/site/old.html", "/site/keep.html", "/site/cache.tmp", "/other.txt"} {
		_, err := d.WriteFile(ctx, p, []byte("x"), 0o644, time.Now())
		require.NoError(t, err)
	}
	src := newSource(t, map[string]string{"/keep.html": "x"})

	opts := Options{Prefix: "/site", CompareContent: true, Ignore: []string{"*.tmp"}}
	changes, err := differ.Diff(ctx, src, d, opts)
	require.NoError(t, err)
	require.Empty(t, changes)

	opts.Delete = true
	changes, err = differ.Diff(ctx, src, d, opts)
	require.NoError(t, err)
	require.Equal(t, []types.Change{{Path: "/site/old.html", Kind: types.ChangeDel}}, changes)

	require.NoError(t, differ.Apply(ctx, src, d, changes, opts))
	_, err = d.Stat("/site/old.html")
	require.Error(t, err)
	_, err = d.Stat("/other.txt")
	require.NoError(t, err)
}

func TestDiffModTime(t *testing.T) {
	ctx := context.Background()
	differ := New()
	d := newDrive(t)
	src := newSource(t, map[string]string{"/a": "a"})
	changes, err := differ.Diff(ctx, src, d, Options{})
	require.NoError(t, err)
	require.NoError(t, differ.Apply(ctx, src, d, changes, Options{}))

	changes, err = differ.Diff(ctx, src, d, Options{})
	require.NoError(t, err)
	require.Empty(t, changes)

	require.NoError(t, src.Chtimes("/a", time.Now(), time.Now().Add(time.Hour)))
	changes, err = differ.Diff(ctx, src, d, Options{})
	require.NoError(t, err)
	require.Equal(t, []types.Change{{Path: "/a", Kind: types.ChangeMod}}, changes)
	changes, err = differ.Diff(ctx, src, d, Options{CompareContent: true})
	require.NoError(t, err)
	require.Empty(t, changes)
}

func TestBasePath(t *testing.T) {
	ctx := context.Background()
	mem := newSource(t, map[string]string{"/root/src/a.txt": "a", "/root/other.txt": "o"})
	src := afero.NewBasePathFs(mem, "/root/src")
	d := newDrive(t)
	opts := Options{Prefix: "public"}
	changes, err := New().Diff(ctx, src, d, opts)
	require.NoError(t, err)
	require.Equal(t, []types.Change{{Path: "/public/a.txt", Kind: types.ChangeAdd}}, changes)
	require.NoError(t, New().Apply(ctx, src, d, changes, opts))
	data, err := d.ReadFile(ctx, "/public/a.txt")
	require.NoError(t, err)
	require.Equal(t, []byte("a"), data)
}

// Package dirdiff compares a source directory with the files of a drive and
// applies the differences to the drive.
package dirdiff

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/moby/patternmatcher"
	"github.com/moby/patternmatcher/ignorefile"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/spacemeshos/go-publisher/common/types"
	"github.com/spacemeshos/go-publisher/drive"
	"github.com/spacemeshos/go-publisher/hash"
)

// IgnoreFile in the root of the source directory lists additional ignore patterns.
const IgnoreFile = ".publisherignore"

// Options parametrize Diff and Apply.
type Options struct {
	// Ignore patterns use .dockerignore syntax and are matched against paths
	// relative to the source root. They apply to both sides.
	Ignore []string
	// Prefix is the drive directory the source is mirrored to.
	Prefix string
	// Delete reports drive files missing from the source as deletions.
	Delete bool
	// CompareContent compares content hashes of files with equal size.
	// Otherwise modification times are compared.
	CompareContent bool
}

// Dest is the drive side of a diff.
type Dest interface {
	Entries() []drive.Entry
	WriteFile(ctx context.Context, name string, data []byte, mode fs.FileMode, modTime time.Time) (drive.Stat, error)
	Remove(ctx context.Context, name string) error
}

// Opt modifies Differ.
type Opt func(*Differ)

// WithLogger configures logger for the differ.
func WithLogger(logger *zap.Logger) Opt {
	return func(d *Differ) {
		d.logger = logger
	}
}

// Differ computes and applies changes between an afero.Fs and a drive.
type Differ struct {
	logger *zap.Logger
}

func New(opts ...Opt) *Differ {
	d := &Differ{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

type mapping struct {
	prefix  string
	matcher *patternmatcher.PatternMatcher
}

func newMapping(src afero.Fs, opts Options) (*mapping, error) {
	patterns := slices.Clone(opts.Ignore)
	f, err := src.Open("/" + IgnoreFile)
	switch {
	case err == nil:
		extra, err := ignorefile.ReadAll(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", IgnoreFile, err)
		}
		patterns = append(patterns, extra...)
	case !errors.Is(err, os.ErrNotExist):
		return nil, fmt.Errorf("open %s: %w", IgnoreFile, err)
	}
	matcher, err := patternmatcher.New(patterns)
	if err != nil {
		return nil, fmt.Errorf("parse ignore patterns: %w", err)
	}
	prefix, err := drive.Clean(opts.Prefix)
	if err != nil && opts.Prefix != "" {
		return nil, err
	}
	if opts.Prefix == "" {
		prefix = "/"
	}
	return &mapping{prefix: prefix, matcher: matcher}, nil
}

// destPath maps a slash separated path relative to the source root into the drive.
func (m *mapping) destPath(rel string) string {
	return path.Join(m.prefix, rel)
}

// relPath maps a drive path back to the source. ok is false for paths outside the prefix.
func (m *mapping) relPath(dest string) (string, bool) {
	if m.prefix == "/" {
		return strings.TrimPrefix(dest, "/"), true
	}
	rel, ok := strings.CutPrefix(dest, m.prefix+"/")
	return rel, ok
}

func (m *mapping) ignored(rel string) (bool, error) {
	return m.matcher.MatchesOrParentMatches(filepath.FromSlash(rel))
}

type sourceFile struct {
	rel  string
	info fs.FileInfo
}

func (m *mapping) walk(src afero.Fs) (map[string]sourceFile, error) {
	files := map[string]sourceFile{}
	err := afero.Walk(src, "/", func(name string, info fs.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel := strings.TrimPrefix(filepath.ToSlash(name), "/")
		if rel == "" || rel == IgnoreFile {
			return nil
		}
		skip, err := m.ignored(rel)
		if err != nil {
			return err
		}
		if skip {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !info.Mode().IsRegular() {
			return nil
		}
		files[m.destPath(rel)] = sourceFile{rel: rel, info: info}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk source: %w", err)
	}
	return files, nil
}

// Diff returns the changes that make the drive match src, ordered by path.
func (d *Differ) Diff(ctx context.Context, src afero.Fs, dst Dest, opts Options) ([]types.Change, error) {
	m, err := newMapping(src, opts)
	if err != nil {
		return nil, err
	}
	files, err := m.walk(src)
	if err != nil {
		return nil, err
	}
	existing := map[string]drive.Stat{}
	for _, e := range dst.Entries() {
		existing[e.Path] = e.Stat
	}
	var changes []types.Change
	for dest, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		stat, ok := existing[dest]
		if !ok {
			changes = append(changes, types.Change{Path: dest, Kind: types.ChangeAdd})
			continue
		}
		modified, err := d.modified(src, f, stat, opts.CompareContent)
		if err != nil {
			return nil, err
		}
		if modified {
			changes = append(changes, types.Change{Path: dest, Kind: types.ChangeMod})
		}
	}
	if opts.Delete {
		for dest := range existing {
			if _, ok := files[dest]; ok {
				continue
			}
			rel, ok := m.relPath(dest)
			if !ok {
				continue
			}
			if skip, err := m.ignored(rel); err != nil {
				return nil, err
			} else if skip {
				continue
			}
			changes = append(changes, types.Change{Path: dest, Kind: types.ChangeDel})
		}
	}
	sort.Slice(changes, func(i, j int) bool {
		return changes[i].Path < changes[j].Path
	})
	d.logger.Debug("computed diff",
		zap.Int("source_files", len(files)),
		zap.Int("drive_files", len(existing)),
		zap.Array("changes", types.Changes(changes)),
	)
	return changes, nil
}

func (d *Differ) modified(src afero.Fs, f sourceFile, stat drive.Stat, compareContent bool) (bool, error) {
	if uint64(f.info.Size()) != stat.Size {
		return true, nil
	}
	if !compareContent {
		return f.info.ModTime().UnixNano() != stat.ModTime, nil
	}
	data, err := afero.ReadFile(src, "/"+f.rel)
	if err != nil {
		return false, fmt.Errorf("read %s: %w", f.rel, err)
	}
	return hash.Sum(data) != stat.Hash, nil
}

// Apply writes added and modified files to the drive and removes deleted ones, in order.
func (d *Differ) Apply(ctx context.Context, src afero.Fs, dst Dest, changes []types.Change, opts Options) error {
	m, err := newMapping(src, opts)
	if err != nil {
		return err
	}
	for _, c := range changes {
		if err := ctx.Err(); err != nil {
			return err
		}
		switch c.Kind {
		case types.ChangeAdd, types.ChangeMod:
			rel, ok := m.relPath(c.Path)
			if !ok {
				return fmt.Errorf("change %s is outside of %s", c, m.prefix)
			}
			info, err := src.Stat("/" + rel)
			if err != nil {
				return fmt.Errorf("stat %s: %w", rel, err)
			}
			data, err := afero.ReadFile(src, "/"+rel)
			if err != nil {
				return fmt.Errorf("read %s: %w", rel, err)
			}
			if _, err := dst.WriteFile(ctx, c.Path, data, info.Mode(), info.ModTime()); err != nil {
				return fmt.Errorf("write %s: %w", c.Path, err)
			}
		case types.ChangeDel:
			if err := dst.Remove(ctx, c.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("remove %s: %w", c.Path, err)
			}
		default:
			return fmt.Errorf("unknown change %s", c)
		}
		d.logger.Debug("applied change", zap.Stringer("change", c))
	}
	return nil
}

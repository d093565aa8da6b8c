// Package drive is a file tree stored in two block logs. The metadata log
// starts with a Header naming the content log and continues with one Record
// per file change; file bytes are appended to the content log in fixed size
// blocks.
package drive

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spacemeshos/go-publisher/blocklog"
	"github.com/spacemeshos/go-publisher/codec"
	"github.com/spacemeshos/go-publisher/common/types"
	"github.com/spacemeshos/go-publisher/hash"
)

// Version of the metadata format.
const Version = 1

// DefaultBlockSize is the size of content blocks.
const DefaultBlockSize = 64 << 10

var (
	ErrNotEmpty        = errors.New("metadata log is not empty")
	ErrNoHeader        = errors.New("metadata log has no header")
	ErrVersion         = errors.New("unsupported drive version")
	ErrContentMismatch = errors.New("content log does not match header")
	ErrInvalidPath     = errors.New("invalid path")
)

// Log is the subset of a block log used by the drive.
type Log interface {
	Key() types.PublicKey
	Length() uint64
	Append(ctx context.Context, values ...[]byte) (types.BlockIndex, error)
	Get(ctx context.Context, index types.BlockIndex) (*blocklog.Block, error)
	Update(ctx context.Context, opts blocklog.UpdateOptions) error
}

// Opt modifies Drive.
type Opt func(*Drive)

// WithLogger configures logger for the drive.
func WithLogger(logger *zap.Logger) Opt {
	return func(d *Drive) {
		d.logger = logger
	}
}

// WithBlockSize sets the size of content blocks written by the drive.
func WithBlockSize(size int) Opt {
	return func(d *Drive) {
		d.blockSize = size
	}
}

// Entry is a file in the drive.
type Entry struct {
	Path string
	Stat Stat
}

// Drive is a view of the file tree replayed from the metadata log.
type Drive struct {
	logger    *zap.Logger
	blockSize int
	meta      Log
	content   Log

	mu         sync.RWMutex
	replayed   uint64
	contentEnd uint64
	files      map[string]*Stat
	tags       map[string]uint64
}

func newDrive(meta, content Log, opts []Opt) *Drive {
	d := &Drive{
		logger:    zap.NewNop(),
		blockSize: DefaultBlockSize,
		meta:      meta,
		content:   content,
		files:     map[string]*Stat{},
		tags:      map[string]uint64{},
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.blockSize <= 0 || d.blockSize > blocklog.MaxBlockSize {
		d.blockSize = DefaultBlockSize
	}
	return d
}

// Init writes the header to an empty metadata log.
func Init(ctx context.Context, meta, content Log, opts ...Opt) (*Drive, error) {
	if meta.Length() != 0 {
		return nil, ErrNotEmpty
	}
	d := newDrive(meta, content, opts)
	buf, err := codec.Encode(&Header{Version: Version, ContentKey: content.Key()})
	if err != nil {
		return nil, err
	}
	if _, err := meta.Append(ctx, buf); err != nil {
		return nil, fmt.Errorf("append header: %w", err)
	}
	d.replayed = 1
	d.contentEnd = content.Length()
	d.logger.Debug("initialized drive",
		zap.String("key", meta.Key().ShortString()),
		zap.String("content", content.Key().ShortString()),
	)
	return d, nil
}

// ReadHeader fetches and decodes the header of the metadata log.
func ReadHeader(ctx context.Context, meta Log) (*Header, error) {
	if meta.Length() == 0 {
		return nil, ErrNoHeader
	}
	b, err := meta.Get(ctx, 0)
	if err != nil {
		return nil, fmt.Errorf("get header: %w", err)
	}
	var h Header
	if err := codec.Decode(b.Value, &h); err != nil {
		return nil, fmt.Errorf("decode header: %w", err)
	}
	if h.Version != Version {
		return nil, fmt.Errorf("%w: %d", ErrVersion, h.Version)
	}
	return &h, nil
}

// Load replays the metadata log, fetching missing blocks from peers, and
// fast-forwards the content log to the length recorded by the last record.
func Load(ctx context.Context, meta, content Log, opts ...Opt) (*Drive, error) {
	h, err := ReadHeader(ctx, meta)
	if err != nil {
		return nil, err
	}
	if h.ContentKey != content.Key() {
		return nil, fmt.Errorf("%w: header %s, log %s",
			ErrContentMismatch, h.ContentKey.ShortString(), content.Key().ShortString())
	}
	d := newDrive(meta, content, opts)
	d.replayed = 1
	if err := d.Refresh(ctx); err != nil {
		return nil, err
	}
	if end := d.ContentLength(); content.Length() < end {
		if err := content.Update(ctx, blocklog.UpdateOptions{MinLength: end}); err != nil {
			return nil, fmt.Errorf("update content log to %d: %w", end, err)
		}
	}
	d.logger.Debug("loaded drive",
		zap.String("key", meta.Key().ShortString()),
		zap.Uint64("version", d.Version()),
		zap.Int("files", d.Len()),
	)
	return d, nil
}

// Refresh replays metadata records appended since the last replay.
func (d *Drive) Refresh(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for length := d.meta.Length(); d.replayed < length; d.replayed++ {
		b, err := d.meta.Get(ctx, types.BlockIndex(d.replayed))
		if err != nil {
			return fmt.Errorf("get record %d: %w", d.replayed, err)
		}
		var r Record
		if err := codec.Decode(b.Value, &r); err != nil {
			return fmt.Errorf("decode record %d: %w", d.replayed, err)
		}
		d.apply(d.replayed, &r)
	}
	return nil
}

// apply must be called with mu held.
func (d *Drive) apply(version uint64, r *Record) {
	switch r.Kind {
	case KindPut:
		stat := r.Stat
		d.files[r.Path] = &stat
	case KindDel:
		delete(d.files, r.Path)
	case KindTag:
		d.tags[r.Path] = version
	}
	d.contentEnd = max(d.contentEnd, r.ContentEnd)
}

func (d *Drive) record(ctx context.Context, r *Record) error {
	buf, err := codec.Encode(r)
	if err != nil {
		return err
	}
	if d.replayed != d.meta.Length() {
		return fmt.Errorf("metadata log has %d records not replayed", d.meta.Length()-d.replayed)
	}
	if _, err := d.meta.Append(ctx, buf); err != nil {
		return fmt.Errorf("append %s record: %w", r.Kind, err)
	}
	d.apply(d.replayed, r)
	d.replayed++
	return nil
}

// Clean returns the canonical drive path of name.
func Clean(name string) (string, error) {
	if name == "" || strings.ContainsRune(name, 0) {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, name)
	}
	return path.Clean("/" + name), nil
}

// Key returns the key of the metadata log, which identifies the drive.
func (d *Drive) Key() types.PublicKey { return d.meta.Key() }

// ContentKey returns the key of the content log.
func (d *Drive) ContentKey() types.PublicKey { return d.content.Key() }

// Version is the number of replayed metadata blocks.
func (d *Drive) Version() uint64 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.replayed
}

// ContentLength is the length of the content log referenced by the drive.
func (d *Drive) ContentLength() uint64 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.contentEnd
}

// Len returns the number of files.
func (d *Drive) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.files)
}

// Stat returns the latest version of the file.
func (d *Drive) Stat(name string) (Stat, error) {
	p, err := Clean(name)
	if err != nil {
		return Stat{}, err
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	stat, ok := d.files[p]
	if !ok {
		return Stat{}, &fs.PathError{Op: "stat", Path: p, Err: fs.ErrNotExist}
	}
	return *stat, nil
}

// Range returns the content blocks of the file.
func (d *Drive) Range(name string) (types.FileRange, error) {
	stat, err := d.Stat(name)
	if err != nil {
		return types.FileRange{}, err
	}
	p, _ := Clean(name)
	return stat.Range(p), nil
}

// ReadFile reads the whole file, fetching missing content blocks from peers.
func (d *Drive) ReadFile(ctx context.Context, name string) ([]byte, error) {
	stat, err := d.Stat(name)
	if err != nil {
		return nil, err
	}
	data := make([]byte, 0, stat.Size)
	for i := uint64(0); i < stat.Blocks; i++ {
		b, err := d.content.Get(ctx, stat.Offset+types.BlockIndex(i))
		if err != nil {
			return nil, fmt.Errorf("read %s block %d: %w", name, i, err)
		}
		data = append(data, b.Value...)
	}
	if uint64(len(data)) != stat.Size {
		return nil, fmt.Errorf("read %s: size %d, expected %d", name, len(data), stat.Size)
	}
	return data, nil
}

// WriteFile stores data as the new version of the file.
func (d *Drive) WriteFile(ctx context.Context, name string, data []byte, mode fs.FileMode, modTime time.Time) (Stat, error) {
	p, err := Clean(name)
	if err != nil {
		return Stat{}, err
	}
	var chunks [][]byte
	for rest := data; len(rest) > 0; {
		n := min(len(rest), d.blockSize)
		chunks = append(chunks, rest[:n])
		rest = rest[n:]
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	offset := types.BlockIndex(d.content.Length())
	if len(chunks) > 0 {
		first, err := d.content.Append(ctx, chunks...)
		if err != nil {
			return Stat{}, fmt.Errorf("append content of %s: %w", p, err)
		}
		offset = first
	}
	stat := Stat{
		Offset:  offset,
		Blocks:  uint64(len(chunks)),
		Size:    uint64(len(data)),
		Mode:    mode.Perm(),
		ModTime: modTime.UnixNano(),
		Hash:    hash.Sum(data),
	}
	r := &Record{Kind: KindPut, Path: p, Stat: stat, ContentEnd: d.content.Length()}
	if err := d.record(ctx, r); err != nil {
		return Stat{}, err
	}
	d.logger.Debug("wrote file", zap.String("path", p), zap.Object("stat", &stat))
	return stat, nil
}

// Remove deletes the file.
func (d *Drive) Remove(ctx context.Context, name string) error {
	p, err := Clean(name)
	if err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.files[p]; !ok {
		return &fs.PathError{Op: "remove", Path: p, Err: fs.ErrNotExist}
	}
	if err := d.record(ctx, &Record{Kind: KindDel, Path: p, ContentEnd: d.contentEnd}); err != nil {
		return err
	}
	d.logger.Debug("removed file", zap.String("path", p))
	return nil
}

// Tag names the current version and returns it.
func (d *Drive) Tag(ctx context.Context, name string) (uint64, error) {
	if name == "" {
		return 0, errors.New("empty tag")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	version := d.replayed
	if err := d.record(ctx, &Record{Kind: KindTag, Path: name, ContentEnd: d.contentEnd}); err != nil {
		return 0, err
	}
	return version, nil
}

// Tags returns all tags with the versions they point to.
func (d *Drive) Tags() map[string]uint64 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	tags := make(map[string]uint64, len(d.tags))
	for k, v := range d.tags {
		tags[k] = v
	}
	return tags
}

// Entries returns all files sorted by path.
func (d *Drive) Entries() []Entry {
	d.mu.RLock()
	defer d.mu.RUnlock()
	entries := make([]Entry, 0, len(d.files))
	for p, stat := range d.files {
		entries = append(entries, Entry{Path: p, Stat: *stat})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Path < entries[j].Path
	})
	return entries
}

// Readdir returns the sorted names of files and directories directly under dir.
func (d *Drive) Readdir(dir string) ([]string, error) {
	p, err := Clean(dir)
	if err != nil {
		return nil, err
	}
	prefix := p
	if prefix != "/" {
		prefix += "/"
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	seen := map[string]struct{}{}
	for name := range d.files {
		rest, ok := strings.CutPrefix(name, prefix)
		if !ok {
			continue
		}
		child, _, _ := strings.Cut(rest, "/")
		seen[child] = struct{}{}
	}
	if len(seen) == 0 && p != "/" {
		if _, isFile := d.files[p]; isFile {
			return nil, &fs.PathError{Op: "readdir", Path: p, Err: errors.New("not a directory")}
		}
		return nil, &fs.PathError{Op: "readdir", Path: p, Err: fs.ErrNotExist}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	slices.Sort(names)
	return names, nil
}

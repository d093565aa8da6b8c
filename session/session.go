// Package session runs create and sync of a drive published over the
// replicated logs of an Opener, and waits for peers to acknowledge what was
// written.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/spf13/afero"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spacemeshos/go-publisher/ack"
	"github.com/spacemeshos/go-publisher/blocklog"
	"github.com/spacemeshos/go-publisher/common/types"
	"github.com/spacemeshos/go-publisher/dirdiff"
	"github.com/spacemeshos/go-publisher/drive"
	"github.com/spacemeshos/go-publisher/log"
)

const (
	// MetadataLog is the name of the log holding the drive header and records.
	MetadataLog = "metadata"
	// ContentLog is the name of the log holding file content.
	ContentLog = "content"
	// IndexFile is written by create.
	IndexFile = "/index.json"

	headerPollInterval = time.Second
)

// Opt modifies Session.
type Opt func(*Session)

// WithLogger configures logger for the session.
func WithLogger(logger *zap.Logger) Opt {
	return func(s *Session) {
		s.logger = logger
	}
}

// WithModuleLoggers sets the loggers of the drive and acknowledgment layers.
// Defaults are derived from the session logger.
func WithModuleLoggers(driveLogger, ackLogger *zap.Logger) Opt {
	return func(s *Session) {
		s.driveLogger = driveLogger
		s.ackLogger = ackLogger
	}
}

// WithConfig overrides the default configuration.
func WithConfig(cfg Config) Opt {
	return func(s *Session) {
		s.cfg = cfg
	}
}

// WithFs sets the file system the source directory of a sync is read from.
func WithFs(fs afero.Fs) Opt {
	return func(s *Session) {
		s.fs = fs
	}
}

// WithClock sets the clock used for timeouts.
func WithClock(clock clockwork.Clock) Opt {
	return func(s *Session) {
		s.clock = clock
	}
}

// WithDiffer replaces the default dirdiff.Differ.
func WithDiffer(differ Differ) Opt {
	return func(s *Session) {
		s.differ = differ
	}
}

// WithPhaseObserver registers fn to be called on every phase change.
func WithPhaseObserver(fn func(Phase)) Opt {
	return func(s *Session) {
		s.observer = fn
	}
}

// CreateOptions parametrize Create.
type CreateOptions struct {
	// Seed of the drive. A random seed is generated when zero.
	Seed types.Seed
	// Title written to the index file.
	Title string
}

// CreateResult is returned by Create.
type CreateResult struct {
	Seed types.Seed
	URL  string
}

// SyncOptions parametrize Sync.
type SyncOptions struct {
	Seed types.Seed
	// FsPath is the source directory, the current directory when empty.
	FsPath string
	// DrivePath is the drive directory the source is written to.
	DrivePath string
	// Tag names the version created by the sync.
	Tag    string
	Ignore []string
	// Delete removes drive files that are missing from the source.
	Delete bool
}

// SyncResult is returned by Sync. It is also returned together with
// ErrAckTimeout, when the changes were written but not acknowledged.
type SyncResult struct {
	URL    string
	Diff   []types.Change
	Ranges []types.FileRange
	// Version is the number of metadata blocks after the sync.
	Version uint64
}

// Session runs create and sync operations. Operations don't share state and
// may run concurrently as long as they use different seeds.
type Session struct {
	logger      *zap.Logger
	driveLogger *zap.Logger
	ackLogger   *zap.Logger
	cfg         Config
	opener      Opener
	fs          afero.Fs
	clock       clockwork.Clock
	differ      Differ
	observer    func(Phase)
}

// New creates a Session opening logs with opener.
func New(opener Opener, opts ...Opt) *Session {
	s := &Session{
		logger: zap.NewNop(),
		cfg:    DefaultConfig(),
		opener: opener,
		fs:     afero.NewOsFs(),
		clock:  clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.driveLogger == nil {
		s.driveLogger = s.logger.Named("drive")
	}
	if s.ackLogger == nil {
		s.ackLogger = s.logger.Named("ack")
	}
	if s.differ == nil {
		s.differ = dirdiff.New(dirdiff.WithLogger(s.logger.Named("dirdiff")))
	}
	return s
}

// run tracks the phases of a single operation.
type run struct {
	s       *Session
	op      string
	fields  []zap.Field
	logger  *zap.Logger
	phase   Phase
	entered time.Time
}

func (s *Session) begin(ctx context.Context, op string) *run {
	fields := []zap.Field{log.ZContext(ctx), zap.String("op", op)}
	r := &run{
		s:       s,
		op:      op,
		fields:  fields,
		logger:  s.logger.With(fields...),
		phase:   Opening,
		entered: s.clock.Now(),
	}
	r.logger.Debug("session started")
	if s.observer != nil {
		s.observer(Opening)
	}
	return r
}

func (r *run) ackLogger() *zap.Logger {
	return r.s.ackLogger.With(r.fields...)
}

func (r *run) enter(p Phase) {
	now := r.s.clock.Now()
	phaseDuration.WithLabelValues(r.op, r.phase.String()).Observe(now.Sub(r.entered).Seconds())
	r.logger.Debug("session phase", zap.Stringer("from", r.phase), zap.Stringer("to", p))
	r.phase, r.entered = p, now
	if r.s.observer != nil {
		r.s.observer(p)
	}
}

func (r *run) finish(err error) {
	outcome := "done"
	switch {
	case err == nil:
		r.enter(Done)
	case errors.Is(err, ErrAckTimeout):
		outcome = "unconfirmed"
		r.enter(Failed)
	default:
		outcome = "failed"
		r.enter(Failed)
	}
	sessions.WithLabelValues(r.op, outcome).Inc()
	if err != nil {
		r.logger.Warn("session failed", zap.Error(err))
	} else {
		r.logger.Info("session done")
	}
}

// handles are the logs of a drive opened by one operation and the trackers
// attached to them.
type handles struct {
	meta, content         Log
	metaAcks, contentAcks *ack.Tracker
}

func (s *Session) open(ctx context.Context, r *run, seed types.Seed) (*handles, error) {
	meta, err := s.opener.Open(ctx, seed, MetadataLog)
	if err != nil {
		return nil, fmt.Errorf("open %s log: %w", MetadataLog, err)
	}
	content, err := s.opener.Open(ctx, seed, ContentLog)
	if err != nil {
		meta.Close()
		return nil, fmt.Errorf("open %s log: %w", ContentLog, err)
	}
	return &handles{
		meta:        meta,
		content:     content,
		metaAcks:    ack.Attach(meta, ack.WithLogger(r.ackLogger()), ack.WithName(MetadataLog)),
		contentAcks: ack.Attach(content, ack.WithLogger(r.ackLogger()), ack.WithName(ContentLog)),
	}, nil
}

func (h *handles) release(logger *zap.Logger) {
	h.metaAcks.Detach()
	h.contentAcks.Detach()
	if err := errors.Join(h.content.Close(), h.meta.Close()); err != nil {
		logger.Warn("failed to close logs", zap.Error(err))
	}
}

func (s *Session) driveOpts(r *run) []drive.Opt {
	return []drive.Opt{
		drive.WithLogger(s.driveLogger.With(r.fields...)),
		drive.WithBlockSize(s.cfg.BlockSize),
	}
}

// URL returns the URL of the drive created from seed.
func (s *Session) URL(ctx context.Context, seed types.Seed) (string, error) {
	if seed.IsZero() {
		return "", fmt.Errorf("%w: seed is required", ErrInvalidArgument)
	}
	meta, err := s.opener.Open(ctx, seed, MetadataLog)
	if err != nil {
		return "", fmt.Errorf("open %s log: %w", MetadataLog, err)
	}
	url := meta.Key().URL()
	if err := meta.Close(); err != nil {
		return "", err
	}
	return url, nil
}

// Create initializes the drive of opts.Seed with an index file and waits
// until a peer acknowledges it. A drive that already has a header is loaded
// instead.
func (s *Session) Create(ctx context.Context, opts CreateOptions) (*CreateResult, error) {
	seed := opts.Seed
	if seed.IsZero() {
		var err error
		if seed, err = types.RandomSeed(); err != nil {
			return nil, err
		}
	}
	ctx = log.WithNewSessionID(ctx)
	r := s.begin(ctx, "create")
	res, err := s.create(ctx, r, seed, opts.Title)
	r.finish(err)
	return res, err
}

func (s *Session) create(ctx context.Context, r *run, seed types.Seed, title string) (*CreateResult, error) {
	h, err := s.open(ctx, r, seed)
	if err != nil {
		return nil, err
	}
	defer h.release(r.logger)
	res := &CreateResult{Seed: seed, URL: h.meta.Key().URL()}
	r.logger.Info("opened drive", zap.String("url", res.URL))

	r.enter(AwaitingPeer)
	if err := s.awaitPeer(ctx, r, h.meta); err != nil {
		return nil, err
	}

	// the seed may already name a drive that peers hold and the local store lacks
	uctx, cancel := s.updateContext(ctx)
	err = h.meta.Update(uctx, blocklog.UpdateOptions{IfAvailable: true, MinLength: 1})
	cancel()
	switch {
	case err == nil:
	case ctx.Err() != nil:
		return nil, ctx.Err()
	case errors.Is(err, blocklog.ErrTooShort), errors.Is(err, blocklog.ErrUnreachable):
		r.logger.Debug("no remote metadata", zap.Error(err))
	default:
		return nil, fmt.Errorf("update %s log: %w", MetadataLog, err)
	}

	var (
		d       *drive.Drive
		written = types.BlockIndex(h.meta.Length())
		ranges  []types.FileRange
	)
	if written == 0 {
		d, err = drive.Init(ctx, h.meta, h.content, s.driveOpts(r)...)
		if err != nil {
			return nil, err
		}
		index, err := indexJSON(title, h.meta.Key())
		if err != nil {
			return nil, err
		}
		if _, err := d.WriteFile(ctx, IndexFile, index, 0o644, s.clock.Now()); err != nil {
			return nil, err
		}
		if rng, err := d.Range(IndexFile); err == nil && !rng.Empty() {
			ranges = append(ranges, rng)
		}
	} else {
		r.logger.Info("drive is already initialized", zap.Uint64("metadata_length", h.meta.Length()))
		if d, err = drive.Load(ctx, h.meta, h.content, s.driveOpts(r)...); err != nil {
			return nil, err
		}
	}

	r.enter(AwaitingAck)
	meta := types.FileRange{Path: MetadataLog, Start: written, End: types.BlockIndex(h.meta.Length())}
	if err := s.awaitAcks(ctx, r, h, ranges, meta); err != nil {
		return res, err
	}
	return res, nil
}

func indexJSON(title string, key types.PublicKey) ([]byte, error) {
	if title == "" {
		title = fmt.Sprintf("Hyperdrive-Publisher %x", key[:4])
	}
	return json.MarshalIndent(struct {
		Title string `json:"title"`
	}{Title: title}, "", "  ")
}

// Sync writes the changes between the source directory and the drive of
// opts.Seed and waits until a peer acknowledges the written blocks.
//
// The metadata must be reachable on the network: a sync never initializes a
// drive. On ErrAckTimeout the result is returned together with the error.
func (s *Session) Sync(ctx context.Context, opts SyncOptions) (*SyncResult, error) {
	if opts.Seed.IsZero() {
		return nil, fmt.Errorf("%w: seed is required", ErrInvalidArgument)
	}
	if opts.FsPath == "" {
		opts.FsPath = "."
	}
	info, err := s.fs.Stat(opts.FsPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrInvalidArgument, opts.FsPath)
	}
	ctx = log.WithNewSessionID(ctx)
	r := s.begin(ctx, "sync")
	res, err := s.sync(ctx, r, opts)
	r.finish(err)
	return res, err
}

func (s *Session) sync(ctx context.Context, r *run, opts SyncOptions) (*SyncResult, error) {
	h, err := s.open(ctx, r, opts.Seed)
	if err != nil {
		return nil, err
	}
	defer h.release(r.logger)
	res := &SyncResult{URL: h.meta.Key().URL()}
	r.logger.Info("opened drive", zap.String("url", res.URL))

	r.enter(AwaitingPeer)
	if err := s.awaitPeer(ctx, r, h.meta); err != nil {
		return nil, err
	}

	r.enter(SyncingMetadata)
	d, err := s.syncMetadata(ctx, r, h)
	if err != nil {
		return nil, err
	}

	r.enter(Diffing)
	src := afero.NewBasePathFs(s.fs, opts.FsPath)
	dopts := dirdiff.Options{
		Ignore:         append(slices.Clone(s.cfg.Ignore), opts.Ignore...),
		Prefix:         opts.DrivePath,
		Delete:         opts.Delete,
		CompareContent: s.cfg.CompareContent,
	}
	diff, err := s.differ.Diff(ctx, src, d, dopts)
	if err != nil {
		return nil, fmt.Errorf("diff: %w", err)
	}
	res.Diff = diff
	r.logger.Info("computed diff", zap.Array("changes", types.Changes(diff)))

	written := types.BlockIndex(h.meta.Length())
	if len(diff) > 0 {
		r.enter(Applying)
		if err := s.differ.Apply(ctx, src, d, diff, dopts); err != nil {
			return res, fmt.Errorf("apply: %w", err)
		}
		for _, c := range diff {
			changes.WithLabelValues(c.Kind.String()).Inc()
			if c.Kind == types.ChangeDel {
				continue
			}
			rng, err := d.Range(c.Path)
			if err != nil {
				return res, err
			}
			if !rng.Empty() {
				res.Ranges = append(res.Ranges, rng)
			}
		}
	}
	if opts.Tag != "" {
		version, err := d.Tag(ctx, opts.Tag)
		if err != nil {
			return res, fmt.Errorf("tag %s: %w", opts.Tag, err)
		}
		r.logger.Info("tagged version", zap.String("tag", opts.Tag), zap.Uint64("version", version))
	}
	res.Version = d.Version()

	r.enter(AwaitingAck)
	meta := types.FileRange{Path: MetadataLog, Start: written, End: types.BlockIndex(h.meta.Length())}
	if err := s.awaitAcks(ctx, r, h, res.Ranges, meta); err != nil {
		return res, err
	}
	return res, nil
}

// syncMetadata fast-forwards the metadata log from peers and replays it.
// Every failure is ErrMetadataUnreachable.
func (s *Session) syncMetadata(ctx context.Context, r *run, h *handles) (*drive.Drive, error) {
	uctx, cancel := s.updateContext(ctx)
	defer cancel()
	err := h.meta.Update(uctx, blocklog.UpdateOptions{
		IfAvailable: true,
		MinLength:   s.cfg.MinMetadataLength,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: update: %w", ErrMetadataUnreachable, err)
	}
	if _, err := h.meta.Head(uctx); err != nil {
		return nil, fmt.Errorf("%w: head: %w", ErrMetadataUnreachable, err)
	}
	d, err := drive.Load(ctx, h.meta, h.content, s.driveOpts(r)...)
	if err != nil {
		return nil, fmt.Errorf("%w: load drive: %w", ErrMetadataUnreachable, err)
	}
	r.logger.Info("synced metadata",
		zap.Uint64("version", d.Version()),
		zap.Int("files", d.Len()),
	)
	return d, nil
}

// updateContext bounds a metadata update by UpdateTimeout.
func (s *Session) updateContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.cfg.UpdateTimeout > 0 {
		return context.WithTimeout(ctx, s.cfg.UpdateTimeout)
	}
	return context.WithCancel(ctx)
}

// awaitPeer returns once l has a peer.
func (s *Session) awaitPeer(ctx context.Context, r *run, l Log) error {
	connected := make(chan peer.ID, 1)
	sub := l.PeerConnects().Subscribe(func(id peer.ID) {
		select {
		case connected <- id:
		default:
		}
	})
	defer sub.Unsubscribe()
	if peers := l.Peers(); len(peers) > 0 {
		r.logger.Debug("already connected", zap.Int("peers", len(peers)))
		return nil
	}
	var timeout <-chan time.Time
	if s.cfg.PeerTimeout > 0 {
		timer := s.clock.NewTimer(s.cfg.PeerTimeout)
		defer timer.Stop()
		timeout = timer.Chan()
	}
	select {
	case id := <-connected:
		r.logger.Info("peer connected", zap.Stringer("peer", id))
		return nil
	case <-timeout:
		return fmt.Errorf("%w: waited %s", ErrNoPeerFound, s.cfg.PeerTimeout)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// awaitAcks waits for content ranges and the metadata range concurrently.
func (s *Session) awaitAcks(ctx context.Context, r *run, h *handles, content []types.FileRange, meta types.FileRange) error {
	opts := []ack.WaitOpt{ack.WithClock(s.clock), ack.WithWaitLogger(r.ackLogger())}
	if s.cfg.AckTimeout > 0 {
		opts = append(opts, ack.WithTimeout(s.cfg.AckTimeout))
	}
	wait := func(t *ack.Tracker, ranges []types.FileRange) func() error {
		return func() error {
			outcome, err := ack.Wait(ctx, t, ranges, opts...)
			switch {
			case outcome == ack.Satisfied:
				return nil
			case errors.Is(err, ack.ErrTimeout):
				return fmt.Errorf("%w: %w", ErrAckTimeout, err)
			default:
				return err
			}
		}
	}
	var metaRanges []types.FileRange
	if !meta.Empty() {
		metaRanges = append(metaRanges, meta)
	}
	r.logger.Info("waiting for acknowledgments",
		zap.Array("content", types.FileRanges(content)),
		zap.Object("metadata", meta),
	)
	var eg errgroup.Group
	eg.Go(wait(h.metaAcks, metaRanges))
	eg.Go(wait(h.contentAcks, content))
	return eg.Wait()
}

// Mirror replicates the drive with the given metadata key eagerly until ctx
// is done, acknowledging every block it stores. It is what a seeding peer runs.
func (s *Session) Mirror(ctx context.Context, key types.PublicKey) error {
	logger := s.logger.With(zap.String("drive", key.ShortString()))
	meta, err := s.opener.Join(ctx, key, true)
	if err != nil {
		return fmt.Errorf("join %s log: %w", MetadataLog, err)
	}
	defer meta.Close()
	logger.Info("waiting for drive header")
	for {
		err := meta.Update(ctx, blocklog.UpdateOptions{MinLength: 1})
		if err == nil {
			break
		}
		logger.Debug("drive header is not available", zap.Error(err))
		select {
		case <-ctx.Done():
			return nil
		case <-s.clock.After(headerPollInterval):
		}
	}
	header, err := drive.ReadHeader(ctx, meta)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}
	content, err := s.opener.Join(ctx, header.ContentKey, true)
	if err != nil {
		return fmt.Errorf("join %s log: %w", ContentLog, err)
	}
	defer content.Close()
	logger.Info("mirroring drive",
		zap.String("url", key.URL()),
		zap.String("content", header.ContentKey.ShortString()),
	)
	<-ctx.Done()
	return nil
}

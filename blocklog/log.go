// Package blocklog implements a signed append-only log of blocks that is
// replicated between peers.
//
// A log is identified by its ed25519 public key and is writable when the
// private key is known. Blocks are fetched from peers on demand (sparse) or,
// for seeders, as soon as a peer advertises them (eager). Eager logs
// acknowledge every stored block to all peers, which is what writers observe
// through Acks.
package blocklog

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/libp2p/go-libp2p/core/peer"
	"go.uber.org/zap"

	"github.com/spacemeshos/go-publisher/ack"
	"github.com/spacemeshos/go-publisher/common/types"
	"github.com/spacemeshos/go-publisher/events"
	"github.com/spacemeshos/go-publisher/signing"
)

var (
	ErrEmpty        = errors.New("log is empty")
	ErrReadOnly     = errors.New("log is read only")
	ErrClosed       = errors.New("log is closed")
	ErrUnreachable  = errors.New("log is unreachable")
	ErrTooShort     = errors.New("log is shorter than required")
	ErrInvalidBlock = errors.New("invalid block")
	ErrNotFound     = errors.New("block not found")
	ErrKeyMismatch  = errors.New("private key does not match log key")
)

const defaultWindow = 64

// UpdateOptions parametrize Update.
type UpdateOptions struct {
	// IfAvailable fails right away when no peer replicates the log.
	IfAvailable bool
	// MinLength is the length the log is expected to reach.
	MinLength uint64
}

// Opt modifies Log.
type Opt func(*Log)

// WithLogger configures logger for the log.
func WithLogger(logger *zap.Logger) Opt {
	return func(l *Log) {
		l.logger = logger
	}
}

// WithName sets a human readable name used in logs.
func WithName(name string) Opt {
	return func(l *Log) {
		l.name = name
	}
}

// WithPrivateKey makes the log writable.
func WithPrivateKey(priv signing.PrivateKey) Opt {
	return func(l *Log) {
		l.priv = priv
	}
}

// WithEager downloads every block as soon as a peer advertises it and
// acknowledges stored blocks to all peers.
func WithEager() Opt {
	return func(l *Log) {
		l.eager = true
	}
}

// WithWindow limits the number of outstanding eager requests.
func WithWindow(n int) Opt {
	return func(l *Log) {
		l.window = n
	}
}

// WithCloseHook registers fn to be called once when the log is closed.
func WithCloseHook(fn func()) Opt {
	return func(l *Log) {
		l.onClose = append(l.onClose, fn)
	}
}

type remote struct {
	length uint64
	known  bool
	holds  *ack.Bitfield
	lacks  map[types.BlockIndex]struct{}
}

// Log is a replicated append-only log.
type Log struct {
	logger   *zap.Logger
	name     string
	key      types.PublicKey
	dkey     types.DiscoveryKey
	priv     signing.PrivateKey
	signer   *signing.EdSigner
	verifier *signing.EdVerifier
	store    Store
	eager    bool
	window   int
	onClose  []func()

	mu         sync.Mutex
	closed     bool
	length     uint64
	have       *ack.Bitfield
	contiguous types.BlockIndex
	peers      map[Peer]*remote
	requested  map[types.BlockIndex]Peer
	wanted     map[types.BlockIndex]int
	changed    chan struct{}

	connects events.Feed[peer.ID]
	acks     events.Feed[types.AckEvent]
}

// New opens the log with the given key on top of store.
func New(key types.PublicKey, store Store, opts ...Opt) (*Log, error) {
	l := &Log{
		logger:    zap.NewNop(),
		key:       key,
		dkey:      DiscoveryKeyOf(key),
		store:     store,
		window:    defaultWindow,
		have:      ack.NewBitfield(),
		peers:     map[Peer]*remote{},
		requested: map[types.BlockIndex]Peer{},
		wanted:    map[types.BlockIndex]int{},
		changed:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.logger = l.logger.With(zap.String("log", l.name), zap.String("dkey", l.dkey.ShortString()))
	l.verifier = signing.NewEdVerifier(signing.WithVerifierPrefix(l.dkey[:]))
	if l.priv != nil {
		signer, err := signing.NewEdSigner(signing.WithPrivateKey(l.priv), signing.WithPrefix(l.dkey[:]))
		if err != nil {
			return nil, fmt.Errorf("create signer: %w", err)
		}
		if signer.PublicKey() != key {
			return nil, ErrKeyMismatch
		}
		l.signer = signer
	}
	length, err := store.Length(l.dkey)
	if err != nil {
		return nil, fmt.Errorf("load length: %w", err)
	}
	l.length = length
	if err := store.Blocks(l.dkey, func(i types.BlockIndex) bool {
		l.have.Set(i)
		return true
	}); err != nil {
		return nil, fmt.Errorf("load stored blocks: %w", err)
	}
	l.advance()
	l.logger.Debug("opened log",
		zap.Uint64("length", l.length),
		zap.Uint64("stored", l.have.Count()),
		zap.Bool("writable", l.Writable()),
		zap.Bool("eager", l.eager),
	)
	return l, nil
}

// Name returns the name of the log.
func (l *Log) Name() string { return l.name }

// Key returns the public key of the log.
func (l *Log) Key() types.PublicKey { return l.key }

// DiscoveryKey returns the key that identifies the log on the wire.
func (l *Log) DiscoveryKey() types.DiscoveryKey { return l.dkey }

// Writable is true when the private key is known.
func (l *Log) Writable() bool { return l.signer != nil }

// Length returns the known length of the log. Blocks below it may be stored
// locally or only available from peers.
func (l *Log) Length() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.length
}

// Stored returns the number of blocks held locally.
func (l *Log) Stored() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.have.Count()
}

// PeerConnects notifies about peers that started replicating the log.
func (l *Log) PeerConnects() *events.Feed[peer.ID] { return &l.connects }

// Acks notifies about remote acknowledgments (Ack is true) and about blocks
// uploaded to peers (Ack is false).
func (l *Log) Acks() *events.Feed[types.AckEvent] { return &l.acks }

// Peers returns the ids of peers replicating the log.
func (l *Log) Peers() []peer.ID {
	l.mu.Lock()
	defer l.mu.Unlock()
	seen := make(map[peer.ID]struct{}, len(l.peers))
	ids := make([]peer.ID, 0, len(l.peers))
	for p := range l.peers {
		if _, ok := seen[p.ID()]; !ok {
			seen[p.ID()] = struct{}{}
			ids = append(ids, p.ID())
		}
	}
	return ids
}

// Append signs and stores values as consecutive blocks and returns the index of the first one.
func (l *Log) Append(ctx context.Context, values ...[]byte) (types.BlockIndex, error) {
	if l.signer == nil {
		return 0, ErrReadOnly
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	for _, value := range values {
		if len(value) > MaxBlockSize {
			return 0, fmt.Errorf("block of %d bytes exceeds limit of %d", len(value), MaxBlockSize)
		}
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return 0, ErrClosed
	}
	first := types.BlockIndex(l.length)
	for i, value := range values {
		b := &Block{Index: first + types.BlockIndex(i), Value: value}
		b.Signature = l.signer.Sign(signing.BLOCK, signedMessage(b.Index, value))
		if err := l.store.Put(l.dkey, b); err != nil {
			return 0, fmt.Errorf("store block %d: %w", b.Index, err)
		}
		l.have.Set(b.Index)
	}
	l.length += uint64(len(values))
	if err := l.store.SetLength(l.dkey, l.length); err != nil {
		return 0, fmt.Errorf("store length: %w", err)
	}
	l.advance()
	for p := range l.peers {
		p.Have(l.length)
	}
	l.notify()
	appendedBlocks.Add(float64(len(values)))
	return first, nil
}

// Get returns the block at index, requesting it from peers when it is not stored locally.
// It blocks until the block is received or ctx is done.
func (l *Log) Get(ctx context.Context, index types.BlockIndex) (*Block, error) {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil, ErrClosed
	}
	if uint64(index) >= l.length {
		length := l.length
		l.mu.Unlock()
		return nil, fmt.Errorf("%w: index %d, length %d", ErrNotFound, index, length)
	}
	if l.have.Has(index) {
		l.mu.Unlock()
		return l.store.Get(l.dkey, index)
	}
	l.wanted[index]++
	l.request(index)
	err := l.awaitBlock(ctx, index)
	if l.wanted[index]--; l.wanted[index] <= 0 {
		delete(l.wanted, index)
	}
	l.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return l.store.Get(l.dkey, index)
}

// awaitBlock waits until index is stored. Must be called with mu held, returns with mu held.
func (l *Log) awaitBlock(ctx context.Context, index types.BlockIndex) error {
	for !l.have.Has(index) {
		if l.closed {
			return ErrClosed
		}
		changed := l.changed
		l.mu.Unlock()
		select {
		case <-ctx.Done():
			l.mu.Lock()
			return ctx.Err()
		case <-changed:
		}
		l.mu.Lock()
	}
	return nil
}

// Head returns the last block of the log.
func (l *Log) Head(ctx context.Context) (*Block, error) {
	length := l.Length()
	if length == 0 {
		return nil, ErrEmpty
	}
	return l.Get(ctx, types.BlockIndex(length-1))
}

// Update fast-forwards the known length to the longest length advertised by peers.
//
// It waits until at least one peer advertised its length, or until every peer
// did when the first answers are shorter than MinLength. ErrUnreachable is
// returned when no peer answers before ctx is done, ErrTooShort when the
// resulting length is below MinLength.
func (l *Log) Update(ctx context.Context, opts UpdateOptions) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for {
		if l.closed {
			return ErrClosed
		}
		best, answered, all := l.advertised()
		if best > l.length {
			l.logger.Debug("fast-forward", zap.Uint64("from", l.length), zap.Uint64("to", best))
			l.length = best
			if err := l.store.SetLength(l.dkey, l.length); err != nil {
				return fmt.Errorf("store length: %w", err)
			}
			l.schedule()
			l.notify()
		}
		if answered > 0 && (l.length >= opts.MinLength || all) {
			break
		}
		if opts.IfAvailable && len(l.peers) == 0 {
			return fmt.Errorf("%w: no peers", ErrUnreachable)
		}
		changed := l.changed
		l.mu.Unlock()
		select {
		case <-ctx.Done():
			l.mu.Lock()
			if answered == 0 {
				return fmt.Errorf("%w: %w", ErrUnreachable, ctx.Err())
			}
			return fmt.Errorf("%w: %d < %d", ErrTooShort, l.length, opts.MinLength)
		case <-changed:
		}
		l.mu.Lock()
	}
	if l.length < opts.MinLength {
		return fmt.Errorf("%w: %d < %d", ErrTooShort, l.length, opts.MinLength)
	}
	return nil
}

// advertised returns the longest advertised length, the number of peers that
// advertised and whether all of them did. Must be called with mu held.
func (l *Log) advertised() (uint64, int, bool) {
	var (
		best     uint64
		answered int
	)
	for _, r := range l.peers {
		if r.known {
			answered++
			best = max(best, r.length)
		}
	}
	return best, answered, answered == len(l.peers)
}

// Close stops replication of the log. Stored blocks are kept in the store.
func (l *Log) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	l.notify()
	hooks := l.onClose
	l.mu.Unlock()
	for _, hook := range hooks {
		hook()
	}
	l.connects.Reset()
	l.acks.Reset()
	l.logger.Debug("closed log")
	return nil
}

func (l *Log) verify(b *Block) bool {
	return l.verifier.Verify(signing.BLOCK, l.key, signedMessage(b.Index, b.Value), b.Signature)
}

// advance moves the contiguous cursor past stored blocks. Must be called with mu held.
func (l *Log) advance() {
	for l.have.Has(l.contiguous) {
		l.contiguous++
	}
}

// notify wakes everyone waiting for a state change. Must be called with mu held.
func (l *Log) notify() {
	close(l.changed)
	l.changed = make(chan struct{})
}

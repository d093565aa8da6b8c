package blocklog

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/syndtr/goleveldb/leveldb"
	lerrors "github.com/syndtr/goleveldb/leveldb/errors"
	"github.com/syndtr/goleveldb/leveldb/filter"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"
	"go.uber.org/zap"

	"github.com/spacemeshos/go-publisher/codec"
	"github.com/spacemeshos/go-publisher/common/types"
)

// ErrLocked is returned when another process holds the data directory.
var ErrLocked = errors.New("data directory is used by another process")

const (
	blockPrefix  = 'b'
	lengthPrefix = 'l'

	lockFile = "publisher.lock"
	dbDir    = "blocks"

	defaultCacheSize = 1024
)

type blockKey struct {
	log   types.DiscoveryKey
	index types.BlockIndex
}

// LevelStoreOpt modifies LevelStore.
type LevelStoreOpt func(*LevelStore)

// WithStoreLogger configures logger for the store.
func WithStoreLogger(logger *zap.Logger) LevelStoreOpt {
	return func(s *LevelStore) {
		s.logger = logger
	}
}

// WithCacheSize sets the number of decoded blocks kept in memory.
func WithCacheSize(size int) LevelStoreOpt {
	return func(s *LevelStore) {
		s.cacheSize = size
	}
}

// LevelStore keeps blocks of all logs in a single leveldb database.
// Keys are prefixed by the discovery key of the log.
// The data directory is locked for the lifetime of the store.
type LevelStore struct {
	logger    *zap.Logger
	cacheSize int

	lock  *flock.Flock
	db    *leveldb.DB
	cache *lru.Cache[blockKey, *Block]
}

var _ Store = (*LevelStore)(nil)

// OpenLevelStore opens or creates the store under dir.
func OpenLevelStore(dir string, opts ...LevelStoreOpt) (*LevelStore, error) {
	s := &LevelStore{
		logger:    zap.NewNop(),
		cacheSize: defaultCacheSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create data dir %s: %w", dir, err)
	}
	fl := flock.New(filepath.Join(dir, lockFile))
	locked, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("flock %s: %w", fl.Path(), err)
	} else if !locked {
		return nil, fmt.Errorf("%w: %s", ErrLocked, fl.Path())
	}
	s.lock = fl

	path := filepath.Join(dir, dbDir)
	db, err := leveldb.OpenFile(path, &opt.Options{
		Filter: filter.NewBloomFilter(10),
	})
	var corrupted *lerrors.ErrCorrupted
	if errors.As(err, &corrupted) {
		s.logger.Warn("recovering corrupted block store", zap.String("path", path), zap.Error(err))
		db, err = leveldb.RecoverFile(path, nil)
	}
	if err != nil {
		s.unlock()
		return nil, fmt.Errorf("open leveldb %s: %w", path, err)
	}
	s.db = db

	cache, err := lru.New[blockKey, *Block](s.cacheSize)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("create block cache: %w", err)
	}
	s.cache = cache
	s.logger.Info("opened block store", zap.String("path", path), zap.Int("cache_size", s.cacheSize))
	return s, nil
}

func blockDBKey(key types.DiscoveryKey, index types.BlockIndex) []byte {
	buf := make([]byte, 1+len(key)+8)
	buf[0] = blockPrefix
	copy(buf[1:], key[:])
	binary.BigEndian.PutUint64(buf[1+len(key):], uint64(index))
	return buf
}

func blockDBPrefix(key types.DiscoveryKey) []byte {
	return append([]byte{blockPrefix}, key[:]...)
}

func lengthDBKey(key types.DiscoveryKey) []byte {
	return append([]byte{lengthPrefix}, key[:]...)
}

func (s *LevelStore) Get(key types.DiscoveryKey, index types.BlockIndex) (*Block, error) {
	ck := blockKey{log: key, index: index}
	if b, ok := s.cache.Get(ck); ok {
		cacheHit.Inc()
		return b, nil
	}
	cacheMiss.Inc()
	buf, err := s.db.Get(blockDBKey(key, index), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, fmt.Errorf("get block %d: %w", index, err)
	}
	var b Block
	if err := codec.Decode(buf, &b); err != nil {
		return nil, fmt.Errorf("decode block %d: %w", index, err)
	}
	s.cache.Add(ck, &b)
	return &b, nil
}

func (s *LevelStore) Has(key types.DiscoveryKey, index types.BlockIndex) (bool, error) {
	if s.cache.Contains(blockKey{log: key, index: index}) {
		return true, nil
	}
	return s.db.Has(blockDBKey(key, index), nil)
}

func (s *LevelStore) Put(key types.DiscoveryKey, block *Block) error {
	buf, err := codec.Encode(block)
	if err != nil {
		return fmt.Errorf("encode block %d: %w", block.Index, err)
	}
	if err := s.db.Put(blockDBKey(key, block.Index), buf, nil); err != nil {
		return fmt.Errorf("put block %d: %w", block.Index, err)
	}
	s.cache.Add(blockKey{log: key, index: block.Index}, block)
	return nil
}

func (s *LevelStore) Blocks(key types.DiscoveryKey, fn func(types.BlockIndex) bool) error {
	prefix := blockDBPrefix(key)
	it := s.db.NewIterator(util.BytesPrefix(prefix), nil)
	defer it.Release()
	for it.Next() {
		if !fn(types.BlockIndex(binary.BigEndian.Uint64(it.Key()[len(prefix):]))) {
			break
		}
	}
	return it.Error()
}

func (s *LevelStore) Length(key types.DiscoveryKey) (uint64, error) {
	buf, err := s.db.Get(lengthDBKey(key), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return 0, nil
	} else if err != nil {
		return 0, fmt.Errorf("get length: %w", err)
	}
	return binary.BigEndian.Uint64(buf), nil
}

func (s *LevelStore) SetLength(key types.DiscoveryKey, length uint64) error {
	buf := binary.BigEndian.AppendUint64(nil, length)
	if err := s.db.Put(lengthDBKey(key), buf, nil); err != nil {
		return fmt.Errorf("put length: %w", err)
	}
	return nil
}

// Close closes the database and releases the data directory.
func (s *LevelStore) Close() error {
	var err error
	if s.db != nil {
		if cerr := s.db.Close(); cerr != nil {
			err = fmt.Errorf("close leveldb: %w", cerr)
		}
	}
	s.unlock()
	return err
}

func (s *LevelStore) unlock() {
	if err := s.lock.Unlock(); err != nil {
		s.logger.Error("failed to unlock data directory", zap.String("path", s.lock.Path()), zap.Error(err))
	}
}

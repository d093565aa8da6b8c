package blocklog

import (
	"sync"

	"github.com/spacemeshos/go-publisher/common/types"
)

// Store persists blocks of many logs, partitioned by discovery key.
type Store interface {
	Get(key types.DiscoveryKey, index types.BlockIndex) (*Block, error)
	Has(key types.DiscoveryKey, index types.BlockIndex) (bool, error)
	Put(key types.DiscoveryKey, block *Block) error
	// Blocks calls fn for every stored index of the log until fn returns false.
	Blocks(key types.DiscoveryKey, fn func(types.BlockIndex) bool) error
	Length(key types.DiscoveryKey) (uint64, error)
	SetLength(key types.DiscoveryKey, length uint64) error
	Close() error
}

type memoryLog struct {
	blocks map[types.BlockIndex]*Block
	length uint64
}

// MemoryStore keeps blocks in memory for the lifetime of the process.
type MemoryStore struct {
	mu   sync.RWMutex
	logs map[types.DiscoveryKey]*memoryLog
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{logs: map[types.DiscoveryKey]*memoryLog{}}
}

func (s *MemoryStore) log(key types.DiscoveryKey) *memoryLog {
	l, ok := s.logs[key]
	if !ok {
		l = &memoryLog{blocks: map[types.BlockIndex]*Block{}}
		s.logs[key] = l
	}
	return l
}

func (s *MemoryStore) Get(key types.DiscoveryKey, index types.BlockIndex) (*Block, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if l, ok := s.logs[key]; ok {
		if b, ok := l.blocks[index]; ok {
			return b, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) Has(key types.DiscoveryKey, index types.BlockIndex) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.logs[key]
	if !ok {
		return false, nil
	}
	_, ok = l.blocks[index]
	return ok, nil
}

func (s *MemoryStore) Put(key types.DiscoveryKey, block *Block) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.log(key).blocks[block.Index] = block
	return nil
}

func (s *MemoryStore) Blocks(key types.DiscoveryKey, fn func(types.BlockIndex) bool) error {
	s.mu.RLock()
	var indices []types.BlockIndex
	if l, ok := s.logs[key]; ok {
		indices = make([]types.BlockIndex, 0, len(l.blocks))
		for i := range l.blocks {
			indices = append(indices, i)
		}
	}
	s.mu.RUnlock()
	for _, i := range indices {
		if !fn(i) {
			return nil
		}
	}
	return nil
}

func (s *MemoryStore) Length(key types.DiscoveryKey) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if l, ok := s.logs[key]; ok {
		return l.length, nil
	}
	return 0, nil
}

func (s *MemoryStore) SetLength(key types.DiscoveryKey, length uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.log(key).length = length
	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}

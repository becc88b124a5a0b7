package memory

import (
	"sync"

	"github.com/google/uuid"

	shredderDomain "github.com/allisson/cryptoshred/internal/shredder/domain"
)

type shard struct {
	mu         sync.RWMutex
	entries    map[uuid.UUID]*shredderDomain.WrappedKeyEntry
	shredded   map[uuid.UUID]struct{}
	generation uint64
}

func newShard() *shard {
	return &shard{
		entries:  make(map[uuid.UUID]*shredderDomain.WrappedKeyEntry),
		shredded: make(map[uuid.UUID]struct{}),
	}
}

func (s *shard) insert(entry *shredderDomain.WrappedKeyEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.shredded[entry.RecordID]; ok {
		entry.Zero()
		return shredderDomain.ErrErased
	}
	if _, ok := s.entries[entry.RecordID]; ok {
		entry.Zero()
		return shredderDomain.ErrDuplicateRecordID
	}
	s.entries[entry.RecordID] = entry
	return nil
}

func (s *shard) versionOf(id uuid.UUID) (uint, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.entries[id]
	if !ok {
		return 0, false
	}
	return entry.MasterKeyVersion, true
}

func (s *shard) lookup(id uuid.UUID) (*shredderDomain.WrappedKeyEntry, uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.entries[id]
	if !ok {
		return nil, s.generation
	}
	return entry.Clone(), s.generation
}

// remove deletes the entry for id. A tombstoned id is never accepted by insert again.
func (s *shard) remove(id uuid.UUID, tombstone bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.generation++
	if tombstone {
		s.shredded[id] = struct{}{}
	}
	entry, ok := s.entries[id]
	if !ok {
		return false
	}
	delete(s.entries, id)
	entry.Zero()
	return true
}

func (s *shard) replace(entry *shredderDomain.WrappedKeyEntry, expectedVersion uint) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.entries[entry.RecordID]
	if !ok || current.MasterKeyVersion != expectedVersion {
		entry.Zero()
		return false
	}
	s.generation++
	s.entries[entry.RecordID] = entry
	current.Zero()
	return true
}

func (s *shard) storeIfGeneration(entry *shredderDomain.WrappedKeyEntry, generation uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.generation != generation {
		entry.Zero()
		return false
	}
	if _, ok := s.entries[entry.RecordID]; ok {
		entry.Zero()
		return false
	}
	s.entries[entry.RecordID] = entry
	return true
}

func (s *shard) gen() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.generation
}

func (s *shard) idsByVersion(version uint) []uuid.UUID {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var ids []uuid.UUID
	for id, entry := range s.entries {
		if entry.MasterKeyVersion == version {
			ids = append(ids, id)
		}
	}
	return ids
}

func (s *shard) len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.entries)
}

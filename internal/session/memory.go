package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

type memoryEntry struct {
	data     []byte
	seq      uint64
	deadline time.Time
}

// MemoryStore is an in-process Store for tests and single-node runs.
// Records are held serialized so reads never alias a caller's session.
// Expiry is lazy: an entry past its deadline behaves as absent.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*memoryEntry
	now     func() time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]*memoryEntry),
		now:     time.Now,
	}
}

func (m *MemoryStore) Get(ctx context.Context, id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e := m.live(id)
	if e == nil {
		return nil, ErrNotFound
	}

	var s Session
	if err := json.Unmarshal(e.data, &s); err != nil {
		return nil, &StorageError{Op: "get", Err: fmt.Errorf("decode record: %w", err)}
	}
	return &s, nil
}

func (m *MemoryStore) Put(ctx context.Context, id string, s *Session, expectedSeq uint64, ttl time.Duration) error {
	data, err := json.Marshal(s)
	if err != nil {
		return &StorageError{Op: "put", Err: fmt.Errorf("encode record: %w", err)}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	e := m.live(id)
	if expectedSeq == 0 {
		if e != nil {
			return ErrConflict
		}
	} else {
		if e == nil {
			return ErrNotFound
		}
		if e.seq != expectedSeq {
			return ErrConflict
		}
	}

	m.entries[id] = &memoryEntry{
		data:     data,
		seq:      s.Seq,
		deadline: m.now().Add(ttl),
	}
	return nil
}

func (m *MemoryStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, id)
	return nil
}

func (m *MemoryStore) Extend(ctx context.Context, id string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e := m.live(id)
	if e == nil {
		return ErrNotFound
	}
	e.deadline = m.now().Add(ttl)
	return nil
}

// live returns the entry for id, reaping it first if expired.
// Callers must hold the mutex.
func (m *MemoryStore) live(id string) *memoryEntry {
	e, ok := m.entries[id]
	if !ok {
		return nil
	}
	if m.now().After(e.deadline) {
		delete(m.entries, id)
		return nil
	}
	return e
}

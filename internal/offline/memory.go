package offline

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// MemoryStorage keeps stores in process memory. All stores share one quota
// (0 means unlimited).
type MemoryStorage struct {
	mu     sync.Mutex
	quota  int64
	used   int64
	stores map[string]*memoryStore
}

type memoryStore struct {
	name    string
	parent  *MemoryStorage
	entries map[string]Snapshot
	deleted bool
}

// NewMemoryStorage creates an empty in-memory storage.
func NewMemoryStorage(quota int64) *MemoryStorage {
	return &MemoryStorage{
		quota:  quota,
		stores: make(map[string]*memoryStore),
	}
}

func (m *MemoryStorage) Open(_ context.Context, name string) (Store, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.stores[name]; ok {
		return s, nil
	}
	s := &memoryStore{name: name, parent: m, entries: make(map[string]Snapshot)}
	m.stores[name] = s
	return s, nil
}

func (m *MemoryStorage) Names(context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	names := make([]string, 0, len(m.stores))
	for name := range m.stores {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (m *MemoryStorage) Delete(_ context.Context, name string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.stores[name]
	if !ok {
		return false, nil
	}
	for _, snap := range s.entries {
		m.used -= snap.Size()
	}
	s.entries = nil
	s.deleted = true
	delete(m.stores, name)
	return true, nil
}

// Used returns the bytes currently stored.
func (m *MemoryStorage) Used() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.used
}

func (m *MemoryStorage) Close() error { return nil }

func (s *memoryStore) Name() string { return s.name }

func (s *memoryStore) Match(_ context.Context, key string) (Snapshot, bool, error) {
	s.parent.mu.Lock()
	defer s.parent.mu.Unlock()

	if s.deleted {
		return Snapshot{}, false, ErrStoreDeleted
	}
	snap, ok := s.entries[key]
	if !ok {
		return Snapshot{}, false, nil
	}
	snap.Header = snap.Header.Clone()
	return snap, true, nil
}

func (s *memoryStore) Put(_ context.Context, key string, snap Snapshot) error {
	m := s.parent
	m.mu.Lock()
	defer m.mu.Unlock()

	if s.deleted {
		return ErrStoreDeleted
	}
	size := snap.Size()
	var prev int64
	if old, ok := s.entries[key]; ok {
		prev = old.Size()
	}
	if m.quota > 0 && m.used-prev+size > m.quota {
		return fmt.Errorf("put %s: %w (%d of %d bytes used)", key, ErrQuotaExceeded, m.used, m.quota)
	}

	body := make([]byte, len(snap.Body))
	copy(body, snap.Body)
	snap.Body = body
	snap.Header = snap.Header.Clone()
	s.entries[key] = snap
	m.used += size - prev
	return nil
}

func (s *memoryStore) Keys(context.Context) ([]string, error) {
	s.parent.mu.Lock()
	defer s.parent.mu.Unlock()

	if s.deleted {
		return nil, ErrStoreDeleted
	}
	keys := make([]string, 0, len(s.entries))
	for k := range s.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

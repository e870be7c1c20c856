package session

import (
	"context"
	"sync"
	"time"
)

type memoryRecord struct {
	data      []byte
	version   int64
	expiresAt time.Time
}

// MemoryStore keeps sessions in process memory. Records are stored encoded so
// callers never share state with the store.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]memoryRecord
	ttl     time.Duration
	now     func() time.Time
}

// NewMemoryStore returns an empty store. A ttl of zero keeps sessions forever.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		records: make(map[string]memoryRecord),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Create implements Store.
func (m *MemoryStore) Create(_ context.Context, s *Session) error {
	data, err := Encode(s)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.live(s.ID); ok {
		return ErrAlreadyExists
	}
	m.records[s.ID] = memoryRecord{data: data, version: s.Version, expiresAt: m.expiry()}
	return nil
}

// Get implements Store.
func (m *MemoryStore) Get(_ context.Context, id string) (*Session, error) {
	m.mu.Lock()
	rec, ok := m.live(id)
	m.mu.Unlock()
	if !ok {
		return nil, ErrNotFound
	}

	s, err := Decode(rec.data)
	if err != nil {
		return nil, err
	}
	s.Version = rec.version
	return s, nil
}

// CompareAndSwap implements Store.
func (m *MemoryStore) CompareAndSwap(_ context.Context, s *Session, expected int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.live(s.ID)
	if !ok {
		return ErrNotFound
	}
	if rec.version != expected {
		return ErrVersionConflict
	}

	next := *s
	next.Version = expected + 1
	next.UpdatedAt = m.now().UTC()
	data, err := Encode(&next)
	if err != nil {
		return err
	}
	m.records[s.ID] = memoryRecord{data: data, version: next.Version, expiresAt: m.expiry()}
	s.Version = next.Version
	s.UpdatedAt = next.UpdatedAt
	return nil
}

// Len returns the number of live sessions.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for id := range m.records {
		if _, ok := m.live(id); ok {
			n++
		}
	}
	return n
}

// live returns the record for id, dropping it if expired. Callers hold m.mu.
func (m *MemoryStore) live(id string) (memoryRecord, bool) {
	rec, ok := m.records[id]
	if !ok {
		return memoryRecord{}, false
	}
	if !rec.expiresAt.IsZero() && m.now().After(rec.expiresAt) {
		delete(m.records, id)
		return memoryRecord{}, false
	}
	return rec, true
}

func (m *MemoryStore) expiry() time.Time {
	if m.ttl <= 0 {
		return time.Time{}
	}
	return m.now().Add(m.ttl)
}

package session

import (
	"container/list"
	"context"
	"errors"
	"sync"
	"time"
)

// ErrNotFound is returned when a conversation does not exist or has expired.
var ErrNotFound = errors.New("session not found")

// Store persists conversation records. Every Put resets the record's expiry
// clock (sliding TTL measured from the last write); reads refresh only LRU
// recency. An expired record behaves exactly like a missing one.
type Store interface {
	Get(ctx context.Context, id string) (*Record, error)
	Put(ctx context.Context, rec *Record) error
	Delete(ctx context.Context, id string) error
	// PurgeExpired removes records whose TTL has lapsed and reports how many.
	PurgeExpired(ctx context.Context) (int, error)
	Close() error
}

type memoryEntry struct {
	rec       *Record
	lastWrite time.Time
}

// MemoryStore keeps records in process memory with LRU eviction at a fixed
// capacity. The zero value is not usable; use NewMemoryStore.
type MemoryStore struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	now      func() time.Time
	order    *list.List               // front = most recently accessed
	items    map[string]*list.Element // value is *memoryEntry
}

// NewMemoryStore creates an in-memory store holding at most capacity records,
// each expiring ttl after its last write.
func NewMemoryStore(capacity int, ttl time.Duration) *MemoryStore {
	return NewMemoryStoreWithClock(capacity, ttl, time.Now)
}

// NewMemoryStoreWithClock is NewMemoryStore with an injected clock.
func NewMemoryStoreWithClock(capacity int, ttl time.Duration, now func() time.Time) *MemoryStore {
	if capacity <= 0 {
		capacity = 100
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if now == nil {
		now = time.Now
	}
	return &MemoryStore{
		capacity: capacity,
		ttl:      ttl,
		now:      now,
		order:    list.New(),
		items:    map[string]*list.Element{},
	}
}

// Get returns a deep copy of the record and refreshes its LRU recency. The
// expiry clock is untouched; only writes extend a record's life.
func (s *MemoryStore) Get(_ context.Context, id string) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	el, ok := s.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	entry := el.Value.(*memoryEntry)
	if s.now().Sub(entry.lastWrite) > s.ttl {
		s.remove(el)
		return nil, ErrNotFound
	}
	s.order.MoveToFront(el)
	return entry.rec.Clone(), nil
}

// Put stores a deep copy of the record, resets its expiry clock, and evicts
// the least recently used records beyond capacity.
func (s *MemoryStore) Put(_ context.Context, rec *Record) error {
	if rec == nil || rec.ID == "" {
		return errors.New("record must have an id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	stored := rec.Clone()
	stored.UpdatedAt = now

	if el, ok := s.items[rec.ID]; ok {
		entry := el.Value.(*memoryEntry)
		entry.rec = stored
		entry.lastWrite = now
		s.order.MoveToFront(el)
		return nil
	}

	el := s.order.PushFront(&memoryEntry{rec: stored, lastWrite: now})
	s.items[rec.ID] = el

	for s.order.Len() > s.capacity {
		s.remove(s.order.Back())
	}
	return nil
}

// Delete removes the record if present. Deleting a missing record is not an error.
func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if el, ok := s.items[id]; ok {
		s.remove(el)
	}
	return nil
}

// PurgeExpired drops every record whose TTL has lapsed.
func (s *MemoryStore) PurgeExpired(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	var purged int
	for el := s.order.Back(); el != nil; {
		prev := el.Prev()
		entry := el.Value.(*memoryEntry)
		if now.Sub(entry.lastWrite) > s.ttl {
			s.remove(el)
			purged++
		}
		el = prev
	}
	return purged, nil
}

// Len reports the number of live records, expired ones included until purge.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.order.Len()
}

func (s *MemoryStore) Close() error { return nil }

// remove must be called with the lock held.
func (s *MemoryStore) remove(el *list.Element) {
	entry := el.Value.(*memoryEntry)
	s.order.Remove(el)
	delete(s.items, entry.rec.ID)
}

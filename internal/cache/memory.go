package cache

import (
	"container/list"
	"context"
	"strings"
	"sync"
	"time"
)

const defaultMaxEntries = 1024

type memoryEntry struct {
	key       string
	value     []byte
	expiresAt time.Time // Zero means no expiry
}

// MemoryStore is an in-process LRU store with per-entry TTL.
type MemoryStore struct {
	mu         sync.Mutex
	maxEntries int
	ll         *list.List
	items      map[string]*list.Element
	now        func() time.Time
}

// NewMemoryStore creates a store holding at most maxEntries values.
func NewMemoryStore(maxEntries int) *MemoryStore {
	if maxEntries <= 0 {
		maxEntries = defaultMaxEntries
	}
	return &MemoryStore{
		maxEntries: maxEntries,
		ll:         list.New(),
		items:      make(map[string]*list.Element),
		now:        time.Now,
	}
}

func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	el, ok := s.items[key]
	if !ok {
		return nil, false, nil
	}
	entry := el.Value.(*memoryEntry)
	if !entry.expiresAt.IsZero() && !s.now().Before(entry.expiresAt) {
		s.removeElement(el)
		return nil, false, nil
	}
	s.ll.MoveToFront(el)
	return entry.value, true, nil
}

func (s *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = s.now().Add(ttl)
	}

	if el, ok := s.items[key]; ok {
		entry := el.Value.(*memoryEntry)
		entry.value = value
		entry.expiresAt = expiresAt
		s.ll.MoveToFront(el)
		return nil
	}

	s.items[key] = s.ll.PushFront(&memoryEntry{key: key, value: value, expiresAt: expiresAt})
	for s.ll.Len() > s.maxEntries {
		s.removeElement(s.ll.Back())
	}
	return nil
}

func (s *MemoryStore) DeletePrefix(_ context.Context, prefix string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var deleted int64
	for key, el := range s.items {
		if strings.HasPrefix(key, prefix) {
			s.removeElement(el)
			deleted++
		}
	}
	return deleted, nil
}

// Len returns the number of stored entries, expired ones included.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ll.Len()
}

func (s *MemoryStore) Close() error {
	return nil
}

func (s *MemoryStore) removeElement(el *list.Element) {
	s.ll.Remove(el)
	delete(s.items, el.Value.(*memoryEntry).key)
}

package repositories

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/daramad/daramad-engine/pkg/models"
)

// MemoryCacheStore is the in-process CacheStore used when Redis is not
// configured. It holds at most maxEntries entries; when full, expired
// entries are dropped first, then the entry closest to expiry.
type MemoryCacheStore struct {
	mu         sync.Mutex
	items      map[string]memoryItem
	maxEntries int
	version    atomic.Int64
	now        func() time.Time
}

type memoryItem struct {
	entry     models.CacheEntry
	expiresAt time.Time
}

// NewMemoryCacheStore creates an in-memory store. maxEntries <= 0 means unbounded.
func NewMemoryCacheStore(maxEntries int) *MemoryCacheStore {
	s := &MemoryCacheStore{
		items:      make(map[string]memoryItem),
		maxEntries: maxEntries,
		now:        time.Now,
	}
	s.version.Store(1)
	return s
}

var _ CacheStore = (*MemoryCacheStore)(nil)

func (s *MemoryCacheStore) Get(_ context.Context, key string) (*models.CacheEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[key]
	if !ok {
		return nil, nil
	}
	if !s.now().Before(item.expiresAt) {
		delete(s.items, key)
		return nil, nil
	}
	entry := item.entry
	return &entry, nil
}

func (s *MemoryCacheStore) Set(_ context.Context, entry *models.CacheEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if _, exists := s.items[entry.Key]; !exists && s.maxEntries > 0 && len(s.items) >= s.maxEntries {
		s.evictLocked(now)
	}
	s.items[entry.Key] = memoryItem{entry: *entry, expiresAt: now.Add(entry.TTL)}
	return nil
}

func (s *MemoryCacheStore) evictLocked(now time.Time) {
	var victim string
	var soonest time.Time
	for k, item := range s.items {
		if !now.Before(item.expiresAt) {
			delete(s.items, k)
			continue
		}
		if victim == "" || item.expiresAt.Before(soonest) {
			victim, soonest = k, item.expiresAt
		}
	}
	if len(s.items) >= s.maxEntries && victim != "" {
		delete(s.items, victim)
	}
}

func (s *MemoryCacheStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.items, key)
	s.mu.Unlock()
	return nil
}

func (s *MemoryCacheStore) Expire(_ context.Context, key string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[key]
	now := s.now()
	if !ok || !now.Before(item.expiresAt) {
		return false, nil
	}
	item.expiresAt = now.Add(ttl)
	item.entry.TTL = ttl
	s.items[key] = item
	return true, nil
}

func (s *MemoryCacheStore) Version(context.Context) (int64, error) {
	return s.version.Load(), nil
}

func (s *MemoryCacheStore) BumpVersion(context.Context) (int64, error) {
	return s.version.Add(1), nil
}

// Len returns the number of stored entries, expired ones included.
func (s *MemoryCacheStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

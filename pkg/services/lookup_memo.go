package services

import (
	"container/list"
	"context"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/daramad/daramad-engine/pkg/models"
)

// LookupFunc runs one catalog search stage.
type LookupFunc func(ctx context.Context, stage models.MatchStage, phrases []string) ([]models.JobTitleMatch, error)

// LookupMemo memoizes catalog probes for a short time. It is bounded by
// entry count (oldest entries are dropped first) and coalesces concurrent
// identical probes into one query. Errors are never memoized.
//
// A memo is an explicit object owned by its creator; a nil *LookupMemo
// disables memoization.
type LookupMemo struct {
	mu      sync.Mutex
	entries map[string]*list.Element
	order   *list.List
	maxSize int
	ttl     time.Duration
	group   singleflight.Group
	now     func() time.Time
}

type memoEntry struct {
	key       string
	matches   []models.JobTitleMatch
	expiresAt time.Time
}

// NewLookupMemo creates a memo holding at most maxSize results for ttl.
func NewLookupMemo(maxSize int, ttl time.Duration) *LookupMemo {
	if maxSize <= 0 {
		maxSize = 1
	}
	return &LookupMemo{
		entries: make(map[string]*list.Element),
		order:   list.New(),
		maxSize: maxSize,
		ttl:     ttl,
		now:     time.Now,
	}
}

// Lookup returns the memoized result for (stage, phrases) or calls fetch.
func (m *LookupMemo) Lookup(ctx context.Context, stage models.MatchStage, phrases []string, fetch LookupFunc) ([]models.JobTitleMatch, error) {
	if m == nil || m.ttl <= 0 {
		catalogLookupsTotal.WithLabelValues(string(stage), "query").Inc()
		return fetch(ctx, stage, phrases)
	}

	key := string(stage) + "\x1e" + strings.Join(phrases, "\x1f")
	if matches, ok := m.get(key); ok {
		catalogLookupsTotal.WithLabelValues(string(stage), "memo_hit").Inc()
		return matches, nil
	}

	v, err, _ := m.group.Do(key, func() (any, error) {
		catalogLookupsTotal.WithLabelValues(string(stage), "query").Inc()
		matches, err := fetch(ctx, stage, phrases)
		if err != nil {
			return nil, err
		}
		m.put(key, matches)
		return matches, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]models.JobTitleMatch), nil
}

func (m *LookupMemo) get(key string) ([]models.JobTitleMatch, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	el, ok := m.entries[key]
	if !ok {
		return nil, false
	}
	entry := el.Value.(*memoEntry)
	if !m.now().Before(entry.expiresAt) {
		m.order.Remove(el)
		delete(m.entries, key)
		return nil, false
	}
	return entry.matches, true
}

func (m *LookupMemo) put(key string, matches []models.JobTitleMatch) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if el, ok := m.entries[key]; ok {
		m.order.Remove(el)
		delete(m.entries, key)
	}
	for m.order.Len() >= m.maxSize {
		oldest := m.order.Front()
		m.order.Remove(oldest)
		delete(m.entries, oldest.Value.(*memoEntry).key)
	}
	entry := &memoEntry{key: key, matches: matches, expiresAt: m.now().Add(m.ttl)}
	m.entries[key] = m.order.PushBack(entry)
}

// Len returns the number of memoized results.
func (m *LookupMemo) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.order.Len()
}

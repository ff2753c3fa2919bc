package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/daramad/daramad-engine/pkg/models"
)

// VersionKey holds the response cache namespace version.
const VersionKey = "resp:ns_version"

// CacheStore persists response cache entries. Get returns (nil, nil) on a miss.
// Version returns 1 while no version has been stored; BumpVersion always
// returns a value greater than any earlier Version result.
type CacheStore interface {
	Get(ctx context.Context, key string) (*models.CacheEntry, error)
	Set(ctx context.Context, entry *models.CacheEntry) error
	Delete(ctx context.Context, key string) error
	Expire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Version(ctx context.Context) (int64, error)
	BumpVersion(ctx context.Context) (int64, error)
}

// RedisCacheStore stores entries as JSON strings with a Redis TTL.
type RedisCacheStore struct {
	client *redis.Client
	prefix string
}

// NewRedisCacheStore creates a Redis-backed store. prefix is prepended to
// every Redis key and may be empty.
func NewRedisCacheStore(client *redis.Client, prefix string) *RedisCacheStore {
	return &RedisCacheStore{client: client, prefix: prefix}
}

var _ CacheStore = (*RedisCacheStore)(nil)

func (s *RedisCacheStore) Get(ctx context.Context, key string) (*models.CacheEntry, error) {
	data, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get cache entry: %w", err)
	}

	var entry models.CacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("failed to decode cache entry: %w", err)
	}
	return &entry, nil
}

func (s *RedisCacheStore) Set(ctx context.Context, entry *models.CacheEntry) error {
	if entry.TTL <= 0 {
		return fmt.Errorf("cache entry %s has no ttl", entry.Key)
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to encode cache entry: %w", err)
	}
	if err := s.client.Set(ctx, s.prefix+entry.Key, data, entry.TTL).Err(); err != nil {
		return fmt.Errorf("failed to set cache entry: %w", err)
	}
	return nil
}

func (s *RedisCacheStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.prefix+key).Err(); err != nil {
		return fmt.Errorf("failed to delete cache entry: %w", err)
	}
	return nil
}

// Expire sets a new TTL. It returns false when the key does not exist.
func (s *RedisCacheStore) Expire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := s.client.Expire(ctx, s.prefix+key, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to extend cache entry: %w", err)
	}
	return ok, nil
}

func (s *RedisCacheStore) Version(ctx context.Context) (int64, error) {
	v, err := s.client.Get(ctx, s.prefix+VersionKey).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 1, nil
		}
		return 0, fmt.Errorf("failed to read cache version: %w", err)
	}
	return v, nil
}

// BumpVersion seeds the counter at 1 when missing and increments it in one
// transaction, so the first bump moves from the implicit 1 to 2.
func (s *RedisCacheStore) BumpVersion(ctx context.Context) (int64, error) {
	var incr *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SetNX(ctx, s.prefix+VersionKey, 1, 0)
		incr = pipe.Incr(ctx, s.prefix+VersionKey)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to bump cache version: %w", err)
	}
	return incr.Val(), nil
}

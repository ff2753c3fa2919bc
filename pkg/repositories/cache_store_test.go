//go:build integration

package repositories

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daramad/daramad-engine/pkg/models"
	"github.com/daramad/daramad-engine/pkg/testhelpers"
)

func newTestRedisStore(t *testing.T) *RedisCacheStore {
	t.Helper()
	r := testhelpers.GetTestRedis(t)
	return NewRedisCacheStore(r.Client, "test-"+uuid.NewString()+":")
}

func TestRedisCacheStore_SetGetDelete(t *testing.T) {
	ctx := context.Background()
	s := newTestRedisStore(t)

	got, err := s.Get(ctx, "resp:v1:abc")
	require.NoError(t, err)
	assert.Nil(t, got)

	e := &models.CacheEntry{
		Key:              "resp:v1:abc",
		Payload:          models.ResponsePayload{Text: "میانگین ۱۲ میلیون", Source: models.SourceModel, Intent: models.IntentJobIncome},
		CreatedAt:        time.Now().UTC().Truncate(time.Second),
		TTL:              time.Hour,
		Tier:             models.TierStandard,
		NamespaceVersion: 1,
	}
	require.NoError(t, s.Set(ctx, e))

	got, err = s.Get(ctx, e.Key)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, e.Payload.Text, got.Payload.Text)
	assert.Equal(t, models.IntentJobIncome, got.Payload.Intent)
	assert.True(t, e.CreatedAt.Equal(got.CreatedAt))

	ttl, err := s.client.TTL(ctx, s.prefix+e.Key).Result()
	require.NoError(t, err)
	assert.InDelta(t, time.Hour.Seconds(), ttl.Seconds(), 5)

	require.NoError(t, s.Delete(ctx, e.Key))
	got, err = s.Get(ctx, e.Key)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRedisCacheStore_SetRequiresTTL(t *testing.T) {
	s := newTestRedisStore(t)
	err := s.Set(context.Background(), &models.CacheEntry{Key: "k"})
	assert.Error(t, err)
}

func TestRedisCacheStore_Expire(t *testing.T) {
	ctx := context.Background()
	s := newTestRedisStore(t)

	require.NoError(t, s.Set(ctx, &models.CacheEntry{Key: "k", TTL: time.Minute}))

	ok, err := s.Expire(ctx, "k", 2*time.Hour)
	require.NoError(t, err)
	assert.True(t, ok)

	ttl, err := s.client.TTL(ctx, s.prefix+"k").Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Hour)

	ok, err = s.Expire(ctx, "missing", time.Hour)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisCacheStore_Version(t *testing.T) {
	ctx := context.Background()
	s := newTestRedisStore(t)

	v, err := s.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), v, "missing version reads as 1")

	v, err = s.BumpVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), v, "first bump must move past the implicit version")

	v, err = s.BumpVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), v)

	v, err = s.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), v)
}

package faqcache

import (
	"context"
	"testing"
	"time"

	"github.com/DukeRupert/agentguard/internal/domain"
	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisStore_SetGet(t *testing.T) {
	mr, client := newTestRedis(t)
	s := NewRedisStore(client, "")
	ctx := context.Background()
	orgID := uuid.New()

	_, err := s.Get(ctx, orgID, "fp")
	assert.ErrorIs(t, err, ErrCacheMiss)

	require.NoError(t, s.Set(ctx, &domain.CacheEntry{
		OrgID: orgID, Fingerprint: "fp", Question: "q", Answer: "a cached answer", CreatedAt: time.Now(), TTL: time.Hour,
	}))

	assert.True(t, mr.Exists("faq:"+orgID.String()+":fp"))
	assert.Equal(t, time.Hour, mr.TTL("faq:"+orgID.String()+":fp"))

	e, err := s.Get(ctx, orgID, "fp")
	require.NoError(t, err)
	assert.Equal(t, "a cached answer", e.Answer)
	assert.Equal(t, orgID, e.OrgID)
}

func TestRedisStore_Expiry(t *testing.T) {
	mr, client := newTestRedis(t)
	s := NewRedisStore(client, "faq")
	ctx := context.Background()
	orgID := uuid.New()

	require.NoError(t, s.Set(ctx, &domain.CacheEntry{
		OrgID: orgID, Fingerprint: "fp", Answer: "a cached answer", CreatedAt: time.Now(), TTL: time.Minute,
	}))

	mr.FastForward(2 * time.Minute)

	_, err := s.Get(ctx, orgID, "fp")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestRedisStore_Unavailable(t *testing.T) {
	mr, client := newTestRedis(t)
	s := NewRedisStore(client, "faq")
	mr.Close()

	_, err := s.Get(context.Background(), uuid.New(), "fp")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrCacheMiss)
}

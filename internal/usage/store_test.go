package usage

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/DukeRupert/agentguard/internal/domain"
	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock is a settable Clock shared between a test and a store.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type storeFactory func(t *testing.T, clock Clock) Store

func storeFactories() map[string]storeFactory {
	return map[string]storeFactory{
		"memory": func(t *testing.T, clock Clock) Store {
			return NewMemoryStore(clock)
		},
		"redis": func(t *testing.T, clock Clock) Store {
			mr := miniredis.RunT(t)
			client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
			t.Cleanup(func() { _ = client.Close() })
			return NewRedisStore(client, clock)
		},
	}
}

func TestStore_Contract(t *testing.T) {
	for name, factory := range storeFactories() {
		factory := factory
		t.Run(name, func(t *testing.T) {
			t.Run("empty organization", func(t *testing.T) {
				clock := &fakeClock{now: time.Date(2026, 4, 15, 10, 0, 0, 0, time.UTC)}
				s := factory(t, clock.Now)

				snap, err := s.CurrentUsage(context.Background(), uuid.New())
				require.NoError(t, err)
				assert.Equal(t, domain.UsageSnapshot{PeriodStart: time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)}, snap)

				tokens, err := s.DailyTokens(context.Background(), uuid.New())
				require.NoError(t, err)
				assert.Zero(t, tokens)
			})

			t.Run("records period and daily counters", func(t *testing.T) {
				clock := &fakeClock{now: time.Date(2026, 4, 15, 10, 0, 0, 0, time.UTC)}
				s := factory(t, clock.Now)
				ctx := context.Background()
				orgID := uuid.New()

				require.NoError(t, s.RecordUsage(ctx, orgID, uuid.New(),
					domain.UsageDelta{Chats: 1, TokensIn: 120, TokensOut: 80}, domain.UsageCeiling{Chats: 20}))
				require.NoError(t, s.RecordUsage(ctx, orgID, uuid.New(),
					domain.UsageDelta{VoiceMinutes: 3}, domain.UsageCeiling{VoiceMinutes: 220}))

				snap, err := s.CurrentUsage(ctx, orgID)
				require.NoError(t, err)
				assert.Equal(t, int64(1), snap.ChatsUsed)
				assert.Equal(t, int64(120), snap.TokensIn)
				assert.Equal(t, int64(80), snap.TokensOut)
				assert.Equal(t, int64(3), snap.VoiceMinutes)

				tokens, err := s.DailyTokens(ctx, orgID)
				require.NoError(t, err)
				assert.Equal(t, int64(200), tokens)
			})

			t.Run("ceiling blocks without writing", func(t *testing.T) {
				clock := &fakeClock{now: time.Date(2026, 4, 15, 10, 0, 0, 0, time.UTC)}
				s := factory(t, clock.Now)
				ctx := context.Background()
				orgID := uuid.New()
				ceiling := domain.UsageCeiling{Chats: 2, VoiceMinutes: 5}

				require.NoError(t, s.RecordUsage(ctx, orgID, uuid.New(), domain.UsageDelta{Chats: 2, TokensIn: 10}, ceiling))

				err := s.RecordUsage(ctx, orgID, uuid.New(), domain.UsageDelta{Chats: 1, TokensIn: 10}, ceiling)
				assert.ErrorIs(t, err, ErrCeilingReached)

				err = s.RecordUsage(ctx, orgID, uuid.New(), domain.UsageDelta{VoiceMinutes: 6}, ceiling)
				assert.ErrorIs(t, err, ErrCeilingReached)

				snap, err := s.CurrentUsage(ctx, orgID)
				require.NoError(t, err)
				assert.Equal(t, int64(2), snap.ChatsUsed)
				assert.Equal(t, int64(10), snap.TokensIn)
				assert.Zero(t, snap.VoiceMinutes)

				tokens, err := s.DailyTokens(ctx, orgID)
				require.NoError(t, err)
				assert.Equal(t, int64(10), tokens)
			})

			t.Run("zero ceiling means unlimited", func(t *testing.T) {
				clock := &fakeClock{now: time.Date(2026, 4, 15, 10, 0, 0, 0, time.UTC)}
				s := factory(t, clock.Now)
				ctx := context.Background()
				orgID := uuid.New()

				require.NoError(t, s.RecordUsage(ctx, orgID, uuid.New(), domain.UsageDelta{Chats: 500}, domain.UsageCeiling{}))
				snap, err := s.CurrentUsage(ctx, orgID)
				require.NoError(t, err)
				assert.Equal(t, int64(500), snap.ChatsUsed)
			})

			t.Run("duplicate request is not counted twice", func(t *testing.T) {
				clock := &fakeClock{now: time.Date(2026, 4, 15, 10, 0, 0, 0, time.UTC)}
				s := factory(t, clock.Now)
				ctx := context.Background()
				orgID := uuid.New()
				requestID := uuid.New()
				delta := domain.UsageDelta{Chats: 1, TokensIn: 50, TokensOut: 50}

				require.NoError(t, s.RecordUsage(ctx, orgID, requestID, delta, domain.UsageCeiling{Chats: 20}))
				err := s.RecordUsage(ctx, orgID, requestID, delta, domain.UsageCeiling{Chats: 20})
				assert.ErrorIs(t, err, ErrDuplicate)

				snap, err := s.CurrentUsage(ctx, orgID)
				require.NoError(t, err)
				assert.Equal(t, int64(1), snap.ChatsUsed)

				tokens, err := s.DailyTokens(ctx, orgID)
				require.NoError(t, err)
				assert.Equal(t, int64(100), tokens)
			})

			t.Run("request IDs are scoped to the organization", func(t *testing.T) {
				clock := &fakeClock{now: time.Date(2026, 4, 15, 10, 0, 0, 0, time.UTC)}
				s := factory(t, clock.Now)
				ctx := context.Background()
				orgA, orgB := uuid.New(), uuid.New()
				requestID := uuid.New()

				require.NoError(t, s.RecordUsage(ctx, orgA, requestID, domain.UsageDelta{Chats: 1}, domain.UsageCeiling{}))
				require.NoError(t, s.RecordUsage(ctx, orgB, requestID,
					domain.UsageDelta{Chats: 1, TokensIn: 500}, domain.UsageCeiling{}))

				snap, err := s.CurrentUsage(ctx, orgB)
				require.NoError(t, err)
				assert.Equal(t, int64(1), snap.ChatsUsed)

				tokens, err := s.DailyTokens(ctx, orgB)
				require.NoError(t, err)
				assert.Equal(t, int64(500), tokens)
			})

			t.Run("reports recorded requests", func(t *testing.T) {
				clock := &fakeClock{now: time.Date(2026, 4, 15, 10, 0, 0, 0, time.UTC)}
				s := factory(t, clock.Now)
				ctx := context.Background()
				orgID := uuid.New()
				requestID := uuid.New()

				seen, err := s.RequestRecorded(ctx, orgID, requestID)
				require.NoError(t, err)
				assert.False(t, seen)

				require.NoError(t, s.RecordUsage(ctx, orgID, requestID, domain.UsageDelta{Chats: 1}, domain.UsageCeiling{}))

				seen, err = s.RequestRecorded(ctx, orgID, requestID)
				require.NoError(t, err)
				assert.True(t, seen)

				seen, err = s.RequestRecorded(ctx, uuid.New(), requestID)
				require.NoError(t, err)
				assert.False(t, seen, "another organization may reuse the ID")
			})

			t.Run("rollover starts fresh counters", func(t *testing.T) {
				clock := &fakeClock{now: time.Date(2026, 4, 30, 23, 0, 0, 0, time.UTC)}
				s := factory(t, clock.Now)
				ctx := context.Background()
				orgID := uuid.New()

				require.NoError(t, s.RecordUsage(ctx, orgID, uuid.New(), domain.UsageDelta{Chats: 1, TokensIn: 300}, domain.UsageCeiling{}))

				clock.Set(time.Date(2026, 5, 1, 0, 30, 0, 0, time.UTC))

				snap, err := s.CurrentUsage(ctx, orgID)
				require.NoError(t, err)
				assert.Zero(t, snap.ChatsUsed)
				assert.Equal(t, time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC), snap.PeriodStart)

				tokens, err := s.DailyTokens(ctx, orgID)
				require.NoError(t, err)
				assert.Zero(t, tokens)
			})

			t.Run("concurrent increments respect the ceiling", func(t *testing.T) {
				clock := &fakeClock{now: time.Date(2026, 4, 15, 10, 0, 0, 0, time.UTC)}
				s := factory(t, clock.Now)
				ctx := context.Background()
				orgID := uuid.New()

				var ok, blocked int64
				var wg sync.WaitGroup
				for i := 0; i < 50; i++ {
					wg.Add(1)
					go func() {
						defer wg.Done()
						err := s.RecordUsage(ctx, orgID, uuid.New(), domain.UsageDelta{Chats: 1}, domain.UsageCeiling{Chats: 20})
						switch err {
						case nil:
							atomic.AddInt64(&ok, 1)
						case ErrCeilingReached:
							atomic.AddInt64(&blocked, 1)
						default:
							t.Errorf("unexpected error: %v", err)
						}
					}()
				}
				wg.Wait()

				assert.Equal(t, int64(20), ok)
				assert.Equal(t, int64(30), blocked)

				snap, err := s.CurrentUsage(ctx, orgID)
				require.NoError(t, err)
				assert.Equal(t, int64(20), snap.ChatsUsed)
			})
		})
	}
}

func TestRedisStore_KeysExpire(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	now := time.Date(2026, 4, 15, 10, 0, 0, 0, time.UTC)
	s := NewRedisStore(client, func() time.Time { return now })
	orgID := uuid.New()
	requestID := uuid.New()

	require.NoError(t, s.RecordUsage(context.Background(), orgID, requestID,
		domain.UsageDelta{Chats: 1, TokensIn: 10}, domain.UsageCeiling{}))

	assert.Equal(t, periodKeyTTL, mr.TTL(periodRedisKey(orgID, now)))
	assert.Equal(t, dailyKeyTTL, mr.TTL(dailyRedisKey(orgID, now)))
	assert.Equal(t, requestKeyTTL, mr.TTL(requestRedisKey(orgID, requestID)))
	assert.Equal(t, "usage:{"+orgID.String()+"}:period:2026-04", periodRedisKey(orgID, now))
}

func TestRedisStore_Unavailable(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer client.Close()
	s := NewRedisStore(client, nil)
	mr.Close()

	_, err := s.DailyTokens(context.Background(), uuid.New())
	assert.Error(t, err)
	_, err = s.CurrentUsage(context.Background(), uuid.New())
	assert.Error(t, err)
}

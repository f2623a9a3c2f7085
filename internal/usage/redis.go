package usage

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/DukeRupert/agentguard/internal/domain"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

const (
	periodKeyTTL  = 62 * 24 * time.Hour
	dailyKeyTTL   = 48 * time.Hour
	requestKeyTTL = 7 * 24 * time.Hour
)

// recordScript performs the idempotency check, the ceiling checks and all
// increments as one server-side step.
//
// KEYS: period hash, daily counter, request marker.
// ARGV: chats, tokens_in, tokens_out, voice_minutes, chat ceiling,
// voice ceiling, period ttl ms, daily ttl ms, request ttl ms.
// Returns 1 on success, 0 when a ceiling would be crossed, -1 on a duplicate.
var recordScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[3]) == 1 then
  return -1
end

local chats = tonumber(ARGV[1])
local tokensIn = tonumber(ARGV[2])
local tokensOut = tonumber(ARGV[3])
local voice = tonumber(ARGV[4])
local chatCeiling = tonumber(ARGV[5])
local voiceCeiling = tonumber(ARGV[6])

if chatCeiling > 0 and chats > 0 then
  local cur = tonumber(redis.call('HGET', KEYS[1], 'chats') or '0')
  if cur + chats > chatCeiling then
    return 0
  end
end
if voiceCeiling > 0 and voice > 0 then
  local cur = tonumber(redis.call('HGET', KEYS[1], 'voice_minutes') or '0')
  if cur + voice > voiceCeiling then
    return 0
  end
end

redis.call('HINCRBY', KEYS[1], 'chats', chats)
redis.call('HINCRBY', KEYS[1], 'tokens_in', tokensIn)
redis.call('HINCRBY', KEYS[1], 'tokens_out', tokensOut)
redis.call('HINCRBY', KEYS[1], 'voice_minutes', voice)
redis.call('PEXPIRE', KEYS[1], ARGV[7])

local tokens = tokensIn + tokensOut
if tokens > 0 then
  redis.call('INCRBY', KEYS[2], tokens)
  redis.call('PEXPIRE', KEYS[2], ARGV[8])
end

redis.call('SET', KEYS[3], '1', 'PX', ARGV[9])
return 1
`)

// RedisStore keeps counters in Redis so every instance shares them.
type RedisStore struct {
	client *redis.Client
	now    Clock
}

// NewRedisStore creates a RedisStore.
func NewRedisStore(client *redis.Client, now Clock) *RedisStore {
	if now == nil {
		now = time.Now
	}
	return &RedisStore{client: client, now: now}
}

// Keys share the {org} hash tag so the script touches a single cluster slot.
func periodRedisKey(orgID uuid.UUID, t time.Time) string {
	return fmt.Sprintf("usage:{%s}:period:%s", orgID, domain.PeriodStart(t).Format("2006-01"))
}

func dailyRedisKey(orgID uuid.UUID, t time.Time) string {
	return fmt.Sprintf("usage:{%s}:day:%s", orgID, domain.DayStart(t).Format("2006-01-02"))
}

func requestRedisKey(orgID, requestID uuid.UUID) string {
	return fmt.Sprintf("usage:{%s}:req:%s", orgID, requestID)
}

func (s *RedisStore) CurrentUsage(ctx context.Context, orgID uuid.UUID) (domain.UsageSnapshot, error) {
	now := s.now()
	vals, err := s.client.HMGet(ctx, periodRedisKey(orgID, now), "chats", "tokens_in", "tokens_out", "voice_minutes").Result()
	if err != nil {
		return domain.UsageSnapshot{}, fmt.Errorf("redis read usage period: %w", err)
	}

	counters := make([]int64, len(vals))
	for i, v := range vals {
		if counters[i], err = parseCounter(v); err != nil {
			return domain.UsageSnapshot{}, err
		}
	}

	return domain.UsageSnapshot{
		ChatsUsed:    counters[0],
		TokensIn:     counters[1],
		TokensOut:    counters[2],
		VoiceMinutes: counters[3],
		PeriodStart:  domain.PeriodStart(now),
	}, nil
}

func (s *RedisStore) DailyTokens(ctx context.Context, orgID uuid.UUID) (int64, error) {
	n, err := s.client.Get(ctx, dailyRedisKey(orgID, s.now())).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("redis read daily tokens: %w", err)
	}
	return n, nil
}

func (s *RedisStore) RequestRecorded(ctx context.Context, orgID, requestID uuid.UUID) (bool, error) {
	n, err := s.client.Exists(ctx, requestRedisKey(orgID, requestID)).Result()
	if err != nil {
		return false, fmt.Errorf("redis read request marker: %w", err)
	}
	return n > 0, nil
}

func (s *RedisStore) RecordUsage(ctx context.Context, orgID, requestID uuid.UUID, delta domain.UsageDelta, ceiling domain.UsageCeiling) error {
	now := s.now()
	keys := []string{
		periodRedisKey(orgID, now),
		dailyRedisKey(orgID, now),
		requestRedisKey(orgID, requestID),
	}

	res, err := recordScript.Run(ctx, s.client, keys,
		delta.Chats, delta.TokensIn, delta.TokensOut, delta.VoiceMinutes,
		ceiling.Chats, ceiling.VoiceMinutes,
		periodKeyTTL.Milliseconds(), dailyKeyTTL.Milliseconds(), requestKeyTTL.Milliseconds(),
	).Int64()
	if err != nil {
		return fmt.Errorf("redis record usage: %w", err)
	}

	switch res {
	case 1:
		return nil
	case 0:
		return ErrCeilingReached
	case -1:
		return ErrDuplicate
	default:
		return fmt.Errorf("redis record usage: unexpected result %d", res)
	}
}

func parseCounter(v interface{}) (int64, error) {
	switch x := v.(type) {
	case nil:
		return 0, nil
	case string:
		n, err := strconv.ParseInt(x, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("parse usage counter %q: %w", x, err)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("unexpected usage counter type %T", v)
	}
}

package faqcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/DukeRupert/agentguard/internal/domain"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// RedisStore keeps entries in Redis with a native TTL, so expiry is
// enforced by the server and any instance can serve a hit.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore creates a RedisStore. Keys are "<prefix>:<org>:<fingerprint>".
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "faq"
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) key(orgID uuid.UUID, fingerprint string) string {
	return fmt.Sprintf("%s:%s:%s", s.prefix, orgID, fingerprint)
}

func (s *RedisStore) Get(ctx context.Context, orgID uuid.UUID, fingerprint string) (*domain.CacheEntry, error) {
	raw, err := s.client.Get(ctx, s.key(orgID, fingerprint)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get faq entry: %w", err)
	}

	var e domain.CacheEntry
	if err := json.Unmarshal(raw, &e); err != nil {
		return nil, fmt.Errorf("decode faq entry: %w", err)
	}
	// Server TTL has second granularity.
	if e.Expired(time.Now()) {
		return nil, ErrCacheMiss
	}
	return &e, nil
}

func (s *RedisStore) Set(ctx context.Context, entry *domain.CacheEntry) error {
	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode faq entry: %w", err)
	}
	// TTL 0 means no expiry in go-redis, matching CacheEntry semantics.
	ttl := entry.TTL
	if ttl < 0 {
		ttl = 0
	}
	if err := s.client.Set(ctx, s.key(entry.OrgID, entry.Fingerprint), raw, ttl).Err(); err != nil {
		return fmt.Errorf("redis set faq entry: %w", err)
	}
	return nil
}

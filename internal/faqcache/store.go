package faqcache

import (
	"context"
	"errors"

	"github.com/DukeRupert/agentguard/internal/domain"
	"github.com/google/uuid"
)

// ErrCacheMiss is returned when no live entry exists for a fingerprint.
var ErrCacheMiss = errors.New("faq cache miss")

// Store persists cache entries. Implementations must treat expired entries
// as misses and tolerate concurrent writers (last writer wins).
type Store interface {
	Get(ctx context.Context, orgID uuid.UUID, fingerprint string) (*domain.CacheEntry, error)
	Set(ctx context.Context, entry *domain.CacheEntry) error
}

package faqcache

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/DukeRupert/agentguard/internal/domain"
	"github.com/google/uuid"
)

// DefaultTTL is how long an answer is served before the model is asked again.
const DefaultTTL = 24 * time.Hour

// Cache applies the admissibility policy and fingerprinting on top of a Store.
// Store failures degrade to misses; the cache never blocks an agent request.
type Cache struct {
	store  Store
	ttl    time.Duration
	logger *slog.Logger
	now    func() time.Time
}

// New creates a Cache. A non-positive ttl uses DefaultTTL.
func New(store Store, ttl time.Duration, logger *slog.Logger) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{
		store:  store,
		ttl:    ttl,
		logger: logger,
		now:    time.Now,
	}
}

// Lookup returns a live cached answer for the question, or nil on a miss.
func (c *Cache) Lookup(ctx context.Context, orgID uuid.UUID, question string) *domain.CacheEntry {
	if strings.TrimSpace(question) == "" {
		return nil
	}

	fp := Fingerprint(question)
	e, err := c.store.Get(ctx, orgID, fp)
	if err != nil {
		if !errors.Is(err, ErrCacheMiss) {
			c.logger.Warn("faq cache lookup failed", "org_id", orgID, "error", err)
		}
		return nil
	}
	if e.Expired(c.now()) {
		return nil
	}
	return e
}

// Put stores the answer if it passes ShouldCache. It reports whether the
// answer was stored.
func (c *Cache) Put(ctx context.Context, orgID uuid.UUID, question, answer string) (bool, error) {
	if strings.TrimSpace(question) == "" || !ShouldCache(answer) {
		return false, nil
	}

	entry := &domain.CacheEntry{
		OrgID:       orgID,
		Fingerprint: Fingerprint(question),
		Question:    Normalize(question),
		Answer:      answer,
		CreatedAt:   c.now().UTC(),
		TTL:         c.ttl,
	}
	if err := c.store.Set(ctx, entry); err != nil {
		return false, err
	}
	return true, nil
}

package domain

import (
	"time"

	"github.com/google/uuid"
)

// CacheEntry is a stored FAQ answer keyed by organization and question fingerprint.
type CacheEntry struct {
	OrgID       uuid.UUID     `json:"org_id"`
	Fingerprint string        `json:"fingerprint"`
	Question    string        `json:"question"`
	Answer      string        `json:"answer"`
	CreatedAt   time.Time     `json:"created_at"`
	TTL         time.Duration `json:"ttl"`
}

// ExpiresAt returns when the entry stops being served. A zero TTL never expires.
func (e *CacheEntry) ExpiresAt() time.Time {
	if e.TTL <= 0 {
		return time.Time{}
	}
	return e.CreatedAt.Add(e.TTL)
}

// Expired returns true if the entry is past its TTL at now.
func (e *CacheEntry) Expired(now time.Time) bool {
	exp := e.ExpiresAt()
	return !exp.IsZero() && !now.Before(exp)
}

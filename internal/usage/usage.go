// Package usage meters organization consumption per billing period and per day.
//
// Reads serve the guard; writes happen only after a successful agent call.
// Every adapter increments atomically against a ceiling so concurrent
// requests cannot push an organization past its hard cap, and records each
// request ID once so retries are never double-counted.
package usage

import (
	"context"
	"errors"
	"time"

	"github.com/DukeRupert/agentguard/internal/domain"
	"github.com/google/uuid"
)

var (
	// ErrCeilingReached means the increment would cross a hard cap. Nothing was written.
	ErrCeilingReached = errors.New("usage ceiling reached")

	// ErrDuplicate means the request ID was already recorded. Nothing was written.
	ErrDuplicate = errors.New("usage already recorded for request")
)

// Store is the usage collaborator.
type Store interface {
	// CurrentUsage returns the snapshot for the current billing period.
	CurrentUsage(ctx context.Context, orgID uuid.UUID) (domain.UsageSnapshot, error)

	// DailyTokens returns the tokens consumed so far today (UTC).
	DailyTokens(ctx context.Context, orgID uuid.UUID) (int64, error)

	// RequestRecorded reports whether requestID was already recorded for orgID.
	RequestRecorded(ctx context.Context, orgID, requestID uuid.UUID) (bool, error)

	// RecordUsage adds delta to the period and daily counters in one atomic
	// step, unless doing so would cross ceiling or requestID was seen before.
	// Request IDs are scoped to the organization.
	RecordUsage(ctx context.Context, orgID, requestID uuid.UUID, delta domain.UsageDelta, ceiling domain.UsageCeiling) error
}

// Pruner is implemented by stores that keep history without an expiry.
// Prune deletes request records and daily counters older than cutoff and
// returns how many rows it removed. Period counters are never pruned.
type Pruner interface {
	Prune(ctx context.Context, cutoff time.Time) (int64, error)
}

// Clock returns the current time. Adapters take one so tests can pin periods.
type Clock func() time.Time

func exceedsCeiling(current, add, ceiling int64) bool {
	return ceiling > 0 && add > 0 && current+add > ceiling
}

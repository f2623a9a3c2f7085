// Package jobs contains the maintenance tasks run by the worker.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/DukeRupert/agentguard/internal/metrics"
	"github.com/DukeRupert/agentguard/internal/usage"
	"github.com/DukeRupert/agentguard/internal/worker"
)

// Task names.
const (
	TaskPurgeFAQCache = "purge_faq_cache"
	TaskPruneUsage    = "prune_usage"
)

// MinUsageRetention keeps yesterday's daily counter and any request a client
// might still retry.
const MinUsageRetention = 48 * time.Hour

// Purger removes expired entries from an in-process cache.
type Purger interface {
	Purge() int
}

// PurgeCacheTask drops expired FAQ cache entries from the memory store.
// Redis expires keys on its own and needs no task.
type PurgeCacheTask struct {
	cache  Purger
	logger *slog.Logger
}

// NewPurgeCacheTask creates a PurgeCacheTask.
func NewPurgeCacheTask(cache Purger, logger *slog.Logger) *PurgeCacheTask {
	return &PurgeCacheTask{cache: cache, logger: logger}
}

func (t *PurgeCacheTask) Name() string { return TaskPurgeFAQCache }

func (t *PurgeCacheTask) Run(ctx context.Context) error {
	n := t.cache.Purge()
	metrics.Pruned(TaskPurgeFAQCache, int64(n))
	if n > 0 {
		t.logger.Debug("Purged expired FAQ cache entries", "count", n)
	}
	return nil
}

// PruneUsageTask deletes request records and daily token counters older
// than the retention window. Billing-period counters are kept.
type PruneUsageTask struct {
	store     usage.Pruner
	retention time.Duration
	now       usage.Clock
	logger    *slog.Logger
}

// NewPruneUsageTask creates a PruneUsageTask.
// Returns an error if retention is shorter than MinUsageRetention.
func NewPruneUsageTask(store usage.Pruner, retention time.Duration, now usage.Clock, logger *slog.Logger) (*PruneUsageTask, error) {
	if retention < MinUsageRetention {
		return nil, fmt.Errorf("usage retention must be at least %v, got %v", MinUsageRetention, retention)
	}
	if now == nil {
		now = time.Now
	}
	return &PruneUsageTask{store: store, retention: retention, now: now, logger: logger}, nil
}

func (t *PruneUsageTask) Name() string { return TaskPruneUsage }

func (t *PruneUsageTask) Run(ctx context.Context) error {
	cutoff := t.now().Add(-t.retention)

	n, err := t.store.Prune(ctx, cutoff)
	metrics.Pruned(TaskPruneUsage, n)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		return fmt.Errorf("prune usage before %s: %w", cutoff.Format(time.RFC3339), err)
	}

	t.logger.Info("Pruned usage history", "count", n, "cutoff", cutoff)
	return nil
}

var (
	_ worker.Task = (*PurgeCacheTask)(nil)
	_ worker.Task = (*PruneUsageTask)(nil)
)

package usage

import (
	"context"
	"testing"
	"time"

	"github.com/DukeRupert/agentguard/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_Prune(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	s := NewMemoryStore(func() time.Time { return now })
	orgID := uuid.New()

	oldRequest := uuid.New()
	require.NoError(t, s.RecordUsage(ctx, orgID, oldRequest, domain.UsageDelta{Chats: 1, TokensIn: 10}, domain.UsageCeiling{}))

	now = now.Add(10 * 24 * time.Hour)
	require.NoError(t, s.RecordUsage(ctx, orgID, uuid.New(), domain.UsageDelta{Chats: 1, TokensIn: 20}, domain.UsageCeiling{}))

	n, err := s.Prune(ctx, now.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(2), n, "one request record and one daily counter")

	// Today's counters and the period survive.
	daily, err := s.DailyTokens(ctx, orgID)
	require.NoError(t, err)
	assert.Equal(t, int64(20), daily)
	snap, err := s.CurrentUsage(ctx, orgID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), snap.ChatsUsed)

	// A pruned request ID is no longer deduplicated.
	assert.NoError(t, s.RecordUsage(ctx, orgID, oldRequest, domain.UsageDelta{Chats: 1}, domain.UsageCeiling{}))
}

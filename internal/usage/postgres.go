package usage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/DukeRupert/agentguard/internal/domain"
	"github.com/google/uuid"
)

const (
	selectPeriodSQL = `SELECT chats_used, tokens_in, tokens_out, voice_minutes
FROM usage_periods
WHERE org_id = $1 AND period_start = $2`

	selectDailySQL = `SELECT tokens FROM daily_token_usage WHERE org_id = $1 AND day = $2`

	selectEventSQL = `SELECT EXISTS (SELECT 1 FROM usage_events WHERE org_id = $1 AND request_id = $2)`

	insertEventSQL = `INSERT INTO usage_events (request_id, org_id, chats, tokens_in, tokens_out, voice_minutes)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (org_id, request_id) DO NOTHING`

	ensurePeriodSQL = `INSERT INTO usage_periods (org_id, period_start)
VALUES ($1, $2)
ON CONFLICT (org_id, period_start) DO NOTHING`

	// The ceiling predicates are re-checked by Postgres against the locked
	// row, so concurrent increments cannot both pass a stale check.
	incrementPeriodSQL = `UPDATE usage_periods
SET chats_used = chats_used + $3,
    tokens_in = tokens_in + $4,
    tokens_out = tokens_out + $5,
    voice_minutes = voice_minutes + $6,
    updated_at = NOW()
WHERE org_id = $1 AND period_start = $2
  AND ($7 = 0 OR $3 = 0 OR chats_used + $3 <= $7)
  AND ($8 = 0 OR $6 = 0 OR voice_minutes + $6 <= $8)`

	incrementDailySQL = `INSERT INTO daily_token_usage (org_id, day, tokens)
VALUES ($1, $2, $3)
ON CONFLICT (org_id, day) DO UPDATE SET tokens = daily_token_usage.tokens + EXCLUDED.tokens`

	pruneEventsSQL = `DELETE FROM usage_events WHERE created_at < $1`
	pruneDailySQL  = `DELETE FROM daily_token_usage WHERE day < $1`
)

// PostgresStore keeps counters in Postgres.
type PostgresStore struct {
	db  *sql.DB
	now Clock
}

// NewPostgresStore creates a PostgresStore over an open database handle.
func NewPostgresStore(db *sql.DB, now Clock) *PostgresStore {
	if now == nil {
		now = time.Now
	}
	return &PostgresStore{db: db, now: now}
}

func (s *PostgresStore) CurrentUsage(ctx context.Context, orgID uuid.UUID) (domain.UsageSnapshot, error) {
	start := domain.PeriodStart(s.now())
	snap := domain.UsageSnapshot{PeriodStart: start}

	err := s.db.QueryRowContext(ctx, selectPeriodSQL, orgID, start).
		Scan(&snap.ChatsUsed, &snap.TokensIn, &snap.TokensOut, &snap.VoiceMinutes)
	if errors.Is(err, sql.ErrNoRows) {
		return snap, nil
	}
	if err != nil {
		return domain.UsageSnapshot{}, fmt.Errorf("select usage period: %w", err)
	}
	return snap, nil
}

func (s *PostgresStore) DailyTokens(ctx context.Context, orgID uuid.UUID) (int64, error) {
	var tokens int64
	err := s.db.QueryRowContext(ctx, selectDailySQL, orgID, domain.DayStart(s.now())).Scan(&tokens)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("select daily tokens: %w", err)
	}
	return tokens, nil
}

func (s *PostgresStore) RequestRecorded(ctx context.Context, orgID, requestID uuid.UUID) (bool, error) {
	var seen bool
	if err := s.db.QueryRowContext(ctx, selectEventSQL, orgID, requestID).Scan(&seen); err != nil {
		return false, fmt.Errorf("select usage event: %w", err)
	}
	return seen, nil
}

func (s *PostgresStore) RecordUsage(ctx context.Context, orgID, requestID uuid.UUID, delta domain.UsageDelta, ceiling domain.UsageCeiling) error {
	now := s.now()
	period := domain.PeriodStart(now)
	day := domain.DayStart(now)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin usage tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, insertEventSQL,
		requestID, orgID, delta.Chats, delta.TokensIn, delta.TokensOut, delta.VoiceMinutes)
	if err != nil {
		return fmt.Errorf("insert usage event: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("insert usage event: %w", err)
	} else if n == 0 {
		return ErrDuplicate
	}

	if _, err := tx.ExecContext(ctx, ensurePeriodSQL, orgID, period); err != nil {
		return fmt.Errorf("ensure usage period: %w", err)
	}

	res, err = tx.ExecContext(ctx, incrementPeriodSQL,
		orgID, period,
		delta.Chats, delta.TokensIn, delta.TokensOut, delta.VoiceMinutes,
		ceiling.Chats, ceiling.VoiceMinutes)
	if err != nil {
		return fmt.Errorf("increment usage period: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("increment usage period: %w", err)
	} else if n == 0 {
		return ErrCeilingReached
	}

	if tokens := delta.Tokens(); tokens > 0 {
		if _, err := tx.ExecContext(ctx, incrementDailySQL, orgID, day, tokens); err != nil {
			return fmt.Errorf("increment daily tokens: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit usage tx: %w", err)
	}
	return nil
}

func (s *PostgresStore) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	events, err := s.deleteBefore(ctx, pruneEventsSQL, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune usage events: %w", err)
	}
	days, err := s.deleteBefore(ctx, pruneDailySQL, domain.DayStart(cutoff))
	if err != nil {
		return events, fmt.Errorf("prune daily tokens: %w", err)
	}
	return events + days, nil
}

func (s *PostgresStore) deleteBefore(ctx context.Context, query string, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

package usage

import (
	"context"
	"sync"
	"time"

	"github.com/DukeRupert/agentguard/internal/domain"
	"github.com/google/uuid"
)

type periodKey struct {
	orgID uuid.UUID
	start time.Time
}

type requestKey struct {
	orgID     uuid.UUID
	requestID uuid.UUID
}

// MemoryStore keeps counters in process memory. Used in development and tests.
type MemoryStore struct {
	mu       sync.Mutex
	periods  map[periodKey]domain.UsageSnapshot
	daily    map[periodKey]int64
	requests map[requestKey]time.Time
	now      Clock
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore(now Clock) *MemoryStore {
	if now == nil {
		now = time.Now
	}
	return &MemoryStore{
		periods:  make(map[periodKey]domain.UsageSnapshot),
		daily:    make(map[periodKey]int64),
		requests: make(map[requestKey]time.Time),
		now:      now,
	}
}

func (s *MemoryStore) CurrentUsage(ctx context.Context, orgID uuid.UUID) (domain.UsageSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := domain.PeriodStart(s.now())
	snap := s.periods[periodKey{orgID, start}]
	snap.PeriodStart = start
	return snap, nil
}

func (s *MemoryStore) DailyTokens(ctx context.Context, orgID uuid.UUID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.daily[periodKey{orgID, domain.DayStart(s.now())}], nil
}

func (s *MemoryStore) RequestRecorded(ctx context.Context, orgID, requestID uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, seen := s.requests[requestKey{orgID, requestID}]
	return seen, nil
}

func (s *MemoryStore) RecordUsage(ctx context.Context, orgID, requestID uuid.UUID, delta domain.UsageDelta, ceiling domain.UsageCeiling) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rk := requestKey{orgID, requestID}
	if _, seen := s.requests[rk]; seen {
		return ErrDuplicate
	}

	now := s.now()
	pk := periodKey{orgID, domain.PeriodStart(now)}
	snap := s.periods[pk]

	if exceedsCeiling(snap.ChatsUsed, delta.Chats, ceiling.Chats) ||
		exceedsCeiling(snap.VoiceMinutes, delta.VoiceMinutes, ceiling.VoiceMinutes) {
		return ErrCeilingReached
	}

	snap.PeriodStart = pk.start
	snap.ChatsUsed += delta.Chats
	snap.TokensIn += delta.TokensIn
	snap.TokensOut += delta.TokensOut
	snap.VoiceMinutes += delta.VoiceMinutes
	s.periods[pk] = snap

	s.daily[periodKey{orgID, domain.DayStart(now)}] += delta.Tokens()
	s.requests[rk] = now
	return nil
}

func (s *MemoryStore) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for k, at := range s.requests {
		if at.Before(cutoff) {
			delete(s.requests, k)
			n++
		}
	}
	for k := range s.daily {
		if k.start.Before(domain.DayStart(cutoff)) {
			delete(s.daily, k)
			n++
		}
	}
	return n, nil
}

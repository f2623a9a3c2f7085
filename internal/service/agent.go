// Package service contains the business logic layer.
//
// Services orchestrate interactions between repositories, external APIs,
// and domain logic. Business denials are returned as verdicts; errors are
// reserved for bad input and collaborator failures.
package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/DukeRupert/agentguard/internal/ai"
	"github.com/DukeRupert/agentguard/internal/domain"
	"github.com/DukeRupert/agentguard/internal/faqcache"
	"github.com/DukeRupert/agentguard/internal/guard"
	"github.com/DukeRupert/agentguard/internal/metrics"
	"github.com/DukeRupert/agentguard/internal/organization"
	"github.com/DukeRupert/agentguard/internal/usage"
	"github.com/google/uuid"
)

// MaxQuestionLength caps the question size in runes.
const MaxQuestionLength = 4000

// =============================================================================
// Interface Definition
// =============================================================================

// AgentService runs agent requests through the entitlement guard.
type AgentService interface {
	// Ask answers a question for an organization if its plan allows it.
	// A denial is a successful call with Verdict.OK == false.
	// Returns domain.EINVALID for bad input, domain.ENOTFOUND for an
	// unknown organization, domain.ECONFLICT when the request ID was already
	// used by the organization and domain.EUNAVAILABLE when a collaborator fails.
	Ask(ctx context.Context, params AskParams) (*AskResult, error)
}

// AskParams is one inbound agent request.
type AskParams struct {
	OrgID           uuid.UUID
	Question        string
	Mode            domain.AgentMode
	EstimatedTokens int64
	VoiceMinutes    int64     // Minutes consumed by a voice session
	RequestID       uuid.UUID // Idempotency key; generated when nil. Used once per organization.
}

// AskResult is the outcome of Ask. Answer is empty when the verdict denies.
type AskResult struct {
	Answer    string            `json:"answer,omitempty"`
	Cached    bool              `json:"cached"`
	Verdict   domain.Verdict    `json:"verdict"`
	RequestID uuid.UUID         `json:"request_id"`
	Recorded  domain.UsageDelta `json:"-"`
}

// AgentConfig tunes the agent service.
type AgentConfig struct {
	MaxOutputTokens int
}

// =============================================================================
// Implementation
// =============================================================================

type agentService struct {
	orgs     organization.Repository
	usage    usage.Store
	guard    *guard.Guard
	cache    *faqcache.Cache
	provider ai.Provider
	config   AgentConfig
	logger   *slog.Logger
}

// NewAgentService creates a new AgentService.
func NewAgentService(
	orgs organization.Repository,
	usageStore usage.Store,
	g *guard.Guard,
	cache *faqcache.Cache,
	provider ai.Provider,
	config AgentConfig,
	logger *slog.Logger,
) AgentService {
	return &agentService{
		orgs:     orgs,
		usage:    usageStore,
		guard:    g,
		cache:    cache,
		provider: provider,
		config:   config,
		logger:   logger,
	}
}

func (s *agentService) Ask(ctx context.Context, params AskParams) (*AskResult, error) {
	const op = "agent.ask"

	if err := validateAsk(op, &params); err != nil {
		return nil, err
	}

	org, err := s.orgs.Get(ctx, params.OrgID)
	if err != nil {
		return nil, err
	}
	view := effectiveOrg(org)
	plan := domain.LimitsFor(view.Plan)

	seen, err := s.usage.RequestRecorded(ctx, org.ID, params.RequestID)
	if err != nil {
		return nil, domain.Unavailable(err, op, guard.ReasonUsageUnavailable)
	}
	if seen {
		metrics.UsageConflict("duplicate")
		return nil, duplicateRequest(op)
	}

	snap, err := s.usage.CurrentUsage(ctx, org.ID)
	if err != nil {
		return nil, domain.Unavailable(err, op, guard.ReasonUsageUnavailable)
	}

	verdict := s.guard.CheckLimits(ctx, guard.Request{
		Org:             view,
		Usage:           snap,
		Mode:            params.Mode,
		EstimatedTokens: params.EstimatedTokens,
	})
	metrics.VerdictRecorded(view.Plan, params.Mode, verdict)

	result := &AskResult{Verdict: verdict, RequestID: params.RequestID}
	if !verdict.OK {
		return result, nil
	}

	if params.Mode == domain.AgentModeText {
		if entry := s.cache.Lookup(ctx, org.ID, params.Question); entry != nil {
			metrics.CacheLookup(true)
			// A cache hit costs no tokens but still counts as a chat.
			delta := domain.UsageDelta{Chats: 1}
			denied, ok, err := s.record(ctx, op, org.ID, params.RequestID, view.Plan, delta, domain.CeilingFor(plan))
			if err != nil {
				return nil, err
			}
			if !ok {
				result.Verdict = denied
				return result, nil
			}
			result.Answer = entry.Answer
			result.Cached = true
			result.Recorded = delta
			return result, nil
		}
		metrics.CacheLookup(false)
	}

	completion, err := s.provider.Complete(ctx, ai.CompletionParams{
		OrgID:     org.ID,
		Question:  params.Question,
		MaxTokens: s.config.MaxOutputTokens,
	})
	if err != nil {
		metrics.AIFailed(s.provider.Name())
		return nil, mapAIError(op, err)
	}
	metrics.AICompleted(s.provider.Name(), completion.Usage.Duration,
		completion.Usage.InputTokens, completion.Usage.OutputTokens)

	delta := domain.UsageDelta{
		TokensIn:  int64(completion.Usage.InputTokens),
		TokensOut: int64(completion.Usage.OutputTokens),
	}
	ceiling := domain.CeilingFor(plan)
	if params.Mode == domain.AgentModeText {
		delta.Chats = 1
	} else {
		// Minutes are reported after the session ran; the guard stops the next one.
		delta.VoiceMinutes = params.VoiceMinutes
		ceiling.VoiceMinutes = 0
	}

	denied, ok, err := s.record(ctx, op, org.ID, params.RequestID, view.Plan, delta, ceiling)
	if err != nil {
		return nil, err
	}
	if !ok {
		result.Verdict = denied
		return result, nil
	}

	result.Answer = completion.Text
	result.Recorded = delta

	if params.Mode == domain.AgentModeText {
		stored, err := s.cache.Put(ctx, org.ID, params.Question, completion.Text)
		metrics.CacheWrite(stored, err)
		if err != nil {
			s.logger.Warn("faq cache write failed", "org_id", org.ID, "error", err)
		}
	}

	return result, nil
}

// record writes the delta. It returns ok=false with a denial when a
// concurrent request consumed the last unit under the ceiling; the tokens
// already spent still reach the daily budget. A request ID recorded in the
// meantime is a conflict and the answer must not be served. Other store
// failures are logged and the answer is still served.
func (s *agentService) record(ctx context.Context, op string, orgID, requestID uuid.UUID, tier domain.PlanTier, delta domain.UsageDelta, ceiling domain.UsageCeiling) (domain.Verdict, bool, error) {
	err := s.usage.RecordUsage(ctx, orgID, requestID, delta, ceiling)
	switch {
	case err == nil:
		return domain.Verdict{}, true, nil
	case errors.Is(err, usage.ErrDuplicate):
		metrics.UsageConflict("duplicate")
		s.logger.Info("request already recorded", "org_id", orgID, "request_id", requestID)
		return domain.Verdict{}, false, duplicateRequest(op)
	case errors.Is(err, usage.ErrCeilingReached):
		metrics.UsageConflict("ceiling")
		v := guard.ChatLimitReached(tier)
		s.logger.Info("agent request denied at record time",
			"org_id", orgID,
			"tier", tier,
			"rule", v.Rule,
		)
		s.recordTokensOnly(ctx, orgID, requestID, delta)
		return v, false, nil
	default:
		s.logger.Error("failed to record usage",
			"org_id", orgID,
			"request_id", requestID,
			"chats", delta.Chats,
			"tokens", delta.Tokens(),
			"error", err,
		)
		return domain.Verdict{}, true, nil
	}
}

// recordTokensOnly meters the tokens of a completion whose chat was refused.
func (s *agentService) recordTokensOnly(ctx context.Context, orgID, requestID uuid.UUID, delta domain.UsageDelta) {
	tokens := domain.UsageDelta{TokensIn: delta.TokensIn, TokensOut: delta.TokensOut}
	if tokens.Tokens() == 0 {
		return
	}
	if err := s.usage.RecordUsage(ctx, orgID, requestID, tokens, domain.UsageCeiling{}); err != nil {
		s.logger.Warn("failed to record tokens of refused request",
			"org_id", orgID,
			"request_id", requestID,
			"tokens", tokens.Tokens(),
			"error", err,
		)
	}
}

func duplicateRequest(op string) *domain.Error {
	return &domain.Error{
		Code:    domain.ECONFLICT,
		Op:      op,
		Message: "This request ID was already used. Send a new request ID to ask again.",
	}
}

func validateAsk(op string, p *AskParams) error {
	if p.OrgID == uuid.Nil {
		return domain.Invalid(op, "Organization ID is required")
	}
	if !p.Mode.Valid() {
		return domain.Invalid(op, "Mode must be text or voice")
	}
	p.Question = strings.TrimSpace(p.Question)
	if p.Question == "" {
		return domain.Invalid(op, "Question is required")
	}
	if utf8.RuneCountInString(p.Question) > MaxQuestionLength {
		return domain.Invalid(op, "Question is too long")
	}
	if p.EstimatedTokens < 0 {
		return domain.Invalid(op, "Estimated tokens cannot be negative")
	}
	if p.VoiceMinutes < 0 {
		return domain.Invalid(op, "Voice minutes cannot be negative")
	}
	if p.RequestID == uuid.Nil {
		p.RequestID = uuid.New()
	}
	return nil
}

// effectiveOrg returns a copy of org as the guard should see it: the tier
// it is paying for, and voice only when that tier includes it.
func effectiveOrg(org *domain.Organization) *domain.Organization {
	view := *org
	view.Plan = domain.EffectiveTier(org.SubscriptionStatus, org.Plan)
	view.AIVoiceEnabled = org.AIVoiceEnabled && domain.LimitsFor(view.Plan).HasVoice()
	return &view
}

func mapAIError(op string, err error) error {
	switch {
	case ai.IsRetryable(err):
		return domain.Unavailable(err, op, "The assistant is temporarily unavailable. Please try again shortly.")
	case errors.Is(err, ai.EAIContentPolicy):
		return &domain.Error{Code: domain.EINVALID, Op: op, Message: "The question cannot be answered.", Err: err}
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return domain.Unavailable(err, op, "The assistant did not answer in time.")
	default:
		return domain.Internal(err, op, "Failed to get an answer")
	}
}

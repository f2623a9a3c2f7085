package service

import (
	"context"
	"log/slog"

	"github.com/DukeRupert/agentguard/internal/domain"
	"github.com/DukeRupert/agentguard/internal/organization"
	"github.com/DukeRupert/agentguard/internal/usage"
	"github.com/google/uuid"
)

// =============================================================================
// Interface Definition
// =============================================================================

// UsageService exposes plan limits and current consumption.
type UsageService interface {
	// ListPlans returns the plan catalog ordered from free to premium.
	ListPlans() []domain.Plan

	// GetLimitsInfo returns the limits of a user-supplied tier.
	// Returns domain.EINVALID for an unknown tier.
	GetLimitsInfo(tier domain.PlanTier) (domain.Plan, error)

	// GetSummary returns an organization's usage against its effective plan.
	// Returns domain.ENOTFOUND if the organization does not exist.
	GetSummary(ctx context.Context, orgID uuid.UUID) (*domain.UsageSummary, error)
}

// =============================================================================
// Implementation
// =============================================================================

type usageService struct {
	orgs   organization.Repository
	usage  usage.Store
	logger *slog.Logger
}

// NewUsageService creates a new UsageService.
func NewUsageService(orgs organization.Repository, usageStore usage.Store, logger *slog.Logger) UsageService {
	return &usageService{
		orgs:   orgs,
		usage:  usageStore,
		logger: logger,
	}
}

func (s *usageService) ListPlans() []domain.Plan {
	return domain.Plans()
}

func (s *usageService) GetLimitsInfo(tier domain.PlanTier) (domain.Plan, error) {
	return domain.LookupPlan(tier)
}

func (s *usageService) GetSummary(ctx context.Context, orgID uuid.UUID) (*domain.UsageSummary, error) {
	const op = "usage.get_summary"

	org, err := s.orgs.Get(ctx, orgID)
	if err != nil {
		return nil, err
	}
	plan := domain.LimitsFor(domain.EffectiveTier(org.SubscriptionStatus, org.Plan))

	snap, err := s.usage.CurrentUsage(ctx, orgID)
	if err != nil {
		return nil, domain.Unavailable(err, op, "Usage information is temporarily unavailable")
	}
	daily, err := s.usage.DailyTokens(ctx, orgID)
	if err != nil {
		return nil, domain.Unavailable(err, op, "Usage information is temporarily unavailable")
	}

	summary := domain.SummarizeUsage(orgID, plan, snap, daily)
	return &summary, nil
}

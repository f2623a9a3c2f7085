package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/DukeRupert/agentguard/internal/billing"
	"github.com/DukeRupert/agentguard/internal/domain"
	"github.com/DukeRupert/agentguard/internal/organization"
	"github.com/google/uuid"
)

// =============================================================================
// Interface Definition
// =============================================================================

// SubscriptionService turns upsells into checkouts and applies billing
// events to organizations. It is the only writer of organization plans.
type SubscriptionService interface {
	// StartUpgrade returns a checkout URL for moving an organization to target.
	// Returns domain.EINVALID if target is not a paid tier above the current one.
	StartUpgrade(ctx context.Context, params UpgradeParams) (string, error)

	// ApplySubscription records a subscription change reported by the payment provider.
	ApplySubscription(ctx context.Context, event SubscriptionEvent) error

	// LinkCustomer attaches a payment customer to an organization after checkout.
	LinkCustomer(ctx context.Context, orgID uuid.UUID, customerID string) error
}

// UpgradeParams is a plan upsell the user accepted.
type UpgradeParams struct {
	OrgID    uuid.UUID
	Target   domain.PlanTier
	Interval billing.Interval
}

// SubscriptionEvent is a normalized billing webhook.
type SubscriptionEvent struct {
	CustomerID     string
	SubscriptionID string // Empty keeps the current subscription
	Status         domain.SubscriptionStatus
	PriceID        string // Empty keeps the current plan
}

// =============================================================================
// Implementation
// =============================================================================

type subscriptionService struct {
	orgs    organization.Repository
	billing billing.Service
	baseURL string
	logger  *slog.Logger
}

// NewSubscriptionService creates a new SubscriptionService.
// billingService may be nil when Stripe is not configured.
func NewSubscriptionService(orgs organization.Repository, billingService billing.Service, baseURL string, logger *slog.Logger) SubscriptionService {
	return &subscriptionService{
		orgs:    orgs,
		billing: billingService,
		baseURL: baseURL,
		logger:  logger,
	}
}

func (s *subscriptionService) StartUpgrade(ctx context.Context, p UpgradeParams) (string, error) {
	const op = "subscription.start_upgrade"

	if s.billing == nil {
		return "", domain.Unavailable(nil, op, "Billing is not configured")
	}
	if _, err := domain.LookupPlan(p.Target); err != nil {
		return "", err
	}
	if p.Interval == "" {
		p.Interval = billing.IntervalMonthly
	}
	if p.Interval != billing.IntervalMonthly && p.Interval != billing.IntervalYearly {
		return "", domain.Invalid(op, "Interval must be monthly or yearly")
	}

	org, err := s.orgs.Get(ctx, p.OrgID)
	if err != nil {
		return "", err
	}
	current := domain.EffectiveTier(org.SubscriptionStatus, org.Plan)
	if tierRank(p.Target) <= tierRank(current) {
		return "", domain.Invalid(op, fmt.Sprintf("Organization is already on the %s plan or higher", current))
	}

	priceID, ok := s.billing.PriceFor(p.Target, p.Interval)
	if !ok {
		return "", domain.Invalid(op, "This plan cannot be purchased right now")
	}

	customerID := org.StripeCustomerID
	if customerID == "" {
		customerID, err = s.billing.CreateCustomer(org.Name, org.ID.String())
		if err != nil {
			return "", domain.Unavailable(err, op, "Failed to start checkout")
		}
		if err := s.orgs.SetStripeCustomer(ctx, org.ID, customerID); err != nil {
			return "", err
		}
	}

	url, err := s.billing.CreateCheckoutSession(billing.CheckoutParams{
		CustomerID: customerID,
		PriceID:    priceID,
		OrgID:      org.ID.String(),
		SuccessURL: s.baseURL + "/billing/success?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:  s.baseURL + "/billing/canceled",
	})
	if err != nil {
		return "", domain.Unavailable(err, op, "Failed to start checkout")
	}

	s.logger.Info("checkout started", "org_id", org.ID, "from", current, "to", p.Target, "interval", p.Interval)
	return url, nil
}

func (s *subscriptionService) ApplySubscription(ctx context.Context, e SubscriptionEvent) error {
	const op = "subscription.apply"

	if e.CustomerID == "" {
		return domain.Invalid(op, "Customer ID is required")
	}
	org, err := s.orgs.GetByStripeCustomerID(ctx, e.CustomerID)
	if err != nil {
		return err
	}

	tier := org.Plan
	var update domain.SubscriptionUpdate
	if e.PriceID != "" && s.billing != nil {
		if t := s.billing.TierForPriceID(e.PriceID); t != "" {
			tier = t
			update.Plan = t
		} else {
			s.logger.Warn("unknown price in subscription event", "org_id", org.ID, "price_id", e.PriceID)
		}
	}
	if e.Status == domain.SubscriptionStatusCanceled {
		tier = domain.PlanTierFree
		update.Plan = domain.PlanTierFree
	}

	update.Status = e.Status
	update.SubscriptionID = e.SubscriptionID
	if update.SubscriptionID == "" {
		update.SubscriptionID = org.SubscriptionID
	}
	update.AIVoiceEnabled = tier.Valid() && domain.LimitsFor(tier).HasVoice()

	if err := s.orgs.UpdateSubscription(ctx, org.ID, update); err != nil {
		return err
	}

	s.logger.Info("subscription applied",
		"org_id", org.ID,
		"status", e.Status,
		"tier", tier,
		"ai_voice_enabled", update.AIVoiceEnabled,
	)
	return nil
}

func (s *subscriptionService) LinkCustomer(ctx context.Context, orgID uuid.UUID, customerID string) error {
	const op = "subscription.link_customer"
	if customerID == "" {
		return domain.Invalid(op, "Customer ID is required")
	}
	return s.orgs.SetStripeCustomer(ctx, orgID, customerID)
}

// StatusFromStripe maps a Stripe subscription status to ours.
// Statuses without a paid entitlement map to inactive.
func StatusFromStripe(status string) domain.SubscriptionStatus {
	switch s := domain.SubscriptionStatus(status); s {
	case domain.SubscriptionStatusActive,
		domain.SubscriptionStatusTrialing,
		domain.SubscriptionStatusPastDue,
		domain.SubscriptionStatusCanceled,
		domain.SubscriptionStatusUnpaid:
		return s
	default:
		return domain.SubscriptionStatusInactive
	}
}

func tierRank(t domain.PlanTier) int {
	for i, p := range domain.Plans() {
		if p.Tier == t {
			return i
		}
	}
	return -1
}

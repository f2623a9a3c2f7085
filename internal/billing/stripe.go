// Package billing provides Stripe billing integration for plan upgrades.
package billing

import (
	"fmt"

	"github.com/DukeRupert/agentguard/internal/domain"
	"github.com/stripe/stripe-go/v79"
	checkoutsession "github.com/stripe/stripe-go/v79/checkout/session"
	"github.com/stripe/stripe-go/v79/customer"
	"github.com/stripe/stripe-go/v79/webhook"
)

// Interval is the billing interval of a price.
type Interval string

const (
	IntervalMonthly Interval = "monthly"
	IntervalYearly  Interval = "yearly"
)

// Service defines the interface for billing operations.
type Service interface {
	// CreateCustomer creates a new Stripe customer for an organization.
	CreateCustomer(name, orgID string) (string, error)

	// CreateCheckoutSession creates a Stripe Checkout session for subscribing.
	// Returns the checkout URL to redirect the user to.
	CreateCheckoutSession(params CheckoutParams) (string, error)

	// VerifyWebhookSignature verifies the Stripe webhook signature and returns the event.
	VerifyWebhookSignature(payload []byte, signature string) (stripe.Event, error)

	// TierForPriceID returns the plan tier for a Stripe price ID, or "" if unknown.
	TierForPriceID(priceID string) domain.PlanTier

	// PriceFor returns the configured price ID for a paid tier.
	PriceFor(tier domain.PlanTier, interval Interval) (string, bool)
}

// CheckoutParams contains parameters for a checkout session.
type CheckoutParams struct {
	CustomerID string
	PriceID    string
	OrgID      string // Stored as client_reference_id
	SuccessURL string
	CancelURL  string
}

// PriceConfig holds the Stripe price IDs for each paid plan.
type PriceConfig struct {
	ProMonthlyPriceID     string
	ProYearlyPriceID      string
	PremiumMonthlyPriceID string
	PremiumYearlyPriceID  string
}

type priceKey struct {
	tier     domain.PlanTier
	interval Interval
}

// stripeService is the concrete implementation of Service.
type stripeService struct {
	webhookSecret string
	priceToTier   map[string]domain.PlanTier
	tierToPrice   map[priceKey]string
}

// NewStripeService creates a new Stripe billing service.
//
// The secretKey is used to authenticate Stripe API calls.
// The webhookSecret is used to verify incoming webhook signatures.
func NewStripeService(secretKey, webhookSecret string, prices PriceConfig) Service {
	stripe.Key = secretKey

	s := &stripeService{
		webhookSecret: webhookSecret,
		priceToTier:   make(map[string]domain.PlanTier),
		tierToPrice:   make(map[priceKey]string),
	}
	s.addPrice(prices.ProMonthlyPriceID, domain.PlanTierPro, IntervalMonthly)
	s.addPrice(prices.ProYearlyPriceID, domain.PlanTierPro, IntervalYearly)
	s.addPrice(prices.PremiumMonthlyPriceID, domain.PlanTierPremium, IntervalMonthly)
	s.addPrice(prices.PremiumYearlyPriceID, domain.PlanTierPremium, IntervalYearly)
	return s
}

func (s *stripeService) addPrice(priceID string, tier domain.PlanTier, interval Interval) {
	if priceID == "" {
		return
	}
	s.priceToTier[priceID] = tier
	s.tierToPrice[priceKey{tier, interval}] = priceID
}

func (s *stripeService) CreateCustomer(name, orgID string) (string, error) {
	params := &stripe.CustomerParams{
		Name: stripe.String(name),
	}
	params.AddMetadata("org_id", orgID)
	c, err := customer.New(params)
	if err != nil {
		return "", fmt.Errorf("stripe create customer: %w", err)
	}
	return c.ID, nil
}

func (s *stripeService) CreateCheckoutSession(p CheckoutParams) (string, error) {
	params := &stripe.CheckoutSessionParams{
		Customer:          stripe.String(p.CustomerID),
		ClientReferenceID: stripe.String(p.OrgID),
		Mode:              stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(p.PriceID),
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(p.SuccessURL),
		CancelURL:  stripe.String(p.CancelURL),
	}
	sess, err := checkoutsession.New(params)
	if err != nil {
		return "", fmt.Errorf("stripe create checkout session: %w", err)
	}
	return sess.URL, nil
}

func (s *stripeService) VerifyWebhookSignature(payload []byte, signature string) (stripe.Event, error) {
	event, err := webhook.ConstructEvent(payload, signature, s.webhookSecret)
	if err != nil {
		return stripe.Event{}, fmt.Errorf("stripe webhook signature verification failed: %w", err)
	}
	return event, nil
}

func (s *stripeService) TierForPriceID(priceID string) domain.PlanTier {
	return s.priceToTier[priceID]
}

func (s *stripeService) PriceFor(tier domain.PlanTier, interval Interval) (string, bool) {
	id, ok := s.tierToPrice[priceKey{tier, interval}]
	return id, ok
}

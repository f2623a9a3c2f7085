package service

import (
	"context"
	"errors"
	"testing"

	"github.com/DukeRupert/agentguard/internal/billing"
	"github.com/DukeRupert/agentguard/internal/domain"
	"github.com/DukeRupert/agentguard/internal/organization"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v79"
)

// fakeBilling is an in-memory billing.Service.
type fakeBilling struct {
	customers   int
	checkout    billing.CheckoutParams
	checkoutErr error
}

func (f *fakeBilling) CreateCustomer(name, orgID string) (string, error) {
	f.customers++
	return "cus_new", nil
}

func (f *fakeBilling) CreateCheckoutSession(p billing.CheckoutParams) (string, error) {
	if f.checkoutErr != nil {
		return "", f.checkoutErr
	}
	f.checkout = p
	return "https://checkout.stripe.test/" + p.PriceID, nil
}

func (f *fakeBilling) VerifyWebhookSignature([]byte, string) (stripe.Event, error) {
	return stripe.Event{}, errors.New("not used")
}

func (f *fakeBilling) TierForPriceID(priceID string) domain.PlanTier {
	switch priceID {
	case "price_pro":
		return domain.PlanTierPro
	case "price_premium":
		return domain.PlanTierPremium
	}
	return ""
}

func (f *fakeBilling) PriceFor(tier domain.PlanTier, interval billing.Interval) (string, bool) {
	if interval != billing.IntervalMonthly {
		return "", false
	}
	switch tier {
	case domain.PlanTierPro:
		return "price_pro", true
	case domain.PlanTierPremium:
		return "price_premium", true
	}
	return "", false
}

func newSubscriptionFixture(t *testing.T) (SubscriptionService, *organization.MemoryRepository, *fakeBilling) {
	t.Helper()
	orgs := organization.NewMemoryRepository()
	fb := &fakeBilling{}
	return NewSubscriptionService(orgs, fb, "https://app.test", discardLogger()), orgs, fb
}

func TestStartUpgrade(t *testing.T) {
	ctx := context.Background()
	svc, orgs, fb := newSubscriptionFixture(t)

	org := &domain.Organization{Name: "Taller Ruiz", Plan: domain.PlanTierFree}
	require.NoError(t, orgs.Create(ctx, org))

	url, err := svc.StartUpgrade(ctx, UpgradeParams{OrgID: org.ID, Target: domain.PlanTierPro})
	require.NoError(t, err)
	assert.Equal(t, "https://checkout.stripe.test/price_pro", url)
	assert.Equal(t, "cus_new", fb.checkout.CustomerID)
	assert.Equal(t, org.ID.String(), fb.checkout.OrgID)
	assert.Contains(t, fb.checkout.SuccessURL, "https://app.test/")

	stored, err := orgs.Get(ctx, org.ID)
	require.NoError(t, err)
	assert.Equal(t, "cus_new", stored.StripeCustomerID)

	// The customer is reused on the next checkout.
	_, err = svc.StartUpgrade(ctx, UpgradeParams{OrgID: org.ID, Target: domain.PlanTierPremium})
	require.NoError(t, err)
	assert.Equal(t, 1, fb.customers)
}

func TestStartUpgrade_Rejections(t *testing.T) {
	ctx := context.Background()
	svc, orgs, fb := newSubscriptionFixture(t)

	premium := &domain.Organization{Name: "Premium", Plan: domain.PlanTierPremium, SubscriptionStatus: domain.SubscriptionStatusActive}
	require.NoError(t, orgs.Create(ctx, premium))
	free := &domain.Organization{Name: "Free", Plan: domain.PlanTierFree}
	require.NoError(t, orgs.Create(ctx, free))

	tests := []struct {
		name   string
		params UpgradeParams
		code   string
	}{
		{"unknown tier", UpgradeParams{OrgID: free.ID, Target: "gold"}, domain.EINVALID},
		{"free is not an upgrade", UpgradeParams{OrgID: free.ID, Target: domain.PlanTierFree}, domain.EINVALID},
		{"already premium", UpgradeParams{OrgID: premium.ID, Target: domain.PlanTierPremium}, domain.EINVALID},
		{"bad interval", UpgradeParams{OrgID: free.ID, Target: domain.PlanTierPro, Interval: "weekly"}, domain.EINVALID},
		{"unpriced interval", UpgradeParams{OrgID: free.ID, Target: domain.PlanTierPro, Interval: billing.IntervalYearly}, domain.EINVALID},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.StartUpgrade(ctx, tt.params)
			assert.Equal(t, tt.code, domain.ErrorCode(err))
		})
	}

	fb.checkoutErr = errors.New("stripe down")
	_, err := svc.StartUpgrade(ctx, UpgradeParams{OrgID: free.ID, Target: domain.PlanTierPro})
	assert.Equal(t, domain.EUNAVAILABLE, domain.ErrorCode(err))
}

func TestStartUpgrade_BillingNotConfigured(t *testing.T) {
	svc := NewSubscriptionService(organization.NewMemoryRepository(), nil, "", discardLogger())
	_, err := svc.StartUpgrade(context.Background(), UpgradeParams{Target: domain.PlanTierPro})
	assert.Equal(t, domain.EUNAVAILABLE, domain.ErrorCode(err))
}

func TestApplySubscription(t *testing.T) {
	ctx := context.Background()
	svc, orgs, _ := newSubscriptionFixture(t)

	org := &domain.Organization{Name: "Taller Ruiz", Plan: domain.PlanTierFree}
	require.NoError(t, orgs.Create(ctx, org))
	require.NoError(t, svc.LinkCustomer(ctx, org.ID, "cus_42"))

	steps := []struct {
		name      string
		event     SubscriptionEvent
		wantTier  domain.PlanTier
		wantVoice bool
		wantState domain.SubscriptionStatus
	}{
		{
			name:     "upgrade to premium enables voice",
			event:    SubscriptionEvent{CustomerID: "cus_42", SubscriptionID: "sub_1", Status: domain.SubscriptionStatusActive, PriceID: "price_premium"},
			wantTier: domain.PlanTierPremium, wantVoice: true, wantState: domain.SubscriptionStatusActive,
		},
		{
			name:     "payment failure keeps plan",
			event:    SubscriptionEvent{CustomerID: "cus_42", SubscriptionID: "sub_1", Status: domain.SubscriptionStatusPastDue},
			wantTier: domain.PlanTierPremium, wantVoice: true, wantState: domain.SubscriptionStatusPastDue,
		},
		{
			name:     "downgrade to pro disables voice",
			event:    SubscriptionEvent{CustomerID: "cus_42", SubscriptionID: "sub_1", Status: domain.SubscriptionStatusActive, PriceID: "price_pro"},
			wantTier: domain.PlanTierPro, wantVoice: false, wantState: domain.SubscriptionStatusActive,
		},
		{
			name:     "unknown price keeps plan",
			event:    SubscriptionEvent{CustomerID: "cus_42", SubscriptionID: "sub_1", Status: domain.SubscriptionStatusActive, PriceID: "price_legacy"},
			wantTier: domain.PlanTierPro, wantVoice: false, wantState: domain.SubscriptionStatusActive,
		},
		{
			name:     "cancellation drops to free",
			event:    SubscriptionEvent{CustomerID: "cus_42", SubscriptionID: "sub_1", Status: domain.SubscriptionStatusCanceled},
			wantTier: domain.PlanTierFree, wantVoice: false, wantState: domain.SubscriptionStatusCanceled,
		},
	}

	for _, step := range steps {
		t.Run(step.name, func(t *testing.T) {
			require.NoError(t, svc.ApplySubscription(ctx, step.event))
			got, err := orgs.Get(ctx, org.ID)
			require.NoError(t, err)
			assert.Equal(t, step.wantTier, got.Plan)
			assert.Equal(t, step.wantVoice, got.AIVoiceEnabled)
			assert.Equal(t, step.wantState, got.SubscriptionStatus)
		})
	}
}

func TestApplySubscription_UnknownCustomer(t *testing.T) {
	svc, _, _ := newSubscriptionFixture(t)
	err := svc.ApplySubscription(context.Background(), SubscriptionEvent{CustomerID: "cus_ghost", Status: domain.SubscriptionStatusActive})
	assert.Equal(t, domain.ENOTFOUND, domain.ErrorCode(err))

	err = svc.ApplySubscription(context.Background(), SubscriptionEvent{})
	assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))
}

func TestStatusFromStripe(t *testing.T) {
	assert.Equal(t, domain.SubscriptionStatusActive, StatusFromStripe("active"))
	assert.Equal(t, domain.SubscriptionStatusPastDue, StatusFromStripe("past_due"))
	assert.Equal(t, domain.SubscriptionStatusInactive, StatusFromStripe("incomplete_expired"))
	assert.Equal(t, domain.SubscriptionStatusInactive, StatusFromStripe("paused"))
}

// Package organization stores tenants and their subscription state.
package organization

import (
	"context"

	"github.com/DukeRupert/agentguard/internal/domain"
	"github.com/google/uuid"
)

// Repository is the organization collaborator.
//
// Get and GetByStripeCustomerID return domain.ENOTFOUND when no organization matches.
type Repository interface {
	Create(ctx context.Context, org *domain.Organization) error
	Get(ctx context.Context, id uuid.UUID) (*domain.Organization, error)
	GetByStripeCustomerID(ctx context.Context, customerID string) (*domain.Organization, error)
	SetStripeCustomer(ctx context.Context, id uuid.UUID, customerID string) error
	UpdateSubscription(ctx context.Context, id uuid.UUID, update domain.SubscriptionUpdate) error
}

// applyUpdate mutates org with the fields of a billing event.
func applyUpdate(org *domain.Organization, u domain.SubscriptionUpdate) {
	if u.Plan != "" {
		org.Plan = u.Plan
	}
	org.AIVoiceEnabled = u.AIVoiceEnabled
	org.SubscriptionStatus = u.Status
	org.SubscriptionID = u.SubscriptionID
}

func validateNew(op string, org *domain.Organization) error {
	if org.Name == "" {
		return domain.Invalid(op, "Organization name is required")
	}
	if !org.Plan.Valid() {
		return domain.Invalid(op, "Unknown plan tier")
	}
	return nil
}

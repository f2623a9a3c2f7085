package domain

import (
	"time"

	"github.com/google/uuid"
)

// SubscriptionStatus represents the possible states of an organization's subscription.
type SubscriptionStatus string

const (
	SubscriptionStatusInactive SubscriptionStatus = "inactive"
	SubscriptionStatusTrialing SubscriptionStatus = "trialing"
	SubscriptionStatusActive   SubscriptionStatus = "active"
	SubscriptionStatusPastDue  SubscriptionStatus = "past_due"
	SubscriptionStatusCanceled SubscriptionStatus = "canceled"
	SubscriptionStatusUnpaid   SubscriptionStatus = "unpaid"
)

// Organization is a tenant of the platform.
//
// The billing webhook consumer is the only writer; the guard and the agent
// service treat it as read-only.
type Organization struct {
	ID                 uuid.UUID
	Name               string
	Plan               PlanTier
	AIVoiceEnabled     bool
	StripeCustomerID   string
	SubscriptionID     string
	SubscriptionStatus SubscriptionStatus
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// IsActive returns true if the subscription is active or trialing.
func (o *Organization) IsActive() bool {
	return o.SubscriptionStatus == SubscriptionStatusActive ||
		o.SubscriptionStatus == SubscriptionStatusTrialing
}

// SubscriptionUpdate carries the fields a billing event may change.
// Empty Plan means "keep the current plan".
type SubscriptionUpdate struct {
	Plan           PlanTier
	AIVoiceEnabled bool
	Status         SubscriptionStatus
	SubscriptionID string
}

// EffectiveTier returns the tier an organization should be evaluated against.
// Organizations without a paying subscription fall back to free.
func EffectiveTier(status SubscriptionStatus, tier PlanTier) PlanTier {
	switch status {
	case SubscriptionStatusActive, SubscriptionStatusTrialing, SubscriptionStatusPastDue:
		if tier.Valid() {
			return tier
		}
	}
	return PlanTierFree
}

// Package domain contains core business types and interfaces.
//
// This file defines the plan catalog: the compiled-in table of limits for each
// subscription tier. Hard caps are derived from the soft caps and the tier's
// tolerance when the catalog is built, so the relation lives in one place.
package domain

import (
	"fmt"
	"math"
)

// PlanTier identifies a subscription tier.
type PlanTier string

const (
	PlanTierFree    PlanTier = "free"
	PlanTierPro     PlanTier = "pro"
	PlanTierPremium PlanTier = "premium"
)

// Valid reports whether the tier exists in the catalog.
func (t PlanTier) Valid() bool {
	_, ok := catalog[t]
	return ok
}

// Quota is a pair of usage thresholds. Reaching Soft produces a warning,
// reaching Hard blocks the request.
type Quota struct {
	Soft int64 `json:"soft"`
	Hard int64 `json:"hard"`
}

// Plan describes the limits attached to a tier. Plans are immutable values.
type Plan struct {
	Tier             PlanTier `json:"tier"`
	ChatQuota        Quota    `json:"chat_quota"`
	VoiceMinuteQuota Quota    `json:"voice_minute_quota"`
	DailyTokenBudget int64    `json:"daily_token_budget"`
	Tolerance        float64  `json:"tolerance"`
	Features         []string `json:"features"`
}

// HasVoice reports whether the plan includes any voice minutes.
func (p Plan) HasVoice() bool {
	return p.VoiceMinuteQuota.Hard > 0
}

// planSpec is the hand-maintained part of a plan. Hard caps are not listed
// here; newPlan computes them.
type planSpec struct {
	tier             PlanTier
	chatSoft         int64
	voiceSoft        int64
	dailyTokenBudget int64
	tolerance        float64
	features         []string
}

var planSpecs = []planSpec{
	{
		tier:             PlanTierFree,
		chatSoft:         20,
		voiceSoft:        0,
		dailyTokenBudget: 1_000,
		tolerance:        0,
		features: []string{
			"20 AI chats per month",
			"1,000 AI tokens per day",
			"FAQ answer cache",
		},
	},
	{
		tier:             PlanTierPro,
		chatSoft:         1_000,
		voiceSoft:        0,
		dailyTokenBudget: 50_000,
		tolerance:        0.10,
		features: []string{
			"1,000 AI chats per month (+10% tolerance)",
			"50,000 AI tokens per day",
			"FAQ answer cache",
			"Usage dashboard",
		},
	},
	{
		tier:             PlanTierPremium,
		chatSoft:         5_000,
		voiceSoft:        200,
		dailyTokenBudget: 100_000,
		tolerance:        0.10,
		features: []string{
			"5,000 AI chats per month (+10% tolerance)",
			"200 AI voice minutes per month (+10% tolerance)",
			"100,000 AI tokens per day",
			"FAQ answer cache",
			"Usage dashboard",
			"Priority support",
		},
	},
}

// catalog maps tiers to their plans. Built once at package init.
var catalog = buildCatalog(planSpecs)

func buildCatalog(specs []planSpec) map[PlanTier]Plan {
	plans := make(map[PlanTier]Plan, len(specs))
	for _, s := range specs {
		plans[s.tier] = newPlan(s)
	}
	return plans
}

func newPlan(s planSpec) Plan {
	features := make([]string, len(s.features))
	copy(features, s.features)

	return Plan{
		Tier:             s.tier,
		ChatQuota:        Quota{Soft: s.chatSoft, Hard: hardCap(s.chatSoft, s.tolerance)},
		VoiceMinuteQuota: Quota{Soft: s.voiceSoft, Hard: hardCap(s.voiceSoft, s.tolerance)},
		DailyTokenBudget: s.dailyTokenBudget,
		Tolerance:        s.tolerance,
		Features:         features,
	}
}

// hardCap returns soft + ceil(soft * tolerance).
func hardCap(soft int64, tolerance float64) int64 {
	if tolerance <= 0 {
		return soft
	}
	// Round before ceil so 1000*0.10 (=100.00000000000001) stays 100.
	extra := math.Round(float64(soft)*tolerance*1e6) / 1e6
	return soft + int64(math.Ceil(extra))
}

// LimitsFor returns the plan for a tier. An unknown tier is a programmer
// error and panics; use LookupPlan for user-supplied values.
func LimitsFor(tier PlanTier) Plan {
	p, ok := catalog[tier]
	if !ok {
		panic(fmt.Sprintf("domain: unknown plan tier %q", tier))
	}
	return clonePlan(p)
}

// LookupPlan returns the plan for a tier, or an EINVALID error.
func LookupPlan(tier PlanTier) (Plan, error) {
	const op = "plan.lookup"

	p, ok := catalog[tier]
	if !ok {
		return Plan{}, Invalid(op, fmt.Sprintf("unknown plan tier %q", tier))
	}
	return clonePlan(p), nil
}

// Plans returns every plan ordered from the lowest tier to the highest.
func Plans() []Plan {
	plans := make([]Plan, 0, len(planSpecs))
	for _, s := range planSpecs {
		plans = append(plans, clonePlan(catalog[s.tier]))
	}
	return plans
}

// NextTierAbove returns the tier one step above the given tier.
// The second return value is false for the highest tier.
func NextTierAbove(tier PlanTier) (PlanTier, bool) {
	for i, s := range planSpecs {
		if s.tier == tier && i+1 < len(planSpecs) {
			return planSpecs[i+1].tier, true
		}
	}
	return "", false
}

// ValidateCatalog checks the soft/hard/tolerance relation for every plan.
// The server refuses to start if it fails.
func ValidateCatalog() error {
	return validatePlans(catalog)
}

func validatePlans(plans map[PlanTier]Plan) error {
	for tier, p := range plans {
		if p.Tier != tier {
			return fmt.Errorf("plan %q registered under tier %q", p.Tier, tier)
		}
		if p.Tolerance < 0 {
			return fmt.Errorf("plan %q: negative tolerance %v", tier, p.Tolerance)
		}
		if tier == PlanTierFree && p.Tolerance != 0 {
			return fmt.Errorf("plan %q: free tier must not have a tolerance", tier)
		}
		for name, q := range map[string]Quota{"chat": p.ChatQuota, "voice": p.VoiceMinuteQuota} {
			if q.Soft < 0 || q.Hard < q.Soft {
				return fmt.Errorf("plan %q: %s quota hard %d below soft %d", tier, name, q.Hard, q.Soft)
			}
			if want := hardCap(q.Soft, p.Tolerance); q.Hard != want {
				return fmt.Errorf("plan %q: %s quota hard %d, want %d", tier, name, q.Hard, want)
			}
		}
		if p.DailyTokenBudget <= 0 {
			return fmt.Errorf("plan %q: daily token budget must be positive", tier)
		}
	}
	return nil
}

func clonePlan(p Plan) Plan {
	features := make([]string, len(p.Features))
	copy(features, p.Features)
	p.Features = features
	return p
}

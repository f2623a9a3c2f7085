package guard

import (
	"context"

	"github.com/DukeRupert/agentguard/internal/domain"
)

// Rule names, in evaluation order.
const (
	RuleVoiceEntitlement       = "voice_entitlement"
	RuleVoiceQuota             = "voice_quota"
	RuleDailyTokens            = "daily_tokens"
	RuleDailyTokensUnavailable = "daily_tokens_unavailable"
	RuleChatHardCap            = "chat_hard_cap"
	RuleChatSoftCap            = "chat_soft_cap"
)

// User-facing messages.
const (
	ReasonVoiceUnavailable = "AI voice is not available on your current plan. Upgrade to premium to enable it."
	ReasonVoiceMinutes     = "Voice minute limit reached for this billing period."
	ReasonDailyTokens      = "Daily token limit reached. It resets at midnight UTC."
	ReasonUsageUnavailable = "Usage information is temporarily unavailable. Please try again shortly."
	ReasonChatLimit        = "Chat limit reached for this billing period."
	WarningChatSoftCap     = "You are approaching the recommended chat limit for your plan."
)

// evaluation carries the state shared by the rules of one check.
type evaluation struct {
	ctx   context.Context
	guard *Guard
	req   Request
	plan  domain.Plan
}

// rule is one predicate-to-verdict step. eval returns fired=false to pass.
type rule struct {
	name  string
	modes []domain.AgentMode
	eval  func(ev *evaluation) (v domain.Verdict, fired bool)
}

func (r rule) appliesTo(mode domain.AgentMode) bool {
	for _, m := range r.modes {
		if m == mode {
			return true
		}
	}
	return false
}

var (
	voiceOnly = []domain.AgentMode{domain.AgentModeVoice}
	textOnly  = []domain.AgentMode{domain.AgentModeText}
)

// defaultRules returns the rules in the order they must be evaluated.
// The order decides which reason and upsell win when several limits are hit.
func defaultRules() []rule {
	return []rule{
		{name: RuleVoiceEntitlement, modes: voiceOnly, eval: checkVoiceEntitlement},
		{name: RuleVoiceQuota, modes: voiceOnly, eval: checkVoiceQuota},
		{name: RuleDailyTokens, modes: textOnly, eval: checkDailyTokens},
		{name: RuleChatHardCap, modes: textOnly, eval: checkChatHardCap},
		{name: RuleChatSoftCap, modes: textOnly, eval: checkChatSoftCap},
	}
}

func checkVoiceEntitlement(ev *evaluation) (domain.Verdict, bool) {
	if ev.req.Org.AIVoiceEnabled {
		return domain.Verdict{}, false
	}
	return domain.Deny(RuleVoiceEntitlement, ReasonVoiceUnavailable, &domain.Upsell{
		Kind:   domain.UpsellKindPlan,
		Target: string(domain.PlanTierPremium),
	}), true
}

func checkVoiceQuota(ev *evaluation) (domain.Verdict, bool) {
	if ev.req.Usage.VoiceMinutes < ev.plan.VoiceMinuteQuota.Hard {
		return domain.Verdict{}, false
	}
	return domain.Deny(RuleVoiceQuota, ReasonVoiceMinutes, &domain.Upsell{
		Kind:   domain.UpsellKindAddon,
		Target: domain.AddonVoiceMinutes,
	}), true
}

func checkDailyTokens(ev *evaluation) (domain.Verdict, bool) {
	g := ev.guard
	used, err := g.dailyTokens(ev.ctx, ev.req.Org.ID)
	if err != nil {
		g.logger.Warn("daily token usage unavailable",
			"org_id", ev.req.Org.ID,
			"policy", g.config.FailurePolicy.String(),
			"error", err,
		)
		if g.config.FailurePolicy == FailOpen {
			return domain.Verdict{}, false
		}
		return domain.Deny(RuleDailyTokensUnavailable, ReasonUsageUnavailable, nil), true
	}

	if used+ev.req.EstimatedTokens <= ev.plan.DailyTokenBudget {
		return domain.Verdict{}, false
	}
	return domain.Deny(RuleDailyTokens, ReasonDailyTokens, upgradeOrAddon(ev.plan.Tier, domain.AddonTokenPack)), true
}

func checkChatHardCap(ev *evaluation) (domain.Verdict, bool) {
	if ev.req.Usage.ChatsUsed < ev.plan.ChatQuota.Hard {
		return domain.Verdict{}, false
	}
	return ChatLimitReached(ev.plan.Tier), true
}

// ChatLimitReached is the chat hard-cap denial for tier. The agent service
// also returns it when a concurrent request took the last chat first.
func ChatLimitReached(tier domain.PlanTier) domain.Verdict {
	return domain.Deny(RuleChatHardCap, ReasonChatLimit, upgradeOrAddon(tier, domain.AddonChatPack))
}

func checkChatSoftCap(ev *evaluation) (domain.Verdict, bool) {
	if ev.req.Usage.ChatsUsed < ev.plan.ChatQuota.Soft {
		return domain.Verdict{}, false
	}
	return domain.Warn(RuleChatSoftCap, WarningChatSoftCap, upgradeOrAddon(ev.plan.Tier, domain.AddonChatPack)), true
}

// upgradeOrAddon suggests the next plan, or the add-on for the exhausted
// resource when the tier is already the highest.
func upgradeOrAddon(tier domain.PlanTier, addon string) *domain.Upsell {
	if next, ok := domain.NextTierAbove(tier); ok {
		return &domain.Upsell{Kind: domain.UpsellKindPlan, Target: string(next)}
	}
	return &domain.Upsell{Kind: domain.UpsellKindAddon, Target: addon}
}

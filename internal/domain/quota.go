package domain

import "github.com/google/uuid"

// Remaining is what an organization can still consume before hitting a hard cap.
type Remaining struct {
	Chats        int64 `json:"chats"`
	VoiceMinutes int64 `json:"voice_minutes"`
	DailyTokens  int64 `json:"daily_tokens"`
}

// UsageSummary represents current usage against the plan limits.
type UsageSummary struct {
	OrgID       uuid.UUID     `json:"org_id"`
	Plan        Plan          `json:"plan"`
	Usage       UsageSnapshot `json:"usage"`
	DailyTokens int64         `json:"daily_tokens"`
	Remaining   Remaining     `json:"remaining"`

	// Percentages of the soft quota (the daily budget for tokens). They can exceed 100.
	ChatPercent       float64 `json:"chat_percent"`
	VoicePercent      float64 `json:"voice_percent"`
	DailyTokenPercent float64 `json:"daily_token_percent"`
	NearChatLimit     bool    `json:"near_chat_limit"`
}

// SummarizeUsage computes remaining allowances and percentages.
func SummarizeUsage(orgID uuid.UUID, plan Plan, snap UsageSnapshot, dailyTokens int64) UsageSummary {
	return UsageSummary{
		OrgID:       orgID,
		Plan:        plan,
		Usage:       snap,
		DailyTokens: dailyTokens,
		Remaining: Remaining{
			Chats:        floorZero(plan.ChatQuota.Hard - snap.ChatsUsed),
			VoiceMinutes: floorZero(plan.VoiceMinuteQuota.Hard - snap.VoiceMinutes),
			DailyTokens:  floorZero(plan.DailyTokenBudget - dailyTokens),
		},
		ChatPercent:       percent(snap.ChatsUsed, plan.ChatQuota.Soft),
		VoicePercent:      percent(snap.VoiceMinutes, plan.VoiceMinuteQuota.Soft),
		DailyTokenPercent: percent(dailyTokens, plan.DailyTokenBudget),
		NearChatLimit:     snap.ChatsUsed >= plan.ChatQuota.Soft,
	}
}

func floorZero(n int64) int64 {
	if n < 0 {
		return 0
	}
	return n
}

// percent returns used as a percentage of limit, rounded to one decimal.
// A zero limit reports 0.
func percent(used, limit int64) float64 {
	if limit <= 0 {
		return 0
	}
	return float64(used*1000/limit) / 10
}

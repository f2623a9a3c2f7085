package domain

import "time"

// UsageSnapshot is an organization's consumption for the current billing period.
// Counters only grow within a period.
type UsageSnapshot struct {
	ChatsUsed    int64     `json:"chats_used"`
	TokensIn     int64     `json:"tokens_in"`
	TokensOut    int64     `json:"tokens_out"`
	VoiceMinutes int64     `json:"voice_minutes"`
	PeriodStart  time.Time `json:"period_start"`
}

// UsageDelta is the consumption of a single successful agent call.
type UsageDelta struct {
	Chats        int64
	TokensIn     int64
	TokensOut    int64
	VoiceMinutes int64
}

// Tokens returns the total tokens in the delta.
func (d UsageDelta) Tokens() int64 {
	return d.TokensIn + d.TokensOut
}

// UsageCeiling holds the hard caps a usage store enforces while incrementing.
// Zero means no ceiling for that counter.
type UsageCeiling struct {
	Chats        int64
	VoiceMinutes int64
}

// CeilingFor returns the hard caps of a plan as a UsageCeiling.
func CeilingFor(p Plan) UsageCeiling {
	return UsageCeiling{
		Chats:        p.ChatQuota.Hard,
		VoiceMinutes: p.VoiceMinuteQuota.Hard,
	}
}

// PeriodStart returns the start of the billing period containing t.
// Billing periods are UTC calendar months.
func PeriodStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// DayStart returns the start of the UTC day containing t.
func DayStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

package domain

// AgentMode is the kind of agent interaction being requested.
type AgentMode string

const (
	AgentModeText  AgentMode = "text"
	AgentModeVoice AgentMode = "voice"
)

// Valid checks if the mode is known.
func (m AgentMode) Valid() bool {
	switch m {
	case AgentModeText, AgentModeVoice:
		return true
	default:
		return false
	}
}

// UpsellKind distinguishes plan upgrades from one-off add-ons.
type UpsellKind string

const (
	UpsellKindPlan  UpsellKind = "plan"
	UpsellKindAddon UpsellKind = "addon"
)

// Add-on targets offered when no higher plan exists.
const (
	AddonVoiceMinutes = "voice_minutes"
	AddonChatPack     = "chat_pack"
	AddonTokenPack    = "token_pack"
)

// Upsell suggests a purchase that would relieve the triggered limit.
type Upsell struct {
	Kind   UpsellKind `json:"kind"`
	Target string     `json:"target"`
}

// Verdict is the guard's decision for a single request. Never persisted.
//
// Reason is set only on denials and Warning only on admitted requests close
// to a soft cap; they are never both set.
type Verdict struct {
	OK      bool    `json:"ok"`
	Reason  string  `json:"reason,omitempty"`
	Warning string  `json:"warning,omitempty"`
	Upsell  *Upsell `json:"upsell,omitempty"`

	// Rule names the rule that produced the verdict. Empty when no rule fired.
	Rule string `json:"rule,omitempty"`
}

// Allow returns an admitted verdict with nothing attached.
func Allow() Verdict {
	return Verdict{OK: true}
}

// Deny returns a denial.
func Deny(rule, reason string, upsell *Upsell) Verdict {
	return Verdict{OK: false, Reason: reason, Upsell: upsell, Rule: rule}
}

// Warn returns an admitted verdict carrying a warning.
func Warn(rule, warning string, upsell *Upsell) Verdict {
	return Verdict{OK: true, Warning: warning, Upsell: upsell, Rule: rule}
}

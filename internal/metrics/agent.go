package metrics

import (
	"time"

	"github.com/DukeRupert/agentguard/internal/domain"
)

// VerdictRecorded records a guard decision.
func VerdictRecorded(tier domain.PlanTier, mode domain.AgentMode, v domain.Verdict) {
	outcome := "allowed"
	switch {
	case !v.OK:
		outcome = "denied"
	case v.Warning != "":
		outcome = "warned"
	}
	rule := v.Rule
	if rule == "" {
		rule = "none"
	}
	VerdictsTotal.WithLabelValues(string(tier), string(mode), outcome, rule).Inc()

	if v.Upsell != nil {
		UpsellsTotal.WithLabelValues(string(v.Upsell.Kind), v.Upsell.Target).Inc()
	}
}

// CacheLookup records a FAQ cache hit or miss.
func CacheLookup(hit bool) {
	if hit {
		CacheLookupsTotal.WithLabelValues("hit").Inc()
		return
	}
	CacheLookupsTotal.WithLabelValues("miss").Inc()
}

// CacheWrite records the outcome of a FAQ cache write attempt.
func CacheWrite(stored bool, err error) {
	switch {
	case err != nil:
		CacheWritesTotal.WithLabelValues("failed").Inc()
	case stored:
		CacheWritesTotal.WithLabelValues("stored").Inc()
	default:
		CacheWritesTotal.WithLabelValues("skipped").Inc()
	}
}

// AICompleted records a successful completion and its token usage.
func AICompleted(provider string, duration time.Duration, inputTokens, outputTokens int) {
	AIAPICalls.WithLabelValues(provider, "success").Inc()
	AIRequestDuration.WithLabelValues(provider).Observe(duration.Seconds())
	AITokensTotal.WithLabelValues("input").Add(float64(inputTokens))
	AITokensTotal.WithLabelValues("output").Add(float64(outputTokens))
}

// AIFailed records a failed completion.
func AIFailed(provider string) {
	AIAPICalls.WithLabelValues(provider, "error").Inc()
}

// UsageConflict records a usage write the store refused.
func UsageConflict(reason string) {
	UsageConflictsTotal.WithLabelValues(reason).Inc()
}

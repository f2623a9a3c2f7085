// Package guard decides whether an organization may run an AI agent request.
//
// The decision is an ordered list of rules; the first rule that fires wins.
// The guard never writes state. The only I/O it performs is reading the
// organization's token total for the current day, which runs under a timeout.
package guard

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/DukeRupert/agentguard/internal/domain"
	"github.com/google/uuid"
)

// DailyTokenReader is the read path of the usage store used by the guard.
type DailyTokenReader interface {
	DailyTokens(ctx context.Context, orgID uuid.UUID) (int64, error)
}

// FailurePolicy selects what happens when the daily token total cannot be read.
type FailurePolicy int

const (
	// FailClosed denies the request.
	FailClosed FailurePolicy = iota
	// FailOpen skips the daily token rule and keeps evaluating.
	FailOpen
)

func (p FailurePolicy) String() string {
	if p == FailOpen {
		return "fail_open"
	}
	return "fail_closed"
}

// DefaultUsageTimeout bounds the daily token read.
const DefaultUsageTimeout = 2 * time.Second

// Config configures a Guard.
type Config struct {
	UsageTimeout  time.Duration
	FailurePolicy FailurePolicy
}

// Guard evaluates the entitlement rules. Safe for concurrent use.
type Guard struct {
	tokens DailyTokenReader
	config Config
	logger *slog.Logger
	rules  []rule
}

// New creates a Guard.
func New(tokens DailyTokenReader, config Config, logger *slog.Logger) *Guard {
	if config.UsageTimeout <= 0 {
		config.UsageTimeout = DefaultUsageTimeout
	}
	return &Guard{
		tokens: tokens,
		config: config,
		logger: logger,
		rules:  defaultRules(),
	}
}

// Request is the input to a single check.
type Request struct {
	Org   *domain.Organization
	Usage domain.UsageSnapshot
	Mode  domain.AgentMode

	// EstimatedTokens is the projected cost of the pending call. Must not be negative.
	EstimatedTokens int64
}

// CheckLimits returns the verdict for a request.
//
// Business outcomes are always verdicts. A negative token estimate, a nil
// organization, an unknown mode or an unknown plan tier are programmer errors
// and panic.
func (g *Guard) CheckLimits(ctx context.Context, req Request) domain.Verdict {
	if req.Org == nil {
		panic("guard: nil organization")
	}
	if req.EstimatedTokens < 0 {
		panic(fmt.Sprintf("guard: negative estimated tokens %d", req.EstimatedTokens))
	}
	if !req.Mode.Valid() {
		panic(fmt.Sprintf("guard: unknown agent mode %q", req.Mode))
	}

	ev := &evaluation{
		ctx:   ctx,
		guard: g,
		req:   req,
		plan:  domain.LimitsFor(req.Org.Plan),
	}

	for _, r := range g.rules {
		if !r.appliesTo(req.Mode) {
			continue
		}
		if v, fired := r.eval(ev); fired {
			g.logVerdict(req, v)
			return v
		}
	}
	return domain.Allow()
}

// Rules returns the rule names in evaluation order.
func (g *Guard) Rules() []string {
	names := make([]string, len(g.rules))
	for i, r := range g.rules {
		names[i] = r.name
	}
	return names
}

// dailyTokens reads today's token total under the configured timeout.
func (g *Guard) dailyTokens(ctx context.Context, orgID uuid.UUID) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, g.config.UsageTimeout)
	defer cancel()
	return g.tokens.DailyTokens(ctx, orgID)
}

func (g *Guard) logVerdict(req Request, v domain.Verdict) {
	attrs := []any{
		"org_id", req.Org.ID,
		"tier", req.Org.Plan,
		"mode", req.Mode,
		"rule", v.Rule,
	}
	if v.Upsell != nil {
		attrs = append(attrs, "upsell_kind", v.Upsell.Kind, "upsell_target", v.Upsell.Target)
	}
	if v.OK {
		g.logger.Debug("agent request near limit", attrs...)
	} else {
		g.logger.Info("agent request denied", attrs...)
	}
}

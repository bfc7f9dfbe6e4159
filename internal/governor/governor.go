// Package governor gates tool calls on the two policy axes: human approval
// and per-tool rate limits. The axes are independent; checking whether a tool
// needs approval never consumes rate budget, and rate budget is only consumed
// at the moment a call is actually about to execute.
package governor

import (
	"log/slog"

	"github.com/toolgate/toolgate/internal/policy"
	"github.com/toolgate/toolgate/internal/ratelimit"
)

// Service answers governance questions for named tools.
type Service struct {
	logger  *slog.Logger
	table   *policy.Table
	limiter *ratelimit.Limiter
}

func NewService(logger *slog.Logger, table *policy.Table, limiter *ratelimit.Limiter) *Service {
	return &Service{
		logger:  logger.With(slog.String("service", "governor")),
		table:   table,
		limiter: limiter,
	}
}

// RequiresApproval reports whether the tool must be confirmed by a human
// before it may run. Pure lookup, no side effects.
func (s *Service) RequiresApproval(tool string) bool {
	return s.table.Lookup(tool).RequiresApproval
}

// ConsumeRate draws one call from the tool's current rate window and reports
// whether the call is within budget. Call this once per execution attempt,
// after any approval has been granted.
func (s *Service) ConsumeRate(tool string) bool {
	p := s.table.Lookup(tool)
	allowed := s.limiter.Allow(tool, p.MaxCallsPerMinute)
	if !allowed {
		s.logger.Warn("tool call rate limited",
			slog.String("tool", tool),
			slog.Int("max_calls_per_minute", p.MaxCallsPerMinute),
		)
	}
	return allowed
}

// PolicyFor returns the effective policy for the tool, falling back to the
// table default for unknown names.
func (s *Service) PolicyFor(tool string) policy.ToolPolicy {
	return s.table.Lookup(tool)
}

// Policies lists every explicitly configured tool policy plus the fallback.
func (s *Service) Policies() (policy.ToolPolicy, []policy.Entry) {
	return s.table.Fallback(), s.table.List()
}

// RemainingCalls reports the unconsumed budget in the tool's current window.
func (s *Service) RemainingCalls(tool string) int {
	p := s.table.Lookup(tool)
	return s.limiter.Remaining(tool, p.MaxCallsPerMinute)
}

// Package policy implements the assistant policy engine: a pure mapping from
// (tenant, user, tool, risk level, channel) to an allow/deny/requires_approval
// decision. No state, no I/O.
package policy

import (
	"fmt"

	"github.com/jkaninda/aiom/internal/domain"
)

// Channel identifies the surface a request arrived on.
type Channel string

const (
	ChannelWeb      Channel = "web"
	ChannelTelegram Channel = "telegram"
)

// Input carries everything the engine needs for one evaluation.
type Input struct {
	TenantID  string
	UserID    string
	ToolID    string
	RiskLevel domain.RiskLevel
	Channel   Channel
}

// Engine evaluates assistant policy against a fixed set of recognized tools.
// Constructed explicitly at bootstrap and injected — no global state.
type Engine struct {
	recognized map[string]struct{}
}

// NewEngine creates a policy engine recognizing the given tool IDs.
func NewEngine(toolIDs []string) *Engine {
	recognized := make(map[string]struct{}, len(toolIDs))
	for _, id := range toolIDs {
		recognized[id] = struct{}{}
	}
	return &Engine{recognized: recognized}
}

// Evaluate applies the policy rules in order:
//  1. Unrecognized tool ID → deny.
//  2. Low risk → allow.
//  3. Medium or high risk → requires_approval.
//  4. Anything else (invalid risk level) → deny.
func (e *Engine) Evaluate(in Input) domain.PolicyResult {
	if _, ok := e.recognized[in.ToolID]; !ok {
		return domain.PolicyResult{
			Decision: domain.DecisionDeny,
			Reason:   fmt.Sprintf("Tool ID '%s' is not recognized", in.ToolID),
		}
	}

	switch in.RiskLevel {
	case domain.RiskLow:
		return domain.PolicyResult{
			Decision: domain.DecisionAllow,
			Reason:   "Low risk tool - auto-approved",
		}
	case domain.RiskMedium:
		return domain.PolicyResult{
			Decision: domain.DecisionRequiresApproval,
			Reason:   "Medium risk tool - requires user approval before execution",
		}
	case domain.RiskHigh:
		return domain.PolicyResult{
			Decision: domain.DecisionRequiresApproval,
			Reason:   "High risk tool - requires user approval before execution",
		}
	default:
		return domain.PolicyResult{
			Decision: domain.DecisionDeny,
			Reason:   "Invalid risk level",
		}
	}
}

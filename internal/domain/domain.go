// Package domain defines cross-cutting entity types used across the system.
package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Tenant is the isolation boundary. Every conversation, message, and tool
// call belongs to exactly one tenant.
type Tenant struct {
	ID        uuid.UUID
	Name      string
	Slug      string
	IsActive  bool
	CreatedAt time.Time
}

// User represents an identity within a tenant.
// ExternalID is the opaque string ID supplied by the authentication layer.
type User struct {
	ID         uuid.UUID
	ExternalID string
	Email      string
	IsAdmin    bool
	CreatedAt  time.Time
}

// Conversation groups the messages and tool calls of one user's assistant
// proposals thread. Created lazily per (tenant, user).
type Conversation struct {
	ID        uuid.UUID
	TenantID  uuid.UUID
	UserID    string
	Title     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Message is a single utterance within a conversation. Immutable once created.
type Message struct {
	ID             uuid.UUID
	ConversationID uuid.UUID
	TenantID       uuid.UUID
	SeqNum         int // Monotonically increasing within conversation.
	Role           string
	Content        string
	CreatedAt      time.Time
}

// ToolCallStatus is the lifecycle state of a tool call.
type ToolCallStatus string

const (
	StatusProposed  ToolCallStatus = "proposed"
	StatusPending   ToolCallStatus = "pending"
	StatusRunning   ToolCallStatus = "running"
	StatusCompleted ToolCallStatus = "completed"
	StatusFailed    ToolCallStatus = "failed"
)

// RiskLevel is a tool-declared sensitivity tier driving the policy decision.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// Valid reports whether the risk level is one of the three recognized tiers.
func (r RiskLevel) Valid() bool {
	return r == RiskLow || r == RiskMedium || r == RiskHigh
}

// PolicyDecision is the outcome of a policy evaluation.
type PolicyDecision string

const (
	DecisionAllow            PolicyDecision = "allow"
	DecisionDeny             PolicyDecision = "deny"
	DecisionRequiresApproval PolicyDecision = "requires_approval"
)

// PolicyResult is the ephemeral outcome of a policy evaluation. Not persisted
// standalone; embedded into the tool call's CallRecord at proposal time.
type PolicyResult struct {
	Decision PolicyDecision `json:"decision"`
	Reason   string         `json:"reason"`
}

// ToolCall tracks one attempted invocation of a named capability through its
// full lifecycle. Never deleted — the audit trail is permanent.
type ToolCall struct {
	ID             uuid.UUID
	ConversationID uuid.UUID
	MessageID      uuid.UUID
	ToolName       string
	ToolCallID     string // Idempotency key. Unique.
	InputArguments json.RawMessage
	Status         ToolCallStatus
	Record         CallRecord
	ErrorMessage   string
	StartedAt      *time.Time
	CompletedAt    *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// CallRecord is the structured output record of a tool call. Sub-records are
// appended as the lifecycle progresses; existing fields are never mutated.
// Proposal.TenantID is set at proposal time and immutable thereafter — every
// subsequent transition must verify the caller's tenant equals it.
type CallRecord struct {
	Proposal   ProposalContext  `json:"proposal"`
	Approval   *ApprovalRecord  `json:"approval,omitempty"`
	Execution  *ExecutionRecord `json:"execution,omitempty"`
	ToolResult json.RawMessage  `json:"toolResult,omitempty"`
	Formatted  string           `json:"formatted,omitempty"`
}

// ProposalContext captures the tenant, user, and policy context recorded when
// the proposal was created.
type ProposalContext struct {
	TenantID  string       `json:"tenantId"`
	UserID    string       `json:"userId"`
	ToolID    string       `json:"toolId"`
	RiskLevel RiskLevel    `json:"riskLevel"`
	Policy    PolicyResult `json:"policy"`
	Warning   string       `json:"warning,omitempty"`
}

// ApprovalRecord captures a human approve or reject decision.
type ApprovalRecord struct {
	Decision   string     `json:"decision"` // "approved" or "rejected"
	ApprovedAt *time.Time `json:"approvedAt,omitempty"`
	ApprovedBy string     `json:"approvedBy,omitempty"`
	Comment    string     `json:"comment,omitempty"`
	RejectedAt *time.Time `json:"rejectedAt,omitempty"`
	RejectedBy string     `json:"rejectedBy,omitempty"`
	Reason     string     `json:"reason,omitempty"`
}

// ExecutionRecord captures one execution attempt.
type ExecutionRecord struct {
	AttemptedAt time.Time `json:"attemptedAt"`
	Status      string    `json:"status"` // "completed" or "failed"
	DurationMs  int64     `json:"durationMs"`
	Error       string    `json:"error,omitempty"`
}

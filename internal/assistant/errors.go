package assistant

import (
	"errors"
	"fmt"

	"github.com/jkaninda/aiom/internal/domain"
)

var (
	// ErrToolCallNotFound is returned when the tool call ID is unknown.
	ErrToolCallNotFound = errors.New("tool call not found")

	// ErrNotOwner is returned when the tool call's conversation does not
	// belong to the requesting user.
	ErrNotOwner = errors.New("tool call does not belong to authenticated user")

	// ErrMissingTenantContext is returned for records created before tenant
	// context tracking. Callers must re-propose; ownership is never assumed.
	ErrMissingTenantContext = errors.New("proposal missing tenant context")

	// ErrReasonRequired is returned by Reject when no reason is supplied.
	ErrReasonRequired = errors.New("rejection reason is required")

	// ErrDuplicateToolCall is returned by stores when a create hits the
	// unique index on the idempotency key. The service resolves it by
	// fetching the existing record.
	ErrDuplicateToolCall = errors.New("tool call with this idempotency key already exists")
)

// ConflictError reports a transition attempted from the wrong current status.
type ConflictError struct {
	Current  domain.ToolCallStatus
	Required domain.ToolCallStatus
	Code     string // Machine-readable, e.g. "not_pending". May be empty.
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("tool call status is '%s', must be '%s'", e.Current, e.Required)
}

// TenantMismatchError reports a transition attempted with a tenant header
// that differs from the tenant recorded at proposal time.
type TenantMismatchError struct {
	ProposalTenantID string
	RequestTenantID  string
}

func (e *TenantMismatchError) Error() string {
	return "tool call tenant does not match request tenant"
}

// PolicyForbiddenError reports an execute refused because the policy decision
// recorded at proposal time was neither allow nor requires_approval.
type PolicyForbiddenError struct {
	Decision domain.PolicyDecision
}

func (e *PolicyForbiddenError) Error() string {
	return fmt.Sprintf("policy decision was '%s', cannot execute", e.Decision)
}

// UnknownToolError reports an execute against a tool the registry no longer
// has. Surfaced before the running transition.
type UnknownToolError struct {
	ToolName string
}

func (e *UnknownToolError) Error() string {
	return fmt.Sprintf("tool '%s' not found in registry", e.ToolName)
}

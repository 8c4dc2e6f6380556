package assistant

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/jkaninda/aiom/internal/domain"
)

// TenantStore resolves tenants and memberships for request guards.
type TenantStore interface {
	// FindByID returns the tenant, or nil if unknown.
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Tenant, error)

	// IsMember reports whether the user belongs to the tenant.
	IsMember(ctx context.Context, tenantID uuid.UUID, userID string) (bool, error)

	// IsAdmin reports whether the user carries the admin flag.
	IsAdmin(ctx context.Context, userID string) (bool, error)
}

// ConversationStore persists conversations and their ordered messages.
type ConversationStore interface {
	// GetOrCreateProposalThread returns the user's assistant-proposals
	// conversation within the tenant, creating it on first use.
	GetOrCreateProposalThread(ctx context.Context, tenantID uuid.UUID, userID string) (*domain.Conversation, error)

	// FindForUser returns the conversation only if it is owned by the user;
	// nil otherwise.
	FindForUser(ctx context.Context, convID uuid.UUID, userID string) (*domain.Conversation, error)

	// AppendMessage creates a message with the next sequence number.
	// Allocation must be serialized per conversation so concurrent appends
	// never produce duplicate or out-of-order numbers.
	AppendMessage(ctx context.Context, convID, tenantID uuid.UUID, role, content string) (*domain.Message, error)
}

// ToolCallStore persists tool-call lifecycle records.
type ToolCallStore interface {
	// Create persists a new tool call. Returns ErrDuplicateToolCall when
	// another record already holds the same ToolCallID.
	Create(ctx context.Context, tc *domain.ToolCall) error

	// FindByID returns the tool call, or nil if unknown.
	FindByID(ctx context.Context, id uuid.UUID) (*domain.ToolCall, error)

	// FindByToolCallID looks up by idempotency key; nil if absent.
	FindByToolCallID(ctx context.Context, toolCallID string) (*domain.ToolCall, error)

	// Update writes status, record, error message, and timestamps.
	Update(ctx context.Context, tc *domain.ToolCall) error

	// TransitionToRunning conditionally moves pending → running, stamping
	// StartedAt if unset. Returns false when the row is no longer pending —
	// the anti-double-execution guard.
	TransitionToRunning(ctx context.Context, id uuid.UUID, startedAt time.Time) (bool, error)
}

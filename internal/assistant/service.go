package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/jkaninda/aiom/internal/domain"
	"github.com/jkaninda/aiom/internal/policy"
	"github.com/jkaninda/aiom/internal/tools"
)

// DefaultExecuteTimeout bounds a single tool handler invocation.
const DefaultExecuteTimeout = 30 * time.Second

// ProposalThreadTitle names the lazily created per-user conversation.
const ProposalThreadTitle = "Assistant Proposals"

// ErrNoLongerPending is returned when the conditional pending → running
// update loses to a concurrent execute. The tool handler was not invoked.
var ErrNoLongerPending = errors.New("tool call is no longer pending")

// Service orchestrates the tool-call lifecycle against the stores, registry,
// and policy engine. All dependencies are injected at bootstrap.
type Service struct {
	conversations  ConversationStore
	toolCalls      ToolCallStore
	registry       *tools.Registry
	policy         *policy.Engine
	executeTimeout time.Duration
	logger         *slog.Logger
}

// NewService creates the lifecycle service.
func NewService(conversations ConversationStore, toolCalls ToolCallStore, registry *tools.Registry, engine *policy.Engine, logger *slog.Logger) *Service {
	return &Service{
		conversations:  conversations,
		toolCalls:      toolCalls,
		registry:       registry,
		policy:         engine,
		executeTimeout: DefaultExecuteTimeout,
		logger:         logger,
	}
}

// ProposeInput is the request for Propose.
type ProposeInput struct {
	TenantID uuid.UUID
	UserID   string
	Text     string
	Channel  policy.Channel
}

// ProposedCall is the parsed proposal returned to the caller.
type ProposedCall struct {
	ToolID    string           `json:"toolId"`
	Input     json.RawMessage  `json:"input"`
	RiskLevel domain.RiskLevel `json:"riskLevel"`
	Warning   string           `json:"warning,omitempty"`
}

// ProposalRecord identifies the persisted proposal entities.
type ProposalRecord struct {
	AIToolCallID     uuid.UUID `json:"aiToolCallId"`
	AIConversationID uuid.UUID `json:"aiConversationId"`
	AIMessageID      uuid.UUID `json:"aiMessageId"`
	ToolCallID       string    `json:"toolCallId"`
}

// ProposeResult is the outcome of Propose. Proposed is nil when no intent
// matched or the parsed tool is unregistered; Reason then says which.
type ProposeResult struct {
	Proposed *ProposedCall
	Reason   string
	Policy   *domain.PolicyResult
	Record   *ProposalRecord
	Replayed bool
}

// Propose parses the text, evaluates policy, and idempotently persists a
// tool call in status proposed. The policy decision is informational here —
// it never blocks persistence of the proposal itself.
func (s *Service) Propose(ctx context.Context, in ProposeInput) (*ProposeResult, error) {
	parsed := ParseIntent(in.Text)
	if parsed == nil {
		return &ProposeResult{Reason: "no_intent_match"}, nil
	}

	def := s.registry.Get(parsed.ToolID)
	if def == nil {
		// Unreachable with the built-in patterns, but a registry change must
		// degrade to "no proposal" rather than an error.
		s.logger.Error("parsed tool missing from registry", slog.String("tool_id", parsed.ToolID))
		return &ProposeResult{Reason: "tool_not_found"}, nil
	}

	riskLevel, warning := def.RiskLevel()
	key := DeriveKey(in.TenantID.String(), in.UserID, parsed.ToolID, parsed.Input, in.Text)

	policyResult := s.policy.Evaluate(policy.Input{
		TenantID:  in.TenantID.String(),
		UserID:    in.UserID,
		ToolID:    parsed.ToolID,
		RiskLevel: riskLevel,
		Channel:   in.Channel,
	})

	proposed := &ProposedCall{
		ToolID:    parsed.ToolID,
		Input:     parsed.Input,
		RiskLevel: riskLevel,
		Warning:   warning,
	}

	existing, err := s.toolCalls.FindByToolCallID(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("looking up existing proposal: %w", err)
	}
	if existing != nil {
		s.logger.Info("idempotent duplicate proposal",
			slog.String("tool_call_id", key),
			slog.String("user_id", in.UserID),
		)
		return &ProposeResult{
			Proposed: proposed,
			Policy:   &policyResult,
			Record:   recordOf(existing),
			Replayed: true,
		}, nil
	}

	conv, err := s.conversations.GetOrCreateProposalThread(ctx, in.TenantID, in.UserID)
	if err != nil {
		return nil, fmt.Errorf("resolving proposal conversation: %w", err)
	}

	msg, err := s.conversations.AppendMessage(ctx, conv.ID, in.TenantID, "user", in.Text)
	if err != nil {
		return nil, fmt.Errorf("appending proposal message: %w", err)
	}

	tc := &domain.ToolCall{
		ID:             uuid.New(),
		ConversationID: conv.ID,
		MessageID:      msg.ID,
		ToolName:       parsed.ToolID,
		ToolCallID:     key,
		InputArguments: parsed.Input,
		Status:         domain.StatusProposed,
		Record: domain.CallRecord{
			Proposal: domain.ProposalContext{
				TenantID:  in.TenantID.String(),
				UserID:    in.UserID,
				ToolID:    parsed.ToolID,
				RiskLevel: riskLevel,
				Policy:    policyResult,
				Warning:   warning,
			},
		},
	}

	if err := s.toolCalls.Create(ctx, tc); err != nil {
		if errors.Is(err, ErrDuplicateToolCall) {
			// Lost the create race — converge on the winner's record.
			winner, ferr := s.toolCalls.FindByToolCallID(ctx, key)
			if ferr != nil || winner == nil {
				return nil, fmt.Errorf("resolving duplicate proposal: %w", err)
			}
			return &ProposeResult{
				Proposed: proposed,
				Policy:   &policyResult,
				Record:   recordOf(winner),
				Replayed: true,
			}, nil
		}
		return nil, fmt.Errorf("creating proposal: %w", err)
	}

	s.logger.Info("proposal created",
		slog.String("tool_call_id", key),
		slog.String("tool", parsed.ToolID),
		slog.String("user_id", in.UserID),
		slog.String("risk", string(riskLevel)),
		slog.String("policy", string(policyResult.Decision)),
	)

	return &ProposeResult{
		Proposed: proposed,
		Policy:   &policyResult,
		Record:   recordOf(tc),
	}, nil
}

func recordOf(tc *domain.ToolCall) *ProposalRecord {
	return &ProposalRecord{
		AIToolCallID:     tc.ID,
		AIConversationID: tc.ConversationID,
		AIMessageID:      tc.MessageID,
		ToolCallID:       tc.ToolCallID,
	}
}

// TransitionInput identifies the tool call and caller for a transition.
type TransitionInput struct {
	TenantID     uuid.UUID
	UserID       string
	AIToolCallID uuid.UUID
}

// Approve transitions proposed → pending, recording who approved and when.
func (s *Service) Approve(ctx context.Context, in TransitionInput, comment string) (*domain.ToolCall, error) {
	tc, err := s.loadGuarded(ctx, in, domain.StatusProposed, "")
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	tc.Status = domain.StatusPending
	tc.StartedAt = &now
	tc.ErrorMessage = ""
	tc.Record.Approval = &domain.ApprovalRecord{
		Decision:   "approved",
		ApprovedAt: &now,
		ApprovedBy: in.UserID,
		Comment:    comment,
	}

	if err := s.toolCalls.Update(ctx, tc); err != nil {
		return nil, fmt.Errorf("updating tool call: %w", err)
	}

	s.logger.Info("tool call approved",
		slog.String("ai_tool_call_id", tc.ID.String()),
		slog.String("approved_by", in.UserID),
	)

	return tc, nil
}

// Reject transitions proposed → failed. A non-empty reason is required.
func (s *Service) Reject(ctx context.Context, in TransitionInput, reason string) (*domain.ToolCall, error) {
	if reason == "" {
		return nil, ErrReasonRequired
	}

	tc, err := s.loadGuarded(ctx, in, domain.StatusProposed, "")
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	tc.Status = domain.StatusFailed
	tc.CompletedAt = &now
	tc.ErrorMessage = reason
	tc.Record.Approval = &domain.ApprovalRecord{
		Decision:   "rejected",
		RejectedAt: &now,
		RejectedBy: in.UserID,
		Reason:     reason,
	}

	if err := s.toolCalls.Update(ctx, tc); err != nil {
		return nil, fmt.Errorf("updating tool call: %w", err)
	}

	s.logger.Info("tool call rejected",
		slog.String("ai_tool_call_id", tc.ID.String()),
		slog.String("rejected_by", in.UserID),
	)

	return tc, nil
}

// ExecuteResult is the outcome of Execute.
type ExecuteResult struct {
	ToolCall   *domain.ToolCall
	DurationMs int64
	Success    bool
	Formatted  string
}

// Execute transitions pending → running → completed/failed, invoking the
// tool handler exactly once. The running transition is conditional on the
// row still being pending; a lost race returns ErrNoLongerPending without
// invoking the handler.
func (s *Service) Execute(ctx context.Context, in TransitionInput, isAdmin bool) (*ExecuteResult, error) {
	tc, err := s.loadGuarded(ctx, in, domain.StatusPending, "not_pending")
	if err != nil {
		return nil, err
	}

	// Registry miss is surfaced before any transition.
	if !s.registry.Has(tc.ToolName) {
		return nil, &UnknownToolError{ToolName: tc.ToolName}
	}

	// Defense in depth: approval alone is not sufficient if the recorded
	// policy decision was a deny.
	decision := tc.Record.Proposal.Policy.Decision
	if decision != domain.DecisionAllow && decision != domain.DecisionRequiresApproval {
		return nil, &PolicyForbiddenError{Decision: decision}
	}

	startedAt := time.Now().UTC()
	if tc.StartedAt != nil {
		startedAt = *tc.StartedAt
	}

	ok, err := s.toolCalls.TransitionToRunning(ctx, tc.ID, startedAt)
	if err != nil {
		return nil, fmt.Errorf("transitioning to running: %w", err)
	}
	if !ok {
		return nil, ErrNoLongerPending
	}
	tc.Status = domain.StatusRunning

	s.logger.Info("tool call running", slog.String("ai_tool_call_id", tc.ID.String()))

	start := time.Now()
	exec, execErr := s.registry.Execute(ctx, tc.ToolName, tc.InputArguments, tools.ExecContext{
		UserID:   in.UserID,
		TenantID: in.TenantID.String(),
		Channel:  "web",
		IsAdmin:  isAdmin,
	}, s.executeTimeout)
	durationMs := time.Since(start).Milliseconds()

	now := time.Now().UTC()
	success := execErr == nil && exec != nil && exec.Result.Success

	if success {
		tc.Status = domain.StatusCompleted
		tc.CompletedAt = &now
		tc.ErrorMessage = ""
		tc.Record.Execution = &domain.ExecutionRecord{
			AttemptedAt: now,
			Status:      "completed",
			DurationMs:  durationMs,
		}
		if data, merr := json.Marshal(exec.Result); merr == nil {
			tc.Record.ToolResult = data
		}
		tc.Record.Formatted = exec.Formatted
	} else {
		errMsg := "Tool execution failed"
		formatted := ""
		switch {
		case execErr != nil:
			errMsg = execErr.Error()
		case exec != nil && exec.Result.Error != nil:
			errMsg = exec.Result.Error.Message
			formatted = exec.Formatted
		}
		tc.Status = domain.StatusFailed
		tc.CompletedAt = &now
		tc.ErrorMessage = errMsg
		tc.Record.Execution = &domain.ExecutionRecord{
			AttemptedAt: now,
			Status:      "failed",
			DurationMs:  durationMs,
			Error:       errMsg,
		}
		tc.Record.Formatted = formatted
	}

	if err := s.toolCalls.Update(ctx, tc); err != nil {
		return nil, fmt.Errorf("persisting execution result: %w", err)
	}

	s.logger.Info("tool call executed",
		slog.String("ai_tool_call_id", tc.ID.String()),
		slog.String("status", string(tc.Status)),
		slog.Int64("duration_ms", durationMs),
	)

	return &ExecuteResult{
		ToolCall:   tc,
		DurationMs: durationMs,
		Success:    success,
		Formatted:  tc.Record.Formatted,
	}, nil
}

// loadGuarded fetches the tool call and applies the shared transition
// preconditions: status, conversation ownership, and tenant context.
func (s *Service) loadGuarded(ctx context.Context, in TransitionInput, required domain.ToolCallStatus, conflictCode string) (*domain.ToolCall, error) {
	tc, err := s.toolCalls.FindByID(ctx, in.AIToolCallID)
	if err != nil {
		return nil, fmt.Errorf("looking up tool call: %w", err)
	}
	if tc == nil {
		return nil, ErrToolCallNotFound
	}

	if tc.Status != required {
		return nil, &ConflictError{Current: tc.Status, Required: required, Code: conflictCode}
	}

	conv, err := s.conversations.FindForUser(ctx, tc.ConversationID, in.UserID)
	if err != nil {
		return nil, fmt.Errorf("verifying conversation ownership: %w", err)
	}
	if conv == nil {
		return nil, ErrNotOwner
	}

	if tc.Record.Proposal.TenantID == "" {
		return nil, ErrMissingTenantContext
	}
	if tc.Record.Proposal.TenantID != in.TenantID.String() {
		return nil, &TenantMismatchError{
			ProposalTenantID: tc.Record.Proposal.TenantID,
			RequestTenantID:  in.TenantID.String(),
		}
	}

	return tc, nil
}

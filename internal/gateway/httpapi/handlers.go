package httpapi

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/jkaninda/aiom/internal/assistant"
	"github.com/jkaninda/aiom/internal/domain"
	"github.com/jkaninda/aiom/internal/monitoring"
	"github.com/jkaninda/aiom/internal/policy"
	"github.com/jkaninda/okapi"
)

// --- Tenant resolution ---

// resolveTenant reads the X-Tenant-ID header, loads the tenant, and verifies
// the caller's membership. On failure it writes the error response and
// returns a nil tenant; handlers must return the accompanying error.
func (g *Gateway) resolveTenant(c *okapi.Context, userID string) (*domain.Tenant, error) {
	raw := c.Header(TenantHeader)
	if raw == "" {
		return nil, c.AbortBadRequest("missing " + TenantHeader + " header")
	}

	tenantID, err := uuid.Parse(raw)
	if err != nil {
		return nil, c.AbortBadRequest("invalid tenant ID")
	}

	tenant, err := g.tenants.FindByID(c.Context(), tenantID)
	if err != nil {
		g.logger.Error("tenant lookup failed", slog.String("error", err.Error()))
		return nil, c.AbortInternalServerError("tenant lookup failed")
	}
	if tenant == nil {
		return nil, c.AbortBadRequest("unknown tenant")
	}
	if !tenant.IsActive {
		return nil, c.JSON(http.StatusForbidden, ErrorBody{Error: "tenant is inactive"})
	}

	member, err := g.tenants.IsMember(c.Context(), tenant.ID, userID)
	if err != nil {
		g.logger.Error("membership lookup failed", slog.String("error", err.Error()))
		return nil, c.AbortInternalServerError("membership lookup failed")
	}
	if !member {
		return nil, c.JSON(http.StatusForbidden, ErrorBody{Error: "user is not a member of this tenant"})
	}

	return tenant, nil
}

// allow applies the per-user rate limit. Returns a non-nil response error
// when the caller is over quota.
func (g *Gateway) allow(c *okapi.Context, userID string) error {
	if g.limiter == nil {
		return nil
	}
	if err := g.limiter.Allow(userID); err != nil {
		return c.AbortTooManyRequests("rate limit exceeded")
	}
	return nil
}

// --- Assistant handlers ---

// ProposeRequest is the JSON body for POST /v1/assistant/propose.
type ProposeRequest struct {
	Text string `json:"text"`
}

// ProposeResponse is the JSON response for POST /v1/assistant/propose.
// Proposed is null when no command pattern matched; reason then says why.
type ProposeResponse struct {
	OK             bool                      `json:"ok"`
	TenantID       string                    `json:"tenantId"`
	UserID         string                    `json:"userId"`
	Proposed       *assistant.ProposedCall   `json:"proposed"`
	Reason         string                    `json:"reason,omitempty"`
	Policy         *domain.PolicyResult      `json:"policy,omitempty"`
	ProposalRecord *assistant.ProposalRecord `json:"proposalRecord,omitempty"`
	Replayed       bool                      `json:"replayed,omitempty"`
}

func (g *Gateway) handlePropose(c *okapi.Context) error {
	userID := c.GetString("userID")
	if err := g.allow(c, userID); err != nil {
		return err
	}
	tenant, errResp := g.resolveTenant(c, userID)
	if tenant == nil {
		return errResp
	}

	var req ProposeRequest
	if err := c.Bind(&req); err != nil {
		return c.AbortBadRequest("invalid request body")
	}
	if req.Text == "" {
		return c.AbortBadRequest("text is required")
	}

	result, err := g.service.Propose(c.Context(), assistant.ProposeInput{
		TenantID: tenant.ID,
		UserID:   userID,
		Text:     req.Text,
		Channel:  policy.ChannelWeb,
	})
	if err != nil {
		g.logger.Error("propose failed",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		return c.AbortInternalServerError("propose failed")
	}

	g.recordProposal(result)

	return c.OK(ProposeResponse{
		OK:             true,
		TenantID:       tenant.ID.String(),
		UserID:         userID,
		Proposed:       result.Proposed,
		Reason:         result.Reason,
		Policy:         result.Policy,
		ProposalRecord: result.Record,
		Replayed:       result.Replayed,
	})
}

func (g *Gateway) recordProposal(result *assistant.ProposeResult) {
	m := g.config.Metrics
	if m == nil {
		return
	}
	switch {
	case result.Proposed == nil:
		m.RecordProposal(result.Reason)
	case result.Replayed:
		m.RecordProposal("replayed")
	default:
		m.RecordProposal("proposed")
	}
	if result.Proposed != nil && result.Policy != nil {
		m.RecordPolicyDecision(result.Proposed.ToolID, string(result.Policy.Decision))
	}
}

// ApproveRequest is the JSON body for POST /v1/assistant/approve.
type ApproveRequest struct {
	AIToolCallID string `json:"aiToolCallId"`
	Comment      string `json:"comment,omitempty"`
}

// RejectRequest is the JSON body for POST /v1/assistant/reject.
type RejectRequest struct {
	AIToolCallID string `json:"aiToolCallId"`
	Reason       string `json:"reason"`
}

// ExecuteRequest is the JSON body for POST /v1/assistant/execute.
type ExecuteRequest struct {
	AIToolCallID string `json:"aiToolCallId"`
}

// ToolCallResponse is the tool call state returned after approve/reject.
type ToolCallResponse struct {
	OK           bool                   `json:"ok"`
	AIToolCallID string                 `json:"aiToolCallId"`
	ToolName     string                 `json:"toolName"`
	Status       string                 `json:"status"`
	Approval     *domain.ApprovalRecord `json:"approval,omitempty"`
	ErrorMessage string                 `json:"errorMessage,omitempty"`
	StartedAt    *time.Time             `json:"startedAt,omitempty"`
	CompletedAt  *time.Time             `json:"completedAt,omitempty"`
}

func toToolCallResponse(tc *domain.ToolCall) ToolCallResponse {
	return ToolCallResponse{
		OK:           true,
		AIToolCallID: tc.ID.String(),
		ToolName:     tc.ToolName,
		Status:       string(tc.Status),
		Approval:     tc.Record.Approval,
		ErrorMessage: tc.ErrorMessage,
		StartedAt:    tc.StartedAt,
		CompletedAt:  tc.CompletedAt,
	}
}

// transitionInput binds the common transition request shape and assembles
// the service input. A nil result means the error response was written.
func (g *Gateway) transitionInput(c *okapi.Context, rawID string, tenant *domain.Tenant, userID string) (*assistant.TransitionInput, error) {
	if rawID == "" {
		return nil, c.AbortBadRequest("aiToolCallId is required")
	}
	id, err := uuid.Parse(rawID)
	if err != nil {
		return nil, c.AbortBadRequest("invalid aiToolCallId")
	}
	return &assistant.TransitionInput{
		TenantID:     tenant.ID,
		UserID:       userID,
		AIToolCallID: id,
	}, nil
}

func (g *Gateway) handleApprove(c *okapi.Context) error {
	userID := c.GetString("userID")
	if err := g.allow(c, userID); err != nil {
		return err
	}
	tenant, errResp := g.resolveTenant(c, userID)
	if tenant == nil {
		return errResp
	}

	var req ApproveRequest
	if err := c.Bind(&req); err != nil {
		return c.AbortBadRequest("invalid request body")
	}
	in, errResp := g.transitionInput(c, req.AIToolCallID, tenant, userID)
	if in == nil {
		return errResp
	}

	tc, err := g.service.Approve(c.Context(), *in, req.Comment)
	if err != nil {
		return g.transitionError(c, err)
	}
	return c.OK(toToolCallResponse(tc))
}

func (g *Gateway) handleReject(c *okapi.Context) error {
	userID := c.GetString("userID")
	if err := g.allow(c, userID); err != nil {
		return err
	}
	tenant, errResp := g.resolveTenant(c, userID)
	if tenant == nil {
		return errResp
	}

	var req RejectRequest
	if err := c.Bind(&req); err != nil {
		return c.AbortBadRequest("invalid request body")
	}
	in, errResp := g.transitionInput(c, req.AIToolCallID, tenant, userID)
	if in == nil {
		return errResp
	}

	tc, err := g.service.Reject(c.Context(), *in, req.Reason)
	if err != nil {
		return g.transitionError(c, err)
	}
	return c.OK(toToolCallResponse(tc))
}

// resultSummaryLimit bounds the formatted result echoed in the response;
// the full result stays in the persisted record.
const resultSummaryLimit = 200

// ExecuteResponse is the JSON response for POST /v1/assistant/execute.
type ExecuteResponse struct {
	OK            bool   `json:"ok"`
	AIToolCallID  string `json:"aiToolCallId"`
	Status        string `json:"status"`
	ToolName      string `json:"toolName"`
	ToolCallID    string `json:"toolCallId"`
	Success       bool   `json:"success"`
	DurationMs    int64  `json:"durationMs"`
	ResultSummary string `json:"resultSummary,omitempty"`
	ErrorMessage  string `json:"errorMessage,omitempty"`
}

func truncateSummary(s string) string {
	if len(s) <= resultSummaryLimit {
		return s
	}
	return s[:resultSummaryLimit] + "..."
}

func (g *Gateway) handleExecute(c *okapi.Context) error {
	userID := c.GetString("userID")
	if err := g.allow(c, userID); err != nil {
		return err
	}
	tenant, errResp := g.resolveTenant(c, userID)
	if tenant == nil {
		return errResp
	}

	var req ExecuteRequest
	if err := c.Bind(&req); err != nil {
		return c.AbortBadRequest("invalid request body")
	}
	in, errResp := g.transitionInput(c, req.AIToolCallID, tenant, userID)
	if in == nil {
		return errResp
	}

	isAdmin, err := g.tenants.IsAdmin(c.Context(), userID)
	if err != nil {
		g.logger.Error("admin lookup failed", slog.String("error", err.Error()))
		return c.AbortInternalServerError("admin lookup failed")
	}

	result, err := g.service.Execute(c.Context(), *in, isAdmin)
	if err != nil {
		return g.transitionError(c, err)
	}

	if m := g.config.Metrics; m != nil {
		status := "failed"
		if result.Success {
			status = "completed"
		}
		m.RecordToolExecution(result.ToolCall.ToolName, status, time.Duration(result.DurationMs)*time.Millisecond)
	}

	return c.OK(ExecuteResponse{
		OK:            true,
		AIToolCallID:  result.ToolCall.ID.String(),
		Status:        string(result.ToolCall.Status),
		ToolName:      result.ToolCall.ToolName,
		ToolCallID:    result.ToolCall.ToolCallID,
		Success:       result.Success,
		DurationMs:    result.DurationMs,
		ResultSummary: truncateSummary(result.Formatted),
		ErrorMessage:  result.ToolCall.ErrorMessage,
	})
}

// transitionError maps lifecycle errors to HTTP responses.
func (g *Gateway) transitionError(c *okapi.Context, err error) error {
	var conflict *assistant.ConflictError
	var mismatch *assistant.TenantMismatchError
	var forbidden *assistant.PolicyForbiddenError
	var unknown *assistant.UnknownToolError

	switch {
	case errors.Is(err, assistant.ErrToolCallNotFound):
		return c.JSON(http.StatusNotFound, ErrorBody{Error: "tool call not found"})
	case errors.As(err, &conflict):
		return c.JSON(http.StatusBadRequest, ErrorBody{
			Error:         conflict.Error(),
			Code:          conflict.Code,
			CurrentStatus: string(conflict.Current),
		})
	case errors.Is(err, assistant.ErrNoLongerPending):
		return c.JSON(http.StatusBadRequest, ErrorBody{Error: err.Error(), Code: "not_pending"})
	case errors.Is(err, assistant.ErrNotOwner):
		return c.JSON(http.StatusForbidden, ErrorBody{Error: "tool call does not belong to authenticated user"})
	case errors.As(err, &mismatch):
		return c.JSON(http.StatusForbidden, ErrorBody{Error: mismatch.Error()})
	case errors.Is(err, assistant.ErrMissingTenantContext):
		return c.JSON(http.StatusBadRequest, ErrorBody{Error: err.Error(), Code: "proposal_missing_tenant_context"})
	case errors.As(err, &forbidden):
		return c.JSON(http.StatusForbidden, ErrorBody{Error: forbidden.Error()})
	case errors.As(err, &unknown):
		return c.JSON(http.StatusBadRequest, ErrorBody{Error: unknown.Error()})
	case errors.Is(err, assistant.ErrReasonRequired):
		return c.AbortBadRequest(err.Error())
	default:
		g.logger.Error("tool call transition failed", slog.String("error", err.Error()))
		return c.AbortInternalServerError("tool call transition failed")
	}
}

// --- Company view ---

func (g *Gateway) handleCompanyView(c *okapi.Context) error {
	userID := c.GetString("userID")
	if err := g.allow(c, userID); err != nil {
		return err
	}
	tenant, errResp := g.resolveTenant(c, userID)
	if tenant == nil {
		return errResp
	}

	if g.aggregator == nil {
		return c.AbortServiceUnavailable("erp not configured")
	}

	snap, cached, err := g.aggregator.Fetch(c.Context(), tenant.ID.String())
	if err != nil {
		g.logger.Error("company view failed",
			slog.String("tenant_id", tenant.ID.String()),
			slog.String("error", err.Error()),
		)
		return c.AbortInternalServerError("company view failed")
	}

	header, label := "MISS", "miss"
	if cached {
		header, label = "HIT", "hit"
	}
	c.SetHeader("X-Cache", header)
	c.SetHeader("Cache-Control", "private, max-age=30")

	if m := g.config.Metrics; m != nil {
		m.RecordCompanyView(label)
	}

	return c.OK(snap)
}

// --- Monitoring ---

func (g *Gateway) handleSystemHealth(c *okapi.Context) error {
	userID := c.GetString("userID")
	if err := g.allow(c, userID); err != nil {
		return err
	}

	result := g.checker.Run(c.Context())
	if c.Request().URL.Query().Get("details") != "true" {
		result.StripDetails()
	}

	// Health responses must never be served stale.
	c.SetHeader("Cache-Control", "no-store")

	code := http.StatusOK
	if result.Status == monitoring.StatusUnhealthy {
		code = http.StatusServiceUnavailable
	}
	return c.JSON(code, result)
}

// HealthResponse is the JSON response for the liveness probe.
type HealthResponse struct {
	Status string `json:"status"`
}

// handleLiveness is the Kubernetes liveness probe.
func (g *Gateway) handleLiveness(c *okapi.Context) error {
	return c.OK(&HealthResponse{Status: "ok"})
}

// handleReadiness runs the dependency checks and returns 200 or 503.
func (g *Gateway) handleReadiness(c *okapi.Context) error {
	if g.checker == nil {
		return c.OK(&HealthResponse{Status: "ok"})
	}

	result := g.checker.Run(c.Context())
	result.StripDetails()
	code := http.StatusOK
	if result.Status == monitoring.StatusUnhealthy {
		code = http.StatusServiceUnavailable
	}
	return c.JSON(code, result)
}

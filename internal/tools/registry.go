// Package tools defines the assistant tool registry: a mapping from tool ID
// to handler, input schema, and risk metadata, consumed by both the proposal
// and execution stages of the tool-call lifecycle.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/jkaninda/aiom/internal/domain"
)

// ResultError is a structured handler failure.
type ResultError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Result is the outcome of a tool execution. Handler errors, panics, and
// timeouts are all converted into a failed Result — Execute never lets them
// propagate.
type Result struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   *ResultError    `json:"error,omitempty"`
}

// ExecContext carries caller identity into tool handlers.
type ExecContext struct {
	UserID   string
	TenantID string
	Channel  string
	IsAdmin  bool
}

// Handler executes a tool with decoded input.
type Handler func(ctx context.Context, input json.RawMessage, execCtx ExecContext) (*Result, error)

// Metadata carries tool annotations consumed by the policy layer.
type Metadata struct {
	AssistantRiskLevel string `json:"assistantRiskLevel,omitempty"`
}

// Definition describes one registered tool.
type Definition struct {
	ID          string
	Name        string
	Description string
	Version     string
	Category    string
	InputSchema map[string]any
	Metadata    Metadata
	Handler     Handler
}

// RiskLevel normalizes the tool's declared risk annotation. Missing or
// malformed annotations default to low with a warning — never silently
// escalated or denied.
func (d *Definition) RiskLevel() (domain.RiskLevel, string) {
	rl := domain.RiskLevel(d.Metadata.AssistantRiskLevel)
	if rl.Valid() {
		return rl, ""
	}
	return domain.RiskLow, "Tool metadata missing or invalid assistantRiskLevel, defaulting to 'low'"
}

// Execution is the outcome of Registry.Execute: the raw result plus a
// human-readable summary.
type Execution struct {
	Result    *Result
	Formatted string
}

// ErrNotRegistered is returned by Execute when the tool ID is unknown.
type ErrNotRegistered struct {
	ToolID string
}

func (e *ErrNotRegistered) Error() string {
	return fmt.Sprintf("tool '%s' not found in registry", e.ToolID)
}

// Registry holds available tools keyed by ID. Thread-safe.
// Constructed explicitly at bootstrap and injected — no global instance.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]*Definition
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]*Definition)}
}

// Register adds a tool. Re-registering an existing ID is a no-op.
func (r *Registry) Register(d *Definition) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[d.ID]; exists {
		return
	}
	r.tools[d.ID] = d
}

// Unregister removes a tool by ID.
func (r *Registry) Unregister(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tools, id)
}

// Get returns the tool by ID, or nil if not registered.
func (r *Registry) Get(id string) *Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tools[id]
}

// Has reports whether the tool ID is registered.
func (r *Registry) Has(id string) bool {
	return r.Get(id) != nil
}

// IDs returns all registered tool IDs.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.tools))
	for id := range r.tools {
		ids = append(ids, id)
	}
	return ids
}

// Execute runs the tool with the given input under the given timeout.
// Returns ErrNotRegistered for unknown IDs. Handler errors, panics, and
// timeouts never escape: they are converted into a failed Result.
func (r *Registry) Execute(ctx context.Context, id string, input json.RawMessage, execCtx ExecContext, timeout time.Duration) (*Execution, error) {
	d := r.Get(id)
	if d == nil {
		return nil, &ErrNotRegistered{ToolID: id}
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		result *Result
		err    error
	}
	done := make(chan outcome, 1)

	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				done <- outcome{err: fmt.Errorf("tool handler panic: %v", rec)}
			}
		}()
		res, err := d.Handler(ctx, input, execCtx)
		done <- outcome{result: res, err: err}
	}()

	select {
	case <-ctx.Done():
		return &Execution{
			Result: &Result{
				Success: false,
				Error: &ResultError{
					Code:    "TIMEOUT",
					Message: fmt.Sprintf("tool '%s' did not settle within %s", id, timeout),
				},
			},
			Formatted: "execution timed out",
		}, nil
	case out := <-done:
		if out.err != nil {
			return &Execution{
				Result: &Result{
					Success: false,
					Error:   &ResultError{Code: "EXECUTION_ERROR", Message: out.err.Error()},
				},
				Formatted: out.err.Error(),
			}, nil
		}
		if out.result == nil {
			out.result = &Result{
				Success: false,
				Error:   &ResultError{Code: "EMPTY_RESULT", Message: "tool returned no result"},
			}
		}
		return &Execution{Result: out.result, Formatted: formatResult(out.result)}, nil
	}
}

func formatResult(res *Result) string {
	if !res.Success {
		if res.Error != nil {
			return res.Error.Message
		}
		return "execution failed"
	}
	if len(res.Data) > 0 {
		return string(res.Data)
	}
	return "ok"
}

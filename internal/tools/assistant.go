package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jkaninda/aiom/internal/monitoring"
)

// Assistant tool IDs.
const (
	ToolCreateTask           = "assistant.create_task"
	ToolSummarizeInboxThread = "assistant.summarize_inbox_thread"
	ToolDraftEmail           = "assistant.draft_email"
	ToolCreateExpense        = "assistant.create_expense"
	ToolSystemHealthCheck    = "assistant.system_health_check"
)

// SystemHealthInput is the input shape for the system health check tool.
type SystemHealthInput struct {
	IncludeDetails bool `json:"includeDetails,omitempty"`
}

// notImplemented is the handler for tools whose execution backend is not
// wired yet. Proposals for them still flow through the full lifecycle; only
// execution reports a structured failure.
func notImplemented(_ context.Context, _ json.RawMessage, _ ExecContext) (*Result, error) {
	return &Result{
		Success: false,
		Error:   &ResultError{Code: "NOT_IMPLEMENTED", Message: "Tool execution not implemented yet"},
	}, nil
}

// RegisterAssistantTools registers the five assistant tools. Idempotent.
// The health checker backs the system_health_check tool's handler.
func RegisterAssistantTools(reg *Registry, checker *monitoring.Checker) {
	reg.Register(&Definition{
		ID:          ToolCreateTask,
		Name:        "Create Task",
		Description: "Create a new task in the task management system with title, description, priority, and optional due date",
		Version:     "1.0.0",
		Category:    "utility",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"title":       map[string]any{"type": "string", "description": "Task title"},
				"description": map[string]any{"type": "string", "description": "Detailed task description"},
				"priority":    map[string]any{"type": "string", "enum": []string{"low", "normal", "high"}, "description": "Task priority level"},
				"dueDate":     map[string]any{"type": "string", "description": "Due date in ISO 8601 format"},
			},
			"required": []string{"title"},
		},
		Metadata: Metadata{AssistantRiskLevel: "medium"},
		Handler:  notImplemented,
	})

	reg.Register(&Definition{
		ID:          ToolSummarizeInboxThread,
		Name:        "Summarize Inbox Thread",
		Description: "Generate a summary of an inbox conversation thread including key points and action items",
		Version:     "1.0.0",
		Category:    "communication",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"threadId":    map[string]any{"type": "string", "description": "Unique identifier of the thread to summarize"},
				"maxMessages": map[string]any{"type": "number", "description": "Maximum number of messages to include in summary"},
			},
			"required": []string{"threadId"},
		},
		Metadata: Metadata{AssistantRiskLevel: "low"},
		Handler:  notImplemented,
	})

	reg.Register(&Definition{
		ID:          ToolDraftEmail,
		Name:        "Draft Email",
		Description: "Generate a draft email based on recipient, subject, context, and desired tone",
		Version:     "1.0.0",
		Category:    "communication",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"to":      map[string]any{"type": "string", "description": "Email recipient address"},
				"subject": map[string]any{"type": "string", "description": "Email subject line"},
				"context": map[string]any{"type": "string", "description": "Context or main points to include in email"},
				"tone":    map[string]any{"type": "string", "enum": []string{"professional", "friendly", "formal"}, "description": "Desired tone of the email"},
			},
			"required": []string{"to", "subject", "context"},
		},
		Metadata: Metadata{AssistantRiskLevel: "low"},
		Handler:  notImplemented,
	})

	reg.Register(&Definition{
		ID:          ToolCreateExpense,
		Name:        "Create Expense",
		Description: "Record a new expense entry with amount, description, category, and date",
		Version:     "1.0.0",
		Category:    "data",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"amount":      map[string]any{"type": "number", "description": "Expense amount in local currency"},
				"description": map[string]any{"type": "string", "description": "Description of the expense"},
				"category":    map[string]any{"type": "string", "description": "Expense category (e.g., travel, meals, supplies)"},
				"date":        map[string]any{"type": "string", "description": "Expense date in ISO 8601 format"},
			},
			"required": []string{"amount", "description", "category"},
		},
		Metadata: Metadata{AssistantRiskLevel: "high"},
		Handler:  notImplemented,
	})

	reg.Register(&Definition{
		ID:          ToolSystemHealthCheck,
		Name:        "System Health Check",
		Description: "Check system health status including database connectivity, ERP availability, and resource usage",
		Version:     "1.0.0",
		Category:    "integration",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"includeDetails": map[string]any{"type": "boolean", "description": "Include detailed diagnostics in response"},
			},
		},
		Metadata: Metadata{AssistantRiskLevel: "low"},
		Handler:  systemHealthHandler(checker),
	})
}

func systemHealthHandler(checker *monitoring.Checker) Handler {
	return func(ctx context.Context, input json.RawMessage, _ ExecContext) (*Result, error) {
		if checker == nil {
			return &Result{
				Success: false,
				Error:   &ResultError{Code: "HEALTH_CHECK_FAILED", Message: "health checker not configured"},
			}, nil
		}

		var in SystemHealthInput
		if len(input) > 0 {
			if err := json.Unmarshal(input, &in); err != nil {
				return &Result{
					Success: false,
					Error:   &ResultError{Code: "INVALID_INPUT", Message: fmt.Sprintf("decoding input: %v", err)},
				}, nil
			}
		}

		result := checker.Run(ctx)
		if !in.IncludeDetails {
			result.StripDetails()
		}

		data, err := json.Marshal(result)
		if err != nil {
			return nil, fmt.Errorf("encoding health result: %w", err)
		}

		return &Result{Success: true, Data: data}, nil
	}
}

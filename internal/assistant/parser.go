// Package assistant implements the tool-call lifecycle: deterministic intent
// parsing, idempotent proposal creation, and the strict
// proposed → pending → running → completed/failed state machine with tenant
// isolation.
package assistant

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/jkaninda/aiom/internal/tools"
)

// Intent is a parsed command: the tool to call and its structured input.
type Intent struct {
	ToolID string
	Input  json.RawMessage
}

// Ordered patterns — first match wins. Case-insensitive, applied to the
// trimmed text. No LLM, no I/O.
var (
	createTaskPattern      = regexp.MustCompile(`(?i)^create task:\s*(.+)$`)
	summarizeThreadPattern = regexp.MustCompile(`(?i)^summarize thread:\s*(.+)$`)
	systemHealthPattern    = regexp.MustCompile(`(?i)^system health(\s+details)?$`)
	draftEmailPattern      = regexp.MustCompile(`(?i)^draft email to:\s*(\S+)\s+subject:\s*(.+?)\s+context:\s*(.+)$`)
)

type createTaskInput struct {
	Title string `json:"title"`
}

type summarizeThreadInput struct {
	ThreadID string `json:"threadId"`
}

type systemHealthInput struct {
	IncludeDetails bool `json:"includeDetails"`
}

type draftEmailInput struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Context string `json:"context"`
}

// ParseIntent maps free-text commands to tool invocations. Returns nil when
// no pattern matches — callers must treat that as a first-class non-error
// outcome, not a failure.
func ParseIntent(text string) *Intent {
	trimmed := strings.TrimSpace(text)

	if m := createTaskPattern.FindStringSubmatch(trimmed); m != nil {
		return intent(tools.ToolCreateTask, createTaskInput{Title: strings.TrimSpace(m[1])})
	}

	if m := summarizeThreadPattern.FindStringSubmatch(trimmed); m != nil {
		return intent(tools.ToolSummarizeInboxThread, summarizeThreadInput{ThreadID: strings.TrimSpace(m[1])})
	}

	if systemHealthPattern.MatchString(trimmed) {
		return intent(tools.ToolSystemHealthCheck, systemHealthInput{
			IncludeDetails: strings.Contains(strings.ToLower(trimmed), "details"),
		})
	}

	if m := draftEmailPattern.FindStringSubmatch(trimmed); m != nil {
		return intent(tools.ToolDraftEmail, draftEmailInput{
			To:      strings.TrimSpace(m[1]),
			Subject: strings.TrimSpace(m[2]),
			Context: strings.TrimSpace(m[3]),
		})
	}

	return nil
}

func intent(toolID string, input any) *Intent {
	// Marshaling a struct cannot fail here; field order is deterministic,
	// which the idempotency key derivation relies on.
	data, _ := json.Marshal(input)
	return &Intent{ToolID: toolID, Input: data}
}

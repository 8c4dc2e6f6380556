package assistant

import (
	"encoding/json"
	"testing"

	"github.com/jkaninda/aiom/internal/tools"
)

func decodeInput(t *testing.T, raw json.RawMessage) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		t.Fatalf("unmarshal input: %v", err)
	}
	return m
}

func TestParseIntentCreateTask(t *testing.T) {
	in := ParseIntent("create task: Follow up with vendor")
	if in == nil {
		t.Fatal("expected a match")
	}
	if in.ToolID != tools.ToolCreateTask {
		t.Errorf("tool = %q, want %q", in.ToolID, tools.ToolCreateTask)
	}
	got := decodeInput(t, in.Input)
	if got["title"] != "Follow up with vendor" {
		t.Errorf("title = %v", got["title"])
	}
}

func TestParseIntentCaseInsensitive(t *testing.T) {
	in := ParseIntent("CREATE TASK: call accountant")
	if in == nil || in.ToolID != tools.ToolCreateTask {
		t.Fatalf("expected create task match, got %+v", in)
	}
}

func TestParseIntentTrimsSurroundingWhitespace(t *testing.T) {
	in := ParseIntent("   create task: pay invoices  ")
	if in == nil {
		t.Fatal("expected a match")
	}
	got := decodeInput(t, in.Input)
	if got["title"] != "pay invoices" {
		t.Errorf("title = %v", got["title"])
	}
}

func TestParseIntentSummarizeThread(t *testing.T) {
	in := ParseIntent("summarize thread: 42")
	if in == nil {
		t.Fatal("expected a match")
	}
	if in.ToolID != tools.ToolSummarizeInboxThread {
		t.Errorf("tool = %q", in.ToolID)
	}
	got := decodeInput(t, in.Input)
	if got["threadId"] != "42" {
		t.Errorf("threadId = %v", got["threadId"])
	}
}

func TestParseIntentSystemHealth(t *testing.T) {
	in := ParseIntent("system health")
	if in == nil || in.ToolID != tools.ToolSystemHealthCheck {
		t.Fatalf("expected system health match, got %+v", in)
	}
	got := decodeInput(t, in.Input)
	if got["includeDetails"] != false {
		t.Errorf("includeDetails = %v, want false", got["includeDetails"])
	}

	in = ParseIntent("system health details")
	if in == nil {
		t.Fatal("expected a match with details")
	}
	got = decodeInput(t, in.Input)
	if got["includeDetails"] != true {
		t.Errorf("includeDetails = %v, want true", got["includeDetails"])
	}
}

func TestParseIntentDraftEmail(t *testing.T) {
	in := ParseIntent("draft email to: ana@example.com subject: Q3 review context: numbers look good")
	if in == nil {
		t.Fatal("expected a match")
	}
	if in.ToolID != tools.ToolDraftEmail {
		t.Errorf("tool = %q", in.ToolID)
	}
	got := decodeInput(t, in.Input)
	if got["to"] != "ana@example.com" {
		t.Errorf("to = %v", got["to"])
	}
	if got["subject"] != "Q3 review" {
		t.Errorf("subject = %v", got["subject"])
	}
	if got["context"] != "numbers look good" {
		t.Errorf("context = %v", got["context"])
	}
}

func TestParseIntentNoMatch(t *testing.T) {
	for _, text := range []string{
		"",
		"hello there",
		"create task", // missing colon
		"system health please",
		"draft email to: a@b.c subject: hi", // missing context
	} {
		if in := ParseIntent(text); in != nil {
			t.Errorf("ParseIntent(%q) = %+v, want nil", text, in)
		}
	}
}

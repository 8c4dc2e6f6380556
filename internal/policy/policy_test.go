package policy

import (
	"strings"
	"testing"

	"github.com/jkaninda/aiom/internal/domain"
)

var recognizedToolIDs = []string{
	"assistant.create_task",
	"assistant.summarize_inbox_thread",
	"assistant.draft_email",
	"assistant.create_expense",
	"assistant.system_health_check",
}

func TestEvaluate_UnrecognizedTool(t *testing.T) {
	e := NewEngine(recognizedToolIDs)
	res := e.Evaluate(Input{ToolID: "assistant.delete_everything", RiskLevel: domain.RiskLow})
	if res.Decision != domain.DecisionDeny {
		t.Fatalf("decision = %s, want deny", res.Decision)
	}
	if !strings.Contains(res.Reason, "assistant.delete_everything") {
		t.Errorf("reason should name the unrecognized tool ID, got %q", res.Reason)
	}
}

func TestEvaluate_LowRiskAllowed(t *testing.T) {
	e := NewEngine(recognizedToolIDs)
	res := e.Evaluate(Input{ToolID: "assistant.draft_email", RiskLevel: domain.RiskLow})
	if res.Decision != domain.DecisionAllow {
		t.Fatalf("decision = %s, want allow", res.Decision)
	}
}

func TestEvaluate_MediumRiskRequiresApproval(t *testing.T) {
	e := NewEngine(recognizedToolIDs)
	res := e.Evaluate(Input{ToolID: "assistant.create_task", RiskLevel: domain.RiskMedium})
	if res.Decision != domain.DecisionRequiresApproval {
		t.Fatalf("decision = %s, want requires_approval", res.Decision)
	}
	if !strings.Contains(res.Reason, "Medium") {
		t.Errorf("reason should name the risk tier, got %q", res.Reason)
	}
}

func TestEvaluate_HighRiskRequiresApproval(t *testing.T) {
	e := NewEngine(recognizedToolIDs)
	res := e.Evaluate(Input{ToolID: "assistant.create_expense", RiskLevel: domain.RiskHigh})
	if res.Decision != domain.DecisionRequiresApproval {
		t.Fatalf("decision = %s, want requires_approval", res.Decision)
	}
	if !strings.Contains(res.Reason, "High") {
		t.Errorf("reason should name the risk tier, got %q", res.Reason)
	}
}

func TestEvaluate_InvalidRiskLevelDenied(t *testing.T) {
	e := NewEngine(recognizedToolIDs)
	res := e.Evaluate(Input{ToolID: "assistant.create_task", RiskLevel: "critical"})
	if res.Decision != domain.DecisionDeny {
		t.Fatalf("decision = %s, want deny", res.Decision)
	}
}

package tools

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/jkaninda/aiom/internal/domain"
)

func okHandler(_ context.Context, _ json.RawMessage, _ ExecContext) (*Result, error) {
	return &Result{Success: true, Data: json.RawMessage(`{"done":true}`)}, nil
}

func TestRegister_Idempotent(t *testing.T) {
	reg := NewRegistry()
	reg.Register(&Definition{ID: "t1", Name: "first", Handler: okHandler})
	reg.Register(&Definition{ID: "t1", Name: "second", Handler: okHandler})

	d := reg.Get("t1")
	if d == nil {
		t.Fatal("tool not registered")
	}
	if d.Name != "first" {
		t.Errorf("re-registration should be a no-op, got name %q", d.Name)
	}
}

func TestUnregister(t *testing.T) {
	reg := NewRegistry()
	reg.Register(&Definition{ID: "t1", Handler: okHandler})
	reg.Unregister("t1")
	if reg.Has("t1") {
		t.Fatal("tool should be unregistered")
	}
}

func TestExecute_UnknownTool(t *testing.T) {
	reg := NewRegistry()
	_, err := reg.Execute(context.Background(), "missing", nil, ExecContext{}, time.Second)
	var notReg *ErrNotRegistered
	if !errors.As(err, &notReg) {
		t.Fatalf("expected ErrNotRegistered, got %v", err)
	}
	if notReg.ToolID != "missing" {
		t.Errorf("ToolID = %q, want %q", notReg.ToolID, "missing")
	}
}

func TestExecute_Success(t *testing.T) {
	reg := NewRegistry()
	reg.Register(&Definition{ID: "t1", Handler: okHandler})

	exec, err := reg.Execute(context.Background(), "t1", nil, ExecContext{UserID: "u1"}, time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !exec.Result.Success {
		t.Fatal("result should be successful")
	}
}

func TestExecute_HandlerErrorConverted(t *testing.T) {
	reg := NewRegistry()
	reg.Register(&Definition{ID: "t1", Handler: func(context.Context, json.RawMessage, ExecContext) (*Result, error) {
		return nil, errors.New("backend unavailable")
	}})

	exec, err := reg.Execute(context.Background(), "t1", nil, ExecContext{}, time.Second)
	if err != nil {
		t.Fatalf("handler errors must not propagate, got %v", err)
	}
	if exec.Result.Success {
		t.Fatal("result should be a failure")
	}
	if exec.Result.Error == nil || exec.Result.Error.Code != "EXECUTION_ERROR" {
		t.Errorf("error = %+v, want EXECUTION_ERROR", exec.Result.Error)
	}
}

func TestExecute_PanicConverted(t *testing.T) {
	reg := NewRegistry()
	reg.Register(&Definition{ID: "t1", Handler: func(context.Context, json.RawMessage, ExecContext) (*Result, error) {
		panic("boom")
	}})

	exec, err := reg.Execute(context.Background(), "t1", nil, ExecContext{}, time.Second)
	if err != nil {
		t.Fatalf("panics must not propagate, got %v", err)
	}
	if exec.Result.Success {
		t.Fatal("result should be a failure")
	}
}

func TestExecute_Timeout(t *testing.T) {
	reg := NewRegistry()
	reg.Register(&Definition{ID: "slow", Handler: func(ctx context.Context, _ json.RawMessage, _ ExecContext) (*Result, error) {
		<-ctx.Done()
		time.Sleep(50 * time.Millisecond)
		return &Result{Success: true}, nil
	}})

	exec, err := reg.Execute(context.Background(), "slow", nil, ExecContext{}, 20*time.Millisecond)
	if err != nil {
		t.Fatalf("timeouts must not propagate, got %v", err)
	}
	if exec.Result.Success {
		t.Fatal("result should be a failure")
	}
	if exec.Result.Error.Code != "TIMEOUT" {
		t.Errorf("error code = %q, want TIMEOUT", exec.Result.Error.Code)
	}
}

func TestRiskLevel_Normalization(t *testing.T) {
	d := &Definition{Metadata: Metadata{AssistantRiskLevel: "high"}}
	rl, warning := d.RiskLevel()
	if rl != domain.RiskHigh || warning != "" {
		t.Errorf("got (%s, %q), want (high, no warning)", rl, warning)
	}

	d = &Definition{Metadata: Metadata{AssistantRiskLevel: "extreme"}}
	rl, warning = d.RiskLevel()
	if rl != domain.RiskLow {
		t.Errorf("malformed risk must default to low, got %s", rl)
	}
	if warning == "" {
		t.Error("malformed risk must attach a warning")
	}

	d = &Definition{}
	rl, warning = d.RiskLevel()
	if rl != domain.RiskLow || warning == "" {
		t.Errorf("missing risk must default to low with warning, got (%s, %q)", rl, warning)
	}
}

func TestRegisterAssistantTools(t *testing.T) {
	reg := NewRegistry()
	RegisterAssistantTools(reg, nil)
	RegisterAssistantTools(reg, nil) // Idempotent.

	want := []string{ToolCreateTask, ToolSummarizeInboxThread, ToolDraftEmail, ToolCreateExpense, ToolSystemHealthCheck}
	for _, id := range want {
		if !reg.Has(id) {
			t.Errorf("tool %s not registered", id)
		}
	}
	if len(reg.IDs()) != len(want) {
		t.Errorf("registered %d tools, want %d", len(reg.IDs()), len(want))
	}
}

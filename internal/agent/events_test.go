package agent

import (
	"strings"
	"testing"
)

func TestDecodeStatusEvent(t *testing.T) {
	ev, err := DecodeEvent([]byte(`{"type":"status","step":"cloning","message":"go"}`))
	if err != nil {
		t.Fatalf("DecodeEvent() error = %v", err)
	}
	status, ok := ev.(StatusEvent)
	if !ok {
		t.Fatalf("expected StatusEvent, got %T", ev)
	}
	if status.Step != StepCloning {
		t.Errorf("step = %q, want %q", status.Step, StepCloning)
	}
	if status.Message != "go" {
		t.Errorf("message = %q, want %q", status.Message, "go")
	}
}

func TestDecodeSolutionEvent(t *testing.T) {
	payload := `{"type":"solution","session_id":"abc","data":{
		"summary":"null deref in handler",
		"affected_files":["src/handler.ts"],
		"suggested_fix":"guard the body",
		"commit_message":"fix: guard body",
		"extra_field":"ignored"}}`

	ev, err := DecodeEvent([]byte(payload))
	if err != nil {
		t.Fatalf("DecodeEvent() error = %v", err)
	}
	sol, ok := ev.(SolutionEvent)
	if !ok {
		t.Fatalf("expected SolutionEvent, got %T", ev)
	}
	if sol.SessionID != "abc" {
		t.Errorf("session = %q, want abc", sol.SessionID)
	}
	if sol.Data.Summary != "null deref in handler" {
		t.Errorf("summary = %q", sol.Data.Summary)
	}
	if len(sol.Data.AffectedFiles) != 1 || sol.Data.AffectedFiles[0] != "src/handler.ts" {
		t.Errorf("affected files = %v", sol.Data.AffectedFiles)
	}
}

func TestDecodeToolEvent(t *testing.T) {
	ev, err := DecodeEvent([]byte(`{"type":"tool","tool_name":"read_file","tool_input":{"path":"a.go"},"tool_result":"ok"}`))
	if err != nil {
		t.Fatalf("DecodeEvent() error = %v", err)
	}
	tool := ev.(ToolEvent)
	if tool.Name != "read_file" || tool.Result != "ok" {
		t.Errorf("got tool %+v", tool)
	}
}

func TestDecodeResultEvent(t *testing.T) {
	ev, err := DecodeEvent([]byte(`{"type":"result","branch":"fix-1","branch_url":"u1","pr_url":"u2","diff":"d"}`))
	if err != nil {
		t.Fatalf("DecodeEvent() error = %v", err)
	}
	res := ev.(ResultEvent)
	if res.Branch != "fix-1" || res.PRURL != "u2" {
		t.Errorf("got result %+v", res)
	}
}

func TestDecodeDoneAndError(t *testing.T) {
	if ev, err := DecodeEvent([]byte(`{"type":"done"}`)); err != nil {
		t.Errorf("done decode error: %v", err)
	} else if _, ok := ev.(DoneEvent); !ok {
		t.Errorf("expected DoneEvent, got %T", ev)
	}

	ev, err := DecodeEvent([]byte(`{"type":"error","message":"boom"}`))
	if err != nil {
		t.Fatalf("error decode error: %v", err)
	}
	if ev.(ErrorEvent).Message != "boom" {
		t.Errorf("got %+v", ev)
	}
}

func TestDecodeRejectsBadPayloads(t *testing.T) {
	cases := []struct {
		name    string
		payload string
		wantErr string
	}{
		{"invalid json", `{"type":`, "malformed"},
		{"unknown type", `{"type":"telemetry"}`, "unknown event type"},
		{"missing type", `{"step":"cloning"}`, "missing type"},
		{"status without step", `{"type":"status","message":"x"}`, "missing step"},
		{"tool without name", `{"type":"tool","tool_input":{}}`, "missing tool_name"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := DecodeEvent([]byte(tc.payload))
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("error %q does not contain %q", err, tc.wantErr)
			}
		})
	}
}

func TestIsTerminal(t *testing.T) {
	if !IsTerminal(DoneEvent{}) || !IsTerminal(ErrorEvent{Message: "x"}) {
		t.Error("done and error must be terminal")
	}
	if IsTerminal(StatusEvent{Step: StepDone}) {
		t.Error("a status event is never terminal, even at step done")
	}
}

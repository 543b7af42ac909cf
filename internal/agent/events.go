package agent

import (
	"encoding/json"
	"fmt"
)

// Step identifies where the agent is in its pipeline. Values arrive on
// status events and drive progress display only.
type Step string

const (
	StepCloning      Step = "cloning"
	StepAnalyzing    Step = "analyzing"
	StepProposing    Step = "proposing"
	StepImplementing Step = "implementing"
	StepPushing      Step = "pushing"
	StepDone         Step = "done"
	StepError        Step = "error"
)

// Event is one decoded agent stream event. The set is closed: every
// implementation lives in this package.
type Event interface {
	eventType() string
}

// StatusEvent reports progress through the agent pipeline.
type StatusEvent struct {
	Step    Step   `json:"step"`
	Message string `json:"message"`
}

// ThinkingEvent carries a fragment of the agent's reasoning.
type ThinkingEvent struct {
	Content string `json:"content"`
}

// ToolEvent records one tool invocation by the agent. Result is empty
// while the tool is still running.
type ToolEvent struct {
	Name   string          `json:"tool_name"`
	Input  json.RawMessage `json:"tool_input"`
	Result string          `json:"tool_result,omitempty"`
}

// Solution is the structured analysis the agent proposes. Unknown fields
// in the payload are tolerated and ignored.
type Solution struct {
	Summary           string   `json:"summary"`
	RootCauseAnalysis string   `json:"root_cause_analysis,omitempty"`
	AffectedFiles     []string `json:"affected_files,omitempty"`
	SuggestedFix      string   `json:"suggested_fix,omitempty"`
	CommitMessage     string   `json:"commit_message,omitempty"`
}

// SolutionEvent delivers the proposed solution together with the session
// ID required by the implement endpoint. SessionID may be empty if the
// server failed to persist the session; implementation is then impossible.
type SolutionEvent struct {
	SessionID string   `json:"session_id"`
	Data      Solution `json:"data"`
}

// DiffEvent carries the git diff produced during implementation.
type DiffEvent struct {
	Data string `json:"data"`
}

// ResultEvent is the terminal payload of a successful implementation.
type ResultEvent struct {
	Branch    string `json:"branch"`
	BranchURL string `json:"branch_url"`
	PRURL     string `json:"pr_url"`
	Diff      string `json:"diff"`
}

// ErrorEvent reports a failure inside the agent.
type ErrorEvent struct {
	Message string `json:"message"`
}

// DoneEvent signals that the stream is finished.
type DoneEvent struct{}

func (StatusEvent) eventType() string   { return "status" }
func (ThinkingEvent) eventType() string { return "thinking" }
func (ToolEvent) eventType() string     { return "tool" }
func (SolutionEvent) eventType() string { return "solution" }
func (DiffEvent) eventType() string     { return "diff" }
func (ResultEvent) eventType() string   { return "result" }
func (ErrorEvent) eventType() string    { return "error" }
func (DoneEvent) eventType() string     { return "done" }

// envelope extracts the discriminator before the full decode.
type envelope struct {
	Type string `json:"type"`
}

// DecodeEvent parses one frame payload into its typed event. The
// payload's own type field is authoritative; the frame's event: line is
// ignored here because the server duplicates it into every payload.
func DecodeEvent(payload []byte) (Event, error) {
	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, fmt.Errorf("malformed event payload: %w", err)
	}

	switch env.Type {
	case "status":
		var ev StatusEvent
		if err := json.Unmarshal(payload, &ev); err != nil {
			return nil, fmt.Errorf("malformed status event: %w", err)
		}
		if ev.Step == "" {
			return nil, fmt.Errorf("status event missing step")
		}
		return ev, nil
	case "thinking":
		var ev ThinkingEvent
		if err := json.Unmarshal(payload, &ev); err != nil {
			return nil, fmt.Errorf("malformed thinking event: %w", err)
		}
		return ev, nil
	case "tool":
		var ev ToolEvent
		if err := json.Unmarshal(payload, &ev); err != nil {
			return nil, fmt.Errorf("malformed tool event: %w", err)
		}
		if ev.Name == "" {
			return nil, fmt.Errorf("tool event missing tool_name")
		}
		return ev, nil
	case "solution":
		var ev SolutionEvent
		if err := json.Unmarshal(payload, &ev); err != nil {
			return nil, fmt.Errorf("malformed solution event: %w", err)
		}
		return ev, nil
	case "diff":
		var ev DiffEvent
		if err := json.Unmarshal(payload, &ev); err != nil {
			return nil, fmt.Errorf("malformed diff event: %w", err)
		}
		return ev, nil
	case "result":
		var ev ResultEvent
		if err := json.Unmarshal(payload, &ev); err != nil {
			return nil, fmt.Errorf("malformed result event: %w", err)
		}
		return ev, nil
	case "error":
		var ev ErrorEvent
		if err := json.Unmarshal(payload, &ev); err != nil {
			return nil, fmt.Errorf("malformed error event: %w", err)
		}
		return ev, nil
	case "done":
		return DoneEvent{}, nil
	case "":
		return nil, fmt.Errorf("event payload missing type field")
	default:
		return nil, fmt.Errorf("unknown event type %q", env.Type)
	}
}

// IsTerminal reports whether ev is the last meaningful event of an
// exchange. The stream may still carry frames after it (the server sends
// done after error); callers typically stop reacting once this is true.
func IsTerminal(ev Event) bool {
	switch ev.(type) {
	case DoneEvent, ErrorEvent:
		return true
	}
	return false
}

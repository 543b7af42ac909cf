// Package workflow drives the analyze/implement flow for one issue: it
// opens the two streamed exchanges, folds their events into a single
// phase plus side-state, and hands callers consistent snapshots for
// display.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/contribmatch/agentstream/internal/agent"
)

// Phase is the workflow's high-level state.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseAnalyzing
	PhaseAnalyzed
	PhaseImplementing
	PhaseCompleted
	PhaseError
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseAnalyzing:
		return "analyzing"
	case PhaseAnalyzed:
		return "analyzed"
	case PhaseImplementing:
		return "implementing"
	case PhaseCompleted:
		return "completed"
	case PhaseError:
		return "error"
	}
	return "unknown"
}

// LogKind classifies a log entry for display.
type LogKind string

const (
	LogStatus   LogKind = "status"
	LogThinking LogKind = "thinking"
	LogTool     LogKind = "tool"
	LogDiff     LogKind = "diff"
	LogError    LogKind = "error"
)

// LogEntry is one observed event, recorded for display. Entries are
// append-only and never mutated.
type LogEntry struct {
	Kind    LogKind
	Message string
	At      time.Time
}

// Streamer opens agent exchanges. *agent.Client satisfies it.
type Streamer interface {
	Analyze(ctx context.Context, req *agent.AnalyzeRequest, onEvent agent.EventFunc, onError agent.ErrorFunc) (agent.CancelFunc, error)
	Implement(ctx context.Context, req *agent.ImplementRequest, onEvent agent.EventFunc, onError agent.ErrorFunc) (agent.CancelFunc, error)
}

var (
	// ErrExchangeActive is returned when a start is attempted while a
	// stream is still open.
	ErrExchangeActive = errors.New("an exchange is already in progress")

	// ErrInvalidPhase is returned when a trigger is not legal in the
	// current phase.
	ErrInvalidPhase = errors.New("operation not valid in current phase")
)

// AnalyzeInput identifies the issue to analyze.
type AnalyzeInput struct {
	RepoURL     string
	IssueTitle  string
	IssueBody   string
	IssueNumber int
}

// ImplementInput carries what the implement exchange needs beyond the
// captured session.
type ImplementInput struct {
	BranchName    string
	GitHubToken   string
	CommitMessage string
}

// Workflow is created once per issue and folds stream events into
// caller-visible state. All event handling happens on the exchange's
// dispatch goroutine; the mutex only makes snapshots safe to take from
// other goroutines.
type Workflow struct {
	streamer Streamer

	mu        sync.Mutex
	phase     Phase
	step      agent.Step
	progress  int
	log       []LogEntry
	solution  *agent.SolutionEvent
	result    *agent.ResultEvent
	sessionID string
	lastErr   string
	active    bool
	cancel    agent.CancelFunc
}

// New creates an idle workflow backed by the given streamer.
func New(streamer Streamer) *Workflow {
	return &Workflow{streamer: streamer}
}

// StartAnalysis validates the input locally and opens the analyze
// exchange. Legal from Idle, or from Error as an explicit retry; a retry
// resets all state from the failed attempt.
func (w *Workflow) StartAnalysis(ctx context.Context, in AnalyzeInput) error {
	if in.RepoURL == "" {
		return fmt.Errorf("repository URL is required")
	}
	if in.IssueTitle == "" {
		return fmt.Errorf("issue title is required")
	}
	if in.IssueNumber <= 0 {
		return fmt.Errorf("issue number is required")
	}

	w.mu.Lock()
	if w.active {
		w.mu.Unlock()
		return ErrExchangeActive
	}
	if w.phase != PhaseIdle && w.phase != PhaseError {
		w.mu.Unlock()
		return fmt.Errorf("%w: cannot start analysis from %s", ErrInvalidPhase, w.phase)
	}

	w.phase = PhaseAnalyzing
	w.step = ""
	w.progress = 0
	w.log = nil
	w.solution = nil
	w.result = nil
	w.sessionID = ""
	w.lastErr = ""
	w.active = true
	w.mu.Unlock()

	req := &agent.AnalyzeRequest{
		RepoURL:     in.RepoURL,
		IssueTitle:  in.IssueTitle,
		IssueBody:   in.IssueBody,
		IssueNumber: in.IssueNumber,
	}
	cancel, err := w.streamer.Analyze(ctx, req, w.onEvent, w.onStreamError)
	if err != nil {
		w.mu.Lock()
		w.phase = PhaseError
		w.lastErr = err.Error()
		w.active = false
		w.mu.Unlock()
		return err
	}

	w.mu.Lock()
	w.cancel = cancel
	w.mu.Unlock()
	return nil
}

// StartImplementation opens the implement exchange for the captured
// session. Legal only once the analysis has produced a solution.
func (w *Workflow) StartImplementation(ctx context.Context, in ImplementInput) error {
	if in.BranchName == "" {
		return fmt.Errorf("branch name is required")
	}
	if in.GitHubToken == "" {
		return fmt.Errorf("github token is required")
	}

	w.mu.Lock()
	if w.phase != PhaseAnalyzed {
		w.mu.Unlock()
		return fmt.Errorf("%w: cannot start implementation from %s", ErrInvalidPhase, w.phase)
	}
	if w.sessionID == "" {
		w.mu.Unlock()
		return fmt.Errorf("no session captured from analysis")
	}
	// The analyze stream may still be draining its trailing done frame;
	// close it before opening the second exchange.
	if w.cancel != nil {
		w.cancel()
		w.cancel = nil
	}

	sessionID := w.sessionID
	w.phase = PhaseImplementing
	w.active = true
	w.mu.Unlock()

	req := &agent.ImplementRequest{
		SessionID:     sessionID,
		BranchName:    in.BranchName,
		GitHubToken:   in.GitHubToken,
		CommitMessage: in.CommitMessage,
	}
	cancel, err := w.streamer.Implement(ctx, req, w.onEvent, w.onStreamError)
	if err != nil {
		w.mu.Lock()
		w.phase = PhaseError
		w.lastErr = err.Error()
		w.active = false
		w.mu.Unlock()
		return err
	}

	w.mu.Lock()
	w.cancel = cancel
	w.mu.Unlock()
	return nil
}

// Cancel aborts whatever exchange is in flight. Safe to call at any
// time, including twice or after completion.
func (w *Workflow) Cancel() {
	w.mu.Lock()
	cancel := w.cancel
	w.cancel = nil
	w.active = false
	w.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (w *Workflow) onEvent(ev agent.Event) {
	w.mu.Lock()
	defer w.mu.Unlock()

	switch ev := ev.(type) {
	case agent.StatusEvent:
		w.step = ev.Step
		if pct, ok := progressFor(ev.Step); ok {
			w.progress = pct
		}
		w.append(LogStatus, ev.Message)
	case agent.ThinkingEvent:
		w.append(LogThinking, ev.Content)
	case agent.ToolEvent:
		msg := ev.Name
		if ev.Result != "" {
			msg = fmt.Sprintf("%s: %s", ev.Name, ev.Result)
		}
		w.append(LogTool, msg)
	case agent.SolutionEvent:
		if w.phase == PhaseAnalyzing {
			w.solution = &ev
			w.sessionID = ev.SessionID
			w.phase = PhaseAnalyzed
		}
	case agent.DiffEvent:
		w.append(LogDiff, ev.Data)
	case agent.ResultEvent:
		if w.phase == PhaseImplementing {
			w.result = &ev
			w.phase = PhaseCompleted
		}
	case agent.ErrorEvent:
		if w.phase == PhaseAnalyzing || w.phase == PhaseImplementing {
			w.phase = PhaseError
			w.lastErr = ev.Message
			w.append(LogError, ev.Message)
		}
		w.active = false
	case agent.DoneEvent:
		w.active = false
		w.cancel = nil
	}
}

// onStreamError handles transport failures. It only moves the phase when
// a stream was actually mid-flight: a read failure after the solution has
// already been captured does not undo the analysis.
func (w *Workflow) onStreamError(err error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.active = false
	w.cancel = nil
	if w.phase == PhaseAnalyzing || w.phase == PhaseImplementing {
		w.phase = PhaseError
		w.lastErr = err.Error()
		w.append(LogError, err.Error())
	}
}

func (w *Workflow) append(kind LogKind, message string) {
	w.log = append(w.log, LogEntry{Kind: kind, Message: message, At: time.Now()})
}

// Snapshot is a consistent copy of the workflow's visible state.
type Snapshot struct {
	Phase     Phase
	Step      agent.Step
	Progress  int
	Log       []LogEntry
	Solution  *agent.SolutionEvent
	Result    *agent.ResultEvent
	SessionID string
	LastError string
}

// Snapshot returns the current state. The returned log slice is a copy;
// callers may hold it across further events.
func (w *Workflow) Snapshot() Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()

	logCopy := make([]LogEntry, len(w.log))
	copy(logCopy, w.log)

	return Snapshot{
		Phase:     w.phase,
		Step:      w.step,
		Progress:  w.progress,
		Log:       logCopy,
		Solution:  w.solution,
		Result:    w.result,
		SessionID: w.sessionID,
		LastError: w.lastErr,
	}
}

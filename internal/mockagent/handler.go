package mockagent

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type analyzeRequest struct {
	RepoURL     string `json:"repo_url"`
	IssueTitle  string `json:"issue_title"`
	IssueBody   string `json:"issue_body"`
	IssueNumber int    `json:"issue_number"`
}

type implementRequest struct {
	SessionID     string `json:"session_id"`
	BranchName    string `json:"branch_name"`
	GitHubToken   string `json:"github_token"`
	CommitMessage string `json:"commit_message,omitempty"`
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.RepoURL == "" || req.IssueTitle == "" {
		http.Error(w, "repo_url and issue_title are required", http.StatusUnprocessableEntity)
		return
	}

	sessionID := uuid.New().String()
	summary := fmt.Sprintf("Likely root cause of issue #%d identified in request handling.", req.IssueNumber)

	s.mu.Lock()
	s.sessions[sessionID] = &session{
		RepoURL:     req.RepoURL,
		IssueNumber: req.IssueNumber,
		IssueTitle:  req.IssueTitle,
		Summary:     summary,
		Status:      "pending",
		CreatedAt:   time.Now().UTC(),
	}
	s.mu.Unlock()

	st := newStream(w)
	st.send("status", map[string]any{"type": "status", "step": "cloning", "message": "Cloning repository..."})
	st.send("status", map[string]any{"type": "status", "step": "analyzing", "message": "Exploring the codebase..."})
	st.sendDelayed(s.eventDelay, "thinking", map[string]any{"type": "thinking", "content": "The stack trace points at the request handler; reading it first."})
	st.sendDelayed(s.eventDelay, "tool", map[string]any{
		"type": "tool", "tool_name": "read_file",
		"tool_input":  map[string]any{"path": "src/handler.ts"},
		"tool_result": "export async function handle(req) { ... }",
	})
	st.sendDelayed(s.eventDelay, "status", map[string]any{"type": "status", "step": "proposing", "message": "Drafting a solution..."})
	st.sendDelayed(s.eventDelay, "solution", map[string]any{
		"type":       "solution",
		"session_id": sessionID,
		"data": map[string]any{
			"summary":        summary,
			"affected_files": []string{"src/handler.ts"},
			"suggested_fix":  "Guard against a missing request body before dereferencing it.",
			"commit_message": fmt.Sprintf("fix: handle empty body for issue #%d", req.IssueNumber),
		},
	})
	st.send("status", map[string]any{"type": "status", "step": "done", "message": "Analysis complete"})
	st.send("done", map[string]any{"type": "done"})

	if st.err != nil {
		s.logger.Warn("analyze stream aborted", slog.String("error", st.err.Error()))
	}
}

func (s *Server) handleImplement(w http.ResponseWriter, r *http.Request) {
	var req implementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	sess, ok := s.sessions[req.SessionID]
	if ok {
		sess.Status = "implementing"
	}
	s.mu.Unlock()
	if !ok {
		http.Error(w, "Session not found", http.StatusNotFound)
		return
	}
	if req.BranchName == "" || req.GitHubToken == "" {
		http.Error(w, "branch_name and github_token are required", http.StatusUnprocessableEntity)
		return
	}

	diff := "--- a/src/handler.ts\n+++ b/src/handler.ts\n@@ -1,3 +1,6 @@\n+if (!req.body) {\n+  return badRequest()\n+}\n"
	branchURL := fmt.Sprintf("%s/tree/%s", sess.RepoURL, req.BranchName)
	prURL := fmt.Sprintf("%s/compare/%s?expand=1", sess.RepoURL, req.BranchName)

	st := newStream(w)
	st.send("status", map[string]any{"type": "status", "step": "cloning", "message": "Cloning repository..."})
	st.sendDelayed(s.eventDelay, "status", map[string]any{"type": "status", "step": "implementing", "message": "Applying code changes..."})
	st.sendDelayed(s.eventDelay, "diff", map[string]any{"type": "diff", "data": diff})
	st.sendDelayed(s.eventDelay, "status", map[string]any{"type": "status", "step": "pushing", "message": "Pushing branch..."})
	st.sendDelayed(s.eventDelay, "result", map[string]any{
		"type":       "result",
		"branch":     req.BranchName,
		"branch_url": branchURL,
		"pr_url":     prURL,
		"diff":       diff,
	})
	st.send("status", map[string]any{"type": "status", "step": "done", "message": "Implementation complete"})
	st.send("done", map[string]any{"type": "done"})

	s.mu.Lock()
	sess.Status = "completed"
	s.mu.Unlock()

	if st.err != nil {
		s.logger.Warn("implement stream aborted", slog.String("error", st.err.Error()))
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	active := len(s.sessions)
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"status": "healthy",
		"checks": map[string]bool{
			"openrouter_configured": true,
			"e2b_configured":        true,
		},
		"active_sessions": active,
	})
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	out := make([]map[string]any, 0, len(s.sessions))
	for id, sess := range s.sessions {
		out = append(out, sessionJSON(id, sess))
	}
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")

	s.mu.Lock()
	sess, ok := s.sessions[id]
	s.mu.Unlock()
	if !ok {
		http.Error(w, "Session not found", http.StatusNotFound)
		return
	}

	writeJSON(w, http.StatusOK, sessionJSON(id, sess))
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")

	s.mu.Lock()
	_, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()
	if !ok {
		http.Error(w, "Session not found", http.StatusNotFound)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Session deleted successfully"})
}

func sessionJSON(id string, sess *session) map[string]any {
	return map[string]any{
		"session_id":       id,
		"repo_url":         sess.RepoURL,
		"issue_number":     sess.IssueNumber,
		"issue_title":      sess.IssueTitle,
		"created_at":       sess.CreatedAt.Format(time.RFC3339),
		"expires_at":       sess.CreatedAt.Add(time.Hour).Format(time.RFC3339),
		"status":           sess.Status,
		"solution_summary": sess.Summary,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// stream writes SSE frames with a flush after each one. The first send
// sets the streaming headers; errors stick and later sends become no-ops.
type stream struct {
	w       http.ResponseWriter
	flusher http.Flusher
	started bool
	err     error
}

func newStream(w http.ResponseWriter) *stream {
	flusher, _ := w.(http.Flusher)
	return &stream{w: w, flusher: flusher}
}

func (st *stream) send(event string, payload any) {
	if st.err != nil {
		return
	}
	if !st.started {
		st.w.Header().Set("Content-Type", "text/event-stream")
		st.w.Header().Set("Cache-Control", "no-cache")
		st.w.Header().Set("Connection", "keep-alive")
		st.w.WriteHeader(http.StatusOK)
		st.started = true
	}

	data, err := json.Marshal(payload)
	if err != nil {
		st.err = err
		return
	}
	if _, err := fmt.Fprintf(st.w, "event: %s\ndata: %s\n\n", event, data); err != nil {
		st.err = err
		return
	}
	if st.flusher != nil {
		st.flusher.Flush()
	}
}

func (st *stream) sendDelayed(d time.Duration, event string, payload any) {
	if d > 0 {
		time.Sleep(d)
	}
	st.send(event, payload)
}

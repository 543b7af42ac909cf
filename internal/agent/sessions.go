package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

// Session describes one stored analysis session.
type Session struct {
	SessionID       string `json:"session_id"`
	RepoURL         string `json:"repo_url"`
	IssueNumber     int    `json:"issue_number"`
	IssueTitle      string `json:"issue_title"`
	CreatedAt       string `json:"created_at"`
	ExpiresAt       string `json:"expires_at"`
	Status          string `json:"status"`
	SolutionSummary string `json:"solution_summary"`
}

// HealthChecks reports which server-side integrations are configured.
type HealthChecks struct {
	LLMConfigured     bool `json:"openrouter_configured"`
	SandboxConfigured bool `json:"e2b_configured"`
}

// Health is the agent service health report.
type Health struct {
	Status         string       `json:"status"`
	Checks         HealthChecks `json:"checks"`
	ActiveSessions int          `json:"active_sessions"`
}

// ListSessions returns all of the caller's analysis sessions.
func (c *Client) ListSessions(ctx context.Context) ([]Session, error) {
	var sessions []Session
	if err := c.doJSON(ctx, http.MethodGet, "/agent/sessions", &sessions); err != nil {
		return nil, err
	}
	return sessions, nil
}

// GetSession fetches one session by ID. Fetching also resets the
// session's expiry on the server.
func (c *Client) GetSession(ctx context.Context, sessionID string) (*Session, error) {
	var session Session
	path := "/agent/sessions/" + url.PathEscape(sessionID)
	if err := c.doJSON(ctx, http.MethodGet, path, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// DeleteSession removes a session.
func (c *Client) DeleteSession(ctx context.Context, sessionID string) error {
	path := "/agent/sessions/" + url.PathEscape(sessionID)
	return c.doJSON(ctx, http.MethodDelete, path, nil)
}

// GetHealth checks the agent service's health endpoint.
func (c *Client) GetHealth(ctx context.Context) (*Health, error) {
	var health Health
	if err := c.doJSON(ctx, http.MethodGet, "/agent/health", &health); err != nil {
		return nil, err
	}
	return &health, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("agent returned status %d: %s", resp.StatusCode, string(respBody))
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return nil
}

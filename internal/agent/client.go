// Package agent is the client for the contributor-matching agent
// service: the streamed analyze/implement endpoints plus the plain REST
// session endpoints around them.
package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/contribmatch/agentstream/internal/sse"
)

const (
	analyzePath   = "/agent/analyze"
	implementPath = "/agent/implement"
)

// AnalyzeRequest is the body of POST /agent/analyze.
type AnalyzeRequest struct {
	RepoURL     string `json:"repo_url"`
	IssueTitle  string `json:"issue_title"`
	IssueBody   string `json:"issue_body"`
	IssueNumber int    `json:"issue_number"`
}

// ImplementRequest is the body of POST /agent/implement.
type ImplementRequest struct {
	SessionID     string `json:"session_id"`
	BranchName    string `json:"branch_name"`
	GitHubToken   string `json:"github_token"`
	CommitMessage string `json:"commit_message,omitempty"`
}

// ClientOption configures the client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithToken sets the bearer credential attached to every request. When
// unset, requests go out unauthenticated and the server may reject them.
func WithToken(token string) ClientOption {
	return func(c *Client) {
		c.token = token
	}
}

// WithLogger sets the logger used for decode diagnostics.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// Client talks to one agent service instance.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates an agent service client.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CancelFunc aborts an in-flight exchange. It is idempotent; calling it
// after the stream has ended is a no-op. Events and errors caused by the
// abort itself are never delivered.
type CancelFunc func()

// EventFunc receives decoded events in stream order.
type EventFunc func(Event)

// ErrorFunc receives at most one transport-level error per exchange.
type ErrorFunc func(error)

// Analyze opens the analyze stream for one issue.
func (c *Client) Analyze(ctx context.Context, req *AnalyzeRequest, onEvent EventFunc, onError ErrorFunc) (CancelFunc, error) {
	return c.Connect(ctx, analyzePath, req, onEvent, onError)
}

// Implement opens the implement stream for a previously analyzed session.
func (c *Client) Implement(ctx context.Context, req *ImplementRequest, onEvent EventFunc, onError ErrorFunc) (CancelFunc, error) {
	return c.Connect(ctx, implementPath, req, onEvent, onError)
}

// Connect issues one streamed POST and dispatches decoded events until
// the transport ends, an error occurs, or the returned CancelFunc runs.
// It returns as soon as the request is issued; all delivery happens on a
// single background goroutine, so onEvent calls never interleave and
// arrive in exact stream order. Payloads that fail to decode are logged
// and dropped without stopping the stream.
func (c *Client) Connect(ctx context.Context, path string, body any, onEvent EventFunc, onError ErrorFunc) (CancelFunc, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	streamCtx, cancel := context.WithCancel(ctx)

	httpReq, err := http.NewRequestWithContext(streamCtx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(httpReq)

	go c.run(streamCtx, httpReq, onEvent, onError)

	return CancelFunc(cancel), nil
}

func (c *Client) run(ctx context.Context, req *http.Request, onEvent EventFunc, onError ErrorFunc) {
	fail := func(err error) {
		// Errors caused by cancellation are the caller's own doing and
		// are suppressed.
		if ctx.Err() != nil || errors.Is(err, context.Canceled) {
			return
		}
		onError(err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		fail(fmt.Errorf("agent request failed: %w", err))
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(resp.Body)
		fail(fmt.Errorf("agent returned status %d: %s", resp.StatusCode, string(respBody)))
		return
	}

	parser := sse.NewParser()
	buf := make([]byte, 4096)
	for {
		n, err := resp.Body.Read(buf)
		if n > 0 {
			for _, frame := range parser.Feed(string(buf[:n])) {
				if ctx.Err() != nil {
					return
				}
				ev, decErr := DecodeEvent([]byte(frame.Data))
				if decErr != nil {
					c.logger.Warn("dropping undecodable frame",
						slog.String("event", frame.EventName),
						slog.String("error", decErr.Error()))
					continue
				}
				onEvent(ev)
			}
		}
		if err != nil {
			if err != io.EOF {
				fail(fmt.Errorf("agent stream read failed: %w", err))
			}
			return
		}
	}
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("X-Request-ID", uuid.New().String())
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

// Package orchestrator is the HTTP client for the conversation
// orchestration collaborator, the service capable of producing richer,
// context-aware replies than the local rule-based responder. It may be
// slow or unavailable; callers bound every call with a context deadline.
package orchestrator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/it-era/chat-gateway/internal/retry"
)

// ClientOption configures the client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// Client posts chat turns to the orchestration endpoint.
type Client struct {
	url        string
	httpClient *http.Client
}

// New creates a client for the given orchestration URL.
func New(url string, opts ...ClientOption) *Client {
	c := &Client{
		url:        url,
		httpClient: http.DefaultClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Request is the orchestration wire payload.
type Request struct {
	SessionID string            `json:"sessionId"`
	Message   string            `json:"message"`
	Context   map[string]string `json:"context,omitempty"`
}

// Response is the orchestration reply.
type Response struct {
	Response         string   `json:"response"`
	SuggestedActions []string `json:"suggestedActions,omitempty"`
	LeadScore        int      `json:"leadScore,omitempty"`
}

// Process sends one turn. Non-2xx statuses come back as *retry.HTTPError
// so callers share the standard classification.
func (c *Client) Process(ctx context.Context, req *Request) (*Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal orchestration request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create orchestration request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("orchestration request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read orchestration response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &retry.HTTPError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	var out Response
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, fmt.Errorf("unmarshal orchestration response: %w", err)
	}
	if out.Response == "" {
		return nil, fmt.Errorf("orchestration returned an empty response")
	}
	return &out, nil
}

// Package agent talks to the browser automation service that checks a single
// acceptance criterion against a live web application.
package agent

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	httpclient "github.com/Imaginary-Space/linear-stagehand-tests/internal/http"
	"github.com/Imaginary-Space/linear-stagehand-tests/internal/http/ratelimit"
)

// ErrNoTarget is returned when a request has no URL to open.
var ErrNoTarget = errors.New("agent: target url is required")

// Request asks the agent to verify one criterion.
type Request struct {
	TicketID  string `json:"ticketId"`
	RunID     string `json:"runId"`
	Index     int    `json:"index"`
	Criterion string `json:"criterion"`
	TargetURL string `json:"targetUrl"`
	Model     string `json:"model,omitempty"`
}

// Verdict is the agent's answer for one criterion. Screenshot is base64 on
// the wire.
type Verdict struct {
	Passed         bool     `json:"passed"`
	Reasoning      string   `json:"reasoning"`
	Steps          []string `json:"steps,omitempty"`
	Screenshot     []byte   `json:"screenshot,omitempty"`
	ScreenshotType string   `json:"screenshotType,omitempty"`
}

// RequestError reports a criterion the agent could not evaluate.
type RequestError struct {
	Criterion string
	Status    int
	Err       error
}

func (e *RequestError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("agent: verify %q: HTTP %d: %v", e.Criterion, e.Status, e.Err)
	}
	return fmt.Sprintf("agent: verify %q: %v", e.Criterion, e.Err)
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

// Verifier is implemented by Client and by test doubles.
type Verifier interface {
	Verify(ctx context.Context, req Request) (*Verdict, error)
}

// Client calls the agent service over HTTP.
type Client struct {
	baseURL string
	model   string
	http    *httpclient.Client
}

// NewClient creates a client for the agent service at baseURL. timeout bounds
// a single attempt; the agent can take minutes to drive a browser.
func NewClient(baseURL, model string, timeout time.Duration, limits ratelimit.Config) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		http:    httpclient.NewClient(limits, httpclient.WithTimeout(timeout)),
	}
}

// Verify asks the agent to check req.Criterion against req.TargetURL.
func (c *Client) Verify(ctx context.Context, req Request) (*Verdict, error) {
	if req.TargetURL == "" {
		return nil, ErrNoTarget
	}
	if req.Model == "" {
		req.Model = c.model
	}

	var verdict Verdict
	if err := c.http.DoJSON(ctx, http.MethodPost, c.baseURL+"/verify", nil, req, &verdict); err != nil {
		reqErr := &RequestError{Criterion: req.Criterion, Err: err}
		var retryErr *ratelimit.RetryError
		if errors.As(err, &retryErr) {
			reqErr.Status = retryErr.LastStatus
		}
		return nil, reqErr
	}
	if verdict.ScreenshotType == "" && len(verdict.Screenshot) > 0 {
		verdict.ScreenshotType = "png"
	}
	return &verdict, nil
}

// Ping checks that the agent service is reachable.
func (c *Client) Ping(ctx context.Context) error {
	return c.http.DoJSON(ctx, http.MethodGet, c.baseURL+"/health", nil, nil, nil)
}

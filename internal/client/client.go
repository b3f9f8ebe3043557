// Package client talks to a running stagewright server. The sessions
// command uses it, and external drivers can too.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ppiankov/stagewright/internal/manager"
)

// Read calls answer from memory; execute calls drive a browser and may
// legitimately sit in a wait_for, so they get a far larger budget.
const (
	readTimeout    = 5 * time.Second
	executeTimeout = 2 * time.Minute
)

// APIError carries the error body of a non-2xx response.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.Status, e.Message)
}

// Client is an HTTP client for the session API.
type Client struct {
	baseURL string
	http    *http.Client
}

// New creates a client for the server at addr. A bare host:port gets
// the http scheme.
func New(addr string) *Client {
	if !strings.Contains(addr, "://") {
		addr = "http://" + addr
	}
	return &Client{
		baseURL: strings.TrimRight(addr, "/"),
		http:    &http.Client{},
	}
}

// CreateRequest mirrors the create session body. Scenario carries
// inline YAML and takes precedence over Path.
type CreateRequest struct {
	Scenario  string `json:"scenario,omitempty"`
	Path      string `json:"path,omitempty"`
	StartPart int    `json:"start_part,omitempty"`
}

// Health reports the server's liveness and live session count.
type Health struct {
	Status   string `json:"status"`
	Sessions int    `json:"sessions"`
}

func (c *Client) Health(ctx context.Context) (*Health, error) {
	var health Health
	if err := c.do(ctx, http.MethodGet, "/health", nil, &health, readTimeout); err != nil {
		return nil, err
	}
	return &health, nil
}

// Create starts a new session on the server.
func (c *Client) Create(ctx context.Context, req CreateRequest) (*manager.Created, error) {
	var created manager.Created
	if err := c.do(ctx, http.MethodPost, "/api/v1/sessions", req, &created, executeTimeout); err != nil {
		return nil, err
	}
	return &created, nil
}

// Step advances the session one step.
func (c *Client) Step(ctx context.Context, id string, retry, skip bool) (*manager.StepExecution, error) {
	body := map[string]bool{}
	if retry {
		body["retry"] = true
	}
	if skip {
		body["skip"] = true
	}
	var exec manager.StepExecution
	if err := c.do(ctx, http.MethodPost, "/api/v1/sessions/"+id+"/step", body, &exec, executeTimeout); err != nil {
		return nil, err
	}
	return &exec, nil
}

// End finishes the session and collects its results.
func (c *Client) End(ctx context.Context, id string) (*manager.Ended, error) {
	var ended manager.Ended
	if err := c.do(ctx, http.MethodDelete, "/api/v1/sessions/"+id, nil, &ended, executeTimeout); err != nil {
		return nil, err
	}
	return &ended, nil
}

// Sessions lists the server's live sessions, oldest first.
func (c *Client) Sessions(ctx context.Context) ([]manager.Info, error) {
	var list struct {
		Sessions []manager.Info `json:"sessions"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/sessions", nil, &list, readTimeout); err != nil {
		return nil, err
	}
	return list.Sessions, nil
}

// Info snapshots one session.
func (c *Client) Info(ctx context.Context, id string) (*manager.Info, error) {
	var info manager.Info
	if err := c.do(ctx, http.MethodGet, "/api/v1/sessions/"+id, nil, &info, readTimeout); err != nil {
		return nil, err
	}
	return &info, nil
}

// do runs one API call with the per-call timeout applied on top of the
// caller's context.
func (c *Client) do(ctx context.Context, method, path string, body, out any, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("server unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err != nil || apiErr.Error == "" {
			return &APIError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		}
		return &APIError{Status: resp.StatusCode, Message: apiErr.Error}
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

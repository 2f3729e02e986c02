// Package workflow is a REST client for the workflow-automation service:
// listing, creating and executing workflows and polling visual session status.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

var (
	// ErrNoWorkflows is returned when the service lists no workflows.
	ErrNoWorkflows = errors.New("no workflows available")
	// ErrNoSessionID is returned when an execution response lacks a session id.
	ErrNoSessionID = errors.New("no session_id returned from execution")
)

// APIError is a non-success HTTP response.
type APIError struct {
	Op     string
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %d - %s", e.Op, e.Status, e.Body)
}

// ClientConfig configures a Client.
type ClientConfig struct {
	BaseURL      string
	SessionToken string
	Timeout      time.Duration
	Logger       *slog.Logger
}

// Client talks to the workflow service.
type Client struct {
	http  *resty.Client
	token string
	log   *slog.Logger
}

// New creates a Client. The session token is sent as a bearer token on
// every request.
func New(cfg ClientConfig) *Client {
	r := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", "vstream-e2e")
	if cfg.Timeout > 0 {
		r.SetTimeout(cfg.Timeout)
	}
	if cfg.SessionToken != "" {
		r.SetAuthToken(cfg.SessionToken)
	}

	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Client{http: r, token: cfg.SessionToken, log: log}
}

// ListWorkflows returns the workflows visible to the session.
func (c *Client) ListWorkflows(ctx context.Context) ([]Workflow, error) {
	var list []Workflow
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&list).
		Get("/workflows")
	if err != nil {
		return nil, fmt.Errorf("list workflows: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, &APIError{Op: "failed to get workflows", Status: resp.StatusCode(), Body: resp.String()}
	}
	return list, nil
}

// CreateWorkflow creates a workflow from def.
func (c *Client) CreateWorkflow(ctx context.Context, def Definition) (Workflow, error) {
	var created Workflow
	req := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(def).
		SetResult(&created)
	if c.token != "" {
		req.SetQueryParam("session_token", c.token)
	}

	resp, err := req.Post("/workflows")
	if err != nil {
		return Workflow{}, fmt.Errorf("create workflow: %w", err)
	}
	if resp.StatusCode() != http.StatusCreated {
		return Workflow{}, &APIError{Op: "failed to create workflow", Status: resp.StatusCode(), Body: resp.String()}
	}
	return created, nil
}

// ResolveWorkflow returns the first existing workflow. When none can be
// listed it creates one from def.
func (c *Client) ResolveWorkflow(ctx context.Context, def Definition) (Workflow, error) {
	list, err := c.ListWorkflows(ctx)
	if err == nil && len(list) == 0 {
		err = ErrNoWorkflows
	}
	if err == nil {
		wf := list[0]
		c.log.Info("using existing workflow", "name", wf.Name, "id", wf.ID)
		return wf, nil
	}
	if ctx.Err() != nil {
		return Workflow{}, ctx.Err()
	}

	c.log.Warn("could not use existing workflow, creating a new one", "err", err)
	wf, err := c.CreateWorkflow(ctx, def)
	if err != nil {
		return Workflow{}, err
	}
	c.log.Info("created test workflow", "id", wf.ID)
	return wf, nil
}

// ExecuteSession starts a session-backed execution of workflow id.
func (c *Client) ExecuteSession(ctx context.Context, id string, req ExecuteRequest) (ExecuteResponse, error) {
	if req.Inputs == nil {
		req.Inputs = map[string]any{}
	}
	if req.SessionToken == "" {
		req.SessionToken = c.token
	}

	var out ExecuteResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetPathParam("id", id).
		SetBody(req).
		SetResult(&out).
		Post("/workflows/{id}/execute/session")
	if err != nil {
		return ExecuteResponse{}, fmt.Errorf("execute workflow %s: %w", id, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return ExecuteResponse{}, &APIError{Op: "failed to start execution", Status: resp.StatusCode(), Body: resp.String()}
	}
	return out, nil
}

// VisualStatus returns the visual streaming status of a session.
func (c *Client) VisualStatus(ctx context.Context, sessionID string) (VisualStatus, error) {
	var st VisualStatus
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("session", sessionID).
		SetResult(&st).
		Get("/workflows/visual/{session}/status")
	if err != nil {
		return VisualStatus{}, fmt.Errorf("visual status: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return VisualStatus{}, &APIError{Op: "failed to get visual status", Status: resp.StatusCode(), Body: resp.String()}
	}
	return st, nil
}

// WaitReady polls the visual status until the session is ready to stream,
// at most attempts times with interval between polls. Exhausting the
// attempts returns false without an error.
func (c *Client) WaitReady(ctx context.Context, sessionID string, attempts int, interval time.Duration) (bool, error) {
	for attempt := 1; attempt <= attempts; attempt++ {
		st, err := c.VisualStatus(ctx, sessionID)
		switch {
		case err != nil && ctx.Err() != nil:
			return false, ctx.Err()
		case err != nil:
			c.log.Warn("visual status check failed", "attempt", attempt, "attempts", attempts, "err", err)
		default:
			c.log.Info("visual status",
				"attempt", attempt,
				"attempts", attempts,
				"streaming_ready", st.StreamingReady,
				"streaming_active", st.StreamingActive,
				"browser_ready", st.BrowserReady,
				"events_processed", st.EventsProcessed)
			if st.Ready() {
				c.log.Info("session is ready for streaming", "session_id", sessionID)
				return true, nil
			}
		}

		if attempt == attempts {
			break
		}
		t := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			t.Stop()
			return false, ctx.Err()
		case <-t.C:
		}
	}

	c.log.Warn("session did not become ready", "session_id", sessionID, "attempts", attempts)
	return false, nil
}

// StreamURL builds the visual stream endpoint for a session from a ws(s) base.
func StreamURL(wsBase, sessionID string) string {
	return strings.TrimRight(wsBase, "/") + "/workflows/visual/" + url.PathEscape(sessionID) + "/stream"
}

package httpsync

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff"

	"pairtask/engine/internal/collab"
	"pairtask/engine/internal/syncsvc"
)

// Client implements the sync service contract against a remote syncd.
// Transport failures come back as Result errors with code TRANSPORT; the
// only calls retried automatically are idempotent reads.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *Client) StartEditSession(ctx context.Context, taskID, userID string) syncsvc.Result[collab.EditSession] {
	return call[collab.EditSession](ctx, c, http.MethodPost,
		"/api/tasks/"+taskID+"/session/start", userBody{UserID: userID})
}

func (c *Client) StopEditSession(ctx context.Context, taskID, userID string) syncsvc.Result[syncsvc.None] {
	return call[syncsvc.None](ctx, c, http.MethodPost,
		"/api/tasks/"+taskID+"/session/stop", userBody{UserID: userID})
}

func (c *Client) ApplyOperation(ctx context.Context, op collab.EditOperation) syncsvc.Result[bool] {
	return call[bool](ctx, c, http.MethodPost, "/api/operations", op)
}

func (c *Client) UpdateCursor(ctx context.Context, taskID, userID, field string, position int) syncsvc.Result[syncsvc.None] {
	body := map[string]any{
		"taskId":   taskID,
		"userId":   userID,
		"field":    field,
		"position": position,
	}
	return call[syncsvc.None](ctx, c, http.MethodPost, "/api/cursor", body)
}

func (c *Client) ToggleTaskLock(ctx context.Context, taskID, userID string, lock bool) syncsvc.Result[bool] {
	body := map[string]any{"userId": userID, "lock": lock}
	return call[bool](ctx, c, http.MethodPost, "/api/tasks/"+taskID+"/lock", body)
}

// GetCollaborators is a safe read, so it retries transient transport
// failures with bounded exponential backoff before giving up empty.
func (c *Client) GetCollaborators(ctx context.Context, taskID string) []collab.CollaboratorCursor {
	var cursors []collab.CollaboratorCursor
	fetch := func() error {
		result := call[[]collab.CollaboratorCursor](ctx, c, http.MethodGet,
			"/api/tasks/"+taskID+"/collaborators", nil)
		if !result.Ok() {
			return fmt.Errorf("%s", result.Err.Message)
		}
		cursors = result.Value
		return nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3), ctx)
	if err := backoff.Retry(fetch, policy); err != nil {
		return nil
	}
	return cursors
}

// Ping waits for the daemon's health endpoint, retrying with backoff, so
// callers can block until the backend is reachable.
func (c *Client) Ping(ctx context.Context) error {
	check := func() error {
		result := call[map[string]any](ctx, c, http.MethodGet, "/api/health", nil)
		if !result.Ok() {
			return fmt.Errorf("%s", result.Err.Message)
		}
		return nil
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 5), ctx)
	return backoff.Retry(check, policy)
}

func call[T any](ctx context.Context, c *Client, method, path string, body any) syncsvc.Result[T] {
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return syncsvc.Failure[T](syncsvc.CodeInvalid, "encode request: %v", err)
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return syncsvc.Failure[T](syncsvc.CodeTransport, "build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return syncsvc.Failure[T](syncsvc.CodeTransport, "%v", err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return syncsvc.Failure[T](syncsvc.CodeTransport, "decode response: %v", err)
	}
	if !env.OK {
		if env.Error == nil {
			return syncsvc.Failure[T](syncsvc.CodeTransport, "failure with no error detail")
		}
		return syncsvc.Result[T]{Err: env.Error}
	}

	var value T
	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, &value); err != nil {
			return syncsvc.Failure[T](syncsvc.CodeTransport, "decode payload: %v", err)
		}
	}
	return syncsvc.OK(value)
}

package syncengine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"varejo/internal/core/syncwire"
)

// TokenFunc supplies the bearer token for a request. The engine calls it per
// request so the agent can refresh expired tokens transparently.
type TokenFunc func(ctx context.Context) (string, error)

// HTTPRemote talks to the server's sync API over HTTP.
type HTTPRemote struct {
	baseURL string
	client  *http.Client
	token   TokenFunc
}

// NewHTTPRemote creates an HTTP remote.
func NewHTTPRemote(baseURL string, token TokenFunc) *HTTPRemote {
	return &HTTPRemote{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
		token:   token,
	}
}

// Push sends a batch of operations.
func (r *HTTPRemote) Push(ctx context.Context, req syncwire.PushRequest) (*syncwire.PushResponse, error) {
	var resp syncwire.PushResponse
	if err := r.do(ctx, http.MethodPost, "/api/v1/sync/push", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Pull requests one page of the change feed.
func (r *HTTPRemote) Pull(ctx context.Context, cursor string) (*syncwire.PullResponse, error) {
	path := "/api/v1/sync/pull"
	if cursor != "" {
		path += "?cursor=" + url.QueryEscape(cursor)
	}

	var resp syncwire.PullResponse
	if err := r.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (r *HTTPRemote) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, r.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	token, err := r.token(ctx)
	if err != nil {
		return fmt.Errorf("get token: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, raw)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

// Package consumerapp implements the consumer binary's dispatch loop: poll
// the gateway for leased jobs, execute them, and report completion or
// failure back over HTTP.
package consumerapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Client talks to the gateway's Admission Adapter.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewClient constructs a Client against the given gateway base URL.
func NewClient(baseURL, token string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: timeout},
	}
}

type leasedJob struct {
	ID     string `json:"id"`
	Type   string `json:"type"`
	Target string `json:"target"`
}

// DequeueResponse mirrors POST /v1/jobs/dequeue's response body.
type DequeueResponse struct {
	OK         bool       `json:"ok"`
	Job        *leasedJob `json:"job"`
	LeaseUntil int64      `json:"leaseUntil"`
}

// Dequeue leases the next eligible job, or returns a nil Job if none is
// ready.
func (c *Client) Dequeue(ctx context.Context) (DequeueResponse, error) {
	var resp DequeueResponse
	if err := c.post(ctx, "/v1/jobs/dequeue", nil, &resp); err != nil {
		return DequeueResponse{}, err
	}
	return resp, nil
}

// Complete reports a successful dispatch.
func (c *Client) Complete(ctx context.Context, id string, result any) error {
	return c.post(ctx, "/v1/jobs/complete", map[string]any{"id": id, "result": result}, nil)
}

// Fail reports a dispatch failure.
func (c *Client) Fail(ctx context.Context, id string, message string) error {
	return c.post(ctx, "/v1/jobs/fail", map[string]any{"id": id, "error": message}, nil)
}

func (c *Client) post(ctx context.Context, path string, body any, out any) error {
	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("%s returned status %d", path, resp.StatusCode)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response from %s: %w", path, err)
		}
	}
	return nil
}

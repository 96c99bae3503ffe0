package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hackgods/patient-queue-engine/internal/api"
	"github.com/hackgods/patient-queue-engine/internal/queue"
)

// APIError is a non-2xx answer from the queue server.
type APIError struct {
	Status  int
	Code    string
	Details string
}

func (e *APIError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s (%d): %s", e.Code, e.Status, e.Details)
	}
	return fmt.Sprintf("%s (%d)", e.Code, e.Status)
}

// Client talks to the api-server over HTTP.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: httpClient}
}

func (c *Client) Enqueue(ctx context.Context, req api.EnqueueRequest) (*api.EntryResponse, error) {
	var out api.EntryResponse
	if err := c.do(ctx, http.MethodPost, "/queue", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Transition posts one of the /queue/{id}/<action> endpoints.
func (c *Client) Transition(ctx context.Context, id, action string) (*api.EntryResponse, error) {
	var out api.EntryResponse
	if err := c.do(ctx, http.MethodPost, "/queue/"+id+"/"+action, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Queue(ctx context.Context) (*api.QueueResponse, error) {
	var out api.QueueResponse
	if err := c.do(ctx, http.MethodGet, "/queue", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Waiting(ctx context.Context) (*api.WaitingResponse, error) {
	var out api.WaitingResponse
	if err := c.do(ctx, http.MethodGet, "/queue/waiting", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Current(ctx context.Context) (*api.CurrentResponse, error) {
	var out api.CurrentResponse
	if err := c.do(ctx, http.MethodGet, "/queue/current", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Entry(ctx context.Context, id string) (*api.EntryResponse, error) {
	var out api.EntryResponse
	if err := c.do(ctx, http.MethodGet, "/queue/"+id, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Sweep(ctx context.Context) (*queue.SweepResult, error) {
	var out queue.SweepResult
	if err := c.do(ctx, http.MethodPost, "/queue/timeline-sweep", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var apiErr api.ErrorResponse
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		if apiErr.Error == "" {
			apiErr.Error = http.StatusText(resp.StatusCode)
		}
		return &APIError{Status: resp.StatusCode, Code: apiErr.Error, Details: apiErr.Details}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

package loadtest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/okian/riskwatch/internal/domain/model"
	"github.com/okian/riskwatch/internal/domain/summary"
)

// APIError is a non-2xx response from the service.
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("http %d", e.Status)
	}
	return fmt.Sprintf("http %d %s: %s", e.Status, e.Code, e.Message)
}

// Health is the /health response.
type Health struct {
	Status       string `json:"status"`
	Version      string `json:"version"`
	ModelsLoaded bool   `json:"models_loaded"`
	ModelVersion string `json:"model_version"`
}

// ServiceStats holds the /stats fields the load run relies on.
type ServiceStats struct {
	QueueLength   int   `json:"queueLength"`
	JobsProcessed int64 `json:"jobsProcessed"`
	JobsFailed    int64 `json:"jobsFailed"`
}

// BatchAck is the response to a batch submission.
type BatchAck struct {
	BatchID   string `json:"batch_id"`
	Status    string `json:"status"`
	Jobs      int    `json:"jobs"`
	Duplicate bool   `json:"duplicate"`
}

type batchRequest struct {
	BatchID string  `json:"batch_id"`
	UserIDs []int64 `json:"user_ids"`
}

// DemoOverview is the /api/v1/risk/demo/overview response.
type DemoOverview struct {
	GeneratedAt time.Time                   `json:"generated_at"`
	Patterns    map[string]model.Assessment `json:"patterns"`
}

// Client calls the riskwatch HTTP API.
type Client struct {
	base string
	http *http.Client
}

// NewClient creates a client for baseURL with a per-request timeout.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		base: strings.TrimRight(baseURL, "/"),
		http: &http.Client{Timeout: timeout},
	}
}

// Health calls GET /health.
func (c *Client) Health(ctx context.Context) (Health, error) {
	var h Health
	_, err := c.do(ctx, http.MethodGet, "/health", nil, &h)
	return h, err
}

// Stats calls GET /stats.
func (c *Client) Stats(ctx context.Context) (ServiceStats, error) {
	var s ServiceStats
	_, err := c.do(ctx, http.MethodGet, "/stats", nil, &s)
	return s, err
}

// PutBehavior registers a behaviour summary; created is false when an
// existing one was replaced.
func (c *Client) PutBehavior(ctx context.Context, userID int64, b model.Behavior) (created bool, err error) {
	status, err := c.do(ctx, http.MethodPut, "/api/v1/users/"+strconv.FormatInt(userID, 10)+"/behavior", b, nil)
	if err != nil {
		return false, err
	}
	return status == http.StatusCreated, nil
}

// SubmitBatch queues userIDs under batchID.
func (c *Client) SubmitBatch(ctx context.Context, batchID string, userIDs []int64) (BatchAck, error) {
	var ack BatchAck
	_, err := c.do(ctx, http.MethodPost, "/api/v1/risk/batch", batchRequest{BatchID: batchID, UserIDs: userIDs}, &ack)
	return ack, err
}

// BatchSummary calls GET /api/v1/risk/batch-summary.
func (c *Client) BatchSummary(ctx context.Context) (summary.Report, error) {
	var rep summary.Report
	_, err := c.do(ctx, http.MethodGet, "/api/v1/risk/batch-summary", nil, &rep)
	return rep, err
}

// DemoOverview calls GET /api/v1/risk/demo/overview.
func (c *Client) DemoOverview(ctx context.Context) (DemoOverview, error) {
	var o DemoOverview
	_, err := c.do(ctx, http.MethodGet, "/api/v1/risk/demo/overview", nil, &o)
	return o, err
}

// do sends body as JSON and decodes a 2xx response into out. Non-2xx
// responses are returned as *APIError.
func (c *Client) do(ctx context.Context, method, path string, body, out any) (int, error) {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("marshal request body: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reader)
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode}
		_ = json.Unmarshal(raw, apiErr)
		return resp.StatusCode, apiErr
	}
	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return resp.StatusCode, fmt.Errorf("decode %s response: %w", path, err)
		}
	}
	return resp.StatusCode, nil
}

package dune

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/atareh/lightvision/pkg/config"
)

// Query engine execution states. Anything that is not terminal is
// treated as still pending.
const (
	StateCompleted = "QUERY_STATE_COMPLETED"
	StateFailed    = "QUERY_STATE_FAILED"
)

// Execution is the engine's acknowledgement of a submitted query.
type Execution struct {
	ExecutionID string `json:"execution_id"`
	State       string `json:"state"`
}

// Result is the polled outcome of an execution. Rows is empty until the
// execution reaches StateCompleted.
type Result struct {
	ExecutionID string `json:"execution_id"`
	QueryID     int64  `json:"query_id"`
	State       string `json:"state"`
	Result      struct {
		Rows []map[string]any `json:"rows"`
	} `json:"result"`
}

// Completed reports whether the execution finished successfully.
func (r *Result) Completed() bool { return r.State == StateCompleted }

// Failed reports whether the execution terminated with an error.
func (r *Result) Failed() bool { return r.State == StateFailed }

// Terminal reports whether the execution reached a final state.
func (r *Result) Terminal() bool { return r.Completed() || r.Failed() }

// Client calls the asynchronous analytics query engine
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// New creates a query engine client
func New(cfg *config.DuneConfig) *Client {
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		http:    &http.Client{Timeout: cfg.Timeout},
	}
}

// Execute submits a query for asynchronous execution and returns the
// engine's execution handle without waiting for results.
func (c *Client) Execute(ctx context.Context, queryID int64) (*Execution, error) {
	endpoint := fmt.Sprintf("%s/query/%d/execute", c.baseURL, queryID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("X-Dune-API-Key", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("execute returned status %d: %s", resp.StatusCode, string(body))
	}

	var execution Execution
	if err := json.NewDecoder(resp.Body).Decode(&execution); err != nil {
		return nil, fmt.Errorf("failed to decode execute response: %w", err)
	}
	if execution.ExecutionID == "" {
		return nil, fmt.Errorf("execute returned empty execution id for query %d", queryID)
	}
	return &execution, nil
}

// GetResult polls one execution. The returned state must be checked via
// Terminal before consuming rows.
func (c *Client) GetResult(ctx context.Context, executionID string) (*Result, error) {
	endpoint := fmt.Sprintf("%s/execution/%s/results", c.baseURL, executionID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("X-Dune-API-Key", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("results request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("results returned status %d: %s", resp.StatusCode, string(body))
	}

	var result Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode results response: %w", err)
	}
	return &result, nil
}

package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/tidwall/gjson"
)

// HTTPEngine talks to a workflow engine over its HTTP/JSON API:
// one POST to start an execution, then polling GETs until the
// execution reaches a terminal state.
type HTTPEngine struct {
	httpClient   *http.Client
	baseURL      string
	pollInterval time.Duration
	observeRPC   func(time.Duration)
}

// HTTPEngineOption configures an HTTPEngine.
type HTTPEngineOption func(*HTTPEngine)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(client *http.Client) HTTPEngineOption {
	return func(e *HTTPEngine) {
		e.httpClient = client
	}
}

// WithPollInterval sets how often AwaitResult polls for a terminal state.
func WithPollInterval(interval time.Duration) HTTPEngineOption {
	return func(e *HTTPEngine) {
		e.pollInterval = interval
	}
}

// WithLatencyObserver registers a callback invoked with the round-trip
// time of every request the engine client makes.
func WithLatencyObserver(observe func(time.Duration)) HTTPEngineOption {
	return func(e *HTTPEngine) {
		e.observeRPC = observe
	}
}

// NewHTTPEngine creates an engine client for the given base URL.
func NewHTTPEngine(baseURL string, options ...HTTPEngineOption) *HTTPEngine {
	e := &HTTPEngine{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        1000,
				MaxIdleConnsPerHost: 100,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		baseURL:      baseURL,
		pollInterval: 250 * time.Millisecond,
	}
	for _, option := range options {
		option(e)
	}
	return e
}

// do issues the request while timing the round trip for the latency
// observer, when one is configured.
func (e *HTTPEngine) do(req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := e.httpClient.Do(req)
	if e.observeRPC != nil {
		e.observeRPC(time.Since(start))
	}
	return resp, err
}

type submitRequest struct {
	ID     string          `json:"id"`
	Kind   string          `json:"kind"`
	Params json.RawMessage `json:"params,omitempty"`
}

// Submit starts one execution via POST /api/v1/executions.
func (e *HTTPEngine) Submit(ctx context.Context, id, kind string, params json.RawMessage) (*Execution, error) {
	body, err := json.Marshal(submitRequest{ID: id, Kind: kind, Params: params})
	if err != nil {
		return nil, fmt.Errorf("encoding submit request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/api/v1/executions", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.do(req)
	if err != nil {
		return nil, fmt.Errorf("submitting %s: %w", id, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading submit response for %s: %w", id, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("submit %s: engine returned %d: %s", id, resp.StatusCode, respBody)
	}

	runID := gjson.GetBytes(respBody, "runId").String()
	if runID == "" {
		return nil, fmt.Errorf("submit %s: engine response missing runId", id)
	}

	return &Execution{ID: id, RunID: runID}, nil
}

// AwaitResult polls GET /api/v1/executions/{runId} until the execution
// reports a terminal status.
func (e *HTTPEngine) AwaitResult(ctx context.Context, exec *Execution) error {
	ticker := time.NewTicker(e.pollInterval)
	defer ticker.Stop()

	for {
		done, err := e.pollOnce(ctx, exec)
		if done || err != nil {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// pollOnce fetches the execution state once. done is true when the
// execution reached a terminal state (err carries the failure, if any).
func (e *HTTPEngine) pollOnce(ctx context.Context, exec *Execution) (done bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.baseURL+"/api/v1/executions/"+exec.RunID, nil)
	if err != nil {
		return false, err
	}

	resp, err := e.do(req)
	if err != nil {
		return false, fmt.Errorf("polling %s: %w", exec.ID, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return false, fmt.Errorf("reading poll response for %s: %w", exec.ID, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return false, fmt.Errorf("poll %s: engine returned %d: %s", exec.ID, resp.StatusCode, respBody)
	}

	switch status := gjson.GetBytes(respBody, "status").String(); status {
	case "completed":
		return true, nil
	case "failed", "terminated", "timed_out":
		msg := gjson.GetBytes(respBody, "error").String()
		if msg == "" {
			msg = status
		}
		return true, fmt.Errorf("execution %s %s: %s", exec.ID, status, msg)
	default:
		// running, pending, or anything the engine adds later
		return false, nil
	}
}

var _ Engine = (*HTTPEngine)(nil)

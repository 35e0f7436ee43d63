// Package client provides a typed HTTP client for the predictgate API, used
// by the CLI.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/admitml/predictgate/internal/metrics"
	"github.com/admitml/predictgate/internal/model"
)

// ErrJobFailed is returned by Wait when the job reached the failed state.
var ErrJobFailed = errors.New("job failed")

// Client talks to a running gateway.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// New creates a client. If baseURL is empty, uses the PREDICTGATE_SERVER_URL
// env var or defaults to localhost:3000. Timeout can be configured via
// PREDICTGATE_CLIENT_TIMEOUT.
func New(baseURL, token string) *Client {
	if baseURL == "" {
		baseURL = os.Getenv("PREDICTGATE_SERVER_URL")
	}
	if baseURL == "" {
		baseURL = "http://localhost:3000"
	}

	timeout := time.Minute
	if t := os.Getenv("PREDICTGATE_CLIENT_TIMEOUT"); t != "" {
		if d, err := time.ParseDuration(t); err == nil {
			timeout = d
		}
	}

	return &Client{
		baseURL: baseURL,
		token:   token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// SetToken replaces the bearer token used for subsequent requests.
func (c *Client) SetToken(token string) {
	c.token = token
}

// apiError is the JSON error payload every non-2xx response carries.
type apiError struct {
	Error string `json:"error"`
}

// Login exchanges credentials for a bearer token and stores it on the client.
func (c *Client) Login(ctx context.Context, username, password string) (string, error) {
	var out struct {
		Token string `json:"token"`
	}
	err := c.do(ctx, http.MethodPost, "/login", map[string]string{
		"username": username,
		"password": password,
	}, &out, http.StatusOK)
	if err != nil {
		return "", err
	}
	c.token = out.Token
	return out.Token, nil
}

// Predict scores one vector synchronously.
func (c *Client) Predict(ctx context.Context, vec model.FeatureVector) (float64, error) {
	var out struct {
		ChanceOfAdmit float64 `json:"chance_of_admit"`
	}
	err := c.do(ctx, http.MethodPost, "/predict", vec, &out, http.StatusOK)
	if err != nil {
		return 0, err
	}
	return out.ChanceOfAdmit, nil
}

// SubmitBatch submits a batch job and returns its ID.
func (c *Client) SubmitBatch(ctx context.Context, vecs []model.FeatureVector) (string, error) {
	var out struct {
		JobID  string `json:"job_id"`
		Status string `json:"status"`
	}
	err := c.do(ctx, http.MethodPost, "/batch/submit", map[string]any{
		"inputs": vecs,
	}, &out, http.StatusOK)
	if err != nil {
		return "", err
	}
	return out.JobID, nil
}

// JobStatus returns the job's current lifecycle state.
func (c *Client) JobStatus(ctx context.Context, id string) (string, error) {
	var out struct {
		Status string `json:"status"`
	}
	err := c.do(ctx, http.MethodGet, "/batch/status/"+id, nil, &out, http.StatusOK)
	if err != nil {
		return "", err
	}
	return out.Status, nil
}

// JobResults is the results payload. Status distinguishes a completed result
// set from a still-processing or failed job.
type JobResults struct {
	JobID   string                   `json:"job_id"`
	Status  string                   `json:"status"`
	Results []model.PredictionResult `json:"results"`
	Total   int                      `json:"total"`
	Message string                   `json:"message"`
	Error   string                   `json:"error"`
}

// Results fetches the job's results. A still-processing job is not an error;
// the returned payload carries the in-flight status.
func (c *Client) Results(ctx context.Context, id string) (*JobResults, error) {
	var out JobResults
	// 202 means still processing, 500 carries the failure payload.
	err := c.do(ctx, http.MethodGet, "/batch/results/"+id, nil, &out,
		http.StatusOK, http.StatusAccepted, http.StatusInternalServerError)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Stats fetches the gateway's aggregated operation latencies.
func (c *Client) Stats(ctx context.Context) (*metrics.Snapshot, error) {
	var out metrics.Snapshot
	if err := c.do(ctx, http.MethodGet, "/stats", nil, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// Wait polls the job until it reaches a terminal state and returns its
// results. It returns ErrJobFailed (with the server's reason) for failed jobs.
func (c *Client) Wait(ctx context.Context, id string, interval time.Duration) (*JobResults, error) {
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		res, err := c.Results(ctx, id)
		if err != nil {
			return nil, err
		}
		switch res.Status {
		case "completed":
			return res, nil
		case "failed":
			return res, fmt.Errorf("%w: %s", ErrJobFailed, res.Error)
		case "":
			return nil, fmt.Errorf("job %s: response carried no status", id)
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// do executes one request and decodes the response when its status is in
// wantStatuses; any other status is surfaced as an error with the server's
// message.
func (c *Client) do(ctx context.Context, method, path string, body, out any, wantStatuses ...int) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	wanted := false
	for _, status := range wantStatuses {
		if resp.StatusCode == status {
			wanted = true
			break
		}
	}
	if !wanted {
		var apiErr apiError
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("server error (%s): %s", resp.Status, apiErr.Error)
		}
		return fmt.Errorf("server error: %s", resp.Status)
	}

	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}
	return nil
}

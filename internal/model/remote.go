package model

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// RemoteScorer implements Scorer against an external inference backend that
// accepts feature batches over HTTP. It lets the gateway front a model served
// elsewhere instead of the built-in linear model.
type RemoteScorer struct {
	endpoint string
	apiKey   string
	client   *http.Client
}

// Compile-time check that RemoteScorer implements Scorer.
var _ Scorer = (*RemoteScorer)(nil)

// NewRemoteScorer creates a client for the given inference endpoint. apiKey
// may be empty when the backend is unauthenticated.
func NewRemoteScorer(endpoint, apiKey string) (*RemoteScorer, error) {
	if endpoint == "" {
		return nil, fmt.Errorf("inference endpoint required")
	}
	return &RemoteScorer{
		endpoint: endpoint,
		apiKey:   apiKey,
		client:   &http.Client{Timeout: 30 * time.Second},
	}, nil
}

// scoreRequest is the request format for the inference backend.
type scoreRequest struct {
	Inputs []FeatureVector `json:"inputs"`
}

// scoreResponse is the response format from the inference backend.
type scoreResponse struct {
	Scores []float64 `json:"scores"`
}

// Score sends the whole batch in a single request. The backend must return
// one score per input, in order.
func (s *RemoteScorer) Score(ctx context.Context, vecs []FeatureVector) ([]float64, error) {
	if len(vecs) == 0 {
		return []float64{}, nil
	}

	jsonBody, err := json.Marshal(scoreRequest{Inputs: vecs})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("backend error (status %d): %s", resp.StatusCode, string(body))
	}

	var out scoreResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	if len(out.Scores) != len(vecs) {
		return nil, fmt.Errorf("score count mismatch: got %d, want %d", len(out.Scores), len(vecs))
	}
	return out.Scores, nil
}

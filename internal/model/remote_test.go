package model

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRemoteScorerRequiresEndpoint(t *testing.T) {
	_, err := NewRemoteScorer("", "")
	require.Error(t, err)
}

func TestRemoteScorerRoundtrip(t *testing.T) {
	var gotAuth string
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")

		var req struct {
			Inputs []FeatureVector `json:"inputs"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		scores := make([]float64, len(req.Inputs))
		for i := range req.Inputs {
			scores[i] = 0.5
		}
		json.NewEncoder(w).Encode(map[string]any{"scores": scores})
	}))
	defer backend.Close()

	s, err := NewRemoteScorer(backend.URL, "backend-key")
	require.NoError(t, err)

	scores, err := s.Score(context.Background(), []FeatureVector{validVector(), validVector()})
	require.NoError(t, err)
	assert.Equal(t, []float64{0.5, 0.5}, scores)
	assert.Equal(t, "Bearer backend-key", gotAuth)
}

func TestRemoteScorerRejectsCountMismatch(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"scores": []float64{0.5}})
	}))
	defer backend.Close()

	s, err := NewRemoteScorer(backend.URL, "")
	require.NoError(t, err)

	_, err = s.Score(context.Background(), []FeatureVector{validVector(), validVector()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "score count mismatch")
}

func TestRemoteScorerSurfacesBackendError(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model unavailable", http.StatusServiceUnavailable)
	}))
	defer backend.Close()

	s, err := NewRemoteScorer(backend.URL, "")
	require.NoError(t, err)

	_, err = s.Score(context.Background(), []FeatureVector{validVector()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 503")
}

func TestRemoteScorerEmptyBatch(t *testing.T) {
	s, err := NewRemoteScorer("http://localhost:1", "")
	require.NoError(t, err)

	scores, err := s.Score(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, scores)
}

package client_test

import (
	"context"
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/admitml/predictgate/internal/auth"
	"github.com/admitml/predictgate/internal/client"
	"github.com/admitml/predictgate/internal/jobs"
	"github.com/admitml/predictgate/internal/model"
	"github.com/admitml/predictgate/internal/runner"
	"github.com/admitml/predictgate/internal/server"
)

func newGateway(t *testing.T) *httptest.Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	scorer := model.NewLinearScorer()

	single, err := runner.New(scorer, runner.SingleConfig(), logger, nil)
	require.NoError(t, err)
	batch, err := runner.New(scorer, runner.BatchConfig(8, time.Millisecond), logger, nil)
	require.NoError(t, err)
	store := jobs.NewStore(batch, jobs.Config{}, logger, nil)

	issuer := auth.NewIssuer("test-secret", 30*time.Minute)
	creds := auth.Credentials{Username: "admin", Password: "secret123"}
	srv := server.New(issuer, creds, single, store, logger, nil)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		store.Close()
		batch.Close()
		single.Close()
	})
	return ts
}

func sampleVector() model.FeatureVector {
	return model.FeatureVector{
		GREScore:         337,
		TOEFLScore:       118,
		UniversityRating: 4,
		SOP:              4.5,
		LOR:              4.5,
		CGPA:             9.65,
		Research:         1,
	}
}

func TestLoginAndPredict(t *testing.T) {
	ts := newGateway(t)
	c := client.New(ts.URL, "")
	ctx := context.Background()

	_, err := c.Predict(ctx, sampleVector())
	require.Error(t, err, "predict without a token must be rejected")

	token, err := c.Login(ctx, "admin", "secret123")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	score, err := c.Predict(ctx, sampleVector())
	require.NoError(t, err)
	assert.Greater(t, score, 0.9)
	assert.LessOrEqual(t, score, 1.0)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	ts := newGateway(t)
	c := client.New(ts.URL, "")

	_, err := c.Login(context.Background(), "admin", "wrong")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid credentials")
}

func TestBatchRoundtrip(t *testing.T) {
	ts := newGateway(t)
	c := client.New(ts.URL, "")
	ctx := context.Background()

	_, err := c.Login(ctx, "admin", "secret123")
	require.NoError(t, err)

	weak := sampleVector()
	weak.GREScore = 300
	weak.CGPA = 7.0
	weak.Research = 0

	id, err := c.SubmitBatch(ctx, []model.FeatureVector{sampleVector(), weak})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	res, err := c.Wait(ctx, id, 5*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, "completed", res.Status)
	assert.Equal(t, 2, res.Total)
	require.Len(t, res.Results, 2)
	assert.Greater(t, res.Results[0].ChanceOfAdmit, res.Results[1].ChanceOfAdmit)

	status, err := c.JobStatus(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "completed", status)
}

func TestWaitOnUnknownJob(t *testing.T) {
	ts := newGateway(t)
	c := client.New(ts.URL, "")
	ctx := context.Background()

	_, err := c.Login(ctx, "admin", "secret123")
	require.NoError(t, err)

	_, err = c.Wait(ctx, "no-such-job", time.Millisecond)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Job not found")
}

func TestPredictSurfacesValidationError(t *testing.T) {
	ts := newGateway(t)
	c := client.New(ts.URL, "")
	ctx := context.Background()

	_, err := c.Login(ctx, "admin", "secret123")
	require.NoError(t, err)

	vec := sampleVector()
	vec.GREScore = 999
	_, err = c.Predict(ctx, vec)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "gre_score")
}

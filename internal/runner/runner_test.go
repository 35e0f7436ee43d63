package runner

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/admitml/predictgate/internal/model"
)

// recordingScorer echoes each vector's GRE score back as its prediction and
// records the size of every flush it sees.
type recordingScorer struct {
	mu      sync.Mutex
	batches [][]model.FeatureVector
	delay   time.Duration
}

func (s *recordingScorer) Score(_ context.Context, vecs []model.FeatureVector) ([]float64, error) {
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	s.mu.Lock()
	s.batches = append(s.batches, append([]model.FeatureVector(nil), vecs...))
	s.mu.Unlock()

	out := make([]float64, len(vecs))
	for i, v := range vecs {
		out[i] = v.GREScore
	}
	return out, nil
}

func (s *recordingScorer) batchSizes() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	sizes := make([]int, len(s.batches))
	for i, b := range s.batches {
		sizes[i] = len(b)
	}
	return sizes
}

type faultyScorer struct {
	calls int
}

func (s *faultyScorer) Score(context.Context, []model.FeatureVector) ([]float64, error) {
	s.calls++
	return nil, model.ErrScoringFault
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func vecWithGRE(gre float64) model.FeatureVector {
	return model.FeatureVector{GREScore: gre, TOEFLScore: 110, UniversityRating: 3, SOP: 3, LOR: 3, CGPA: 8, Research: 0}
}

func TestSinglePolicyDispatchesImmediately(t *testing.T) {
	scorer := &recordingScorer{}
	r, err := New(scorer, SingleConfig(), testLogger(), nil)
	require.NoError(t, err)
	defer r.Close()

	for i := 0; i < 5; i++ {
		score, err := r.Submit(context.Background(), vecWithGRE(float64(300 + i)))
		require.NoError(t, err)
		assert.Equal(t, float64(300+i), score)
	}

	// Max batch size 1 means every flush carries exactly one vector.
	for _, size := range scorer.batchSizes() {
		assert.Equal(t, 1, size)
	}
}

func TestBatchPolicyCoalescesUpToSizeLimit(t *testing.T) {
	scorer := &recordingScorer{}
	r, err := New(scorer, BatchConfig(4, time.Second), testLogger(), nil)
	require.NoError(t, err)
	defer r.Close()

	scores, err := r.SubmitAll(context.Background(), []model.FeatureVector{
		vecWithGRE(301), vecWithGRE(302), vecWithGRE(303), vecWithGRE(304),
		vecWithGRE(305), vecWithGRE(306), vecWithGRE(307), vecWithGRE(308),
	})
	require.NoError(t, err)

	// Order is preserved end to end.
	require.Len(t, scores, 8)
	for i, score := range scores {
		assert.Equal(t, float64(301+i), score)
	}

	// The wait window is long; only the size limit can trigger a flush.
	for _, size := range scorer.batchSizes() {
		assert.LessOrEqual(t, size, 4)
	}
	assert.GreaterOrEqual(t, len(scorer.batches), 2)
}

func TestBatchPolicyFlushesOnWaitWindow(t *testing.T) {
	scorer := &recordingScorer{}
	r, err := New(scorer, BatchConfig(100, 20*time.Millisecond), testLogger(), nil)
	require.NoError(t, err)
	defer r.Close()

	// A single vector cannot reach the size limit; the window must flush it.
	start := time.Now()
	score, err := r.Submit(context.Background(), vecWithGRE(321))
	require.NoError(t, err)
	assert.Equal(t, 321.0, score)
	assert.Less(t, time.Since(start), time.Second)
}

func TestConcurrentSubmitsShareFlushes(t *testing.T) {
	scorer := &recordingScorer{}
	r, err := New(scorer, BatchConfig(32, 50*time.Millisecond), testLogger(), nil)
	require.NoError(t, err)
	defer r.Close()

	const n = 24
	var wg sync.WaitGroup
	scores := make([]float64, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			scores[i], errs[i] = r.Submit(context.Background(), vecWithGRE(float64(300+i)))
		}(i)
	}
	wg.Wait()

	total := 0
	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, float64(300+i), scores[i], "caller %d got another caller's result", i)
	}
	for _, size := range scorer.batchSizes() {
		total += size
	}
	// Every admitted vector is flushed exactly once.
	assert.Equal(t, n, total)
}

func TestCloseFlushesRemainder(t *testing.T) {
	scorer := &recordingScorer{}
	r, err := New(scorer, BatchConfig(100, time.Hour), testLogger(), nil)
	require.NoError(t, err)

	// Admit a vector directly; the hour-long wait window would normally hold
	// it, but Close must flush it before returning.
	reply, err := r.enqueue(context.Background(), vecWithGRE(333))
	require.NoError(t, err)

	r.Close()

	res := <-reply
	require.NoError(t, res.err)
	assert.Equal(t, 333.0, res.score)
	assert.Equal(t, []int{1}, scorer.batchSizes())
}

func TestSubmitAfterCloseFails(t *testing.T) {
	r, err := New(&recordingScorer{}, SingleConfig(), testLogger(), nil)
	require.NoError(t, err)
	r.Close()

	_, err = r.Submit(context.Background(), vecWithGRE(300))
	assert.ErrorIs(t, err, ErrClosed)
}

func TestFaultIsConfinedToItsFlush(t *testing.T) {
	scorer := &faultyScorer{}
	r, err := New(scorer, SingleConfig(), testLogger(), nil)
	require.NoError(t, err)
	defer r.Close()

	_, err = r.Submit(context.Background(), vecWithGRE(300))
	require.ErrorIs(t, err, model.ErrScoringFault)

	// The runner keeps serving after a faulted flush.
	_, err = r.Submit(context.Background(), vecWithGRE(301))
	require.ErrorIs(t, err, model.ErrScoringFault)
	assert.Equal(t, 2, scorer.calls)
}

func TestScorerLengthMismatchIsAFault(t *testing.T) {
	short := scorerFunc(func(_ context.Context, vecs []model.FeatureVector) ([]float64, error) {
		return make([]float64, len(vecs)-1), nil
	})
	r, err := New(short, SingleConfig(), testLogger(), nil)
	require.NoError(t, err)
	defer r.Close()

	_, err = r.Submit(context.Background(), vecWithGRE(300))
	assert.ErrorIs(t, err, model.ErrScoringFault)
}

func TestConfigValidation(t *testing.T) {
	_, err := New(&recordingScorer{}, Config{MaxBatchSize: 0}, testLogger(), nil)
	assert.Error(t, err)

	_, err = New(&recordingScorer{}, Config{MaxBatchSize: 8}, testLogger(), nil)
	assert.Error(t, err, "coalescing policy without a wait window")
}

type scorerFunc func(context.Context, []model.FeatureVector) ([]float64, error)

func (f scorerFunc) Score(ctx context.Context, vecs []model.FeatureVector) ([]float64, error) {
	return f(ctx, vecs)
}

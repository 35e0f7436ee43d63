// Package runner implements a bounded coalescing executor over the scoring
// model. One abstraction covers both dispatch policies: the single-policy
// instance runs with a maximum batch size of 1 and dispatches every vector the
// moment it arrives, while the batch-policy instance accumulates concurrently
// arriving vectors up to a size limit or a wait limit, whichever is hit first.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/admitml/predictgate/internal/metrics"
	"github.com/admitml/predictgate/internal/model"
)

// ErrClosed is returned for submissions after Close.
var ErrClosed = errors.New("runner closed")

// Policy labels, used for logging and metrics.
const (
	SinglePolicy = "single"
	BatchPolicy  = "batch"
)

// Config is a batching policy: how many vectors one flush may carry and how
// long the oldest admitted vector may wait for peers. Both limits are hard.
type Config struct {
	Policy       string
	MaxBatchSize int
	MaxWait      time.Duration
}

// SingleConfig is the immediate-dispatch policy. With a batch size of 1 the
// wait window never applies; there is no artificial delay.
func SingleConfig() Config {
	return Config{Policy: SinglePolicy, MaxBatchSize: 1}
}

// BatchConfig is the coalescing policy used for bulk jobs.
func BatchConfig(maxBatchSize int, maxWait time.Duration) Config {
	return Config{Policy: BatchPolicy, MaxBatchSize: maxBatchSize, MaxWait: maxWait}
}

// request is one admitted vector awaiting a flush. The reply channel is
// buffered so a flush never blocks on an abandoned caller.
type request struct {
	vec   model.FeatureVector
	reply chan response
}

type response struct {
	score float64
	err   error
}

// Runner accepts vectors and scores them in flushes according to its policy.
// A single collector goroutine owns the accumulation buffer; producers only
// hand off vectors and wait on their reply channel. Every admitted vector is
// flushed exactly once, including at Close.
type Runner struct {
	cfg     Config
	scorer  model.Scorer
	logger  *slog.Logger
	metrics *metrics.Metrics

	submit chan request
	done   chan struct{}

	mu     sync.Mutex
	closed bool
	sends  sync.WaitGroup
}

// New validates the policy and starts the collector. The metrics argument may
// be nil (tests).
func New(scorer model.Scorer, cfg Config, logger *slog.Logger, m *metrics.Metrics) (*Runner, error) {
	if cfg.MaxBatchSize < 1 {
		return nil, fmt.Errorf("max batch size must be at least 1, got %d", cfg.MaxBatchSize)
	}
	if cfg.MaxBatchSize > 1 && cfg.MaxWait <= 0 {
		return nil, fmt.Errorf("max wait must be positive when batch size exceeds 1")
	}
	if cfg.Policy == "" {
		cfg.Policy = BatchPolicy
	}
	if logger == nil {
		logger = slog.Default()
	}

	r := &Runner{
		cfg:     cfg,
		scorer:  scorer,
		logger:  logger.With("runner", cfg.Policy),
		metrics: m,
		submit:  make(chan request, cfg.MaxBatchSize),
		done:    make(chan struct{}),
	}
	go r.collect()
	return r, nil
}

// Submit scores one vector and returns its prediction. The call blocks until
// the vector's flush completes or ctx is cancelled. After cancellation the
// vector may still be flushed; its result is discarded.
func (r *Runner) Submit(ctx context.Context, vec model.FeatureVector) (float64, error) {
	reply, err := r.enqueue(ctx, vec)
	if err != nil {
		return 0, err
	}
	select {
	case res := <-reply:
		return res.score, res.err
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// SubmitAll scores a sequence of vectors, preserving input order in the
// returned slice regardless of how the collector splits them across flushes.
// If any vector's flush faulted, the first such fault is returned.
func (r *Runner) SubmitAll(ctx context.Context, vecs []model.FeatureVector) ([]float64, error) {
	replies := make([]chan response, len(vecs))
	for i, vec := range vecs {
		reply, err := r.enqueue(ctx, vec)
		if err != nil {
			return nil, err
		}
		replies[i] = reply
	}

	scores := make([]float64, len(vecs))
	var firstErr error
	for i, reply := range replies {
		select {
		case res := <-reply:
			if res.err != nil && firstErr == nil {
				firstErr = res.err
			}
			scores[i] = res.score
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if firstErr != nil {
		return nil, firstErr
	}
	return scores, nil
}

// enqueue hands one vector to the collector. The sends waitgroup guarantees
// Close cannot close the submit channel while a handoff is in flight.
func (r *Runner) enqueue(ctx context.Context, vec model.FeatureVector) (chan response, error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, ErrClosed
	}
	r.sends.Add(1)
	r.mu.Unlock()
	defer r.sends.Done()

	req := request{vec: vec, reply: make(chan response, 1)}
	select {
	case r.submit <- req:
		return req.reply, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close stops admission, drains the collector, and flushes whatever has
// accumulated. It blocks until every admitted vector has been scored.
func (r *Runner) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		<-r.done
		return
	}
	r.closed = true
	r.mu.Unlock()

	r.sends.Wait()
	close(r.submit)
	<-r.done
}

// collect is the single owner of the accumulation buffer.
func (r *Runner) collect() {
	defer close(r.done)

	var (
		batch  []request
		timer  *time.Timer
		timerC <-chan time.Time
	)

	flush := func() {
		if timer != nil {
			timer.Stop()
			timer, timerC = nil, nil
		}
		if len(batch) == 0 {
			return
		}
		r.score(batch)
		batch = nil
	}

	for {
		select {
		case req, ok := <-r.submit:
			if !ok {
				flush()
				return
			}
			batch = append(batch, req)
			if len(batch) >= r.cfg.MaxBatchSize {
				flush()
			} else if timer == nil {
				// Wait window is measured from the oldest pending vector.
				timer = time.NewTimer(r.cfg.MaxWait)
				timerC = timer.C
			}
		case <-timerC:
			timer, timerC = nil, nil
			flush()
		}
	}
}

// score runs one flush. A scorer fault is attributed to every vector of this
// flush and only this flush; earlier flushes are already answered.
func (r *Runner) score(batch []request) {
	vecs := make([]model.FeatureVector, len(batch))
	for i, req := range batch {
		vecs[i] = req.vec
	}

	start := time.Now()
	scores, err := r.scorer.Score(context.Background(), vecs)
	if err == nil && len(scores) != len(vecs) {
		err = fmt.Errorf("%w: scorer returned %d results for %d inputs",
			model.ErrScoringFault, len(scores), len(vecs))
	} else if err != nil && !errors.Is(err, model.ErrScoringFault) {
		err = fmt.Errorf("%w: %v", model.ErrScoringFault, err)
	}

	if r.metrics != nil {
		r.metrics.RunnerFlushes.WithLabelValues(r.cfg.Policy).Inc()
		r.metrics.RunnerBatchSize.WithLabelValues(r.cfg.Policy).Observe(float64(len(batch)))
		r.metrics.Stats.RecordTiming(metrics.OpFlush, time.Since(start))
	}

	if err != nil {
		r.logger.Warn("flush failed", "batch_size", len(batch), "error", err)
		for _, req := range batch {
			req.reply <- response{err: err}
		}
		return
	}

	r.logger.Debug("flush scored", "batch_size", len(batch), "duration_ms", time.Since(start).Milliseconds())
	for i, req := range batch {
		req.reply <- response{score: scores[i]}
	}
}

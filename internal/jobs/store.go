package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jellydator/ttlcache/v3"

	"github.com/admitml/predictgate/internal/metrics"
	"github.com/admitml/predictgate/internal/model"
	"github.com/admitml/predictgate/internal/runner"
)

// Config tunes the store and its worker pool.
type Config struct {
	// MaxBatchItems is the largest input sequence one job may carry.
	MaxBatchItems int
	// Workers is the size of the orchestration pool.
	Workers int
	// QueueCapacity bounds the pending-job backlog.
	QueueCapacity int
	// RetentionTTL is how long terminal jobs stay readable before reclamation.
	RetentionTTL time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxBatchItems <= 0 {
		c.MaxBatchItems = 1000
	}
	if c.Workers <= 0 {
		c.Workers = 4
	}
	if c.QueueCapacity <= 0 {
		c.QueueCapacity = 4096
	}
	if c.RetentionTTL <= 0 {
		c.RetentionTTL = time.Hour
	}
	return c
}

// Store is the job table and lifecycle manager. Submission is non-blocking:
// it admits the job, parks it pending on the FIFO work queue, and returns the
// ID immediately. A fixed pool of workers consumes the queue in submission
// order; the channel hands each job to exactly one worker.
type Store struct {
	cfg     Config
	runner  *runner.Runner
	logger  *slog.Logger
	metrics *metrics.Metrics

	mu     sync.RWMutex
	jobs   map[string]*Job
	closed bool

	queue     chan string
	workers   sync.WaitGroup
	retention *ttlcache.Cache[string, struct{}]
}

// NewStore starts the retention cache and the worker pool. The metrics
// argument may be nil (tests).
func NewStore(r *runner.Runner, cfg Config, logger *slog.Logger, m *metrics.Metrics) *Store {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = slog.Default()
	}

	s := &Store{
		cfg:     cfg,
		runner:  r,
		logger:  logger,
		metrics: m,
		jobs:    make(map[string]*Job),
		queue:   make(chan string, cfg.QueueCapacity),
		retention: ttlcache.New(
			ttlcache.WithTTL[string, struct{}](cfg.RetentionTTL),
			ttlcache.WithDisableTouchOnHit[string, struct{}](),
		),
	}

	s.retention.OnEviction(func(_ context.Context, _ ttlcache.EvictionReason, item *ttlcache.Item[string, struct{}]) {
		s.reclaim(item.Key())
	})
	go s.retention.Start()

	for i := 0; i < cfg.Workers; i++ {
		s.workers.Add(1)
		go s.worker()
	}

	return s
}

// Submit validates the sequence, creates a pending job, and enqueues it.
// It never waits for processing; the returned ID is the only handle callers
// get. No job is created when validation fails.
func (s *Store) Submit(vecs []model.FeatureVector) (string, error) {
	if len(vecs) == 0 {
		return "", ErrEmptyBatch
	}
	if len(vecs) > s.cfg.MaxBatchItems {
		return "", fmt.Errorf("%w: %d items exceeds limit of %d", ErrBatchTooLarge, len(vecs), s.cfg.MaxBatchItems)
	}
	for i, vec := range vecs {
		if err := vec.Validate(); err != nil {
			return "", fmt.Errorf("input %d: %w", i, err)
		}
	}

	job := &Job{
		ID:          uuid.NewString(),
		Status:      StatusPending,
		Inputs:      append([]model.FeatureVector(nil), vecs...),
		SubmittedAt: time.Now(),
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return "", ErrStoreClosed
	}
	select {
	case s.queue <- job.ID:
	default:
		s.mu.Unlock()
		return "", ErrQueueFull
	}
	s.jobs[job.ID] = job
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.JobsSubmitted.Inc()
		s.metrics.JobsInflight.Inc()
	}
	s.logger.Info("job submitted", "job_id", job.ID, "inputs", len(job.Inputs))
	return job.ID, nil
}

// Get returns a point-in-time copy of the job.
func (s *Store) Get(id string) (Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	if !ok {
		return Job{}, ErrJobNotFound
	}
	return *job, nil
}

// Status returns the job's current lifecycle state.
func (s *Store) Status(id string) (Status, error) {
	job, err := s.Get(id)
	if err != nil {
		return "", err
	}
	return job.Status, nil
}

// Close stops admission, lets the workers drain the queue, and shuts down the
// retention cache. Jobs still queued at shutdown are processed, not dropped.
func (s *Store) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	close(s.queue)
	s.workers.Wait()
	s.retention.Stop()
}

// worker is one orchestration loop: take the oldest pending job, run it
// through the batch runner, and record the outcome.
func (s *Store) worker() {
	defer s.workers.Done()
	for id := range s.queue {
		s.process(id)
	}
}

// process drives a single job to a terminal state. Faults, including panics,
// are confined to this job so one bad batch never halts the loop.
func (s *Store) process(id string) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("job processing panicked", "job_id", id, "panic", r)
			s.fail(id, fmt.Errorf("internal panic: %v", r))
		}
	}()

	inputs, ok := s.markProcessing(id)
	if !ok {
		return
	}

	start := time.Now()
	scores, err := s.runner.SubmitAll(context.Background(), inputs)
	if err != nil {
		s.fail(id, err)
		return
	}

	results := make([]model.PredictionResult, len(scores))
	for i, score := range scores {
		results[i] = model.PredictionResult{Index: i, ChanceOfAdmit: score}
	}
	s.complete(id, results)
	if s.metrics != nil {
		s.metrics.Stats.RecordTiming(metrics.OpJob, time.Since(start))
	}
	s.logger.Info("job completed", "job_id", id, "results", len(results), "duration_ms", time.Since(start).Milliseconds())
}

// markProcessing claims the job for this worker.
func (s *Store) markProcessing(id string) ([]model.FeatureVector, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok || job.Status != StatusPending {
		return nil, false
	}
	job.Status = StatusProcessing
	return job.Inputs, true
}

// complete applies results and the completed status in one critical section,
// so readers see either the old state or the fully populated new one.
func (s *Store) complete(id string, results []model.PredictionResult) {
	if !s.finish(id, StatusCompleted, func(job *Job) {
		job.Results = results
	}) {
		return
	}
	if s.metrics != nil {
		s.metrics.JobsFinished.WithLabelValues(string(StatusCompleted)).Inc()
	}
}

func (s *Store) fail(id string, err error) {
	if !s.finish(id, StatusFailed, func(job *Job) {
		job.Error = err.Error()
	}) {
		return
	}
	if s.metrics != nil {
		s.metrics.JobsFinished.WithLabelValues(string(StatusFailed)).Inc()
	}
	s.logger.Warn("job failed", "job_id", id, "error", err)
}

func (s *Store) finish(id string, status Status, apply func(*Job)) bool {
	now := time.Now()

	s.mu.Lock()
	job, ok := s.jobs[id]
	if !ok || job.Status.Terminal() {
		s.mu.Unlock()
		return false
	}
	job.Status = status
	apply(job)
	job.CompletedAt = &now
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.JobsInflight.Dec()
	}
	s.retention.Set(id, struct{}{}, ttlcache.DefaultTTL)
	return true
}

// reclaim drops a job whose retention window elapsed.
func (s *Store) reclaim(id string) {
	s.mu.Lock()
	delete(s.jobs, id)
	s.mu.Unlock()
	s.logger.Debug("job reclaimed", "job_id", id)
}

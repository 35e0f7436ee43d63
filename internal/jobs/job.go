// Package jobs owns the asynchronous batch-prediction lifecycle: the in-memory
// job table, submission admission, and the worker pool that drives pending
// jobs through the batch-policy runner.
package jobs

import (
	"errors"
	"time"

	"github.com/admitml/predictgate/internal/model"
)

var (
	// ErrEmptyBatch rejects submissions with no input vectors.
	ErrEmptyBatch = errors.New("batch is empty")

	// ErrBatchTooLarge rejects submissions above the configured item limit.
	ErrBatchTooLarge = errors.New("batch too large")

	// ErrJobNotFound is returned for lookups of unknown or reclaimed job IDs.
	ErrJobNotFound = errors.New("job not found")

	// ErrQueueFull is returned when the work queue cannot take another job
	// without blocking the submitter.
	ErrQueueFull = errors.New("job queue is full")

	// ErrStoreClosed rejects submissions during shutdown.
	ErrStoreClosed = errors.New("job store closed")
)

// Status is the lifecycle state of a job. Transitions are monotonic:
// pending -> processing -> completed|failed, never backwards.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Terminal reports whether the status can no longer change.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Job is one asynchronous unit of batch work. Only the store mutates a job;
// callers see value copies taken under the store lock, so a reader can never
// observe a half-applied transition.
type Job struct {
	ID          string
	Status      Status
	Inputs      []model.FeatureVector
	Results     []model.PredictionResult
	Error       string
	SubmittedAt time.Time
	CompletedAt *time.Time
}

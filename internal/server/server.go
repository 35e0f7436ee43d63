// Package server provides the HTTP surface of the gateway: login, synchronous
// prediction, and the asynchronous batch job endpoints.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/admitml/predictgate/internal/auth"
	"github.com/admitml/predictgate/internal/jobs"
	"github.com/admitml/predictgate/internal/metrics"
	"github.com/admitml/predictgate/internal/model"
	"github.com/admitml/predictgate/internal/runner"
)

// maxBodyBytes bounds request bodies; a 1000-item batch is well under this.
const maxBodyBytes = 4 << 20

// Server composes the access gate, the single-policy runner and the job store
// behind the HTTP routes.
type Server struct {
	issuer  *auth.Issuer
	creds   auth.Credentials
	single  *runner.Runner
	store   *jobs.Store
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// New wires the server's collaborators. The metrics argument may be nil (tests).
func New(issuer *auth.Issuer, creds auth.Credentials, single *runner.Runner, store *jobs.Store, logger *slog.Logger, m *metrics.Metrics) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		issuer:  issuer,
		creds:   creds,
		single:  single,
		store:   store,
		logger:  logger,
		metrics: m,
	}
}

// Handler builds the route tree. Every endpoint except login, health and
// metrics sits behind the access gate.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(s.logRequests)

	r.Post("/login", s.handleLogin)
	r.Get("/healthz", s.handleHealthz)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.metrics.Registry, promhttp.HandlerOpts{}))
	}

	r.Group(func(protected chi.Router) {
		protected.Use(s.requireAuth)
		protected.Post("/predict", s.handlePredict)
		protected.Post("/batch/submit", s.handleBatchSubmit)
		protected.Get("/batch/status/{jobID}", s.handleBatchStatus)
		protected.Get("/batch/results/{jobID}", s.handleBatchResults)
		if s.metrics != nil {
			protected.Get("/stats", s.handleStats)
		}
	})

	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	s.logger.Info("server listening", "addr", addr)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown server: %w", err)
	}
	return nil
}

// featurePayload is the wire form of a feature vector. Pointer fields let the
// handler distinguish a missing field from a zero value; every field must be
// present.
type featurePayload struct {
	GREScore         *float64 `json:"gre_score"`
	TOEFLScore       *float64 `json:"toefl_score"`
	UniversityRating *float64 `json:"university_rating"`
	SOP              *float64 `json:"sop"`
	LOR              *float64 `json:"lor"`
	CGPA             *float64 `json:"cgpa"`
	Research         *int     `json:"research"`
}

func (p featurePayload) vector() (model.FeatureVector, error) {
	fields := map[string]bool{
		"gre_score":         p.GREScore != nil,
		"toefl_score":       p.TOEFLScore != nil,
		"university_rating": p.UniversityRating != nil,
		"sop":               p.SOP != nil,
		"lor":               p.LOR != nil,
		"cgpa":              p.CGPA != nil,
		"research":          p.Research != nil,
	}
	for name, present := range fields {
		if !present {
			return model.FeatureVector{}, fmt.Errorf("%w: missing field %s", model.ErrInvalidInput, name)
		}
	}
	return model.FeatureVector{
		GREScore:         *p.GREScore,
		TOEFLScore:       *p.TOEFLScore,
		UniversityRating: *p.UniversityRating,
		SOP:              *p.SOP,
		LOR:              *p.LOR,
		CGPA:             *p.CGPA,
		Research:         *p.Research,
	}, nil
}

type loginPayload struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var payload loginPayload
	if err := s.decode(r, &payload); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := s.creds.Validate(payload.Username, payload.Password); err != nil {
		s.writeError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	token, err := s.issuer.Issue(payload.Username)
	if err != nil {
		s.logger.Error("token issuance failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, "Internal error")
		return
	}

	s.logger.Info("login succeeded", "subject", payload.Username)
	s.writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	var payload featurePayload
	if err := s.decode(r, &payload); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	vec, err := payload.vector()
	if err == nil {
		err = vec.Validate()
	}
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	start := time.Now()
	score, err := s.single.Submit(r.Context(), vec)
	if err != nil {
		s.logger.Error("prediction failed", "subject", Subject(r.Context()), "error", err)
		s.writeError(w, http.StatusInternalServerError, "Prediction failed")
		return
	}
	if s.metrics != nil {
		s.metrics.Stats.RecordTiming(metrics.OpPredict, time.Since(start))
	}

	s.writeJSON(w, http.StatusOK, map[string]float64{"chance_of_admit": score})
}

type batchSubmitPayload struct {
	Inputs []featurePayload `json:"inputs"`
}

func (s *Server) handleBatchSubmit(w http.ResponseWriter, r *http.Request) {
	var payload batchSubmitPayload
	if err := s.decode(r, &payload); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	vecs := make([]model.FeatureVector, len(payload.Inputs))
	for i, input := range payload.Inputs {
		vec, err := input.vector()
		if err != nil {
			s.writeError(w, http.StatusBadRequest, fmt.Sprintf("input %d: %v", i, err))
			return
		}
		vecs[i] = vec
	}

	id, err := s.store.Submit(vecs)
	if err != nil {
		switch {
		case errors.Is(err, jobs.ErrEmptyBatch), errors.Is(err, jobs.ErrBatchTooLarge), errors.Is(err, model.ErrInvalidInput):
			s.writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, jobs.ErrQueueFull), errors.Is(err, jobs.ErrStoreClosed):
			s.writeError(w, http.StatusServiceUnavailable, err.Error())
		default:
			s.logger.Error("batch submission failed", "error", err)
			s.writeError(w, http.StatusInternalServerError, "Internal error")
		}
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]string{
		"job_id":  id,
		"status":  string(jobs.StatusPending),
		"message": "Batch job submitted successfully",
	})
}

// handleStats reports aggregated operation latencies since startup.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.metrics.Stats.Snapshot())
}

func (s *Server) handleBatchStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "jobID")
	status, err := s.store.Status(id)
	if err != nil {
		s.writeError(w, http.StatusNotFound, "Job not found")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{
		"job_id": id,
		"status": string(status),
	})
}

func (s *Server) handleBatchResults(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "jobID")
	job, err := s.store.Get(id)
	if err != nil {
		s.writeError(w, http.StatusNotFound, "Job not found")
		return
	}

	switch job.Status {
	case jobs.StatusCompleted:
		s.writeJSON(w, http.StatusOK, map[string]any{
			"job_id":  id,
			"status":  string(job.Status),
			"results": job.Results,
			"total":   len(job.Results),
		})
	case jobs.StatusFailed:
		s.writeJSON(w, http.StatusInternalServerError, map[string]string{
			"job_id": id,
			"status": string(job.Status),
			"error":  job.Error,
		})
	default:
		// Still working; an expected, retryable state rather than an error.
		s.writeJSON(w, http.StatusAccepted, map[string]string{
			"job_id":  id,
			"status":  string(job.Status),
			"message": "Job is still processing",
		})
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) decode(r *http.Request, v any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	return dec.Decode(v)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

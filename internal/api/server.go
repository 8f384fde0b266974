// Package api exposes the HTTP interface for the syllabus analyzer service.
package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/campuslib/syllabus-analyzer/internal/export"
	"github.com/campuslib/syllabus-analyzer/internal/orchestrator"
	"github.com/campuslib/syllabus-analyzer/internal/pipeline"
)

// Server wires HTTP handlers to the orchestrator and stores.
type Server struct {
	router    chi.Router
	jobs      pipeline.JobStore
	artifacts pipeline.ArtifactStore
	orch      *orchestrator.Orchestrator
	logger    *zap.Logger
}

// NewServer constructs a Server with middleware and routes. The gatherer
// backs the /metrics endpoint; pass the registry the progress sink was
// registered against.
func NewServer(
	jobs pipeline.JobStore,
	artifacts pipeline.ArtifactStore,
	orch *orchestrator.Orchestrator,
	gatherer prometheus.Gatherer,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	s := &Server{
		jobs:      jobs,
		artifacts: artifacts,
		orch:      orch,
		logger:    logger,
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	r.Use(timeoutMiddleware(60 * time.Second))

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Route("/v1", func(r chi.Router) {
		r.Get("/metadata-fields", s.listMetadataFields)
		r.Route("/jobs", func(r chi.Router) {
			r.Get("/", s.listJobs)
			r.Post("/discover", s.startDiscovery)
			r.Route("/{job_id}", func(r chi.Router) {
				r.Get("/status", s.getJobStatus)
				r.Post("/extract", s.startExtraction)
				r.Post("/crossref", s.startCrossReference)
				r.Get("/results", s.getResults)
				r.Get("/results.csv", s.getResultsCSV)
			})
		})
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	// In-memory dependencies are always ready; revisit if stores move
	// out of process.
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) listMetadataFields(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"fields": pipeline.Fields()})
}

type discoverRequest struct {
	URL          string `json:"url"`
	JobName      string `json:"job_name"`
	Category     string `json:"category"`
	MaxDownloads int    `json:"max_downloads"`
}

func (s *Server) startDiscovery(w http.ResponseWriter, r *http.Request) {
	var req discoverRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	category := pipeline.Category(req.Category)
	if category == "" {
		category = pipeline.CategoryArts
	}
	switch category {
	case pipeline.CategoryArts, pipeline.CategoryPoliSci:
	default:
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown category %q", req.Category))
		return
	}

	job, err := s.orch.StartDiscovery(r.Context(), pipeline.JobParameters{
		SourceURL:    req.URL,
		JobName:      req.JobName,
		Category:     category,
		MaxDownloads: req.MaxDownloads,
	})
	if err != nil {
		if errors.Is(err, orchestrator.ErrNoSourceURL) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{
		"job_id":  job.ID,
		"status":  "started",
		"message": "Syllabus discovery started successfully",
	})
}

func (s *Server) listJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := s.jobs.ListJobs(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list jobs")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"jobs": jobs})
}

func (s *Server) getJobStatus(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	job, err := s.jobs.GetJob(r.Context(), jobID)
	if err != nil {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	writeJSON(w, http.StatusOK, job)
}

type extractRequest struct {
	SelectedFields []string `json:"selected_fields"`
}

func (s *Server) startExtraction(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	var req extractRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	err := s.orch.StartExtraction(r.Context(), jobID, req.SelectedFields)
	switch {
	case err == nil:
	case errors.Is(err, pipeline.ErrJobNotFound):
		writeError(w, http.StatusNotFound, "job not found")
		return
	case errors.Is(err, orchestrator.ErrNoDocuments):
		writeError(w, http.StatusNotFound, "no downloaded files found for this job")
		return
	case errors.Is(err, orchestrator.ErrNoFieldsSelected):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	default:
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{
		"job_id":  jobID,
		"status":  "started",
		"message": "Metadata extraction started successfully",
	})
}

func (s *Server) startCrossReference(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")

	err := s.orch.StartCrossReference(r.Context(), jobID)
	switch {
	case err == nil:
	case errors.Is(err, pipeline.ErrJobNotFound):
		writeError(w, http.StatusNotFound, "job not found")
		return
	case errors.Is(err, orchestrator.ErrNoMetadata):
		writeError(w, http.StatusNotFound,
			"metadata results not found; ensure metadata extraction completed successfully")
		return
	case errors.Is(err, orchestrator.ErrAlreadyRunning):
		writeJSON(w, http.StatusConflict, map[string]string{
			"status":  "already_running",
			"message": "Library matching is already in progress",
		})
		return
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{
		"job_id":  jobID,
		"status":  "started",
		"message": "Library resource matching started successfully",
	})
}

// loadResults returns the preferred artifact for a job: cross-reference
// results when present, plain metadata otherwise.
func (s *Server) loadResults(ctx context.Context, jobID string) ([]pipeline.DocumentResult, string, error) {
	if s.artifacts.Exists(jobID, pipeline.ArtifactPrimoResults) {
		results, err := s.artifacts.Get(ctx, jobID, pipeline.ArtifactPrimoResults)
		return results, fmt.Sprintf("syllabus_analysis_%s_complete.json", jobID), err
	}
	if s.artifacts.Exists(jobID, pipeline.ArtifactMetadata) {
		results, err := s.artifacts.Get(ctx, jobID, pipeline.ArtifactMetadata)
		return results, fmt.Sprintf("syllabus_analysis_%s_metadata.json", jobID), err
	}
	return nil, "", errors.New("results not found")
}

func (s *Server) getResults(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	if _, err := s.jobs.GetJob(r.Context(), jobID); err != nil {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}

	results, downloadName, err := s.loadResults(r.Context(), jobID)
	if err != nil {
		writeError(w, http.StatusNotFound, "results not found")
		return
	}
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", downloadName))
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

func (s *Server) getResultsCSV(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	if _, err := s.jobs.GetJob(r.Context(), jobID); err != nil {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}

	results, _, err := s.loadResults(r.Context(), jobID)
	if err != nil {
		writeError(w, http.StatusNotFound, "results not found")
		return
	}
	data, err := export.CSV(results)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to generate CSV")
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", fmt.Sprintf("syllabus_analysis_%s.csv", jobID)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		s.logger.Error("csv write failed", zap.Error(err))
	}
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func loggingMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)
			logger.Info("request completed",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.status),
				zap.Int64("duration_ms", time.Since(start).Milliseconds()),
			)
		})
	}
}

func recoverMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error("panic recovered", zap.Any("error", rec))
					writeError(w, http.StatusInternalServerError, "internal server error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	if err != nil {
		return n, fmt.Errorf("write response: %w", err)
	}
	return n, nil
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := rw.ResponseWriter.(http.Hijacker); ok {
		conn, buf, err := h.Hijack()
		if err != nil {
			return nil, nil, fmt.Errorf("hijack connection: %w", err)
		}
		return conn, buf, nil
	}
	return nil, nil, errors.New("hijacker not supported")
}

type requestIDKey struct{}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

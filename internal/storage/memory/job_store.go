// Package memory provides the in-memory job store backing the service.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/campuslib/syllabus-analyzer/internal/pipeline"
)

// JobStore keeps the job table in process memory. It is the source of
// truth for the status polling endpoints; every observable progress value
// flows through it so monotonicity can be enforced in one place.
type JobStore struct {
	mu   sync.RWMutex
	jobs map[string]pipeline.Job
}

// NewJobStore constructs an empty JobStore.
func NewJobStore() *JobStore {
	return &JobStore{jobs: make(map[string]pipeline.Job)}
}

// CreateJob stores a new job row. Duplicate IDs are rejected.
func (s *JobStore) CreateJob(_ context.Context, job pipeline.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[job.ID]; exists {
		return pipeline.ErrJobExists
	}
	s.jobs[job.ID] = job
	return nil
}

// GetJob fetches a job by ID.
func (s *JobStore) GetJob(_ context.Context, jobID string) (pipeline.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return pipeline.Job{}, pipeline.ErrJobNotFound
	}
	return job, nil
}

// ListJobs returns all job rows ordered by creation time.
func (s *JobStore) ListJobs(_ context.Context) ([]pipeline.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]pipeline.Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		out = append(out, job)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// UpdateStatus flips the job status and message. Re-entering an active
// status from a terminal one starts a new stage, so progress resets to 0;
// completed pins progress to 100 and error pins it to 0.
func (s *JobStore) UpdateStatus(_ context.Context, jobID string, status pipeline.JobStatus, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return pipeline.ErrJobNotFound
	}
	if isActive(status) && isTerminal(job.Status) {
		job.Progress = 0
	}
	switch status {
	case pipeline.JobStatusCompleted:
		job.Progress = 100
	case pipeline.JobStatusError:
		job.Progress = 0
	}
	job.Status = status
	job.Message = message
	s.jobs[jobID] = job
	return nil
}

// SetProgress reports stage progress. Regressed values are held so pollers
// never see progress move backwards within a stage; the message still
// updates so per-item text keeps flowing.
func (s *JobStore) SetProgress(_ context.Context, jobID string, progress int, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return pipeline.ErrJobNotFound
	}
	if progress < 0 {
		progress = 0
	}
	if progress > 100 {
		progress = 100
	}
	if progress > job.Progress {
		job.Progress = progress
	}
	if message != "" {
		job.Message = message
	}
	s.jobs[jobID] = job
	return nil
}

// SetCounters merges the non-nil counters into the job row.
func (s *JobStore) SetCounters(_ context.Context, jobID string, counters pipeline.JobCounters) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return pipeline.ErrJobNotFound
	}
	if counters.FilesFound != nil {
		job.Counters.FilesFound = counters.FilesFound
	}
	if counters.FilesDownloaded != nil {
		job.Counters.FilesDownloaded = counters.FilesDownloaded
	}
	if counters.FilesProcessed != nil {
		job.Counters.FilesProcessed = counters.FilesProcessed
	}
	s.jobs[jobID] = job
	return nil
}

// SetResultPath records where the latest stage artifact was written.
func (s *JobStore) SetResultPath(_ context.Context, jobID string, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return pipeline.ErrJobNotFound
	}
	job.ResultPath = path
	s.jobs[jobID] = job
	return nil
}

// SetSelectedFields records the field selection for the extraction stage.
func (s *JobStore) SetSelectedFields(_ context.Context, jobID string, fields []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return pipeline.ErrJobNotFound
	}
	selected := make([]string, len(fields))
	copy(selected, fields)
	job.Parameters.SelectedFields = selected
	s.jobs[jobID] = job
	return nil
}

func isActive(status pipeline.JobStatus) bool {
	switch status {
	case pipeline.JobStatusPending, pipeline.JobStatusDownloading, pipeline.JobStatusProcessing:
		return true
	default:
		return false
	}
}

func isTerminal(status pipeline.JobStatus) bool {
	switch status {
	case pipeline.JobStatusCompleted, pipeline.JobStatusError:
		return true
	default:
		return false
	}
}

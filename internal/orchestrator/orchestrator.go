// Package orchestrator validates stage requests and turns them into queued
// stage tasks. It is the request-side half of the pipeline; the worker
// package is the execution side.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/campuslib/syllabus-analyzer/internal/pipeline"
)

// Guard failures surfaced to the HTTP layer.
var (
	ErrNoSourceURL      = errors.New("source url is required")
	ErrNoFieldsSelected = errors.New("no metadata fields selected")
	ErrNoDocuments      = errors.New("no downloaded documents for job")
	ErrNoMetadata       = errors.New("metadata results not found")
	ErrAlreadyRunning   = errors.New("library matching is already in progress")
)

// Config holds the orchestrator's filesystem and queueing knobs.
type Config struct {
	DownloadsDir string
}

// Orchestrator owns job creation and the stage-entry guards.
type Orchestrator struct {
	cfg       Config
	jobs      pipeline.JobStore
	artifacts pipeline.ArtifactStore
	queue     pipeline.Queue
	ids       pipeline.IDGenerator
	clock     pipeline.Clock
	tracker   *Tracker
	logger    *zap.Logger
}

// New constructs an Orchestrator.
func New(
	cfg Config,
	jobs pipeline.JobStore,
	artifacts pipeline.ArtifactStore,
	queue pipeline.Queue,
	ids pipeline.IDGenerator,
	clock pipeline.Clock,
	tracker *Tracker,
	logger *zap.Logger,
) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		cfg:       cfg,
		jobs:      jobs,
		artifacts: artifacts,
		queue:     queue,
		ids:       ids,
		clock:     clock,
		tracker:   tracker,
		logger:    logger,
	}
}

// Tracker exposes the in-flight tracker so the worker can release slots.
func (o *Orchestrator) Tracker() *Tracker {
	return o.tracker
}

// StartDiscovery creates a fresh job row and folder and queues the
// discovery stage. Every request gets a new job id; re-running discovery
// against an existing job is not supported.
func (o *Orchestrator) StartDiscovery(ctx context.Context, params pipeline.JobParameters) (pipeline.Job, error) {
	if params.Category != pipeline.CategoryPoliSci && strings.TrimSpace(params.SourceURL) == "" {
		return pipeline.Job{}, ErrNoSourceURL
	}

	id, err := o.ids.NewID()
	if err != nil {
		return pipeline.Job{}, fmt.Errorf("generate job id: %w", err)
	}
	now := o.clock.Now()
	if strings.TrimSpace(params.JobName) == "" {
		params.JobName = "Job_" + now.Format("20060102_150405")
	}

	if err := os.MkdirAll(filepath.Join(o.cfg.DownloadsDir, id), 0o750); err != nil {
		return pipeline.Job{}, fmt.Errorf("create job folder: %w", err)
	}

	job := pipeline.Job{
		ID:         id,
		Status:     pipeline.JobStatusPending,
		Message:    "Job queued",
		CreatedAt:  now,
		Parameters: params,
	}
	if err := o.jobs.CreateJob(ctx, job); err != nil {
		return pipeline.Job{}, fmt.Errorf("create job: %w", err)
	}

	task := pipeline.StageTask{
		JobID:     id,
		Kind:      pipeline.StageDiscovery,
		Params:    params,
		Submitted: now.Unix(),
	}
	if err := o.queue.Enqueue(ctx, task); err != nil {
		_ = o.jobs.UpdateStatus(ctx, id, pipeline.JobStatusError, "failed to queue discovery")
		return pipeline.Job{}, fmt.Errorf("enqueue discovery: %w", err)
	}

	o.logger.Info("discovery started",
		zap.String("job_id", id),
		zap.String("category", string(params.Category)),
		zap.String("job_name", params.JobName),
	)
	return job, nil
}

// StartExtraction queues the extraction stage after checking that the job
// exists, its folder holds at least one PDF, and fields were selected.
func (o *Orchestrator) StartExtraction(ctx context.Context, jobID string, selectedFields []string) error {
	job, err := o.jobs.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	if len(selectedFields) == 0 {
		return ErrNoFieldsSelected
	}
	for _, field := range selectedFields {
		if !pipeline.KnownField(field) {
			return fmt.Errorf("unknown metadata field %q", field)
		}
	}
	if o.countPDFs(jobID) == 0 {
		return ErrNoDocuments
	}

	if err := o.jobs.SetSelectedFields(ctx, jobID, selectedFields); err != nil {
		return fmt.Errorf("record selected fields: %w", err)
	}
	if err := o.jobs.UpdateStatus(ctx, jobID, pipeline.JobStatusProcessing, "Metadata extraction queued"); err != nil {
		return fmt.Errorf("update status: %w", err)
	}

	task := pipeline.StageTask{
		JobID:          jobID,
		Kind:           pipeline.StageExtraction,
		Params:         job.Parameters,
		SelectedFields: selectedFields,
		Submitted:      o.clock.Now().Unix(),
	}
	if err := o.queue.Enqueue(ctx, task); err != nil {
		_ = o.jobs.UpdateStatus(ctx, jobID, pipeline.JobStatusError, "failed to queue extraction")
		return fmt.Errorf("enqueue extraction: %w", err)
	}

	o.logger.Info("extraction started",
		zap.String("job_id", jobID),
		zap.Strings("fields", selectedFields),
	)
	return nil
}

// StartCrossReference queues the cross-reference stage. The metadata
// artifact must exist and be non-empty, and only one run per job may be
// in flight at a time.
func (o *Orchestrator) StartCrossReference(ctx context.Context, jobID string) error {
	job, err := o.jobs.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	if !o.artifacts.Exists(jobID, pipeline.ArtifactMetadata) {
		return ErrNoMetadata
	}
	results, err := o.artifacts.Get(ctx, jobID, pipeline.ArtifactMetadata)
	if err != nil {
		return fmt.Errorf("read metadata artifact: %w", err)
	}
	if len(results) == 0 {
		return ErrNoMetadata
	}

	if !o.tracker.TryAcquire(jobID) {
		return ErrAlreadyRunning
	}

	if err := o.jobs.UpdateStatus(ctx, jobID, pipeline.JobStatusProcessing, "Library matching queued"); err != nil {
		o.tracker.Release(jobID)
		return fmt.Errorf("update status: %w", err)
	}

	task := pipeline.StageTask{
		JobID:     jobID,
		Kind:      pipeline.StageCrossReference,
		Params:    job.Parameters,
		Submitted: o.clock.Now().Unix(),
	}
	if err := o.queue.Enqueue(ctx, task); err != nil {
		o.tracker.Release(jobID)
		_ = o.jobs.UpdateStatus(ctx, jobID, pipeline.JobStatusError, "failed to queue library matching")
		return fmt.Errorf("enqueue cross-reference: %w", err)
	}

	o.logger.Info("cross-reference started", zap.String("job_id", jobID))
	return nil
}

// countPDFs reports how many PDFs the job's download folder holds.
func (o *Orchestrator) countPDFs(jobID string) int {
	entries, err := os.ReadDir(filepath.Join(o.cfg.DownloadsDir, jobID))
	if err != nil {
		return 0
	}
	count := 0
	for _, e := range entries {
		if !e.IsDir() && strings.EqualFold(filepath.Ext(e.Name()), ".pdf") {
			count++
		}
	}
	return count
}

// Package worker implements the stage execution loop consuming queued
// stage tasks.
package worker

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/campuslib/syllabus-analyzer/internal/acquire"
	"github.com/campuslib/syllabus-analyzer/internal/pipeline"
	"github.com/campuslib/syllabus-analyzer/internal/progress"
)

// Acquirer downloads discovered references into a job folder.
type Acquirer interface {
	Acquire(
		ctx context.Context,
		refs []pipeline.DocumentRef,
		destDir string,
		prefix string,
		maxDownloads int,
		onProgress acquire.ProgressFunc,
	) acquire.Outcome
}

// Extractor turns one downloaded document into a metadata record. The
// bool is false when the document was skipped.
type Extractor interface {
	Extract(ctx context.Context, path string, selectedFields []string) (pipeline.MetadataRecord, bool)
}

// CrossReferencer checks one record's reading materials against the
// library catalog.
type CrossReferencer interface {
	Check(ctx context.Context, record pipeline.MetadataRecord) pipeline.CrossReferenceResult
}

// CrossRefGate releases the per-job cross-reference slot when the stage
// finishes.
type CrossRefGate interface {
	Release(jobID string)
}

// Config controls Worker behavior.
type Config struct {
	DownloadsDir     string
	PoliSciTargetURL string
	PoliSciPrefix    string
	MaxDownloads     int
}

// Worker consumes stage tasks and executes the matching pipeline stage.
type Worker struct {
	queue      pipeline.Queue
	jobs       pipeline.JobStore
	artifacts  pipeline.ArtifactStore
	discoverer pipeline.Discoverer
	acquirer   Acquirer
	extractor  Extractor
	crossref   CrossReferencer
	gate       CrossRefGate
	emitter    progress.Emitter
	clock      pipeline.Clock
	cfg        Config
	logger     *zap.Logger
}

// New constructs a Worker.
func New(
	queue pipeline.Queue,
	jobs pipeline.JobStore,
	artifacts pipeline.ArtifactStore,
	discoverer pipeline.Discoverer,
	acquirer Acquirer,
	extractor Extractor,
	crossref CrossReferencer,
	gate CrossRefGate,
	emitter progress.Emitter,
	clock pipeline.Clock,
	cfg Config,
	logger *zap.Logger,
) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{
		queue:      queue,
		jobs:       jobs,
		artifacts:  artifacts,
		discoverer: discoverer,
		acquirer:   acquirer,
		extractor:  extractor,
		crossref:   crossref,
		gate:       gate,
		emitter:    emitter,
		clock:      clock,
		cfg:        cfg,
		logger:     logger,
	}
}

// Run blocks, consuming stage tasks until the context finishes.
func (w *Worker) Run(ctx context.Context) {
	for {
		task, err := w.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			w.logger.Error("queue dequeue failed", zap.Error(err))
			continue
		}
		w.logger.Debug("dequeued stage task",
			zap.String("job_id", task.JobID),
			zap.String("stage", string(task.Kind)),
		)
		w.runStage(ctx, task)
	}
}

func (w *Worker) runStage(ctx context.Context, task pipeline.StageTask) {
	start := w.clock.Now()
	w.emit(progress.Event{
		JobID: task.JobID,
		TS:    start,
		Kind:  progress.KindStageStart,
		Stage: task.Kind,
	})

	var err error
	switch task.Kind {
	case pipeline.StageDiscovery:
		err = w.runDiscovery(ctx, task)
	case pipeline.StageExtraction:
		err = w.runExtraction(ctx, task)
	case pipeline.StageCrossReference:
		err = w.runCrossReference(ctx, task)
		if w.gate != nil {
			w.gate.Release(task.JobID)
		}
	default:
		err = fmt.Errorf("unknown stage kind %q", task.Kind)
	}

	evt := progress.Event{
		JobID:    task.JobID,
		TS:       w.clock.Now(),
		Kind:     progress.KindStageDone,
		Stage:    task.Kind,
		Progress: 100,
		Dur:      w.clock.Now().Sub(start),
	}
	if err != nil {
		w.logger.Error("stage failed",
			zap.String("job_id", task.JobID),
			zap.String("stage", string(task.Kind)),
			zap.Error(err),
		)
		evt.Kind = progress.KindStageError
		evt.Progress = 0
		evt.Note = err.Error()
	}
	w.emit(evt)
}

// fail records the stage error on the job row and returns the error for
// the stage event.
func (w *Worker) fail(ctx context.Context, jobID, message string, err error) error {
	text := message
	if err != nil {
		text = fmt.Sprintf("%s: %v", message, err)
	}
	if updErr := w.jobs.UpdateStatus(ctx, jobID, pipeline.JobStatusError, text); updErr != nil {
		w.logger.Error("status update failed", zap.String("job_id", jobID), zap.Error(updErr))
	}
	if err != nil {
		return fmt.Errorf("%s: %w", message, err)
	}
	return fmt.Errorf("%s", message)
}

func (w *Worker) runDiscovery(ctx context.Context, task pipeline.StageTask) error {
	jobID := task.JobID
	if err := w.jobs.UpdateStatus(ctx, jobID, pipeline.JobStatusDownloading, "Starting syllabus discovery..."); err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	sourceURL := task.Params.SourceURL
	prefix := ""
	fetchMessage := "Fetching source page..."
	maxDownloads := task.Params.MaxDownloads
	if maxDownloads <= 0 {
		maxDownloads = w.cfg.MaxDownloads
	}
	if task.Params.Category == pipeline.CategoryPoliSci {
		sourceURL = w.cfg.PoliSciTargetURL
		prefix = w.cfg.PoliSciPrefix
		fetchMessage = "Fetching political science syllabus page..."
	}
	_ = w.jobs.SetProgress(ctx, jobID, 10, fetchMessage)

	refs, err := w.discoverer.Discover(ctx, sourceURL)
	if err != nil {
		return w.fail(ctx, jobID, "Discovery failed", err)
	}

	found := len(refs)
	_ = w.jobs.SetCounters(ctx, jobID, pipeline.JobCounters{FilesFound: &found})
	_ = w.jobs.SetProgress(ctx, jobID, 50, fmt.Sprintf("Found %d PDF files", found))

	if found == 0 {
		// An empty source page is a source error, same as an unreachable one.
		zero := 0
		_ = w.jobs.SetCounters(ctx, jobID, pipeline.JobCounters{FilesDownloaded: &zero})
		return w.fail(ctx, jobID, "No PDF files found on page", nil)
	}

	destDir := filepath.Join(w.cfg.DownloadsDir, jobID)
	if err := os.MkdirAll(destDir, 0o750); err != nil {
		return w.fail(ctx, jobID, "Could not create job folder", err)
	}

	outcome := w.acquirer.Acquire(ctx, refs, destDir, prefix, maxDownloads, func(p acquire.Progress) {
		if p.Total == 0 {
			return
		}
		value := 50 + (40*p.Completed)/p.Total
		message := fmt.Sprintf("Downloading files (%d/%d)", p.Started, p.Total)
		if p.Title != "" {
			message = fmt.Sprintf("Downloading %s (%d/%d)", p.Title, p.Started, p.Total)
		}
		_ = w.jobs.SetProgress(ctx, jobID, value, message)
	})

	for _, res := range outcome.Results {
		w.emit(progress.Event{
			JobID: jobID,
			TS:    w.clock.Now(),
			Kind:  progress.KindItemDone,
			Stage: pipeline.StageDiscovery,
			Item:  res.Filename,
			OK:    res.Err == nil,
		})
	}

	downloaded := outcome.Succeeded
	_ = w.jobs.SetCounters(ctx, jobID, pipeline.JobCounters{FilesDownloaded: &downloaded})

	if downloaded == 0 {
		return w.fail(ctx, jobID, "No files could be downloaded", nil)
	}

	message := fmt.Sprintf("Successfully downloaded %d of %d files", downloaded, outcome.Attempted)
	if err := w.jobs.UpdateStatus(ctx, jobID, pipeline.JobStatusCompleted, message); err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	return nil
}

func (w *Worker) runExtraction(ctx context.Context, task pipeline.StageTask) error {
	jobID := task.JobID
	if err := w.jobs.UpdateStatus(ctx, jobID, pipeline.JobStatusProcessing, "Starting metadata extraction..."); err != nil {
		return fmt.Errorf("update status: %w", err)
	}

	files, err := w.listPDFs(jobID)
	if err != nil {
		return w.fail(ctx, jobID, "Could not read job folder", err)
	}
	if len(files) == 0 {
		return w.fail(ctx, jobID, "No downloaded documents to process", nil)
	}

	total := len(files)
	results := make([]pipeline.DocumentResult, 0, total)
	for i, file := range files {
		name := filepath.Base(file)
		_ = w.jobs.SetProgress(ctx, jobID, (i*90)/total,
			fmt.Sprintf("Processing %s (%d/%d)", name, i+1, total))

		record, ok := w.extractor.Extract(ctx, file, task.SelectedFields)
		_ = w.jobs.SetProgress(ctx, jobID, (i*90)/total+5, "")

		w.emit(progress.Event{
			JobID: jobID,
			TS:    w.clock.Now(),
			Kind:  progress.KindItemDone,
			Stage: pipeline.StageExtraction,
			Item:  name,
			OK:    ok,
		})
		if !ok {
			continue
		}
		results = append(results, pipeline.DocumentResult{
			Filename: record.Filename,
			Metadata: record.Fields,
		})
	}

	_ = w.jobs.SetProgress(ctx, jobID, 95, "Saving extraction results...")

	path, err := w.artifacts.Put(ctx, jobID, pipeline.ArtifactMetadata, results)
	if err != nil {
		return w.fail(ctx, jobID, "Could not save extraction results", err)
	}
	_ = w.jobs.SetResultPath(ctx, jobID, path)

	processed := len(results)
	_ = w.jobs.SetCounters(ctx, jobID, pipeline.JobCounters{FilesProcessed: &processed})

	message := fmt.Sprintf("Metadata extraction complete! Processed %d of %d files", processed, total)
	if err := w.jobs.UpdateStatus(ctx, jobID, pipeline.JobStatusCompleted, message); err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	return nil
}

func (w *Worker) runCrossReference(ctx context.Context, task pipeline.StageTask) error {
	jobID := task.JobID
	if err := w.jobs.UpdateStatus(ctx, jobID, pipeline.JobStatusProcessing, "Starting library resource matching..."); err != nil {
		return fmt.Errorf("update status: %w", err)
	}

	results, err := w.artifacts.Get(ctx, jobID, pipeline.ArtifactMetadata)
	if err != nil {
		return w.fail(ctx, jobID, "Metadata results not found", err)
	}
	if len(results) == 0 {
		return w.fail(ctx, jobID, "No metadata results found to process", nil)
	}

	total := len(results)
	matched := 0
	for i := range results {
		_ = w.jobs.SetProgress(ctx, jobID, (i*90)/total,
			fmt.Sprintf("Checking resources for %s (%d/%d)", results[i].Filename, i+1, total))

		check := w.crossref.Check(ctx, pipeline.MetadataRecord{
			Filename: results[i].Filename,
			Fields:   results[i].Metadata,
		})
		results[i].PrimoCheck = &check
		results[i].LibraryMatches = check.Matches
		if len(check.Matches) > 0 {
			matched++
		}

		w.emit(progress.Event{
			JobID: jobID,
			TS:    w.clock.Now(),
			Kind:  progress.KindItemDone,
			Stage: pipeline.StageCrossReference,
			Item:  results[i].Filename,
			OK:    check.Error == "",
		})
	}

	_ = w.jobs.SetProgress(ctx, jobID, 95, "Saving library matching results...")

	path, err := w.artifacts.Put(ctx, jobID, pipeline.ArtifactPrimoResults, results)
	if err != nil {
		return w.fail(ctx, jobID, "Could not save library matching results", err)
	}
	_ = w.jobs.SetResultPath(ctx, jobID, path)

	message := fmt.Sprintf("Library matching complete! Found matches for %d/%d syllabi", matched, total)
	if err := w.jobs.UpdateStatus(ctx, jobID, pipeline.JobStatusCompleted, message); err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	return nil
}

// listPDFs returns the job folder's PDF files in name order.
func (w *Worker) listPDFs(jobID string) ([]string, error) {
	dir := filepath.Join(w.cfg.DownloadsDir, jobID)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".pdf") {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	sort.Strings(files)
	return files, nil
}

func (w *Worker) emit(evt progress.Event) {
	if w.emitter == nil {
		return
	}
	w.emitter.Emit(evt)
}

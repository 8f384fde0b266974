package pipeline

import (
	"context"
	"time"
)

// JobStore persists job rows and their observable progress.
type JobStore interface {
	CreateJob(ctx context.Context, job Job) error
	GetJob(ctx context.Context, jobID string) (Job, error)
	ListJobs(ctx context.Context) ([]Job, error)
	// UpdateStatus flips the stage status and message. Moving into
	// pending/downloading/processing resets progress for the new stage.
	UpdateStatus(ctx context.Context, jobID string, status JobStatus, message string) error
	// SetProgress reports stage progress; regressions within a stage are
	// ignored so observed progress is monotonically non-decreasing.
	SetProgress(ctx context.Context, jobID string, progress int, message string) error
	SetCounters(ctx context.Context, jobID string, counters JobCounters) error
	SetResultPath(ctx context.Context, jobID string, path string) error
	SetSelectedFields(ctx context.Context, jobID string, fields []string) error
}

// ArtifactStore persists per-stage result artifacts as JSON documents.
type ArtifactStore interface {
	Put(ctx context.Context, jobID, stage string, results []DocumentResult) (string, error)
	Get(ctx context.Context, jobID, stage string) ([]DocumentResult, error)
	Exists(jobID, stage string) bool
}

// Discoverer extracts candidate document references from a page.
type Discoverer interface {
	Discover(ctx context.Context, pageURL string) ([]DocumentRef, error)
}

// TextSource produces the raw material the extraction chain operates on.
// The document is decoded once; table detection operates on the returned
// text downstream.
type TextSource interface {
	// Text extracts the full plain text of a document. An empty string with
	// a nil error means the document has no extractable text.
	Text(ctx context.Context, path string) (string, error)
}

// MetadataStrategy is one link of the extraction fallback chain. A failed
// strategy returns an error and the chain falls through to the next one.
type MetadataStrategy interface {
	Name() string
	Extract(ctx context.Context, text string) (map[string]any, error)
}

// CatalogClient looks up one title against the external availability catalog.
type CatalogClient interface {
	Lookup(ctx context.Context, title, creator string) ([]CatalogMatch, error)
}

// Queue provides enqueue/dequeue semantics for stage tasks.
type Queue interface {
	Enqueue(ctx context.Context, task StageTask) error
	Dequeue(ctx context.Context) (StageTask, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces job IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}

// Package pipeline defines core types shared across subsystems.
package pipeline

import "time"

// JobStatus represents the lifecycle state of a job's current stage.
type JobStatus string

// Job status values persisted in the job store. A job re-enters
// "processing" when a later stage (extraction, cross-reference) is
// requested against it; "completed" and "error" are terminal for a
// single stage invocation only.
const (
	JobStatusPending     JobStatus = "pending"
	JobStatusDownloading JobStatus = "downloading"
	JobStatusProcessing  JobStatus = "processing"
	JobStatusCompleted   JobStatus = "completed"
	JobStatusError       JobStatus = "error"
)

// Category selects the discovery source behavior.
type Category string

// Recognized categories. The default category crawls the caller-supplied
// URL; the political science category substitutes a fixed target page and
// applies a small download cap.
const (
	CategoryArts    Category = "arts"
	CategoryPoliSci Category = "polisci"
)

// JobParameters captures the caller-supplied inputs of a discovery request.
type JobParameters struct {
	SourceURL      string   `json:"url"`
	JobName        string   `json:"job_name,omitempty"`
	Category       Category `json:"category"`
	SelectedFields []string `json:"selected_fields,omitempty"`
	MaxDownloads   int      `json:"max_downloads,omitempty"`
}

// JobCounters tracks per-stage completion stats. Counts only move on
// confirmed completions, never on submissions.
type JobCounters struct {
	FilesFound      *int `json:"files_found,omitempty"`
	FilesDownloaded *int `json:"files_downloaded,omitempty"`
	FilesProcessed  *int `json:"files_processed,omitempty"`
}

// Job represents the metadata persisted for each submitted analysis request.
type Job struct {
	ID         string        `json:"job_id"`
	Status     JobStatus     `json:"status"`
	Progress   int           `json:"progress"`
	Message    string        `json:"message"`
	Counters   JobCounters   `json:"counters"`
	ResultPath string        `json:"result_path,omitempty"`
	CreatedAt  time.Time     `json:"created_at"`
	Parameters JobParameters `json:"parameters"`
}

// DocumentRef is a discovered document prior to acquisition. Identity is
// the URL; Title is display text only.
type DocumentRef struct {
	URL   string `json:"url"`
	Title string `json:"title"`
}

// Unknown is the sentinel value substituted for metadata fields the
// extraction chain could not resolve. Downstream renderers rely on every
// selected field being present, so fields are never omitted.
const Unknown = "Unknown"

// MetadataRecord holds the extracted fields for one downloaded document.
type MetadataRecord struct {
	Filename string         `json:"filename"`
	Fields   map[string]any `json:"metadata"`
}

// Requirement marks a reading material as required or optional.
type Requirement string

// Requirement values produced by the extractors.
const (
	RequirementRequired Requirement = "required"
	RequirementOptional Requirement = "optional"
)

// ReadingMaterial is one entry of a record's reading_materials field.
type ReadingMaterial struct {
	Title       string      `json:"title"`
	Creator     string      `json:"creator,omitempty"`
	Requirement Requirement `json:"requirement"`
	Type        string      `json:"type"`
	URL         string      `json:"url,omitempty"`
}

// Availability classifies a catalog match.
type Availability string

// Availability values reported by the catalog API.
const (
	AvailabilityAvailable   Availability = "available"
	AvailabilityUnavailable Availability = "unavailable"
	AvailabilityUnknown     Availability = "unknown"
)

// CatalogMatch is a single holding returned by the external catalog.
type CatalogMatch struct {
	Title        string       `json:"title"`
	Availability Availability `json:"availability"`
}

// CrossReferenceResult annotates one record with catalog lookup results.
type CrossReferenceResult struct {
	Found   bool           `json:"found"`
	Matches []CatalogMatch `json:"matches,omitempty"`
	Error   string         `json:"error,omitempty"`
}

// DocumentResult is the per-document element of a persisted stage artifact.
type DocumentResult struct {
	Filename       string                `json:"filename"`
	Metadata       map[string]any        `json:"metadata"`
	PrimoCheck     *CrossReferenceResult `json:"primo_check,omitempty"`
	LibraryMatches []CatalogMatch        `json:"library_matches,omitempty"`
}

// StageKind identifies which stage a queued task should run.
type StageKind string

// Stage kinds executed by the worker pool.
const (
	StageDiscovery      StageKind = "discovery"
	StageExtraction     StageKind = "extraction"
	StageCrossReference StageKind = "crossref"
)

// StageTask wraps a stage invocation ready to run.
type StageTask struct {
	JobID          string
	Kind           StageKind
	Params         JobParameters
	SelectedFields []string
	Submitted      int64
}

// MetadataField describes one entry of the static field catalog.
type MetadataField struct {
	ID          string `json:"id"`
	Label       string `json:"label"`
	Description string `json:"description"`
}

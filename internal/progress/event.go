// Package progress defines the event stream emitted by the stage workers.
package progress

import (
	"errors"
	"fmt"
	"time"

	"github.com/campuslib/syllabus-analyzer/internal/pipeline"
)

// Kind denotes the type of milestone represented by an Event.
type Kind string

// Supported progress event kinds.
const (
	KindStageStart Kind = "STAGE_START"
	KindStageDone  Kind = "STAGE_DONE"
	KindStageError Kind = "STAGE_ERROR"
	KindItemDone   Kind = "ITEM_DONE"
)

// Event captures one milestone of a job's stage execution. The job store
// remains the source of truth for polling; events only feed observability
// sinks, so dropping one under backpressure is acceptable.
type Event struct {
	// JobID identifies the job run.
	JobID string
	// TS is the UTC timestamp recorded by the emitter.
	TS time.Time
	// Kind denotes which milestone occurred.
	Kind Kind
	// Stage is the pipeline stage the event belongs to.
	Stage pipeline.StageKind
	// Progress is the stage progress 0..100 at emission time.
	Progress int
	// Item optionally names the document or URL an item event refers to.
	Item string
	// OK reports whether an item completed successfully.
	OK bool
	// Dur captures execution latency for stage completions.
	Dur time.Duration
	// Note lets emitters attach low-volume context (e.g. error text).
	Note string
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.JobID == "" {
		return errors.New("job id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Kind {
	case KindStageStart, KindStageDone, KindStageError:
	case KindItemDone:
		if e.Item == "" {
			return errors.New("item done requires an item")
		}
	default:
		return fmt.Errorf("unknown event kind %q", e.Kind)
	}
	switch e.Stage {
	case pipeline.StageDiscovery, pipeline.StageExtraction, pipeline.StageCrossReference:
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	if e.Progress < 0 || e.Progress > 100 {
		return errors.New("progress must be within 0..100")
	}
	if e.Dur < 0 {
		return errors.New("duration must be >= 0")
	}
	return nil
}

package extract

import (
	"context"

	"github.com/campuslib/syllabus-analyzer/internal/pipeline"
)

// SentinelStrategy is the terminal link of the extraction chain. It never
// fails and reports every field as Unknown, so a document that defeated
// every real strategy still produces a record instead of vanishing from
// the results.
type SentinelStrategy struct{}

// NewSentinelStrategy returns the always-succeeding terminal strategy.
func NewSentinelStrategy() *SentinelStrategy { return &SentinelStrategy{} }

// Name identifies the strategy in logs and fallback messages.
func (s *SentinelStrategy) Name() string { return "sentinel" }

// Extract reports Unknown for every known field.
func (s *SentinelStrategy) Extract(context.Context, string) (map[string]any, error) {
	fields := map[string]any{}
	for _, f := range pipeline.Fields() {
		if f.ID == pipeline.FieldReadingMaterials {
			fields[f.ID] = []any{}
			continue
		}
		fields[f.ID] = pipeline.Unknown
	}
	return fields, nil
}

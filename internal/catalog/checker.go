package catalog

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/campuslib/syllabus-analyzer/internal/pipeline"
)

// noMaterialsError is reported without any network traffic when a record
// carries no reading materials to check.
const noMaterialsError = "no reading materials found in metadata"

// Checker runs catalog lookups for every reading material of one record.
// Lookup failures are captured in the result, never propagated, so one
// flaky title cannot fail a whole cross-reference stage.
type Checker struct {
	client pipeline.CatalogClient
	logger *zap.Logger
}

// NewChecker wraps a catalog client.
func NewChecker(client pipeline.CatalogClient, logger *zap.Logger) *Checker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Checker{client: client, logger: logger}
}

// Check cross-references one record's reading materials and returns the
// aggregated result.
func (c *Checker) Check(ctx context.Context, record pipeline.MetadataRecord) pipeline.CrossReferenceResult {
	materials := pipeline.MaterialsFromField(record.Fields[pipeline.FieldReadingMaterials])
	if len(materials) == 0 {
		return pipeline.CrossReferenceResult{Found: false, Error: noMaterialsError}
	}

	var (
		matches  []pipeline.CatalogMatch
		failures []string
	)
	for _, material := range materials {
		found, err := c.client.Lookup(ctx, material.Title, material.Creator)
		if err != nil {
			c.logger.Warn("catalog lookup failed",
				zap.String("filename", record.Filename),
				zap.String("title", material.Title),
				zap.Error(err))
			failures = append(failures, fmt.Sprintf("%s: %v", material.Title, err))
			continue
		}
		matches = append(matches, found...)
	}

	result := pipeline.CrossReferenceResult{
		Found:   len(matches) > 0,
		Matches: matches,
	}
	if len(failures) > 0 {
		result.Error = "API error: " + strings.Join(failures, "; ")
	}
	return result
}

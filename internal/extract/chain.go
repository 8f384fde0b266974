package extract

import (
	"context"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/campuslib/syllabus-analyzer/internal/pipeline"
)

// Chain runs text extraction and then the metadata strategies in order,
// falling through on error until one succeeds. With a sentinel strategy at
// the end of the list the chain itself cannot fail; only a document with
// no extractable text is skipped.
type Chain struct {
	source     pipeline.TextSource
	strategies []pipeline.MetadataStrategy
	logger     *zap.Logger
}

// NewChain assembles the extraction chain. Callers normally pass
// [LLMStrategy, HeuristicStrategy, SentinelStrategy].
func NewChain(source pipeline.TextSource, strategies []pipeline.MetadataStrategy, logger *zap.Logger) *Chain {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Chain{source: source, strategies: strategies, logger: logger}
}

// Extract produces a metadata record for one document, filtered to the
// selected fields with Unknown filled in for anything absent. The bool is
// false when the document had no extractable text and was skipped.
func (c *Chain) Extract(ctx context.Context, path string, selectedFields []string) (pipeline.MetadataRecord, bool) {
	filename := filepath.Base(path)
	record := pipeline.MetadataRecord{Filename: filename, Fields: map[string]any{}}

	text, err := c.source.Text(ctx, path)
	if err != nil || text == "" {
		c.logger.Warn("skipping document without extractable text",
			zap.String("filename", filename),
			zap.Error(err))
		return record, false
	}

	if tables := DetectTables(text); len(tables) > 0 {
		text = CombineText(text, tables)
	}

	var fields map[string]any
	for _, strategy := range c.strategies {
		fields, err = strategy.Extract(ctx, text)
		if err == nil {
			c.logger.Debug("extraction strategy succeeded",
				zap.String("filename", filename),
				zap.String("strategy", strategy.Name()))
			break
		}
		c.logger.Warn("extraction strategy failed, falling through",
			zap.String("filename", filename),
			zap.String("strategy", strategy.Name()),
			zap.Error(err))
		fields = nil
	}

	for _, id := range selectedFields {
		v, ok := fields[id]
		if !ok || v == nil {
			if id == pipeline.FieldReadingMaterials {
				record.Fields[id] = []any{}
			} else {
				record.Fields[id] = pipeline.Unknown
			}
			continue
		}
		record.Fields[id] = v
	}
	return record, true
}

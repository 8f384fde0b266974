// Package sinks provides progress sink implementations.
package sinks

import (
	"context"

	"go.uber.org/zap"

	"github.com/campuslib/syllabus-analyzer/internal/progress"
)

// LogSink emits structured logs for the progress stream. Useful during
// development and when debugging stuck jobs in the field.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink wires a Zap logger to the sink interface.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

// Consume logs each event in the batch using structured fields.
func (s *LogSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		s.logger.Info("progress event",
			zap.String("job_id", evt.JobID),
			zap.String("kind", string(evt.Kind)),
			zap.String("stage", string(evt.Stage)),
			zap.Int("progress", evt.Progress),
			zap.String("item", evt.Item),
			zap.Bool("ok", evt.OK),
			zap.Duration("dur", evt.Dur),
			zap.String("note", evt.Note),
		)
	}
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *LogSink) Close(context.Context) error {
	return nil
}

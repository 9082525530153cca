// Package sinks contains the bundled progress.Sink implementations.
package sinks

import (
	"context"

	"go.uber.org/zap"

	"github.com/pagelift/pagelift/internal/progress"
)

// LogSink emits structured logs for the progress stream. Useful during
// development or when no metrics backend is configured.
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
			zap.String("scan_id", evt.ScanID),
			zap.String("stage", string(evt.Stage)),
			zap.String("url", evt.URL),
			zap.Int64("bytes", evt.Bytes),
			zap.Int("score", evt.Score),
			zap.Int("links", evt.Links),
			zap.String("status_class", string(evt.StatusClass)),
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

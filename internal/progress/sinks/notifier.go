package sinks

import (
	"context"

	"go.uber.org/zap"

	"github.com/pagelift/pagelift/internal/progress"
	"github.com/pagelift/pagelift/internal/seo"
)

// NotifierSink forwards terminal events (scan completion, publishes) to a
// seo.Notifier so downstream consumers hear about them without polling.
type NotifierSink struct {
	notifier seo.Notifier
	logger   *zap.Logger
}

// NewNotifierSink wires a notifier to the sink interface.
func NewNotifierSink(notifier seo.Notifier, logger *zap.Logger) *NotifierSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotifierSink{notifier: notifier, logger: logger}
}

// notificationPayload is the JSON body sent for each forwarded event.
type notificationPayload struct {
	ScanID string `json:"scan_id,omitempty"`
	Stage  string `json:"stage"`
	URL    string `json:"url,omitempty"`
	Note   string `json:"note,omitempty"`
}

// Consume publishes one message per terminal event; other stages are skipped.
// Publish failures are logged, not returned, so one slow broker does not
// stall the hub.
func (s *NotifierSink) Consume(ctx context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		var topic string
		switch evt.Stage {
		case progress.StageScanDone, progress.StageScanError:
			topic = "scan.completed"
		case progress.StagePostPublished:
			topic = "post.published"
		default:
			continue
		}
		payload := notificationPayload{
			ScanID: evt.ScanID,
			Stage:  string(evt.Stage),
			URL:    evt.URL,
			Note:   evt.Note,
		}
		if _, err := s.notifier.Publish(ctx, topic, payload); err != nil {
			s.logger.Warn("progress notification failed",
				zap.String("topic", topic),
				zap.String("scan_id", evt.ScanID),
				zap.Error(err),
			)
		}
	}
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *NotifierSink) Close(context.Context) error {
	return nil
}

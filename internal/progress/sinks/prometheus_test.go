package sinks

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/pagelift/pagelift/internal/progress"
	"github.com/pagelift/pagelift/internal/seo"

	notifymem "github.com/pagelift/pagelift/internal/notify/memory"
)

func TestPrometheusSinkScanLifecycle(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	sink, err := NewPrometheusSink(reg)
	require.NoError(t, err)

	now := time.Now().UTC()
	batch := []progress.Event{
		{ScanID: "s1", TS: now, Stage: progress.StageScanStart},
		{ScanID: "s1", TS: now, Stage: progress.StagePageFetched, URL: "u", StatusClass: progress.Status2xx, Bytes: 1024, Dur: 100 * time.Millisecond, Score: 85},
		{ScanID: "s1", TS: now, Stage: progress.StagePageFailed, URL: "u2"},
		{ScanID: "s1", TS: now, Stage: progress.StageDraftGenerated},
		{ScanID: "s1", TS: now, Stage: progress.StageLinksPlaced, Links: 3},
		{ScanID: "s1", TS: now, Stage: progress.StagePostPublished, URL: "https://blog.example/post/"},
		{ScanID: "s1", TS: now, Stage: progress.StageScanDone, Dur: 5 * time.Second},
		{TS: now, Stage: progress.StageCycleDone},
		{TS: now, Stage: progress.StageCycleError},
	}
	require.NoError(t, sink.Consume(context.Background(), batch))

	require.Equal(t, float64(1), testutil.ToFloat64(sink.scansStarted))
	require.Equal(t, float64(0), testutil.ToFloat64(sink.scansRunning))
	require.Equal(t, float64(1), testutil.ToFloat64(sink.scansCompleted.WithLabelValues("success")))
	require.Equal(t, float64(1), testutil.ToFloat64(sink.pagesFetched.WithLabelValues("2xx")))
	require.Equal(t, float64(1), testutil.ToFloat64(sink.pagesFailed))
	require.Equal(t, float64(1024), testutil.ToFloat64(sink.fetchBytes))
	require.Equal(t, float64(1), testutil.ToFloat64(sink.draftsGenerated))
	require.Equal(t, float64(3), testutil.ToFloat64(sink.linksPlaced))
	require.Equal(t, float64(1), testutil.ToFloat64(sink.postsPublished))
	require.Equal(t, float64(1), testutil.ToFloat64(sink.cyclesCompleted.WithLabelValues("success")))
	require.Equal(t, float64(1), testutil.ToFloat64(sink.cyclesCompleted.WithLabelValues("error")))
}

func TestPrometheusSinkRunningGauge(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	sink, err := NewPrometheusSink(reg)
	require.NoError(t, err)

	now := time.Now().UTC()
	require.NoError(t, sink.Consume(context.Background(), []progress.Event{
		{ScanID: "a", TS: now, Stage: progress.StageScanStart},
		{ScanID: "b", TS: now, Stage: progress.StageScanStart},
		{ScanID: "a", TS: now, Stage: progress.StageScanStart}, // duplicate start
	}))
	require.Equal(t, float64(2), testutil.ToFloat64(sink.scansRunning))

	require.NoError(t, sink.Consume(context.Background(), []progress.Event{
		{ScanID: "a", TS: now, Stage: progress.StageScanError},
		{ScanID: "a", TS: now, Stage: progress.StageScanError}, // duplicate completion
	}))
	require.Equal(t, float64(1), testutil.ToFloat64(sink.scansRunning))
}

func TestNotifierSinkForwardsTerminalEvents(t *testing.T) {
	t.Parallel()

	notifier := notifymem.New()
	sink := NewNotifierSink(notifier, nil)

	now := time.Now().UTC()
	require.NoError(t, sink.Consume(context.Background(), []progress.Event{
		{ScanID: "s1", TS: now, Stage: progress.StagePageFetched, URL: "u", StatusClass: progress.Status2xx},
		{ScanID: "s1", TS: now, Stage: progress.StageScanDone},
		{ScanID: "s1", TS: now, Stage: progress.StagePostPublished, URL: "https://blog.example/p/", Note: "post_id=9"},
	}))

	msgs := notifier.Messages()
	require.Len(t, msgs, 2)
	require.Equal(t, "scan.completed", msgs[0].Topic)
	require.Equal(t, "post.published", msgs[1].Topic)

	payload, ok := msgs[1].Payload.(notificationPayload)
	require.True(t, ok)
	require.Equal(t, "https://blog.example/p/", payload.URL)
}

var _ seo.Notifier = (*notifymem.Notifier)(nil)

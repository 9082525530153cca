package sinks

import (
	"context"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/pagelift/pagelift/internal/progress"
)

// PrometheusSink exports pipeline metrics. It owns the collectors for scan
// lifecycle, page fetches, draft generation and publishes.
type PrometheusSink struct {
	scansStarted   prometheus.Counter
	scansCompleted *prometheus.CounterVec
	scansRunning   prometheus.Gauge
	scanRuntime    *prometheus.HistogramVec

	pagesFetched  *prometheus.CounterVec
	pagesFailed   prometheus.Counter
	fetchBytes    prometheus.Counter
	fetchDuration *prometheus.HistogramVec
	pageScore     prometheus.Histogram

	draftsGenerated prometheus.Counter
	linksPlaced     prometheus.Counter
	postsPublished  prometheus.Counter
	cyclesCompleted *prometheus.CounterVec

	tracker *scanTracker
}

// NewPrometheusSink registers the collectors against the provided registry.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		scansStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pagelift_scans_started_total",
			Help: "Total scans that have started.",
		}),
		scansCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pagelift_scans_completed_total",
			Help: "Total scans completed partitioned by result.",
		}, []string{"result"}),
		scansRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pagelift_scans_running",
			Help: "Current number of running scans.",
		}),
		scanRuntime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pagelift_scan_runtime_seconds",
			Help:    "Wall time per completed scan.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
		}, []string{"result"}),
		pagesFetched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pagelift_pages_fetched_total",
			Help: "Page fetch completions partitioned by status class.",
		}, []string{"status_class"}),
		pagesFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pagelift_pages_failed_total",
			Help: "Pages that could not be fetched.",
		}),
		fetchBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pagelift_fetch_bytes_total",
			Help: "Bytes downloaded across page fetches.",
		}),
		fetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pagelift_page_fetch_duration_seconds",
			Help:    "Page fetch duration partitioned by status class.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
		}, []string{"status_class"}),
		pageScore: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "pagelift_page_score",
			Help:    "Quality score distribution for fetched pages.",
			Buckets: []float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100},
		}),
		draftsGenerated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pagelift_drafts_generated_total",
			Help: "Drafts produced by the generator.",
		}),
		linksPlaced: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pagelift_links_placed_total",
			Help: "Internal links accepted by the link engine.",
		}),
		postsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pagelift_posts_published_total",
			Help: "Posts pushed to WordPress.",
		}),
		cyclesCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pagelift_autopilot_cycles_total",
			Help: "Completed autopilot cycles partitioned by result.",
		}, []string{"result"}),
		tracker: newScanTracker(),
	}
	for _, collector := range []prometheus.Collector{
		s.scansStarted, s.scansCompleted, s.scansRunning, s.scanRuntime,
		s.pagesFetched, s.pagesFailed, s.fetchBytes, s.fetchDuration, s.pageScore,
		s.draftsGenerated, s.linksPlaced, s.postsPublished, s.cyclesCompleted,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register progress collector: %w", err)
		}
	}
	return s, nil
}

// Consume updates the collectors using the provided batch. It is safe for
// concurrent use by multiple goroutines.
func (s *PrometheusSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		s.consumeEvent(evt)
	}
	return nil
}

func (s *PrometheusSink) consumeEvent(evt progress.Event) {
	switch evt.Stage {
	case progress.StageScanStart:
		s.scansStarted.Inc()
		if s.tracker.start(evt.ScanID) {
			s.scansRunning.Inc()
		}
	case progress.StageScanDone:
		s.completeScan(evt, "success")
	case progress.StageScanError:
		s.completeScan(evt, "error")
	case progress.StagePageFetched:
		statusClass := string(evt.StatusClass)
		if statusClass == "" {
			statusClass = string(progress.StatusOther)
		}
		s.pagesFetched.WithLabelValues(statusClass).Inc()
		if evt.Bytes > 0 {
			s.fetchBytes.Add(float64(evt.Bytes))
		}
		if evt.Dur > 0 {
			s.fetchDuration.WithLabelValues(statusClass).Observe(evt.Dur.Seconds())
		}
		s.pageScore.Observe(float64(evt.Score))
	case progress.StagePageFailed:
		s.pagesFailed.Inc()
	case progress.StageDraftGenerated:
		s.draftsGenerated.Inc()
	case progress.StageLinksPlaced:
		s.linksPlaced.Add(float64(evt.Links))
	case progress.StagePostPublished:
		s.postsPublished.Inc()
	case progress.StageCycleDone:
		s.cyclesCompleted.WithLabelValues("success").Inc()
	case progress.StageCycleError:
		s.cyclesCompleted.WithLabelValues("error").Inc()
	}
}

func (s *PrometheusSink) completeScan(evt progress.Event, result string) {
	s.scansCompleted.WithLabelValues(result).Inc()
	if evt.Dur > 0 {
		s.scanRuntime.WithLabelValues(result).Observe(evt.Dur.Seconds())
	}
	if s.tracker.complete(evt.ScanID) {
		s.scansRunning.Dec()
	}
}

// Close implements the Sink interface; it performs no action.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}

type scanTracker struct {
	mu      sync.Mutex
	running map[string]struct{}
}

func newScanTracker() *scanTracker {
	return &scanTracker{running: make(map[string]struct{})}
}

func (t *scanTracker) start(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.running[id]; ok {
		return false
	}
	t.running[id] = struct{}{}
	return true
}

func (t *scanTracker) complete(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.running[id]; !ok {
		return false
	}
	delete(t.running, id)
	return true
}

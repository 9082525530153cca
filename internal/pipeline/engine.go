// Package pipeline executes scans and the autonomous
// scan-score-generate-publish loop on top of the component packages.
package pipeline

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/pagelift/pagelift/internal/corpus"
	"github.com/pagelift/pagelift/internal/progress"
	"github.com/pagelift/pagelift/internal/seo"
)

// Discoverer walks sitemaps and returns the page URLs of a site.
type Discoverer interface {
	Discover(ctx context.Context, sitemapURL, siteURL string) ([]string, error)
}

// Collector fetches a batch of pages and extracts their content.
type Collector interface {
	Collect(ctx context.Context, urls []string, opts corpus.CollectOptions) []corpus.PageFetch
}

// Scorer rates extracted page content.
type Scorer interface {
	Score(content seo.PageContent, statusCode int) int
}

// EngineConfig controls scan execution.
type EngineConfig struct {
	// SnapshotContentType is stored with page snapshots.
	SnapshotContentType string
	// SnapshotPrefix prefixes snapshot object paths.
	SnapshotPrefix string
}

// ScoredPage couples a persisted page record with its extracted content for
// in-process consumers (the autopilot's link corpus).
type ScoredPage struct {
	Record  seo.PageRecord
	Content seo.PageContent
}

// ScanOutcome summarizes a finished scan run.
type ScanOutcome struct {
	Counters seo.ScanCounters
	Pages    []ScoredPage
}

// Engine runs a single scan end to end: discovery, collection, scoring,
// snapshotting and persistence.
type Engine struct {
	discoverer Discoverer
	collector  Collector
	scorer     Scorer
	store      seo.ScanStore
	snapshots  seo.SnapshotStore
	hasher     seo.Hasher
	clock      seo.Clock
	emitter    progress.Emitter
	cfg        EngineConfig
	logger     *zap.Logger
}

// NewEngine wires the scan dependencies. snapshots may be nil, disabling
// page snapshotting; emitter may be nil.
func NewEngine(
	discoverer Discoverer,
	collector Collector,
	scorer Scorer,
	store seo.ScanStore,
	snapshots seo.SnapshotStore,
	hasher seo.Hasher,
	clock seo.Clock,
	emitter progress.Emitter,
	cfg EngineConfig,
	logger *zap.Logger,
) *Engine {
	if cfg.SnapshotContentType == "" {
		cfg.SnapshotContentType = "text/html; charset=utf-8"
	}
	if emitter == nil {
		emitter = progress.NopEmitter{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		discoverer: discoverer,
		collector:  collector,
		scorer:     scorer,
		store:      store,
		snapshots:  snapshots,
		hasher:     hasher,
		clock:      clock,
		emitter:    emitter,
		cfg:        cfg,
		logger:     logger,
	}
}

// RunScan executes the scan and drives its status through the store. The
// returned outcome is also fully persisted; callers that only need the
// stored form can ignore it.
func (e *Engine) RunScan(ctx context.Context, scan seo.Scan) (ScanOutcome, error) {
	started := e.clock.Now()
	counters := seo.ScanCounters{}

	if err := e.store.UpdateScanStatus(ctx, scan.ID, seo.ScanStatusRunning, "", counters); err != nil {
		return ScanOutcome{}, fmt.Errorf("mark scan running: %w", err)
	}
	e.emitter.Emit(progress.Event{ScanID: scan.ID, TS: started, Stage: progress.StageScanStart})

	outcome, runErr := e.runScan(ctx, scan, &counters)

	status := seo.ScanStatusSucceeded
	errText := ""
	stage := progress.StageScanDone
	switch {
	case ctx.Err() != nil:
		status = seo.ScanStatusCanceled
		errText = ctx.Err().Error()
		stage = progress.StageScanError
	case runErr != nil:
		status = seo.ScanStatusFailed
		errText = runErr.Error()
		stage = progress.StageScanError
	}

	// Terminal updates must land even when the scan context is gone.
	finishCtx := context.WithoutCancel(ctx)
	if err := e.store.UpdateScanStatus(finishCtx, scan.ID, status, errText, counters); err != nil {
		e.logger.Error("final scan status update failed",
			zap.String("scan_id", scan.ID), zap.Error(err))
	}
	e.emitter.Emit(progress.Event{
		ScanID: scan.ID,
		TS:     e.clock.Now(),
		Stage:  stage,
		Dur:    e.clock.Now().Sub(started),
		Note:   errText,
	})

	outcome.Counters = counters
	return outcome, runErr
}

func (e *Engine) runScan(ctx context.Context, scan seo.Scan, counters *seo.ScanCounters) (ScanOutcome, error) {
	params := scan.Parameters
	urls, err := e.discoverer.Discover(ctx, params.SitemapURL, params.SiteURL)
	if err != nil {
		return ScanOutcome{}, fmt.Errorf("sitemap discovery: %w", err)
	}
	if params.MaxURLs > 0 && len(urls) > params.MaxURLs {
		urls = urls[:params.MaxURLs]
	}
	counters.URLsDiscovered = len(urls)
	e.logger.Info("sitemap discovered",
		zap.String("scan_id", scan.ID),
		zap.Int("urls", len(urls)),
	)

	if !params.CollectContent {
		return ScanOutcome{}, nil
	}

	opts := corpus.CollectOptions{Concurrency: params.Concurrency}
	if params.RespectRobotsProvided {
		opts.RespectRobots = &params.RespectRobots
	}

	outcome := ScanOutcome{Pages: make([]ScoredPage, 0, len(urls))}
	for _, fetch := range e.collector.Collect(ctx, urls, opts) {
		if ctx.Err() != nil {
			return outcome, ctx.Err()
		}
		page := e.recordFetch(ctx, scan.ID, fetch, counters)
		if fetch.Err == nil {
			outcome.Pages = append(outcome.Pages, ScoredPage{Record: page, Content: fetch.Content})
		}
	}
	return outcome, nil
}

// recordFetch persists one page outcome and emits its progress event.
func (e *Engine) recordFetch(ctx context.Context, scanID string, fetch corpus.PageFetch, counters *seo.ScanCounters) seo.PageRecord {
	now := e.clock.Now()
	page := seo.PageRecord{
		ScanID:       scanID,
		URL:          fetch.URL,
		StatusCode:   fetch.Response.StatusCode,
		FetchedAt:    now,
		DurationMs:   fetch.Response.Duration.Milliseconds(),
		UsedHeadless: fetch.Response.UsedHeadless,
	}

	if fetch.Err != nil {
		counters.PagesFailed++
		e.emitter.Emit(progress.Event{
			ScanID: scanID,
			TS:     now,
			Stage:  progress.StagePageFailed,
			URL:    fetch.URL,
			Note:   fetch.Err.Error(),
		})
		if err := e.store.RecordPage(ctx, page); err != nil {
			e.logger.Error("record failed page", zap.String("url", fetch.URL), zap.Error(err))
		}
		return page
	}

	content := fetch.Content
	page.Title = content.Title
	page.MetaDescription = content.MetaDescription
	page.WordCount = corpus.WordCount(content.Text)
	page.H1Count = content.H1Count
	page.Score = e.scorer.Score(content, fetch.Response.StatusCode)

	if hash, err := e.hasher.Hash(fetch.Response.Body); err == nil {
		page.ContentHash = hash
	}
	if e.snapshots != nil && len(fetch.Response.Body) > 0 {
		path := e.snapshotPath(scanID, page.ContentHash, fetch.URL)
		uri, err := e.snapshots.PutObject(ctx, path, e.cfg.SnapshotContentType, fetch.Response.Body)
		if err != nil {
			e.logger.Warn("page snapshot failed", zap.String("url", fetch.URL), zap.Error(err))
		} else {
			page.SnapshotURI = uri
		}
	}

	counters.PagesFetched++
	if err := e.store.RecordPage(ctx, page); err != nil {
		e.logger.Error("record page", zap.String("url", fetch.URL), zap.Error(err))
	}
	e.emitter.Emit(progress.Event{
		ScanID:      scanID,
		TS:          now,
		Stage:       progress.StagePageFetched,
		URL:         fetch.URL,
		Bytes:       int64(len(fetch.Response.Body)),
		Score:       page.Score,
		StatusClass: progress.ClassifyStatus(fetch.Response.StatusCode),
		Dur:         fetch.Response.Duration,
	})
	return page
}

func (e *Engine) snapshotPath(scanID, hash, pageURL string) string {
	name := hash
	if name == "" {
		name = slugify(pageURL)
	}
	path := fmt.Sprintf("scans/%s/%s.html", scanID, name)
	if prefix := strings.Trim(e.cfg.SnapshotPrefix, "/"); prefix != "" {
		path = prefix + "/" + path
	}
	return path
}

func slugify(raw string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(raw) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteRune('-')
		}
	}
	return strings.Trim(b.String(), "-")
}

package pipeline

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/pagelift/pagelift/internal/linker"
	"github.com/pagelift/pagelift/internal/progress"
	"github.com/pagelift/pagelift/internal/seo"
)

// LinkPlacer selects internal link placements for a draft.
type LinkPlacer interface {
	Place(draft, selfURL string, targets []linker.Target) []seo.LinkPlacement
}

// AutopilotConfig controls the autonomous refresh loop.
type AutopilotConfig struct {
	// Interval is the pause between cycles.
	Interval time.Duration
	// PagesPerCycle caps how many pages are refreshed per cycle.
	PagesPerCycle int
	// MinScore is the refresh threshold: pages scoring at or above it are
	// left alone.
	MinScore int
	// PublishStatus is the WordPress status for refreshed posts.
	PublishStatus string
	// StopAfterCycle runs exactly one cycle and returns.
	StopAfterCycle bool
	// TargetWords is passed through to the generator.
	TargetWords int
	// SiteContext describes the site for generation prompts.
	SiteContext string
	// ScanParameters template for each cycle's scan. CollectContent is
	// forced on.
	ScanParameters seo.ScanParameters
}

// Autopilot runs the scan-score-generate-publish loop. Cycles run one at a
// time; per-page failures are logged and skipped so a bad page cannot stall
// the loop.
type Autopilot struct {
	engine    *Engine
	store     seo.ScanStore
	generator seo.Generator
	placer    LinkPlacer
	publisher seo.PostPublisher
	snapshots seo.SnapshotStore
	clock     seo.Clock
	idgen     seo.IDGenerator
	emitter   progress.Emitter
	cfg       AutopilotConfig
	logger    *zap.Logger
}

// NewAutopilot wires the loop's dependencies. snapshots may be nil.
func NewAutopilot(
	engine *Engine,
	store seo.ScanStore,
	gen seo.Generator,
	placer LinkPlacer,
	publisher seo.PostPublisher,
	snapshots seo.SnapshotStore,
	clock seo.Clock,
	idgen seo.IDGenerator,
	emitter progress.Emitter,
	cfg AutopilotConfig,
	logger *zap.Logger,
) *Autopilot {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Hour
	}
	if cfg.PagesPerCycle <= 0 {
		cfg.PagesPerCycle = 3
	}
	if cfg.MinScore <= 0 {
		cfg.MinScore = 60
	}
	if cfg.PublishStatus == "" {
		cfg.PublishStatus = "draft"
	}
	if emitter == nil {
		emitter = progress.NopEmitter{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg.ScanParameters.CollectContent = true
	return &Autopilot{
		engine:    engine,
		store:     store,
		generator: gen,
		placer:    placer,
		publisher: publisher,
		snapshots: snapshots,
		clock:     clock,
		idgen:     idgen,
		emitter:   emitter,
		cfg:       cfg,
		logger:    logger,
	}
}

// Run executes cycles until the context ends (or after one cycle when
// StopAfterCycle is set). Cycle failures are logged; only cancellation
// stops the loop.
func (a *Autopilot) Run(ctx context.Context) error {
	for {
		if err := a.RunCycle(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			a.logger.Error("autopilot cycle failed", zap.Error(err))
		}
		if a.cfg.StopAfterCycle {
			return nil
		}
		select {
		case <-time.After(a.cfg.Interval):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// RunCycle performs one full scan-and-refresh pass.
func (a *Autopilot) RunCycle(ctx context.Context) error {
	scanID, err := a.idgen.NewID()
	if err != nil {
		return fmt.Errorf("new scan id: %w", err)
	}
	scan := seo.Scan{
		ID:         scanID,
		Status:     seo.ScanStatusQueued,
		Submitted:  a.clock.Now(),
		Parameters: a.cfg.ScanParameters,
	}
	if err := a.store.CreateScan(ctx, scan); err != nil {
		return fmt.Errorf("create cycle scan: %w", err)
	}

	outcome, err := a.engine.RunScan(ctx, scan)
	if err != nil {
		return fmt.Errorf("cycle scan: %w", err)
	}

	targets := buildTargets(outcome.Pages)
	candidates := a.pickCandidates(outcome.Pages)
	refreshed := 0
	for _, page := range candidates {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := a.refreshPage(ctx, scanID, page, targets); err != nil {
			a.logger.Warn("page refresh failed",
				zap.String("scan_id", scanID),
				zap.String("url", page.Record.URL),
				zap.Error(err),
			)
			continue
		}
		refreshed++
	}

	// A cycle with candidates where every refresh failed is a failed cycle.
	if len(candidates) > 0 && refreshed == 0 {
		a.logger.Error("autopilot cycle failed",
			zap.String("scan_id", scanID),
			zap.Int("candidates", len(candidates)),
		)
		a.emitter.Emit(progress.Event{
			TS:    a.clock.Now(),
			Stage: progress.StageCycleError,
			Note:  fmt.Sprintf("scan=%s candidates=%d refreshed=0", scanID, len(candidates)),
		})
		return fmt.Errorf("cycle %s: all %d page refreshes failed", scanID, len(candidates))
	}

	a.logger.Info("autopilot cycle complete",
		zap.String("scan_id", scanID),
		zap.Int("pages_scanned", len(outcome.Pages)),
		zap.Int("pages_refreshed", refreshed),
	)
	a.emitter.Emit(progress.Event{
		TS:    a.clock.Now(),
		Stage: progress.StageCycleDone,
		Note:  fmt.Sprintf("scan=%s refreshed=%d", scanID, refreshed),
	})
	return nil
}

// pickCandidates returns the weakest pages below the refresh threshold,
// lowest score first, capped at PagesPerCycle.
func (a *Autopilot) pickCandidates(pages []ScoredPage) []ScoredPage {
	var out []ScoredPage
	for _, p := range pages {
		if p.Record.StatusCode < 200 || p.Record.StatusCode >= 300 {
			continue
		}
		if p.Record.Score >= a.cfg.MinScore {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Record.Score != out[j].Record.Score {
			return out[i].Record.Score < out[j].Record.Score
		}
		return out[i].Record.URL < out[j].Record.URL
	})
	if len(out) > a.cfg.PagesPerCycle {
		out = out[:a.cfg.PagesPerCycle]
	}
	return out
}

func (a *Autopilot) refreshPage(ctx context.Context, scanID string, page ScoredPage, targets []linker.Target) error {
	topic := page.Content.Title
	if topic == "" {
		topic = slugify(page.Record.URL)
	}

	draft, err := a.generator.Generate(ctx, seo.GenerationRequest{
		Topic:       topic,
		Keywords:    keywordsFrom(page.Content.Headings),
		TargetWords: a.cfg.TargetWords,
		SiteContext: a.cfg.SiteContext,
	})
	if err != nil {
		return fmt.Errorf("generate draft: %w", err)
	}
	draft.TargetURL = page.Record.URL
	a.emitter.Emit(progress.Event{
		ScanID: scanID,
		TS:     a.clock.Now(),
		Stage:  progress.StageDraftGenerated,
		URL:    page.Record.URL,
	})

	content := draft.HTML
	placements := a.placer.Place(draft.HTML, page.Record.URL, targets)
	if len(placements) > 0 {
		linked, err := linker.Apply(draft.HTML, placements)
		if err != nil {
			return fmt.Errorf("apply links: %w", err)
		}
		content = linked
	}
	a.emitter.Emit(progress.Event{
		ScanID: scanID,
		TS:     a.clock.Now(),
		Stage:  progress.StageLinksPlaced,
		URL:    page.Record.URL,
		Links:  len(placements),
	})

	if a.snapshots != nil {
		path := fmt.Sprintf("scans/%s/drafts/%s.html", scanID, slugify(page.Record.URL))
		if _, err := a.snapshots.PutObject(ctx, path, "text/html; charset=utf-8", []byte(content)); err != nil {
			a.logger.Warn("draft snapshot failed", zap.String("url", page.Record.URL), zap.Error(err))
		}
	}

	result, err := a.publisher.CreatePost(ctx, seo.PublishRequest{
		Title:   draft.Title,
		Content: content,
		Status:  a.cfg.PublishStatus,
	})
	if err != nil {
		return fmt.Errorf("publish post: %w", err)
	}
	a.emitter.Emit(progress.Event{
		ScanID: scanID,
		TS:     a.clock.Now(),
		Stage:  progress.StagePostPublished,
		URL:    result.Link,
		Note:   fmt.Sprintf("post_id=%d status=%s", result.PostID, result.Status),
	})
	return nil
}

// buildTargets converts scanned pages into the link corpus.
func buildTargets(pages []ScoredPage) []linker.Target {
	targets := make([]linker.Target, 0, len(pages))
	for _, p := range pages {
		if p.Record.StatusCode < 200 || p.Record.StatusCode >= 300 {
			continue
		}
		targets = append(targets, linker.Target{
			URL:   p.Record.URL,
			Title: p.Content.Title,
			Text:  p.Content.Text,
		})
	}
	return targets
}

func keywordsFrom(headings []string) []string {
	const maxKeywords = 5
	if len(headings) > maxKeywords {
		headings = headings[:maxKeywords]
	}
	return append([]string(nil), headings...)
}

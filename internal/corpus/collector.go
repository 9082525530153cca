package corpus

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pagelift/pagelift/internal/seo"
)

// CollectorConfig governs a collection run.
type CollectorConfig struct {
	Concurrency        int
	RateLimitPerDomain float64
	RespectRobots      bool
	Delay              time.Duration
}

// CollectOptions overrides the configured crawl behavior for a single run.
// Zero values keep the configured defaults.
type CollectOptions struct {
	Concurrency   int
	RespectRobots *bool
}

// PageFetch is the per-URL outcome of a collection run. Err is set when the
// page could not be fetched or parsed; the rest of the run continues.
type PageFetch struct {
	URL      string
	Response seo.FetchResponse
	Content  seo.PageContent
	Err      error
}

// Collector fetches a batch of page URLs, escalating to the headless
// renderer when the detector asks for it, and extracts their content.
type Collector struct {
	cfg      CollectorConfig
	fetcher  seo.Fetcher
	renderer seo.Fetcher
	detector seo.RenderDetector
	limiter  *domainLimiter
	logger   *zap.Logger
}

// NewCollector wires the probe fetcher and the optional renderer/detector
// pair. renderer and detector may be nil, disabling escalation.
func NewCollector(
	cfg CollectorConfig,
	fetcher seo.Fetcher,
	renderer seo.Fetcher,
	detector seo.RenderDetector,
	logger *zap.Logger,
) *Collector {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Collector{
		cfg:      cfg,
		fetcher:  fetcher,
		renderer: renderer,
		detector: detector,
		limiter:  newDomainLimiter(cfg.RateLimitPerDomain),
		logger:   logger,
	}
}

// Collect fetches urls with bounded concurrency, applying per-run overrides
// from opts. Results keep input order; per-page failures are recorded and
// skipped, and only context cancellation stops the run early.
func (c *Collector) Collect(ctx context.Context, urls []string, opts CollectOptions) []PageFetch {
	concurrency := c.cfg.Concurrency
	if opts.Concurrency > 0 {
		concurrency = opts.Concurrency
	}
	respectRobots := c.cfg.RespectRobots
	if opts.RespectRobots != nil {
		respectRobots = *opts.RespectRobots
	}

	results := make([]PageFetch, len(urls))
	g := &errgroup.Group{}
	g.SetLimit(concurrency)
	for i, u := range urls {
		g.Go(func() error {
			results[i] = c.collectOne(ctx, u, respectRobots)
			return nil
		})
	}
	_ = g.Wait() // failures live in the per-page results
	return results
}

func (c *Collector) collectOne(ctx context.Context, pageURL string, respectRobots bool) PageFetch {
	out := PageFetch{URL: pageURL}

	if err := c.limiter.Wait(ctx, pageURL); err != nil {
		out.Err = err
		return out
	}
	if c.cfg.Delay > 0 {
		select {
		case <-time.After(c.cfg.Delay):
		case <-ctx.Done():
			out.Err = ctx.Err()
			return out
		}
	}

	resp, err := c.fetcher.Fetch(ctx, seo.FetchRequest{
		URL:           pageURL,
		RespectRobots: respectRobots,
	})
	if err != nil {
		c.logger.Warn("page fetch failed", zap.String("url", pageURL), zap.Error(err))
		out.Response = resp
		out.Err = err
		return out
	}
	out.Response = resp

	if c.renderer != nil && c.detector != nil && c.detector.ShouldPromote(resp) {
		rendered, rerr := c.renderer.Fetch(ctx, seo.FetchRequest{
			URL:           pageURL,
			Render:        true,
			RespectRobots: respectRobots,
		})
		if rerr != nil {
			c.logger.Warn("headless promotion failed, keeping probe body",
				zap.String("url", pageURL),
				zap.Error(rerr),
			)
		} else {
			rendered.UsedHeadless = true
			out.Response = rendered
		}
	}

	content, err := Extract(out.Response.URL, out.Response.Body)
	if err != nil {
		out.Err = err
		return out
	}
	if content.ModifiedAt.IsZero() {
		if lm := out.Response.Headers.Get("Last-Modified"); lm != "" {
			if ts, perr := http.ParseTime(lm); perr == nil {
				content.ModifiedAt = ts
			}
		}
	}
	out.Content = content
	return out
}

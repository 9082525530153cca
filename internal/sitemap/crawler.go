package sitemap

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// maxSitemapBytes caps how much of a single sitemap response is read.
const maxSitemapBytes = 10 * 1024 * 1024

// Config holds the settings for a sitemap traversal.
type Config struct {
	UserAgent      string
	MaxURLs        int
	MaxDepth       int
	Concurrency    int
	MaxRetries     int
	RequestTimeout time.Duration
}

// Crawler walks sitemap index trees breadth-first and collects page URLs.
type Crawler struct {
	cfg    Config
	client *retryablehttp.Client
	logger *zap.Logger
}

// New constructs a Crawler backed by a retrying HTTP client.
func New(cfg Config, logger *zap.Logger) *Crawler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.MaxDepth <= 0 {
		cfg.MaxDepth = 3
	}
	client := retryablehttp.NewClient()
	client.RetryMax = cfg.MaxRetries
	client.HTTPClient.Timeout = cfg.RequestTimeout
	client.Logger = leveledLogger{logger.Sugar()}
	return &Crawler{cfg: cfg, client: client, logger: logger}
}

// Discover resolves the sitemap entry point and walks it breadth-first,
// returning up to MaxURLs page URLs. When sitemapURL is empty the well-known
// locations under siteURL are probed in order. A failed child sitemap fetch
// is logged and skipped; only context cancellation aborts the walk.
func (c *Crawler) Discover(ctx context.Context, sitemapURL, siteURL string) ([]string, error) {
	candidates := []string{sitemapURL}
	if sitemapURL == "" {
		candidates = WellKnownSitemaps(siteURL)
	}

	var (
		root    Document
		rootURL string
		found   bool
	)
	for _, candidate := range candidates {
		doc, err := c.fetchAndParse(ctx, candidate)
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("sitemap discovery canceled: %w", ctx.Err())
			}
			c.logger.Warn("sitemap candidate unavailable",
				zap.String("url", candidate),
				zap.Error(err),
			)
			continue
		}
		root, rootURL, found = doc, candidate, true
		break
	}
	if !found {
		return nil, fmt.Errorf("no sitemap found for %s", siteURL)
	}

	pages := make([]string, 0, c.cfg.MaxURLs)
	seenPages := make(map[string]struct{})
	seenMaps := map[string]struct{}{rootURL: {}}

	full := c.appendPages(&pages, seenPages, root.PageURLs)
	frontier := c.unseenChildren(seenMaps, root.ChildSitemaps)

	for depth := 1; depth <= c.cfg.MaxDepth && len(frontier) > 0 && !full; depth++ {
		if ctx.Err() != nil {
			return pages, fmt.Errorf("sitemap walk canceled: %w", ctx.Err())
		}
		docs := c.fetchLevel(ctx, frontier)
		var next []string
		for _, doc := range docs {
			if doc == nil {
				continue
			}
			if full = c.appendPages(&pages, seenPages, doc.PageURLs); full {
				break
			}
			next = append(next, c.unseenChildren(seenMaps, doc.ChildSitemaps)...)
		}
		frontier = next
	}

	c.logger.Info("sitemap walk complete",
		zap.String("root", rootURL),
		zap.Int("pages", len(pages)),
	)
	return pages, nil
}

// fetchLevel fetches one BFS level with bounded concurrency. Results keep
// the input order so discovery output stays deterministic; failed entries
// come back nil.
func (c *Crawler) fetchLevel(ctx context.Context, urls []string) []*Document {
	docs := make([]*Document, len(urls))
	g := &errgroup.Group{}
	g.SetLimit(c.cfg.Concurrency)
	for i, u := range urls {
		g.Go(func() error {
			doc, err := c.fetchAndParse(ctx, u)
			if err != nil {
				c.logger.Warn("child sitemap fetch failed",
					zap.String("url", u),
					zap.Error(err),
				)
				return nil
			}
			docs[i] = &doc
			return nil
		})
	}
	_ = g.Wait() // workers never return errors; failures are skipped
	return docs
}

func (c *Crawler) fetchAndParse(ctx context.Context, u string) (Document, error) {
	reqCtx := ctx
	if c.cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		reqCtx, cancel = context.WithTimeout(ctx, c.cfg.RequestTimeout)
		defer cancel()
	}

	req, err := retryablehttp.NewRequestWithContext(reqCtx, http.MethodGet, u, nil)
	if err != nil {
		return Document{}, fmt.Errorf("build sitemap request: %w", err)
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	req.Header.Set("Accept", "application/xml,text/xml,text/html;q=0.9")

	resp, err := c.client.Do(req)
	if err != nil {
		return Document{}, fmt.Errorf("fetch sitemap: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck // response body

	if resp.StatusCode != http.StatusOK {
		return Document{}, fmt.Errorf("fetch sitemap %s: status %d", u, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxSitemapBytes))
	if err != nil {
		return Document{}, fmt.Errorf("read sitemap body: %w", err)
	}
	return Parse(body, u)
}

// appendPages adds unseen URLs up to MaxURLs and reports whether the budget
// is exhausted.
func (c *Crawler) appendPages(pages *[]string, seen map[string]struct{}, urls []string) bool {
	for _, u := range urls {
		if len(*pages) >= c.cfg.MaxURLs {
			return true
		}
		if _, dup := seen[u]; dup {
			continue
		}
		seen[u] = struct{}{}
		*pages = append(*pages, u)
	}
	return len(*pages) >= c.cfg.MaxURLs
}

func (c *Crawler) unseenChildren(seen map[string]struct{}, children []string) []string {
	var out []string
	for _, child := range children {
		if _, dup := seen[child]; dup {
			continue
		}
		seen[child] = struct{}{}
		out = append(out, child)
	}
	return out
}

// leveledLogger adapts zap to retryablehttp's LeveledLogger.
type leveledLogger struct {
	s *zap.SugaredLogger
}

func (l leveledLogger) Error(msg string, kv ...any) { l.s.Errorw(msg, kv...) }
func (l leveledLogger) Warn(msg string, kv ...any)  { l.s.Warnw(msg, kv...) }
func (l leveledLogger) Info(msg string, kv ...any)  { l.s.Debugw(msg, kv...) }
func (l leveledLogger) Debug(msg string, kv ...any) { l.s.Debugw(msg, kv...) }

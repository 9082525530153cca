// Package corpus fetches and extracts the site's page content that feeds
// the scorer and the link engine.
package corpus

import (
	"context"
	"fmt"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/pagelift/pagelift/internal/seo"
)

// FetcherConfig controls the static page fetcher.
type FetcherConfig struct {
	UserAgent     string
	RespectRobots bool
	Timeout       time.Duration
	MaxBodyBytes  int64
}

// Fetcher implements seo.Fetcher using a cloned colly collector per request.
type Fetcher struct {
	cfg  FetcherConfig
	base *colly.Collector
}

// NewFetcher builds a Fetcher.
func NewFetcher(cfg FetcherConfig) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	opts := []colly.CollectorOption{colly.Async(false)}
	if cfg.MaxBodyBytes > 0 {
		opts = append(opts, colly.MaxBodySize(int(cfg.MaxBodyBytes)))
	}
	return &Fetcher{cfg: cfg, base: colly.NewCollector(opts...)}
}

// Fetch executes a single HTTP GET. HTTP error statuses are returned with
// both the response (so the status code survives) and a non-nil error.
func (f *Fetcher) Fetch(ctx context.Context, request seo.FetchRequest) (seo.FetchResponse, error) {
	collector := f.base.Clone()
	if f.cfg.UserAgent != "" {
		collector.UserAgent = f.cfg.UserAgent
	}
	collector.IgnoreRobotsTxt = !request.RespectRobots
	collector.SetRequestTimeout(f.cfg.Timeout)

	var (
		result   seo.FetchResponse
		fetchErr error
	)
	start := time.Now()

	collector.OnRequest(func(r *colly.Request) {
		for key, values := range request.Headers {
			for _, v := range values {
				r.Headers.Set(key, v)
			}
		}
	})
	collector.OnResponse(func(r *colly.Response) {
		result = seo.FetchResponse{
			URL:        r.Request.URL.String(),
			StatusCode: r.StatusCode,
			Headers:    r.Headers.Clone(),
			Body:       append([]byte(nil), r.Body...),
			Duration:   time.Since(start),
		}
	})
	collector.OnError(func(r *colly.Response, err error) {
		fetchErr = err
		if r != nil {
			result.URL = request.URL
			result.StatusCode = r.StatusCode
			result.Duration = time.Since(start)
		}
	})

	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(request.URL)
	}()

	select {
	case <-ctx.Done():
		return seo.FetchResponse{}, fmt.Errorf("fetch %s: %w", request.URL, ctx.Err())
	case err := <-done:
		if err != nil && fetchErr == nil {
			fetchErr = err
		}
	}
	if fetchErr != nil {
		return result, fmt.Errorf("fetch %s: %w", request.URL, fetchErr)
	}
	return result, nil
}

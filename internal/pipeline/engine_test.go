package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pagelift/pagelift/internal/corpus"
	"github.com/pagelift/pagelift/internal/progress"
	"github.com/pagelift/pagelift/internal/seo"
	"github.com/pagelift/pagelift/internal/storage/memory"
)

type fakeDiscoverer struct {
	urls []string
	err  error
}

func (f *fakeDiscoverer) Discover(ctx context.Context, sitemapURL, siteURL string) ([]string, error) {
	return f.urls, f.err
}

type fakeCollector struct {
	fetches []corpus.PageFetch
	cancel  context.CancelFunc
	opts    []corpus.CollectOptions
}

func (f *fakeCollector) Collect(ctx context.Context, urls []string, opts corpus.CollectOptions) []corpus.PageFetch {
	f.opts = append(f.opts, opts)
	if f.cancel != nil {
		f.cancel()
	}
	return f.fetches
}

type fixedScorer struct{ score int }

func (f fixedScorer) Score(content seo.PageContent, statusCode int) int {
	if statusCode < 200 || statusCode >= 300 {
		return 0
	}
	return f.score
}

type fakeHasher struct{}

func (fakeHasher) Hash(data []byte) (string, error) {
	return fmt.Sprintf("hash-%d", len(data)), nil
}

type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

type captureEmitter struct {
	mu     sync.Mutex
	events []progress.Event
}

func (c *captureEmitter) Emit(e progress.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
}

func (c *captureEmitter) stages() []progress.Stage {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]progress.Stage, 0, len(c.events))
	for _, e := range c.events {
		out = append(out, e.Stage)
	}
	return out
}

func okFetch(url, body, title string) corpus.PageFetch {
	return corpus.PageFetch{
		URL: url,
		Response: seo.FetchResponse{
			URL:        url,
			StatusCode: 200,
			Body:       []byte(body),
			Duration:   120 * time.Millisecond,
		},
		Content: seo.PageContent{
			URL:   url,
			Title: title,
			Text:  body,
		},
	}
}

func newTestScan(id string, collect bool) seo.Scan {
	return seo.Scan{
		ID:        id,
		Status:    seo.ScanStatusQueued,
		Submitted: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC),
		Parameters: seo.ScanParameters{
			SiteURL:        "https://example.com",
			MaxURLs:        10,
			CollectContent: collect,
		},
	}
}

func TestEngineRunScanSuccess(t *testing.T) {
	t.Parallel()

	store := memory.NewScanStore()
	snapshots := memory.NewSnapshotStore()
	emitter := &captureEmitter{}
	scan := newTestScan("scan-1", true)
	require.NoError(t, store.CreateScan(context.Background(), scan))

	engine := NewEngine(
		&fakeDiscoverer{urls: []string{"https://example.com/a", "https://example.com/b"}},
		&fakeCollector{fetches: []corpus.PageFetch{
			okFetch("https://example.com/a", "<html>alpha content</html>", "Alpha"),
			{
				URL:      "https://example.com/b",
				Response: seo.FetchResponse{URL: "https://example.com/b", StatusCode: 0},
				Err:      errors.New("connection refused"),
			},
		}},
		fixedScorer{score: 55},
		store,
		snapshots,
		fakeHasher{},
		&stepClock{now: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)},
		emitter,
		EngineConfig{},
		nil,
	)

	outcome, err := engine.RunScan(context.Background(), scan)
	require.NoError(t, err)

	assert.Equal(t, 2, outcome.Counters.URLsDiscovered)
	assert.Equal(t, 1, outcome.Counters.PagesFetched)
	assert.Equal(t, 1, outcome.Counters.PagesFailed)
	require.Len(t, outcome.Pages, 1)
	assert.Equal(t, "Alpha", outcome.Pages[0].Record.Title)
	assert.Equal(t, 55, outcome.Pages[0].Record.Score)
	assert.NotEmpty(t, outcome.Pages[0].Record.ContentHash)
	assert.Contains(t, outcome.Pages[0].Record.SnapshotURI, "mem://scans/scan-1/")

	stored, err := store.GetScan(context.Background(), "scan-1")
	require.NoError(t, err)
	assert.Equal(t, seo.ScanStatusSucceeded, stored.Status)
	require.NotNil(t, stored.Started)
	require.NotNil(t, stored.Finished)
	assert.Equal(t, outcome.Counters, stored.Counters)

	pages, err := store.ListPages(context.Background(), "scan-1")
	require.NoError(t, err)
	assert.Len(t, pages, 2)

	assert.Equal(t, []progress.Stage{
		progress.StageScanStart,
		progress.StagePageFetched,
		progress.StagePageFailed,
		progress.StageScanDone,
	}, emitter.stages())
}

func TestEnginePassesPerScanCrawlParameters(t *testing.T) {
	t.Parallel()

	store := memory.NewScanStore()
	collector := &fakeCollector{fetches: []corpus.PageFetch{
		okFetch("https://example.com/a", "<html>alpha content</html>", "Alpha"),
	}}
	scan := newTestScan("scan-params", true)
	scan.Parameters.Concurrency = 7
	scan.Parameters.RespectRobots = false
	scan.Parameters.RespectRobotsProvided = true
	require.NoError(t, store.CreateScan(context.Background(), scan))

	engine := NewEngine(
		&fakeDiscoverer{urls: []string{"https://example.com/a"}},
		collector,
		fixedScorer{score: 55},
		store,
		memory.NewSnapshotStore(),
		fakeHasher{},
		&stepClock{now: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)},
		&captureEmitter{},
		EngineConfig{},
		nil,
	)

	_, err := engine.RunScan(context.Background(), scan)
	require.NoError(t, err)

	require.Len(t, collector.opts, 1)
	assert.Equal(t, 7, collector.opts[0].Concurrency)
	require.NotNil(t, collector.opts[0].RespectRobots)
	assert.False(t, *collector.opts[0].RespectRobots)

	// Without the explicit flag the collector keeps its own default.
	scan2 := newTestScan("scan-defaults", true)
	require.NoError(t, store.CreateScan(context.Background(), scan2))
	_, err = engine.RunScan(context.Background(), scan2)
	require.NoError(t, err)
	require.Len(t, collector.opts, 2)
	assert.Zero(t, collector.opts[1].Concurrency)
	assert.Nil(t, collector.opts[1].RespectRobots)
}

func TestEngineSnapshotPrefixAppliedOnce(t *testing.T) {
	t.Parallel()

	store := memory.NewScanStore()
	snapshots := memory.NewSnapshotStore()
	scan := newTestScan("scan-pfx", true)
	require.NoError(t, store.CreateScan(context.Background(), scan))

	engine := NewEngine(
		&fakeDiscoverer{urls: []string{"https://example.com/a"}},
		&fakeCollector{fetches: []corpus.PageFetch{
			okFetch("https://example.com/a", "<html>alpha content</html>", "Alpha"),
		}},
		fixedScorer{score: 55},
		store,
		snapshots,
		fakeHasher{},
		&stepClock{now: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)},
		&captureEmitter{},
		EngineConfig{SnapshotPrefix: "pages"},
		nil,
	)

	outcome, err := engine.RunScan(context.Background(), scan)
	require.NoError(t, err)
	require.Len(t, outcome.Pages, 1)

	uri := outcome.Pages[0].Record.SnapshotURI
	assert.True(t, strings.HasPrefix(uri, "mem://pages/scans/scan-pfx/"), uri)
	assert.Equal(t, 1, strings.Count(uri, "pages/"), uri)
}

func TestEngineDiscoveryFailure(t *testing.T) {
	t.Parallel()

	store := memory.NewScanStore()
	scan := newTestScan("scan-2", true)
	require.NoError(t, store.CreateScan(context.Background(), scan))

	engine := NewEngine(
		&fakeDiscoverer{err: errors.New("sitemap unreachable")},
		&fakeCollector{},
		fixedScorer{},
		store,
		nil,
		fakeHasher{},
		&stepClock{now: time.Now()},
		nil,
		EngineConfig{},
		nil,
	)

	_, err := engine.RunScan(context.Background(), scan)
	require.ErrorContains(t, err, "sitemap unreachable")

	stored, err := store.GetScan(context.Background(), "scan-2")
	require.NoError(t, err)
	assert.Equal(t, seo.ScanStatusFailed, stored.Status)
	assert.Contains(t, stored.ErrorText, "sitemap unreachable")
}

func TestEngineCancellation(t *testing.T) {
	t.Parallel()

	store := memory.NewScanStore()
	scan := newTestScan("scan-3", true)
	require.NoError(t, store.CreateScan(context.Background(), scan))

	ctx, cancel := context.WithCancel(context.Background())
	collector := &fakeCollector{
		fetches: []corpus.PageFetch{okFetch("https://example.com/a", "body", "A")},
		cancel:  cancel,
	}

	engine := NewEngine(
		&fakeDiscoverer{urls: []string{"https://example.com/a"}},
		collector,
		fixedScorer{},
		store,
		nil,
		fakeHasher{},
		&stepClock{now: time.Now()},
		nil,
		EngineConfig{},
		nil,
	)

	_, err := engine.RunScan(ctx, scan)
	require.ErrorIs(t, err, context.Canceled)

	stored, err := store.GetScan(context.Background(), "scan-3")
	require.NoError(t, err)
	assert.Equal(t, seo.ScanStatusCanceled, stored.Status)
	require.NotNil(t, stored.Finished)
}

func TestEngineDiscoveryOnly(t *testing.T) {
	t.Parallel()

	store := memory.NewScanStore()
	scan := newTestScan("scan-4", false)
	require.NoError(t, store.CreateScan(context.Background(), scan))

	engine := NewEngine(
		&fakeDiscoverer{urls: []string{"https://example.com/a", "https://example.com/b", "https://example.com/c"}},
		&fakeCollector{},
		fixedScorer{},
		store,
		nil,
		fakeHasher{},
		&stepClock{now: time.Now()},
		nil,
		EngineConfig{},
		nil,
	)

	outcome, err := engine.RunScan(context.Background(), scan)
	require.NoError(t, err)
	assert.Equal(t, 3, outcome.Counters.URLsDiscovered)
	assert.Zero(t, outcome.Counters.PagesFetched)
	assert.Empty(t, outcome.Pages)
}

func TestEngineMaxURLsTruncation(t *testing.T) {
	t.Parallel()

	store := memory.NewScanStore()
	scan := newTestScan("scan-5", false)
	scan.Parameters.MaxURLs = 2
	require.NoError(t, store.CreateScan(context.Background(), scan))

	engine := NewEngine(
		&fakeDiscoverer{urls: []string{"https://example.com/a", "https://example.com/b", "https://example.com/c"}},
		&fakeCollector{},
		fixedScorer{},
		store,
		nil,
		fakeHasher{},
		&stepClock{now: time.Now()},
		nil,
		EngineConfig{},
		nil,
	)

	outcome, err := engine.RunScan(context.Background(), scan)
	require.NoError(t, err)
	assert.Equal(t, 2, outcome.Counters.URLsDiscovered)
}

func TestSlugify(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "https---example-com-blog-post-1", slugify("https://example.com/blog/post-1"))
	assert.Equal(t, "plain", slugify("--Plain--"))
}

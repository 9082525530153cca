// Package app assembles the service from configuration: stores, fetchers,
// the progress hub and the scan pipeline.
package app

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"cloud.google.com/go/pubsub"
	gcstorage "cloud.google.com/go/storage"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/pagelift/pagelift/internal/config"
	"github.com/pagelift/pagelift/internal/corpus"
	"github.com/pagelift/pagelift/internal/generator"
	"github.com/pagelift/pagelift/internal/linker"
	pubsubnotify "github.com/pagelift/pagelift/internal/notify/pubsub"
	"github.com/pagelift/pagelift/internal/pipeline"
	"github.com/pagelift/pagelift/internal/progress"
	"github.com/pagelift/pagelift/internal/progress/sinks"
	"github.com/pagelift/pagelift/internal/render"
	"github.com/pagelift/pagelift/internal/scorer"
	"github.com/pagelift/pagelift/internal/seo"
	"github.com/pagelift/pagelift/internal/sitemap"
	"github.com/pagelift/pagelift/internal/storage/gcs"
	"github.com/pagelift/pagelift/internal/storage/local"
	"github.com/pagelift/pagelift/internal/storage/memory"
	"github.com/pagelift/pagelift/internal/storage/postgres"
	"github.com/pagelift/pagelift/internal/wordpress"
)

// App holds every wired component plus the resources Close must release.
type App struct {
	Cfg       config.Config
	Logger    *zap.Logger
	Metrics   *prometheus.Registry
	Store     seo.ScanStore
	Snapshots seo.SnapshotStore
	Notifier  seo.Notifier
	Hub       *progress.Hub
	Engine    *pipeline.Engine
	Queue     *pipeline.MemoryQueue
	Registry  *pipeline.Registry
	Workers   []*pipeline.Worker
	Publisher *wordpress.Client
	Generator *generator.Gemini
	Linker    *linker.Engine
	Clock     seo.Clock
	IDGen     seo.IDGenerator

	pgStore      *postgres.ScanStore
	gcsClient    *gcstorage.Client
	pubsubClient *pubsub.Client
	pubsubTopic  *pubsub.Topic
	renderer     *render.Renderer
}

// New builds the application from config. Optional backends (Postgres,
// GCS, Pub/Sub, WordPress, Gemini, headless Chrome) are only dialed when
// configured.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{
		Cfg:    cfg,
		Logger: logger,
		Clock:  seo.SystemClock{},
		IDGen:  seo.UUIDGenerator{},
	}

	if err := a.buildStores(ctx); err != nil {
		a.Close(ctx)
		return nil, err
	}
	if err := a.buildNotifier(ctx); err != nil {
		a.Close(ctx)
		return nil, err
	}
	if err := a.buildHub(); err != nil {
		a.Close(ctx)
		return nil, err
	}
	if err := a.buildPipeline(); err != nil {
		a.Close(ctx)
		return nil, err
	}
	if err := a.buildCollaborators(ctx); err != nil {
		a.Close(ctx)
		return nil, err
	}
	return a, nil
}

func (a *App) buildStores(ctx context.Context) error {
	cfg := a.Cfg
	if cfg.DB.DSN != "" {
		store, err := postgres.NewScanStore(ctx, postgres.ScanStoreConfig{
			DSN:      cfg.DB.DSN,
			MaxConns: int32(cfg.DB.MaxOpenConns),
		})
		if err != nil {
			return fmt.Errorf("init postgres store: %w", err)
		}
		a.pgStore = store
		a.Store = store
	} else {
		a.Store = memory.NewScanStore()
	}

	switch cfg.Storage.Backend {
	case "", "memory":
		a.Snapshots = memory.NewSnapshotStore()
	case "local":
		snapshots, err := local.New(local.Config{BaseDir: cfg.Storage.LocalDir})
		if err != nil {
			return fmt.Errorf("init local snapshot store: %w", err)
		}
		a.Snapshots = snapshots
	case "gcs":
		client, err := gcstorage.NewClient(ctx)
		if err != nil {
			return fmt.Errorf("dial gcs: %w", err)
		}
		a.gcsClient = client
		snapshots, err := gcs.New(client, gcs.Config{Bucket: cfg.Storage.GCSBucket})
		if err != nil {
			return fmt.Errorf("init gcs snapshot store: %w", err)
		}
		a.Snapshots = snapshots
	default:
		return fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
	return nil
}

func (a *App) buildNotifier(ctx context.Context) error {
	cfg := a.Cfg
	if cfg.PubSub.ProjectID == "" || cfg.PubSub.TopicName == "" {
		return nil
	}
	client, err := pubsub.NewClient(ctx, cfg.PubSub.ProjectID)
	if err != nil {
		return fmt.Errorf("dial pubsub: %w", err)
	}
	a.pubsubClient = client
	a.pubsubTopic = client.Topic(cfg.PubSub.TopicName)
	a.Notifier = pubsubnotify.New(a.pubsubTopic)
	return nil
}

func (a *App) buildHub() error {
	a.Metrics = prometheus.NewRegistry()
	a.Metrics.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	promSink, err := sinks.NewPrometheusSink(a.Metrics)
	if err != nil {
		return fmt.Errorf("init prometheus sink: %w", err)
	}
	hubSinks := []progress.Sink{
		sinks.NewLogSink(a.Logger.Named("progress")),
		promSink,
	}
	if a.Notifier != nil {
		hubSinks = append(hubSinks, sinks.NewNotifierSink(a.Notifier, a.Logger.Named("notify")))
	}
	a.Hub = progress.NewHub(progress.Config{Logger: a.Logger.Named("hub")}, hubSinks...)
	return nil
}

func (a *App) buildPipeline() error {
	cfg := a.Cfg

	crawler := sitemap.New(sitemap.Config{
		UserAgent:      cfg.Site.UserAgent,
		MaxURLs:        cfg.Sitemap.MaxURLs,
		MaxDepth:       cfg.Sitemap.MaxDepth,
		Concurrency:    cfg.Sitemap.Concurrency,
		MaxRetries:     cfg.Sitemap.MaxRetries,
		RequestTimeout: cfg.Sitemap.RequestTimeout,
	}, a.Logger.Named("sitemap"))

	fetcher := corpus.NewFetcher(corpus.FetcherConfig{
		UserAgent:     cfg.Site.UserAgent,
		RespectRobots: cfg.Corpus.RespectRobots,
		Timeout:       cfg.Corpus.RequestTimeout,
		MaxBodyBytes:  cfg.Corpus.MaxPageBytes,
	})

	var renderFetcher seo.Fetcher
	var detector seo.RenderDetector
	if cfg.Render.Enabled {
		renderer, err := render.NewChromedp(render.Config{
			MaxParallel: cfg.Render.MaxParallel,
			UserAgent:   cfg.Site.UserAgent,
			NavTimeout:  cfg.Render.NavTimeout,
		})
		if err != nil {
			a.Logger.Warn("headless renderer init failed, continuing without", zap.Error(err))
		} else {
			a.renderer = renderer
			renderFetcher = renderer
			detector = render.NewHeuristic(cfg.Render.MinHTMLBytes, cfg.Render.MarkerKeywords, cfg.Render.EscalateOnlyTLS)
		}
	}

	collector := corpus.NewCollector(corpus.CollectorConfig{
		Concurrency:        cfg.Corpus.Concurrency,
		RateLimitPerDomain: cfg.Corpus.RateLimitPerDomain,
		RespectRobots:      cfg.Corpus.RespectRobots,
		Delay:              cfg.Corpus.Delay,
	}, fetcher, renderFetcher, detector, a.Logger.Named("corpus"))

	a.Engine = pipeline.NewEngine(
		crawler,
		collector,
		scorer.New(scorer.Config{}),
		a.Store,
		a.Snapshots,
		seo.SHA256Hasher{},
		a.Clock,
		a.Hub,
		pipeline.EngineConfig{
			SnapshotContentType: cfg.Storage.ContentType,
			SnapshotPrefix:      cfg.Storage.Prefix,
		},
		a.Logger.Named("engine"),
	)

	stopwords, err := loadStopwords(cfg.Linker.StopwordsFile)
	if err != nil {
		return err
	}
	a.Linker = linker.New(linker.Config{
		MaxLinks:     cfg.Linker.MaxLinks,
		MaxPerTarget: cfg.Linker.MaxPerTarget,
		MinScore:     cfg.Linker.MinScore,
		MinAnchorLen: cfg.Linker.MinAnchorLen,
		MaxAnchorLen: cfg.Linker.MaxAnchorLen,
		NGramMax:     cfg.Linker.NGramMax,
		Stopwords:    stopwords,
	})

	a.Queue = pipeline.NewMemoryQueue(cfg.Server.QueueDepth)
	a.Registry = pipeline.NewRegistry()
	for i := 0; i < cfg.Server.Workers; i++ {
		a.Workers = append(a.Workers, pipeline.NewWorker(
			a.Queue,
			a.Engine,
			a.Store,
			a.Registry,
			a.Logger.Named("worker").With(zap.Int("index", i)),
		))
	}
	return nil
}

func (a *App) buildCollaborators(ctx context.Context) error {
	cfg := a.Cfg
	if cfg.WordPress.BaseURL != "" {
		client, err := wordpress.New(wordpress.Config{
			BaseURL:       cfg.WordPress.BaseURL,
			Username:      cfg.WordPress.Username,
			AppPassword:   cfg.WordPress.AppPassword,
			Timeout:       cfg.WordPress.RequestTimeout,
			DefaultStatus: cfg.WordPress.DefaultStatus,
			UserAgent:     cfg.Site.UserAgent,
		}, a.Logger.Named("wordpress"))
		if err != nil {
			return fmt.Errorf("init wordpress client: %w", err)
		}
		a.Publisher = client
	}

	if cfg.AI.APIKey != "" {
		gen, err := generator.New(ctx, generator.Config{
			APIKey:      cfg.AI.APIKey,
			Model:       cfg.AI.Model,
			TargetWords: cfg.AI.TargetWords,
		}, a.Clock, a.Logger.Named("generator"))
		if err != nil {
			return fmt.Errorf("init generator: %w", err)
		}
		a.Generator = gen
	}
	return nil
}

// Autopilot assembles the refresh loop from the wired components. It
// requires both a generator and a publisher.
func (a *App) Autopilot() (*pipeline.Autopilot, error) {
	if a.Generator == nil {
		return nil, fmt.Errorf("autopilot requires ai.api_key")
	}
	if a.Publisher == nil {
		return nil, fmt.Errorf("autopilot requires wordpress.base_url")
	}
	cfg := a.Cfg
	return pipeline.NewAutopilot(
		a.Engine,
		a.Store,
		a.Generator,
		a.Linker,
		a.Publisher,
		a.Snapshots,
		a.Clock,
		a.IDGen,
		a.Hub,
		pipeline.AutopilotConfig{
			Interval:       cfg.Autopilot.Interval,
			PagesPerCycle:  cfg.Autopilot.PagesPerCycle,
			MinScore:       cfg.Autopilot.MinScore,
			PublishStatus:  cfg.Autopilot.PublishStatus,
			StopAfterCycle: cfg.Autopilot.StopAfterCycle,
			TargetWords:    cfg.AI.TargetWords,
			SiteContext:    cfg.Site.BaseURL,
			ScanParameters: seo.ScanParameters{
				SiteURL:       cfg.Site.BaseURL,
				SitemapURL:    cfg.Site.SitemapURL,
				MaxURLs:       cfg.Sitemap.MaxURLs,
				Concurrency:   cfg.Corpus.Concurrency,
				RespectRobots: cfg.Corpus.RespectRobots,
			},
		},
		a.Logger.Named("autopilot"),
	), nil
}

// loadStopwords reads one stopword per line; blank lines and # comments are
// skipped.
func loadStopwords(path string) ([]string, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read stopwords file: %w", err)
	}
	var words []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		words = append(words, line)
	}
	return words, nil
}

// Close releases held resources in reverse dependency order.
func (a *App) Close(ctx context.Context) {
	if a.Queue != nil {
		a.Queue.Close()
	}
	if a.Hub != nil {
		closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		if err := a.Hub.Close(closeCtx); err != nil {
			a.Logger.Warn("progress hub close failed", zap.Error(err))
		}
	}
	if a.Generator != nil {
		if err := a.Generator.Close(); err != nil {
			a.Logger.Warn("generator close failed", zap.Error(err))
		}
	}
	if a.renderer != nil {
		a.renderer.Close()
	}
	if a.pubsubTopic != nil {
		a.pubsubTopic.Stop()
	}
	if a.pubsubClient != nil {
		if err := a.pubsubClient.Close(); err != nil {
			a.Logger.Warn("pubsub close failed", zap.Error(err))
		}
	}
	if a.gcsClient != nil {
		if err := a.gcsClient.Close(); err != nil {
			a.Logger.Warn("gcs close failed", zap.Error(err))
		}
	}
	if a.pgStore != nil {
		a.pgStore.Close()
	}
}

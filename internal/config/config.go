// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures every configuration knob loaded via Viper.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Site      SiteConfig      `mapstructure:"site"`
	Sitemap   SitemapConfig   `mapstructure:"sitemap"`
	Corpus    CorpusConfig    `mapstructure:"corpus"`
	Render    RenderConfig    `mapstructure:"render"`
	Linker    LinkerConfig    `mapstructure:"linker"`
	WordPress WordPressConfig `mapstructure:"wordpress"`
	AI        AIConfig        `mapstructure:"ai"`
	DB        DBConfig        `mapstructure:"db"`
	Storage   StorageConfig   `mapstructure:"storage"`
	PubSub    PubSubConfig    `mapstructure:"pubsub"`
	Autopilot AutopilotConfig `mapstructure:"autopilot"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port           int `mapstructure:"port"`
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
	Workers        int `mapstructure:"workers"`
	QueueDepth     int `mapstructure:"queue_depth"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// SiteConfig identifies the site under management.
type SiteConfig struct {
	BaseURL    string `mapstructure:"base_url"`
	SitemapURL string `mapstructure:"sitemap_url"`
	UserAgent  string `mapstructure:"user_agent"`
}

// SitemapConfig governs the sitemap traversal.
type SitemapConfig struct {
	MaxURLs        int           `mapstructure:"max_urls"`
	MaxDepth       int           `mapstructure:"max_depth"`
	Concurrency    int           `mapstructure:"concurrency"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	MaxRetries     int           `mapstructure:"max_retries"`
}

// CorpusConfig governs the page-content collector that feeds the
// scorer and the link engine.
type CorpusConfig struct {
	Concurrency        int           `mapstructure:"concurrency"`
	Delay              time.Duration `mapstructure:"delay"`
	RateLimitPerDomain float64       `mapstructure:"rate_limit_per_domain"`
	RequestTimeout     time.Duration `mapstructure:"request_timeout"`
	RespectRobots      bool          `mapstructure:"respect_robots"`
	MaxPageBytes       int64         `mapstructure:"max_page_bytes"`
}

// RenderConfig configures the headless rendering escalation path.
type RenderConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	MaxParallel     int           `mapstructure:"max_parallel"`
	NavTimeout      time.Duration `mapstructure:"nav_timeout"`
	MinHTMLBytes    int           `mapstructure:"min_html_bytes"`
	MarkerKeywords  []string      `mapstructure:"marker_keywords"`
	EscalateOnlyTLS bool          `mapstructure:"escalate_only_tls"`
}

// LinkerConfig tunes the internal link placement engine.
type LinkerConfig struct {
	MaxLinks      int     `mapstructure:"max_links"`
	MaxPerTarget  int     `mapstructure:"max_per_target"`
	MinScore      float64 `mapstructure:"min_score"`
	MaxAnchorLen  int     `mapstructure:"max_anchor_len"`
	MinAnchorLen  int     `mapstructure:"min_anchor_len"`
	NGramMax      int     `mapstructure:"ngram_max"`
	StopwordsFile string  `mapstructure:"stopwords_file"`
}

// WordPressConfig holds REST API credentials for the managed site.
type WordPressConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	Username       string        `mapstructure:"username"`
	AppPassword    string        `mapstructure:"app_password"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	DefaultStatus  string        `mapstructure:"default_status"`
}

// AIConfig configures the content generator.
type AIConfig struct {
	APIKey         string        `mapstructure:"api_key"`
	Model          string        `mapstructure:"model"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	TargetWords    int           `mapstructure:"target_words"`
}

// DBConfig controls the optional Postgres (Supabase) sync.
type DBConfig struct {
	DSN          string `mapstructure:"dsn"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
}

// StorageConfig sets where page snapshots and drafts are written.
type StorageConfig struct {
	Backend     string `mapstructure:"backend"` // memory | local | gcs
	LocalDir    string `mapstructure:"local_dir"`
	GCSBucket   string `mapstructure:"gcs_bucket"`
	Prefix      string `mapstructure:"prefix"`
	ContentType string `mapstructure:"content_type"`
}

// PubSubConfig holds metadata for publish notifications.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// AutopilotConfig drives the autonomous scan/generate/publish loop.
type AutopilotConfig struct {
	Interval       time.Duration `mapstructure:"interval"`
	PagesPerCycle  int           `mapstructure:"pages_per_cycle"`
	MinScore       int           `mapstructure:"min_score"`
	PublishStatus  string        `mapstructure:"publish_status"`
	StopAfterCycle bool          `mapstructure:"stop_after_cycle"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("PAGELIFT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.timeout_seconds", 60)
	v.SetDefault("server.workers", 2)
	v.SetDefault("server.queue_depth", 64)

	v.SetDefault("site.user_agent", "pagelift-bot/0.1 (+https://github.com/pagelift/pagelift)")

	v.SetDefault("sitemap.max_urls", 500)
	v.SetDefault("sitemap.max_depth", 3)
	v.SetDefault("sitemap.concurrency", 5)
	v.SetDefault("sitemap.request_timeout", "10s")
	v.SetDefault("sitemap.max_retries", 2)

	v.SetDefault("corpus.concurrency", 4)
	v.SetDefault("corpus.delay", "500ms")
	v.SetDefault("corpus.rate_limit_per_domain", 2.0)
	v.SetDefault("corpus.request_timeout", "15s")
	v.SetDefault("corpus.respect_robots", true)
	v.SetDefault("corpus.max_page_bytes", 5*1024*1024)

	v.SetDefault("render.enabled", false)
	v.SetDefault("render.max_parallel", 1)
	v.SetDefault("render.nav_timeout", "25s")
	v.SetDefault("render.min_html_bytes", 2000)
	v.SetDefault("render.marker_keywords", []string{
		"__NEXT_DATA__",
		"data-reactroot",
		"ng-app",
		"window.__APOLLO_STATE__",
	})

	v.SetDefault("linker.max_links", 8)
	v.SetDefault("linker.max_per_target", 1)
	v.SetDefault("linker.min_score", 0.15)
	v.SetDefault("linker.max_anchor_len", 60)
	v.SetDefault("linker.min_anchor_len", 3)
	v.SetDefault("linker.ngram_max", 4)

	v.SetDefault("wordpress.request_timeout", "30s")
	v.SetDefault("wordpress.default_status", "draft")

	v.SetDefault("ai.model", "gemini-1.5-flash")
	v.SetDefault("ai.request_timeout", "120s")
	v.SetDefault("ai.target_words", 1200)

	v.SetDefault("db.max_open_conns", 4)

	v.SetDefault("storage.backend", "memory")
	v.SetDefault("storage.local_dir", "data/snapshots")
	v.SetDefault("storage.prefix", "pages")
	v.SetDefault("storage.content_type", "text/html; charset=utf-8")

	v.SetDefault("autopilot.interval", "6h")
	v.SetDefault("autopilot.pages_per_cycle", 5)
	v.SetDefault("autopilot.min_score", 60)
	v.SetDefault("autopilot.publish_status", "draft")

	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Site.UserAgent == "" {
		return fmt.Errorf("site.user_agent must be set")
	}
	if c.Sitemap.MaxURLs <= 0 {
		return fmt.Errorf("sitemap.max_urls must be > 0")
	}
	if c.Sitemap.Concurrency <= 0 {
		return fmt.Errorf("sitemap.concurrency must be > 0")
	}
	if c.Sitemap.RequestTimeout <= 0 {
		return fmt.Errorf("sitemap.request_timeout must be > 0")
	}
	if c.Corpus.Concurrency <= 0 {
		return fmt.Errorf("corpus.concurrency must be > 0")
	}
	if c.Corpus.MaxPageBytes <= 0 {
		return fmt.Errorf("corpus.max_page_bytes must be > 0")
	}
	if c.Render.Enabled && c.Render.MaxParallel <= 0 {
		return fmt.Errorf("render.max_parallel must be > 0 when rendering is enabled")
	}
	if c.Linker.MaxLinks <= 0 {
		return fmt.Errorf("linker.max_links must be > 0")
	}
	if c.Linker.MinScore < 0 {
		return fmt.Errorf("linker.min_score must be >= 0")
	}
	if c.Linker.NGramMax < 1 {
		return fmt.Errorf("linker.ngram_max must be >= 1")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	switch c.Storage.Backend {
	case "memory", "local":
	case "gcs":
		if c.Storage.GCSBucket == "" {
			return fmt.Errorf("storage.gcs_bucket must be set for the gcs backend")
		}
	default:
		return fmt.Errorf("storage.backend must be one of memory, local, gcs")
	}
	switch c.Autopilot.PublishStatus {
	case "", "draft", "publish":
	default:
		return fmt.Errorf("autopilot.publish_status must be draft or publish")
	}
	if c.Autopilot.Interval <= 0 {
		return fmt.Errorf("autopilot.interval must be > 0")
	}
	if c.Autopilot.PagesPerCycle <= 0 {
		return fmt.Errorf("autopilot.pages_per_cycle must be > 0")
	}
	return nil
}

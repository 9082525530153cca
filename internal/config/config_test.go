package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadWithFileOverrides(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	configYAML := `
server:
  port: 9090
auth:
  enabled: true
  api_key: secret
site:
  base_url: https://example.com
  sitemap_url: https://example.com/sitemap.xml
  user_agent: pagelift-test
sitemap:
  max_urls: 100
  concurrency: 3
  request_timeout: 5s
corpus:
  concurrency: 2
  respect_robots: false
  max_page_bytes: 1048576
linker:
  max_links: 4
  min_score: 0.25
wordpress:
  base_url: https://example.com
  username: admin
  app_password: abcd efgh
autopilot:
  interval: 1h
  pages_per_cycle: 3
logging:
  development: false
`
	require.NoError(t, os.WriteFile(path, []byte(configYAML), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, 9090, cfg.Server.Port)
	require.True(t, cfg.Auth.Enabled)
	require.Equal(t, "secret", cfg.Auth.APIKey)
	require.Equal(t, "https://example.com/sitemap.xml", cfg.Site.SitemapURL)
	require.Equal(t, 100, cfg.Sitemap.MaxURLs)
	require.Equal(t, 5*time.Second, cfg.Sitemap.RequestTimeout)
	require.False(t, cfg.Corpus.RespectRobots)
	require.Equal(t, 4, cfg.Linker.MaxLinks)
	require.InDelta(t, 0.25, cfg.Linker.MinScore, 1e-9)
	require.Equal(t, "admin", cfg.WordPress.Username)
	require.Equal(t, time.Hour, cfg.Autopilot.Interval)
	require.False(t, cfg.Logging.Development)
}

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load("")
	require.NoError(t, err)

	require.Equal(t, 8080, cfg.Server.Port)
	require.Equal(t, 500, cfg.Sitemap.MaxURLs)
	require.Equal(t, 5, cfg.Sitemap.Concurrency)
	require.True(t, cfg.Corpus.RespectRobots)
	require.Equal(t, "memory", cfg.Storage.Backend)
	require.Equal(t, "draft", cfg.WordPress.DefaultStatus)
	require.Equal(t, 8, cfg.Linker.MaxLinks)
	require.NotEmpty(t, cfg.Site.UserAgent)
}

func TestValidateRejectsBadValues(t *testing.T) {
	t.Parallel()

	base, err := Load("")
	require.NoError(t, err)

	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero port", func(c *Config) { c.Server.Port = 0 }},
		{"no sitemap concurrency", func(c *Config) { c.Sitemap.Concurrency = 0 }},
		{"auth without key", func(c *Config) { c.Auth.Enabled = true; c.Auth.APIKey = "" }},
		{"gcs without bucket", func(c *Config) { c.Storage.Backend = "gcs"; c.Storage.GCSBucket = "" }},
		{"unknown backend", func(c *Config) { c.Storage.Backend = "s3" }},
		{"bad publish status", func(c *Config) { c.Autopilot.PublishStatus = "pending" }},
		{"render enabled without parallel", func(c *Config) { c.Render.Enabled = true; c.Render.MaxParallel = 0 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cfg := base
			tc.mutate(&cfg)
			require.Error(t, cfg.Validate())
		})
	}
}

package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pagelift/pagelift/internal/app"
	"github.com/pagelift/pagelift/internal/seo"
)

type scanFlags struct {
	siteURL      string
	sitemapURL   string
	maxURLs      int
	discoverOnly bool
	jsonOut      bool
}

func newScanCmd() *cobra.Command {
	var flags scanFlags
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Run a one-shot sitemap scan and print the results",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runScan(cmd, flags)
		},
	}
	cmd.Flags().StringVar(&flags.siteURL, "site", "", "site base URL (defaults to site.base_url)")
	cmd.Flags().StringVar(&flags.sitemapURL, "sitemap", "", "explicit sitemap URL")
	cmd.Flags().IntVar(&flags.maxURLs, "max-urls", 0, "cap discovered URLs (defaults to sitemap.max_urls)")
	cmd.Flags().BoolVar(&flags.discoverOnly, "discover-only", false, "list URLs without fetching pages")
	cmd.Flags().BoolVar(&flags.jsonOut, "json", false, "print the full result as JSON")
	return cmd
}

func runScan(cmd *cobra.Command, flags scanFlags) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, deps.cfg, deps.logger)
	if err != nil {
		return fmt.Errorf("initialize application: %w", err)
	}
	defer a.Close(context.Background())

	siteURL := flags.siteURL
	if siteURL == "" {
		siteURL = deps.cfg.Site.BaseURL
	}
	if siteURL == "" {
		return fmt.Errorf("--site or site.base_url is required")
	}
	maxURLs := flags.maxURLs
	if maxURLs <= 0 {
		maxURLs = deps.cfg.Sitemap.MaxURLs
	}

	scanID, err := a.IDGen.NewID()
	if err != nil {
		return fmt.Errorf("generate scan id: %w", err)
	}
	scan := seo.Scan{
		ID:        scanID,
		Status:    seo.ScanStatusQueued,
		Submitted: a.Clock.Now(),
		Parameters: seo.ScanParameters{
			SiteURL:        siteURL,
			SitemapURL:     flags.sitemapURL,
			MaxURLs:        maxURLs,
			Concurrency:    deps.cfg.Corpus.Concurrency,
			CollectContent: !flags.discoverOnly,
			RespectRobots:  deps.cfg.Corpus.RespectRobots,
		},
	}
	if err := a.Store.CreateScan(ctx, scan); err != nil {
		return fmt.Errorf("create scan: %w", err)
	}

	outcome, err := a.Engine.RunScan(ctx, scan)
	if err != nil {
		return fmt.Errorf("scan %s: %w", scanID, err)
	}

	deps.logger.Info("scan finished",
		zap.String("scan_id", scanID),
		zap.Int("urls_discovered", outcome.Counters.URLsDiscovered),
		zap.Int("pages_fetched", outcome.Counters.PagesFetched),
		zap.Int("pages_failed", outcome.Counters.PagesFailed),
	)

	if flags.jsonOut {
		stored, err := a.Store.GetScan(ctx, scanID)
		if err != nil {
			return fmt.Errorf("load scan: %w", err)
		}
		pages, err := a.Store.ListPages(ctx, scanID)
		if err != nil {
			return fmt.Errorf("load pages: %w", err)
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(seo.ScanResult{Scan: stored, Pages: pages})
	}

	for _, page := range outcome.Pages {
		fmt.Printf("%3d  %s  %s\n", page.Record.Score, page.Record.URL, page.Record.Title)
	}
	return nil
}

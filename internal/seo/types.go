// Package seo defines the core types shared across the content-automation
// subsystems: scans, page records, drafts, link placements, and publishes.
package seo

import (
	"net/http"
	"time"
)

// ScanStatus represents the lifecycle state of a sitemap scan.
type ScanStatus string

// Scan status values persisted in the scan store.
const (
	ScanStatusQueued    ScanStatus = "queued"
	ScanStatusRunning   ScanStatus = "running"
	ScanStatusSucceeded ScanStatus = "succeeded"
	ScanStatusFailed    ScanStatus = "failed"
	ScanStatusCanceled  ScanStatus = "canceled"
)

// ScanParameters captures per-scan knobs requested by the client.
type ScanParameters struct {
	SiteURL               string            `json:"site_url"`
	SitemapURL            string            `json:"sitemap_url,omitempty"`
	MaxURLs               int               `json:"max_urls"`
	Concurrency           int               `json:"concurrency"`
	CollectContent        bool              `json:"collect_content"`
	RespectRobots         bool              `json:"respect_robots" mapstructure:"respect_robots"`
	RespectRobotsProvided bool              `json:"-" mapstructure:"respect_robots_provided"`
	Tags                  map[string]string `json:"tags,omitempty"`
}

// Scan is the metadata persisted for each submitted scan request.
type Scan struct {
	ID         string         `json:"id"`
	Status     ScanStatus     `json:"status"`
	Submitted  time.Time      `json:"submitted_at"`
	Started    *time.Time     `json:"started_at,omitempty"`
	Finished   *time.Time     `json:"finished_at,omitempty"`
	ErrorText  string         `json:"error_text,omitempty"`
	Parameters ScanParameters `json:"parameters"`
	Counters   ScanCounters   `json:"counters"`
}

// ScanCounters tracks discovery and fetch stats per scan.
type ScanCounters struct {
	URLsDiscovered int `json:"urls_discovered"`
	PagesFetched   int `json:"pages_fetched"`
	PagesFailed    int `json:"pages_failed"`
}

// PageRecord is persisted for each page examined during a scan.
type PageRecord struct {
	ScanID          string    `json:"scan_id"`
	URL             string    `json:"url"`
	Title           string    `json:"title,omitempty"`
	MetaDescription string    `json:"meta_description,omitempty"`
	WordCount       int       `json:"word_count"`
	H1Count         int       `json:"h1_count"`
	StatusCode      int       `json:"status_code"`
	FetchedAt       time.Time `json:"fetched_at"`
	DurationMs      int64     `json:"duration_ms"`
	ContentHash     string    `json:"content_hash,omitempty"`
	SnapshotURI     string    `json:"snapshot_uri,omitempty"`
	Score           int       `json:"score"`
	UsedHeadless    bool      `json:"used_headless"`
}

// PageContent is the extracted text form of a fetched page; it feeds the
// scorer and the link engine corpus.
type PageContent struct {
	URL             string
	Title           string
	MetaDescription string
	Headings        []string
	H1Count         int
	Text            string
	HTML            []byte
	// ModifiedAt is the page's last modification time when the page or the
	// response declares one; zero when unknown.
	ModifiedAt time.Time
}

// GenerationRequest describes what the AI collaborator should write.
type GenerationRequest struct {
	Topic       string
	Keywords    []string
	TargetWords int
	SiteContext string
}

// Draft is a generated article before linking and publishing.
type Draft struct {
	Topic       string    `json:"topic"`
	TargetURL   string    `json:"target_url,omitempty"`
	Title       string    `json:"title"`
	HTML        string    `json:"html"`
	Keywords    []string  `json:"keywords,omitempty"`
	Model       string    `json:"model,omitempty"`
	GeneratedAt time.Time `json:"generated_at"`
}

// LinkPlacement is one accepted internal link: the anchor phrase, the byte
// range it occupies in the draft HTML, and the target it points at.
type LinkPlacement struct {
	Anchor    string  `json:"anchor"`
	TargetURL string  `json:"target_url"`
	Score     float64 `json:"score"`
	Start     int     `json:"start"`
	End       int     `json:"end"`
}

// PublishRequest maps onto the WordPress /wp/v2/posts payload.
type PublishRequest struct {
	Title      string `json:"title"`
	Content    string `json:"content"`
	Slug       string `json:"slug,omitempty"`
	Status     string `json:"status"`
	Excerpt    string `json:"excerpt,omitempty"`
	Categories []int  `json:"categories,omitempty"`
	Tags       []int  `json:"tags,omitempty"`
}

// PublishResult is returned after a successful WordPress create/update.
type PublishResult struct {
	PostID int    `json:"post_id"`
	Link   string `json:"link"`
	Status string `json:"status"`
}

// FetchRequest captures everything needed to fetch a page.
type FetchRequest struct {
	URL           string
	Render        bool
	RespectRobots bool
	Headers       http.Header
}

// FetchResponse is the result returned by a Fetcher implementation.
type FetchResponse struct {
	URL          string
	StatusCode   int
	Headers      http.Header
	Body         []byte
	Duration     time.Duration
	UsedHeadless bool
}

// ScanResult is returned by the API result endpoint.
type ScanResult struct {
	Scan  Scan         `json:"scan"`
	Pages []PageRecord `json:"pages"`
}

package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/pagelift/pagelift/internal/seo"
)

const (
	defaultScanLimit = 50
	maxScanLimit     = 500
)

// scanDTO is the wire form of a scan, with derived runtime.
type scanDTO struct {
	ID             string     `json:"id"`
	Status         string     `json:"status"`
	SubmittedAt    time.Time  `json:"submitted_at"`
	StartedAt      *time.Time `json:"started_at,omitempty"`
	FinishedAt     *time.Time `json:"finished_at,omitempty"`
	RuntimeSeconds *float64   `json:"runtime_seconds,omitempty"`
	Error          string     `json:"error,omitempty"`
	SiteURL        string     `json:"site_url"`
	URLsDiscovered int        `json:"urls_discovered"`
	PagesFetched   int        `json:"pages_fetched"`
	PagesFailed    int        `json:"pages_failed"`
}

type pageDTO struct {
	URL             string    `json:"url"`
	Title           string    `json:"title,omitempty"`
	MetaDescription string    `json:"meta_description,omitempty"`
	WordCount       int       `json:"word_count"`
	H1Count         int       `json:"h1_count"`
	StatusCode      int       `json:"status_code"`
	Score           int       `json:"score"`
	FetchedAt       time.Time `json:"fetched_at"`
	DurationMs      int64     `json:"duration_ms"`
	SnapshotURI     string    `json:"snapshot_uri,omitempty"`
	UsedHeadless    bool      `json:"used_headless"`
}

type scanResultDTO struct {
	Scan  scanDTO   `json:"scan"`
	Pages []pageDTO `json:"pages"`
}

func toScanDTO(scan seo.Scan) scanDTO {
	dto := scanDTO{
		ID:             scan.ID,
		Status:         string(scan.Status),
		SubmittedAt:    scan.Submitted,
		StartedAt:      scan.Started,
		FinishedAt:     scan.Finished,
		Error:          scan.ErrorText,
		SiteURL:        scan.Parameters.SiteURL,
		URLsDiscovered: scan.Counters.URLsDiscovered,
		PagesFetched:   scan.Counters.PagesFetched,
		PagesFailed:    scan.Counters.PagesFailed,
	}
	if scan.Started != nil && scan.Finished != nil {
		runtime := scan.Finished.Sub(*scan.Started).Seconds()
		dto.RuntimeSeconds = &runtime
	}
	return dto
}

func toScanDTOs(in []seo.Scan) []scanDTO {
	out := make([]scanDTO, 0, len(in))
	for _, scan := range in {
		out = append(out, toScanDTO(scan))
	}
	return out
}

func toPageDTO(page seo.PageRecord) pageDTO {
	return pageDTO{
		URL:             page.URL,
		Title:           page.Title,
		MetaDescription: page.MetaDescription,
		WordCount:       page.WordCount,
		H1Count:         page.H1Count,
		StatusCode:      page.StatusCode,
		Score:           page.Score,
		FetchedAt:       page.FetchedAt,
		DurationMs:      page.DurationMs,
		SnapshotURI:     page.SnapshotURI,
		UsedHeadless:    page.UsedHeadless,
	}
}

func toPageDTOs(in []seo.PageRecord) []pageDTO {
	out := make([]pageDTO, 0, len(in))
	for _, page := range in {
		out = append(out, toPageDTO(page))
	}
	return out
}

func parseLimitOffset(r *http.Request, def, maxLimit int) (int, int, error) {
	limit := def
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			return 0, 0, fmt.Errorf("invalid limit %q", raw)
		}
		if parsed > maxLimit {
			parsed = maxLimit
		}
		limit = parsed
	}
	offset := 0
	if raw := r.URL.Query().Get("offset"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			return 0, 0, fmt.Errorf("invalid offset %q", raw)
		}
		offset = parsed
	}
	return limit, offset, nil
}

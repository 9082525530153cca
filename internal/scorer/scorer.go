// Package scorer grades crawled pages so the autopilot can decide which
// ones need a content refresh first.
package scorer

import (
	"net/url"
	"strings"
	"time"

	"github.com/pagelift/pagelift/internal/seo"
)

// Config tunes the heuristic weights' thresholds.
type Config struct {
	MinWords        int
	TitleMinLen     int
	TitleMaxLen     int
	DescMinLen      int
	DescMaxLen      int
	MaxSlugDepth    int
	FreshnessWindow time.Duration
}

// DefaultConfig mirrors common on-page SEO guidance.
func DefaultConfig() Config {
	return Config{
		MinWords:        300,
		TitleMinLen:     30,
		TitleMaxLen:     60,
		DescMinLen:      70,
		DescMaxLen:      160,
		MaxSlugDepth:    3,
		FreshnessWindow: 365 * 24 * time.Hour,
	}
}

// Scorer computes a 0-100 heuristic score per page. Higher is healthier;
// the autopilot refreshes low scorers first.
type Scorer struct {
	cfg   Config
	clock seo.Clock
}

// New builds a Scorer, falling back to defaults for zero fields.
func New(cfg Config) *Scorer {
	return NewWithClock(cfg, seo.SystemClock{})
}

// NewWithClock is New with an injected clock for staleness checks.
func NewWithClock(cfg Config, clock seo.Clock) *Scorer {
	def := DefaultConfig()
	if cfg.MinWords <= 0 {
		cfg.MinWords = def.MinWords
	}
	if cfg.TitleMaxLen <= 0 {
		cfg.TitleMinLen, cfg.TitleMaxLen = def.TitleMinLen, def.TitleMaxLen
	}
	if cfg.DescMaxLen <= 0 {
		cfg.DescMinLen, cfg.DescMaxLen = def.DescMinLen, def.DescMaxLen
	}
	if cfg.MaxSlugDepth <= 0 {
		cfg.MaxSlugDepth = def.MaxSlugDepth
	}
	if cfg.FreshnessWindow <= 0 {
		cfg.FreshnessWindow = def.FreshnessWindow
	}
	return &Scorer{cfg: cfg, clock: clock}
}

// Score grades one page. Pages that failed to fetch score zero.
func (s *Scorer) Score(content seo.PageContent, statusCode int) int {
	if statusCode < 200 || statusCode >= 300 {
		return 0
	}
	score := s.wordScore(content.Text) +
		s.titleScore(content.Title) +
		s.descriptionScore(content.MetaDescription) +
		s.headingScore(content.Headings) +
		s.depthScore(content.URL) +
		s.freshnessScore(content.ModifiedAt)
	if score > 100 {
		score = 100
	}
	return score
}

// wordScore awards up to 25 points, scaling linearly to MinWords.
func (s *Scorer) wordScore(text string) int {
	words := len(strings.Fields(text))
	if words >= s.cfg.MinWords {
		return 25
	}
	return 25 * words / s.cfg.MinWords
}

// titleScore awards 20 for a title in the ideal length band, 10 for any
// title at all.
func (s *Scorer) titleScore(title string) int {
	n := len(title)
	switch {
	case n == 0:
		return 0
	case n >= s.cfg.TitleMinLen && n <= s.cfg.TitleMaxLen:
		return 20
	default:
		return 10
	}
}

func (s *Scorer) descriptionScore(desc string) int {
	n := len(desc)
	switch {
	case n == 0:
		return 0
	case n >= s.cfg.DescMinLen && n <= s.cfg.DescMaxLen:
		return 15
	default:
		return 7
	}
}

// headingScore awards 15 when the page has at least one heading and the
// first one is non-trivial, 7 for headings that are all very short.
func (s *Scorer) headingScore(headings []string) int {
	if len(headings) == 0 {
		return 0
	}
	for _, h := range headings {
		if len(strings.Fields(h)) >= 2 {
			return 15
		}
	}
	return 7
}

// depthScore prefers shallow slugs: full points up to MaxSlugDepth path
// segments, none past that.
func (s *Scorer) depthScore(raw string) int {
	u, err := url.Parse(raw)
	if err != nil {
		return 0
	}
	depth := 0
	for _, seg := range strings.Split(u.Path, "/") {
		if seg != "" {
			depth++
		}
	}
	switch {
	case depth <= s.cfg.MaxSlugDepth:
		return 10
	case depth == s.cfg.MaxSlugDepth+1:
		return 5
	default:
		return 0
	}
}

// freshnessScore penalizes pages whose declared modification time is older
// than FreshnessWindow. Pages with no detectable date are not penalized.
func (s *Scorer) freshnessScore(modified time.Time) int {
	if modified.IsZero() {
		return 15
	}
	age := s.clock.Now().Sub(modified)
	switch {
	case age <= s.cfg.FreshnessWindow:
		return 15
	case age <= 2*s.cfg.FreshnessWindow:
		return 7
	default:
		return 0
	}
}

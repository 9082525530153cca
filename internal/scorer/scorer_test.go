package scorer

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pagelift/pagelift/internal/seo"
)

func wellFormedPage() seo.PageContent {
	return seo.PageContent{
		URL:             "https://example.com/guides/espresso",
		Title:           "How to Pull the Perfect Espresso Shot",
		MetaDescription: "A practical walkthrough of dialing in grind size, dose, and extraction time for consistently great espresso at home.",
		Headings:        []string{"Dialing In", "Grind Size", "Extraction Time"},
		Text:            strings.Repeat("espresso extraction grind dose tamp ", 80),
	}
}

func TestScoreWellFormedPage(t *testing.T) {
	t.Parallel()

	s := New(DefaultConfig())
	require.Equal(t, 100, s.Score(wellFormedPage(), http.StatusOK))
}

func TestScoreFailedFetchIsZero(t *testing.T) {
	t.Parallel()

	s := New(DefaultConfig())
	require.Equal(t, 0, s.Score(wellFormedPage(), http.StatusNotFound))
	require.Equal(t, 0, s.Score(wellFormedPage(), 0))
}

func TestScorePenalizesThinContent(t *testing.T) {
	t.Parallel()

	s := New(DefaultConfig())
	page := wellFormedPage()
	page.Text = "just a few words here"
	thin := s.Score(page, http.StatusOK)
	require.Less(t, thin, 100)
	require.Greater(t, thin, 0)
}

func TestScorePenalizesMissingMetadata(t *testing.T) {
	t.Parallel()

	s := New(DefaultConfig())
	full := s.Score(wellFormedPage(), http.StatusOK)

	page := wellFormedPage()
	page.Title = ""
	page.MetaDescription = ""
	bare := s.Score(page, http.StatusOK)
	require.Less(t, bare, full)
}

func TestScoreOutOfBandTitleGetsPartialCredit(t *testing.T) {
	t.Parallel()

	s := New(DefaultConfig())
	page := wellFormedPage()
	page.Title = "Espresso"
	short := s.Score(page, http.StatusOK)

	page.Title = ""
	none := s.Score(page, http.StatusOK)
	require.Greater(t, short, none)
}

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

func TestScorePenalizesStalePages(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	s := NewWithClock(DefaultConfig(), fixedClock{now: now})

	fresh := wellFormedPage()
	fresh.ModifiedAt = now.AddDate(0, -1, 0)
	require.Equal(t, 100, s.Score(fresh, http.StatusOK))

	aging := wellFormedPage()
	aging.ModifiedAt = now.AddDate(-1, -6, 0)
	stale := wellFormedPage()
	stale.ModifiedAt = now.AddDate(-3, 0, 0)

	agingScore := s.Score(aging, http.StatusOK)
	staleScore := s.Score(stale, http.StatusOK)
	require.Less(t, agingScore, 100)
	require.Less(t, staleScore, agingScore)
}

func TestScoreUndatedPageNotPenalized(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	s := NewWithClock(DefaultConfig(), fixedClock{now: now})

	undated := wellFormedPage()
	stale := wellFormedPage()
	stale.ModifiedAt = now.AddDate(-3, 0, 0)
	require.Greater(t, s.Score(undated, http.StatusOK), s.Score(stale, http.StatusOK))
}

func TestScorePenalizesDeepSlugs(t *testing.T) {
	t.Parallel()

	s := New(DefaultConfig())
	shallow := wellFormedPage()
	deep := wellFormedPage()
	deep.URL = "https://example.com/a/b/c/d/e/f"
	require.Greater(t, s.Score(shallow, http.StatusOK), s.Score(deep, http.StatusOK))
}

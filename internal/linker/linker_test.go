package linker

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func testTargets() []Target {
	return []Target{
		{
			URL:   "https://site.test/espresso-grinders",
			Title: "Best Espresso Grinders",
			Text:  "burr grinder espresso grind consistency dose",
		},
		{
			URL:   "https://site.test/milk-frothing",
			Title: "Milk Frothing Guide",
			Text:  "steam wand microfoam latte texture",
		},
		{
			URL:   "https://site.test/water-quality",
			Title: "Water Quality for Coffee",
			Text:  "mineral content filtration brewing water",
		},
	}
}

const testDraft = `<p>Choosing the right espresso grinders matters more than the machine itself. ` +
	`Good milk frothing technique turns an ordinary shot into a flat white. ` +
	`We already cover <a href="https://site.test/water-quality">water quality</a> in detail.</p>` +
	`<h2>Espresso grinders compared</h2>` +
	`<p>Final thoughts without further targets.</p>`

func testEngine() *Engine {
	return New(Config{
		MaxLinks:     8,
		MaxPerTarget: 1,
		MinScore:     0.3,
		MinAnchorLen: 3,
		MaxAnchorLen: 60,
		NGramMax:     4,
	})
}

func TestPlaceLinksRelevantPhrases(t *testing.T) {
	t.Parallel()

	placements := testEngine().Place(testDraft, "", testTargets())
	require.Len(t, placements, 2)

	require.Equal(t, "espresso grinders", placements[0].Anchor)
	require.Equal(t, "https://site.test/espresso-grinders", placements[0].TargetURL)
	require.Equal(t, "milk frothing", placements[1].Anchor)
	require.Equal(t, "https://site.test/milk-frothing", placements[1].TargetURL)

	for _, p := range placements {
		require.Equal(t, p.Anchor, testDraft[p.Start:p.End])
		require.GreaterOrEqual(t, p.Score, 0.3)
	}
	// Sorted by position.
	require.Less(t, placements[0].Start, placements[1].Start)
}

func TestPlaceSkipsHeadingsAnchorsAndCode(t *testing.T) {
	t.Parallel()

	draft := `<h2>espresso grinders</h2>` +
		`<pre>espresso grinders</pre>` +
		`<code>espresso grinders</code>` +
		`<p><a href="/x">espresso grinders</a></p>`
	placements := testEngine().Place(draft, "", testTargets())
	require.Empty(t, placements)
}

func TestPlaceRespectsMaxPerTarget(t *testing.T) {
	t.Parallel()

	draft := `<p>First mention of espresso grinders here.</p>` +
		`<p>Second mention of espresso grinders there.</p>`
	placements := testEngine().Place(draft, "", testTargets())

	count := 0
	for _, p := range placements {
		if p.TargetURL == "https://site.test/espresso-grinders" {
			count++
		}
	}
	require.Equal(t, 1, count)
}

func TestPlaceRespectsMaxLinks(t *testing.T) {
	t.Parallel()

	e := New(Config{
		MaxLinks:     1,
		MaxPerTarget: 1,
		MinScore:     0.3,
		NGramMax:     4,
	})
	placements := e.Place(testDraft, "", testTargets())
	require.Len(t, placements, 1)
}

func TestPlaceHonorsExtraStopwords(t *testing.T) {
	t.Parallel()

	e := New(Config{
		MaxLinks:     8,
		MaxPerTarget: 1,
		MinScore:     0.3,
		MinAnchorLen: 3,
		MaxAnchorLen: 60,
		NGramMax:     4,
		Stopwords:    []string{"Espresso", "grinders", "milk", "frothing"},
	})
	placements := e.Place(testDraft, "", testTargets())
	require.Empty(t, placements)
}

func TestPlaceExcludesSelfTarget(t *testing.T) {
	t.Parallel()

	placements := testEngine().Place(testDraft, "https://site.test/espresso-grinders/", testTargets())
	for _, p := range placements {
		require.NotEqual(t, "https://site.test/espresso-grinders", p.TargetURL)
	}
}

func TestPlaceNeverOverlaps(t *testing.T) {
	t.Parallel()

	placements := testEngine().Place(testDraft, "", testTargets())
	for i := 1; i < len(placements); i++ {
		require.GreaterOrEqual(t, placements[i].Start, placements[i-1].End)
	}
}

func TestPlaceIsDeterministic(t *testing.T) {
	t.Parallel()

	e := testEngine()
	first := e.Place(testDraft, "", testTargets())
	for i := 0; i < 5; i++ {
		require.Equal(t, first, e.Place(testDraft, "", testTargets()))
	}
}

func TestApplySplicesAnchors(t *testing.T) {
	t.Parallel()

	e := testEngine()
	placements := e.Place(testDraft, "", testTargets())
	linked, err := Apply(testDraft, placements)
	require.NoError(t, err)

	require.Contains(t, linked,
		`<a href="https://site.test/espresso-grinders">espresso grinders</a>`)
	require.Contains(t, linked,
		`<a href="https://site.test/milk-frothing">milk frothing</a>`)
	// The heading text stays unlinked.
	require.Contains(t, linked, `<h2>Espresso grinders compared</h2>`)
	// The pre-existing link is untouched.
	require.Equal(t, strings.Count(testDraft, "water-quality"), strings.Count(linked, "water-quality"))
}

func TestApplyRejectsStalePlacements(t *testing.T) {
	t.Parallel()

	e := testEngine()
	placements := e.Place(testDraft, "", testTargets())
	require.NotEmpty(t, placements)

	_, err := Apply("<p>a completely different draft</p>", placements)
	require.Error(t, err)
}

func TestTokenizeSpansOffsets(t *testing.T) {
	t.Parallel()

	s := "Hello, wide world!"
	spans := tokenizeSpans(s)
	require.Len(t, spans, 3)
	require.Equal(t, "hello", spans[0].text)
	require.Equal(t, "Hello", s[spans[0].start:spans[0].end])
	require.Equal(t, "world", spans[2].text)
	require.Equal(t, "world", s[spans[2].start:spans[2].end])
}

func TestSlugTokens(t *testing.T) {
	t.Parallel()

	require.Equal(t, []string{"guides", "espresso", "machines"},
		slugTokens("https://example.com/guides/espresso-machines/"))
	require.Empty(t, slugTokens("https://example.com/"))
}

package linker

import (
	"math"
	"strings"
)

// Target is a site page that drafts may link to.
type Target struct {
	URL      string
	Title    string
	Keywords []string
	Text     string
}

// document is the indexed form of one target.
type document struct {
	target    Target
	tokens    map[string]struct{}
	titleNorm string
	slugNorm  string
}

// index holds the target corpus and per-token inverse document frequencies.
type index struct {
	docs  []document
	idf   map[string]float64
	extra map[string]struct{}
}

func (idx *index) stop(tok string) bool {
	if isStopword(tok) {
		return true
	}
	_, ok := idx.extra[tok]
	return ok
}

// buildIndex tokenizes every target (title, slug, keywords, body text) and
// computes idf = ln(1 + N/(1+df)) per token over the corpus.
func buildIndex(targets []Target, extra map[string]struct{}) *index {
	idx := &index{idf: make(map[string]float64), extra: extra}
	df := make(map[string]int)

	for _, t := range targets {
		doc := document{
			target:    t,
			tokens:    make(map[string]struct{}),
			titleNorm: normalizePhrase(t.Title),
			slugNorm:  strings.Join(slugTokens(t.URL), " "),
		}
		add := func(toks []string) {
			for _, tok := range toks {
				if idx.stop(tok) {
					continue
				}
				doc.tokens[tok] = struct{}{}
			}
		}
		add(tokenize(t.Title))
		add(slugTokens(t.URL))
		for _, kw := range t.Keywords {
			add(tokenize(kw))
		}
		add(tokenize(t.Text))

		for tok := range doc.tokens {
			df[tok]++
		}
		idx.docs = append(idx.docs, doc)
	}

	n := float64(len(idx.docs))
	for tok, count := range df {
		idx.idf[tok] = math.Log(1 + n/float64(1+count))
	}
	return idx
}

// phraseScore rates how well an anchor phrase matches one document:
// the idf-weighted fraction of phrase tokens found in the document, plus a
// bonus when the whole phrase appears in the target's title or slug.
func (idx *index) phraseScore(phraseToks []string, phraseNorm string, doc document) float64 {
	var matched, total float64
	for _, tok := range phraseToks {
		if idx.stop(tok) {
			continue
		}
		w := idx.idf[tok]
		if w == 0 {
			// Token absent from the whole corpus still dilutes the phrase.
			w = 1
		}
		total += w
		if _, ok := doc.tokens[tok]; ok {
			matched += w
		}
	}
	if total == 0 {
		return 0
	}
	// Coverage alone would let any single common token score 1.0, so damp
	// by the absolute matched weight: rare, multi-token phrases saturate
	// toward 1, generic single tokens stay low.
	score := (matched / total) * (matched / (matched + 1))
	if phraseNorm != "" &&
		(strings.Contains(doc.titleNorm, phraseNorm) || strings.Contains(doc.slugNorm, phraseNorm)) {
		score += 0.25
	}
	return score
}

// normalizePhrase lowercases and collapses a phrase to token-joined form so
// substring checks ignore punctuation and spacing.
func normalizePhrase(s string) string {
	return strings.Join(tokenize(s), " ")
}

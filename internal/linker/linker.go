package linker

import (
	"fmt"
	"sort"
	"strings"

	"golang.org/x/net/html"

	"github.com/pagelift/pagelift/internal/seo"
)

// Config tunes candidate extraction and selection.
type Config struct {
	MaxLinks     int
	MaxPerTarget int
	MinScore     float64
	MinAnchorLen int
	MaxAnchorLen int
	NGramMax     int
	// Stopwords extends the built-in stopword list, typically loaded from a
	// per-site stopwords file.
	Stopwords []string
}

// Engine scores anchor phrases against a target corpus and places links.
type Engine struct {
	cfg       Config
	extraStop map[string]struct{}
}

// New builds an Engine, filling unset knobs with workable defaults.
func New(cfg Config) *Engine {
	if cfg.MaxLinks <= 0 {
		cfg.MaxLinks = 8
	}
	if cfg.MaxPerTarget <= 0 {
		cfg.MaxPerTarget = 1
	}
	if cfg.MinAnchorLen <= 0 {
		cfg.MinAnchorLen = 3
	}
	if cfg.MaxAnchorLen <= 0 {
		cfg.MaxAnchorLen = 60
	}
	if cfg.NGramMax <= 0 {
		cfg.NGramMax = 4
	}
	e := &Engine{cfg: cfg}
	if len(cfg.Stopwords) > 0 {
		e.extraStop = make(map[string]struct{}, len(cfg.Stopwords))
		for _, w := range cfg.Stopwords {
			w = strings.ToLower(strings.TrimSpace(w))
			if w != "" {
				e.extraStop[w] = struct{}{}
			}
		}
	}
	return e
}

func (e *Engine) isStopword(tok string) bool {
	if isStopword(tok) {
		return true
	}
	_, ok := e.extraStop[tok]
	return ok
}

// candidate is a scored potential placement before selection.
type candidate struct {
	anchor    string
	start     int
	end       int
	score     float64
	targetURL string
}

// segment is a linkable run of text inside the draft HTML: outside existing
// anchors, headings, and code.
type segment struct {
	start int
	end   int
}

// Place finds internal link placements for draft (an HTML fragment).
// selfURL, when non-empty, excludes the draft's own page from the targets.
// The result is deterministic for a given draft and corpus and is sorted by
// position; byte ranges never overlap.
func (e *Engine) Place(draft, selfURL string, targets []Target) []seo.LinkPlacement {
	filtered := make([]Target, 0, len(targets))
	for _, t := range targets {
		if selfURL == "" || normalizeURL(t.URL) != normalizeURL(selfURL) {
			filtered = append(filtered, t)
		}
	}
	if len(filtered) == 0 || draft == "" {
		return nil
	}

	idx := buildIndex(filtered, e.extraStop)
	cands := e.collectCandidates(draft, idx)

	// Highest score wins; ties break on longer anchor, earlier position,
	// then target URL so output is stable.
	sort.SliceStable(cands, func(i, j int) bool {
		a, b := cands[i], cands[j]
		if a.score != b.score {
			return a.score > b.score
		}
		if la, lb := a.end-a.start, b.end-b.start; la != lb {
			return la > lb
		}
		if a.start != b.start {
			return a.start < b.start
		}
		return a.targetURL < b.targetURL
	})

	var accepted []seo.LinkPlacement
	perTarget := make(map[string]int)
	usedAnchors := make(map[string]struct{})
	for _, c := range cands {
		if len(accepted) >= e.cfg.MaxLinks {
			break
		}
		if perTarget[c.targetURL] >= e.cfg.MaxPerTarget {
			continue
		}
		anchorKey := strings.ToLower(c.anchor)
		if _, dup := usedAnchors[anchorKey]; dup {
			continue
		}
		if overlapsAny(accepted, c) {
			continue
		}
		accepted = append(accepted, seo.LinkPlacement{
			Anchor:    c.anchor,
			TargetURL: c.targetURL,
			Score:     c.score,
			Start:     c.start,
			End:       c.end,
		})
		perTarget[c.targetURL]++
		usedAnchors[anchorKey] = struct{}{}
	}

	sort.Slice(accepted, func(i, j int) bool { return accepted[i].Start < accepted[j].Start })
	return accepted
}

func (e *Engine) collectCandidates(draft string, idx *index) []candidate {
	var cands []candidate
	for _, seg := range linkableSegments(draft) {
		text := draft[seg.start:seg.end]
		spans := tokenizeSpans(text)
		for i := range spans {
			if e.isStopword(spans[i].text) {
				continue
			}
			for n := 1; n <= e.cfg.NGramMax && i+n <= len(spans); n++ {
				last := spans[i+n-1]
				if e.isStopword(last.text) {
					continue
				}
				phrase := text[spans[i].start:last.end]
				if len(phrase) > e.cfg.MaxAnchorLen {
					break
				}
				if len(phrase) < e.cfg.MinAnchorLen {
					continue
				}
				phraseToks := make([]string, n)
				for k := 0; k < n; k++ {
					phraseToks[k] = spans[i+k].text
				}
				phraseNorm := strings.Join(phraseToks, " ")
				for _, doc := range idx.docs {
					score := idx.phraseScore(phraseToks, phraseNorm, doc)
					if score < e.cfg.MinScore {
						continue
					}
					cands = append(cands, candidate{
						anchor:    phrase,
						start:     seg.start + spans[i].start,
						end:       seg.start + last.end,
						score:     score,
						targetURL: doc.target.URL,
					})
				}
			}
		}
	}
	return cands
}

// Apply splices the placements into the draft as <a> elements. Placements
// must come from Place against the same draft; each anchor is verified
// against its byte range before splicing.
func Apply(draft string, placements []seo.LinkPlacement) (string, error) {
	if len(placements) == 0 {
		return draft, nil
	}
	ordered := append([]seo.LinkPlacement(nil), placements...)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Start > ordered[j].Start })

	out := draft
	for _, p := range ordered {
		if p.Start < 0 || p.End > len(out) || p.Start >= p.End {
			return "", fmt.Errorf("placement %q out of range [%d:%d]", p.Anchor, p.Start, p.End)
		}
		if out[p.Start:p.End] != p.Anchor {
			return "", fmt.Errorf("placement %q does not match draft at [%d:%d]", p.Anchor, p.Start, p.End)
		}
		link := `<a href="` + html.EscapeString(p.TargetURL) + `">` + p.Anchor + `</a>`
		out = out[:p.Start] + link + out[p.End:]
	}
	return out, nil
}

// linkableSegments walks the HTML token stream and returns the byte ranges
// of text where a link may be inserted.
func linkableSegments(draft string) []segment {
	z := html.NewTokenizer(strings.NewReader(draft))
	var segs []segment
	offset := 0
	skipDepth := 0
	for {
		tt := z.Next()
		n := len(z.Raw())
		switch tt {
		case html.ErrorToken:
			return segs
		case html.StartTagToken:
			name, _ := z.TagName()
			if isSkippedTag(string(name)) {
				skipDepth++
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			if isSkippedTag(string(name)) && skipDepth > 0 {
				skipDepth--
			}
		case html.TextToken:
			if skipDepth == 0 && n > 0 {
				segs = append(segs, segment{start: offset, end: offset + n})
			}
		}
		offset += n
	}
}

func isSkippedTag(name string) bool {
	switch name {
	case "a", "h1", "h2", "h3", "h4", "h5", "h6", "code", "pre", "script", "style":
		return true
	default:
		return false
	}
}

func overlapsAny(accepted []seo.LinkPlacement, c candidate) bool {
	for _, p := range accepted {
		if c.start < p.End && p.Start < c.end {
			return true
		}
	}
	return false
}

func normalizeURL(u string) string {
	return strings.TrimRight(strings.ToLower(u), "/")
}

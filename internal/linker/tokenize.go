// Package linker places internal links into generated drafts: it scores
// site pages against the draft with TF-IDF-weighted token overlap, extracts
// contextual anchor phrases, and greedily selects non-overlapping placements.
package linker

import (
	"net/url"
	"strings"
	"unicode"
)

// tokenSpan is a lowercased token plus its byte range in the source string.
type tokenSpan struct {
	text  string
	start int
	end   int
}

// tokenizeSpans splits s into word tokens, keeping byte offsets so anchor
// phrases can be mapped back into the original draft.
func tokenizeSpans(s string) []tokenSpan {
	var out []tokenSpan
	start := -1
	for i, r := range s {
		if isWordRune(r) {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			out = append(out, tokenSpan{
				text:  strings.ToLower(s[start:i]),
				start: start,
				end:   i,
			})
			start = -1
		}
	}
	if start >= 0 {
		out = append(out, tokenSpan{
			text:  strings.ToLower(s[start:]),
			start: start,
			end:   len(s),
		})
	}
	return out
}

// tokenize returns just the lowercased tokens of s.
func tokenize(s string) []string {
	spans := tokenizeSpans(s)
	out := make([]string, len(spans))
	for i, sp := range spans {
		out[i] = sp.text
	}
	return out
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '\'' || r == '-'
}

// slugTokens extracts tokens from a URL path ("/guides/espresso-machines"
// yields "guides", "espresso", "machines").
func slugTokens(rawURL string) []string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil
	}
	path := strings.Trim(u.Path, "/")
	if path == "" {
		return nil
	}
	fields := strings.FieldsFunc(path, func(r rune) bool {
		return r == '/' || r == '-' || r == '_' || r == '.'
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.ToLower(f)
		if f != "" && f != "html" && f != "php" {
			out = append(out, f)
		}
	}
	return out
}

// stopwords that never carry anchor phrases on their own and never start or
// end one.
var stopwords = map[string]struct{}{}

func init() {
	for _, w := range []string{
		"a", "an", "and", "are", "as", "at", "be", "been", "but", "by",
		"can", "could", "do", "does", "for", "from", "had", "has", "have",
		"how", "i", "if", "in", "into", "is", "it", "its", "just", "more",
		"most", "no", "not", "of", "on", "onto", "or", "our", "should",
		"so", "some", "such", "than", "that", "the", "their", "then",
		"there", "these", "they", "this", "those", "to", "too", "up",
		"very", "was", "we", "were", "what", "when", "where", "which",
		"while", "will", "with", "would", "you", "your",
	} {
		stopwords[w] = struct{}{}
	}
}

func isStopword(tok string) bool {
	_, ok := stopwords[tok]
	return ok
}

// Package render escalates pages that need JavaScript to a headless browser.
package render

import (
	"bytes"
	"net/http"
	"strings"

	"github.com/pagelift/pagelift/internal/seo"
)

// Heuristic promotes a probe fetch to headless rendering when the static
// HTML looks like an unhydrated single-page app shell.
type Heuristic struct {
	minHTMLBytes int
	markers      [][]byte
	onlyTLS      bool
}

// NewHeuristic builds a detector from the configured thresholds. Markers are
// substrings that identify client-side frameworks (__NEXT_DATA__ and friends).
// With onlyTLS set, only https pages are ever promoted to the browser.
func NewHeuristic(minHTMLBytes int, markers []string, onlyTLS bool) *Heuristic {
	if minHTMLBytes <= 0 {
		minHTMLBytes = 2000
	}
	h := &Heuristic{minHTMLBytes: minHTMLBytes, onlyTLS: onlyTLS}
	for _, m := range markers {
		if m != "" {
			h.markers = append(h.markers, bytes.ToLower([]byte(m)))
		}
	}
	return h
}

// ShouldPromote implements seo.RenderDetector.
func (h *Heuristic) ShouldPromote(probe seo.FetchResponse) bool {
	if probe.StatusCode != http.StatusOK {
		return false
	}
	if h.onlyTLS && !strings.HasPrefix(strings.ToLower(probe.URL), "https://") {
		return false
	}
	if len(probe.Body) == 0 || len(probe.Body) < h.minHTMLBytes {
		return true
	}
	lower := bytes.ToLower(probe.Body)
	for _, marker := range h.markers {
		if bytes.Contains(lower, marker) {
			return true
		}
	}
	return false
}

package render

import (
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pagelift/pagelift/internal/seo"
)

func TestShouldPromoteEmptyBody(t *testing.T) {
	t.Parallel()

	h := NewHeuristic(2000, nil, false)
	require.True(t, h.ShouldPromote(seo.FetchResponse{StatusCode: http.StatusOK}))
}

func TestShouldPromoteSkipsNon200(t *testing.T) {
	t.Parallel()

	h := NewHeuristic(2000, []string{"__NEXT_DATA__"}, false)
	require.False(t, h.ShouldPromote(seo.FetchResponse{
		StatusCode: http.StatusNotFound,
		Body:       []byte("__NEXT_DATA__"),
	}))
}

func TestShouldPromoteOnMarker(t *testing.T) {
	t.Parallel()

	h := NewHeuristic(10, []string{"__NEXT_DATA__", "data-reactroot"}, false)
	body := strings.Repeat("<p>static content</p>", 50) + `<div data-reactroot></div>`
	require.True(t, h.ShouldPromote(seo.FetchResponse{
		StatusCode: http.StatusOK,
		Body:       []byte(body),
	}))
}

func TestShouldPromoteOnThinBody(t *testing.T) {
	t.Parallel()

	h := NewHeuristic(2000, nil, false)
	require.True(t, h.ShouldPromote(seo.FetchResponse{
		StatusCode: http.StatusOK,
		Body:       []byte("<html><body></body></html>"),
	}))
}

func TestShouldPromoteOnlyTLS(t *testing.T) {
	t.Parallel()

	h := NewHeuristic(2000, nil, true)
	thin := []byte("<html><body></body></html>")
	require.False(t, h.ShouldPromote(seo.FetchResponse{
		URL:        "http://example.com/",
		StatusCode: http.StatusOK,
		Body:       thin,
	}))
	require.True(t, h.ShouldPromote(seo.FetchResponse{
		URL:        "https://example.com/",
		StatusCode: http.StatusOK,
		Body:       thin,
	}))
}

func TestShouldNotPromoteStaticPage(t *testing.T) {
	t.Parallel()

	h := NewHeuristic(100, []string{"__NEXT_DATA__"}, false)
	body := strings.Repeat("<p>plenty of server-rendered text here</p>", 20)
	require.False(t, h.ShouldPromote(seo.FetchResponse{
		StatusCode: http.StatusOK,
		Body:       []byte(body),
	}))
}

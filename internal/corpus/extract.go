package corpus

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/pagelift/pagelift/internal/seo"
)

// Extract pulls the SEO-relevant content out of a fetched page: title, meta
// description, headings, and the visible body text.
func Extract(pageURL string, body []byte) (seo.PageContent, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return seo.PageContent{}, fmt.Errorf("parse page %s: %w", pageURL, err)
	}

	content := seo.PageContent{
		URL:   pageURL,
		Title: strings.TrimSpace(doc.Find("title").First().Text()),
		HTML:  body,
	}
	if desc, ok := doc.Find(`meta[name="description"]`).Attr("content"); ok {
		content.MetaDescription = strings.TrimSpace(desc)
	}
	content.ModifiedAt = extractModifiedAt(doc)
	doc.Find("h1, h2, h3").Each(func(_ int, s *goquery.Selection) {
		if h := collapseSpace(s.Text()); h != "" {
			content.Headings = append(content.Headings, h)
		}
	})
	content.H1Count = doc.Find("h1").Length()

	doc.Find("script, style, noscript, iframe").Remove()
	content.Text = collapseSpace(doc.Find("body").Text())
	return content, nil
}

// extractModifiedAt reads the page's modification date from Open Graph style
// meta tags, preferring modified over published times.
func extractModifiedAt(doc *goquery.Document) time.Time {
	for _, selector := range []string{
		`meta[property="article:modified_time"]`,
		`meta[property="og:updated_time"]`,
		`meta[property="article:published_time"]`,
	} {
		raw, ok := doc.Find(selector).First().Attr("content")
		if !ok {
			continue
		}
		if ts, err := time.Parse(time.RFC3339, strings.TrimSpace(raw)); err == nil {
			return ts
		}
	}
	return time.Time{}
}

// WordCount counts whitespace-separated tokens in extracted text.
func WordCount(text string) int {
	return len(strings.Fields(text))
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

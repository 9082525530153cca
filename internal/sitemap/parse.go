// Package sitemap discovers page URLs by walking a site's XML sitemaps.
package sitemap

import (
	"bytes"
	"compress/gzip"
	"encoding/xml"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Document is the outcome of parsing one sitemap fetch: page URLs plus any
// child sitemaps that still need to be walked.
type Document struct {
	PageURLs      []string
	ChildSitemaps []string
}

type urlSet struct {
	XMLName xml.Name `xml:"urlset"`
	URLs    []struct {
		Loc string `xml:"loc"`
	} `xml:"url"`
}

type sitemapIndex struct {
	XMLName  xml.Name `xml:"sitemapindex"`
	Sitemaps []struct {
		Loc string `xml:"loc"`
	} `xml:"sitemap"`
}

// Parse interprets a sitemap response body. Strict XML is attempted first
// (both <urlset> and <sitemapindex> roots, gzip transparently decompressed);
// if that yields nothing the body is treated as HTML and link-scraped, since
// some sites serve styled sitemap pages at the sitemap URL.
func Parse(body []byte, base string) (Document, error) {
	raw, err := maybeGunzip(body)
	if err != nil {
		return Document{}, err
	}

	if doc, ok := parseXML(raw); ok {
		return doc, nil
	}
	return parseHTMLFallback(raw, base)
}

func maybeGunzip(body []byte) ([]byte, error) {
	if len(body) < 2 || body[0] != 0x1f || body[1] != 0x8b {
		return body, nil
	}
	zr, err := gzip.NewReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("gunzip sitemap: %w", err)
	}
	defer zr.Close() //nolint:errcheck // read-only stream
	raw, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("gunzip sitemap: %w", err)
	}
	return raw, nil
}

func parseXML(raw []byte) (Document, bool) {
	var set urlSet
	if err := xml.Unmarshal(raw, &set); err == nil && len(set.URLs) > 0 {
		doc := Document{}
		for _, u := range set.URLs {
			if loc := strings.TrimSpace(u.Loc); loc != "" {
				doc.PageURLs = append(doc.PageURLs, loc)
			}
		}
		return doc, len(doc.PageURLs) > 0
	}

	var index sitemapIndex
	if err := xml.Unmarshal(raw, &index); err == nil && len(index.Sitemaps) > 0 {
		doc := Document{}
		for _, sm := range index.Sitemaps {
			if loc := strings.TrimSpace(sm.Loc); loc != "" {
				doc.ChildSitemaps = append(doc.ChildSitemaps, loc)
			}
		}
		return doc, len(doc.ChildSitemaps) > 0
	}
	return Document{}, false
}

func parseHTMLFallback(raw []byte, base string) (Document, error) {
	gq, err := goquery.NewDocumentFromReader(bytes.NewReader(raw))
	if err != nil {
		return Document{}, fmt.Errorf("parse sitemap html: %w", err)
	}

	baseURL, err := url.Parse(base)
	if err != nil {
		return Document{}, fmt.Errorf("parse base url: %w", err)
	}

	doc := Document{}
	seen := make(map[string]struct{})
	add := func(raw string) {
		link := normalizeLink(baseURL, raw)
		if link == "" {
			return
		}
		if _, dup := seen[link]; dup {
			return
		}
		seen[link] = struct{}{}
		if isSitemapLink(link) {
			doc.ChildSitemaps = append(doc.ChildSitemaps, link)
		} else {
			doc.PageURLs = append(doc.PageURLs, link)
		}
	}

	// Styled sitemap pages sometimes keep the <loc> elements in the markup.
	gq.Find("loc").Each(func(_ int, s *goquery.Selection) {
		add(s.Text())
	})
	gq.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		if href, ok := s.Attr("href"); ok {
			add(href)
		}
	})
	return doc, nil
}

// normalizeLink resolves raw against base and keeps only same-host HTTP(S)
// links with fragments stripped. Returns "" for anything else.
func normalizeLink(base *url.URL, raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.HasPrefix(raw, "#") || strings.HasPrefix(raw, "mailto:") {
		return ""
	}
	ref, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	abs := base.ResolveReference(ref)
	if abs.Scheme != "http" && abs.Scheme != "https" {
		return ""
	}
	if base.Hostname() != "" && !sameHost(base.Hostname(), abs.Hostname()) {
		return ""
	}
	abs.Fragment = ""
	return abs.String()
}

func sameHost(a, b string) bool {
	trim := func(h string) string { return strings.TrimPrefix(strings.ToLower(h), "www.") }
	return trim(a) == trim(b)
}

func isSitemapLink(link string) bool {
	lower := strings.ToLower(link)
	if i := strings.IndexAny(lower, "?#"); i >= 0 {
		lower = lower[:i]
	}
	return strings.HasSuffix(lower, ".xml") || strings.HasSuffix(lower, ".xml.gz")
}

// WellKnownSitemaps returns the conventional sitemap locations for a site,
// probed in order when no sitemap URL is configured. The WordPress core
// sitemap lives at /wp-sitemap.xml since 5.5.
func WellKnownSitemaps(siteURL string) []string {
	trimmed := strings.TrimRight(siteURL, "/")
	return []string{
		trimmed + "/sitemap.xml",
		trimmed + "/sitemap_index.xml",
		trimmed + "/wp-sitemap.xml",
	}
}

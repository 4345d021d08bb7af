// Package extract derives structured SEO metadata and a health score from
// fetched pages.
package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/agencykit/seo-pipeline/internal/seo"
)

// Extractor fetches one page and reads its metadata from a real parse tree,
// so attribute order and tag formatting never matter.
type Extractor struct {
	fetcher   seo.Fetcher
	userAgent string
	logger    *zap.Logger
}

// New constructs an Extractor.
func New(fetcher seo.Fetcher, userAgent string, logger *zap.Logger) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{
		fetcher:   fetcher,
		userAgent: userAgent,
		logger:    logger,
	}
}

// Extract performs a single GET and returns best-effort metadata. Fetch and
// parse failures come back as the error value, never a panic; the
// orchestrator's partial-failure policy depends on that.
func (e *Extractor) Extract(ctx context.Context, siteDomain, pageURL string) (seo.PageMeta, error) {
	resp, err := e.fetcher.Fetch(ctx, seo.FetchRequest{URL: pageURL, UserAgent: e.userAgent})
	if err != nil {
		return seo.PageMeta{URL: pageURL}, fmt.Errorf("fetch %s: %w", pageURL, err)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body))
	if err != nil {
		return seo.PageMeta{URL: pageURL}, fmt.Errorf("parse %s: %w", pageURL, err)
	}

	meta := seo.PageMeta{
		URL:  pageURL,
		Path: pathOf(pageURL),
		Raw:  resp.Body,
	}

	meta.Title = strings.TrimSpace(doc.Find("title").First().Text())
	meta.TitleLength = len(meta.Title)

	meta.MetaDescription = metaContent(doc, "description")
	meta.MetaDescriptionLength = len(meta.MetaDescription)
	meta.Robots = metaContent(doc, "robots")
	meta.CanonicalURL = strings.TrimSpace(doc.Find(`link[rel="canonical"]`).First().AttrOr("href", ""))

	h1s := doc.Find("h1")
	meta.H1Count = h1s.Length()
	meta.H1 = strings.TrimSpace(h1s.First().Text())

	meta.OGTitle = ogContent(doc, "og:title")
	meta.OGDescription = ogContent(doc, "og:description")
	meta.OGImage = ogContent(doc, "og:image")

	meta.SchemaTypes = e.schemaTypes(doc, pageURL)
	meta.HasSchema = len(meta.SchemaTypes) > 0

	meta.InternalLinks, meta.ExternalLinks = countLinks(doc, siteDomain)
	meta.ImageCount, meta.ImagesMissingAlt = countImages(doc)
	meta.WordCount = wordCount(doc)

	meta.HealthScore = HealthScore(meta)
	return meta, nil
}

// HealthScore computes the heuristic 0-100 on-page score: 50 base, bonuses
// for title/description lengths in range, a single H1, a canonical link,
// structured data, and fully alt-tagged images. Clamped at 100.
func HealthScore(meta seo.PageMeta) int {
	score := 50
	if meta.TitleLength >= 30 && meta.TitleLength <= 60 {
		score += 10
	}
	if meta.MetaDescriptionLength >= 120 && meta.MetaDescriptionLength <= 160 {
		score += 10
	}
	if meta.H1Count == 1 {
		score += 10
	}
	if meta.CanonicalURL != "" {
		score += 5
	}
	if meta.HasSchema {
		score += 10
	}
	if meta.ImageCount > 0 && meta.ImagesMissingAlt == 0 {
		score += 5
	}
	if score > 100 {
		score = 100
	}
	return score
}

func metaContent(doc *goquery.Document, name string) string {
	return strings.TrimSpace(doc.Find(fmt.Sprintf(`meta[name=%q]`, name)).First().AttrOr("content", ""))
}

func ogContent(doc *goquery.Document, property string) string {
	return strings.TrimSpace(doc.Find(fmt.Sprintf(`meta[property=%q]`, property)).First().AttrOr("content", ""))
}

// schemaTypes parses every JSON-LD block; a malformed block contributes
// nothing and never aborts extraction.
func (e *Extractor) schemaTypes(doc *goquery.Document, pageURL string) []string {
	var types []string
	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, s *goquery.Selection) {
		var parsed any
		if err := json.Unmarshal([]byte(s.Text()), &parsed); err != nil {
			e.logger.Debug("skipping malformed JSON-LD block",
				zap.String("url", pageURL),
				zap.Error(err),
			)
			return
		}
		types = append(types, typesOf(parsed)...)
	})
	return types
}

func typesOf(parsed any) []string {
	switch v := parsed.(type) {
	case map[string]any:
		return typeValues(v["@type"])
	case []any:
		var out []string
		for _, item := range v {
			obj, ok := item.(map[string]any)
			if !ok {
				continue
			}
			out = append(out, typeValues(obj["@type"])...)
		}
		return out
	default:
		return nil
	}
}

func typeValues(raw any) []string {
	switch v := raw.(type) {
	case string:
		if v == "" {
			return nil
		}
		return []string{v}
	case []any:
		var out []string
		for _, item := range v {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

func countLinks(doc *goquery.Document, siteDomain string) (internal, external int) {
	host := normalizeHost(siteDomain)
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href := strings.TrimSpace(s.AttrOr("href", ""))
		switch {
		case href == "" || strings.HasPrefix(href, "#"):
			return
		case strings.HasPrefix(href, "/"):
			internal++
		case strings.HasPrefix(href, "http://"), strings.HasPrefix(href, "https://"):
			u, err := url.Parse(href)
			if err != nil {
				return
			}
			if normalizeHost(u.Hostname()) == host {
				internal++
			} else {
				external++
			}
		}
	})
	return internal, external
}

func countImages(doc *goquery.Document) (total, missingAlt int) {
	doc.Find("img").Each(func(_ int, s *goquery.Selection) {
		total++
		if strings.TrimSpace(s.AttrOr("alt", "")) == "" {
			missingAlt++
		}
	})
	return total, missingAlt
}

// wordCount strips script and style contents, flattens the remaining markup
// to text, and counts whitespace-delimited tokens.
func wordCount(doc *goquery.Document) int {
	clone := doc.Selection.Clone()
	clone.Find("script, style").Remove()
	return len(strings.Fields(clone.Text()))
}

func pathOf(pageURL string) string {
	u, err := url.Parse(pageURL)
	if err != nil || u.Path == "" {
		return "/"
	}
	return u.Path
}

func normalizeHost(host string) string {
	return strings.TrimPrefix(strings.ToLower(strings.TrimSpace(host)), "www.")
}

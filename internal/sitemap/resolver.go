// Package sitemap resolves sitemap URLs into flat lists of page entries.
package sitemap

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/antchfx/xmlquery"
	"go.uber.org/zap"

	"github.com/agencykit/seo-pipeline/internal/seo"
)

// DefaultMaxDepth bounds recursion through nested sitemap indexes.
const DefaultMaxDepth = 8

// Resolver turns a sitemap URL into a flat, order-preserving list of entries,
// recursing through sitemap indexes depth-first. A failing fetch or parse at
// any node aborts the whole resolve.
type Resolver struct {
	fetcher  seo.Fetcher
	maxDepth int
	logger   *zap.Logger
}

// NewResolver constructs a Resolver. maxDepth <= 0 selects DefaultMaxDepth.
func NewResolver(fetcher seo.Fetcher, maxDepth int, logger *zap.Logger) *Resolver {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{
		fetcher:  fetcher,
		maxDepth: maxDepth,
		logger:   logger,
	}
}

// Resolve fetches and flattens the sitemap at sitemapURL. Duplicate URLs
// across child sitemaps are preserved; de-duplication is the caller's concern.
func (r *Resolver) Resolve(ctx context.Context, sitemapURL string) ([]seo.SitemapEntry, error) {
	return r.resolve(ctx, sitemapURL, 0)
}

func (r *Resolver) resolve(ctx context.Context, sitemapURL string, depth int) ([]seo.SitemapEntry, error) {
	if depth >= r.maxDepth {
		return nil, fmt.Errorf("sitemap nesting exceeds %d levels at %s", r.maxDepth, sitemapURL)
	}

	resp, err := r.fetcher.Fetch(ctx, seo.FetchRequest{URL: sitemapURL})
	if err != nil {
		return nil, fmt.Errorf("fetch sitemap %s: %w", sitemapURL, err)
	}

	doc, err := xmlquery.Parse(bytes.NewReader(resp.Body))
	if err != nil {
		return nil, fmt.Errorf("parse sitemap %s: %w", sitemapURL, err)
	}

	if xmlquery.FindOne(doc, "//sitemapindex") != nil {
		return r.resolveIndex(ctx, doc, sitemapURL, depth)
	}
	return parseURLSet(doc), nil
}

func (r *Resolver) resolveIndex(
	ctx context.Context,
	doc *xmlquery.Node,
	sitemapURL string,
	depth int,
) ([]seo.SitemapEntry, error) {
	children := xmlquery.Find(doc, "//sitemap/loc")
	r.logger.Debug("resolving sitemap index",
		zap.String("url", sitemapURL),
		zap.Int("children", len(children)),
	)

	var entries []seo.SitemapEntry
	for _, loc := range children {
		child := strings.TrimSpace(loc.InnerText())
		if child == "" {
			continue
		}
		childEntries, err := r.resolve(ctx, child, depth+1)
		if err != nil {
			return nil, err
		}
		entries = append(entries, childEntries...)
	}
	return entries, nil
}

func parseURLSet(doc *xmlquery.Node) []seo.SitemapEntry {
	var entries []seo.SitemapEntry
	for _, node := range xmlquery.Find(doc, "//url") {
		loc := xmlquery.FindOne(node, "loc")
		if loc == nil {
			continue
		}
		u := strings.TrimSpace(loc.InnerText())
		if u == "" {
			continue
		}
		entry := seo.SitemapEntry{URL: u}
		if lastmod := xmlquery.FindOne(node, "lastmod"); lastmod != nil {
			entry.LastMod = parseLastMod(lastmod.InnerText())
		}
		if priority := xmlquery.FindOne(node, "priority"); priority != nil {
			entry.Priority = parsePriority(priority.InnerText())
		}
		entries = append(entries, entry)
	}
	return entries
}

func parseLastMod(raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t
		}
	}
	return nil
}

func parsePriority(raw string) *float64 {
	p, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || p < 0 || p > 1 {
		return nil
	}
	return &p
}

// Package sitemap expands a sitemap index into the set of job-page URLs it
// references.
package sitemap

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/antchfx/xmlquery"
	"go.uber.org/zap"

	"github.com/JakeFAU/teams-titles-scraper/internal/scraper"
)

// DefaultMarker is the path fragment that identifies a job-page location.
const DefaultMarker = "/teams-title/"

const locXPath = "//*[local-name()='loc']"

// Option customizes a Resolver.
type Option func(*Resolver)

// WithMarker overrides the path fragment used to keep content locations.
func WithMarker(marker string) Option {
	return func(r *Resolver) {
		if marker != "" {
			r.marker = marker
		}
	}
}

// WithLogger sets the logger used for skipped sitemaps.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Resolver) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// Resolver implements scraper.SitemapResolver over a Fetcher.
type Resolver struct {
	fetcher scraper.Fetcher
	marker  string
	logger  *zap.Logger
}

var _ scraper.SitemapResolver = (*Resolver)(nil)

// New returns a Resolver that downloads sitemaps through fetcher.
func New(fetcher scraper.Fetcher, opts ...Option) *Resolver {
	r := &Resolver{
		fetcher: fetcher,
		marker:  DefaultMarker,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the sorted, de-duplicated job-page URLs reachable from
// sitemapURL. Nested sitemaps are followed one level deep. A sitemap that
// cannot be fetched or parsed contributes nothing; a top-level failure yields
// an empty slice.
func (r *Resolver) Resolve(ctx context.Context, sitemapURL string) []string {
	locs, err := r.load(ctx, sitemapURL)
	if err != nil {
		r.logger.Warn("sitemap unavailable", zap.String("url", sitemapURL), zap.Error(err))
		return []string{}
	}

	seen := make(map[string]struct{}, len(locs))
	for _, loc := range locs {
		if IsNestedSitemap(loc) {
			for _, u := range r.expand(ctx, loc) {
				seen[u] = struct{}{}
			}
			continue
		}
		if strings.Contains(loc, r.marker) {
			seen[loc] = struct{}{}
		}
	}

	out := make([]string, 0, len(seen))
	for u := range seen {
		out = append(out, u)
	}
	sort.Strings(out)
	r.logger.Debug("sitemap resolved", zap.String("url", sitemapURL), zap.Int("urls", len(out)))
	return out
}

// expand loads a nested sitemap and keeps only job-page locations. Deeper
// sitemap references are ignored.
func (r *Resolver) expand(ctx context.Context, sitemapURL string) []string {
	locs, err := r.load(ctx, sitemapURL)
	if err != nil {
		r.logger.Warn("skipping sub-sitemap", zap.String("url", sitemapURL), zap.Error(err))
		return nil
	}
	var out []string
	for _, loc := range locs {
		if strings.Contains(loc, r.marker) {
			out = append(out, loc)
		}
	}
	return out
}

func (r *Resolver) load(ctx context.Context, sitemapURL string) ([]string, error) {
	body, err := r.fetcher.Fetch(ctx, sitemapURL)
	if err != nil {
		return nil, err
	}
	locs, err := ParseLocs(body)
	if err != nil {
		return nil, &scraper.ParseError{URL: sitemapURL, Err: err}
	}
	return locs, nil
}

// ParseLocs returns the trimmed text of every <loc> element in body. The
// payload is parsed as XML first and, if that fails, once more as lenient
// HTML.
func ParseLocs(body []byte) ([]string, error) {
	locs, xmlErr := parseXML(body)
	if xmlErr == nil {
		return locs, nil
	}
	locs, htmlErr := parseLenient(body)
	if htmlErr != nil {
		return nil, fmt.Errorf("xml: %v; html: %w", xmlErr, htmlErr)
	}
	return locs, nil
}

func parseXML(body []byte) ([]string, error) {
	doc, err := xmlquery.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse sitemap xml: %w", err)
	}
	nodes, err := xmlquery.QueryAll(doc, locXPath)
	if err != nil {
		return nil, fmt.Errorf("query loc: %w", err)
	}
	out := make([]string, 0, len(nodes))
	for _, n := range nodes {
		if loc := strings.TrimSpace(n.InnerText()); loc != "" {
			out = append(out, loc)
		}
	}
	return out, nil
}

func parseLenient(body []byte) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse sitemap html: %w", err)
	}
	var out []string
	doc.Find("loc").Each(func(_ int, s *goquery.Selection) {
		if loc := strings.TrimSpace(s.Text()); loc != "" {
			out = append(out, loc)
		}
	})
	return out, nil
}

// IsNestedSitemap reports whether loc points at another sitemap rather than
// a content page.
func IsNestedSitemap(loc string) bool {
	l := strings.ToLower(loc)
	if !strings.HasSuffix(l, ".xml") && !strings.HasSuffix(l, ".xml.gz") {
		return false
	}
	return strings.Contains(l, "sitemap")
}

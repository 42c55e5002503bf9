package scraper

import "context"

// Fetcher downloads a URL and returns its (decompressed) body.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// SitemapResolver expands a sitemap URL into a sorted set of job-page URLs.
// Failures are absorbed: an unreachable sitemap yields an empty slice.
type SitemapResolver interface {
	Resolve(ctx context.Context, sitemapURL string) []string
}

// Extractor turns one job-page URL into a JobRecord.
type Extractor interface {
	Extract(ctx context.Context, url string) (JobRecord, error)
}

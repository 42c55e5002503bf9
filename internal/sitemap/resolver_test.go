package sitemap

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	collyfetcher "github.com/JakeFAU/teams-titles-scraper/internal/fetcher/colly"
)

type mapFetcher map[string]string

func (m mapFetcher) Fetch(_ context.Context, url string) ([]byte, error) {
	body, ok := m[url]
	if !ok {
		return nil, errors.New("not found")
	}
	return []byte(body), nil
}

func urlset(locs ...string) string {
	var b bytes.Buffer
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>`)
	b.WriteString(`<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">`)
	for _, l := range locs {
		fmt.Fprintf(&b, "<url><loc>\n  %s\n</loc></url>", l)
	}
	b.WriteString(`</urlset>`)
	return b.String()
}

func index(locs ...string) string {
	var b bytes.Buffer
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>`)
	b.WriteString(`<sitemapindex xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">`)
	for _, l := range locs {
		fmt.Fprintf(&b, "<sitemap><loc>%s</loc></sitemap>", l)
	}
	b.WriteString(`</sitemapindex>`)
	return b.String()
}

func TestResolveSortsAndDeduplicates(t *testing.T) {
	t.Parallel()

	f := mapFetcher{
		"https://x/sitemap.xml": index("https://x/page-sitemap.xml", "https://x/post-sitemap.xml"),
		"https://x/page-sitemap.xml": urlset(
			"https://x/teams-title/zeta/",
			"https://x/teams-title/alpha/",
			"https://x/about/",
		),
		"https://x/post-sitemap.xml": urlset(
			"https://x/teams-title/alpha/",
			"https://x/teams-title/mid/",
		),
	}

	got := New(f).Resolve(context.Background(), "https://x/sitemap.xml")
	assert.Equal(t, []string{
		"https://x/teams-title/alpha/",
		"https://x/teams-title/mid/",
		"https://x/teams-title/zeta/",
	}, got)
}

func TestResolveKeepsDirectContentLocations(t *testing.T) {
	t.Parallel()

	f := mapFetcher{
		"https://x/sitemap.xml": urlset("https://x/teams-title/b/", "https://x/news/", "https://x/teams-title/a/"),
	}
	got := New(f).Resolve(context.Background(), "https://x/sitemap.xml")
	assert.Equal(t, []string{"https://x/teams-title/a/", "https://x/teams-title/b/"}, got)
}

func TestResolveTopLevelFailureIsEmpty(t *testing.T) {
	t.Parallel()

	got := New(mapFetcher{}).Resolve(context.Background(), "https://x/sitemap.xml")
	require.NotNil(t, got)
	assert.Empty(t, got)
}

func TestResolveFollowsOneLevelOnly(t *testing.T) {
	t.Parallel()

	f := mapFetcher{
		"https://x/sitemap.xml":   index("https://x/a-sitemap.xml"),
		"https://x/a-sitemap.xml": index("https://x/b-sitemap.xml", "https://x/teams-title/one/"),
		"https://x/b-sitemap.xml": urlset("https://x/teams-title/deep/"),
	}
	got := New(f).Resolve(context.Background(), "https://x/sitemap.xml")
	assert.Equal(t, []string{"https://x/teams-title/one/"}, got)
}

func TestResolveCustomMarker(t *testing.T) {
	t.Parallel()

	f := mapFetcher{"https://x/sitemap.xml": urlset("https://x/jobs/a/", "https://x/teams-title/b/")}
	got := New(f, WithMarker("/jobs/")).Resolve(context.Background(), "https://x/sitemap.xml")
	assert.Equal(t, []string{"https://x/jobs/a/"}, got)
}

func TestParseLocsFallsBackToLenientParse(t *testing.T) {
	t.Parallel()

	// Unclosed tags and a stray ampersand break strict XML decoding.
	body := []byte(`<urlset><url><loc> https://x/teams-title/a/ </loc><url><loc>https://x/teams-title/b/?a=1&b=2</loc>`)
	_, err := parseXML(body)
	require.Error(t, err)

	locs, err := ParseLocs(body)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://x/teams-title/a/", "https://x/teams-title/b/?a=1&b=2"}, locs)
}

func TestIsNestedSitemap(t *testing.T) {
	t.Parallel()

	cases := map[string]bool{
		"https://x/page-sitemap.xml":    true,
		"https://x/SITEMAP_INDEX.XML":   true,
		"https://x/sitemap-1.xml.gz":    true,
		"https://x/feed.xml":            false,
		"https://x/sitemap/":            false,
		"https://x/teams-title/sitemap": false,
	}
	for loc, want := range cases {
		assert.Equal(t, want, IsNestedSitemap(loc), loc)
	}
}

func gzipString(t *testing.T, s string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write([]byte(s))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestResolveOverHTTPSkipsFailingSubSitemap(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()

	mux.HandleFunc("/sitemap.xml", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(index(
			srv.URL+"/good-sitemap.xml",
			srv.URL+"/broken-sitemap.xml",
			srv.URL+"/packed-sitemap.xml.gz",
		)))
	})
	mux.HandleFunc("/good-sitemap.xml", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(urlset(srv.URL + "/teams-title/good/")))
	})
	mux.HandleFunc("/broken-sitemap.xml", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	packed := gzipString(t, urlset(srv.URL+"/teams-title/packed/"))
	mux.HandleFunc("/packed-sitemap.xml.gz", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(packed)
	})

	fetcher := collyfetcher.New(collyfetcher.Config{Timeout: 2 * time.Second}, nil, nil)
	got := New(fetcher).Resolve(context.Background(), srv.URL+"/sitemap.xml")
	assert.Equal(t, []string{
		srv.URL + "/teams-title/good/",
		srv.URL + "/teams-title/packed/",
	}, got)
}

package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestSanitizeSite(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{"standard http", "http://example.com/path", "example.com"},
		{"standard https", "https://Teams-Titles.hr.ufl.edu/sitemap.xml", "teams-titles.hr.ufl.edu"},
		{"no scheme", "example.com/path", "example.com"},
		{"just host", "example.com", "example.com"},
		{"host with port", "example.com:8080", "example.com"},
		{"ip address", "192.168.1.1", "192.168.1.1"},
		{"invalid url", "http://%", "unknown"},
		{"empty string", "", "unknown"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := SanitizeSite(tc.input); got != tc.expected {
				t.Errorf("SanitizeSite(%q) = %q; want %q", tc.input, got, tc.expected)
			}
		})
	}
}

func TestNewDuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	if _, err := New(reg); err != nil {
		t.Fatal(err)
	}
	if _, err := New(reg); err == nil {
		t.Fatal("expected duplicate registration error")
	}
}

func TestCollectorsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := New(reg)
	if err != nil {
		t.Fatal(err)
	}

	c.ObserveFetch("https://teams-titles.hr.ufl.edu/teams-title/a/", "ok")
	c.ObserveFetch("https://teams-titles.hr.ufl.edu/teams-title/b/", "error")
	c.ObserveRateLimitDelay("teams-titles.hr.ufl.edu", 20*time.Millisecond)
	c.ObserveUpload("gcs", nil)
	c.ObserveUpload("gcs", errors.New("denied"))

	if val := testutil.ToFloat64(c.fetchesTotal.WithLabelValues("teams-titles.hr.ufl.edu", "ok")); val != 1 {
		t.Errorf("Expected one ok fetch, got %f", val)
	}
	if val := testutil.ToFloat64(c.artifactUploadsTotal.WithLabelValues("gcs", "error")); val != 1 {
		t.Errorf("Expected one failed upload, got %f", val)
	}
	if val := testutil.CollectAndCount(c.rateLimitDelaySeconds); val != 1 {
		t.Errorf("Expected rate limit histogram to be observed, got %d", val)
	}

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(rec.Body.String(), "scraper_fetches_total") {
		t.Errorf("expected exposition to include scraper_fetches_total")
	}
}

func TestNilCollectorsAreNoops(t *testing.T) {
	var c *Collectors
	c.ObserveFetch("https://example.com", "ok")
	c.ObserveHTTPRequest("GET", "/", 200, time.Millisecond)
	c.ObserveRateLimitDelay("example.com", time.Millisecond)
	c.ObserveUpload("local", nil)
}

// Fuzz test for SanitizeSite.
func FuzzSanitizeSite(f *testing.F) {
	testcases := []string{"http://example.com", "https://google.com", "ftp://example.com"}
	for _, tc := range testcases {
		f.Add(tc)
	}
	f.Fuzz(func(t *testing.T, orig string) {
		sanitized := SanitizeSite(orig)
		if sanitized == "" {
			t.Errorf("SanitizeSite(%q) returned an empty string", orig)
		}
	})
}

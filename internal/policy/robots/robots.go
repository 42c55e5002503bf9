// Package robots gates page fetches on the source site's robots.txt. It is
// off unless scraper.respect_robots is set.
package robots

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/temoto/robotstxt"
	"go.uber.org/zap"

	"github.com/JakeFAU/teams-titles-scraper/internal/scraper"
)

// ErrDisallowed marks a URL that robots.txt forbids for our user agent.
var ErrDisallowed = errors.New("disallowed by robots.txt")

// Policy decides whether a URL may be fetched.
type Policy interface {
	Allowed(ctx context.Context, rawURL string) bool
}

// AllowAll permits every URL.
type AllowAll struct{}

// Allowed implements Policy.
func (AllowAll) Allowed(context.Context, string) bool { return true }

// Enforcer loads robots.txt once per host through the wrapped fetcher.
type Enforcer struct {
	fetcher   scraper.Fetcher
	userAgent string
	logger    *zap.Logger
	cache     sync.Map
}

// NewPolicy returns an Enforcer when respect is set and AllowAll otherwise.
func NewPolicy(respect bool, fetcher scraper.Fetcher, userAgent string, logger *zap.Logger) Policy {
	if !respect {
		return AllowAll{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Enforcer{fetcher: fetcher, userAgent: userAgent, logger: logger}
}

// Allowed implements Policy. Unreachable robots files allow access.
func (e *Enforcer) Allowed(ctx context.Context, rawURL string) bool {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return false
	}
	data, err := e.load(ctx, parsed)
	if err != nil {
		e.logger.Warn("robots fetch failed; allowing access", zap.String("host", parsed.Host), zap.Error(err))
		return true
	}
	group := data.FindGroup(e.userAgent)
	if group == nil {
		return true
	}
	return group.Test(parsed.EscapedPath())
}

func (e *Enforcer) load(ctx context.Context, parsed *url.URL) (*robotstxt.RobotsData, error) {
	hostKey := strings.ToLower(parsed.Scheme + "://" + parsed.Host)
	if cached, ok := e.cache.Load(hostKey); ok {
		data, ok := cached.(*robotstxt.RobotsData)
		if !ok {
			return nil, fmt.Errorf("robots cache type mismatch: %T", cached)
		}
		return data, nil
	}

	robotsURL := url.URL{Scheme: parsed.Scheme, Host: parsed.Host, Path: "/robots.txt"}
	status := 200
	body, err := e.fetcher.Fetch(ctx, robotsURL.String())
	if err != nil {
		var fe *scraper.FetchError
		if !errors.As(err, &fe) || fe.StatusCode == 0 {
			return nil, err
		}
		status, body = fe.StatusCode, nil
	}
	data, err := robotstxt.FromStatusAndBytes(status, body)
	if err != nil {
		return nil, fmt.Errorf("parse robots: %w", err)
	}
	e.cache.Store(hostKey, data)
	return data, nil
}

// Fetcher refuses URLs the policy disallows and delegates the rest.
type Fetcher struct {
	next   scraper.Fetcher
	policy Policy
}

// Guard wraps next with policy.
func Guard(next scraper.Fetcher, policy Policy) *Fetcher {
	return &Fetcher{next: next, policy: policy}
}

// Fetch implements scraper.Fetcher.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	if !f.policy.Allowed(ctx, rawURL) {
		return nil, &scraper.FetchError{URL: rawURL, Err: ErrDisallowed}
	}
	return f.next.Fetch(ctx, rawURL)
}

// Package collyfetcher implements scraper.Fetcher using gocolly.
package collyfetcher

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/JakeFAU/teams-titles-scraper/internal/scraper"
)

// Defaults applied when Config leaves a field empty.
const (
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64)"
	DefaultTimeout   = 30 * time.Second
)

var gzipMagic = []byte{0x1f, 0x8b}

// ErrBodyTooLarge reports a response longer than Config.MaxBodyBytes.
var ErrBodyTooLarge = errors.New("response body exceeds limit")

// Config controls collector behavior. A zero MaxBodyBytes reads bodies of any
// size.
type Config struct {
	UserAgent    string
	Timeout      time.Duration
	MaxBodyBytes int
}

// Limiter gates outgoing requests; ratelimit.Limiter satisfies it.
type Limiter interface {
	Wait(ctx context.Context, url string) error
}

// Fetcher performs single-attempt GETs through a Colly collector.
type Fetcher struct {
	cfg           Config
	baseCollector *colly.Collector
	limiter       Limiter
	logger        *zap.Logger
}

type collectorHooks interface {
	OnResponse(colly.ResponseCallback)
	OnError(colly.ErrorCallback)
}

type fetchResult struct {
	status int
	body   []byte
	err    error
}

// New builds a Fetcher. limiter may be nil.
func New(cfg Config, limiter Limiter, logger *zap.Logger) *Fetcher {
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	// One byte past the limit lets Fetch tell an overrun from an exact fit.
	bodyLimit := 0
	if cfg.MaxBodyBytes > 0 {
		bodyLimit = cfg.MaxBodyBytes + 1
	}
	c := colly.NewCollector(
		colly.Async(false),
		colly.UserAgent(cfg.UserAgent),
		colly.AllowURLRevisit(),
		colly.MaxBodySize(bodyLimit),
		// Every status reaches OnResponse; Fetch owns the 2xx check.
		colly.ParseHTTPErrorResponse(),
	)
	c.WithTransport(newHTTPTransport())
	c.SetRequestTimeout(cfg.Timeout)

	return &Fetcher{
		cfg:           cfg,
		baseCollector: c,
		limiter:       limiter,
		logger:        logger,
	}
}

// Fetch downloads rawURL. Non-2xx responses and transport failures are
// returned as *scraper.FetchError. Gzip payloads are inflated when the URL
// ends in .gz or the body carries the gzip magic number.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, &scraper.FetchError{URL: rawURL, Err: err}
	}
	if f.limiter != nil {
		if err := f.limiter.Wait(ctx, rawURL); err != nil {
			return nil, &scraper.FetchError{URL: rawURL, Err: err}
		}
	}

	start := time.Now()
	result, err := f.runCollector(ctx, f.baseCollector.Clone(), rawURL)
	if err != nil {
		f.logger.Debug("fetch canceled", zap.String("url", rawURL), zap.Error(err))
		return nil, &scraper.FetchError{URL: rawURL, Err: err}
	}
	err = result.err
	if err == nil && (result.status < 200 || result.status > 299) {
		err = fmt.Errorf("unexpected status %s", http.StatusText(result.status))
	}
	if err == nil && f.cfg.MaxBodyBytes > 0 && len(result.body) > f.cfg.MaxBodyBytes {
		err = fmt.Errorf("%w of %d bytes", ErrBodyTooLarge, f.cfg.MaxBodyBytes)
	}
	if err != nil {
		f.logger.Debug("fetch failed",
			zap.String("url", rawURL),
			zap.Int("status_code", result.status),
			zap.Error(err),
		)
		return nil, &scraper.FetchError{URL: rawURL, StatusCode: result.status, Err: err}
	}

	f.logger.Debug("fetched",
		zap.String("url", rawURL),
		zap.Int("bytes", len(result.body)),
		zap.Duration("dur", time.Since(start)),
	)
	return decompress(rawURL, result.body), nil
}

func (f *Fetcher) configureCollectorHooks(hooks collectorHooks, result *fetchResult) {
	hooks.OnResponse(func(r *colly.Response) {
		result.status = r.StatusCode
		result.body = append([]byte(nil), r.Body...)
	})
	hooks.OnError(func(r *colly.Response, err error) {
		if r != nil {
			result.status = r.StatusCode
		}
		if err == nil {
			err = errors.New("unknown colly error")
		}
		result.err = err
	})
}

// runCollector visits rawURL on its own goroutine, which owns the
// fetchResult until it sends it on done.
func (f *Fetcher) runCollector(ctx context.Context, collector *colly.Collector, rawURL string) (fetchResult, error) {
	done := make(chan fetchResult, 1)
	go func() {
		var result fetchResult
		f.configureCollectorHooks(collector, &result)
		if err := collector.Visit(rawURL); err != nil {
			result.err = fmt.Errorf("colly visit failed: %w", err)
		}
		done <- result
	}()

	select {
	case <-ctx.Done():
		return fetchResult{}, fmt.Errorf("colly fetch canceled: %w", ctx.Err())
	case result := <-done:
		return result, nil
	}
}

// decompress inflates gzip payloads and returns body unchanged when it is
// not gzip or cannot be inflated.
func decompress(rawURL string, body []byte) []byte {
	if !strings.HasSuffix(strings.ToLower(rawURL), ".gz") && !bytes.HasPrefix(body, gzipMagic) {
		return body
	}
	zr, err := gzip.NewReader(bytes.NewReader(body))
	if err != nil {
		return body
	}
	defer zr.Close() //nolint:errcheck // read-only reader
	out, err := io.ReadAll(zr)
	if err != nil {
		return body
	}
	return out
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}

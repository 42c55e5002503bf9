// Package extract turns a job-description page into a scraper.JobRecord.
//
// The page is parsed with goquery, the main content region is located, and
// the region is converted into a small Node tree on which heading-anchored
// sections are captured. Scalar fields come from regular expressions run over
// the region's flattened text.
package extract

import (
	"bytes"
	"context"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/JakeFAU/teams-titles-scraper/internal/scraper"
)

var mainClassMarkers = []string{"entry-content", "content", "post-content"}

// Extractor implements scraper.Extractor.
type Extractor struct {
	fetcher scraper.Fetcher
	logger  *zap.Logger
}

var _ scraper.Extractor = (*Extractor)(nil)

// New returns an Extractor that downloads pages through fetcher.
func New(fetcher scraper.Fetcher, logger *zap.Logger) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{fetcher: fetcher, logger: logger}
}

// Extract fetches url and parses the page.
func (e *Extractor) Extract(ctx context.Context, url string) (scraper.JobRecord, error) {
	body, err := e.fetcher.Fetch(ctx, url)
	if err != nil {
		return scraper.JobRecord{}, err
	}
	rec, err := Parse(url, body)
	if err != nil {
		return scraper.JobRecord{}, err
	}
	e.logger.Debug("page extracted",
		zap.String("url", url),
		zap.String("job_code", rec.JobCode),
	)
	return rec, nil
}

// Parse extracts a record from an already downloaded page.
func Parse(url string, body []byte) (scraper.JobRecord, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return scraper.JobRecord{}, &scraper.ParseError{URL: url, Err: err}
	}
	return FromDocument(url, doc), nil
}

// FromDocument extracts a record from a parsed page.
func FromDocument(url string, doc *goquery.Document) scraper.JobRecord {
	rec := scraper.NewJobRecord(url)

	mainSel := mainRegion(doc)
	main := FromHTML(mainSel.Get(0))
	text := main.Text()

	if h1 := doc.Find("h1").First(); h1.Length() > 0 {
		// Text pieces join with a space and NBSPs fold, so "Senior<br>Analyst"
		// reads "Senior Analyst" rather than "SeniorAnalyst".
		rec.JobTitle = FromHTML(h1.Get(0)).Text()
	}
	for _, f := range scalarFields {
		set(&rec, f.column, f.find(text))
	}
	for _, f := range sectionFields {
		set(&rec, f.column, f.capture(main))
	}
	return rec
}

// mainRegion returns the first content div, then <main>, then the whole
// document.
func mainRegion(doc *goquery.Document) *goquery.Selection {
	div := doc.Find("div").FilterFunction(func(_ int, s *goquery.Selection) bool {
		class, ok := s.Attr("class")
		if !ok {
			return false
		}
		for _, marker := range mainClassMarkers {
			if strings.Contains(class, marker) {
				return true
			}
		}
		return false
	}).First()
	if div.Length() > 0 {
		return div
	}
	if m := doc.Find("main").First(); m.Length() > 0 {
		return m
	}
	return doc.Selection
}

package extract

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	collyfetcher "github.com/JakeFAU/teams-titles-scraper/internal/fetcher/colly"
	"github.com/JakeFAU/teams-titles-scraper/internal/scraper"
)

const fullPage = `<!doctype html>
<html><head><title>ignored</title><script>var Summary = 1;</script></head>
<body>
<header><div class="site-nav">Menu</div></header>
<h1>  Accountant&nbsp;II </h1>
<div class="entry-content post">
  <p>Job Code: 004567</p>
  <p>FLSA Status: Exempt Pay Grade: 12</p>
  <h2>Summary</h2>
  <p>Performs   professional accounting work.</p>
  <p>Reconciles ledgers.</p>
  <h2>Examples of Work</h2>
  <ul>
    <li>Prepares <strong>financial</strong> statements.</li>
    <li>   </li>
    <li>Audits accounts.<ul><li>nested</li></ul></li>
  </ul>
  <h3>Education and Experience</h3>
  <p>Bachelor's degree and two years of experience.</p>
  <h3>Licensure and Certification</h3>
  <p>CPA preferred.</p>
  <h2>Supervision</h2>
  <p>None.</p>
  <h2>Competencies</h2>
  <ul><li>Attention to detail</li><li>Communication</li></ul>
  <p>Job Families: Finance</p>
</div>
</body></html>`

func TestParseFullPage(t *testing.T) {
	t.Parallel()

	rec, err := Parse("https://x/teams-title/accountant-ii/", []byte(fullPage))
	require.NoError(t, err)

	assert.Equal(t, "Accountant II", rec.JobTitle)
	assert.Equal(t, "https://x/teams-title/accountant-ii/", rec.URL)
	assert.Equal(t, "004567", rec.JobCode)
	assert.Equal(t, "Exempt", rec.FLSAStatus)
	assert.Equal(t, "12", rec.PayGrade)
	assert.Equal(t, "Performs professional accounting work.\nReconciles ledgers.", rec.Summary)
	assert.Equal(t, "♦ Prepares financial statements.\n♦ Audits accounts. nested", rec.ExamplesOfWork)
	assert.Equal(t, "Bachelor's degree and two years of experience.", rec.EducationAndExperience)
	assert.Equal(t, "CPA preferred.", rec.LicensureAndCertification)
	assert.Equal(t, "None.", rec.Supervision)
	assert.Equal(t, "♦ Attention to detail\n♦ Communication", rec.Competencies)
}

func TestParseDefaults(t *testing.T) {
	t.Parallel()

	rec, err := Parse("https://x/teams-title/empty/", []byte(`<html><body><p>Nothing here</p></body></html>`))
	require.NoError(t, err)

	assert.Equal(t, scraper.NotFound, rec.Competencies)
	assert.Equal(t, "https://x/teams-title/empty/", rec.URL)
	for i, v := range rec.Values() {
		col := scraper.Columns[i]
		if col == scraper.ColURL || col == scraper.ColCompetencies {
			continue
		}
		assert.Empty(t, v, col)
	}
}

func TestParseWithoutMainRegionUsesDocument(t *testing.T) {
	t.Parallel()

	page := `<html><body>
<h1>Lab Tech</h1>
<p>Job Code 123456</p><p>FLSA Status: Non-Exempt.</p>
<h2>Supervision</h2><p>Supervises students.</p>
</body></html>`
	rec, err := Parse("https://x/teams-title/lab-tech/", []byte(page))
	require.NoError(t, err)

	assert.Equal(t, "Lab Tech", rec.JobTitle)
	assert.Equal(t, "123456", rec.JobCode)
	assert.Equal(t, "Non-Exempt", rec.FLSAStatus)
	assert.Equal(t, "Supervises students.", rec.Supervision)
}

func TestParseTitleJoinsPiecesWithSpace(t *testing.T) {
	t.Parallel()

	page := `<html><body><h1> Senior<br>Research&nbsp;<span>Analyst</span> </h1></body></html>`
	rec, err := Parse("https://x/a", []byte(page))
	require.NoError(t, err)
	assert.Equal(t, "Senior Research Analyst", rec.JobTitle)
}

func TestParseFallsBackToMainElement(t *testing.T) {
	t.Parallel()

	page := `<html><body>
<div class="sidebar"><h2>Summary</h2><p>sidebar text</p></div>
<main><h2>Summary</h2><p>Main summary.</p></main>
</body></html>`
	rec, err := Parse("https://x/a", []byte(page))
	require.NoError(t, err)
	assert.Equal(t, "Main summary.", rec.Summary)
}

func TestSectionStopsAtStopPattern(t *testing.T) {
	t.Parallel()

	page := `<div class="content">
<h2>Summary</h2>
<p>First line.</p>
<p>Minimum Education required.</p>
<p>Never reached.</p>
</div>`
	rec, err := Parse("https://x/a", []byte(page))
	require.NoError(t, err)
	assert.Equal(t, "First line.", rec.Summary)
}

func TestSectionIncludesLooseText(t *testing.T) {
	t.Parallel()

	page := `<div class="content"><h3>Licensure and Certification</h3>  Valid driver license. <br><em>Required</em><h3>Next</h3></div>`
	rec, err := Parse("https://x/a", []byte(page))
	require.NoError(t, err)
	assert.Equal(t, "Valid driver license.\nRequired", rec.LicensureAndCertification)
}

func TestFLSATruncatedAtPay(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"FLSA Status: Exempt Pay Grade: 12":     "Exempt",
		"FLSA Status - Non-Exempt PAYGRADE 3":   "Non-Exempt",
		"flsa status exempt":                    "exempt",
		"FLSA Status: 123":                      "",
		"Job Code: 12 FLSA Status:Exempt Other": "Exempt Other",
	}
	var flsa scalarField
	for _, f := range scalarFields {
		if f.column == scraper.ColFLSAStatus {
			flsa = f
		}
	}
	for in, want := range cases {
		assert.Equal(t, want, flsa.find(in), in)
	}
}

func TestJobCodeNeedsThreeDigits(t *testing.T) {
	t.Parallel()

	rec, err := Parse("https://x/a", []byte(`<div class="content">Job Code: 12</div>`))
	require.NoError(t, err)
	assert.Empty(t, rec.JobCode)
}

func TestExtractOverHTTP(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/missing/") {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(fullPage))
	}))
	defer srv.Close()

	ex := New(collyfetcher.New(collyfetcher.Config{Timeout: 2 * time.Second}, nil, nil), nil)

	rec, err := ex.Extract(context.Background(), srv.URL+"/teams-title/accountant-ii/")
	require.NoError(t, err)
	assert.Equal(t, "004567", rec.JobCode)

	_, err = ex.Extract(context.Background(), srv.URL+"/teams-title/missing/")
	var fetchErr *scraper.FetchError
	require.True(t, errors.As(err, &fetchErr))
	assert.Equal(t, http.StatusNotFound, fetchErr.StatusCode)
}

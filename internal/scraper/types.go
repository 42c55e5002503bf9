package scraper

import "fmt"

// NotFound is the Competencies value used when a page has no such section.
const NotFound = "not found"

// Column headers in output order.
const (
	ColJobTitle       = "Job Title"
	ColURL            = "URL"
	ColJobCode        = "Job Code"
	ColFLSAStatus     = "FLSA Status"
	ColPayGrade       = "Pay Grade"
	ColSummary        = "Summary"
	ColExamples       = "Examples of Work"
	ColEducation      = "Education and Experience"
	ColLicensure      = "Licensure and Certification"
	ColSupervision    = "Supervision"
	ColCompetencies   = "Competencies"
	errorSummaryLabel = "ERROR"
)

// Columns lists the tabular headers in the order rows are written.
var Columns = []string{
	ColJobTitle,
	ColURL,
	ColJobCode,
	ColFLSAStatus,
	ColPayGrade,
	ColSummary,
	ColExamples,
	ColEducation,
	ColLicensure,
	ColSupervision,
	ColCompetencies,
}

// JobRecord is one row of output: the fields extracted from a single
// job-description page.
type JobRecord struct {
	JobTitle                  string `json:"job_title"`
	URL                       string `json:"url"`
	JobCode                   string `json:"job_code"`
	FLSAStatus                string `json:"flsa_status"`
	PayGrade                  string `json:"pay_grade"`
	Summary                   string `json:"summary"`
	ExamplesOfWork            string `json:"examples_of_work"`
	EducationAndExperience    string `json:"education_and_experience"`
	LicensureAndCertification string `json:"licensure_and_certification"`
	Supervision               string `json:"supervision"`
	Competencies              string `json:"competencies"`
}

// NewJobRecord returns a record for url with every field at its default.
func NewJobRecord(url string) JobRecord {
	return JobRecord{URL: url, Competencies: NotFound}
}

// ErrorRecord builds the placeholder row written when url could not be
// extracted. The failure reason is surfaced in the Summary column.
func ErrorRecord(url string, err error) JobRecord {
	return JobRecord{
		URL:     url,
		Summary: fmt.Sprintf("%s: %v", errorSummaryLabel, err),
	}
}

// Values returns the record's fields in Columns order.
func (r JobRecord) Values() []string {
	return []string{
		r.JobTitle,
		r.URL,
		r.JobCode,
		r.FLSAStatus,
		r.PayGrade,
		r.Summary,
		r.ExamplesOfWork,
		r.EducationAndExperience,
		r.LicensureAndCertification,
		r.Supervision,
		r.Competencies,
	}
}

// Result is the outcome of extracting one worklist URL.
type Result struct {
	URL    string
	Record JobRecord
	Err    error
}

// OK reports whether the extraction succeeded.
func (r Result) OK() bool {
	return r.Err == nil
}

// JobRecord returns the extracted record, or the error placeholder when the
// extraction failed. URL is always populated.
func (r Result) JobRecord() JobRecord {
	if r.Err != nil {
		return ErrorRecord(r.URL, r.Err)
	}
	rec := r.Record
	if rec.URL == "" {
		rec.URL = r.URL
	}
	return rec
}

// Records flattens results into rows, preserving order.
func Records(results []Result) []JobRecord {
	out := make([]JobRecord, len(results))
	for i, res := range results {
		out[i] = res.JobRecord()
	}
	return out
}

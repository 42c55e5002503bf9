package extract

import (
	"regexp"
	"strings"

	"github.com/JakeFAU/teams-titles-scraper/internal/scraper"
)

// scalarField pulls a single value out of the flattened main-region text.
type scalarField struct {
	column  string
	pattern *regexp.Regexp
	// truncate cuts the captured value at the first match of each pattern.
	truncate []*regexp.Regexp
}

// sectionField captures the content that follows a matching h2/h3 heading.
type sectionField struct {
	column   string
	titles   []*regexp.Regexp
	stops    []*regexp.Regexp
	fallback string
}

func ci(patterns ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		out[i] = regexp.MustCompile("(?i)" + p)
	}
	return out
}

var scalarFields = []scalarField{
	{
		column:  scraper.ColJobCode,
		pattern: regexp.MustCompile(`(?i)Job\s*Code[:\s\-]*([0-9]{3,})`),
	},
	{
		column:   scraper.ColFLSAStatus,
		pattern:  regexp.MustCompile(`(?i)FLSA\s*Status[:\s\-]*([A-Za-z\s\-]+)`),
		truncate: ci("Pay"),
	},
	{
		column:  scraper.ColPayGrade,
		pattern: regexp.MustCompile(`(?i)Pay\s*Grade[:\s\-]*([0-9A-Za-z\-]+)`),
	},
}

var sectionFields = []sectionField{
	{
		column: scraper.ColSummary,
		titles: ci(`^\s*Summary\s*$`, `\bSummary\b`),
		stops:  ci("Examples of Work", "Education", "Licensure", "Supervision", "Job Families", "Competencies"),
	},
	{
		column: scraper.ColExamples,
		titles: ci(`Examples\s+of\s+Work`),
		stops:  ci("Education", "Licensure", "Supervision", "Job Families", "Competencies"),
	},
	{
		column: scraper.ColEducation,
		titles: ci(`Education\s+and\s+Experience`),
		stops:  ci("Licensure", "Supervision", "Job Families", "Competencies"),
	},
	{
		column: scraper.ColLicensure,
		titles: ci(`Licensure\s+and\s+Certification`),
		stops:  ci("Supervision", "Job Families", "Competencies"),
	},
	{
		column: scraper.ColSupervision,
		titles: ci(`^Supervision$`, `\bSupervision\b`),
		stops:  ci("Job Families", "Competencies"),
	},
	{
		column:   scraper.ColCompetencies,
		titles:   ci("Competencies"),
		stops:    ci("Job Families"),
		fallback: scraper.NotFound,
	},
}

func (f scalarField) find(text string) string {
	m := f.pattern.FindStringSubmatch(text)
	if len(m) < 2 {
		return ""
	}
	val := strings.TrimSpace(m[1])
	for _, stop := range f.truncate {
		if loc := stop.FindStringIndex(val); loc != nil {
			val = val[:loc[0]]
		}
	}
	return strings.TrimSpace(val)
}

func anyMatch(patterns []*regexp.Regexp, s string) bool {
	for _, p := range patterns {
		if p.MatchString(s) {
			return true
		}
	}
	return false
}

// capture finds the section heading under main and collects the lines that
// follow it.
func (f sectionField) capture(main *Node) string {
	header := main.Find(func(n *Node) bool {
		if !n.Is("h2", "h3") {
			return false
		}
		text := n.RawText()
		return text != "" && anyMatch(f.titles, text)
	})
	if header == nil {
		return f.fallback
	}

	var lines []string
	header.EachFollowingSibling(func(sib *Node) bool {
		if sib.Is("h2", "h3") {
			return false
		}
		text := sib.Text()
		if text != "" && anyMatch(f.stops, text) {
			return false
		}
		if sib.Is("ul") {
			for _, li := range sib.ChildElements("li") {
				if t := li.Text(); t != "" {
					lines = append(lines, "♦ "+t)
				}
			}
			return true
		}
		if text != "" {
			lines = append(lines, text)
		}
		return true
	})

	out := strings.TrimSpace(strings.Join(lines, "\n"))
	if out == "" {
		return f.fallback
	}
	return out
}

// set assigns value to the record field named by column.
func set(rec *scraper.JobRecord, column, value string) {
	switch column {
	case scraper.ColJobTitle:
		rec.JobTitle = value
	case scraper.ColJobCode:
		rec.JobCode = value
	case scraper.ColFLSAStatus:
		rec.FLSAStatus = value
	case scraper.ColPayGrade:
		rec.PayGrade = value
	case scraper.ColSummary:
		rec.Summary = value
	case scraper.ColExamples:
		rec.ExamplesOfWork = value
	case scraper.ColEducation:
		rec.EducationAndExperience = value
	case scraper.ColLicensure:
		rec.LicensureAndCertification = value
	case scraper.ColSupervision:
		rec.Supervision = value
	case scraper.ColCompetencies:
		rec.Competencies = value
	}
}

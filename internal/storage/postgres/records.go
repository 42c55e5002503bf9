package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/JakeFAU/teams-titles-scraper/internal/scraper"
	"github.com/JakeFAU/teams-titles-scraper/internal/store"
)

var _ store.RecordRepository = (*Store)(nil)

// SaveRecords upserts records keyed by URL inside one transaction. Rows whose
// Summary carries an extraction error are skipped so a transient failure
// never overwrites good data.
func (s *Store) SaveRecords(ctx context.Context, runID uuid.UUID, records []scraper.JobRecord) (int, error) {
	if s == nil || s.pool == nil {
		return 0, fmt.Errorf("record store is not configured")
	}
	query := fmt.Sprintf(`
INSERT INTO %s (
	url,
	run_id,
	job_title,
	job_code,
	flsa_status,
	pay_grade,
	summary,
	examples_of_work,
	education_and_experience,
	licensure_and_certification,
	supervision,
	competencies,
	updated_at
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,now()
)
ON CONFLICT (url) DO UPDATE SET
	run_id = EXCLUDED.run_id,
	job_title = EXCLUDED.job_title,
	job_code = EXCLUDED.job_code,
	flsa_status = EXCLUDED.flsa_status,
	pay_grade = EXCLUDED.pay_grade,
	summary = EXCLUDED.summary,
	examples_of_work = EXCLUDED.examples_of_work,
	education_and_experience = EXCLUDED.education_and_experience,
	licensure_and_certification = EXCLUDED.licensure_and_certification,
	supervision = EXCLUDED.supervision,
	competencies = EXCLUDED.competencies,
	updated_at = EXCLUDED.updated_at`, s.recordTable)

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	written := 0
	for _, rec := range records {
		if IsErrorRecord(rec) {
			continue
		}
		if _, err := tx.Exec(ctx, query,
			rec.URL,
			runID,
			rec.JobTitle,
			rec.JobCode,
			rec.FLSAStatus,
			rec.PayGrade,
			rec.Summary,
			rec.ExamplesOfWork,
			rec.EducationAndExperience,
			rec.LicensureAndCertification,
			rec.Supervision,
			rec.Competencies,
		); err != nil {
			_ = tx.Rollback(ctx)
			return 0, fmt.Errorf("upsert %s: %w", rec.URL, err)
		}
		written++
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return written, nil
}

// IsErrorRecord reports whether rec is a failed-page placeholder.
func IsErrorRecord(rec scraper.JobRecord) bool {
	return rec.JobTitle == "" && rec.Competencies == "" && strings.HasPrefix(rec.Summary, "ERROR: ")
}

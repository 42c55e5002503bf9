package postgres

import (
	"context"
	"fmt"
)

const schemaTemplate = `
CREATE TABLE IF NOT EXISTS %[1]s (
	id            UUID PRIMARY KEY,
	input         TEXT NOT NULL DEFAULT '',
	mode          TEXT NOT NULL,
	started_at    TIMESTAMPTZ NOT NULL,
	finished_at   TIMESTAMPTZ,
	status        TEXT NOT NULL,
	total         INTEGER NOT NULL DEFAULT 0,
	failed        INTEGER NOT NULL DEFAULT 0,
	artifact      TEXT,
	error_message TEXT
);
CREATE INDEX IF NOT EXISTS %[1]s_started_at_idx ON %[1]s (started_at DESC);
CREATE TABLE IF NOT EXISTS %[2]s (
	url                         TEXT PRIMARY KEY,
	run_id                      UUID NOT NULL,
	job_title                   TEXT NOT NULL DEFAULT '',
	job_code                    TEXT NOT NULL DEFAULT '',
	flsa_status                 TEXT NOT NULL DEFAULT '',
	pay_grade                   TEXT NOT NULL DEFAULT '',
	summary                     TEXT NOT NULL DEFAULT '',
	examples_of_work            TEXT NOT NULL DEFAULT '',
	education_and_experience    TEXT NOT NULL DEFAULT '',
	licensure_and_certification TEXT NOT NULL DEFAULT '',
	supervision                 TEXT NOT NULL DEFAULT '',
	competencies                TEXT NOT NULL DEFAULT '',
	updated_at                  TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS %[2]s_job_code_idx ON %[2]s (job_code);
`

// Migrate creates the run and record tables when they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, fmt.Sprintf(schemaTemplate, s.runTable, s.recordTable)); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

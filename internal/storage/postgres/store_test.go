package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/teams-titles-scraper/internal/scraper"
	"github.com/JakeFAU/teams-titles-scraper/internal/store"
)

func newMockStore(t *testing.T) (*Store, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	s, err := NewWithPool(mock, Config{})
	require.NoError(t, err)
	return s, mock
}

func TestNewWithPoolValidatesTables(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	_, err = NewWithPool(nil, Config{})
	require.Error(t, err)
	_, err = NewWithPool(mock, Config{RecordTable: "jobs; DROP TABLE x"})
	require.ErrorContains(t, err, "invalid table name")
}

func TestNewRequiresDSN(t *testing.T) {
	t.Parallel()

	_, err := New(context.Background(), Config{})
	require.ErrorContains(t, err, "db.dsn")
}

func TestSaveRecordsSkipsErrorRows(t *testing.T) {
	t.Parallel()

	s, mock := newMockStore(t)
	runID := uuid.New()

	good := scraper.NewJobRecord("https://x/teams-title/a/")
	good.JobTitle = "Accountant"
	good.JobCode = "004567"
	bad := scraper.ErrorRecord("https://x/teams-title/b/", errors.New("timeout"))

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO job_classifications").
		WithArgs(
			good.URL,
			runID,
			good.JobTitle,
			good.JobCode,
			good.FLSAStatus,
			good.PayGrade,
			good.Summary,
			good.ExamplesOfWork,
			good.EducationAndExperience,
			good.LicensureAndCertification,
			good.Supervision,
			good.Competencies,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	n, err := s.SaveRecords(context.Background(), runID, []scraper.JobRecord{good, bad})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveRecordsRollsBackOnFailure(t *testing.T) {
	t.Parallel()

	s, mock := newMockStore(t)
	rec := scraper.NewJobRecord("https://x/teams-title/a/")

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO job_classifications").WillReturnError(errors.New("constraint"))
	mock.ExpectRollback()

	_, err := s.SaveRecords(context.Background(), uuid.New(), []scraper.JobRecord{rec})
	require.ErrorContains(t, err, "constraint")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRunLifecycle(t *testing.T) {
	t.Parallel()

	s, mock := newMockStore(t)
	ctx := context.Background()
	id := uuid.New()
	started := time.Unix(1700000000, 0).UTC()
	finished := started.Add(time.Minute)

	mock.ExpectExec("INSERT INTO scrape_runs").
		WithArgs(id, "", "default-sitemap", started, store.RunRunning).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	require.NoError(t, s.StartRun(ctx, store.Run{ID: id, Mode: "default-sitemap", StartedAt: started}))

	mock.ExpectExec("UPDATE scrape_runs").
		WithArgs(finished, store.RunSuccess, 10, 2, "gs://b/r/uf_jobs_full_formatted.xlsx", (*string)(nil), id).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	require.NoError(t, s.CompleteRun(ctx, id, store.RunOutcome{
		FinishedAt: finished,
		Status:     store.RunSuccess,
		Total:      10,
		Failed:     2,
		Artifact:   "gs://b/r/uf_jobs_full_formatted.xlsx",
	}))

	mock.ExpectExec("UPDATE scrape_runs").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	require.ErrorIs(t, s.CompleteRun(ctx, uuid.New(), store.RunOutcome{}), store.ErrNotFound)

	require.NoError(t, mock.ExpectationsWereMet())
}

func runRows() *pgxmock.Rows {
	return pgxmock.NewRows([]string{
		"id", "input", "mode", "started_at", "finished_at", "status", "total", "failed", "artifact", "error_message",
	})
}

func TestGetRun(t *testing.T) {
	t.Parallel()

	s, mock := newMockStore(t)
	id := uuid.New()
	started := time.Unix(1700000000, 0).UTC()
	var finished *time.Time
	var errMsg *string

	mock.ExpectQuery("SELECT (.+) FROM scrape_runs WHERE id").
		WithArgs(id).
		WillReturnRows(runRows().AddRow(id, "https://x/teams-title/a/", "single-page", started, finished, "running", 0, 0, "", errMsg))

	run, err := s.GetRun(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, id, run.ID)
	assert.Equal(t, store.RunRunning, run.Status)
	assert.Nil(t, run.FinishedAt)

	mock.ExpectQuery("SELECT (.+) FROM scrape_runs WHERE id").
		WithArgs(id).
		WillReturnRows(runRows())
	_, err = s.GetRun(context.Background(), id)
	require.ErrorIs(t, err, store.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListRuns(t *testing.T) {
	t.Parallel()

	s, mock := newMockStore(t)
	started := time.Unix(1700000000, 0).UTC()
	finished := started.Add(time.Minute)
	msg := "no jobs found"
	status := store.RunError
	filter := string(status)

	mock.ExpectQuery("FROM scrape_runs").
		WithArgs(&filter, 20, 0).
		WillReturnRows(runRows().AddRow(uuid.New(), "", "sitemap", started, &finished, "error", 0, 0, "", &msg))

	runs, err := s.ListRuns(context.Background(), &status, 20, 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, store.RunError, runs[0].Status)
	require.NotNil(t, runs[0].ErrorMessage)
	assert.Equal(t, msg, *runs[0].ErrorMessage)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrate(t *testing.T) {
	t.Parallel()

	s, mock := newMockStore(t)
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS scrape_runs").
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	require.NoError(t, s.Migrate(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestIsErrorRecord(t *testing.T) {
	t.Parallel()

	assert.True(t, IsErrorRecord(scraper.ErrorRecord("u", errors.New("x"))))
	ok := scraper.NewJobRecord("u")
	ok.Summary = "ERROR: handling is part of the job"
	assert.False(t, IsErrorRecord(ok))
}

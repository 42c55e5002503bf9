package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/JakeFAU/teams-titles-scraper/internal/scraper"
)

// ErrNotFound signals that the requested run does not exist.
var ErrNotFound = errors.New("run not found")

// RunStatus mirrors the scrape_runs status column.
type RunStatus string

// Run statuses persisted in scrape_runs.status.
const (
	RunRunning RunStatus = "running"
	RunSuccess RunStatus = "success"
	RunError   RunStatus = "error"
)

// Run models one invocation of the scraping pipeline.
type Run struct {
	ID uuid.UUID `json:"id"`
	// Input is the raw user input, possibly empty.
	Input string `json:"input"`
	// Mode is the planner decision (default-sitemap, sitemap, single-page).
	Mode      string    `json:"mode"`
	StartedAt time.Time `json:"started_at"`
	// FinishedAt is nil until the run is marked success/error.
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Status     RunStatus  `json:"status"`
	Total      int        `json:"total"`
	Failed     int        `json:"failed"`
	// Artifact is the location of the workbook handed back to the caller.
	Artifact     string  `json:"artifact,omitempty"`
	ErrorMessage *string `json:"error_message,omitempty"`
}

// RunOutcome carries the fields written when a run finishes.
type RunOutcome struct {
	FinishedAt   time.Time
	Status       RunStatus
	Total        int
	Failed       int
	Artifact     string
	ErrorMessage *string
}

// RunRepository persists run lifecycle rows.
type RunRepository interface {
	// StartRun inserts a run in running status.
	StartRun(ctx context.Context, run Run) error
	// CompleteRun marks the run finished.
	CompleteRun(ctx context.Context, id uuid.UUID, outcome RunOutcome) error
	// GetRun loads a single run or returns ErrNotFound.
	GetRun(ctx context.Context, id uuid.UUID) (Run, error)
	// ListRuns returns runs newest first, optionally filtered by status.
	ListRuns(ctx context.Context, status *RunStatus, limit, offset int) ([]Run, error)
}

// RecordRepository persists extracted job records.
type RecordRepository interface {
	// SaveRecords upserts records keyed by URL and returns how many were
	// written. Error records are skipped.
	SaveRecords(ctx context.Context, runID uuid.UUID, records []scraper.JobRecord) (int, error)
}

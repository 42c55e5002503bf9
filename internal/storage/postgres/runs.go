package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/JakeFAU/teams-titles-scraper/internal/store"
)

var _ store.RunRepository = (*Store)(nil)

// StartRun inserts a run row in running status.
func (s *Store) StartRun(ctx context.Context, run store.Run) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (id, input, mode, started_at, status)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO NOTHING;
	`, s.runTable)
	if _, err := s.pool.Exec(ctx, query, run.ID, run.Input, run.Mode, run.StartedAt, store.RunRunning); err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}
	return nil
}

// CompleteRun marks a run as finished.
func (s *Store) CompleteRun(ctx context.Context, id uuid.UUID, outcome store.RunOutcome) error {
	query := fmt.Sprintf(`
		UPDATE %s
		SET finished_at = $1, status = $2, total = $3, failed = $4, artifact = $5, error_message = $6
		WHERE id = $7;
	`, s.runTable)
	tag, err := s.pool.Exec(ctx, query,
		outcome.FinishedAt,
		outcome.Status,
		outcome.Total,
		outcome.Failed,
		outcome.Artifact,
		outcome.ErrorMessage,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to complete run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

const runColumns = "id, input, mode, started_at, finished_at, status, total, failed, COALESCE(artifact, ''), error_message"

// GetRun retrieves a single run by its ID.
func (s *Store) GetRun(ctx context.Context, id uuid.UUID) (store.Run, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1;`, runColumns, s.runTable)
	run, err := scanRun(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return store.Run{}, store.ErrNotFound
		}
		return store.Run{}, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

// ListRuns retrieves runs newest first, with optional status filtering.
func (s *Store) ListRuns(ctx context.Context, status *store.RunStatus, limit, offset int) ([]store.Run, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE ($1::text IS NULL OR status = $1)
		ORDER BY started_at DESC
		LIMIT $2 OFFSET $3;
	`, runColumns, s.runTable)
	var filter *string
	if status != nil {
		v := string(*status)
		filter = &v
	}
	rows, err := s.pool.Query(ctx, query, filter, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	runs := []store.Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run row: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate runs: %w", err)
	}
	return runs, nil
}

func scanRun(row pgx.Row) (store.Run, error) {
	var (
		run    store.Run
		status string
	)
	err := row.Scan(
		&run.ID,
		&run.Input,
		&run.Mode,
		&run.StartedAt,
		&run.FinishedAt,
		&status,
		&run.Total,
		&run.Failed,
		&run.Artifact,
		&run.ErrorMessage,
	)
	run.Status = store.RunStatus(status)
	return run, err
}

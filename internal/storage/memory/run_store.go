package memory

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/JakeFAU/teams-titles-scraper/internal/store"
)

var _ store.RunRepository = (*RunStore)(nil)

// RunStore provides an in-memory run history for development/testing.
type RunStore struct {
	mu   sync.RWMutex
	runs map[uuid.UUID]store.Run
}

// NewRunStore constructs a RunStore.
func NewRunStore() *RunStore {
	return &RunStore{runs: make(map[uuid.UUID]store.Run)}
}

// StartRun stores a new run in running status.
func (s *RunStore) StartRun(_ context.Context, run store.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.runs[run.ID]; exists {
		return errors.New("run already exists")
	}
	run.Status = store.RunRunning
	s.runs[run.ID] = run
	return nil
}

// CompleteRun records the final status and counters for a run.
func (s *RunStore) CompleteRun(_ context.Context, id uuid.UUID, outcome store.RunOutcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[id]
	if !ok {
		return store.ErrNotFound
	}
	finished := outcome.FinishedAt
	run.FinishedAt = &finished
	run.Status = outcome.Status
	run.Total = outcome.Total
	run.Failed = outcome.Failed
	run.Artifact = outcome.Artifact
	run.ErrorMessage = outcome.ErrorMessage
	s.runs[id] = run
	return nil
}

// GetRun returns a run by id.
func (s *RunStore) GetRun(_ context.Context, id uuid.UUID) (store.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.runs[id]
	if !ok {
		return store.Run{}, store.ErrNotFound
	}
	return run, nil
}

// ListRuns returns runs newest first.
func (s *RunStore) ListRuns(_ context.Context, status *store.RunStatus, limit, offset int) ([]store.Run, error) {
	s.mu.RLock()
	runs := make([]store.Run, 0, len(s.runs))
	for _, r := range s.runs {
		if status != nil && r.Status != *status {
			continue
		}
		runs = append(runs, r)
	}
	s.mu.RUnlock()

	sort.Slice(runs, func(i, j int) bool {
		return runs[i].StartedAt.After(runs[j].StartedAt)
	})
	if offset >= len(runs) {
		return []store.Run{}, nil
	}
	runs = runs[offset:]
	if limit > 0 && limit < len(runs) {
		runs = runs[:limit]
	}
	return runs, nil
}

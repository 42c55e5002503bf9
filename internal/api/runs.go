package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/teams-titles-scraper/internal/app"
	"github.com/JakeFAU/teams-titles-scraper/internal/export"
	"github.com/JakeFAU/teams-titles-scraper/internal/scraper"
	"github.com/JakeFAU/teams-titles-scraper/internal/store"
)

const (
	defaultRunLimit = 50
	maxRunLimit     = 500
	historyTimeout  = 3 * time.Second
	maxRequestBody  = 1 << 16
)

type createRunRequest struct {
	URL string `json:"url"`
}

// createRun handles POST /v1/runs. The body is optional; an empty url scrapes
// the default sitemap. Returns 409 while another run is in progress and 404
// when the worklist is empty.
func (s *Server) createRun(w http.ResponseWriter, r *http.Request) {
	if s.runner == nil {
		writeError(w, http.StatusServiceUnavailable, "runner unavailable")
		return
	}
	format := strings.ToLower(r.URL.Query().Get("format"))
	switch format {
	case "", "json", "xlsx", "csv":
	default:
		writeError(w, http.StatusBadRequest, "format must be json, xlsx or csv")
		return
	}

	var req createRunRequest
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "read body failed")
		return
	}
	if len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON")
			return
		}
	}

	select {
	case s.busy <- struct{}{}:
		defer func() { <-s.busy }()
	default:
		writeError(w, http.StatusConflict, "a run is already in progress")
		return
	}

	res, err := s.runner.RunScraping(r.Context(), req.URL, nil)
	if err != nil {
		switch {
		case errors.Is(err, scraper.ErrNoJobsFound):
			writeJSON(w, http.StatusNotFound, map[string]string{
				"error":  err.Error(),
				"run_id": res.RunID.String(),
			})
		case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
			writeJSON(w, http.StatusGatewayTimeout, map[string]string{
				"error":    err.Error(),
				"run_id":   res.RunID.String(),
				"artifact": res.Artifact,
			})
		default:
			s.logger.Error("run failed", zap.Error(err), zap.String("run_id", res.RunID.String()))
			writeError(w, http.StatusInternalServerError, "run failed")
		}
		return
	}

	switch format {
	case "xlsx":
		writeFile(w, res.Bundle.Primary())
	case "csv":
		writeFile(w, export.File{
			Name:        res.Bundle.Base + ".csv",
			ContentType: export.ContentTypeCSV,
			Data:        res.Bundle.CSV,
		})
	default:
		writeJSON(w, http.StatusOK, toRunResultDTO(res))
	}
}

func writeFile(w http.ResponseWriter, f export.File) {
	w.Header().Set("Content-Type", f.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", f.Name))
	w.Header().Set("Content-Length", strconv.Itoa(len(f.Data)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(f.Data); err != nil {
		zap.L().Error("write file failed", zap.Error(err))
	}
}

// RunHandler exposes read-only run history endpoints.
type RunHandler struct {
	repo    store.RunRepository
	timeout time.Duration
	logger  *zap.Logger
}

// NewRunHandler wires the repository and logger.
func NewRunHandler(repo store.RunRepository, logger *zap.Logger) *RunHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RunHandler{
		repo:    repo,
		timeout: historyTimeout,
		logger:  logger,
	}
}

// ListRuns handles GET /v1/runs?status=&limit=&offset=. It returns a JSON
// object {"runs": [...]} on success, 400 for invalid filters, 503 when the repo
// is unavailable, or 500 if the repository call fails.
func (h *RunHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	if h.repo == nil {
		writeError(w, http.StatusServiceUnavailable, "run repository unavailable")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	limit, offset, err := parseLimitOffset(r, defaultRunLimit, maxRunLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var status *store.RunStatus
	if statusParam := strings.TrimSpace(r.URL.Query().Get("status")); statusParam != "" {
		statusVal, parseErr := parseStatus(statusParam)
		if parseErr != nil {
			writeError(w, http.StatusBadRequest, parseErr.Error())
			return
		}
		status = &statusVal
	}
	runs, err := h.repo.ListRuns(ctx, status, limit, offset)
	if err != nil {
		h.logger.Error("list runs failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list runs")
		return
	}
	out := make([]store.Run, 0, len(runs))
	writeJSON(w, http.StatusOK, map[string]any{"runs": append(out, runs...)})
}

// GetRun handles GET /v1/runs/{run_id}. It returns {"run": {...}} on success,
// 400 for malformed IDs, 404 when the repository reports store.ErrNotFound,
// 503 if the repo is not initialized, or 500 otherwise.
func (h *RunHandler) GetRun(w http.ResponseWriter, r *http.Request) {
	if h.repo == nil {
		writeError(w, http.StatusServiceUnavailable, "run repository unavailable")
		return
	}
	runID, err := parseRunID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	run, err := h.repo.GetRun(ctx, runID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "run not found")
			return
		}
		h.logger.Error("get run failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load run")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"run": run})
}

func parseRunID(r *http.Request) (uuid.UUID, error) {
	raw := chi.URLParam(r, "run_id")
	if raw == "" {
		return uuid.UUID{}, errors.New("run_id is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.UUID{}, errors.New("invalid run_id")
	}
	return id, nil
}

func parseLimitOffset(r *http.Request, def, maxLimit int) (int, int, error) {
	q := r.URL.Query()
	limit := def
	if limStr := q.Get("limit"); limStr != "" {
		val, err := strconv.Atoi(limStr)
		if err != nil || val <= 0 {
			return 0, 0, errors.New("invalid limit")
		}
		if val > maxLimit {
			val = maxLimit
		}
		limit = val
	}
	offset := 0
	if offStr := q.Get("offset"); offStr != "" {
		val, err := strconv.Atoi(offStr)
		if err != nil || val < 0 {
			return 0, 0, errors.New("invalid offset")
		}
		offset = val
	}
	return limit, offset, nil
}

func parseStatus(input string) (store.RunStatus, error) {
	switch strings.ToLower(input) {
	case "running":
		return store.RunRunning, nil
	case "success":
		return store.RunSuccess, nil
	case "error", "failed", "failure":
		return store.RunError, nil
	default:
		return "", errors.New("invalid status")
	}
}

type runResultDTO struct {
	RunID    string              `json:"run_id"`
	Mode     string              `json:"mode"`
	Source   string              `json:"source"`
	Total    int                 `json:"total"`
	Failed   int                 `json:"failed"`
	Artifact string              `json:"artifact"`
	Files    map[string]string   `json:"files,omitempty"`
	Remote   map[string]string   `json:"remote,omitempty"`
	Records  []scraper.JobRecord `json:"records"`
}

func toRunResultDTO(res app.RunResult) runResultDTO {
	records := res.Records
	if records == nil {
		records = []scraper.JobRecord{}
	}
	return runResultDTO{
		RunID:    res.RunID.String(),
		Mode:     string(res.Mode),
		Source:   res.Source,
		Total:    len(res.Records),
		Failed:   res.Failed,
		Artifact: res.Artifact,
		Files:    res.Files,
		Remote:   res.Remote,
		Records:  records,
	}
}

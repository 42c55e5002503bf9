package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/google/uuid"

	"github.com/JakeFAU/teams-titles-scraper/internal/config"
	"github.com/JakeFAU/teams-titles-scraper/internal/storage/memory"
	"github.com/JakeFAU/teams-titles-scraper/internal/store"
)

// ExampleRunHandler_ListRuns demonstrates the JSON payload returned by GET /v1/runs.
func ExampleRunHandler_ListRuns() {
	runs := memory.NewRunStore()
	_ = runs.StartRun(context.Background(), store.Run{
		ID:        uuid.MustParse("11111111-1111-1111-1111-111111111111"),
		Mode:      "default-sitemap",
		StartedAt: time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC),
		Status:    store.RunRunning,
	})
	server := NewServer(Deps{Runs: runs}, config.Config{})

	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/runs", nil))

	var body struct {
		Runs []store.Run `json:"runs"`
	}
	_ = json.Unmarshal(rec.Body.Bytes(), &body)
	fmt.Println(rec.Code, len(body.Runs), body.Runs[0].Status)
	// Output: 200 1 running
}

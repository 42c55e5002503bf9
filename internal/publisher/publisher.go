// Package publisher announces finished scraping runs to downstream
// consumers.
package publisher

import (
	"context"
	"time"
)

// Publisher sends a payload to a topic and returns the message ID.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// RunCompleted is the notification emitted after a run's artifacts are
// written.
type RunCompleted struct {
	RunID      string            `json:"run_id"`
	Input      string            `json:"input"`
	Mode       string            `json:"mode"`
	Status     string            `json:"status"`
	Total      int               `json:"total"`
	Failed     int               `json:"failed"`
	Artifacts  map[string]string `json:"artifacts,omitempty"`
	CSVSHA256  string            `json:"csv_sha256,omitempty"`
	StartedAt  time.Time         `json:"started_at"`
	FinishedAt time.Time         `json:"finished_at"`
	Error      string            `json:"error,omitempty"`
}

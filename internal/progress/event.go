package progress

import (
	"errors"
	"fmt"
	"time"
)

// Stage denotes the milestone an Event represents.
type Stage string

// Supported progress stages.
const (
	StageRunStart   Stage = "RUN_START"
	StageProcessing Stage = "PROCESSING"
	StageProcessed  Stage = "PROCESSED"
	StageRunDone    Stage = "RUN_DONE"
)

// Event is a single progress notification. Current is 1-based.
type Event struct {
	// RunID groups events from the same scraping run.
	RunID string
	// TS is the UTC timestamp recorded by the emitter.
	TS    time.Time
	Stage Stage
	// Current and Total locate the event inside the worklist.
	Current int
	Total   int
	// Message is the human readable status line, e.g. "Processing 3 of 40".
	Message string
	URL     string
	// Failed marks a processed page that was replaced by an error record.
	Failed bool
	// Dur is the extraction latency for processed events.
	Dur time.Duration
}

// Processing builds the notification sent before a page is extracted.
func Processing(current, total int, url string) Event {
	return Event{
		TS:      time.Now().UTC(),
		Stage:   StageProcessing,
		Current: current,
		Total:   total,
		Message: fmt.Sprintf("Processing %d of %d", current, total),
		URL:     url,
	}
}

// Processed builds the notification sent after a page is handled.
func Processed(current, total int, url string, failed bool, dur time.Duration) Event {
	return Event{
		TS:      time.Now().UTC(),
		Stage:   StageProcessed,
		Current: current,
		Total:   total,
		Message: fmt.Sprintf("Processed %d of %d", current, total),
		URL:     url,
		Failed:  failed,
		Dur:     dur,
	}
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Stage {
	case StageRunStart, StageRunDone:
	case StageProcessing, StageProcessed:
		if e.Current <= 0 {
			return errors.New("current must be > 0")
		}
		if e.Current > e.Total {
			return fmt.Errorf("current %d exceeds total %d", e.Current, e.Total)
		}
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	if e.Total < 0 {
		return errors.New("total must be >= 0")
	}
	if e.Dur < 0 {
		return errors.New("duration must be >= 0")
	}
	return nil
}

// Percent returns completion in the range [0, 100].
func (e Event) Percent() int {
	total := e.Total
	if total < 1 {
		total = 1
	}
	pct := e.Current * 100 / total
	switch {
	case pct < 0:
		return 0
	case pct > 100:
		return 100
	default:
		return pct
	}
}

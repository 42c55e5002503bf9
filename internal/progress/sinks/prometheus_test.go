package sinks

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/JakeFAU/teams-titles-scraper/internal/progress"
)

// TestPrometheusSinkRecordsMetrics ensures counters and histograms follow the event stream.
func TestPrometheusSinkRecordsMetrics(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	sink, err := NewPrometheusSink(reg)
	require.NoError(t, err)

	now := time.Now()
	batch := []progress.Event{
		{TS: now, Stage: progress.StageRunStart, Total: 2},
		progress.Processing(1, 2, "https://example.com/teams-title/a/"),
		progress.Processed(1, 2, "https://example.com/teams-title/a/", false, 200*time.Millisecond),
		progress.Processing(2, 2, "https://example.com/teams-title/b/"),
		progress.Processed(2, 2, "https://example.com/teams-title/b/", true, 0),
		{TS: now, Stage: progress.StageRunDone, Current: 2, Total: 2},
	}
	require.NoError(t, sink.Consume(context.Background(), batch))

	require.Equal(t, 1.0, testutil.ToFloat64(sink.runsStarted))
	require.Equal(t, 1.0, testutil.ToFloat64(sink.runsCompleted))
	require.Equal(t, 1.0, testutil.ToFloat64(sink.runProgress))
	require.Equal(t, 1.0, testutil.ToFloat64(sink.pages.WithLabelValues("success")))
	require.Equal(t, 1.0, testutil.ToFloat64(sink.pages.WithLabelValues("error")))
	require.Equal(t, 1, testutil.CollectAndCount(sink.pageDuration, "scraper_page_duration_seconds"))
}

func TestPrometheusSinkDuplicateRegistration(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	_, err := NewPrometheusSink(reg)
	require.NoError(t, err)
	_, err = NewPrometheusSink(reg)
	require.Error(t, err)
}

func TestLogSinkLevels(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zap.InfoLevel)
	sink := NewLogSink(zap.New(core))
	require.NoError(t, sink.Consume(context.Background(), []progress.Event{
		progress.Processed(1, 2, "https://example.com/a", false, time.Millisecond),
		progress.Processed(2, 2, "https://example.com/b", true, time.Millisecond),
	}))

	entries := logs.All()
	require.Len(t, entries, 2)
	require.Equal(t, zap.InfoLevel, entries[0].Level)
	require.Equal(t, "Processed 1 of 2", entries[0].Message)
	require.Equal(t, zap.WarnLevel, entries[1].Level)
	require.NoError(t, sink.Close(context.Background()))
}

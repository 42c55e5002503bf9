package sinks

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/JakeFAU/teams-titles-scraper/internal/progress"
)

// PrometheusSink exports scraping progress as Prometheus collectors.
type PrometheusSink struct {
	runsStarted   prometheus.Counter
	runsCompleted prometheus.Counter
	runProgress   prometheus.Gauge
	pages         *prometheus.CounterVec
	pageDuration  *prometheus.HistogramVec
}

// NewPrometheusSink registers the collectors against reg.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		runsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scraper_runs_started_total",
			Help: "Total scraping runs started.",
		}),
		runsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scraper_runs_completed_total",
			Help: "Total scraping runs completed.",
		}),
		runProgress: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "scraper_run_progress_ratio",
			Help: "Fraction of the current worklist already processed.",
		}),
		pages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scraper_pages_processed_total",
			Help: "Job pages processed partitioned by result.",
		}, []string{"result"}),
		pageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "scraper_page_duration_seconds",
			Help:    "Per-page extraction latency partitioned by result.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		}, []string{"result"}),
	}
	for _, collector := range []prometheus.Collector{
		s.runsStarted,
		s.runsCompleted,
		s.runProgress,
		s.pages,
		s.pageDuration,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register progress collector: %w", err)
		}
	}
	return s, nil
}

// Consume updates the collectors from batch.
func (s *PrometheusSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		switch evt.Stage {
		case progress.StageRunStart:
			s.runsStarted.Inc()
			s.runProgress.Set(0)
		case progress.StageRunDone:
			s.runsCompleted.Inc()
			s.runProgress.Set(1)
		case progress.StageProcessed:
			result := "success"
			if evt.Failed {
				result = "error"
			}
			s.pages.WithLabelValues(result).Inc()
			if evt.Dur > 0 {
				s.pageDuration.WithLabelValues(result).Observe(evt.Dur.Seconds())
			}
			if evt.Total > 0 {
				s.runProgress.Set(float64(evt.Current) / float64(evt.Total))
			}
		}
	}
	return nil
}

// Close implements progress.Sink; it performs no action.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}

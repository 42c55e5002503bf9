package scraper

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/teams-titles-scraper/internal/progress"
)

// DefaultDelay is the pause taken after every page.
const DefaultDelay = 150 * time.Millisecond

// DriverConfig tunes the pipeline loop.
type DriverConfig struct {
	// Delay is slept after each page. Zero uses DefaultDelay; negative disables.
	Delay time.Duration
	// Concurrency above 1 extracts pages through a bounded worker pool.
	Concurrency int
}

// pauseController abstracts the inter-page wait.
type pauseController interface {
	Pause(ctx context.Context, delay time.Duration)
}

type timerPauseController struct{}

func (p *timerPauseController) Pause(ctx context.Context, delay time.Duration) {
	if delay <= 0 {
		return
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

// Driver walks a worklist through an Extractor.
type Driver struct {
	cfg       DriverConfig
	extractor Extractor
	pauser    pauseController
	logger    *zap.Logger
}

// NewDriver returns a Driver.
func NewDriver(cfg DriverConfig, extractor Extractor, logger *zap.Logger) *Driver {
	if cfg.Delay == 0 {
		cfg.Delay = DefaultDelay
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Driver{
		cfg:       cfg,
		extractor: extractor,
		pauser:    &timerPauseController{},
		logger:    logger,
	}
}

// Run extracts every URL and returns one record per URL in worklist order.
// Failed pages are replaced by error records.
func (d *Driver) Run(ctx context.Context, worklist []string, observer progress.Observer) []JobRecord {
	return Records(d.RunResults(ctx, worklist, observer))
}

// RunResults is Run without collapsing failures into error records.
func (d *Driver) RunResults(ctx context.Context, worklist []string, observer progress.Observer) []Result {
	if observer == nil {
		observer = progress.Nop
	}
	if d.cfg.Concurrency > 1 && len(worklist) > 1 {
		return d.runPool(ctx, worklist, observer)
	}

	total := len(worklist)
	results := make([]Result, total)
	for i, url := range worklist {
		if err := ctx.Err(); err != nil {
			results[i] = Result{URL: url, Err: err}
			continue
		}
		observer.Observe(progress.Processing(i+1, total, url))
		start := time.Now()
		results[i] = d.extract(ctx, url)
		d.pauser.Pause(ctx, d.cfg.Delay)
		observer.Observe(progress.Processed(i+1, total, url, !results[i].OK(), time.Since(start)))
	}
	return results
}

// runPool extracts with a bounded worker pool. Results land at their
// worklist index; progress is serialized and counts completions.
func (d *Driver) runPool(ctx context.Context, worklist []string, observer progress.Observer) []Result {
	total := len(worklist)
	results := make([]Result, total)

	var (
		mu        sync.Mutex
		started   int
		completed int
	)
	g := new(errgroup.Group)
	g.SetLimit(d.cfg.Concurrency)
	for i, url := range worklist {
		if err := ctx.Err(); err != nil {
			results[i] = Result{URL: url, Err: err}
			continue
		}
		g.Go(func() error {
			mu.Lock()
			started++
			observer.Observe(progress.Processing(started, total, url))
			mu.Unlock()

			start := time.Now()
			res := d.extract(ctx, url)
			d.pauser.Pause(ctx, d.cfg.Delay)
			results[i] = res

			mu.Lock()
			completed++
			observer.Observe(progress.Processed(completed, total, url, !res.OK(), time.Since(start)))
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// extract runs one page and converts panics into failed results.
func (d *Driver) extract(ctx context.Context, url string) (res Result) {
	res.URL = url
	defer func() {
		if r := recover(); r != nil {
			res = Result{URL: url, Err: fmt.Errorf("extractor panic: %v", r)}
		}
		if res.Err != nil {
			d.logger.Warn("page failed", zap.String("url", url), zap.Error(res.Err))
		}
	}()
	rec, err := d.extractor.Extract(ctx, url)
	if err != nil {
		res.Err = err
		return res
	}
	if rec.URL == "" {
		rec.URL = url
	}
	res.Record = rec
	return res
}

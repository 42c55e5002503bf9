// Package app wires the scraping pipeline to its storage, notification and
// metrics backends. It is shared by the CLI and the HTTP API.
package app

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/JakeFAU/teams-titles-scraper/internal/clock/system"
	"github.com/JakeFAU/teams-titles-scraper/internal/config"
	"github.com/JakeFAU/teams-titles-scraper/internal/export"
	"github.com/JakeFAU/teams-titles-scraper/internal/extract"
	collyfetcher "github.com/JakeFAU/teams-titles-scraper/internal/fetcher/colly"
	"github.com/JakeFAU/teams-titles-scraper/internal/hash/sha256"
	runid "github.com/JakeFAU/teams-titles-scraper/internal/id/uuid"
	"github.com/JakeFAU/teams-titles-scraper/internal/metrics"
	"github.com/JakeFAU/teams-titles-scraper/internal/policy/ratelimit"
	"github.com/JakeFAU/teams-titles-scraper/internal/policy/robots"
	"github.com/JakeFAU/teams-titles-scraper/internal/progress"
	"github.com/JakeFAU/teams-titles-scraper/internal/progress/sinks"
	"github.com/JakeFAU/teams-titles-scraper/internal/publisher"
	pubsubpublisher "github.com/JakeFAU/teams-titles-scraper/internal/publisher/pubsub"
	"github.com/JakeFAU/teams-titles-scraper/internal/scraper"
	"github.com/JakeFAU/teams-titles-scraper/internal/sitemap"
	"github.com/JakeFAU/teams-titles-scraper/internal/storage"
	"github.com/JakeFAU/teams-titles-scraper/internal/storage/gcs"
	"github.com/JakeFAU/teams-titles-scraper/internal/storage/local"
	"github.com/JakeFAU/teams-titles-scraper/internal/storage/memory"
	"github.com/JakeFAU/teams-titles-scraper/internal/storage/postgres"
	"github.com/JakeFAU/teams-titles-scraper/internal/store"
	"github.com/JakeFAU/teams-titles-scraper/internal/telemetry"
)

// RunResult summarizes one completed RunScraping call.
type RunResult struct {
	RunID  uuid.UUID
	Mode   scraper.Mode
	Source string
	// Records holds one row per worklist URL, in worklist order.
	Records []scraper.JobRecord
	Failed  int
	// Artifact is the local URI of the workbook to present to the user.
	Artifact string
	// Files maps artifact names to their local URIs.
	Files map[string]string
	// Remote maps artifact names to their mirrored URIs, if a bucket is set.
	Remote map[string]string
	// Checksum is the hex SHA-256 of the CSV rendering.
	Checksum string
	Bundle   *export.Bundle
}

// App holds the long-lived services for the scraper.
type App struct {
	cfg       config.Config
	logger    *zap.Logger
	registry  *prometheus.Registry
	metrics   *metrics.Collectors
	planner   *scraper.Planner
	driver    *scraper.Driver
	hub       *progress.Hub
	artifacts storage.BlobStore
	mirror    storage.BlobStore
	runs      store.RunRepository
	records   store.RecordRepository
	publisher publisher.Publisher
	closers   []func() error
	now       func() time.Time
}

// Option overrides a backend New would otherwise build from config.
type Option func(*options)

type options struct {
	fetcher   scraper.Fetcher
	artifacts storage.BlobStore
	mirror    storage.BlobStore
	runs      store.RunRepository
	records   store.RecordRepository
	publisher publisher.Publisher
	registry  *prometheus.Registry
	clock     func() time.Time
}

// WithFetcher replaces the colly fetcher.
func WithFetcher(f scraper.Fetcher) Option {
	return func(o *options) { o.fetcher = f }
}

// WithArtifactStore replaces the local output directory store.
func WithArtifactStore(s storage.BlobStore) Option {
	return func(o *options) { o.artifacts = s }
}

// WithMirror sets the remote artifact store used instead of GCS.
func WithMirror(s storage.BlobStore) Option {
	return func(o *options) { o.mirror = s }
}

// WithRunRepository replaces the run history backend.
func WithRunRepository(r store.RunRepository) Option {
	return func(o *options) { o.runs = r }
}

// WithRecordRepository sets the record persistence backend.
func WithRecordRepository(r store.RecordRepository) Option {
	return func(o *options) { o.records = r }
}

// WithPublisher sets the run notification backend.
func WithPublisher(p publisher.Publisher) Option {
	return func(o *options) { o.publisher = p }
}

// WithRegistry sets the Prometheus registry collectors register against.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(o *options) { o.registry = reg }
}

// WithClock overrides the system clock.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.clock = now }
}

// New builds the App from cfg. Backends whose config is empty are skipped.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger, opts ...Option) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	a := &App{cfg: cfg, logger: logger, now: system.New().Now}
	if o.clock != nil {
		a.now = o.clock
	}

	a.registry = o.registry
	if a.registry == nil {
		a.registry = prometheus.NewRegistry()
		a.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	m, err := metrics.New(a.registry)
	if err != nil {
		return nil, err
	}
	a.metrics = m

	promSink, err := sinks.NewPrometheusSink(a.registry)
	if err != nil {
		return nil, err
	}
	a.hub = progress.NewHub(progress.Config{Logger: logger}, sinks.NewLogSink(logger), promSink)
	a.closers = append(a.closers, func() error {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return a.hub.Close(closeCtx)
	})

	fetcher := o.fetcher
	if fetcher == nil {
		limiter := ratelimit.New(ratelimit.Config{
			RPS:     cfg.Scraper.RequestsPerSecond,
			Burst:   cfg.Scraper.Burst,
			OnDelay: m.ObserveRateLimitDelay,
		}, logger)
		fetcher = collyfetcher.New(collyfetcher.Config{
			UserAgent:    cfg.Scraper.UserAgent,
			Timeout:      cfg.FetchTimeout(),
			MaxBodyBytes: cfg.Scraper.MaxBodyBytes,
		}, limiter, logger)
	}
	fetcher = &instrumentedFetcher{next: fetcher, metrics: m}
	if cfg.Scraper.RespectRobots {
		fetcher = robots.Guard(fetcher, robots.NewPolicy(true, fetcher, cfg.Scraper.UserAgent, logger))
	}

	resolver := sitemap.New(fetcher,
		sitemap.WithMarker(cfg.Scraper.URLMarker),
		sitemap.WithLogger(logger),
	)
	a.planner = scraper.NewPlanner(scraper.PlannerConfig{
		DefaultSitemap: cfg.Scraper.DefaultSitemap,
		RootURLs:       cfg.Scraper.RootURLs,
	}, resolver, logger)

	delay := cfg.Delay()
	if delay == 0 {
		delay = -1
	}
	a.driver = scraper.NewDriver(scraper.DriverConfig{
		Delay:       delay,
		Concurrency: cfg.Scraper.Concurrency,
	}, extract.New(fetcher, logger), logger)

	if err := a.initBackends(ctx, o); err != nil {
		if closeErr := a.Close(); closeErr != nil {
			logger.Warn("cleanup after failed init", zap.Error(closeErr))
		}
		return nil, err
	}
	return a, nil
}

func (a *App) initBackends(ctx context.Context, o options) error {
	cfg := a.cfg

	a.artifacts = o.artifacts
	if a.artifacts == nil {
		localStore, err := local.New(local.Config{Dir: cfg.Output.Dir})
		if err != nil {
			return fmt.Errorf("init output dir: %w", err)
		}
		a.artifacts = localStore
	}

	a.mirror = o.mirror
	if a.mirror == nil && cfg.Storage.GCSBucket != "" {
		a.logger.Info("using GCS artifact mirror", zap.String("bucket", cfg.Storage.GCSBucket))
		bucket, err := gcs.Dial(ctx, gcs.Config{Bucket: cfg.Storage.GCSBucket}, a.logger)
		if err != nil {
			return fmt.Errorf("init gcs: %w", err)
		}
		a.mirror = bucket
		a.closers = append(a.closers, bucket.Close)
	}

	a.runs, a.records = o.runs, o.records
	if cfg.DB.DSN != "" && (a.runs == nil || a.records == nil) {
		a.logger.Info("connecting to postgres")
		pg, err := postgres.New(ctx, postgres.Config{
			DSN:         cfg.DB.DSN,
			RecordTable: cfg.DB.Table,
			RunTable:    cfg.DB.RunTable,
			MaxConns:    cfg.DB.MaxConns,
		})
		if err != nil {
			return fmt.Errorf("init postgres: %w", err)
		}
		a.closers = append(a.closers, func() error {
			pg.Close()
			return nil
		})
		if cfg.DB.AutoMigrate {
			if err := pg.Migrate(ctx); err != nil {
				return fmt.Errorf("migrate postgres: %w", err)
			}
		}
		if a.runs == nil {
			a.runs = pg
		}
		if a.records == nil {
			a.records = pg
		}
	}
	if a.runs == nil {
		a.runs = memory.NewRunStore()
	}

	a.publisher = o.publisher
	if a.publisher == nil && cfg.PubSub.ProjectID != "" {
		a.logger.Info("connecting to pubsub", zap.String("topic", cfg.PubSub.TopicName))
		pub, err := pubsubpublisher.Dial(ctx, cfg.PubSub.ProjectID, cfg.PubSub.TopicName, a.logger)
		if err != nil {
			return fmt.Errorf("init pubsub: %w", err)
		}
		a.publisher = pub
		a.closers = append(a.closers, pub.Close)
	}
	return nil
}

// Logger returns the shared logger.
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// Registry exposes the Prometheus registry for the /metrics endpoint.
func (a *App) Registry() *prometheus.Registry {
	return a.registry
}

// Metrics returns the service-level collectors.
func (a *App) Metrics() *metrics.Collectors {
	return a.metrics
}

// Runs returns the run history backend.
func (a *App) Runs() store.RunRepository {
	return a.runs
}

// Config returns the configuration the App was built with.
func (a *App) Config() config.Config {
	return a.cfg
}

// RunScraping plans a worklist from input, extracts every page, writes the
// spreadsheets and records the run. A run with no URLs returns
// scraper.ErrNoJobsFound. If ctx ends mid-run the partial spreadsheets are
// still written locally and the context error is returned wrapped. Mirror,
// database and notification failures are logged and do not fail the run.
func (a *App) RunScraping(ctx context.Context, input string, observer progress.Observer) (RunResult, error) {
	runID := runid.NewRunID()
	started := a.now().UTC()
	ctx, span := telemetry.StartRun(ctx, runID.String(), input)
	defer span.End()
	logger := a.logger.With(zap.String("run_id", runID.String()))
	if traceID := telemetry.TraceID(ctx); traceID != "" {
		logger = logger.With(zap.String("trace_id", traceID))
	}
	obs := progress.WithRunID(runID.String(), progress.Tee(observer, a.hub))

	plan := a.planner.Plan(ctx, input)
	res := RunResult{RunID: runID, Mode: plan.Mode, Source: plan.Source}
	run := store.Run{
		ID:        runID,
		Input:     input,
		Mode:      string(plan.Mode),
		StartedAt: started,
		Status:    store.RunRunning,
		Total:     len(plan.URLs),
	}
	if err := a.runs.StartRun(ctx, run); err != nil {
		logger.Warn("record run start failed", zap.Error(err))
	}
	obs.Observe(progress.Event{
		TS:      started,
		Stage:   progress.StageRunStart,
		Total:   len(plan.URLs),
		Message: fmt.Sprintf("Found %d job pages", len(plan.URLs)),
		URL:     plan.Source,
	})

	if len(plan.URLs) == 0 {
		logger.Warn("no jobs found", zap.String("mode", string(plan.Mode)), zap.String("source", plan.Source))
		a.finish(ctx, run, &res, scraper.ErrNoJobsFound, obs)
		return res, scraper.ErrNoJobsFound
	}

	results := a.driver.RunResults(ctx, plan.URLs, obs)
	interrupted := ctx.Err()
	res.Records = scraper.Records(results)
	for _, r := range results {
		if !r.OK() {
			res.Failed++
		}
	}

	bundle, err := export.Render(res.Records, a.cfg.Output.MaxColumnWidth)
	if err != nil {
		err = fmt.Errorf("render spreadsheet: %w", err)
		a.finish(ctx, run, &res, err, obs)
		return res, err
	}
	res.Bundle = bundle
	res.Checksum = sha256.Digest(bundle.CSV)
	if bundle.FormatErr != nil {
		logger.Warn("formatting failed, using raw workbook", zap.Error(bundle.FormatErr))
	}

	localCtx := ctx
	if interrupted != nil {
		localCtx = context.WithoutCancel(ctx)
	}
	files, err := storage.PutFiles(localCtx, a.artifacts, "", "", bundle.Files())
	a.metrics.ObserveUpload("local", err)
	if err != nil {
		err = fmt.Errorf("write artifacts: %w", err)
		a.finish(ctx, run, &res, err, obs)
		return res, err
	}
	res.Files = files
	res.Artifact = files[bundle.Primary().Name]

	if interrupted != nil {
		err := fmt.Errorf("run interrupted: %w", interrupted)
		logger.Warn("run interrupted, partial output written", zap.String("artifact", res.Artifact), zap.Error(interrupted))
		a.finish(ctx, run, &res, err, obs)
		return res, err
	}

	if a.mirror != nil {
		remote, err := storage.PutFiles(ctx, a.mirror, a.cfg.Storage.Prefix, runID.String(), bundle.Files())
		a.metrics.ObserveUpload("mirror", err)
		if err != nil {
			logger.Warn("mirror upload failed", zap.Error(err))
		}
		res.Remote = remote
	}

	if a.records != nil {
		n, err := a.records.SaveRecords(ctx, runID, res.Records)
		if err != nil {
			logger.Warn("save records failed", zap.Error(err))
		} else {
			logger.Info("records saved", zap.Int("count", n))
		}
	}

	a.finish(ctx, run, &res, nil, obs)
	return res, nil
}

// finish records the run outcome, publishes the notification and emits
// RUN_DONE. It runs even when ctx is cancelled.
func (a *App) finish(ctx context.Context, run store.Run, res *RunResult, runErr error, obs progress.Observer) {
	ctx = context.WithoutCancel(ctx)
	finished := a.now().UTC()
	logger := a.logger.With(zap.String("run_id", run.ID.String()))

	outcome := store.RunOutcome{
		FinishedAt: finished,
		Status:     store.RunSuccess,
		Total:      len(res.Records),
		Failed:     res.Failed,
		Artifact:   res.Artifact,
	}
	if len(res.Remote) > 0 && res.Bundle != nil {
		if uri, ok := res.Remote[res.Bundle.Primary().Name]; ok {
			outcome.Artifact = uri
		}
	}
	var errText string
	if runErr != nil {
		errText = runErr.Error()
		outcome.Status = store.RunError
		outcome.ErrorMessage = &errText
	}
	if err := a.runs.CompleteRun(ctx, run.ID, outcome); err != nil {
		logger.Warn("record run completion failed", zap.Error(err))
	}

	if a.publisher != nil {
		artifacts := maps.Clone(res.Files)
		if len(res.Remote) > 0 {
			artifacts = maps.Clone(res.Remote)
		}
		msg := publisher.RunCompleted{
			RunID:      run.ID.String(),
			Input:      run.Input,
			Mode:       run.Mode,
			Status:     string(outcome.Status),
			Total:      outcome.Total,
			Failed:     outcome.Failed,
			Artifacts:  artifacts,
			CSVSHA256:  res.Checksum,
			StartedAt:  run.StartedAt,
			FinishedAt: finished,
			Error:      errText,
		}
		if id, err := a.publisher.Publish(ctx, a.cfg.PubSub.TopicName, msg); err != nil {
			logger.Warn("publish run notification failed", zap.Error(err))
		} else {
			logger.Debug("run notification published", zap.String("message_id", id))
		}
	}

	span := trace.SpanFromContext(ctx)
	span.SetAttributes(
		attribute.String("run.mode", run.Mode),
		attribute.Int("run.total", outcome.Total),
		attribute.Int("run.failed", outcome.Failed),
	)
	if runErr != nil {
		span.RecordError(runErr)
		span.SetStatus(codes.Error, errText)
	}

	obs.Observe(progress.Event{
		TS:      finished,
		Stage:   progress.StageRunDone,
		Current: len(res.Records),
		Total:   len(res.Records),
		Message: fmt.Sprintf("Finished %d pages (%d failed)", len(res.Records), res.Failed),
		Failed:  runErr != nil,
		Dur:     finished.Sub(run.StartedAt),
	})
	logger.Info("run finished",
		zap.String("status", string(outcome.Status)),
		zap.Int("total", outcome.Total),
		zap.Int("failed", outcome.Failed),
		zap.String("artifact", outcome.Artifact),
	)
}

// Close releases every backend in reverse order of creation.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

type instrumentedFetcher struct {
	next    scraper.Fetcher
	metrics *metrics.Collectors
}

func (f *instrumentedFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	body, err := f.next.Fetch(ctx, url)
	status := "ok"
	if err != nil {
		status = "error"
	}
	f.metrics.ObserveFetch(url, status)
	return body, err
}

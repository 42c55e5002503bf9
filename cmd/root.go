// Package cmd defines and implements the CLI commands for the teamscraper
// executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"

	"github.com/JakeFAU/teams-titles-scraper/internal/app"
	"github.com/JakeFAU/teams-titles-scraper/internal/config"
	"github.com/JakeFAU/teams-titles-scraper/internal/logging"
	"github.com/JakeFAU/teams-titles-scraper/internal/metrics"
	"github.com/JakeFAU/teams-titles-scraper/internal/progress"
	"github.com/JakeFAU/teams-titles-scraper/internal/store"
	"github.com/JakeFAU/teams-titles-scraper/internal/telemetry"
)

// appKeyType is the key for storing the App in the context.
type appKeyType string

const appKey appKeyType = "app"

// App is the surface commands use. Tests inject a fake through newApp.
type App interface {
	RunScraping(ctx context.Context, input string, observer progress.Observer) (app.RunResult, error)
	Runs() store.RunRepository
	Registry() *prometheus.Registry
	Metrics() *metrics.Collectors
	Logger() *zap.Logger
	Config() config.Config
	Close() error
}

// newApp is the application factory.
var newApp = func(ctx context.Context, cfg config.Config, logger *zap.Logger) (App, error) {
	return app.New(ctx, cfg, logger)
}

// newLogger builds the process logger.
var newLogger = logging.New

func newRootCmd() *cobra.Command {
	var (
		cfgFile string
		tp      *sdktrace.TracerProvider
	)
	cmd := &cobra.Command{
		Use:   "teamscraper",
		Short: "Scrapes UF job classification pages into a spreadsheet.",
		Long: `teamscraper collects job-description pages from the UF teams-titles
site, extracts the classification fields from each page, and writes them to
an Excel workbook and CSV file. Run it once with "scrape" or expose it over
HTTP with "serve".`,
		SilenceUsage:  true,
		SilenceErrors: true,

		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			logger, err := newLogger(cfg.Logging.Development)
			if err != nil {
				return err
			}
			zap.ReplaceGlobals(logger)

			tp, err = telemetry.InitTracerProvider(cmd.Context(), "teamscraper")
			if err != nil {
				return fmt.Errorf("failed to initialize tracing: %w", err)
			}

			appInstance, err := newApp(cmd.Context(), cfg, logger)
			if err != nil {
				return fmt.Errorf("failed to initialize application services: %w", err)
			}
			cmd.SetContext(context.WithValue(cmd.Context(), appKey, appInstance))
			return nil
		},

		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			appInstance, ok := cmd.Context().Value(appKey).(App)
			if !ok || appInstance == nil {
				return
			}
			logger := appInstance.Logger()
			if err := appInstance.Close(); err != nil {
				logger.Warn("error closing application services", zap.Error(err))
			}
			if tp != nil {
				if err := tp.Shutdown(context.WithoutCancel(cmd.Context())); err != nil {
					logger.Warn("error shutting down tracer provider", zap.Error(err))
				}
			}
			_ = logger.Sync()
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to a YAML config file")
	cmd.AddCommand(newScrapeCmd(), newServeCmd())
	return cmd
}

func resolveApp(ctx context.Context) (App, error) {
	appInstance, ok := ctx.Value(appKey).(App)
	if !ok || appInstance == nil {
		return nil, errors.New("application services not initialized")
	}
	return appInstance, nil
}

// Execute is the main entry point.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}

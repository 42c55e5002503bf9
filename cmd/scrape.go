package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"github.com/JakeFAU/teams-titles-scraper/internal/app"
	"github.com/JakeFAU/teams-titles-scraper/internal/progress"
	"github.com/JakeFAU/teams-titles-scraper/internal/scraper"
)

const titleWidth = 48

func newScrapeCmd() *cobra.Command {
	var quiet bool
	cmd := &cobra.Command{
		Use:   "scrape [url]",
		Short: "Scrape job pages into a spreadsheet",
		Long: `Scrape builds a worklist from the argument and extracts every page on it.

  (no argument) or the site root   scrape every page in the default sitemap
  a URL ending in .xml or naming a sitemap   scrape every job page it lists
  any other URL                    scrape that single page`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			input := ""
			if len(args) == 1 {
				input = args[0]
			}

			var observer progress.Observer
			if !quiet {
				observer = newProgressLine(cmd.ErrOrStderr())
			}
			res, err := appInstance.RunScraping(cmd.Context(), input, observer)
			if errors.Is(err, scraper.ErrNoJobsFound) {
				fmt.Fprintln(cmd.ErrOrStderr(), "No job pages found; no output written.")
				return err
			}
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				if res.Artifact != "" {
					renderSummary(cmd.OutOrStdout(), res)
				}
				return fmt.Errorf("scrape: %w", err)
			}
			if err != nil {
				return fmt.Errorf("scrape: %w", err)
			}
			renderSummary(cmd.OutOrStdout(), res)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "suppress the progress line")
	return cmd
}

// progressLine redraws a single "[ pct%] message" line on w.
type progressLine struct {
	mu sync.Mutex
	w  io.Writer
}

func newProgressLine(w io.Writer) *progressLine {
	return &progressLine{w: w}
}

func (p *progressLine) Observe(evt progress.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch evt.Stage {
	case progress.StageRunStart:
		fmt.Fprintf(p.w, "%s\n", evt.Message)
	case progress.StageProcessing, progress.StageProcessed:
		fmt.Fprintf(p.w, "\r[%3d%%] %-24s", evt.Percent(), evt.Message)
	case progress.StageRunDone:
		if evt.Total > 0 {
			fmt.Fprintln(p.w)
		}
		fmt.Fprintln(p.w, evt.Message)
	}
}

func renderSummary(w io.Writer, res app.RunResult) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"#", scraper.ColJobTitle, scraper.ColJobCode, scraper.ColFLSAStatus, scraper.ColPayGrade, "Status"})
	for i, rec := range res.Records {
		status := "ok"
		if strings.HasPrefix(rec.Summary, "ERROR:") {
			status = rec.Summary
		}
		t.AppendRow(table.Row{
			i + 1,
			text.Trim(rec.JobTitle, titleWidth),
			rec.JobCode,
			rec.FLSAStatus,
			rec.PayGrade,
			text.Trim(status, titleWidth),
		})
	}
	t.AppendFooter(table.Row{"", fmt.Sprintf("%d pages", len(res.Records)), "", "", "", fmt.Sprintf("%d failed", res.Failed)})
	t.Render()

	fmt.Fprintf(w, "Mode:     %s\n", res.Mode)
	fmt.Fprintf(w, "Run:      %s\n", res.RunID)
	fmt.Fprintf(w, "Workbook: %s\n", res.Artifact)
	if res.Checksum != "" {
		fmt.Fprintf(w, "SHA-256:  %s\n", res.Checksum)
	}
}

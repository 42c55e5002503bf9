package scraper

import (
	"context"
	"strings"

	"go.uber.org/zap"
)

// DefaultSitemapURL is resolved when the user supplies no input or the bare
// site root.
const DefaultSitemapURL = "https://teams-titles.hr.ufl.edu/sitemap.xml"

// DefaultRootURLs are the site roots treated as "scrape everything".
var DefaultRootURLs = []string{
	"https://teams-titles.hr.ufl.edu",
	"https://teams-titles.hr.ufl.edu/",
}

// Mode is the planning decision taken for an input.
type Mode string

// Planning modes.
const (
	ModeDefaultSitemap Mode = "default-sitemap"
	ModeSitemap        Mode = "sitemap"
	ModeSinglePage     Mode = "single-page"
)

// Plan is the worklist produced for one input.
type Plan struct {
	Mode Mode
	// Source is the sitemap that was resolved, or the page URL itself.
	Source string
	URLs   []string
}

// PlannerConfig overrides the default site locations.
type PlannerConfig struct {
	DefaultSitemap string
	RootURLs       []string
}

// Planner turns free-text user input into a worklist.
type Planner struct {
	cfg      PlannerConfig
	resolver SitemapResolver
	logger   *zap.Logger
}

// NewPlanner returns a Planner backed by resolver.
func NewPlanner(cfg PlannerConfig, resolver SitemapResolver, logger *zap.Logger) *Planner {
	if cfg.DefaultSitemap == "" {
		cfg.DefaultSitemap = DefaultSitemapURL
	}
	if len(cfg.RootURLs) == 0 {
		cfg.RootURLs = DefaultRootURLs
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Planner{cfg: cfg, resolver: resolver, logger: logger}
}

// Classify decides how input is handled without touching the network. The
// returned source is the sitemap to resolve or the single page URL.
func (p *Planner) Classify(input string) (Mode, string) {
	in := strings.TrimSpace(input)
	if in == "" {
		return ModeDefaultSitemap, p.cfg.DefaultSitemap
	}
	for _, root := range p.cfg.RootURLs {
		if in == root {
			return ModeDefaultSitemap, p.cfg.DefaultSitemap
		}
	}
	if strings.HasSuffix(in, ".xml") || strings.Contains(strings.ToLower(in), "sitemap") {
		return ModeSitemap, in
	}
	return ModeSinglePage, in
}

// Plan classifies input and builds its worklist. Sitemap failures produce an
// empty worklist rather than an error.
func (p *Planner) Plan(ctx context.Context, input string) Plan {
	mode, source := p.Classify(input)
	plan := Plan{Mode: mode, Source: source}
	if mode == ModeSinglePage {
		plan.URLs = []string{source}
	} else {
		plan.URLs = p.resolver.Resolve(ctx, source)
	}
	p.logger.Info("worklist planned",
		zap.String("mode", string(mode)),
		zap.String("source", source),
		zap.Int("total", len(plan.URLs)),
	)
	return plan
}

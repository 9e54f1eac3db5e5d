// Package bestsellers wires the bestseller ingestion graph: seed list,
// two parallel enrichment stages, reconcile, quality gate and report.
package bestsellers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/lepinkainen/bookpipe/internal/book"
	"github.com/lepinkainen/bookpipe/internal/cache"
	"github.com/lepinkainen/bookpipe/internal/config"
	"github.com/lepinkainen/bookpipe/internal/datastore"
	"github.com/lepinkainen/bookpipe/internal/enrichment"
	"github.com/lepinkainen/bookpipe/internal/enrichment/googlebooks"
	"github.com/lepinkainen/bookpipe/internal/enrichment/openlibrary"
	"github.com/lepinkainen/bookpipe/internal/nyt"
	"github.com/lepinkainen/bookpipe/internal/pipeline"
	"github.com/lepinkainen/bookpipe/internal/quality"
	"github.com/lepinkainen/bookpipe/internal/ratelimit"
	"github.com/lepinkainen/bookpipe/internal/reconcile"
	"github.com/lepinkainen/bookpipe/internal/report"
)

// Task names of the graph.
const (
	TaskSeed        = "fetch_nytimes_books"
	TaskOpenLibrary = "fetch_open_library_data"
	TaskGoogleBooks = "fetch_google_books_data"
	TaskReconcile   = "reconcile_books"
	TaskQuality     = "data_quality_checks"
	TaskReport      = "generate_data_quality_report"
)

// SeedSource produces the run's seed list.
type SeedSource interface {
	FetchBestsellers(ctx context.Context) (*book.SeedSet, error)
}

// Pipeline holds the collaborators of one bestseller run.
type Pipeline struct {
	cfg         *config.Config
	store       datastore.Store
	seed        SeedSource
	openLibrary enrichment.Fetcher[*openlibrary.Book]
	googleBooks enrichment.Fetcher[*googlebooks.Response]
	now         func() time.Time

	cache       *cache.CacheDB
	cachePolicy cache.Policy
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithClock overrides the source of the run timestamp.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) {
		p.now = now
	}
}

// WithSeedSource replaces the NYT client.
func WithSeedSource(s SeedSource) Option {
	return func(p *Pipeline) {
		p.seed = s
	}
}

// WithCache serves enrichment lookups from db before calling the providers.
func WithCache(db *cache.CacheDB, policy cache.Policy) Option {
	return func(p *Pipeline) {
		p.cache = db
		p.cachePolicy = policy
	}
}

// New builds a pipeline from cfg. store must already be connected.
func New(cfg *config.Config, store datastore.Store, opts ...Option) *Pipeline {
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}

	p := &Pipeline{
		cfg:   cfg,
		store: store,
		seed: nyt.NewClient(cfg.NYT.BaseURL, cfg.NYT.APIKey, cfg.NYT.List,
			nyt.WithHTTPClient(httpClient)),
		openLibrary: openlibrary.NewClient(cfg.OpenLibrary.BaseURL,
			openlibrary.WithHTTPClient(httpClient)),
		googleBooks: googlebooks.NewClient(cfg.GoogleBooks.BaseURL, cfg.GoogleBooks.APIKey,
			googlebooks.WithHTTPClient(httpClient)),
		now: time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.cache != nil {
		p.openLibrary = cache.Wrap(p.cache, "openlibrary", p.openLibrary, p.cachePolicy)
		p.googleBooks = cache.Wrap(p.cache, "googlebooks", p.googleBooks, p.cachePolicy)
	}
	return p
}

// Outputs are the typed edges of one run, exposed for inspection after Run.
type Outputs struct {
	Seed        *pipeline.Output[*book.SeedSet]
	OpenLibrary *pipeline.Output[enrichment.Result[*openlibrary.Book]]
	GoogleBooks *pipeline.Output[enrichment.Result[*googlebooks.Response]]
	Reconcile   *pipeline.Output[reconcile.Summary]
	Quality     *pipeline.Output[*quality.CheckResult]
	Report      *pipeline.Output[*report.Report]
}

func newOutputs() *Outputs {
	return &Outputs{
		Seed:        pipeline.NewOutput[*book.SeedSet](TaskSeed),
		OpenLibrary: pipeline.NewOutput[enrichment.Result[*openlibrary.Book]](TaskOpenLibrary),
		GoogleBooks: pipeline.NewOutput[enrichment.Result[*googlebooks.Response]](TaskGoogleBooks),
		Reconcile:   pipeline.NewOutput[reconcile.Summary](TaskReconcile),
		Quality:     pipeline.NewOutput[*quality.CheckResult](TaskQuality),
		Report:      pipeline.NewOutput[*report.Report](TaskReport),
	}
}

// Graph builds the task graph for a run stamped with runAt.
func (p *Pipeline) Graph(runAt time.Time) (*pipeline.Graph, *Outputs) {
	out := newOutputs()
	g := pipeline.NewGraph("book_data_pipeline")

	retries := p.cfg.Retry.Attempts - 1
	if retries < 0 {
		retries = 0
	}
	task := func(name string, deps []string, run func(context.Context) error) pipeline.Task {
		return pipeline.Task{
			Name:    name,
			Deps:    deps,
			Run:     run,
			Retries: retries,
			Backoff: p.cfg.Retry.Backoff,
		}
	}

	g.Add(task(TaskSeed, nil, func(ctx context.Context) error {
		seed, err := p.seed.FetchBestsellers(ctx)
		if err != nil {
			if errors.Is(err, nyt.ErrMissingAPIKey) {
				return pipeline.Permanent(err)
			}
			return err
		}
		out.Seed.Set(seed)
		return nil
	}))

	g.Add(task(TaskOpenLibrary, []string{TaskSeed}, func(ctx context.Context) error {
		seed, err := out.Seed.Get()
		if err != nil {
			return err
		}
		result, _, err := enrichment.Collect(ctx, p.openLibrary, seed.ISBNs, p.enrichmentOptions("openlibrary"))
		if err != nil {
			return err
		}
		out.OpenLibrary.Set(result)
		return nil
	}))

	g.Add(task(TaskGoogleBooks, []string{TaskSeed}, func(ctx context.Context) error {
		seed, err := out.Seed.Get()
		if err != nil {
			return err
		}
		result, _, err := enrichment.Collect(ctx, p.googleBooks, seed.ISBNs, p.enrichmentOptions("googlebooks"))
		if err != nil {
			return err
		}
		out.GoogleBooks.Set(result)
		return nil
	}))

	g.Add(task(TaskReconcile, []string{TaskOpenLibrary, TaskGoogleBooks}, func(ctx context.Context) error {
		seed, err := out.Seed.Get()
		if err != nil {
			return err
		}
		ol, err := out.OpenLibrary.Get()
		if err != nil {
			return err
		}
		gb, err := out.GoogleBooks.Get()
		if err != nil {
			return err
		}
		summary, err := reconcile.New(p.store, func() time.Time { return runAt }).Run(ctx, seed, ol, gb)
		if err != nil {
			return err
		}
		out.Reconcile.Set(summary)
		return nil
	}))

	g.Add(task(TaskQuality, []string{TaskReconcile}, func(ctx context.Context) error {
		result, err := quality.NewGate(p.store, p.cfg.Quality.MinCoverage).Check(ctx)
		if result != nil {
			out.Quality.Set(result)
		}
		return err
	}))

	g.Add(task(TaskReport, []string{TaskQuality}, func(ctx context.Context) error {
		r, err := report.NewGenerator(p.store, p.cfg.ReportPath(), func() time.Time { return runAt }).Generate(ctx)
		if err != nil {
			return err
		}
		out.Report.Set(r)
		return nil
	}))

	return g, out
}

func (p *Pipeline) enrichmentOptions(name string) enrichment.Options {
	return enrichment.Options{
		Limiter:          ratelimit.NewInterval(name, p.cfg.Enrichment.Delay),
		RateLimitRetries: p.cfg.Enrichment.RateLimitRetries,
		MaxBackoff:       p.cfg.Enrichment.MaxBackoff,
	}
}

// Run executes one full pipeline run.
func (p *Pipeline) Run(ctx context.Context) (*pipeline.RunResult, *Outputs, error) {
	runAt := p.now().UTC()
	g, out := p.Graph(runAt)

	slog.Info("Starting bestseller run", "list", p.cfg.NYT.List, "run_at", runAt.Format(time.RFC3339))

	result, err := g.Run(ctx)
	if err != nil {
		return nil, out, fmt.Errorf("building pipeline: %w", err)
	}
	return result, out, nil
}

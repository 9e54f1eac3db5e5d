package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/lepinkainen/bookpipe/cmd/bestsellers"
	"github.com/lepinkainen/bookpipe/internal/cache"
	"github.com/lepinkainen/bookpipe/internal/config"
	"github.com/lepinkainen/bookpipe/internal/datastore"
	"github.com/lepinkainen/bookpipe/internal/pipeline"
	"github.com/lepinkainen/bookpipe/internal/quality"
	"github.com/lepinkainen/bookpipe/internal/report"
	"github.com/lepinkainen/bookpipe/internal/tui"
	"github.com/lepinkainen/humanlog"
	"github.com/spf13/viper"
)

var (
	openStore           = datastore.Open
	stdout    io.Writer = os.Stdout
)

// CLI represents the complete command structure for the bookpipe application
type CLI struct {
	// Global flags
	Debug      bool   `help:"Enable debug logging"`
	ConfigFile string `name:"config" help:"Path to config file (defaults to ./config.yaml when present)" type:"path"`
	EnvFile    string `help:"Path to .env file" default:".env" type:"path"`

	// Storage flags
	DBDriver   string `name:"db-driver" help:"Database driver (postgres or sqlite)"`
	SQLitePath string `name:"sqlite-path" help:"Path to SQLite database file"`
	ReportDir  string `help:"Directory for the data quality report"`

	Run      RunCmd      `cmd:"" help:"Run the bestseller pipeline once"`
	Check    CheckCmd    `cmd:"" help:"Run the data quality checks against the books table"`
	Report   ReportCmd   `cmd:"" help:"Generate the data quality report"`
	Summary  SummaryCmd  `cmd:"" help:"Show a summary dashboard of the books table"`
	Schedule ScheduleCmd `cmd:"" help:"Run the pipeline on a cron schedule"`
	Cache    CacheCmd    `cmd:"" help:"Manage the enrichment response cache"`
}

// CacheCmd groups the cache management subcommands
type CacheCmd struct {
	Invalidate cache.InvalidateCacheCmd `cmd:"" help:"Delete all cached responses of one source"`
}

// RunCmd represents the run command
type RunCmd struct {
	SeedFile string `help:"Read the seed list from a CSV file instead of the NYT API" type:"path"`
}

// CheckCmd represents the check command
type CheckCmd struct{}

// ReportCmd represents the report command
type ReportCmd struct{}

// SummaryCmd represents the summary command
type SummaryCmd struct {
	Top int `help:"Number of authors to show" default:"10"`
}

// Execute runs the Kong-based CLI
func Execute() {
	var cli CLI

	kctx := kong.Parse(&cli,
		kong.Name("bookpipe"),
		kong.Description("Ingest bestseller metadata from NYT, Open Library and Google Books into a books table."),
		kong.UsageOnError(),
	)

	initLogging(cli.Debug)

	if err := initConfig(&cli); err != nil {
		slog.Error("Fatal error config file", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	kctx.BindTo(ctx, (*context.Context)(nil))

	if err := kctx.Run(); err != nil {
		slog.Error("Command failed", "error", err)
		stop()
		os.Exit(1)
	}
}

func initConfig(cli *CLI) error {
	config.LoadDotEnv(cli.EnvFile)
	config.SetDefaults()

	viper.AutomaticEnv()
	if err := config.BindEnv(); err != nil {
		return err
	}

	if cli.ConfigFile != "" {
		viper.SetConfigFile(cli.ConfigFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return err
		}
		slog.Debug("Config file not found, using defaults and environment")
	}

	updateGlobalConfig(cli)
	return nil
}

func updateGlobalConfig(cli *CLI) {
	// Flags win over config file and environment
	if cli.DBDriver != "" {
		viper.Set("database.driver", cli.DBDriver)
	}
	if cli.SQLitePath != "" {
		viper.Set("database.sqlite_path", cli.SQLitePath)
	}
	if cli.ReportDir != "" {
		viper.Set("report.dir", cli.ReportDir)
	}
}

func loadConfig(needAPIKeys bool) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(needAPIKeys); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// withStore opens the configured store, runs fn and closes the store.
func withStore(ctx context.Context, cfg *config.Config, fn func(datastore.Store) error) error {
	store, err := openStore(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("opening %s store: %w", cfg.Database.Driver, err)
	}
	defer func() {
		if cerr := store.Close(); cerr != nil {
			slog.Warn("Closing store failed", "error", cerr)
		}
	}()
	return fn(store)
}

// Run methods for each command

func (r *RunCmd) Run(ctx context.Context) error {
	cfg, err := loadConfig(r.SeedFile == "")
	if err != nil {
		return err
	}
	if r.SeedFile == "" {
		return runPipeline(ctx, cfg)
	}
	return runPipelineWith(ctx, cfg, bestsellers.WithSeedSource(bestsellers.CSVSeedSource{
		Path:     r.SeedFile,
		ListName: cfg.NYT.List,
	}))
}

// runPipeline executes one full run and fails when any task failed.
func runPipeline(ctx context.Context, cfg *config.Config) error {
	return runPipelineWith(ctx, cfg)
}

func runPipelineWith(ctx context.Context, cfg *config.Config, opts ...bestsellers.Option) error {
	return withStore(ctx, cfg, func(store datastore.Store) error {
		if cfg.Cache.Enabled {
			cacheDB, err := cache.NewCacheDB(cfg.Cache.DBFile)
			if err != nil {
				return err
			}
			defer func() { _ = cacheDB.Close() }()
			opts = append(opts, bestsellers.WithCache(cacheDB, cache.Policy{
				TTL:         cfg.Cache.TTL,
				NegativeTTL: cfg.Cache.NegativeTTL,
			}))
		}

		result, _, err := bestsellers.New(cfg, store, opts...).Run(ctx)
		if err != nil {
			return err
		}
		logRunResult(result)
		if result.State != pipeline.StateSuccess {
			return fmt.Errorf("pipeline run %s: %w", result.State, result.Err())
		}
		return nil
	})
}

func logRunResult(result *pipeline.RunResult) {
	for _, name := range result.Order {
		t := result.Tasks[name]
		attrs := []any{"task", name, "status", t.Status, "attempts", t.Attempts, "duration", t.Duration}
		if t.Err != nil {
			attrs = append(attrs, "error", t.Err)
		}
		slog.Info("Task result", attrs...)
	}
	slog.Info("Pipeline finished", "state", result.State, "duration", result.Duration)
}

func (c *CheckCmd) Run(ctx context.Context) error {
	cfg, err := loadConfig(false)
	if err != nil {
		return err
	}
	return withStore(ctx, cfg, func(store datastore.Store) error {
		result, err := quality.NewGate(store, cfg.Quality.MinCoverage).Check(ctx)
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintf(stdout, "Data quality check passed: %d records, %d warnings\n", result.Rows, len(result.Warnings))
		return nil
	})
}

func (r *ReportCmd) Run(ctx context.Context) error {
	cfg, err := loadConfig(false)
	if err != nil {
		return err
	}
	return withStore(ctx, cfg, func(store datastore.Store) error {
		gen := report.NewGenerator(store, cfg.ReportPath(), nil)
		if _, err := gen.Generate(ctx); err != nil {
			return err
		}
		_, _ = fmt.Fprintf(stdout, "Data quality report saved at %s\n", gen.Path())
		return nil
	})
}

func (s *SummaryCmd) Run(ctx context.Context) error {
	cfg, err := loadConfig(false)
	if err != nil {
		return err
	}
	return withStore(ctx, cfg, func(store datastore.Store) error {
		table, err := store.Snapshot(ctx)
		if err != nil {
			return err
		}
		_, err = fmt.Fprint(stdout, tui.Render(tui.Summarize(table, s.Top)))
		return err
	})
}

func initLogging(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}

	// Create a human-readable handler for logging
	handler := humanlog.NewHandler(os.Stdout, &humanlog.Options{
		Level: level,
	})

	// Set the default logger
	slog.SetDefault(slog.New(handler))
}

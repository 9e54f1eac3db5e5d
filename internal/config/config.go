package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Database drivers understood by the datastore package.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// ReportFileName is the fixed name of the quality report artifact.
const ReportFileName = "data_quality_report.json"

// Config holds everything one pipeline run needs. It is built from viper,
// which in turn reads defaults, config.yaml and the environment.
type Config struct {
	NYT         NYTConfig
	OpenLibrary OpenLibraryConfig
	GoogleBooks GoogleBooksConfig
	Enrichment  EnrichmentConfig
	Database    DatabaseConfig
	Retry       RetryConfig
	Quality     QualityConfig
	Cache       CacheConfig

	HTTPTimeout  time.Duration
	ReportDir    string
	ScheduleCron string
}

// NYTConfig configures the bestseller seed feed.
type NYTConfig struct {
	APIKey  string
	BaseURL string
	List    string
}

// OpenLibraryConfig configures enrichment source A.
type OpenLibraryConfig struct {
	BaseURL string
}

// GoogleBooksConfig configures enrichment source B. The API key is optional.
type GoogleBooksConfig struct {
	APIKey  string
	BaseURL string
}

// EnrichmentConfig controls request pacing for both enrichment stages.
type EnrichmentConfig struct {
	// Delay is the minimum spacing between consecutive requests to one provider.
	Delay time.Duration
	// RateLimitRetries is how many times an ISBN is retried after HTTP 429.
	RateLimitRetries int
	// MaxBackoff caps the wait taken after HTTP 429.
	MaxBackoff time.Duration
}

// DatabaseConfig selects and locates the relational store.
type DatabaseConfig struct {
	Driver     string
	Host       string
	Port       int
	Name       string
	User       string
	Password   string
	SSLMode    string
	SQLitePath string
}

// RetryConfig is the task-level retry policy of the pipeline graph.
type RetryConfig struct {
	Attempts int
	Backoff  time.Duration
}

// QualityConfig tunes the soft checks of the quality gate.
type QualityConfig struct {
	MinCoverage float64
}

// CacheConfig controls the optional enrichment response cache.
type CacheConfig struct {
	Enabled     bool
	DBFile      string
	TTL         time.Duration
	NegativeTTL time.Duration
}

// envBindings maps config keys to the environment variables that set them.
var envBindings = map[string]string{
	"nyt.api_key":          "NYT_API_KEY",
	"googlebooks.api_key":  "GOOGLE_API_KEY",
	"database.driver":      "BOOKPIPE_DB_DRIVER",
	"database.host":        "POSTGRES_HOST",
	"database.port":        "POSTGRES_PORT",
	"database.name":        "POSTGRES_DB",
	"database.user":        "POSTGRES_USER",
	"database.password":    "POSTGRES_PASSWORD",
	"database.sslmode":     "POSTGRES_SSLMODE",
	"database.sqlite_path": "BOOKPIPE_SQLITE_PATH",
	"report.dir":           "BOOKPIPE_REPORT_DIR",
	"schedule.cron":        "BOOKPIPE_SCHEDULE",
	"cache.enabled":        "BOOKPIPE_CACHE_ENABLED",
	"cache.dbfile":         "BOOKPIPE_CACHE_DBFILE",
}

// SetDefaults registers the documented local/dev defaults with viper.
func SetDefaults() {
	viper.SetDefault("nyt.base_url", "https://api.nytimes.com")
	viper.SetDefault("nyt.list", "hardcover-fiction")
	viper.SetDefault("openlibrary.base_url", "https://openlibrary.org")
	viper.SetDefault("googlebooks.base_url", "https://www.googleapis.com")

	viper.SetDefault("enrichment.delay", "1s")
	viper.SetDefault("enrichment.rate_limit_retries", 2)
	viper.SetDefault("enrichment.max_backoff", "30s")
	viper.SetDefault("http.timeout", "10s")

	viper.SetDefault("database.driver", DriverPostgres)
	viper.SetDefault("database.host", "postgres")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.name", "books_db")
	viper.SetDefault("database.user", "airflow")
	viper.SetDefault("database.password", "")
	viper.SetDefault("database.sslmode", "disable")
	viper.SetDefault("database.sqlite_path", "./books.db")

	viper.SetDefault("retry.attempts", 3)
	viper.SetDefault("retry.backoff", "2m")

	viper.SetDefault("quality.min_coverage", 0.5)
	viper.SetDefault("report.dir", "./reports")
	viper.SetDefault("schedule.cron", "0 9 * * *")

	viper.SetDefault("cache.enabled", false)
	viper.SetDefault("cache.dbfile", "./cache.db")
	viper.SetDefault("cache.ttl", "720h")
	viper.SetDefault("cache.negative_ttl", "168h")
}

// BindEnv binds every config key to its environment variable.
func BindEnv() error {
	for key, env := range envBindings {
		if err := viper.BindEnv(key, env); err != nil {
			return fmt.Errorf("binding %s to %s: %w", key, env, err)
		}
	}
	return nil
}

// LoadDotEnv loads environment variables from the given .env files if they
// exist. Variables already set in the environment are not overridden.
func LoadDotEnv(filenames ...string) {
	for _, filename := range filenames {
		if err := godotenv.Load(filename); err == nil {
			slog.Debug("Loaded environment file", "file", filename)
		}
	}
}

// Load builds a Config from the current viper state.
func Load() (*Config, error) {
	cfg := &Config{
		NYT: NYTConfig{
			APIKey:  viper.GetString("nyt.api_key"),
			BaseURL: strings.TrimRight(viper.GetString("nyt.base_url"), "/"),
			List:    viper.GetString("nyt.list"),
		},
		OpenLibrary: OpenLibraryConfig{
			BaseURL: strings.TrimRight(viper.GetString("openlibrary.base_url"), "/"),
		},
		GoogleBooks: GoogleBooksConfig{
			APIKey:  viper.GetString("googlebooks.api_key"),
			BaseURL: strings.TrimRight(viper.GetString("googlebooks.base_url"), "/"),
		},
		Enrichment: EnrichmentConfig{
			RateLimitRetries: viper.GetInt("enrichment.rate_limit_retries"),
		},
		Database: DatabaseConfig{
			Driver:     strings.ToLower(viper.GetString("database.driver")),
			Host:       viper.GetString("database.host"),
			Port:       viper.GetInt("database.port"),
			Name:       viper.GetString("database.name"),
			User:       viper.GetString("database.user"),
			Password:   viper.GetString("database.password"),
			SSLMode:    viper.GetString("database.sslmode"),
			SQLitePath: viper.GetString("database.sqlite_path"),
		},
		Retry: RetryConfig{
			Attempts: viper.GetInt("retry.attempts"),
		},
		Quality: QualityConfig{
			MinCoverage: viper.GetFloat64("quality.min_coverage"),
		},
		Cache: CacheConfig{
			Enabled: viper.GetBool("cache.enabled"),
			DBFile:  viper.GetString("cache.dbfile"),
		},
		ReportDir:    viper.GetString("report.dir"),
		ScheduleCron: viper.GetString("schedule.cron"),
	}

	durations := []struct {
		key  string
		dest *time.Duration
	}{
		{"enrichment.delay", &cfg.Enrichment.Delay},
		{"enrichment.max_backoff", &cfg.Enrichment.MaxBackoff},
		{"http.timeout", &cfg.HTTPTimeout},
		{"retry.backoff", &cfg.Retry.Backoff},
		{"cache.ttl", &cfg.Cache.TTL},
		{"cache.negative_ttl", &cfg.Cache.NegativeTTL},
	}
	for _, d := range durations {
		v, err := parseDuration(d.key)
		if err != nil {
			return nil, err
		}
		*d.dest = v
	}

	return cfg, nil
}

func parseDuration(key string) (time.Duration, error) {
	raw := viper.GetString(key)
	if raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid duration for %s: %w", key, err)
	}
	return d, nil
}

// Validate checks that required keys are present. Only the keys needed by
// the requested operation are checked: the quality gate and report do not
// need API keys.
func (c *Config) Validate(needAPIKeys bool) error {
	var errs []error

	if needAPIKeys && c.NYT.APIKey == "" {
		errs = append(errs, errors.New("NYT API key is required (set NYT_API_KEY or nyt.api_key in config)"))
	}

	switch c.Database.Driver {
	case DriverPostgres:
		if c.Database.Host == "" || c.Database.Name == "" || c.Database.User == "" {
			errs = append(errs, errors.New("postgres host, database and user are required"))
		}
	case DriverSQLite:
		if c.Database.SQLitePath == "" {
			errs = append(errs, errors.New("sqlite path is required (set BOOKPIPE_SQLITE_PATH or database.sqlite_path)"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported database driver %q (want %s or %s)", c.Database.Driver, DriverPostgres, DriverSQLite))
	}

	if c.Enrichment.Delay < 0 {
		errs = append(errs, errors.New("enrichment.delay must not be negative"))
	}
	if c.Retry.Attempts < 1 {
		errs = append(errs, errors.New("retry.attempts must be at least 1"))
	}
	if c.Cache.Enabled && c.Cache.DBFile == "" {
		errs = append(errs, errors.New("cache.dbfile is required when the cache is enabled"))
	}
	if c.ReportDir == "" {
		errs = append(errs, errors.New("report directory is required (set BOOKPIPE_REPORT_DIR or report.dir)"))
	}

	return errors.Join(errs...)
}

// DSN returns the postgres connection URL for the configured database.
func (d DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		Host:   net.JoinHostPort(d.Host, strconv.Itoa(d.Port)),
		Path:   "/" + d.Name,
	}
	if d.Password != "" {
		u.User = url.UserPassword(d.User, d.Password)
	} else {
		u.User = url.User(d.User)
	}
	if d.SSLMode != "" {
		u.RawQuery = url.Values{"sslmode": {d.SSLMode}}.Encode()
	}
	return u.String()
}

// ReportPath returns the fixed path of the quality report artifact.
func (c *Config) ReportPath() string {
	return strings.TrimRight(c.ReportDir, "/") + "/" + ReportFileName
}

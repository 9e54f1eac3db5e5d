package testutil

import (
	"testing"

	"github.com/lepinkainen/bookpipe/internal/config"
	"github.com/spf13/viper"
)

// ResetConfig resets viper to the documented defaults and resets it again
// when the test completes.
func ResetConfig(t *testing.T) {
	t.Helper()

	viper.Reset()
	config.SetDefaults()

	t.Cleanup(viper.Reset)
}

// SetViperValue sets a viper configuration value for the duration of the test.
func SetViperValue(t *testing.T, key string, value any) {
	t.Helper()

	oldValue := viper.Get(key)
	hadValue := viper.IsSet(key)

	viper.Set(key, value)

	t.Cleanup(func() {
		if hadValue {
			viper.Set(key, oldValue)
		}
	})
}

// UseLocalStore points the pipeline at an SQLite database and report
// directory inside env, and removes request pacing and task backoff so runs
// finish quickly. It returns the database path.
func UseLocalStore(t *testing.T, env *TestEnv) string {
	t.Helper()

	dbPath := env.Path("books.db")

	SetViperValue(t, "database.driver", config.DriverSQLite)
	SetViperValue(t, "database.sqlite_path", dbPath)
	SetViperValue(t, "report.dir", env.Path("reports"))
	SetViperValue(t, "enrichment.delay", "0s")
	SetViperValue(t, "enrichment.max_backoff", "10ms")
	SetViperValue(t, "retry.attempts", 1)
	SetViperValue(t, "retry.backoff", "0s")

	return dbPath
}

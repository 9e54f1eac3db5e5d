package cache

import (
	"fmt"
	"log/slog"

	"github.com/spf13/viper"
)

// Sources lists the enrichment sources that have a cache table.
var Sources = []string{"openlibrary", "googlebooks"}

// InvalidateCacheCmd represents the cache invalidate subcommand
type InvalidateCacheCmd struct {
	Source string `arg:"" help:"Cache source to invalidate: openlibrary, googlebooks" enum:"openlibrary,googlebooks"`
}

func (i *InvalidateCacheCmd) Run() error {
	cacheDB := viper.GetString("cache.dbfile")

	slog.Info("Invalidating cache", "source", i.Source, "database", cacheDB)

	tableName := TableFor(i.Source)
	if err := validateTableName(tableName); err != nil {
		return fmt.Errorf("invalid cache source '%s'; valid sources are: %v", i.Source, Sources)
	}

	cacheInstance, err := NewCacheDB(cacheDB)
	if err != nil {
		return fmt.Errorf("failed to open cache database: %w", err)
	}
	defer func() { _ = cacheInstance.Close() }()

	rowsDeleted, err := cacheInstance.InvalidateSource(tableName)
	if err != nil {
		return fmt.Errorf("failed to invalidate cache: %w", err)
	}

	slog.Info("Cache invalidated", "source", i.Source, "rows_deleted", rowsDeleted)
	return nil
}

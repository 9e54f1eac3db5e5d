package datastore

import (
	"context"
	"fmt"

	"github.com/lepinkainen/bookpipe/internal/config"
)

// New returns the store selected by the database configuration. The store is
// not connected yet.
func New(cfg config.DatabaseConfig) (Store, error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		return NewPostgresStore(cfg.DSN()), nil
	case config.DriverSQLite:
		return NewSQLiteStore(cfg.SQLitePath), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

// Open creates, connects and migrates the configured store.
func Open(ctx context.Context, cfg config.DatabaseConfig) (Store, error) {
	store, err := New(cfg)
	if err != nil {
		return nil, err
	}
	if err := store.Connect(ctx); err != nil {
		return nil, err
	}
	if err := store.EnsureSchema(ctx); err != nil {
		_ = store.Close()
		return nil, err
	}
	return store, nil
}

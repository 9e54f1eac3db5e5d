package datastore

import (
	"context"
	"errors"

	"github.com/lepinkainen/bookpipe/internal/book"
)

// ErrConnect marks failures to reach the database. Callers treat it as fatal
// for the run.
var ErrConnect = errors.New("database connection failed")

// TableName is the table every store reads and writes.
const TableName = "books"

// Store defines the interface for the relational books store
type Store interface {
	// Connect establishes a connection to the data store
	Connect(ctx context.Context) error

	// EnsureSchema creates the books table if it doesn't exist
	EnsureSchema(ctx context.Context) error

	// UpsertBooks inserts or replaces records keyed by ISBN in a single
	// transaction and returns the number of rows written
	UpsertBooks(ctx context.Context, records []book.Record) (int, error)

	// Snapshot reads the full books table
	Snapshot(ctx context.Context) (*Table, error)

	// Close closes the connection to the data store
	Close() error
}

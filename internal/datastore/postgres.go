package datastore

import (
	"context"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lepinkainen/bookpipe/internal/book"
)

// PostgresStore implements the Store interface on a pgx connection pool
type PostgresStore struct {
	pool     *pgxpool.Pool
	dsn      string
	maxConns int32
}

// Compile-time check that PostgresStore implements Store.
var _ Store = (*PostgresStore)(nil)

// NewPostgresStore creates a store for the given connection URL
func NewPostgresStore(dsn string) *PostgresStore {
	return &PostgresStore{
		dsn:      dsn,
		maxConns: 4,
	}
}

// Connect opens the pool and verifies the server is reachable
func (s *PostgresStore) Connect(ctx context.Context) error {
	cfg, err := pgxpool.ParseConfig(s.dsn)
	if err != nil {
		return fmt.Errorf("%w: invalid connection string: %w", ErrConnect, err)
	}
	cfg.MaxConns = s.maxConns

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrConnect, err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return fmt.Errorf("%w: %s: %w", ErrConnect, cfg.ConnConfig.Host, err)
	}

	s.pool = pool
	return nil
}

// EnsureSchema creates the books table if it doesn't exist
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if s.pool == nil {
		return fmt.Errorf("%w: store not connected", ErrConnect)
	}
	if _, err := s.pool.Exec(ctx, PostgresBooksSchema); err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}
	return nil
}

// UpsertBooks inserts or replaces records keyed by ISBN in one transaction
func (s *PostgresStore) UpsertBooks(ctx context.Context, records []book.Record) (int, error) {
	if s.pool == nil {
		return 0, fmt.Errorf("%w: store not connected", ErrConnect)
	}
	if len(records) == 0 {
		return 0, nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	query := upsertQuery(func(n int) string { return "$" + strconv.Itoa(n) })
	batch := &pgx.Batch{}
	for _, record := range records {
		batch.Queue(query, record.Values()...)
	}

	results := tx.SendBatch(ctx, batch)
	for _, record := range records {
		if _, err := results.Exec(); err != nil {
			_ = results.Close()
			return 0, fmt.Errorf("failed to upsert record %s: %w", record.ISBN, err)
		}
	}
	if err := results.Close(); err != nil {
		return 0, fmt.Errorf("failed to close batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return len(records), nil
}

// Snapshot reads the full books table
func (s *PostgresStore) Snapshot(ctx context.Context) (*Table, error) {
	if s.pool == nil {
		return nil, fmt.Errorf("%w: store not connected", ErrConnect)
	}

	rows, err := s.pool.Query(ctx, snapshotQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", TableName, err)
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	table := &Table{Columns: make([]string, len(fields))}
	for i, f := range fields {
		table.Columns[i] = f.Name
	}

	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("failed to read row: %w", err)
		}
		for i := range values {
			values[i] = normalizeValue(values[i])
		}
		table.Rows = append(table.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rows: %w", err)
	}

	return table, nil
}

// Close closes the connection pool
func (s *PostgresStore) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}

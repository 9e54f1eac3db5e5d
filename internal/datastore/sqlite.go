package datastore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lepinkainen/bookpipe/internal/book"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements the Store interface for local SQLite storage
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
}

// Compile-time check that SQLiteStore implements Store.
var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore creates a new SQLiteStore instance
func NewSQLiteStore(dbPath string) *SQLiteStore {
	return &SQLiteStore{
		dbPath: dbPath,
	}
}

// Connect opens a connection to the SQLite database
func (s *SQLiteStore) Connect(ctx context.Context) error {
	db, err := sql.Open("sqlite", s.dbPath)
	if err != nil {
		return fmt.Errorf("%w: failed to open database: %w", ErrConnect, err)
	}
	// SQLite allows a single writer; one connection also keeps in-memory
	// databases from splitting across connections.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		closeErr := db.Close()
		return errors.Join(fmt.Errorf("%w: %s: %w", ErrConnect, s.dbPath, err), closeErr)
	}
	s.db = db
	return nil
}

// EnsureSchema creates the books table if it doesn't exist
func (s *SQLiteStore) EnsureSchema(ctx context.Context) error {
	if s.db == nil {
		return fmt.Errorf("%w: store not connected", ErrConnect)
	}
	if _, err := s.db.ExecContext(ctx, SQLiteBooksSchema); err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}
	return nil
}

// UpsertBooks inserts or replaces records keyed by ISBN
func (s *SQLiteStore) UpsertBooks(ctx context.Context, records []book.Record) (int, error) {
	if s.db == nil {
		return 0, fmt.Errorf("%w: store not connected", ErrConnect)
	}
	if len(records) == 0 {
		return 0, nil
	}

	// Start a transaction so readers never see a half-written refresh
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		// Rollback if we don't commit - ignore errors as they're expected if transaction was committed
		_ = tx.Rollback()
	}()

	stmt, err := tx.PrepareContext(ctx, upsertQuery(func(int) string { return "?" }))
	if err != nil {
		return 0, fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, record := range records {
		values := record.Values()
		for i, v := range values {
			if ts, ok := v.(time.Time); ok {
				values[i] = ts.Format(time.RFC3339Nano)
			}
		}
		if _, err := stmt.ExecContext(ctx, values...); err != nil {
			return 0, fmt.Errorf("failed to upsert record %s: %w", record.ISBN, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return len(records), nil
}

// Snapshot reads the full books table
func (s *SQLiteStore) Snapshot(ctx context.Context) (*Table, error) {
	if s.db == nil {
		return nil, fmt.Errorf("%w: store not connected", ErrConnect)
	}

	rows, err := s.db.QueryContext(ctx, snapshotQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", TableName, err)
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read columns: %w", err)
	}

	table := &Table{Columns: columns}
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
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

// Exec runs a raw statement. It exists for maintenance tasks and tests that
// need to put the table into states the upsert path never produces.
func (s *SQLiteStore) Exec(ctx context.Context, query string, args ...any) error {
	if s.db == nil {
		return fmt.Errorf("%w: store not connected", ErrConnect)
	}
	_, err := s.db.ExecContext(ctx, query, args...)
	return err
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

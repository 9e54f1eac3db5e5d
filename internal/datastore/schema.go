package datastore

import (
	"fmt"
	"strings"

	"github.com/lepinkainen/bookpipe/internal/book"
)

// SQLiteBooksSchema defines the books table for SQLite
const SQLiteBooksSchema = `
CREATE TABLE IF NOT EXISTS books (
	isbn TEXT PRIMARY KEY,
	title TEXT,
	author TEXT,
	rank INTEGER,
	list_name TEXT,
	weeks_on_list INTEGER,
	contributor TEXT,
	amazon_url TEXT,
	publisher TEXT,
	description TEXT,
	publish_date TEXT,
	page_count INTEGER,
	subject TEXT,
	classification TEXT,
	language TEXT,
	average_rating REAL,
	ratings_count INTEGER,
	updated_at TEXT NOT NULL
);
`

// PostgresBooksSchema defines the books table for Postgres
const PostgresBooksSchema = `
CREATE TABLE IF NOT EXISTS books (
	isbn TEXT PRIMARY KEY,
	title TEXT,
	author TEXT,
	rank INTEGER,
	list_name TEXT,
	weeks_on_list INTEGER,
	contributor TEXT,
	amazon_url TEXT,
	publisher TEXT,
	description TEXT,
	publish_date TEXT,
	page_count INTEGER,
	subject TEXT,
	classification TEXT,
	language TEXT,
	average_rating DOUBLE PRECISION,
	ratings_count INTEGER,
	updated_at TIMESTAMPTZ NOT NULL
);
`

// upsertQuery builds the insert-or-replace statement for the books table.
// placeholder returns the bind marker for the 1-based argument position.
func upsertQuery(placeholder func(int) string) string {
	placeholders := make([]string, len(book.Columns))
	updates := make([]string, 0, len(book.Columns)-1)
	for i, col := range book.Columns {
		placeholders[i] = placeholder(i + 1)
		if col == "isbn" {
			continue
		}
		updates = append(updates, fmt.Sprintf("%s = excluded.%s", col, col))
	}

	return fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (isbn) DO UPDATE SET %s",
		TableName,
		strings.Join(book.Columns, ", "),
		strings.Join(placeholders, ", "),
		strings.Join(updates, ", "),
	)
}

// snapshotQuery reads the whole table in a stable order.
var snapshotQuery = fmt.Sprintf("SELECT * FROM %s ORDER BY isbn", TableName)

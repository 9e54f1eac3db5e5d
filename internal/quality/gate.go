// Package quality runs integrity assertions against the persisted books
// table. Hard assertions fail the run; soft checks only log warnings.
package quality

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/lepinkainen/bookpipe/internal/datastore"
)

var (
	// ErrEmptyTable is returned when the books table has no rows.
	ErrEmptyTable = errors.New("no data found in books table")

	// ErrMissingISBN is returned when at least one row has a null or empty ISBN.
	ErrMissingISBN = errors.New("missing ISBNs detected")
)

// Provider column groups used for the coverage check.
var (
	OpenLibraryColumns = []string{"publisher", "description", "publish_date", "page_count"}
	GoogleBooksColumns = []string{"subject", "classification", "language", "average_rating", "ratings_count"}
)

// Reader is the part of the store the gate needs.
type Reader interface {
	Snapshot(ctx context.Context) (*datastore.Table, error)
}

// CheckResult is the outcome of one gate run.
type CheckResult struct {
	Rows          int
	MissingISBNs  int
	NullTitles    int
	NullAuthors   int
	DuplicateISBN []string
	Coverage      map[string]float64
	Warnings      []string
}

// Passed reports whether every hard assertion held.
func (r *CheckResult) Passed() bool {
	return r != nil && r.Rows > 0 && r.MissingISBNs == 0
}

// Gate checks the books table.
type Gate struct {
	store       Reader
	minCoverage float64
}

// NewGate creates a gate. Enrichment coverage below minCoverage (0..1) is
// reported as a warning.
func NewGate(store Reader, minCoverage float64) *Gate {
	return &Gate{store: store, minCoverage: minCoverage}
}

// Check reads the full table and evaluates it. The result is returned even
// when a hard assertion fails so callers can log what was seen.
func (g *Gate) Check(ctx context.Context) (*CheckResult, error) {
	table, err := g.store.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading books table: %w", err)
	}

	result, err := Evaluate(table, g.minCoverage)
	for _, w := range result.Warnings {
		slog.Warn("Data quality warning", "check", w)
	}
	if err != nil {
		slog.Error("Data quality check failed", "rows", result.Rows, "missing_isbns", result.MissingISBNs, "error", err)
		return result, err
	}

	slog.Info("Data quality check passed", "records", result.Rows, "warnings", len(result.Warnings))
	return result, nil
}

// Evaluate runs every check against an in-memory table.
func Evaluate(table *datastore.Table, minCoverage float64) (*CheckResult, error) {
	result := &CheckResult{
		Rows:     table.Len(),
		Coverage: map[string]float64{},
	}
	if result.Rows == 0 {
		return result, ErrEmptyTable
	}

	isbns, ok := table.Column("isbn")
	if !ok {
		return result, fmt.Errorf("%w: table has no isbn column", ErrMissingISBN)
	}

	seen := make(map[string]int, len(isbns))
	for _, v := range isbns {
		if isMissing(v) {
			result.MissingISBNs++
			continue
		}
		seen[fmt.Sprint(v)]++
	}
	for id, n := range seen {
		if n > 1 {
			result.DuplicateISBN = append(result.DuplicateISBN, id)
		}
	}
	sort.Strings(result.DuplicateISBN)

	result.NullTitles = countMissing(table, "title")
	result.NullAuthors = countMissing(table, "author")

	if result.NullTitles > 0 {
		result.Warnings = append(result.Warnings, fmt.Sprintf("%d rows without title", result.NullTitles))
	}
	if result.NullAuthors > 0 {
		result.Warnings = append(result.Warnings, fmt.Sprintf("%d rows without author", result.NullAuthors))
	}
	if len(result.DuplicateISBN) > 0 {
		result.Warnings = append(result.Warnings, fmt.Sprintf("duplicate ISBNs: %v", result.DuplicateISBN))
	}

	for name, cols := range map[string][]string{
		"openlibrary": OpenLibraryColumns,
		"googlebooks": GoogleBooksColumns,
	} {
		cov := coverage(table, cols)
		result.Coverage[name] = cov
		if cov < minCoverage {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("%s coverage %.0f%% below %.0f%%", name, cov*100, minCoverage*100))
		}
	}
	sort.Strings(result.Warnings)

	if result.MissingISBNs > 0 {
		return result, fmt.Errorf("%w: %d rows", ErrMissingISBN, result.MissingISBNs)
	}
	return result, nil
}

func countMissing(table *datastore.Table, column string) int {
	values, ok := table.Column(column)
	if !ok {
		return table.Len()
	}
	n := 0
	for _, v := range values {
		if isMissing(v) {
			n++
		}
	}
	return n
}

// coverage is the share of rows with at least one non-null value in columns.
func coverage(table *datastore.Table, columns []string) float64 {
	if table.Len() == 0 {
		return 0
	}
	idx := make([]int, 0, len(columns))
	for _, c := range columns {
		if i := table.ColumnIndex(c); i >= 0 {
			idx = append(idx, i)
		}
	}
	covered := 0
	for _, row := range table.Rows {
		for _, i := range idx {
			if i < len(row) && !isMissing(row[i]) {
				covered++
				break
			}
		}
	}
	return float64(covered) / float64(table.Len())
}

func isMissing(v any) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && s == ""
}

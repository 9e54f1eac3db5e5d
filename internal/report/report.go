// Package report builds the column-wise data quality snapshot of the books
// table and writes it as JSON.
package report

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/lepinkainen/bookpipe/internal/datastore"
)

// Reader is the part of the store the report needs.
type Reader interface {
	Snapshot(ctx context.Context) (*datastore.Table, error)
}

// NumericStats holds the describe() statistics of a numeric column.
type NumericStats struct {
	Mean *float64 `json:"mean"`
	Std  *float64 `json:"std"`
	Min  *float64 `json:"min"`
	P25  *float64 `json:"25%"`
	P50  *float64 `json:"50%"`
	P75  *float64 `json:"75%"`
	Max  *float64 `json:"max"`
}

// ColumnStats summarizes one column. Numeric columns fill the embedded
// statistics, all other columns fill Unique, Top and Freq.
type ColumnStats struct {
	Count int `json:"count"`
	Nulls int `json:"nulls"`

	*NumericStats

	Unique *int    `json:"unique,omitempty"`
	Top    *string `json:"top,omitempty"`
	Freq   *int    `json:"freq,omitempty"`
}

// Report is the data quality snapshot.
type Report struct {
	GeneratedAt time.Time              `json:"generated_at"`
	Rows        int                    `json:"rows"`
	Columns     map[string]ColumnStats `json:"columns"`
}

// Describe computes per-column statistics for table.
func Describe(table *datastore.Table, now time.Time) *Report {
	r := &Report{
		GeneratedAt: now.UTC(),
		Rows:        table.Len(),
		Columns:     make(map[string]ColumnStats),
	}
	if table == nil {
		return r
	}
	for _, name := range table.Columns {
		values, _ := table.Column(name)
		r.Columns[name] = describeColumn(values)
	}
	return r
}

func describeColumn(values []any) ColumnStats {
	var stats ColumnStats
	var nums []float64
	numeric := true

	for _, v := range values {
		if v == nil {
			stats.Nulls++
			continue
		}
		stats.Count++
		switch n := v.(type) {
		case int64:
			nums = append(nums, float64(n))
		case float64:
			nums = append(nums, n)
		default:
			numeric = false
		}
	}

	if stats.Count == 0 {
		return stats
	}
	if numeric {
		stats.NumericStats = numericSummary(nums)
		return stats
	}

	counts := make(map[string]int)
	for _, v := range values {
		if v == nil {
			continue
		}
		counts[formatValue(v)]++
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	top, freq := "", 0
	for _, k := range keys {
		if counts[k] > freq {
			top, freq = k, counts[k]
		}
	}
	unique := len(counts)
	stats.Unique = &unique
	stats.Top = &top
	stats.Freq = &freq
	return stats
}

func formatValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case time.Time:
		return val.UTC().Format(time.RFC3339)
	default:
		return fmt.Sprint(val)
	}
}

// Generator reads the table and writes the report file.
type Generator struct {
	store Reader
	path  string
	now   func() time.Time
}

// NewGenerator creates a generator writing to path.
func NewGenerator(store Reader, path string, now func() time.Time) *Generator {
	if now == nil {
		now = time.Now
	}
	return &Generator{store: store, path: path, now: now}
}

// Path returns the report file location.
func (g *Generator) Path() string {
	return g.path
}

// Generate snapshots the table and overwrites the report file.
func (g *Generator) Generate(ctx context.Context) (*Report, error) {
	table, err := g.store.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading books table: %w", err)
	}

	r := Describe(table, g.now())
	if err := Write(g.path, r); err != nil {
		return nil, err
	}

	slog.Info("Data quality report saved", "path", g.path, "rows", r.Rows, "columns", len(r.Columns))
	return r, nil
}

// Write stores r as indented JSON at path, replacing any previous file
// atomically. The parent directory is created if needed.
func Write(path string, r *Report) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating report directory: %w", err)
	}

	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".report-*.json")
	if err != nil {
		return fmt.Errorf("creating temp report: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("writing report: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing report: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("replacing report: %w", err)
	}
	return nil
}

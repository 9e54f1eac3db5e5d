// Package tui renders the read-only terminal dashboard over the books table.
package tui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/lepinkainen/bookpipe/internal/datastore"
)

// Count is one bar of a frequency chart.
type Count struct {
	Label string
	N     int
}

// Dashboard is the data behind the summary view.
type Dashboard struct {
	Rows       int
	Columns    []string
	TopAuthors []Count
	// ISBNDistribution counts rows per ISBN. Every bar should be 1 after a
	// healthy run.
	ISBNDistribution []Count
	Enriched         map[string]int
}

// Summarize builds a dashboard from a table snapshot. topN limits the
// author chart.
func Summarize(table *datastore.Table, topN int) Dashboard {
	d := Dashboard{
		Rows:     table.Len(),
		Enriched: map[string]int{},
	}
	if table == nil {
		return d
	}
	d.Columns = append(d.Columns, table.Columns...)

	if authors, ok := table.Column("author"); ok {
		d.TopAuthors = valueCounts(authors)
		if topN > 0 && len(d.TopAuthors) > topN {
			d.TopAuthors = d.TopAuthors[:topN]
		}
	}
	if isbns, ok := table.Column("isbn"); ok {
		d.ISBNDistribution = valueCounts(isbns)
	}
	for _, col := range []string{"publisher", "subject"} {
		values, ok := table.Column(col)
		if !ok {
			continue
		}
		for _, v := range values {
			if s, isString := v.(string); v != nil && (!isString || s != "") {
				d.Enriched[col]++
			}
		}
	}
	return d
}

// valueCounts is like pandas value_counts: most frequent first, ties by
// label, nulls excluded.
func valueCounts(values []any) []Count {
	counts := make(map[string]int)
	for _, v := range values {
		if v == nil {
			continue
		}
		label := fmt.Sprint(v)
		if strings.TrimSpace(label) == "" {
			continue
		}
		counts[label]++
	}
	out := make([]Count, 0, len(counts))
	for label, n := range counts {
		out = append(out, Count{Label: label, N: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].N != out[j].N {
			return out[i].N > out[j].N
		}
		return out[i].Label < out[j].Label
	})
	return out
}

package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/lepinkainen/bookpipe/internal/book"
	"github.com/lepinkainen/bookpipe/internal/enrichment"
	"github.com/lepinkainen/bookpipe/internal/enrichment/googlebooks"
	"github.com/lepinkainen/bookpipe/internal/enrichment/openlibrary"
)

// Writer is the part of the store the reconciler needs.
type Writer interface {
	UpsertBooks(ctx context.Context, records []book.Record) (int, error)
}

// Summary reports what one reconcile run did.
type Summary struct {
	Merged  int
	Skipped int
	Written int
}

// Reconciler merges and persists one run's data. It is the only writer of
// the books table.
type Reconciler struct {
	store Writer
	now   func() time.Time
}

// New creates a Reconciler. now supplies the updated_at timestamp; pass a
// fixed run timestamp to make repeated runs produce identical rows.
func New(store Writer, now func() time.Time) *Reconciler {
	if now == nil {
		now = time.Now
	}
	return &Reconciler{store: store, now: now}
}

// Run merges the inputs, drops records that fail validation, and upserts the
// rest in one transaction. A storage error fails the run.
func (r *Reconciler) Run(
	ctx context.Context,
	seed *book.SeedSet,
	ol enrichment.Result[*openlibrary.Book],
	gb enrichment.Result[*googlebooks.Response],
) (Summary, error) {
	records := Merge(seed, ol, gb, r.now().UTC())
	summary := Summary{Merged: len(records)}

	valid := records[:0]
	for _, rec := range records {
		if err := rec.Validate(); err != nil {
			slog.Warn("Skipping invalid record", "isbn", rec.ISBN, "error", err)
			summary.Skipped++
			continue
		}
		valid = append(valid, rec)
	}

	if len(valid) == 0 {
		slog.Warn("No valid records to write")
		return summary, nil
	}

	n, err := r.store.UpsertBooks(ctx, valid)
	if err != nil {
		return summary, fmt.Errorf("upserting books: %w", err)
	}
	summary.Written = n

	slog.Info("Reconciled books",
		"merged", summary.Merged,
		"written", summary.Written,
		"skipped", summary.Skipped,
		"openlibrary_hits", len(ol),
		"googlebooks_hits", len(gb),
	)
	return summary, nil
}

package bestsellers

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/lepinkainen/bookpipe/internal/book"
	"github.com/lepinkainen/bookpipe/internal/csvutil"
	"github.com/lepinkainen/bookpipe/internal/isbn"
)

// CSVSeedSource reads the seed list from a CSV export instead of the NYT
// API. Columns are matched by header name; primary_isbn13 and title are
// required, rank defaults to the row position.
type CSVSeedSource struct {
	Path     string
	ListName string
}

// FetchBestsellers reads and validates the CSV file. Rows without a usable
// ISBN-13 are dropped like entries of the NYT feed.
func (s CSVSeedSource) FetchBestsellers(ctx context.Context) (*book.SeedSet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	position := 0
	parse := func(h csvutil.Header, record []string) (book.Seed, error) {
		position++
		seed := book.Seed{
			ISBN:        isbn.Normalize(h.Get(record, "primary_isbn13")),
			Title:       h.Get(record, "title"),
			Author:      h.Get(record, "author"),
			Rank:        position,
			Contributor: h.Get(record, "contributor"),
			AmazonURL:   h.Get(record, "amazon_product_url"),
			ListName:    s.ListName,
		}
		if !isbn.IsISBN13(seed.ISBN) {
			return book.Seed{}, fmt.Errorf("%w: %q", book.ErrInvalidISBN, h.Get(record, "primary_isbn13"))
		}
		var err error
		if raw := h.Get(record, "rank"); raw != "" {
			if seed.Rank, err = strconv.Atoi(raw); err != nil {
				return book.Seed{}, fmt.Errorf("rank %q: %w", raw, err)
			}
		}
		if raw := h.Get(record, "weeks_on_list"); raw != "" {
			if seed.WeeksOnList, err = strconv.Atoi(raw); err != nil {
				return book.Seed{}, fmt.Errorf("weeks_on_list %q: %w", raw, err)
			}
		}
		if name := h.Get(record, "list_name"); name != "" {
			seed.ListName = name
		}
		return seed, nil
	}

	seeds, err := csvutil.ProcessCSV(s.Path, parse, csvutil.ProcessorOptions{
		Required:    []string{"primary_isbn13", "title"},
		SkipInvalid: true,
	})
	if err != nil {
		return nil, fmt.Errorf("reading seed file: %w", err)
	}

	set := book.NewSeedSet(seeds)
	slog.Info("Loaded seed list from file", "path", s.Path, "books", set.Len())
	return set, nil
}

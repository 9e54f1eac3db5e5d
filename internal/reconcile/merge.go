// Package reconcile merges the seed list with both enrichment results into
// book records and writes them to the store.
package reconcile

import (
	"time"

	"github.com/lepinkainen/bookpipe/internal/book"
	"github.com/lepinkainen/bookpipe/internal/enrichment"
	"github.com/lepinkainen/bookpipe/internal/enrichment/googlebooks"
	"github.com/lepinkainen/bookpipe/internal/enrichment/openlibrary"
)

// Merge builds one record per seed ISBN, in seed order. Seed fields always
// win; Open Library fills the publication fields and Google Books fills the
// classification and rating fields. ISBNs missing from an enrichment result
// keep those fields nil. Merge is pure: equal inputs give equal records.
func Merge(
	seed *book.SeedSet,
	ol enrichment.Result[*openlibrary.Book],
	gb enrichment.Result[*googlebooks.Response],
	now time.Time,
) []book.Record {
	if seed.Len() == 0 {
		return nil
	}

	records := make([]book.Record, 0, seed.Len())
	for _, id := range seed.ISBNs.Values() {
		s := seed.Books[id]
		r := book.Record{
			ISBN:        id,
			Title:       s.Title,
			Author:      s.Author,
			Rank:        s.Rank,
			ListName:    s.ListName,
			WeeksOnList: s.WeeksOnList,
			Contributor: s.Contributor,
			AmazonURL:   s.AmazonURL,
			UpdatedAt:   now,
		}

		if a, ok := ol[id]; ok && a != nil {
			r.Publisher = a.Publisher()
			r.Description = a.DescriptionText()
			r.PublishDate = a.PublishDateText()
			r.PageCount = a.PageCount()
		}

		if b, ok := gb[id]; ok && b != nil {
			r.Subject = b.Subject()
			r.Classification = b.Classification()
			r.Language = b.LanguageCode()
			r.AverageRating = b.AverageRating()
			r.RatingsCount = b.RatingsCount()
		}

		records = append(records, r)
	}
	return records
}

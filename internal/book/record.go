// Package book defines the records that flow through the bestseller pipeline:
// the seed entries from the bestseller feed and the merged rows that are
// persisted to the books table.
package book

import (
	"time"
)

// Seed is one entry of the bestseller list. Its fields always win when
// merging with enrichment data.
type Seed struct {
	ISBN        string `json:"primary_isbn13"`
	Title       string `json:"title"`
	Author      string `json:"author"`
	Rank        int    `json:"rank"`
	WeeksOnList int    `json:"weeks_on_list"`
	Contributor string `json:"contributor"`
	AmazonURL   string `json:"amazon_product_url"`
	ListName    string `json:"list_name"`
}

// Record is a unified row of the books table, keyed by ISBN-13.
// Pointer fields distinguish "no enrichment data" (nil) from an empty value.
type Record struct {
	ISBN        string
	Title       string
	Author      string
	Rank        int
	ListName    string
	WeeksOnList int
	Contributor string
	AmazonURL   string

	// Filled from Open Library.
	Publisher   *string
	Description *string
	PublishDate *string
	PageCount   *int

	// Filled from Google Books.
	Subject        *string
	Classification *string
	Language       *string
	AverageRating  *float64
	RatingsCount   *int

	UpdatedAt time.Time
}

// Columns lists the books table columns in the order Values returns them.
var Columns = []string{
	"isbn",
	"title",
	"author",
	"rank",
	"list_name",
	"weeks_on_list",
	"contributor",
	"amazon_url",
	"publisher",
	"description",
	"publish_date",
	"page_count",
	"subject",
	"classification",
	"language",
	"average_rating",
	"ratings_count",
	"updated_at",
}

// Values returns the record's column values in Columns order, with nil for
// missing enrichment fields. Empty seed strings are stored as NULL so that
// the quality gate sees them as missing.
func (r Record) Values() []any {
	return []any{
		nullString(r.ISBN),
		nullString(r.Title),
		nullString(r.Author),
		r.Rank,
		nullString(r.ListName),
		r.WeeksOnList,
		nullString(r.Contributor),
		nullString(r.AmazonURL),
		deref(r.Publisher),
		deref(r.Description),
		deref(r.PublishDate),
		deref(r.PageCount),
		deref(r.Subject),
		deref(r.Classification),
		deref(r.Language),
		deref(r.AverageRating),
		deref(r.RatingsCount),
		r.UpdatedAt.UTC(),
	}
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func deref[T any](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}

// Ptr returns a pointer to v. Handy for building records in tests and mergers.
func Ptr[T any](v T) *T {
	return &v
}

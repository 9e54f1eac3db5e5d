package book

import "errors"

var (
	// ErrInvalidISBN is returned when a record's ISBN is not a 13-digit ISBN.
	ErrInvalidISBN = errors.New("invalid ISBN")

	// ErrMissingTitle is returned when a record has no title.
	ErrMissingTitle = errors.New("missing title")
)

package book

import (
	"fmt"

	"github.com/lepinkainen/bookpipe/internal/isbn"
)

// Validate reports whether the record can be persisted as a complete row.
func (r Record) Validate() error {
	if !isbn.IsISBN13(r.ISBN) {
		return fmt.Errorf("%w: %q", ErrInvalidISBN, r.ISBN)
	}
	if r.Title == "" {
		return fmt.Errorf("%w for ISBN %s", ErrMissingTitle, r.ISBN)
	}
	return nil
}

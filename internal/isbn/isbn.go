// Package isbn holds the ISBN-13 helpers shared by the fetch and merge stages.
package isbn

import (
	"strings"
)

// Normalize strips hyphens and spaces from an ISBN.
func Normalize(isbn string) string {
	normalized := strings.ReplaceAll(isbn, "-", "")
	normalized = strings.ReplaceAll(normalized, " ", "")
	return strings.TrimSpace(normalized)
}

// IsISBN13 reports whether s is exactly 13 ASCII digits. The check digit is
// not verified: upstream feeds occasionally carry placeholder ISBNs that are
// still usable as keys.
func IsISBN13(s string) bool {
	if len(s) != 13 {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// Set is the ordered, de-duplicated list of ISBN-13s produced by one seed
// fetch. It is immutable once built.
type Set struct {
	values []string
	index  map[string]struct{}
}

// NewSet builds a Set from values, keeping the first occurrence of each ISBN.
func NewSet(values ...string) Set {
	s := Set{
		values: make([]string, 0, len(values)),
		index:  make(map[string]struct{}, len(values)),
	}
	for _, v := range values {
		if _, dup := s.index[v]; dup {
			continue
		}
		s.index[v] = struct{}{}
		s.values = append(s.values, v)
	}
	return s
}

// Values returns a copy of the ISBNs in seed order.
func (s Set) Values() []string {
	out := make([]string, len(s.values))
	copy(out, s.values)
	return out
}

// Len returns the number of ISBNs in the set.
func (s Set) Len() int {
	return len(s.values)
}

// Contains reports whether isbn is part of the set.
func (s Set) Contains(isbn string) bool {
	_, ok := s.index[isbn]
	return ok
}

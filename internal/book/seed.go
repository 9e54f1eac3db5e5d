package book

import (
	"github.com/lepinkainen/bookpipe/internal/isbn"
)

// SeedSet is the output of the seed fetch: the ordered ISBN set plus the seed
// payload per ISBN. It is produced once per run and never modified.
type SeedSet struct {
	ISBNs isbn.Set
	Books map[string]Seed
}

// NewSeedSet builds a SeedSet from seed entries in list order. Duplicate
// ISBNs keep their first entry.
func NewSeedSet(seeds []Seed) *SeedSet {
	order := make([]string, 0, len(seeds))
	books := make(map[string]Seed, len(seeds))
	for _, s := range seeds {
		if _, dup := books[s.ISBN]; dup {
			continue
		}
		books[s.ISBN] = s
		order = append(order, s.ISBN)
	}
	return &SeedSet{
		ISBNs: isbn.NewSet(order...),
		Books: books,
	}
}

// Len returns the number of seed books.
func (s *SeedSet) Len() int {
	if s == nil {
		return 0
	}
	return s.ISBNs.Len()
}

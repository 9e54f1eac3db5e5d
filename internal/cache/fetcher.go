package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/lepinkainen/bookpipe/internal/enrichment"
)

// Policy sets how long responses stay cached. A zero NegativeTTL disables
// caching of "not found" answers.
type Policy struct {
	TTL         time.Duration
	NegativeTTL time.Duration
}

// DefaultPolicy caches hits for 30 days and misses for 7.
var DefaultPolicy = Policy{TTL: DefaultCacheTTL, NegativeTTL: NegativeCacheTTL}

// Fetcher wraps an enrichment.Fetcher with the response cache. Only
// successful and "not found" answers are cached; errors always go back to
// the provider on the next run.
type Fetcher[T any] struct {
	inner  enrichment.Fetcher[T]
	db     *CacheDB
	table  string
	policy Policy
}

// Wrap returns inner backed by the cache table of source.
func Wrap[T any](db *CacheDB, source string, inner enrichment.Fetcher[T], policy Policy) *Fetcher[T] {
	return &Fetcher[T]{
		inner:  inner,
		db:     db,
		table:  TableFor(source),
		policy: policy,
	}
}

// Name returns the wrapped provider's name.
func (f *Fetcher[T]) Name() string {
	return f.inner.Name()
}

// Fetch answers from the cache when a live entry exists and falls back to
// the provider otherwise. Cache failures are logged and never fail a fetch.
func (f *Fetcher[T]) Fetch(ctx context.Context, isbn string) (T, error) {
	var zero T

	entry, hit, err := f.db.Get(f.table, isbn)
	if err != nil {
		slog.Warn("Cache lookup failed, fetching directly", "table", f.table, "key", isbn, "error", err)
	}
	if hit {
		if entry.NotFound {
			slog.Debug("Negative cache hit", "table", f.table, "key", isbn)
			return zero, enrichment.ErrNotFound
		}
		var result T
		if err := json.Unmarshal([]byte(entry.Data), &result); err == nil {
			slog.Debug("Cache hit", "table", f.table, "key", isbn)
			return result, nil
		}
		slog.Warn("Failed to unmarshal cached data, will refetch", "table", f.table, "key", isbn)
	}

	data, err := f.inner.Fetch(ctx, isbn)
	if errors.Is(err, enrichment.ErrNotFound) {
		if f.policy.NegativeTTL > 0 {
			f.store(isbn, "", true, f.policy.NegativeTTL)
		}
		return zero, err
	}
	if err != nil {
		return zero, err
	}

	jsonData, err := json.Marshal(data)
	if err != nil {
		slog.Warn("Failed to marshal data for caching", "table", f.table, "key", isbn, "error", err)
		return data, nil
	}
	f.store(isbn, string(jsonData), false, f.policy.TTL)
	return data, nil
}

func (f *Fetcher[T]) store(isbn, data string, notFound bool, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	if err := f.db.Set(f.table, isbn, data, notFound, ttl); err != nil {
		slog.Warn("Failed to cache data", "table", f.table, "key", isbn, "error", err)
	}
}

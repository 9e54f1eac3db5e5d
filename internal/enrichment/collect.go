// Package enrichment runs the per-ISBN enrichment stages. Each provider
// implements Fetcher; Collect drives it serially over the seed ISBNs with a
// mandatory delay between requests and best-effort error handling.
package enrichment

import (
	"context"
	"errors"
	"log/slog"
	"time"

	pipeerrors "github.com/lepinkainen/bookpipe/internal/errors"
	"github.com/lepinkainen/bookpipe/internal/isbn"
	"github.com/lepinkainen/bookpipe/internal/ratelimit"
)

// Fetcher retrieves one provider's payload for a single ISBN.
type Fetcher[T any] interface {
	// Name returns the human-readable name of the provider (e.g., "OpenLibrary").
	Name() string

	// Fetch returns the parsed payload for isbn. It returns ErrNotFound when
	// the provider has no data, a RateLimitError on HTTP 429, and any other
	// error for network or decoding failures.
	Fetch(ctx context.Context, isbn string) (T, error)
}

// Result maps ISBN to the provider payload. ISBNs without a successful fetch
// are absent.
type Result[T any] map[string]T

// Options controls pacing and rate-limit handling for Collect.
type Options struct {
	// Limiter enforces the minimum delay between consecutive requests.
	// Nil means no pacing.
	Limiter *ratelimit.Limiter

	// RateLimitRetries is how many extra attempts an ISBN gets after HTTP 429.
	RateLimitRetries int

	// MaxBackoff caps the wait after HTTP 429. Zero means no cap.
	MaxBackoff time.Duration
}

// Stats summarizes one Collect call for logging.
type Stats struct {
	Requested   int
	Fetched     int
	NotFound    int
	Failed      int
	RateLimited int
}

// Collect fetches every ISBN in isbns, one at a time. Failures for a single
// ISBN are logged and skipped; the stage itself only fails when ctx is
// cancelled, in which case all partial data is discarded.
func Collect[T any](ctx context.Context, f Fetcher[T], isbns isbn.Set, opts Options) (Result[T], Stats, error) {
	result := make(Result[T], isbns.Len())
	stats := Stats{Requested: isbns.Len()}

	if isbns.Len() == 0 {
		slog.Info("No ISBNs to enrich, skipping", "source", f.Name())
		return result, stats, nil
	}

	slog.Info("Starting enrichment", "source", f.Name(), "isbns", isbns.Len())

	for _, id := range isbns.Values() {
		payload, err := fetchWithRetry(ctx, f, id, opts, &stats)
		if ctxErr := ctx.Err(); ctxErr != nil {
			slog.Warn("Enrichment cancelled, discarding partial results", "source", f.Name(), "fetched", len(result))
			return nil, stats, ctxErr
		}

		switch {
		case err == nil:
			result[id] = payload
			stats.Fetched++
		case errors.Is(err, ErrNotFound):
			slog.Debug("No enrichment data", "source", f.Name(), "isbn", id)
			stats.NotFound++
		default:
			slog.Warn("Enrichment failed, skipping ISBN", "source", f.Name(), "isbn", id, "error", err)
			stats.Failed++
		}
	}

	slog.Info("Enrichment finished",
		"source", f.Name(),
		"requested", stats.Requested,
		"fetched", stats.Fetched,
		"not_found", stats.NotFound,
		"failed", stats.Failed,
		"rate_limited", stats.RateLimited,
	)

	return result, stats, nil
}

func fetchWithRetry[T any](ctx context.Context, f Fetcher[T], id string, opts Options, stats *Stats) (T, error) {
	var zero T

	for attempt := 0; ; attempt++ {
		if opts.Limiter != nil {
			if err := opts.Limiter.Wait(ctx); err != nil {
				return zero, err
			}
		}

		payload, err := f.Fetch(ctx, id)
		if err == nil {
			return payload, nil
		}

		rateErr, limited := pipeerrors.AsRateLimitError(err)
		if !limited {
			return zero, err
		}
		stats.RateLimited++
		if attempt >= opts.RateLimitRetries {
			return zero, err
		}

		wait := backoff(rateErr.RetryAfter, attempt, opts)
		slog.Debug("Rate limited, backing off", "source", f.Name(), "isbn", id, "wait", wait, "attempt", attempt+1)
		if err := sleep(ctx, wait); err != nil {
			return zero, err
		}
	}
}

// backoff picks the wait after a 429: the server's hint when given, otherwise
// an exponential multiple of the limiter interval, capped by MaxBackoff.
func backoff(retryAfter time.Duration, attempt int, opts Options) time.Duration {
	wait := retryAfter
	if wait <= 0 {
		base := time.Second
		if opts.Limiter != nil && opts.Limiter.Interval() > 0 {
			base = opts.Limiter.Interval()
		}
		wait = base * time.Duration(2<<attempt)
	}
	if opts.MaxBackoff > 0 && wait > opts.MaxBackoff {
		wait = opts.MaxBackoff
	}
	return wait
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

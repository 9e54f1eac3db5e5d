package enrichment

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	pipeerrors "github.com/lepinkainen/bookpipe/internal/errors"
)

// ErrNotFound is returned by a Fetcher when the provider answered but has no
// data for the ISBN. The collector skips such ISBNs without a warning.
var ErrNotFound = errors.New("no data for ISBN")

// CheckResponse turns a non-2xx provider response into an error. HTTP 429
// becomes a RateLimitError carrying the Retry-After hint when present. The
// body of a failed response is drained so the connection can be reused.
func CheckResponse(resp *http.Response, provider string) error {
	if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
		return nil
	}
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode == http.StatusTooManyRequests {
		return pipeerrors.NewRateLimitErrorWithRetry(
			fmt.Sprintf("%s rate limit reached", provider),
			parseRetryAfter(resp.Header.Get("Retry-After"), time.Now()),
		)
	}
	return fmt.Errorf("%s returned status %d", provider, resp.StatusCode)
}

// parseRetryAfter accepts both forms of the header: delay-seconds and an
// HTTP date. Unparseable or past values yield zero.
func parseRetryAfter(value string, now time.Time) time.Duration {
	if value == "" {
		return 0
	}
	if secs, err := strconv.Atoi(value); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(value); err == nil {
		if d := at.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}

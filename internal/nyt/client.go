// Package nyt fetches the seed list of the pipeline: the current New York
// Times bestseller list.
package nyt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/lepinkainen/bookpipe/internal/book"
	"github.com/lepinkainen/bookpipe/internal/isbn"
)

// ErrUnexpectedStatus is returned for any non-2xx response from the list API.
var ErrUnexpectedStatus = errors.New("NYT API request failed")

// ErrMissingAPIKey is returned when the client is used without an API key.
var ErrMissingAPIKey = errors.New("NYT API key not configured")

// Client fetches bestseller lists.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	list       string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client used for requests.
func WithHTTPClient(c *http.Client) Option {
	return func(client *Client) {
		client.httpClient = c
	}
}

// NewClient creates a client for the given list (e.g. "hardcover-fiction").
func NewClient(baseURL, apiKey, list string, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		baseURL:    baseURL,
		apiKey:     apiKey,
		list:       list,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// listResponse matches the lists/current API response structure.
type listResponse struct {
	Status     string `json:"status"`
	NumResults int    `json:"num_results"`
	Results    struct {
		ListName        string     `json:"list_name"`
		BestsellersDate string     `json:"bestsellers_date"`
		Books           []listBook `json:"books"`
	} `json:"results"`
}

type listBook struct {
	Rank             int    `json:"rank"`
	PrimaryISBN13    string `json:"primary_isbn13"`
	Title            string `json:"title"`
	Author           string `json:"author"`
	Contributor      string `json:"contributor"`
	WeeksOnList      int    `json:"weeks_on_list"`
	AmazonProductURL string `json:"amazon_product_url"`
}

func (c *Client) listURL() string {
	return fmt.Sprintf("%s/svc/books/v3/lists/current/%s.json?api-key=%s",
		c.baseURL, url.PathEscape(c.list), url.QueryEscape(c.apiKey))
}

// FetchBestsellers performs one GET against the list API and returns the
// seed set. Entries without a usable ISBN-13 are dropped and logged. Any
// non-2xx status or undecodable body is returned as an error: the seed list
// is all-or-nothing.
func (c *Client) FetchBestsellers(ctx context.Context) (*book.SeedSet, error) {
	if c.apiKey == "" {
		return nil, ErrMissingAPIKey
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.listURL(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	slog.Info("Fetching bestseller list", "list", c.list)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		// The URL carries the API key; report only the list name.
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			err = urlErr.Err
		}
		return nil, fmt.Errorf("NYT API request for list %s: %w", c.list, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("%w: status %d", ErrUnexpectedStatus, resp.StatusCode)
	}

	var result listResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding NYT response: %w", err)
	}

	seeds := make([]book.Seed, 0, len(result.Results.Books))
	for _, b := range result.Results.Books {
		id := isbn.Normalize(b.PrimaryISBN13)
		if !isbn.IsISBN13(id) {
			slog.Warn("Dropping bestseller entry without ISBN-13", "title", b.Title, "rank", b.Rank, "isbn", b.PrimaryISBN13)
			continue
		}
		seeds = append(seeds, book.Seed{
			ISBN:        id,
			Title:       b.Title,
			Author:      b.Author,
			Rank:        b.Rank,
			WeeksOnList: b.WeeksOnList,
			Contributor: b.Contributor,
			AmazonURL:   b.AmazonProductURL,
			ListName:    result.Results.ListName,
		})
	}

	set := book.NewSeedSet(seeds)
	if dropped := len(seeds) - set.Len(); dropped > 0 {
		slog.Warn("Dropped duplicate ISBNs from bestseller list", "count", dropped)
	}
	slog.Info("Fetched bestseller list", "list", result.Results.ListName, "books", set.Len(), "date", result.Results.BestsellersDate)

	return set, nil
}

// Package openlibrary fetches edition metadata from the Open Library books API.
package openlibrary

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/lepinkainen/bookpipe/internal/enrichment"
)

// DefaultBaseURL is the public Open Library endpoint.
const DefaultBaseURL = "https://openlibrary.org"

// Client implements enrichment.Fetcher for Open Library.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// Compile-time check that Client implements enrichment.Fetcher.
var _ enrichment.Fetcher[*Book] = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client used for requests.
func WithHTTPClient(c *http.Client) Option {
	return func(client *Client) {
		client.httpClient = c
	}
}

// NewClient creates a client. An empty baseURL uses DefaultBaseURL.
func NewClient(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		baseURL:    strings.TrimRight(baseURL, "/"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Name returns the human-readable name of this provider.
func (c *Client) Name() string {
	return "OpenLibrary"
}

// Book matches one entry of the jscmd=data response.
type Book struct {
	Title       string `json:"title"`
	Description any    `json:"description"`
	Publishers  []struct {
		Name string `json:"name"`
	} `json:"publishers"`
	NumberOfPages int    `json:"number_of_pages"`
	PublishDate   string `json:"publish_date"`
}

// Publisher returns the first listed publisher, or nil.
func (b *Book) Publisher() *string {
	if b == nil {
		return nil
	}
	for _, p := range b.Publishers {
		if name := strings.TrimSpace(p.Name); name != "" {
			return &name
		}
	}
	return nil
}

// DescriptionText returns the description, or nil when absent.
func (b *Book) DescriptionText() *string {
	if b == nil {
		return nil
	}
	if desc := extractDescription(b.Description); desc != "" {
		return &desc
	}
	return nil
}

// PublishDateText returns the publish date as given by the API, or nil.
func (b *Book) PublishDateText() *string {
	if b == nil || b.PublishDate == "" {
		return nil
	}
	date := b.PublishDate
	return &date
}

// PageCount returns the number of pages, or nil when unknown.
func (b *Book) PageCount() *int {
	if b == nil || b.NumberOfPages <= 0 {
		return nil
	}
	n := b.NumberOfPages
	return &n
}

func (c *Client) bookURL(isbn string) string {
	q := url.Values{}
	q.Set("bibkeys", "ISBN:"+isbn)
	q.Set("format", "json")
	q.Set("jscmd", "data")
	return c.baseURL + "/api/books?" + q.Encode()
}

// Fetch returns the Open Library entry for isbn. A response without the
// ISBN:<isbn> key yields enrichment.ErrNotFound.
func (c *Client) Fetch(ctx context.Context, isbn string) (*Book, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.bookURL(isbn), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("API request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if err := enrichment.CheckResponse(resp, c.Name()); err != nil {
		return nil, err
	}

	var result map[string]*Book
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	b, ok := result["ISBN:"+isbn]
	if !ok || b == nil {
		return nil, enrichment.ErrNotFound
	}
	return b, nil
}

// extractDescription handles description being either a string or an
// object with a "value" key.
func extractDescription(desc any) string {
	switch v := desc.(type) {
	case string:
		return strings.TrimSpace(v)
	case map[string]any:
		if val, ok := v["value"].(string); ok {
			return strings.TrimSpace(val)
		}
	}
	return ""
}

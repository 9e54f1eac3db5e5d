// Package googlebooks fetches volume metadata from the Google Books API.
package googlebooks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/lepinkainen/bookpipe/internal/enrichment"
)

// DefaultBaseURL is the public Google APIs endpoint.
const DefaultBaseURL = "https://www.googleapis.com"

// Client implements enrichment.Fetcher for Google Books.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

// Compile-time check that Client implements enrichment.Fetcher.
var _ enrichment.Fetcher[*Response] = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client used for requests.
func WithHTTPClient(c *http.Client) Option {
	return func(client *Client) {
		client.httpClient = c
	}
}

// NewClient creates a client. The API key is optional; Google Books serves
// anonymous requests at a lower quota.
func NewClient(baseURL, apiKey string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Name returns the human-readable name of this provider.
func (c *Client) Name() string {
	return "GoogleBooks"
}

// Response matches the volumes search response structure.
type Response struct {
	TotalItems int      `json:"totalItems"`
	Items      []Volume `json:"items"`
}

// Volume is one search hit.
type Volume struct {
	ID         string     `json:"id"`
	VolumeInfo VolumeInfo `json:"volumeInfo"`
}

// VolumeInfo holds the bibliographic fields the pipeline uses.
type VolumeInfo struct {
	Title         string   `json:"title"`
	Categories    []string `json:"categories"`
	MainCategory  string   `json:"mainCategory"`
	Language      string   `json:"language"`
	AverageRating *float64 `json:"averageRating"`
	RatingsCount  *int     `json:"ratingsCount"`
}

// first returns the best match, which Google lists first.
func (r *Response) first() *VolumeInfo {
	if r == nil || len(r.Items) == 0 {
		return nil
	}
	return &r.Items[0].VolumeInfo
}

// Subject joins the categories of the best match, or nil when there are none.
func (r *Response) Subject() *string {
	vol := r.first()
	if vol == nil {
		return nil
	}
	cats := make([]string, 0, len(vol.Categories))
	for _, c := range vol.Categories {
		if c = strings.TrimSpace(c); c != "" {
			cats = append(cats, c)
		}
	}
	if len(cats) == 0 {
		return nil
	}
	subject := strings.Join(cats, ", ")
	return &subject
}

// Classification returns mainCategory, falling back to the top level of
// the first category path ("Fiction / Thrillers" yields "Fiction").
func (r *Response) Classification() *string {
	vol := r.first()
	if vol == nil {
		return nil
	}
	if main := strings.TrimSpace(vol.MainCategory); main != "" {
		return &main
	}
	if len(vol.Categories) == 0 {
		return nil
	}
	top, _, _ := strings.Cut(vol.Categories[0], "/")
	if top = strings.TrimSpace(top); top == "" {
		return nil
	}
	return &top
}

// LanguageCode returns the ISO language code of the best match, or nil.
func (r *Response) LanguageCode() *string {
	vol := r.first()
	if vol == nil || vol.Language == "" {
		return nil
	}
	lang := vol.Language
	return &lang
}

// AverageRating returns the average user rating, or nil when unrated.
func (r *Response) AverageRating() *float64 {
	vol := r.first()
	if vol == nil || vol.AverageRating == nil {
		return nil
	}
	v := *vol.AverageRating
	return &v
}

// RatingsCount returns the number of ratings, or nil when unrated.
func (r *Response) RatingsCount() *int {
	vol := r.first()
	if vol == nil || vol.RatingsCount == nil {
		return nil
	}
	v := *vol.RatingsCount
	return &v
}

func (c *Client) volumesURL(isbn string) string {
	q := url.Values{}
	q.Set("q", "isbn:"+isbn)
	if c.apiKey != "" {
		q.Set("key", c.apiKey)
	}
	return c.baseURL + "/books/v1/volumes?" + q.Encode()
}

// Fetch returns the volume list for isbn. An empty result yields
// enrichment.ErrNotFound.
func (c *Client) Fetch(ctx context.Context, isbn string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.volumesURL(isbn), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// The URL carries the API key.
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			err = urlErr.Err
		}
		return nil, fmt.Errorf("API request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if err := enrichment.CheckResponse(resp, c.Name()); err != nil {
		return nil, err
	}

	var result Response
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	if result.TotalItems == 0 || len(result.Items) == 0 {
		return nil, enrichment.ErrNotFound
	}
	return &result, nil
}


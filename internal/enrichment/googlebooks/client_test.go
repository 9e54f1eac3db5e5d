package googlebooks

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/lepinkainen/bookpipe/internal/enrichment"
	pipeerrors "github.com/lepinkainen/bookpipe/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleResponse = `{
  "kind": "books#volumes",
  "totalItems": 1,
  "items": [{
    "id": "abc",
    "volumeInfo": {
      "title": "Foo",
      "categories": ["Fiction / Thrillers", "Mystery"],
      "language": "en",
      "averageRating": 4.5,
      "ratingsCount": 12
    }
  }]
}`

func TestClientFetch(t *testing.T) {
	var gotQuery map[string][]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/books/v1/volumes", r.URL.Path)
		gotQuery = r.URL.Query()
		_, _ = w.Write([]byte(sampleResponse))
	}))
	defer server.Close()

	resp, err := NewClient(server.URL, "secret").Fetch(context.Background(), "9780000000001")
	require.NoError(t, err)

	assert.Equal(t, []string{"isbn:9780000000001"}, gotQuery["q"])
	assert.Equal(t, []string{"secret"}, gotQuery["key"])

	require.NotNil(t, resp.Subject())
	assert.Equal(t, "Fiction / Thrillers, Mystery", *resp.Subject())
	require.NotNil(t, resp.Classification())
	assert.Equal(t, "Fiction", *resp.Classification())
	require.NotNil(t, resp.LanguageCode())
	assert.Equal(t, "en", *resp.LanguageCode())
	require.NotNil(t, resp.AverageRating())
	assert.InDelta(t, 4.5, *resp.AverageRating(), 1e-9)
	require.NotNil(t, resp.RatingsCount())
	assert.Equal(t, 12, *resp.RatingsCount())
}

func TestClientFetchWithoutKey(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, hasKey := r.URL.Query()["key"]
		assert.False(t, hasKey)
		_, _ = w.Write([]byte(sampleResponse))
	}))
	defer server.Close()

	_, err := NewClient(server.URL, "").Fetch(context.Background(), "9780000000001")
	require.NoError(t, err)
}

func TestClientFetchNoItems(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"kind": "books#volumes", "totalItems": 0}`))
	}))
	defer server.Close()

	_, err := NewClient(server.URL, "").Fetch(context.Background(), "9780000000001")
	assert.ErrorIs(t, err, enrichment.ErrNotFound)
}

func TestClientFetchRateLimitedWithoutHeader(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	_, err := NewClient(server.URL, "").Fetch(context.Background(), "9780000000001")
	rateErr, ok := pipeerrors.AsRateLimitError(err)
	require.True(t, ok)
	assert.Equal(t, time.Duration(0), rateErr.RetryAfter)
}

func TestClientFetchErrorHidesKey(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	_, err := NewClient(url, "supersecret").Fetch(context.Background(), "9780000000001")
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "supersecret")
}

func TestClassificationPrefersMainCategory(t *testing.T) {
	resp := &Response{Items: []Volume{{VolumeInfo: VolumeInfo{
		MainCategory: "Juvenile Fiction",
		Categories:   []string{"Fiction / General"},
	}}}}
	require.NotNil(t, resp.Classification())
	assert.Equal(t, "Juvenile Fiction", *resp.Classification())
}

func TestAccessorsWithoutData(t *testing.T) {
	var nilResp *Response
	assert.Nil(t, nilResp.Subject())
	assert.Nil(t, nilResp.Classification())
	assert.Nil(t, nilResp.LanguageCode())
	assert.Nil(t, nilResp.AverageRating())
	assert.Nil(t, nilResp.RatingsCount())

	resp := &Response{Items: []Volume{{VolumeInfo: VolumeInfo{Categories: []string{"  "}}}}}
	assert.Nil(t, resp.Subject())
	assert.Nil(t, resp.Classification())
	assert.Nil(t, resp.AverageRating())
}

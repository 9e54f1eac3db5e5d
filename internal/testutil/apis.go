package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/lepinkainen/bookpipe/internal/book"
)

// BookAPIs runs fake NYT, Open Library and Google Books servers. Fields may
// be changed between requests; handlers read them under a lock.
type BookAPIs struct {
	NYT         *httptest.Server
	OpenLibrary *httptest.Server
	GoogleBooks *httptest.Server

	mu sync.Mutex
	// NYTStatus overrides the status of the list endpoint when non-zero.
	NYTStatus int
	// ListName and Seeds make up the bestseller list response.
	ListName string
	Seeds    []book.Seed
	// OpenLibraryBooks maps ISBN to the JSON object of a jscmd=data entry.
	OpenLibraryBooks map[string]string
	// GoogleVolumes maps ISBN to the JSON object of a volumeInfo.
	GoogleVolumes map[string]string

	openLibraryCalls atomic.Int32
	googleBooksCalls atomic.Int32
	lastNYTKey       atomic.Value
}

// NewBookAPIs starts the fake servers and closes them when the test ends.
func NewBookAPIs(t *testing.T) *BookAPIs {
	t.Helper()

	a := &BookAPIs{
		ListName:         "Hardcover Fiction",
		OpenLibraryBooks: map[string]string{},
		GoogleVolumes:    map[string]string{},
	}
	a.NYT = httptest.NewServer(http.HandlerFunc(a.serveNYT))
	a.OpenLibrary = httptest.NewServer(http.HandlerFunc(a.serveOpenLibrary))
	a.GoogleBooks = httptest.NewServer(http.HandlerFunc(a.serveGoogleBooks))

	t.Cleanup(func() {
		a.NYT.Close()
		a.OpenLibrary.Close()
		a.GoogleBooks.Close()
	})
	return a
}

// Configure points viper at the fake servers and sets an NYT API key.
func (a *BookAPIs) Configure(t *testing.T) {
	t.Helper()

	SetViperValue(t, "nyt.api_key", "test-nyt-key")
	SetViperValue(t, "nyt.base_url", a.NYT.URL)
	SetViperValue(t, "openlibrary.base_url", a.OpenLibrary.URL)
	SetViperValue(t, "googlebooks.base_url", a.GoogleBooks.URL)
}

// SetNYTStatus makes the list endpoint answer with status.
func (a *BookAPIs) SetNYTStatus(status int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.NYTStatus = status
}

// OpenLibraryCalls returns the number of Open Library requests served.
func (a *BookAPIs) OpenLibraryCalls() int {
	return int(a.openLibraryCalls.Load())
}

// GoogleBooksCalls returns the number of Google Books requests served.
func (a *BookAPIs) GoogleBooksCalls() int {
	return int(a.googleBooksCalls.Load())
}

// LastNYTKey returns the api-key query parameter of the last list request.
func (a *BookAPIs) LastNYTKey() string {
	v, _ := a.lastNYTKey.Load().(string)
	return v
}

func (a *BookAPIs) serveNYT(w http.ResponseWriter, r *http.Request) {
	a.lastNYTKey.Store(r.URL.Query().Get("api-key"))

	a.mu.Lock()
	status := a.NYTStatus
	type entry struct {
		Rank          int    `json:"rank"`
		PrimaryISBN13 string `json:"primary_isbn13"`
		Title         string `json:"title"`
		Author        string `json:"author"`
		WeeksOnList   int    `json:"weeks_on_list"`
	}
	books := make([]entry, 0, len(a.Seeds))
	for _, s := range a.Seeds {
		books = append(books, entry{
			Rank:          s.Rank,
			PrimaryISBN13: s.ISBN,
			Title:         s.Title,
			Author:        s.Author,
			WeeksOnList:   s.WeeksOnList,
		})
	}
	listName := a.ListName
	a.mu.Unlock()

	if status != 0 && status != http.StatusOK {
		w.WriteHeader(status)
		return
	}

	resp := map[string]any{
		"status":      "OK",
		"num_results": len(books),
		"results": map[string]any{
			"list_name": listName,
			"books":     books,
		},
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func (a *BookAPIs) serveOpenLibrary(w http.ResponseWriter, r *http.Request) {
	a.openLibraryCalls.Add(1)

	key := r.URL.Query().Get("bibkeys")
	isbn := strings.TrimPrefix(key, "ISBN:")

	a.mu.Lock()
	entry, ok := a.OpenLibraryBooks[isbn]
	a.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if !ok {
		_, _ = w.Write([]byte(`{}`))
		return
	}
	_, _ = w.Write([]byte(`{"` + key + `": ` + entry + `}`))
}

func (a *BookAPIs) serveGoogleBooks(w http.ResponseWriter, r *http.Request) {
	a.googleBooksCalls.Add(1)

	isbn := strings.TrimPrefix(r.URL.Query().Get("q"), "isbn:")

	a.mu.Lock()
	volume, ok := a.GoogleVolumes[isbn]
	a.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if !ok {
		_, _ = w.Write([]byte(`{"kind": "books#volumes", "totalItems": 0}`))
		return
	}
	_, _ = w.Write([]byte(`{"kind": "books#volumes", "totalItems": 1, "items": [{"volumeInfo": ` + volume + `}]}`))
}

package scraper

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScraperConfig(t *testing.T) {
	config := ScraperConfig{
		BaseURL:        "https://example.com",
		MaxDepth:       5,
		RateLimit:      1.0,
		IgnorePatterns: []string{"/ignore/", "private"},
		Timeout:        10 * time.Second,
	}

	s, err := NewWithConfig(config)
	require.NoError(t, err)
	assert.Equal(t, config.BaseURL, s.config.BaseURL)
	assert.Equal(t, config.MaxDepth, s.config.MaxDepth)
	assert.Equal(t, "example.com", s.baseHost)

	_, err = NewWithConfig(ScraperConfig{BaseURL: "not a url"})
	assert.Error(t, err)
}

func TestShouldProcessURL(t *testing.T) {
	config := ScraperConfig{
		BaseURL:           "https://example.com",
		IgnorePatterns:    []string{"/ignore/", "private"},
		AllowedExtensions: []string{".html", "/", ""},
	}

	s, err := NewWithConfig(config)
	require.NoError(t, err)

	tests := []struct {
		url      string
		expected bool
	}{
		{"https://example.com/docs/", true},
		{"https://example.com/page.html", true},
		{"https://example.com/docs/intro", true},
		{"https://example.com/ignore/page.html", false},
		{"https://example.com/private.html", false},
		{"https://other-domain.com/page.html", false},
		{"https://example.com/file.pdf", false},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			result := s.shouldProcessURL(tt.url)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestResolveLink(t *testing.T) {
	link, ok := resolveLink("http://host/docs/a.html", "b.html#section")
	require.True(t, ok)
	assert.Equal(t, "http://host/docs/b.html", link)

	_, ok = resolveLink("http://host/", "mailto:someone@host")
	assert.False(t, ok)
}

func newSite(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	page := func(title, body string) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/html")
			fmt.Fprintf(w, "<html><head><title>%s</title></head><body><main>%s</main></body></html>", title, body)
		}
	}
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		page("Test Page", `<h1>Test Content</h1>
			<p>This is a test paragraph.</p>
			<a href="/page2.html">Next</a>
			<a href="/ignore/secret.html">Hidden</a>
			<a href="/missing.html">Broken</a>
			<a href="https://elsewhere.example/">Away</a>`)(w, r)
	})
	mux.HandleFunc("/page2.html", page("Second", `<p>Second page.</p><a href="/page3.html">Deeper</a><a href="/">Home</a>`))
	mux.HandleFunc("/page3.html", page("Third", `<p>Third page.</p>`))
	mux.HandleFunc("/ignore/secret.html", page("Secret", `<p>Secret page.</p>`))

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestScrapeWithMockServer(t *testing.T) {
	server := newSite(t)

	var mu sync.Mutex
	var seen []string
	s, err := NewWithConfig(ScraperConfig{
		BaseURL:        server.URL,
		MaxDepth:       1,
		RateLimit:      100,
		IgnorePatterns: []string{"/ignore/"},
		OnProgress: func(url string) {
			mu.Lock()
			seen = append(seen, url)
			mu.Unlock()
		},
	})
	require.NoError(t, err)

	docs, err := s.Scrape(context.Background(), server.URL+"/")
	require.NoError(t, err)
	require.Len(t, docs, 2)

	doc := docs[0]
	assert.Equal(t, server.URL+"/", doc.Source)
	assert.Equal(t, "Test Page", doc.Title)
	assert.Contains(t, doc.Content, "Test Content")
	assert.Contains(t, doc.Content, "This is a test paragraph")
	assert.NotEmpty(t, doc.ID)
	assert.Equal(t, 0, doc.Metadata["depth"])

	assert.Equal(t, "Second", docs[1].Title)
	assert.Equal(t, 1, docs[1].Metadata["depth"])

	sort.Strings(seen)
	assert.Equal(t, []string{server.URL + "/", server.URL + "/missing.html", server.URL + "/page2.html"}, seen)
}

func TestScrapeStartPageOnly(t *testing.T) {
	server := newSite(t)

	s, err := NewWithConfig(ScraperConfig{BaseURL: server.URL, MaxDepth: 0, RateLimit: 100})
	require.NoError(t, err)

	docs, err := s.Scrape(context.Background(), server.URL+"/")
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, server.URL+"/", docs[0].Source)
}

func TestScrapeRootFailure(t *testing.T) {
	server := newSite(t)

	s, err := NewWithConfig(ScraperConfig{BaseURL: server.URL, RateLimit: 100})
	require.NoError(t, err)

	_, err = s.Scrape(context.Background(), server.URL+"/missing.html")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func TestScrapeCanceled(t *testing.T) {
	server := newSite(t)

	s, err := NewWithConfig(ScraperConfig{BaseURL: server.URL, RateLimit: 100})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = s.Scrape(ctx, server.URL+"/")
	assert.ErrorIs(t, err, context.Canceled)
}

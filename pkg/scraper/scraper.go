package scraper

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/xhad/docqa/internal/models"
	"github.com/xhad/docqa/pkg/loader"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

type ScraperConfig struct {
	BaseURL           string
	MaxDepth          int // links followed from the start page; 0 fetches only the start page
	RateLimit         float64 // requests per second
	IgnorePatterns    []string
	AllowedExtensions []string
	Timeout           time.Duration
	OnProgress        func(url string)
	Logger            *zap.Logger
}

type Scraper struct {
	config   ScraperConfig
	client   *http.Client
	limiter  *rate.Limiter
	baseHost string
	log      *zap.SugaredLogger

	mu      sync.Mutex
	visited map[string]bool
}

func NewWithConfig(config ScraperConfig) (*Scraper, error) {
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.RateLimit == 0 {
		config.RateLimit = 2 // 2 requests per second by default
	}
	if len(config.AllowedExtensions) == 0 {
		config.AllowedExtensions = []string{".html", ".htm", "/", ""}
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}

	parsedURL, err := url.Parse(config.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	if parsedURL.Host == "" {
		return nil, fmt.Errorf("invalid base URL %q: missing host", config.BaseURL)
	}

	return &Scraper{
		config: config,
		client: &http.Client{
			Timeout: config.Timeout,
		},
		visited:  make(map[string]bool),
		limiter:  rate.NewLimiter(rate.Limit(config.RateLimit), 1),
		baseHost: parsedURL.Host,
		log:      config.Logger.Sugar(),
	}, nil
}

func (s *Scraper) shouldProcessURL(urlStr string) bool {
	parsedURL, err := url.Parse(urlStr)
	if err != nil {
		return false
	}

	if parsedURL.Host != s.baseHost {
		return false
	}

	path := strings.ToLower(parsedURL.Path)
	validExt := false
	for _, allowedExt := range s.config.AllowedExtensions {
		if allowedExt == "" {
			// extensionless paths such as /docs/intro
			if !strings.Contains(path[strings.LastIndex(path, "/")+1:], ".") {
				validExt = true
				break
			}
			continue
		}
		if strings.HasSuffix(path, allowedExt) {
			validExt = true
			break
		}
	}
	if !validExt {
		return false
	}

	for _, pattern := range s.config.IgnorePatterns {
		if strings.Contains(urlStr, pattern) {
			return false
		}
	}

	return true
}

// markVisited reports whether urlStr was unseen, recording it either way.
func (s *Scraper) markVisited(urlStr string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.visited[urlStr] {
		return false
	}
	s.visited[urlStr] = true
	return true
}

// Scrape crawls from rawURL and returns one document per page. Failures on
// linked pages are logged and skipped; a failure on rawURL itself is returned.
func (s *Scraper) Scrape(ctx context.Context, rawURL string) ([]models.Document, error) {
	var documents []models.Document
	err := s.scrapeRecursive(ctx, rawURL, 0, &documents)
	return documents, err
}

func (s *Scraper) scrapeRecursive(ctx context.Context, urlStr string, depth int, documents *[]models.Document) error {
	if depth > s.config.MaxDepth {
		return nil
	}
	if !s.shouldProcessURL(urlStr) || !s.markVisited(urlStr) {
		return nil
	}

	if s.config.OnProgress != nil {
		s.config.OnProgress(urlStr)
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("received status code %d for URL: %s", resp.StatusCode, urlStr)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return err
	}

	// Collect links before content extraction strips nodes.
	var links []string
	doc.Find("a[href]").Each(func(_ int, selection *goquery.Selection) {
		href, _ := selection.Attr("href")
		if link, ok := resolveLink(urlStr, href); ok {
			links = append(links, link)
		}
	})

	title := strings.TrimSpace(doc.Find("title").First().Text())
	content := loader.ExtractMainContent(doc)
	if content != "" {
		*documents = append(*documents, models.Document{
			ID:      loader.DocumentID(urlStr),
			Source:  urlStr,
			Title:   title,
			Content: content,
			Metadata: map[string]interface{}{
				"url":          urlStr,
				"depth":        depth,
				"content_type": resp.Header.Get("Content-Type"),
				"fetched_at":   time.Now().UTC().Format(time.RFC3339),
			},
		})
	}

	for _, link := range links {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.scrapeRecursive(ctx, link, depth+1, documents); err != nil {
			s.log.Warnw("failed to scrape page", "url", link, "error", err)
		}
	}

	return nil
}

func resolveLink(base, href string) (string, bool) {
	ref, err := url.Parse(href)
	if err != nil {
		return "", false
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return "", false
	}
	abs := baseURL.ResolveReference(ref)
	abs.Fragment = ""
	if abs.Scheme != "http" && abs.Scheme != "https" {
		return "", false
	}
	return abs.String(), true
}

package scraper

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/sdvlabs/campusbot/internal/models"
)

// DefaultIgnorePatterns lists the school site sections skipped during a
// crawl.
var DefaultIgnorePatterns = []string{
	"/offres-emploi/", "/formation/", "/evenement/", "/conference/",
	"/campus/", "/author/", "/agenda-", "/actualites/", "/salon-jpo/",
	"/non-classe/", "equipe-", "cookies", "mentions-legales", "privacy",
	"documentation", "recrutement", "certifications", "/wp-content/",
}

var binaryExtensions = []string{".pdf", ".jpg", ".jpeg", ".png", ".gif", ".zip", ".mp4"}

type ScraperConfig struct {
	BaseURL        string
	MaxDepth       int
	MaxPages       int
	RateLimit      float64 // requests per second
	IgnorePatterns []string
	Timeout        time.Duration
	OnProgress     func(url string)
}

type Scraper struct {
	config   ScraperConfig
	client   *http.Client
	visited  map[string]bool
	limiter  *rate.Limiter
	baseHost string
}

func NewWithConfig(config ScraperConfig) (*Scraper, error) {
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.MaxDepth == 0 {
		config.MaxDepth = 3
	}
	if config.MaxPages == 0 {
		config.MaxPages = 100
	}
	if config.RateLimit == 0 {
		config.RateLimit = 2 // 2 requests per second by default
	}
	if config.IgnorePatterns == nil {
		config.IgnorePatterns = DefaultIgnorePatterns
	}

	parsedURL, err := url.Parse(config.BaseURL)
	if err != nil {
		return nil, err
	}
	if parsedURL.Host == "" {
		return nil, fmt.Errorf("base URL %q has no host", config.BaseURL)
	}

	return &Scraper{
		config: config,
		client: &http.Client{
			Timeout: config.Timeout,
		},
		visited:  make(map[string]bool),
		limiter:  rate.NewLimiter(rate.Limit(config.RateLimit), 1),
		baseHost: parsedURL.Host,
	}, nil
}

func New(baseURL string) (*Scraper, error) {
	return NewWithConfig(ScraperConfig{
		BaseURL: baseURL,
	})
}

func (s *Scraper) shouldProcessURL(urlStr string) bool {
	parsedURL, err := url.Parse(urlStr)
	if err != nil {
		return false
	}

	// Same host only
	if parsedURL.Host != s.baseHost {
		return false
	}

	path := strings.ToLower(parsedURL.Path)
	for _, ext := range binaryExtensions {
		if strings.HasSuffix(path, ext) {
			return false
		}
	}

	for _, pattern := range s.config.IgnorePatterns {
		if strings.Contains(urlStr, pattern) {
			return false
		}
	}

	return true
}

func (s *Scraper) cleanContent(content string) string {
	content = strings.Join(strings.Fields(content), " ")

	noisePatterns := []string{
		"Cookie Policy",
		"Accept Cookies",
		"Politique de cookies",
		"Accepter les cookies",
		"Mentions légales",
	}

	for _, pattern := range noisePatterns {
		content = strings.ReplaceAll(content, pattern, "")
	}

	return strings.TrimSpace(content)
}

func (s *Scraper) extractMainContent(doc *goquery.Document) string {
	doc.Find("script, style, noscript, nav, footer").Remove()

	selectors := []string{
		"main",
		"article",
		".content",
		"#content",
	}

	var content string
	for _, selector := range selectors {
		if selected := doc.Find(selector); selected.Length() > 0 {
			content = selected.Text()
			break
		}
	}

	// Fallback to body if no main content found
	if content == "" {
		content = doc.Find("body").Text()
	}

	return s.cleanContent(content)
}

// Scrape crawls from the given URL, breadth within depth and page limits,
// and returns one document per fetched page.
func (s *Scraper) Scrape(ctx context.Context, startURL string) ([]models.Document, error) {
	var documents []models.Document
	err := s.scrapeRecursive(ctx, stripFragment(startURL), 0, &documents)
	return documents, err
}

func (s *Scraper) scrapeRecursive(ctx context.Context, urlStr string, depth int, documents *[]models.Document) error {
	if depth > s.config.MaxDepth || s.visited[urlStr] {
		return nil
	}
	if len(*documents) >= s.config.MaxPages {
		return nil
	}

	if !s.shouldProcessURL(urlStr) {
		return nil
	}

	s.visited[urlStr] = true
	if s.config.OnProgress != nil {
		s.config.OnProgress(urlStr)
	}

	// Apply rate limiting
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

	content := s.extractMainContent(doc)
	title := strings.TrimSpace(doc.Find("title").Text())

	document := models.Document{
		ID:      uuid.NewString(),
		URL:     urlStr,
		Title:   title,
		Content: content,
		Metadata: map[string]interface{}{
			"depth":        depth,
			"time":         time.Now(),
			"contentType":  resp.Header.Get("Content-Type"),
			"lastModified": resp.Header.Get("Last-Modified"),
		},
	}
	*documents = append(*documents, document)

	// Find and follow links
	doc.Find("a[href]").Each(func(_ int, selection *goquery.Selection) {
		href, exists := selection.Attr("href")
		if !exists {
			return
		}

		absoluteURL, err := url.Parse(href)
		if err != nil {
			log.Printf("Error parsing URL: %v", err)
			return
		}

		if !absoluteURL.IsAbs() {
			base, err := url.Parse(urlStr)
			if err != nil {
				log.Printf("Error parsing base URL: %v", err)
				return
			}
			absoluteURL = base.ResolveReference(absoluteURL)
		}

		next := stripFragment(absoluteURL.String())
		if err := s.scrapeRecursive(ctx, next, depth+1, documents); err != nil {
			log.Printf("Error scraping URL: %v", err)
		}
	})

	return nil
}

// SaveMarkdown dumps every document to dir as a markdown file, URL first
// line then the extracted text. The directory is emptied first so pages
// removed from the site do not linger across crawls.
func SaveMarkdown(dir string, docs []models.Document) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create output dir: %w", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("failed to read output dir: %w", err)
	}
	for _, entry := range entries {
		if err := os.RemoveAll(filepath.Join(dir, entry.Name())); err != nil {
			return fmt.Errorf("failed to clear output dir: %w", err)
		}
	}

	for _, doc := range docs {
		name := Slug(doc.URL)
		body := fmt.Sprintf("# %s\n\n%s\n", doc.URL, doc.Content)
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", name, err)
		}
	}

	return nil
}

// Slug converts a page URL to a markdown filename ("/foo/bar" -> "foo-bar.md",
// the site root -> "accueil.md").
func Slug(urlStr string) string {
	parsed, err := url.Parse(urlStr)
	if err != nil {
		return "page.md"
	}

	path := strings.Trim(parsed.Path, "/")
	if path == "" {
		return "accueil.md"
	}
	return strings.ReplaceAll(path, "/", "-") + ".md"
}

func stripFragment(urlStr string) string {
	if i := strings.Index(urlStr, "#"); i >= 0 {
		return urlStr[:i]
	}
	return urlStr
}

package scraper

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSite(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	var server *httptest.Server

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `<html><head><title>Accueil</title></head><body>
			<main>Bienvenue à Sup de Vinci, école d'informatique.</main>
			<a href="/formations">Formations</a>
			<a href="/campus#paris">Campus</a>
			<a href="/offres-emploi/dev">Jobs</a>
			<a href="https://elsewhere.example.com/page">Extern</a>
		</body></html>`)
	})
	mux.HandleFunc("/formations", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `<html><head><title>Formations</title></head><body>
			<article>Bachelor et Mastère en alternance.</article>
			<a href="%s/">Retour</a>
		</body></html>`, server.URL)
	})
	mux.HandleFunc("/campus", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><head><title>Campus</title></head><body>
			<main>Campus de Paris et de Nanterre.</main>
		</body></html>`)
	})
	mux.HandleFunc("/offres-emploi/dev", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body>job board, should be excluded</body></html>`)
	})

	server = httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestScraper(t *testing.T) {
	server := newTestSite(t)

	var seen []string
	s, err := NewWithConfig(ScraperConfig{
		BaseURL:   server.URL,
		MaxDepth:  3,
		MaxPages:  10,
		RateLimit: 100,
		OnProgress: func(url string) {
			seen = append(seen, url)
		},
	})
	require.NoError(t, err)

	docs, err := s.Scrape(context.Background(), server.URL+"/")
	require.NoError(t, err)
	require.Len(t, docs, 3)

	byTitle := map[string]bool{}
	for _, doc := range docs {
		byTitle[doc.Title] = true
		assert.NotEmpty(t, doc.ID)
		assert.NotEmpty(t, doc.URL)
		assert.NotEmpty(t, doc.Content)
		assert.NotNil(t, doc.Metadata)
	}
	assert.True(t, byTitle["Accueil"])
	assert.True(t, byTitle["Formations"])
	assert.True(t, byTitle["Campus"])

	assert.Len(t, seen, 3)

	// the excluded section and the external host were never fetched
	for _, url := range seen {
		assert.NotContains(t, url, "/offres-emploi/")
		assert.NotContains(t, url, "elsewhere.example.com")
	}
}

func TestScraperMaxPages(t *testing.T) {
	server := newTestSite(t)

	s, err := NewWithConfig(ScraperConfig{
		BaseURL:   server.URL,
		MaxDepth:  5,
		MaxPages:  1,
		RateLimit: 100,
	})
	require.NoError(t, err)

	docs, err := s.Scrape(context.Background(), server.URL+"/")
	require.NoError(t, err)
	assert.Len(t, docs, 1)
}

func TestScraperConfigDefaults(t *testing.T) {
	s, err := New("https://example.com")
	require.NoError(t, err)

	assert.Equal(t, 3, s.config.MaxDepth)
	assert.Equal(t, 100, s.config.MaxPages)
	assert.Equal(t, 2.0, s.config.RateLimit)
	assert.Equal(t, 30*time.Second, s.config.Timeout)
	assert.Equal(t, DefaultIgnorePatterns, s.config.IgnorePatterns)
}

func TestScraperRejectsBadBaseURL(t *testing.T) {
	_, err := New("not a url")
	assert.Error(t, err)
}

func TestShouldProcessURL(t *testing.T) {
	s, err := New("https://www.supdevinci.fr/")
	require.NoError(t, err)

	assert.True(t, s.shouldProcessURL("https://www.supdevinci.fr/formations-bachelor"))
	assert.False(t, s.shouldProcessURL("https://other-site.fr/page"))
	assert.False(t, s.shouldProcessURL("https://www.supdevinci.fr/brochure.pdf"))
	assert.False(t, s.shouldProcessURL("https://www.supdevinci.fr/offres-emploi/dev"))
	assert.False(t, s.shouldProcessURL("https://www.supdevinci.fr/mentions-legales"))
	assert.False(t, s.shouldProcessURL("https://www.supdevinci.fr/formation/bachelor"))
	assert.False(t, s.shouldProcessURL("https://www.supdevinci.fr/campus/paris"))
	assert.False(t, s.shouldProcessURL("https://www.supdevinci.fr/documentation-etudiante"))
	assert.False(t, s.shouldProcessURL("https://www.supdevinci.fr/certifications"))
}

func TestSlug(t *testing.T) {
	assert.Equal(t, "accueil.md", Slug("https://www.supdevinci.fr/"))
	assert.Equal(t, "formations.md", Slug("https://www.supdevinci.fr/formations/"))
	assert.Equal(t, "campus-paris.md", Slug("https://www.supdevinci.fr/campus/paris"))
}

func TestSaveMarkdown(t *testing.T) {
	server := newTestSite(t)

	s, err := NewWithConfig(ScraperConfig{
		BaseURL:   server.URL,
		RateLimit: 100,
	})
	require.NoError(t, err)

	docs, err := s.Scrape(context.Background(), server.URL+"/")
	require.NoError(t, err)
	require.NotEmpty(t, docs)

	dir := t.TempDir()
	// a leftover from a previous crawl must not survive the dump
	require.NoError(t, os.WriteFile(filepath.Join(dir, "page-supprimee.md"), []byte("stale"), 0o644))
	require.NoError(t, SaveMarkdown(dir, docs))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, len(docs))
	_, err = os.Stat(filepath.Join(dir, "page-supprimee.md"))
	assert.True(t, os.IsNotExist(err))

	data, err := os.ReadFile(filepath.Join(dir, "accueil.md"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "Bienvenue à Sup de Vinci")
}

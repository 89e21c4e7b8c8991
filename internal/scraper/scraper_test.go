package scraper

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const articlePage = `<!doctype html>
<html><head>
<title>Fallback title</title>
<meta property="og:title" content="A Better Garbage Collector">
<meta property="og:image" content="/images/lead.png">
<meta property="og:image:width" content="1200">
<meta property="og:image:height" content="630">
<script>var tracking = "this is not content at all, really";</script>
</head><body>
<nav><p>Home | About | Archive | Subscribe to our newsletter</p></nav>
<article>
<p>The new collector reduces pause times by an order of magnitude on large heaps.</p>
<p>It works by splitting   marking into
   small incremental steps interleaved with the mutator.</p>
<p>We accept cookies to improve your experience on this site.</p>
<p>Benchmarks show throughput within two percent of the old design.</p>
</article>
</body></html>`

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/article", func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.Header.Get("User-Agent"), "hnsummary")
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(articlePage))
	})
	mux.HandleFunc("/meta-only", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><head><meta name="description" content="Only a description."></head><body></body></html>`))
	})
	mux.HandleFunc("/paper.pdf", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write([]byte("%PDF-1.4"))
	})
	mux.HandleFunc("/empty", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><body></body></html>`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestExtractFullArticle(t *testing.T) {
	srv := newServer(t)
	s := New(5 * time.Second)

	article, err := s.ExtractFullArticle(context.Background(), srv.URL+"/article")
	require.NoError(t, err)

	assert.Equal(t, "A Better Garbage Collector", article.Title)
	assert.Equal(t, srv.URL+"/article", article.URL)

	paragraphs := strings.Split(article.Content, "\n\n")
	require.Len(t, paragraphs, 3)
	assert.Equal(t, "It works by splitting marking into small incremental steps interleaved with the mutator.", paragraphs[1])
	assert.NotContains(t, article.Content, "cookies")
	assert.NotContains(t, article.Content, "tracking")

	require.NotNil(t, article.Image)
	assert.Equal(t, srv.URL+"/images/lead.png", article.Image.URL)
	assert.Equal(t, 1200, article.Image.Width)
	assert.Equal(t, 630, article.Image.Height)
}

func TestExtractFullArticle_MetaDescriptionFallback(t *testing.T) {
	srv := newServer(t)

	article, err := New(5*time.Second).ExtractFullArticle(context.Background(), srv.URL+"/meta-only")
	require.NoError(t, err)
	assert.Equal(t, "Only a description.", article.Content)
	assert.Nil(t, article.Image)
}

func TestExtractFullArticle_Errors(t *testing.T) {
	srv := newServer(t)
	s := New(5 * time.Second)

	for _, path := range []string{"/missing", "/paper.pdf", "/empty"} {
		_, err := s.ExtractFullArticle(context.Background(), srv.URL+path)
		assert.Error(t, err, path)
	}

	_, err := s.ExtractFullArticle(context.Background(), "://bad url")
	assert.Error(t, err)
}

func TestHostOf(t *testing.T) {
	assert.Equal(t, "github.com", hostOf("https://www.github.com/golang/go"))
	assert.Equal(t, "blog.medium.com", hostOf("https://blog.Medium.com/x"))
	assert.Equal(t, "", hostOf("::"))
}

package app

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deusflow/hnsummary/internal/config"
	"github.com/deusflow/hnsummary/internal/logger"
)

var testNow = time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)

const articleHTML = `<html><head><title>%[1]s</title></head><body><article>
<p>%[1]s explains how the system was designed from the ground up.</p>
<p>The second paragraph covers the benchmarks and the trade-offs involved.</p>
<p>The last paragraph lists the open problems that remain for future work.</p>
</article></body></html>`

func rssItem(title, link string, points int, published time.Time) string {
	return fmt.Sprintf(`<item>
  <title>%s</title>
  <link>%s</link>
  <pubDate>%s</pubDate>
  <description><![CDATA[<p>Comments URL: <a href="https://news.ycombinator.com/item?id=%d">x</a></p><p>Points: %d</p>]]></description>
  <dc:creator>tester</dc:creator>
</item>`, title, link, published.Format(time.RFC1123Z), points, points)
}

type story struct {
	title  string
	path   string
	points int
	at     time.Time
	listed bool // still on the front page listing
}

type fixture struct {
	cfg *config.Config
	out string

	mu      sync.Mutex
	stories []*story
	fetches map[string]*atomic.Int32
}

func (f *fixture) unlist(title string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.stories {
		if s.title == title {
			s.listed = false
		}
	}
}

func (f *fixture) fetched(path string) int32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.fetches[path]; ok {
		return c.Load()
	}
	return 0
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	f := &fixture{
		stories: []*story{
			{"Fresh story", "fresh", 300, testNow.Add(-2 * time.Hour), true},
			{"Yesterday story", "yesterday", 150, testNow.Add(-20 * time.Hour), true},
			{"Second yesterday story", "second", 60, testNow.Add(-22 * time.Hour), true},
			{"Older story", "older", 90, testNow.Add(-50 * time.Hour), true},
		},
		fetches: map[string]*atomic.Int32{},
	}

	mux.HandleFunc("/articles/", func(w http.ResponseWriter, r *http.Request) {
		path := strings.TrimPrefix(r.URL.Path, "/articles/")
		f.mu.Lock()
		if f.fetches[path] == nil {
			f.fetches[path] = &atomic.Int32{}
		}
		f.fetches[path].Add(1)
		f.mu.Unlock()

		w.Header().Set("Content-Type", "text/html")
		fmt.Fprintf(w, articleHTML, path)
	})
	mux.HandleFunc("/rss", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		var items []string
		for _, s := range f.stories {
			if s.listed {
				items = append(items, rssItem(s.title, srv.URL+"/articles/"+s.path, s.points, s.at))
			}
		}
		f.mu.Unlock()

		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprintf(w, `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0" xmlns:dc="http://purl.org/dc/elements/1.1/"><channel><title>HN</title><link>https://news.ycombinator.com/</link>
%s
</channel></rss>`, strings.Join(items, "\n"))
	})
	mux.HandleFunc("/algolia/search", func(w http.ResponseWriter, r *http.Request) {
		var from, to int64
		if _, err := fmt.Sscanf(r.URL.Query().Get("numericFilters"), "created_at_i>=%d,created_at_i<%d", &from, &to); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		type hit struct {
			ObjectID   string `json:"objectID"`
			Title      string `json:"title"`
			URL        string `json:"url"`
			Author     string `json:"author"`
			Points     int    `json:"points"`
			CreatedAtI int64  `json:"created_at_i"`
		}
		hits := []hit{}
		f.mu.Lock()
		for i, s := range f.stories {
			if at := s.at.Unix(); at >= from && at < to {
				hits = append(hits, hit{fmt.Sprint(i + 1), s.title, srv.URL + "/articles/" + s.path, "tester", s.points, s.at.Unix()})
			}
		}
		f.mu.Unlock()
		assert.NoError(t, json.NewEncoder(w).Encode(map[string]any{"hits": hits}))
	})
	mux.HandleFunc("/translate", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[[["译文",null,null,null,1]],null,"en"]`))
	})

	dir := t.TempDir()
	feedsPath := filepath.Join(dir, "feeds.yaml")
	require.NoError(t, os.WriteFile(feedsPath, []byte("feeds:\n  - "+srv.URL+"/rss\n"), 0644))

	out := filepath.Join(dir, "output")
	f.out = out
	f.cfg = &config.Config{
		OutputDir:           out,
		Site:                "https://hn.example.com",
		FeedsConfigPath:     feedsPath,
		FeedAuthor:          "hnsummary",
		SummarySize:         400,
		ScoreThreshold:      20,
		SummaryProvider:     config.ProviderNone,
		ContextBudget:       4096,
		TranslateBaseURL:    srv.URL + "/translate",
		UpdatableWithinDays: 3,
		AlgoliaBaseURL:      srv.URL + "/algolia",
		DailyItems:          10,
		RegenSeed:           1,
		CacheDBPath:         filepath.Join(dir, "cache.db"),
		SummaryTTLDays:      30,
		TranslationTTLDays:  30,
		RequestTimeout:      5 * time.Second,
		RetryAttempts:       1,
		ScrapeConcurrency:   2,
	}
	return f
}

func newTestApp(t *testing.T, f *fixture) *App {
	t.Helper()
	a, err := New(context.Background(), f.cfg)
	require.NoError(t, err)
	t.Cleanup(a.Close)
	a.now = func() time.Time { return testNow }
	return a
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(raw)
}

func TestRun(t *testing.T) {
	f := newFixture(t)
	a := newTestApp(t, f)

	require.NoError(t, a.Run(context.Background()))

	index := readFile(t, filepath.Join(f.out, "index.html"))
	assert.Contains(t, index, "Fresh story")
	assert.Contains(t, index, "Yesterday story")
	assert.Contains(t, index, "explains how the system was designed")
	assert.Contains(t, index, `href="https://news.ycombinator.com/user?id=tester"`)

	zh := readFile(t, filepath.Join(f.out, "zh.html"))
	assert.Contains(t, zh, "译文")

	feed := readFile(t, filepath.Join(f.out, "feed.xml"))
	assert.Contains(t, feed, "<title>Hacker News Summary</title>")
	assert.Equal(t, 4, strings.Count(feed, "<entry>"))

	yesterday := readFile(t, filepath.Join(f.out, "daily", "2024-03-09", "index.html"))
	assert.Contains(t, yesterday, "Yesterday story")
	assert.NotContains(t, yesterday, "Fresh story")
	assert.Contains(t, yesterday, `href="https://hn.example.com/daily/2024-03-09/"`)

	older := readFile(t, filepath.Join(f.out, "daily", "2024-03-08", "index.html"))
	assert.Contains(t, older, "Older story")

	_, err := os.Stat(filepath.Join(f.out, "daily", "2024-03-10"))
	assert.True(t, os.IsNotExist(err), "today is not published yet")
}

func TestGenDaily_RegenerationPolicy(t *testing.T) {
	f := newFixture(t)
	a := newTestApp(t, f)
	page := filepath.Join(f.out, "daily", "2024-03-09", "index.html")

	// A missing page is built no matter what the coin says.
	a.sample = func() float64 { return 0.99 }
	require.NoError(t, a.GenDaily(context.Background()))
	assert.Contains(t, readFile(t, page), "Yesterday story")

	require.NoError(t, os.WriteFile(page, []byte("stale"), 0644))

	a.sample = func() float64 { return 0.5 }
	require.NoError(t, a.GenDaily(context.Background()))
	assert.Equal(t, "stale", readFile(t, page))

	a.sample = func() float64 { return 0.49 }
	require.NoError(t, a.GenDaily(context.Background()))
	assert.Contains(t, readFile(t, page), "Yesterday story")
}

func TestGenFrontpage(t *testing.T) {
	f := newFixture(t)
	a := newTestApp(t, f)

	require.NoError(t, a.GenFrontpage(context.Background()))

	for _, name := range []string{"index.html", "zh.html", "feed.xml"} {
		_, err := os.Stat(filepath.Join(f.out, name))
		assert.NoError(t, err, name)
	}
	_, err := os.Stat(filepath.Join(f.out, "daily"))
	assert.True(t, os.IsNotExist(err))
}

func TestRun_MissingFeedList(t *testing.T) {
	f := newFixture(t)
	f.cfg.FeedsConfigPath = filepath.Join(t.TempDir(), "missing.yaml")
	a := newTestApp(t, f)

	assert.Error(t, a.Run(context.Background()))
}

func TestExpire(t *testing.T) {
	f := newFixture(t)
	a := newTestApp(t, f)

	removed, err := a.Expire()
	require.NoError(t, err)
	assert.Zero(t, removed)
}

func TestNew_UnknownProvider(t *testing.T) {
	f := newFixture(t)
	f.cfg.SummaryProvider = "bogus"

	_, err := New(context.Background(), f.cfg)
	assert.ErrorIs(t, err, config.ErrInvalid)
}

func TestGenDaily_KeepsStoriesThatLeftTheListing(t *testing.T) {
	f := newFixture(t)
	a := newTestApp(t, f)
	page := filepath.Join(f.out, "daily", "2024-03-09", "index.html")

	require.NoError(t, a.GenDaily(context.Background()))
	assert.Contains(t, readFile(t, page), "Second yesterday story")

	f.unlist("Second yesterday story")
	a.sample = func() float64 { return 0.1 }
	require.NoError(t, a.Run(context.Background()))

	assert.NotContains(t, readFile(t, filepath.Join(f.out, "index.html")), "Second yesterday story")
	rebuilt := readFile(t, page)
	assert.Contains(t, rebuilt, "Yesterday story")
	assert.Contains(t, rebuilt, "Second yesterday story")
}

func TestGenDaily_QueryFailureKeepsPage(t *testing.T) {
	f := newFixture(t)
	page := filepath.Join(f.out, "daily", "2024-03-09", "index.html")
	require.NoError(t, os.MkdirAll(filepath.Dir(page), 0755))
	require.NoError(t, os.WriteFile(page, []byte("published"), 0644))

	f.cfg.AlgoliaBaseURL = "http://127.0.0.1:1"
	a := newTestApp(t, f)
	a.sample = func() float64 { return 0.1 }

	assert.Error(t, a.GenDaily(context.Background()))
	assert.Equal(t, "published", readFile(t, page))
}

func TestRun_FetchesEachArticleOnce(t *testing.T) {
	f := newFixture(t)
	a := newTestApp(t, f)

	require.NoError(t, a.Run(context.Background()))

	for _, path := range []string{"fresh", "yesterday", "second", "older"} {
		assert.Equal(t, int32(1), f.fetched(path), path)
	}
}

func TestRun_LogsOnce(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "run.log")
	logger.Init(false, logFile)
	t.Cleanup(func() { logger.Init(false, "") })

	f := newFixture(t)
	f.cfg.SummaryTTLDays = 0
	a := newTestApp(t, f)
	require.NoError(t, a.cache.PutSummary("https://example.com/a", "openai", "stale"))

	require.NoError(t, a.Run(context.Background()))
	logger.Close()

	out := readFile(t, logFile)
	assert.Equal(t, 1, strings.Count(out, "expired cache entries"))
	assert.Contains(t, out, "removed=1")
	assert.Contains(t, out, "generating a fresh daily page")
	assert.NotContains(t, out, "will refresh daily page")
}

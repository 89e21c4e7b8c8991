// Package publish renders summarized items into static pages and an Atom feed.
package publish

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/deusflow/hnsummary/internal/logger"
	"github.com/deusflow/hnsummary/internal/metrics"
	"github.com/deusflow/hnsummary/internal/news"
	"github.com/deusflow/hnsummary/internal/translate"
)

//go:embed templates/*.html
var templateFS embed.FS

const (
	pageTemplate = "hackernews.html"
	feedFile     = "feed.xml"

	// imageMaxWidth is the widest a lead image is shown, in pixels.
	imageMaxWidth = 220
)

// Config holds the output settings of a Publisher.
type Config struct {
	OutputDir      string
	Site           string // absolute site URL without trailing slash
	FeedAuthor     string
	FeedAuthorURI  string
	SummarySize    int // runes kept from raw-text summaries
	ScoreThreshold int // feed skips items at or below this score
}

// Publisher writes pages under OutputDir.
type Publisher struct {
	cfg        Config
	translator translate.Translator
	tmpl       *template.Template
	now        func() time.Time
}

// pageData is what the page template renders.
type pageData struct {
	Items       []*news.News
	LastUpdated time.Time
	Lang        string
	Path        string // canonical URL of the page
	Site        string
}

// New parses the page template. A nil translator leaves text untranslated.
func New(cfg Config, tr translate.Translator) (*Publisher, error) {
	cfg.Site = strings.TrimRight(cfg.Site, "/")
	p := &Publisher{
		cfg:        cfg,
		translator: tr,
		now:        func() time.Time { return time.Now().UTC() },
	}

	funcMap := template.FuncMap{
		"add":        func(a, b int) int { return a + b },
		"truncate":   p.truncate,
		"imageStyle": func(img *news.Image) template.CSS { return template.CSS(img.SizeStyle(imageMaxWidth)) },
		// Replaced per render so translation sees the caller's context.
		"translate": func(text, lang string) string { return text },
	}

	tmpl, err := template.New(pageTemplate).Funcs(funcMap).ParseFS(templateFS, "templates/"+pageTemplate)
	if err != nil {
		return nil, fmt.Errorf("failed to parse page template: %w", err)
	}
	p.tmpl = tmpl
	return p, nil
}

// GenPage renders items into relPath (slash-separated, relative to the output
// directory). An empty list leaves any existing page untouched.
func (p *Publisher) GenPage(ctx context.Context, items []*news.News, relPath, lang string) error {
	if len(items) == 0 {
		logger.Info("no items, keeping existing page", "path", relPath)
		metrics.Global.RecordSkippedPage()
		return nil
	}

	start := time.Now()
	staticPage := filepath.Join(p.cfg.OutputDir, filepath.FromSlash(relPath))
	if err := os.MkdirAll(filepath.Dir(staticPage), 0755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", staticPage, err)
	}

	tmpl, err := p.tmpl.Clone()
	if err != nil {
		return fmt.Errorf("failed to clone page template: %w", err)
	}
	tmpl.Funcs(template.FuncMap{
		"translate": func(text, lang string) string { return p.translate(ctx, text, lang) },
	})

	var buf bytes.Buffer
	err = tmpl.Execute(&buf, pageData{
		Items:       items,
		LastUpdated: p.now(),
		Lang:        lang,
		Path:        p.pageURL(relPath),
		Site:        p.cfg.Site,
	})
	if err != nil {
		return fmt.Errorf("failed to render %s: %w", relPath, err)
	}

	if err := os.WriteFile(staticPage, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", staticPage, err)
	}
	metrics.Global.RecordPage(buf.Len())
	logger.Info("written page", "path", staticPage, "bytes", buf.Len(), "cost_ms", time.Since(start).Milliseconds())
	return nil
}

// pageURL is the canonical URL of relPath; index pages map to their directory.
func (p *Publisher) pageURL(relPath string) string {
	return p.cfg.Site + "/" + strings.TrimSuffix(relPath, "index.html")
}

func (p *Publisher) translate(ctx context.Context, text, lang string) string {
	if p.translator == nil {
		return text
	}
	return p.translator.Translate(ctx, text, lang)
}

// truncate shortens text to SummarySize runes at a word boundary, appending
// " ...". Text at most 5 runes over the limit is kept whole.
func (p *Publisher) truncate(text string) string {
	return truncateText(text, p.cfg.SummarySize, " ...", 5)
}

func truncateText(text string, length int, end string, leeway int) string {
	runes := []rune(text)
	if length <= 0 || len(runes) <= length+leeway {
		return text
	}
	cut := length - len([]rune(end))
	if cut < 0 {
		cut = 0
	}
	head := string(runes[:cut])
	if i := strings.LastIndex(head, " "); i >= 0 {
		head = head[:i]
	}
	return head + end
}

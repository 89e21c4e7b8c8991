package scraper

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

const userAgent = "Mozilla/5.0 (compatible; hnsummary/1.0; +https://github.com/deusflow/hnsummary)"

// maxBodyBytes bounds how much of a page is read.
const maxBodyBytes = 4 << 20

// ArticleContent is full article content
type ArticleContent struct {
	Title   string
	Content string
	URL     string
	Image   *Image // lead image, nil when the page declares none
}

// Image is a lead image declared by the page's Open Graph or Twitter metadata.
type Image struct {
	URL    string
	Width  int
	Height int
}

// Scraper fetches article pages and extracts readable text.
type Scraper struct {
	client *http.Client
}

// New creates a Scraper with a per-request timeout.
func New(timeout time.Duration) *Scraper {
	return &Scraper{client: &http.Client{Timeout: timeout}}
}

// ExtractFullArticle gets full text of article by URL
func (s *Scraper) ExtractFullArticle(ctx context.Context, pageURL string) (*ArticleContent, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("invalid article url: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error loading page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP error: %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "" && !strings.Contains(ct, "html") {
		return nil, fmt.Errorf("unsupported content type %q", ct)
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("error parsing HTML: %w", err)
	}

	content := extractContentBySource(doc, pageURL)
	if content == "" {
		content = metaContent(doc, "og:description", "description")
	}
	if content == "" {
		return nil, fmt.Errorf("can't get content")
	}

	return &ArticleContent{
		Title:   extractTitle(doc),
		Content: content,
		URL:     pageURL,
		Image:   extractImage(doc, resp.Request.URL),
	}, nil
}

// extractContentBySource gets content by site
func extractContentBySource(doc *goquery.Document, pageURL string) string {
	var selectors []string

	switch host := hostOf(pageURL); {
	case host == "github.com":
		selectors = []string{".markdown-body p, .markdown-body li", "article p"}
	case strings.HasSuffix(host, "medium.com"):
		selectors = []string{"article section p", "article p"}
	case host == "arxiv.org":
		selectors = []string{"blockquote.abstract", ".abstract"}
	}

	if content := collectParagraphs(doc, selectors, 10, 1); content != "" {
		return cleanContent(content)
	}
	return cleanContent(extractGenericContent(doc))
}

// extractGenericContent is universal parser for any site
func extractGenericContent(doc *goquery.Document) string {
	doc.Find("script, style, noscript, nav, header, footer, aside, form").Remove()

	// Try most popular selectors
	selectors := []string{
		"article p",
		".article p",
		".content p",
		".post-content p",
		".entry-content p",
		"main p",
		"#content p",
		".text p",
		"p",
	}
	return collectParagraphs(doc, selectors, 20, 3)
}

// collectParagraphs returns the text of the first selector yielding at least
// enough paragraphs longer than minLen.
func collectParagraphs(doc *goquery.Document, selectors []string, minLen, enough int) string {
	var paragraphs []string
	for _, selector := range selectors {
		paragraphs = paragraphs[:0]
		doc.Find(selector).Each(func(i int, s *goquery.Selection) {
			text := strings.TrimSpace(s.Text())
			if len(text) > minLen {
				paragraphs = append(paragraphs, text)
			}
		})
		if len(paragraphs) >= enough {
			break
		}
	}
	return strings.Join(paragraphs, "\n\n")
}

// extractTitle gets article title
func extractTitle(doc *goquery.Document) string {
	if title := metaContent(doc, "og:title"); title != "" {
		return title
	}
	for _, selector := range []string{"h1", "title"} {
		title := strings.TrimSpace(doc.Find(selector).First().Text())
		if title != "" {
			return title
		}
	}
	return ""
}

// extractImage reads the lead image from page metadata, resolving it against base.
func extractImage(doc *goquery.Document, base *url.URL) *Image {
	src := metaContent(doc, "og:image", "og:image:url", "twitter:image")
	if src == "" {
		return nil
	}
	ref, err := url.Parse(src)
	if err != nil {
		return nil
	}
	if base != nil {
		ref = base.ResolveReference(ref)
	}
	if ref.Scheme != "http" && ref.Scheme != "https" {
		return nil
	}

	width, _ := strconv.Atoi(metaContent(doc, "og:image:width"))
	height, _ := strconv.Atoi(metaContent(doc, "og:image:height"))
	return &Image{URL: ref.String(), Width: width, Height: height}
}

// metaContent returns the first non-empty <meta> content among names, matched
// on either the property or the name attribute.
func metaContent(doc *goquery.Document, names ...string) string {
	for _, name := range names {
		for _, attr := range []string{"property", "name"} {
			content, ok := doc.Find(fmt.Sprintf(`meta[%s=%q]`, attr, name)).First().Attr("content")
			if ok && strings.TrimSpace(content) != "" {
				return strings.TrimSpace(content)
			}
		}
	}
	return ""
}

// cleanContent drops boilerplate lines and normalizes whitespace.
func cleanContent(content string) string {
	if content == "" {
		return ""
	}

	junkIndicators := []string{
		"cookie", "subscribe to", "sign up for", "sign in", "log in to",
		"all rights reserved", "share this", "advertisement",
	}

	var cleanLines []string
	for _, line := range strings.Split(content, "\n\n") {
		line = strings.Join(strings.Fields(line), " ")
		if line == "" {
			continue
		}

		lower := strings.ToLower(line)
		isJunk := false
		for _, indicator := range junkIndicators {
			if strings.Contains(lower, indicator) {
				isJunk = true
				break
			}
		}
		if !isJunk {
			cleanLines = append(cleanLines, line)
		}
	}

	return strings.Join(cleanLines, "\n\n")
}

func hostOf(pageURL string) string {
	u, err := url.Parse(pageURL)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}

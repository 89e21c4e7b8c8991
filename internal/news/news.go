package news

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"html"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/mmcdole/gofeed"
)

// SummarizedBy records where a News summary came from.
type SummarizedBy string

const (
	SummarizedByNone     SummarizedBy = "none"
	SummarizedByOriginal SummarizedBy = "original" // article text used as is
	SummarizedByOpenAI   SummarizedBy = "openai"
	SummarizedByGemini   SummarizedBy = "gemini"
)

// CanTruncate reports whether the summary is raw text that should be shortened
// before display. Model summaries are already short.
func (s SummarizedBy) CanTruncate() bool {
	return s == SummarizedByNone || s == SummarizedByOriginal
}

// Pulled reports whether content was already fetched for the item.
func (n *News) Pulled() bool {
	return n.SummarizedBy != "" && n.SummarizedBy != SummarizedByNone
}

// Image is a lead image shown next to a summary.
type Image struct {
	URL    string
	Width  int
	Height int
}

// SizeStyle returns an inline CSS size that fits the image into maxWidth
// pixels, keeping its aspect ratio.
func (i *Image) SizeStyle(maxWidth int) string {
	if i == nil || i.Width <= 0 || i.Height <= 0 {
		return fmt.Sprintf("max-width:%dpx;", maxWidth)
	}
	w, h := i.Width, i.Height
	if w > maxWidth {
		h = h * maxWidth / w
		w = maxWidth
	}
	return fmt.Sprintf("width:%dpx;height:%dpx;", w, h)
}

// News is a single Hacker News item with its pulled content.
type News struct {
	Rank       int
	Title      string
	URL        string
	CommentURL string
	Author     string
	AuthorLink string
	Score      int
	SubmitTime time.Time

	Content      string
	Summary      string
	SummarizedBy SummarizedBy
	Image        *Image
}

const hnUserURL = "https://news.ycombinator.com/user?id="

var (
	pointsRe   = regexp.MustCompile(`Points:\s*(\d+)`)
	commentsRe = regexp.MustCompile(`Comments URL:\s*<a href="([^"]+)"`)
)

// FromFeedItem converts a listing entry. Score and comments link are read from
// the hnrss description when present.
func FromFeedItem(item *gofeed.Item, rank int) *News {
	n := &News{
		Rank:         rank,
		Title:        strings.TrimSpace(item.Title),
		URL:          strings.TrimSpace(item.Link),
		SummarizedBy: SummarizedByNone,
	}

	if m := pointsRe.FindStringSubmatch(item.Description); m != nil {
		n.Score, _ = strconv.Atoi(m[1])
	}
	if m := commentsRe.FindStringSubmatch(item.Description); m != nil {
		n.CommentURL = html.UnescapeString(m[1])
	}

	if item.Author != nil && item.Author.Name != "" {
		n.Author = item.Author.Name
	} else if item.DublinCoreExt != nil && len(item.DublinCoreExt.Creator) > 0 {
		n.Author = item.DublinCoreExt.Creator[0]
	}
	if n.Author != "" {
		n.AuthorLink = hnUserURL + n.Author
	}

	switch {
	case item.PublishedParsed != nil:
		n.SubmitTime = item.PublishedParsed.UTC()
	case item.UpdatedParsed != nil:
		n.SubmitTime = item.UpdatedParsed.UTC()
	}
	return n
}

// FromFeedItems converts a whole listing, ranking items in feed order and
// dropping repeated links.
func FromFeedItems(items []*gofeed.Item) []*News {
	seen := make(map[string]struct{}, len(items))
	list := make([]*News, 0, len(items))
	for _, item := range items {
		key := item.Link
		if key == "" {
			key = item.GUID
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		list = append(list, FromFeedItem(item, len(list)))
	}
	return list
}

// Slug returns a stable page anchor derived from the title.
func (n *News) Slug() string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(n.Title) {
		if unicode.IsLetter(r) || unicode.IsNumber(r) {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	slug := strings.TrimSuffix(b.String(), "-")
	if slug == "" {
		h := sha1.Sum([]byte(n.Title + n.URL))
		return hex.EncodeToString(h[:])[:12]
	}
	return slug
}

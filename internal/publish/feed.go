package publish

import (
	"encoding/xml"
	"fmt"
	"html"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/deusflow/hnsummary/internal/logger"
	"github.com/deusflow/hnsummary/internal/metrics"
	"github.com/deusflow/hnsummary/internal/news"
)

// Atom namespace
const atomNS = "http://www.w3.org/2005/Atom"

const feedTitle = "Hacker News Summary"

// GenFeed writes feed.xml. Items at or below the score threshold are left out
// until they gain points, since feed readers do not refresh entries they have
// already seen.
func (p *Publisher) GenFeed(items []*news.News) error {
	start := time.Now()
	rendered, err := p.buildAtomXML(items)
	if err != nil {
		return fmt.Errorf("failed to build feed: %w", err)
	}

	if err := os.MkdirAll(p.cfg.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	outputPath := filepath.Join(p.cfg.OutputDir, feedFile)
	if err := os.WriteFile(outputPath, []byte(rendered), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", outputPath, err)
	}
	metrics.Global.RecordPage(len(rendered))
	logger.Info("written feed", "path", outputPath, "bytes", len(rendered), "cost_ms", time.Since(start).Milliseconds())
	return nil
}

// buildAtomXML generates an Atom 1.0 document for items.
func (p *Publisher) buildAtomXML(items []*news.News) (string, error) {
	now := p.now()
	doc := atomFeed{
		NS:      atomNS,
		ID:      p.cfg.Site + "/",
		Title:   feedTitle,
		Updated: now.Format(time.RFC3339),
		Links: []atomLink{
			{Href: p.cfg.Site + "/" + feedFile, Rel: "self", Type: "application/atom+xml"},
			{Href: p.cfg.Site + "/", Rel: "alternate", Type: "text/html"},
		},
	}
	if p.cfg.FeedAuthor != "" {
		doc.Author = &atomPerson{Name: p.cfg.FeedAuthor, URI: p.cfg.FeedAuthorURI}
	}

	for _, n := range items {
		if n.Score <= p.cfg.ScoreThreshold {
			continue
		}

		link := n.URL
		if link == "" {
			link = n.CommentURL
		}
		updated := n.SubmitTime
		if updated.IsZero() {
			updated = now
		}

		entry := atomEntry{
			Title:   n.Title,
			ID:      link,
			Updated: updated.UTC().Format(time.RFC3339),
			Content: &atomText{Type: "html", Value: p.entryContent(n)},
		}
		if entry.ID == "" {
			entry.ID = p.cfg.Site + "/#" + n.Slug()
		}
		if link != "" {
			entry.Links = append(entry.Links, atomLink{Href: link, Rel: "alternate", Type: "text/html"})
		}
		if n.AuthorLink != "" {
			entry.Author = &atomPerson{Name: n.Author, URI: n.AuthorLink}
		}
		doc.Entries = append(doc.Entries, entry)
	}

	output, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", err
	}
	return xml.Header + string(output), nil
}

// entryContent is the HTML body of a feed entry: lead image, summary and
// links back to the site and the discussion.
func (p *Publisher) entryContent(n *news.News) string {
	var b strings.Builder
	if n.Image != nil {
		fmt.Fprintf(&b, `<img src="%s" style="%s" /><br />`,
			html.EscapeString(n.Image.URL), n.Image.SizeStyle(imageMaxWidth))
	}

	summary := n.Summary
	if n.SummarizedBy.CanTruncate() {
		summary = p.truncate(summary)
	}
	b.WriteString(html.EscapeString(summary))

	fmt.Fprintf(&b, ` <a href="%s" target="_blank">[summary]</a>`, html.EscapeString(p.cfg.Site+"/#"+n.Slug()))
	if n.CommentURL != "" {
		fmt.Fprintf(&b, ` <a href="%s" target="_blank">[comments]</a>`, html.EscapeString(n.CommentURL))
	}
	return b.String()
}

// --- XML structs for Atom 1.0 output ---

type atomFeed struct {
	XMLName xml.Name    `xml:"feed"`
	NS      string      `xml:"xmlns,attr"`
	ID      string      `xml:"id"`
	Title   string      `xml:"title"`
	Links   []atomLink  `xml:"link"`
	Updated string      `xml:"updated"`
	Author  *atomPerson `xml:"author,omitempty"`
	Entries []atomEntry `xml:"entry"`
}

type atomLink struct {
	Href string `xml:"href,attr"`
	Rel  string `xml:"rel,attr,omitempty"`
	Type string `xml:"type,attr,omitempty"`
}

type atomEntry struct {
	Title   string      `xml:"title"`
	Links   []atomLink  `xml:"link"`
	ID      string      `xml:"id"`
	Updated string      `xml:"updated"`
	Author  *atomPerson `xml:"author,omitempty"`
	Content *atomText   `xml:"content,omitempty"`
}

type atomText struct {
	Type  string `xml:"type,attr,omitempty"`
	Value string `xml:",chardata"`
}

type atomPerson struct {
	Name string `xml:"name"`
	URI  string `xml:"uri,omitempty"`
}

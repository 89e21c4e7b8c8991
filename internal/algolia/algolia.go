// Package algolia queries the Hacker News search API for the stories of a given day.
package algolia

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/deusflow/hnsummary/internal/logger"
	"github.com/deusflow/hnsummary/internal/news"
	"github.com/deusflow/hnsummary/internal/retry"
)

// DefaultBaseURL is the public Hacker News search API.
const DefaultBaseURL = "https://hn.algolia.com/api/v1"

const (
	itemURL = "https://news.ycombinator.com/item?id="
	userURL = "https://news.ycombinator.com/user?id="
)

type Client struct {
	client   *http.Client
	baseURL  string
	retry    retry.Config
	hitsPage int
}

// New creates a client returning at most perDay stories per day.
func New(baseURL string, timeout time.Duration, perDay int, rc retry.Config) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if perDay < 1 {
		perDay = 30
	}
	return &Client{
		client:   &http.Client{Timeout: timeout},
		baseURL:  baseURL,
		retry:    rc,
		hitsPage: perDay,
	}
}

type hit struct {
	ObjectID    string `json:"objectID"`
	Title       string `json:"title"`
	URL         string `json:"url"`
	Author      string `json:"author"`
	Points      int    `json:"points"`
	CreatedAtI  int64  `json:"created_at_i"`
	NumComments int    `json:"num_comments"`
}

type searchResponse struct {
	Hits []hit `json:"hits"`
}

// Day returns the stories submitted on the UTC day of date.
func (c *Client) Day(ctx context.Context, date time.Time) ([]*news.News, error) {
	y, m, d := date.UTC().Date()
	from := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, 1)

	q := url.Values{}
	q.Set("tags", "story")
	q.Set("numericFilters", fmt.Sprintf("created_at_i>=%d,created_at_i<%d", from.Unix(), to.Unix()))
	q.Set("hitsPerPage", strconv.Itoa(c.hitsPage))
	reqURL := c.baseURL + "/search?" + q.Encode()

	var resp searchResponse
	err := retry.WithRetry(ctx, c.retry, func() error {
		r, err := c.get(ctx, reqURL)
		if err != nil {
			return err
		}
		resp = r
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query stories of %s: %w", from.Format(time.DateOnly), err)
	}

	list := make([]*news.News, 0, len(resp.Hits))
	for _, h := range resp.Hits {
		if h.ObjectID == "" || h.Title == "" {
			continue
		}
		n := &news.News{
			Title:        h.Title,
			URL:          h.URL,
			CommentURL:   itemURL + h.ObjectID,
			Author:       h.Author,
			Score:        h.Points,
			SubmitTime:   time.Unix(h.CreatedAtI, 0).UTC(),
			SummarizedBy: news.SummarizedByNone,
		}
		if n.URL == "" {
			// Ask HN and similar text posts live on the discussion page.
			n.URL = n.CommentURL
		}
		if n.Author != "" {
			n.AuthorLink = userURL + n.Author
		}
		list = append(list, n)
	}
	logger.Debug("queried daily stories", "date", from.Format(time.DateOnly), "hits", len(list))
	return list, nil
}

func (c *Client) get(ctx context.Context, reqURL string) (searchResponse, error) {
	var out searchResponse
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return out, retry.Permanent(err)
	}
	req.Header.Set("User-Agent", "hnsummary/1.0")

	resp, err := c.client.Do(req)
	if err != nil {
		return out, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		err := fmt.Errorf("search API returned status %d: %s", resp.StatusCode, body)
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return out, retry.Permanent(err)
		}
		return out, err
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return out, retry.Permanent(fmt.Errorf("failed to decode search response: %w", err))
	}
	return out, nil
}

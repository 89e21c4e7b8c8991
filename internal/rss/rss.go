package rss

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/mmcdole/gofeed"
	"gopkg.in/yaml.v3"

	"github.com/deusflow/hnsummary/internal/logger"
)

// FeedsConfig is YAML config structure
// feeds:
//   - https://...
type FeedsConfig struct {
	Feeds []string `yaml:"feeds"`
}

// LoadFeeds reads RSS feeds list from YAML file
func LoadFeeds(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg FeedsConfig
	dec := yaml.NewDecoder(f)
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if len(cfg.Feeds) == 0 {
		return nil, fmt.Errorf("no feeds listed in %s", path)
	}
	return cfg.Feeds, nil
}

// FetchAllFeeds downloads and parses all feeds. A broken feed is logged and
// skipped; an error is returned only when no feed could be read.
func FetchAllFeeds(ctx context.Context, urls []string, timeout time.Duration) ([]*gofeed.Item, error) {
	parser := gofeed.NewParser()
	parser.UserAgent = "hnsummary/1.0"

	var allItems []*gofeed.Item
	successCount := 0

	for _, url := range urls {
		feed, err := fetchFeed(ctx, parser, url, timeout)
		if err != nil {
			logger.Warn("error parsing feed", "url", url, "error", err)
			continue
		}
		allItems = append(allItems, feed.Items...)
		successCount++
		logger.Info("loaded feed", "url", url, "items", len(feed.Items))
	}

	logger.Info("processed feeds", "ok", successCount, "total", len(urls))
	if successCount == 0 && len(urls) > 0 {
		return nil, fmt.Errorf("none of %d feeds could be loaded", len(urls))
	}
	return allItems, nil
}

func fetchFeed(ctx context.Context, parser *gofeed.Parser, url string, timeout time.Duration) (*gofeed.Feed, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return parser.ParseURLWithContext(url, ctx)
}

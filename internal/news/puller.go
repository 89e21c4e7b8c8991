package news

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/deusflow/hnsummary/internal/llm"
	"github.com/deusflow/hnsummary/internal/logger"
	"github.com/deusflow/hnsummary/internal/metrics"
	"github.com/deusflow/hnsummary/internal/ratelimit"
	"github.com/deusflow/hnsummary/internal/retry"
	"github.com/deusflow/hnsummary/internal/scraper"
)

// Fetcher loads the readable text of an article.
type Fetcher interface {
	ExtractFullArticle(ctx context.Context, url string) (*scraper.ArticleContent, error)
}

// SummaryCache stores generated summaries per article and provider.
type SummaryCache interface {
	GetSummary(url, provider string) (string, bool)
	PutSummary(url, provider, summary string) error
}

// Puller fills in content, lead image and summary for listing items.
type Puller struct {
	fetcher     Fetcher
	summarizer  llm.Summarizer // nil keeps the original text
	cache       SummaryCache   // optional
	limiter     *ratelimit.SummaryLimiter
	retry       retry.Config
	concurrency int
}

// PullerConfig wires a Puller. Only Fetcher is required.
type PullerConfig struct {
	Fetcher     Fetcher
	Summarizer  llm.Summarizer
	Cache       SummaryCache
	Limiter     *ratelimit.SummaryLimiter
	Retry       retry.Config
	Concurrency int
}

func NewPuller(cfg PullerConfig) *Puller {
	if cfg.Limiter == nil {
		cfg.Limiter = ratelimit.New(0)
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	return &Puller{
		fetcher:     cfg.Fetcher,
		summarizer:  cfg.Summarizer,
		cache:       cfg.Cache,
		limiter:     cfg.Limiter,
		retry:       cfg.Retry,
		concurrency: cfg.Concurrency,
	}
}

// PullAll pulls every item not pulled yet, at most concurrency at a time.
// Failures of single items degrade their summary and are not returned.
func (p *Puller) PullAll(ctx context.Context, list []*News) error {
	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)

	pending := 0
	for _, n := range list {
		if n.Pulled() {
			continue
		}
		pending++
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			p.PullContent(gctx, n)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("pulled content", "items", pending, "cost_ms", time.Since(start).Milliseconds())
	return nil
}

// PullContent scrapes the article behind n and summarizes it. On any failure
// n keeps the best summary that was reached.
func (p *Puller) PullContent(ctx context.Context, n *News) {
	metrics.Global.IncrementItemsPulled()

	if n.URL == "" {
		n.SummarizedBy = SummarizedByNone
		return
	}

	article, err := p.fetcher.ExtractFullArticle(ctx, n.URL)
	if err != nil {
		logger.Warn("failed to fetch article", "url", n.URL, "error", err)
		n.SummarizedBy = SummarizedByNone
		return
	}
	n.Content = article.Content
	if n.Title == "" {
		n.Title = article.Title
	}
	if article.Image != nil {
		n.Image = &Image{URL: article.Image.URL, Width: article.Image.Width, Height: article.Image.Height}
	}

	n.Summary = n.Content
	n.SummarizedBy = SummarizedByOriginal
	if p.summarizer == nil {
		return
	}

	provider := p.summarizer.Name()
	if p.cache != nil {
		if summary, ok := p.cache.GetSummary(n.URL, provider); ok {
			n.Summary = summary
			n.SummarizedBy = SummarizedBy(provider)
			metrics.Global.IncrementSummaryCacheHits()
			p.limiter.RecordCacheHit(len(n.Content) / 4)
			logger.Debug("summary cache hit", "url", n.URL, "provider", provider)
			return
		}
	}

	if err := p.limiter.Use(provider); err != nil {
		logger.Info("keeping original text", "url", n.URL, "reason", err)
		metrics.Global.IncrementSummaryFallbacks()
		return
	}

	var summary string
	err = retry.WithRetry(ctx, p.retry, func() error {
		s, err := p.summarizer.Summarize(ctx, n.Title, n.Content)
		if errors.Is(err, llm.ErrNoContent) {
			return retry.Permanent(err)
		}
		summary = s
		return err
	})
	if err != nil {
		logger.Warn("summarization failed, keeping original text", "url", n.URL, "provider", provider, "error", err)
		metrics.Global.IncrementSummaryFallbacks()
		return
	}

	n.Summary = summary
	n.SummarizedBy = SummarizedBy(provider)
	metrics.Global.IncrementSummariesGenerated()
	if p.cache != nil {
		if err := p.cache.PutSummary(n.URL, provider, summary); err != nil {
			logger.Warn("failed to cache summary", "url", n.URL, "error", err)
		}
	}
}

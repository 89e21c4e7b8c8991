package app

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/deusflow/hnsummary/internal/algolia"
	"github.com/deusflow/hnsummary/internal/config"
	"github.com/deusflow/hnsummary/internal/digest"
	"github.com/deusflow/hnsummary/internal/llm"
	"github.com/deusflow/hnsummary/internal/logger"
	"github.com/deusflow/hnsummary/internal/metrics"
	"github.com/deusflow/hnsummary/internal/news"
	"github.com/deusflow/hnsummary/internal/publish"
	"github.com/deusflow/hnsummary/internal/ratelimit"
	"github.com/deusflow/hnsummary/internal/retry"
	"github.com/deusflow/hnsummary/internal/rss"
	"github.com/deusflow/hnsummary/internal/scraper"
	"github.com/deusflow/hnsummary/internal/storage"
	"github.com/deusflow/hnsummary/internal/translate"
)

const day = 24 * time.Hour

// App wires the publishing pipeline: listing, content pulling, rendering.
type App struct {
	cfg       *config.Config
	cache     *storage.Cache
	limiter   *ratelimit.SummaryLimiter
	puller    *news.Puller
	publisher *publish.Publisher
	stories   *algolia.Client
	closers   []func()

	now    func() time.Time
	sample digest.Rand
}

// New builds an App from cfg. Close must be called when done.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	cache, err := storage.Open(cfg.CacheDBPath,
		time.Duration(cfg.SummaryTTLDays)*day,
		time.Duration(cfg.TranslationTTLDays)*day)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache: %w", err)
	}

	a := &App{
		cfg:     cfg,
		cache:   cache,
		limiter: ratelimit.New(cfg.MaxSummaryRequests),
		now:     time.Now,
		sample:  digest.NewRand(cfg.RegenSeed),
	}

	summarizer, err := a.newSummarizer(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	rc := retry.Config{
		MaxAttempts: cfg.RetryAttempts,
		Delay:       cfg.RetryDelay,
		Backoff:     true,
	}
	a.puller = news.NewPuller(news.PullerConfig{
		Fetcher:     scraper.New(cfg.RequestTimeout),
		Summarizer:  summarizer,
		Cache:       cache,
		Limiter:     a.limiter,
		Retry:       rc,
		Concurrency: cfg.ScrapeConcurrency,
	})
	a.stories = algolia.New(cfg.AlgoliaBaseURL, cfg.RequestTimeout, cfg.DailyItems, rc)

	a.publisher, err = publish.New(publish.Config{
		OutputDir:      cfg.OutputDir,
		Site:           cfg.Site,
		FeedAuthor:     cfg.FeedAuthor,
		FeedAuthorURI:  cfg.FeedAuthorURI,
		SummarySize:    cfg.SummarySize,
		ScoreThreshold: cfg.ScoreThreshold,
	}, translate.NewGoogle(cfg.TranslateBaseURL, cfg.RequestTimeout, cache))
	if err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

// newSummarizer returns nil when summaries are disabled.
func (a *App) newSummarizer(ctx context.Context) (llm.Summarizer, error) {
	switch a.cfg.SummaryProvider {
	case config.ProviderNone:
		logger.Info("summaries disabled, publishing original text")
		return nil, nil
	case config.ProviderOpenAI, config.ProviderGemini:
	default:
		return nil, fmt.Errorf("%w: unknown summary provider %q", config.ErrInvalid, a.cfg.SummaryProvider)
	}

	tok, err := llm.NewTiktoken(a.cfg.Tokenizer())
	if err != nil {
		return nil, err
	}
	sanitizer := llm.NewSanitizer(tok, a.cfg.ContextBudget)

	if a.cfg.SummaryProvider == config.ProviderGemini {
		g, err := llm.NewGemini(ctx, a.cfg.GeminiAPIKey, a.cfg.GeminiModel, sanitizer, a.cfg.SummaryMaxTokens)
		if err != nil {
			return nil, fmt.Errorf("failed to create gemini client: %w", err)
		}
		a.closers = append(a.closers, g.Close)
		return g, nil
	}
	return llm.NewOpenAI(a.cfg.OpenAIAPIKey, a.cfg.OpenAIBaseURL, a.cfg.OpenAIModel, sanitizer, a.cfg.SummaryMaxTokens), nil
}

// Close releases the cache and model clients.
func (a *App) Close() {
	for _, c := range a.closers {
		c()
	}
	a.closers = nil
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			logger.Warn("failed to close cache", "error", err)
		}
	}
}

// Run performs a full publishing pass: daily pages, front page, cache expiry.
// Listing articles are pulled once and reused by the daily pages.
func (a *App) Run(ctx context.Context) error {
	start := time.Now()
	defer func() {
		metrics.Global.RecordRun(time.Since(start))
		logger.Info("run finished", metrics.Global.Args()...)
		logger.Info("summary requests", "used", a.limiter.GetStats()["total_used"], "cache_hit_rate", a.limiter.CacheHitRate())
	}()

	items, err := a.fetchListing(ctx)
	if err == nil {
		err = a.puller.PullAll(ctx, items)
	}
	if err != nil {
		metrics.Global.SetError(err.Error())
		return err
	}

	var errs []error
	if err := a.genDaily(ctx, items); err != nil {
		errs = append(errs, fmt.Errorf("daily: %w", err))
	}
	if err := a.genFrontpage(ctx, items); err != nil {
		errs = append(errs, fmt.Errorf("frontpage: %w", err))
	}
	if _, err := a.Expire(); err != nil {
		errs = append(errs, fmt.Errorf("expire: %w", err))
	}

	err = errors.Join(errs...)
	if err != nil {
		metrics.Global.SetError(err.Error())
	}
	return err
}

// GenFrontpage publishes index.html, zh.html and feed.xml from the current listing.
func (a *App) GenFrontpage(ctx context.Context) error {
	items, err := a.fetchListing(ctx)
	if err != nil {
		return err
	}
	return a.genFrontpage(ctx, items)
}

// GenDaily publishes the daily pages when the regeneration policy allows it.
func (a *App) GenDaily(ctx context.Context) error {
	if !a.shouldRegenerateDaily() {
		return nil
	}
	return a.publishDaily(ctx, nil)
}

// Expire drops stale cache entries.
func (a *App) Expire() (int64, error) {
	removed, err := a.cache.Expire()
	if err != nil {
		return 0, err
	}
	logger.Info("expired cache entries", "removed", removed)
	return removed, nil
}

func (a *App) fetchListing(ctx context.Context) ([]*news.News, error) {
	feeds, err := rss.LoadFeeds(a.cfg.FeedsConfigPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load feed list: %w", err)
	}
	feedItems, err := rss.FetchAllFeeds(ctx, feeds, a.cfg.RequestTimeout)
	if err != nil {
		return nil, err
	}
	items := news.FromFeedItems(feedItems)
	logger.Info("fetched listing", "items", len(items))
	return items, nil
}

func (a *App) genFrontpage(ctx context.Context, items []*news.News) error {
	if err := a.puller.PullAll(ctx, items); err != nil {
		return err
	}
	if err := a.publisher.GenPage(ctx, items, "index.html", "en"); err != nil {
		return err
	}
	if err := a.publisher.GenPage(ctx, items, "zh.html", "zh"); err != nil {
		return err
	}
	return a.publisher.GenFeed(items)
}

func (a *App) genDaily(ctx context.Context, items []*news.News) error {
	if !a.shouldRegenerateDaily() {
		return nil
	}
	return a.publishDaily(ctx, items)
}

// shouldRegenerateDaily checks yesterday's page, the last one that is final.
func (a *App) shouldRegenerateDaily() bool {
	yesterday := digest.Yesterday(a.now())
	page := filepath.Join(a.cfg.OutputDir, filepath.FromSlash(digest.PagePath(yesterday)))

	existed := digest.FileOracle(page)()
	regenerate := digest.ShouldRegenerate(func() bool { return existed }, a.sample)
	metrics.Global.RecordDailyDecision(regenerate)

	switch {
	case !existed:
		logger.Info("generating a fresh daily page", "missing", page)
	case regenerate:
		logger.Info("will refresh daily page this time")
	default:
		logger.Info("will not generate daily page this time")
	}
	return regenerate
}

// publishDaily rebuilds the pages of the last closed days from the stories
// submitted on each day. A day whose query fails keeps its current page.
// Content already pulled for the listing is reused.
func (a *App) publishDaily(ctx context.Context, listing []*news.News) error {
	yesterday := digest.Yesterday(a.now())

	var (
		stories []*news.News
		errs    []error
	)
	for i := 0; i < a.cfg.UpdatableWithinDays; i++ {
		date := yesterday.AddDate(0, 0, -i)
		list, err := a.stories.Day(ctx, date)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logger.Warn("keeping daily page", "date", date.Format(time.DateOnly), "error", err)
			errs = append(errs, err)
			continue
		}
		stories = append(stories, list...)
	}

	news.AdoptPulled(stories, listing)
	for _, d := range news.GroupByDay(stories, a.now(), a.cfg.UpdatableWithinDays) {
		if err := a.puller.PullAll(ctx, d.Items); err != nil {
			return err
		}
		if err := a.publisher.GenPage(ctx, d.Items, digest.PagePath(d.Date), "en"); err != nil {
			return err
		}
	}
	return errors.Join(errs...)
}

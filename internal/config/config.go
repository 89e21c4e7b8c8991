// Package config loads publisher settings from the environment and an optional .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
)

// ErrInvalid marks a configuration that cannot be used to start a run.
var ErrInvalid = errors.New("invalid configuration")

// Summary providers.
const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
	ProviderNone   = "none"
)

type Config struct {
	// Output settings
	OutputDir string `env:"OUTPUT_DIR" envDefault:"output"`
	Site      string `env:"SITE" envDefault:"http://localhost:8000"`

	// Feed settings
	FeedsConfigPath string `env:"FEEDS_CONFIG_PATH" envDefault:"configs/feeds.yaml"`
	FeedAuthor      string `env:"FEED_AUTHOR" envDefault:"hnsummary"`
	FeedAuthorURI   string `env:"FEED_AUTHOR_URI"`
	SummarySize     int    `env:"SUMMARY_SIZE" envDefault:"400"`   // runes kept from original-text summaries in the feed
	ScoreThreshold  int    `env:"SCORE_THRESHOLD" envDefault:"20"` // items at or below are left out of the feed

	// Summarizer settings
	SummaryProvider    string `env:"SUMMARY_PROVIDER" envDefault:"openai"` // openai | gemini | none
	OpenAIAPIKey       string `env:"OPENAI_API_KEY"`
	OpenAIModel        string `env:"OPENAI_MODEL" envDefault:"gpt-3.5-turbo"`
	OpenAIBaseURL      string `env:"OPENAI_BASE_URL"`
	GeminiAPIKey       string `env:"GEMINI_API_KEY"`
	GeminiModel        string `env:"GEMINI_MODEL" envDefault:"gemini-1.5-flash"`
	TokenizerModel     string `env:"TOKENIZER_MODEL"` // defaults to OpenAIModel
	ContextBudget      int    `env:"CONTEXT_BUDGET" envDefault:"4096"`
	SummaryMaxTokens   int    `env:"SUMMARY_MAX_TOKENS" envDefault:"256"`
	MaxSummaryRequests int    `env:"MAX_SUMMARY_REQUESTS" envDefault:"0"` // 0 = unlimited

	// Translation settings
	TranslateBaseURL string `env:"TRANSLATE_BASE_URL" envDefault:"https://translate.googleapis.com/translate_a/single"`

	// Daily digest settings
	UpdatableWithinDays int    `env:"UPDATABLE_WITHIN_DAYS" envDefault:"3"`
	RegenSeed           int64  `env:"REGEN_SEED" envDefault:"0"` // 0 = seeded from the clock
	AlgoliaBaseURL      string `env:"ALGOLIA_BASE_URL" envDefault:"https://hn.algolia.com/api/v1"`
	DailyItems          int    `env:"DAILY_ITEMS" envDefault:"30"` // stories per daily page

	// Cache settings
	CacheDBPath        string `env:"CACHE_DB_PATH" envDefault:"data/cache.db"`
	SummaryTTLDays     int    `env:"SUMMARY_TTL_DAYS" envDefault:"30"`
	TranslationTTLDays int    `env:"TRANSLATION_TTL_DAYS" envDefault:"30"`

	// App settings
	Debug             bool          `env:"DEBUG"`
	LogFile           string        `env:"LOG_FILE"`
	RequestTimeout    time.Duration `env:"REQUEST_TIMEOUT" envDefault:"30s"`
	RetryAttempts     int           `env:"RETRY_ATTEMPTS" envDefault:"3"`
	RetryDelay        time.Duration `env:"RETRY_DELAY" envDefault:"5s"`
	ScrapeConcurrency int           `env:"SCRAPE_CONCURRENCY" envDefault:"8"`
}

// Load reads .env (when present) into the process environment, parses the
// environment and validates the result.
func Load() (*Config, error) {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			return nil, fmt.Errorf("failed to load .env: %w", err)
		}
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	cfg.SummaryProvider = strings.ToLower(strings.TrimSpace(cfg.SummaryProvider))
	cfg.Site = strings.TrimRight(cfg.Site, "/")

	return cfg, cfg.Validate()
}

// Tokenizer returns the model identifier that selects the tokenizer.
func (c *Config) Tokenizer() string {
	if c.TokenizerModel != "" {
		return c.TokenizerModel
	}
	return c.OpenAIModel
}

func (c *Config) Validate() error {
	switch c.SummaryProvider {
	case ProviderOpenAI:
		if c.OpenAIAPIKey == "" {
			return fmt.Errorf("%w: OPENAI_API_KEY is required for SUMMARY_PROVIDER=openai", ErrInvalid)
		}
	case ProviderGemini:
		if c.GeminiAPIKey == "" {
			return fmt.Errorf("%w: GEMINI_API_KEY is required for SUMMARY_PROVIDER=gemini", ErrInvalid)
		}
	case ProviderNone:
	default:
		return fmt.Errorf("%w: SUMMARY_PROVIDER must be 'openai', 'gemini' or 'none'", ErrInvalid)
	}
	if c.ContextBudget <= 0 {
		return fmt.Errorf("%w: CONTEXT_BUDGET must be positive", ErrInvalid)
	}
	if c.SummaryMaxTokens < 0 || c.SummaryMaxTokens >= c.ContextBudget {
		return fmt.Errorf("%w: SUMMARY_MAX_TOKENS must be in [0, CONTEXT_BUDGET)", ErrInvalid)
	}
	if c.OutputDir == "" {
		return fmt.Errorf("%w: OUTPUT_DIR is required", ErrInvalid)
	}
	if c.Site == "" {
		return fmt.Errorf("%w: SITE is required", ErrInvalid)
	}
	if c.UpdatableWithinDays < 1 {
		return fmt.Errorf("%w: UPDATABLE_WITHIN_DAYS must be at least 1", ErrInvalid)
	}
	if c.ScrapeConcurrency < 1 {
		c.ScrapeConcurrency = 1
	}
	if c.RetryAttempts < 1 {
		c.RetryAttempts = 1
	}
	return nil
}

package ratelimit

import (
	"errors"
	"fmt"
	"sync"

	"github.com/deusflow/hnsummary/internal/logger"
)

// ErrLimitReached is returned once the per-run request allowance is spent.
var ErrLimitReached = errors.New("summary request limit reached")

// SummaryLimiter caps summarizer requests for one publishing run and keeps
// track of how many were avoided by the summary cache.
type SummaryLimiter struct {
	mu          sync.Mutex
	maxTotal    int // 0 = unlimited
	totalCount  int
	cacheHits   int
	cacheMisses int
	tokensSaved int
}

// New creates a limiter allowing maxTotal requests; zero or less means unlimited.
func New(maxTotal int) *SummaryLimiter {
	if maxTotal < 0 {
		maxTotal = 0
	}
	return &SummaryLimiter{maxTotal: maxTotal}
}

// Use reserves one request for provider.
func (rl *SummaryLimiter) Use(provider string) error {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if rl.maxTotal > 0 && rl.totalCount >= rl.maxTotal {
		return fmt.Errorf("%w (%d/%d)", ErrLimitReached, rl.totalCount, rl.maxTotal)
	}

	rl.totalCount++
	rl.cacheMisses++
	logger.Debug("summary request reserved", "provider", provider, "used", rl.totalCount, "limit", rl.maxTotal)
	return nil
}

// RecordCacheHit records a summary served from cache instead of the model.
func (rl *SummaryLimiter) RecordCacheHit(estimatedTokens int) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.cacheHits++
	rl.tokensSaved += estimatedTokens
}

// CacheHitRate returns the cache hit rate as a percentage.
func (rl *SummaryLimiter) CacheHitRate() float64 {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return rl.hitRate()
}

func (rl *SummaryLimiter) hitRate() float64 {
	total := rl.cacheHits + rl.cacheMisses
	if total == 0 {
		return 0
	}
	return float64(rl.cacheHits) / float64(total) * 100
}

// GetStats returns current limiter statistics.
func (rl *SummaryLimiter) GetStats() map[string]interface{} {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	return map[string]interface{}{
		"total_used":     rl.totalCount,
		"total_limit":    rl.maxTotal,
		"cache_hits":     rl.cacheHits,
		"cache_misses":   rl.cacheMisses,
		"cache_hit_rate": rl.hitRate(),
		"tokens_saved":   rl.tokensSaved,
	}
}

package metrics

import (
	"sync"
	"time"
)

// Metrics counts what a publishing run did.
type Metrics struct {
	mu sync.RWMutex

	// Counters
	ItemsPulled         int64
	SummariesGenerated  int64
	SummaryFallbacks    int64
	SummaryCacheHits    int64
	PagesWritten        int64
	PagesSkipped        int64
	BytesWritten        int64
	DailyRegenerations  int64
	DailySkips          int64
	TranslationFailures int64

	// Timings
	LastRunDuration time.Duration

	// Status
	LastRunTime   time.Time
	LastErrorTime time.Time
	LastError     string
}

var Global = &Metrics{}

func (m *Metrics) IncrementItemsPulled() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ItemsPulled++
}

func (m *Metrics) IncrementSummariesGenerated() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SummariesGenerated++
}

func (m *Metrics) IncrementSummaryFallbacks() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SummaryFallbacks++
}

func (m *Metrics) IncrementSummaryCacheHits() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SummaryCacheHits++
}

func (m *Metrics) IncrementTranslationFailures() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.TranslationFailures++
}

// RecordPage records one written page or feed of n bytes.
func (m *Metrics) RecordPage(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PagesWritten++
	m.BytesWritten += int64(n)
}

// RecordSkippedPage records a page left untouched because it had no items.
func (m *Metrics) RecordSkippedPage() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PagesSkipped++
}

// RecordDailyDecision records the outcome of the daily regeneration check.
func (m *Metrics) RecordDailyDecision(regenerate bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if regenerate {
		m.DailyRegenerations++
	} else {
		m.DailySkips++
	}
}

func (m *Metrics) RecordRun(duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LastRunDuration = duration
	m.LastRunTime = time.Now()
}

func (m *Metrics) SetError(err string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LastError = err
	m.LastErrorTime = time.Now()
}

// Args flattens the counters into slog key/value pairs.
func (m *Metrics) Args() []any {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return []any{
		"items_pulled", m.ItemsPulled,
		"summaries_generated", m.SummariesGenerated,
		"summary_fallbacks", m.SummaryFallbacks,
		"summary_cache_hits", m.SummaryCacheHits,
		"pages_written", m.PagesWritten,
		"pages_skipped", m.PagesSkipped,
		"bytes_written", m.BytesWritten,
		"daily_regenerations", m.DailyRegenerations,
		"daily_skips", m.DailySkips,
		"translation_failures", m.TranslationFailures,
		"last_run_ms", m.LastRunDuration.Milliseconds(),
		"last_error", m.LastError,
	}
}

func (m *Metrics) GetStats() map[string]interface{} {
	args := m.Args()
	stats := make(map[string]interface{}, len(args)/2)
	for i := 0; i+1 < len(args); i += 2 {
		stats[args[i].(string)] = args[i+1]
	}
	return stats
}

package storage

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/deusflow/hnsummary/internal/logger"
	_ "modernc.org/sqlite"
)

// Cache keeps model summaries and translations between runs so a page rebuild
// does not pay for the same request twice.
type Cache struct {
	db             *sql.DB
	summaryTTL     time.Duration
	translationTTL time.Duration
	now            func() time.Time
}

// Open opens (or creates) the SQLite cache at path.
func Open(path string, summaryTTL, translationTTL time.Duration) (*Cache, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create cache directory: %w", err)
		}
	}

	dsn := path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}

	c := &Cache{
		db:             db,
		summaryTTL:     summaryTTL,
		translationTTL: translationTTL,
		now:            time.Now,
	}

	if err := c.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return c, nil
}

// initSchema creates the necessary tables if they don't exist
func (c *Cache) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS summary_cache (
		url        TEXT NOT NULL,
		provider   TEXT NOT NULL,
		summary    TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		PRIMARY KEY (url, provider)
	);

	CREATE INDEX IF NOT EXISTS idx_summary_cache_created_at ON summary_cache(created_at);

	CREATE TABLE IF NOT EXISTS translation_cache (
		text_hash  TEXT NOT NULL,
		lang       TEXT NOT NULL,
		translated TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		PRIMARY KEY (text_hash, lang)
	);

	CREATE INDEX IF NOT EXISTS idx_translation_cache_created_at ON translation_cache(created_at);
	`

	_, err := c.db.Exec(schema)
	return err
}

// Close closes the database connection
func (c *Cache) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// GetSummary returns a cached summary for url made by provider, if still fresh.
func (c *Cache) GetSummary(url, provider string) (string, bool) {
	cutoff := c.now().Add(-c.summaryTTL).Unix()

	var summary string
	err := c.db.QueryRow(
		`SELECT summary FROM summary_cache WHERE url = ? AND provider = ? AND created_at > ?`,
		url, provider, cutoff,
	).Scan(&summary)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			logger.Warn("summary cache lookup failed", "url", url, "error", err)
		}
		return "", false
	}
	return summary, true
}

// PutSummary stores a summary, replacing any previous one.
func (c *Cache) PutSummary(url, provider, summary string) error {
	_, err := c.db.Exec(`
		INSERT INTO summary_cache (url, provider, summary, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (url, provider) DO UPDATE SET
			summary = excluded.summary,
			created_at = excluded.created_at
	`, url, provider, summary, c.now().Unix())
	if err != nil {
		return fmt.Errorf("failed to set summary cache: %w", err)
	}
	return nil
}

// GetTranslation returns a cached translation of text into lang, if still fresh.
func (c *Cache) GetTranslation(text, lang string) (string, bool) {
	cutoff := c.now().Add(-c.translationTTL).Unix()

	var translated string
	err := c.db.QueryRow(
		`SELECT translated FROM translation_cache WHERE text_hash = ? AND lang = ? AND created_at > ?`,
		TextHash(text), lang, cutoff,
	).Scan(&translated)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			logger.Warn("translation cache lookup failed", "lang", lang, "error", err)
		}
		return "", false
	}
	return translated, true
}

// PutTranslation stores a translation, replacing any previous one.
func (c *Cache) PutTranslation(text, lang, translated string) error {
	_, err := c.db.Exec(`
		INSERT INTO translation_cache (text_hash, lang, translated, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (text_hash, lang) DO UPDATE SET
			translated = excluded.translated,
			created_at = excluded.created_at
	`, TextHash(text), lang, translated, c.now().Unix())
	if err != nil {
		return fmt.Errorf("failed to set translation cache: %w", err)
	}
	return nil
}

// Expire removes summaries and translations older than their TTLs and
// returns how many rows were deleted.
func (c *Cache) Expire() (int64, error) {
	now := c.now()

	var removed int64
	for _, q := range []struct {
		query  string
		cutoff int64
	}{
		{`DELETE FROM summary_cache WHERE created_at <= ?`, now.Add(-c.summaryTTL).Unix()},
		{`DELETE FROM translation_cache WHERE created_at <= ?`, now.Add(-c.translationTTL).Unix()},
	} {
		result, err := c.db.Exec(q.query, q.cutoff)
		if err != nil {
			return removed, fmt.Errorf("failed to expire cache: %w", err)
		}
		rows, _ := result.RowsAffected()
		removed += rows
	}

	return removed, nil
}

// GetStats returns cache statistics
func (c *Cache) GetStats() (map[string]int, error) {
	stats := make(map[string]int)

	for key, query := range map[string]string{
		"summaries":    `SELECT COUNT(*) FROM summary_cache`,
		"translations": `SELECT COUNT(*) FROM translation_cache`,
	} {
		var n int
		if err := c.db.QueryRow(query).Scan(&n); err != nil {
			return nil, err
		}
		stats[key] = n
	}
	return stats, nil
}

// TextHash creates a stable key for text: whitespace-normalized, then SHA-256.
func TextHash(text string) string {
	normalized := strings.Join(strings.Fields(text), " ")
	h := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(h[:])
}

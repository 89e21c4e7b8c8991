// Package digest decides when the daily digest page is rebuilt.
//
// A daily page for a closed day rarely changes, but rebuilding it means
// re-fetching and re-summarizing every item. Instead of tracking when a page
// was last attempted, each run flips a coin once the page exists.
package digest

import (
	"math/rand"
	"os"
	"path"
	"time"
)

// refreshProbability is the chance that an existing page is rebuilt.
const refreshProbability = 0.5

// Oracle reports whether a finalized page already exists for the digest date.
type Oracle func() bool

// Rand returns a uniform sample in [0, 1).
type Rand func() float64

// ShouldRegenerate reports whether the digest should be rebuilt. A missing
// page is always built; an existing one is rebuilt when sample() < 0.5.
// It keeps no state between calls.
func ShouldRegenerate(exists Oracle, sample Rand) bool {
	if !exists() {
		return true
	}
	return sample() < refreshProbability
}

// Yesterday returns the start of the UTC day before now.
func Yesterday(now time.Time) time.Time {
	y, m, d := now.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -1)
}

// PagePath is the slash-separated path of the digest page for date, relative
// to the output directory.
func PagePath(date time.Time) string {
	return path.Join("daily", date.UTC().Format("2006-01-02"), "index.html")
}

// FileOracle probes the filesystem for name.
func FileOracle(name string) Oracle {
	return func() bool {
		_, err := os.Stat(name)
		return err == nil
	}
}

// NewRand returns a seeded sample source. A zero seed uses the clock.
// The returned function must not be shared between goroutines.
func NewRand(seed int64) Rand {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return rand.New(rand.NewSource(seed)).Float64
}

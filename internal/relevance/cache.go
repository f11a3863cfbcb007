package relevance

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/renameio/v2"
)

// CacheFile is the relevance cache file name under the state dir.
const CacheFile = "relevance-cache.json"

// CacheTTL is how long a cached scoring stays valid.
const CacheTTL = 7 * 24 * time.Hour

// DefaultJaccardThreshold is the token-overlap ratio at which a cached
// query is close enough to reuse.
const DefaultJaccardThreshold = 0.8

// cacheEntry is one persisted scoring result.
type cacheEntry struct {
	QueryTokens []string       `json:"query_tokens"`
	Fingerprint string         `json:"fingerprint"`
	Scores      map[string]int `json:"scores"`
	CreatedAt   string         `json:"created_at"`
}

// Cache persists external scoring results keyed by query and corpus.
type Cache struct {
	path      string
	threshold float64

	now func() time.Time
}

// NewCache returns a cache stored under stateDir. A non-positive threshold
// falls back to the default.
func NewCache(stateDir string, jaccardThreshold float64) *Cache {
	if jaccardThreshold <= 0 {
		jaccardThreshold = DefaultJaccardThreshold
	}
	return &Cache{
		path:      filepath.Join(stateDir, CacheFile),
		threshold: jaccardThreshold,
		now:       time.Now,
	}
}

// Fingerprint identifies a lesson corpus by its sorted ID set.
func Fingerprint(ids []string) string {
	sorted := append([]string(nil), ids...)
	sort.Strings(sorted)
	sum := sha1.Sum([]byte(strings.Join(sorted, ",")))
	return hex.EncodeToString(sum[:])
}

// Key derives the exact-match cache key from query tokens and the corpus
// fingerprint.
func Key(queryTokens []string, fingerprint string) string {
	sorted := append([]string(nil), queryTokens...)
	sort.Strings(sorted)
	sum := sha1.Sum([]byte(strings.Join(sorted, " ") + "|" + fingerprint))
	return hex.EncodeToString(sum[:])
}

// Get returns the cached per-lesson scores for the query, trying the exact
// key first and then any unexpired entry for the same corpus whose query
// tokens are Jaccard-similar beyond the threshold.
func (c *Cache) Get(queryTokens []string, fingerprint string) (map[string]int, bool) {
	entries := c.read()
	now := c.now()

	if e, ok := entries[Key(queryTokens, fingerprint)]; ok && !c.expired(e, now) {
		return e.Scores, true
	}
	for _, e := range entries {
		if e.Fingerprint != fingerprint || c.expired(e, now) {
			continue
		}
		if jaccard(queryTokens, e.QueryTokens) >= c.threshold {
			return e.Scores, true
		}
	}
	return nil, false
}

// Put stores a scoring result and evicts expired entries.
func (c *Cache) Put(queryTokens []string, fingerprint string, scores map[string]int) error {
	entries := c.read()
	now := c.now()
	for k, e := range entries {
		if c.expired(e, now) {
			delete(entries, k)
		}
	}
	entries[Key(queryTokens, fingerprint)] = cacheEntry{
		QueryTokens: queryTokens,
		Fingerprint: fingerprint,
		Scores:      scores,
		CreatedAt:   now.UTC().Format(time.RFC3339),
	}
	return c.write(entries)
}

func (c *Cache) expired(e cacheEntry, now time.Time) bool {
	t, err := time.Parse(time.RFC3339, e.CreatedAt)
	if err != nil {
		return true
	}
	return now.Sub(t) > CacheTTL
}

// jaccard computes |A∩B| / |A∪B| over token sets. Two empty sets count as
// identical.
func jaccard(a, b []string) float64 {
	as := map[string]bool{}
	for _, t := range a {
		as[t] = true
	}
	bs := map[string]bool{}
	for _, t := range b {
		bs[t] = true
	}
	if len(as) == 0 && len(bs) == 0 {
		return 1
	}
	inter := 0
	for t := range as {
		if bs[t] {
			inter++
		}
	}
	union := len(as) + len(bs) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

func (c *Cache) read() map[string]cacheEntry {
	entries := map[string]cacheEntry{}
	data, err := os.ReadFile(c.path)
	if err != nil {
		return entries
	}
	_ = json.Unmarshal(data, &entries)
	return entries
}

func (c *Cache) write(entries map[string]cacheEntry) error {
	if err := os.MkdirAll(filepath.Dir(c.path), 0o700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal relevance cache: %w", err)
	}
	return renameio.WriteFile(c.path, append(data, '\n'), 0o600)
}

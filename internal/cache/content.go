// Package cache holds the two fetch-avoidance caches: descriptions keyed by
// URL (disk-backed) and AI suggestions keyed by request fingerprint (memory
// only). Both use soft expiry — stale entries read as misses but are only
// removed when overwritten.
package cache

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"
)

const contentMaxAge = 7 * 24 * time.Hour

// Entry is one cached description.
type Entry struct {
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
	SourceURL string    `json:"sourceUrl"`
}

// ContentCache maps hashed URLs to fetched description text. A single mutex
// guards lookup and store; contention is negligible next to network latency.
type ContentCache struct {
	mu      sync.Mutex
	entries map[string]Entry
}

// NewContentCache returns an empty cache.
func NewContentCache() *ContentCache {
	return &ContentCache{entries: make(map[string]Entry)}
}

// Lookup returns the cached description for url, treating entries older than
// the freshness window as absent without removing them.
func (c *ContentCache) Lookup(url string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[urlKey(url)]
	if !ok {
		return "", false
	}
	if time.Since(entry.Timestamp) >= contentMaxAge {
		return "", false
	}
	return entry.Text, true
}

// Store records a freshly fetched description, overwriting any stale entry
// for the same URL.
func (c *ContentCache) Store(url, text string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[urlKey(url)] = Entry{
		Text:      text,
		Timestamp: time.Now(),
		SourceURL: url,
	}
}

// Len reports the number of entries, fresh or stale.
func (c *ContentCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Load merges the snapshot at path into the cache, keeping the newer entry
// per key. Merging rather than replacing matters because the cache is shared:
// a concurrent run loading the snapshot must not discard entries this run has
// stored but not yet saved. A missing file is not an error — first runs start
// cold.
func (c *ContentCache) Load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("cache: read %s: %w", path, err)
	}

	loaded := make(map[string]Entry)
	if err := json.Unmarshal(data, &loaded); err != nil {
		return fmt.Errorf("cache: parse %s: %w", path, err)
	}

	c.mu.Lock()
	for key, entry := range loaded {
		if current, ok := c.entries[key]; ok && current.Timestamp.After(entry.Timestamp) {
			continue
		}
		c.entries[key] = entry
	}
	c.mu.Unlock()
	return nil
}

// Save writes the whole cache to path in one shot. It is called once at
// pipeline end, so a crash mid-run loses only that run's new entries.
func (c *ContentCache) Save(path string) error {
	c.mu.Lock()
	data, err := json.Marshal(c.entries)
	c.mu.Unlock()
	if err != nil {
		return fmt.Errorf("cache: encode: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("cache: write %s: %w", path, err)
	}
	return nil
}

func urlKey(url string) string {
	sum := md5.Sum([]byte(url))
	return hex.EncodeToString(sum[:])
}

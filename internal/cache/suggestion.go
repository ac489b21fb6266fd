package cache

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"sync"
	"time"
)

const (
	suggestionMaxAge = 24 * time.Hour
	fingerprintChars = 1000
)

type suggestionEntry struct {
	suggestions string
	timestamp   time.Time
}

// SuggestionCache maps request fingerprints to generated AI output. Unlike
// the content cache it is never persisted — suggestions go stale with the
// market and a cold start is cheap relative to one model call per day.
type SuggestionCache struct {
	mu      sync.Mutex
	entries map[string]suggestionEntry
}

// NewSuggestionCache returns an empty cache.
func NewSuggestionCache() *SuggestionCache {
	return &SuggestionCache{entries: make(map[string]suggestionEntry)}
}

// Fingerprint derives the cache key for one suggestion request from the job
// title, country, and the first 1000 characters of the combined text.
func Fingerprint(jobTitle, country, combinedText string) string {
	if len(combinedText) > fingerprintChars {
		combinedText = combinedText[:fingerprintChars]
	}
	sum := md5.Sum([]byte(fmt.Sprintf("%s_%s_%s", jobTitle, country, combinedText)))
	return hex.EncodeToString(sum[:])
}

// Lookup returns the cached suggestions for key if stored within the last
// 24 hours.
func (c *SuggestionCache) Lookup(key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return "", false
	}
	if time.Since(entry.timestamp) >= suggestionMaxAge {
		return "", false
	}
	return entry.suggestions, true
}

// Store records the output of a successful model call.
func (c *SuggestionCache) Store(key, suggestions string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = suggestionEntry{suggestions: suggestions, timestamp: time.Now()}
}

package cache

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ── ContentCache ───────────────────────────────────────────────────────────

func TestContentCache_StoreLookup(t *testing.T) {
	c := NewContentCache()

	_, ok := c.Lookup("https://example.com/jobs/1")
	assert.False(t, ok, "empty cache should miss")

	c.Store("https://example.com/jobs/1", "a long description")

	text, ok := c.Lookup("https://example.com/jobs/1")
	require.True(t, ok)
	assert.Equal(t, "a long description", text)

	_, ok = c.Lookup("https://example.com/jobs/2")
	assert.False(t, ok, "different URL should miss")
}

func TestContentCache_StaleEntryIsMiss(t *testing.T) {
	c := NewContentCache()
	c.Store("https://example.com/jobs/1", "old text")

	// Backdate past the freshness window.
	key := urlKey("https://example.com/jobs/1")
	entry := c.entries[key]
	entry.Timestamp = time.Now().Add(-8 * 24 * time.Hour)
	c.entries[key] = entry

	_, ok := c.Lookup("https://example.com/jobs/1")
	assert.False(t, ok, "entry past the freshness window should read as a miss")
	assert.Equal(t, 1, c.Len(), "stale entry must not be eagerly deleted")
}

func TestContentCache_StoreOverwritesStale(t *testing.T) {
	c := NewContentCache()
	c.Store("https://example.com/jobs/1", "old text")

	key := urlKey("https://example.com/jobs/1")
	entry := c.entries[key]
	entry.Timestamp = time.Now().Add(-8 * 24 * time.Hour)
	c.entries[key] = entry

	c.Store("https://example.com/jobs/1", "new text")

	text, ok := c.Lookup("https://example.com/jobs/1")
	require.True(t, ok)
	assert.Equal(t, "new text", text)
	assert.Equal(t, 1, c.Len(), "at most one entry per URL hash")
}

func TestContentCache_SaveLoadRoundtrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "descriptions.json")

	c := NewContentCache()
	c.Store("https://example.com/jobs/1", "first")
	c.Store("https://example.com/jobs/2", "second")
	require.NoError(t, c.Save(path))

	loaded := NewContentCache()
	require.NoError(t, loaded.Load(path))
	assert.Equal(t, 2, loaded.Len())

	text, ok := loaded.Lookup("https://example.com/jobs/1")
	require.True(t, ok)
	assert.Equal(t, "first", text)
}

func TestContentCache_LoadKeepsUnsavedEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "descriptions.json")

	c := NewContentCache()
	require.NoError(t, c.Save(path)) // empty snapshot on disk

	// Another run stores between this run's Save and the next Load.
	c.Store("https://example.com/jobs/1", "fetched mid-run")
	require.NoError(t, c.Load(path))

	text, ok := c.Lookup("https://example.com/jobs/1")
	require.True(t, ok, "entry stored by the in-flight run must survive a concurrent run's Load")
	assert.Equal(t, "fetched mid-run", text)
}

func TestContentCache_LoadPrefersNewerEntry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "descriptions.json")

	onDisk := NewContentCache()
	onDisk.Store("https://example.com/jobs/1", "newer from disk")
	require.NoError(t, onDisk.Save(path))

	c := NewContentCache()
	c.Store("https://example.com/jobs/1", "older in memory")
	key := urlKey("https://example.com/jobs/1")
	entry := c.entries[key]
	entry.Timestamp = time.Now().Add(-time.Hour)
	c.entries[key] = entry

	require.NoError(t, c.Load(path))
	text, ok := c.Lookup("https://example.com/jobs/1")
	require.True(t, ok)
	assert.Equal(t, "newer from disk", text, "the newer timestamp wins regardless of direction")
}

func TestContentCache_LoadMissingFile(t *testing.T) {
	c := NewContentCache()
	err := c.Load(filepath.Join(t.TempDir(), "nope.json"))
	assert.NoError(t, err, "first runs start cold, missing snapshot is not an error")
	assert.Equal(t, 0, c.Len())
}

// ── SuggestionCache ────────────────────────────────────────────────────────

func TestFingerprint_Deterministic(t *testing.T) {
	a := Fingerprint("Data Analyst", "United Kingdom", "some combined text")
	b := Fingerprint("Data Analyst", "United Kingdom", "some combined text")
	assert.Equal(t, a, b)

	c := Fingerprint("Data Analyst", "France", "some combined text")
	assert.NotEqual(t, a, c, "country must be part of the fingerprint")
}

func TestFingerprint_OnlyLeadingTextMatters(t *testing.T) {
	prefix := make([]byte, fingerprintChars)
	for i := range prefix {
		prefix[i] = 'x'
	}

	a := Fingerprint("Dev", "US", string(prefix)+"tail one")
	b := Fingerprint("Dev", "US", string(prefix)+"completely different tail")
	assert.Equal(t, a, b, "text beyond the first 1000 chars must not change the key")
}

func TestSuggestionCache_StoreLookup(t *testing.T) {
	c := NewSuggestionCache()
	key := Fingerprint("Dev", "US", "text")

	_, ok := c.Lookup(key)
	assert.False(t, ok)

	c.Store(key, "1. Build a dashboard")

	got, ok := c.Lookup(key)
	require.True(t, ok)
	assert.Equal(t, "1. Build a dashboard", got)
}

func TestSuggestionCache_ExpiredEntryIsMiss(t *testing.T) {
	c := NewSuggestionCache()
	key := Fingerprint("Dev", "US", "text")
	c.Store(key, "stale suggestions")

	entry := c.entries[key]
	entry.timestamp = time.Now().Add(-25 * time.Hour)
	c.entries[key] = entry

	_, ok := c.Lookup(key)
	assert.False(t, ok, "entries older than 24h should read as a miss")
}

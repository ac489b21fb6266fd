// Package config loads and validates environment variables at startup.
// Fail-fast: if a required variable is missing, the process exits.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// RefreshQuery is one (title, country) pair the background scheduler re-runs.
type RefreshQuery struct {
	JobTitle string
	Country  string
}

// Config holds all runtime configuration for jobscout.
type Config struct {
	Port             string
	DatabaseURL      string
	RedisURL         string
	OpenRouterAPIKey string
	OpenRouterModel  string
	AdzunaAppID      string
	AdzunaAppKey     string
	AdzunaCountry    string // e.g. "gb", "us", "fr"

	BrowserPoolSize int    // headless sessions kept alive for description fetching
	FetchWorkers    int    // concurrent description fetches
	FetchTarget     int    // quality descriptions to collect before stopping early
	CachePath       string // disk snapshot of the description cache

	RefreshIntervalHours int // how often the background refresh fires
	RefreshQueries       []RefreshQuery

	RedFlags []string // exclusion terms — any match discards the listing
}

// Load reads environment variables and returns a validated Config.
func Load() (*Config, error) {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		return nil, fmt.Errorf("REDIS_URL is required")
	}

	apiKey := os.Getenv("OPENROUTER_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("OPENROUTER_API_KEY is required")
	}

	model := os.Getenv("OPENROUTER_MODEL")
	if model == "" {
		model = "qwen/qwen-2.5-72b-instruct:free"
	}

	poolSize, err := positiveIntEnv("BROWSER_POOL_SIZE", 3)
	if err != nil {
		return nil, err
	}

	workers, err := positiveIntEnv("FETCH_WORKERS", 3)
	if err != nil {
		return nil, err
	}

	target, err := positiveIntEnv("FETCH_TARGET", 8)
	if err != nil {
		return nil, err
	}

	interval, err := positiveIntEnv("REFRESH_INTERVAL_HOURS", 6)
	if err != nil {
		return nil, err
	}

	country := os.Getenv("ADZUNA_COUNTRY")
	if country == "" {
		country = "gb"
	}

	cachePath := os.Getenv("DESCRIPTION_CACHE_PATH")
	if cachePath == "" {
		cachePath = "description_cache.json"
	}

	port := os.Getenv("JOBSCOUT_PORT")
	if port == "" {
		port = "8080"
	}

	return &Config{
		Port:                 port,
		DatabaseURL:          dbURL,
		RedisURL:             redisURL,
		OpenRouterAPIKey:     apiKey,
		OpenRouterModel:      model,
		AdzunaAppID:          os.Getenv("ADZUNA_APP_ID"),
		AdzunaAppKey:         os.Getenv("ADZUNA_APP_KEY"),
		AdzunaCountry:        country,
		BrowserPoolSize:      poolSize,
		FetchWorkers:         workers,
		FetchTarget:          target,
		CachePath:            cachePath,
		RefreshIntervalHours: interval,
		RefreshQueries:       parseRefreshQueries(os.Getenv("REFRESH_QUERIES")),
		RedFlags:             splitList(os.Getenv("RED_FLAGS")),
	}, nil
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func positiveIntEnv(name string, def int) (int, error) {
	s := os.Getenv(name)
	if s == "" {
		return def, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 1 {
		return 0, fmt.Errorf("%s must be a positive integer, got %q", name, s)
	}
	return v, nil
}

// parseRefreshQueries parses "title|country;title|country". Malformed pairs
// are skipped rather than fatal — the refresh list is advisory.
func parseRefreshQueries(raw string) []RefreshQuery {
	if raw == "" {
		return nil
	}
	var queries []RefreshQuery
	for _, pair := range strings.Split(raw, ";") {
		parts := strings.SplitN(pair, "|", 2)
		if len(parts) != 2 {
			continue
		}
		title := strings.TrimSpace(parts[0])
		country := strings.TrimSpace(parts[1])
		if title == "" || country == "" {
			continue
		}
		queries = append(queries, RefreshQuery{JobTitle: title, Country: country})
	}
	return queries
}

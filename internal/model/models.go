// Package model defines shared data structures for jobscout.
package model

import "time"

// JobListing is a normalised job offer flowing through the pipeline.
// Link is the unique key in the job_listings table.
type JobListing struct {
	Title       string    `json:"title"`
	Company     string    `json:"company"`
	Location    string    `json:"location"`
	Link        string    `json:"link"`
	Description string    `json:"description"` // short teaser from the listing source
	FullText    string    `json:"-"`           // enriched description, fetched or cached
	ScrapedAt   time.Time `json:"scrapedAt"`
}

// Result is the successful outcome of one pipeline run.
type Result struct {
	Suggestions            string  `json:"suggestions"`
	JobsAnalyzed           int     `json:"jobsAnalyzed"`
	QualityDescriptions    int     `json:"qualityDescriptions"`
	HistoricalJobsUsed     int     `json:"historicalJobsUsed"`
	CachedDescriptionsUsed int     `json:"cachedDescriptionsUsed"`
	NewlyFetched           int     `json:"newlyFetched"`
	TotalTimeSeconds       float64 `json:"totalTimeSeconds"`
	AITimeSeconds          float64 `json:"aiTimeSeconds"`
}

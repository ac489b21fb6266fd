// Package store wraps the job_listings table: the description lookups the
// pipeline deduplicates against, and the batch upsert that writes enriched
// listings back.
package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"jobscout/internal/model"
)

// minStoredDescriptionLen filters out teaser-only rows when reading
// descriptions back; anything shorter is not worth reusing.
const minStoredDescriptionLen = 300

// Store provides access to the job_listings table.
type Store struct {
	pool *pgxpool.Pool
}

// New returns a Store over the given connection pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// EnsureSchema creates the job_listings table if it does not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS job_listings (
			id SERIAL PRIMARY KEY,
			title TEXT,
			company TEXT,
			location TEXT,
			link TEXT UNIQUE,
			description TEXT,
			scraped_at TIMESTAMP
		)`)
	if err != nil {
		return fmt.Errorf("create job_listings: %w", err)
	}
	return nil
}

// ExistingDescriptions returns link → description for every given link that
// already has a quality description scraped within the last 7 days. Links
// are matched case-sensitively.
func (s *Store) ExistingDescriptions(ctx context.Context, links []string) (map[string]string, error) {
	existing := make(map[string]string)
	if len(links) == 0 {
		return existing, nil
	}

	rows, err := s.pool.Query(ctx, `
		SELECT link, description FROM job_listings
		WHERE link = ANY($1)
		  AND LENGTH(description) > $2
		  AND scraped_at > NOW() - INTERVAL '7 days'`,
		links, minStoredDescriptionLen,
	)
	if err != nil {
		return nil, fmt.Errorf("query existing descriptions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var link, description string
		if err := rows.Scan(&link, &description); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		existing[link] = description
	}

	return existing, rows.Err()
}

// HistoricalDescriptions returns up to 10 quality descriptions from past runs
// whose title contains jobTitle as a literal substring (case-insensitive),
// newest first.
func (s *Store) HistoricalDescriptions(ctx context.Context, jobTitle string) ([]string, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT description FROM job_listings
		WHERE title ILIKE $1
		  AND LENGTH(description) > $2
		ORDER BY scraped_at DESC
		LIMIT 10`,
		likePattern(jobTitle), minStoredDescriptionLen,
	)
	if err != nil {
		return nil, fmt.Errorf("query historical descriptions: %w", err)
	}
	defer rows.Close()

	var descriptions []string
	for rows.Next() {
		var description string
		if err := rows.Scan(&description); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		if description != "" {
			descriptions = append(descriptions, description)
		}
	}

	return descriptions, rows.Err()
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// likePattern wraps s in ILIKE wildcards, escaping the metacharacters so
// user-supplied titles match literally.
func likePattern(s string) string {
	return "%" + likeEscaper.Replace(s) + "%"
}

// UpsertListings writes listings in one batch, keyed by link. Re-running with
// identical rows leaves the row count unchanged — a conflict only overwrites
// description and scraped_at.
func (s *Store) UpsertListings(ctx context.Context, listings []model.JobListing) (int, error) {
	if len(listings) == 0 {
		return 0, nil
	}

	batch := &pgx.Batch{}
	for _, l := range listings {
		batch.Queue(`
			INSERT INTO job_listings (title, company, location, link, description, scraped_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (link) DO UPDATE SET
				description = EXCLUDED.description,
				scraped_at = EXCLUDED.scraped_at`,
			l.Title, l.Company, l.Location, l.Link, l.FullText, l.ScrapedAt,
		)
	}

	results := s.pool.SendBatch(ctx, batch)
	defer results.Close()

	written := 0
	for range listings {
		if _, err := results.Exec(); err != nil {
			return written, fmt.Errorf("upsert listing: %w", err)
		}
		written++
	}

	return written, nil
}

// Package pipeline orchestrates one suggestion run: search listings, reuse
// stored descriptions, fetch the missing ones in parallel, persist, and ask
// the model for portfolio project suggestions.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/phuslu/log"

	"jobscout/internal/cache"
	"jobscout/internal/model"
)

var (
	// ErrNoListings means the listing source returned nothing to analyze.
	ErrNoListings = errors.New("no jobs scraped")

	// ErrNoDescriptions means neither fresh nor historical descriptions
	// passed the quality threshold.
	ErrNoDescriptions = errors.New("no valid job descriptions to analyze")
)

const (
	// qualityDescriptionLen is the threshold for a description to count as
	// analyzable, matching the store's read-back filter.
	qualityDescriptionLen = 300

	// maxFreshForPrompt / maxHistoricalForPrompt bound how many descriptions
	// of each kind feed the combined prompt text.
	maxFreshForPrompt      = 5
	maxHistoricalForPrompt = 5
)

// ListingSource emits job listings for a (title, location) query.
type ListingSource interface {
	Search(ctx context.Context, jobTitle, country string) ([]model.JobListing, error)
}

// DescriptionScheduler fetches full descriptions for a set of links.
type DescriptionScheduler interface {
	FetchMany(ctx context.Context, links []string, target, maxWorkers int) map[string]string
}

// Suggester generates portfolio suggestions from combined description text.
type Suggester interface {
	Suggest(ctx context.Context, combinedText, jobTitle, country string) (string, error)
}

// Storage is the slice of the store the pipeline depends on.
type Storage interface {
	ExistingDescriptions(ctx context.Context, links []string) (map[string]string, error)
	HistoricalDescriptions(ctx context.Context, jobTitle string) ([]string, error)
	UpsertListings(ctx context.Context, listings []model.JobListing) (int, error)
}

// Options wires a Pipeline.
type Options struct {
	Source       ListingSource
	Store        Storage
	Scheduler    DescriptionScheduler
	Suggester    Suggester
	ContentCache *cache.ContentCache
	CachePath    string
	FetchTarget  int
	FetchWorkers int
	RedFlags     []string
}

// Pipeline runs the scrape → enrich → suggest flow. All collaborators are
// injected; the pipeline itself holds no connections or sessions.
type Pipeline struct {
	opts Options
}

// New returns a Pipeline over the given collaborators.
func New(opts Options) *Pipeline {
	if opts.FetchTarget <= 0 {
		opts.FetchTarget = 8
	}
	if opts.FetchWorkers <= 0 {
		opts.FetchWorkers = 3
	}
	return &Pipeline{opts: opts}
}

// Run executes one pipeline run. It returns either a Result or an error with
// one explanatory message — per-link fetch failures and non-fatal store
// hiccups are logged and absorbed, never raised.
func (p *Pipeline) Run(ctx context.Context, jobTitle, country string) (*model.Result, error) {
	start := time.Now()
	runID := uuid.NewString()[:8]
	log.Info().Str("run_id", runID).Str("job_title", jobTitle).Str("country", country).Msg("Pipeline run started")

	if p.opts.CachePath != "" {
		if err := p.opts.ContentCache.Load(p.opts.CachePath); err != nil {
			log.Warn().Err(err).Msg("Could not load description cache, starting cold")
		} else {
			log.Info().Int("entries", p.opts.ContentCache.Len()).Msg("Loaded description cache")
		}
		defer func() {
			if err := p.opts.ContentCache.Save(p.opts.CachePath); err != nil {
				log.Warn().Err(err).Msg("Could not save description cache")
			}
		}()
	}

	listings, err := p.opts.Source.Search(ctx, jobTitle, country)
	if err != nil {
		return nil, fmt.Errorf("listing search: %w", err)
	}
	listings = filterListings(listings, p.opts.RedFlags)
	if len(listings) == 0 {
		return nil, ErrNoListings
	}
	log.Info().Str("run_id", runID).Int("listings", len(listings)).Dur("elapsed", time.Since(start)).Msg("Listings scraped")

	links := make([]string, 0, len(listings))
	for _, l := range listings {
		if l.Link != "" {
			links = append(links, l.Link)
		}
	}

	existing, err := p.opts.Store.ExistingDescriptions(ctx, links)
	if err != nil {
		log.Warn().Err(err).Msg("Could not check existing descriptions")
		existing = make(map[string]string)
	} else if len(existing) > 0 {
		log.Info().Int("existing", len(existing)).Msg("Found stored descriptions to reuse")
	}

	var toFetch []string
	for _, link := range links {
		if _, ok := existing[link]; !ok {
			toFetch = append(toFetch, link)
		}
	}

	fetched := make(map[string]string)
	if len(toFetch) > 0 {
		target := min(p.opts.FetchTarget, len(toFetch))
		log.Info().Str("run_id", runID).Int("links", len(toFetch)).Int("target", target).Msg("Fetching missing descriptions")
		fetchStart := time.Now()
		fetched = p.opts.Scheduler.FetchMany(ctx, toFetch, target, p.opts.FetchWorkers)
		log.Info().Int("fetched", len(fetched)).Dur("elapsed", time.Since(fetchStart)).Msg("Description fetch complete")
	}

	// Attach full text: stored first, then newly fetched, teaser as fallback.
	var quality []model.JobListing
	now := time.Now()
	for i := range listings {
		link := listings[i].Link
		if text, ok := existing[link]; ok {
			listings[i].FullText = text
		} else if text, ok := fetched[link]; ok {
			listings[i].FullText = text
		} else {
			listings[i].FullText = listings[i].Description
		}
		listings[i].ScrapedAt = now
		if len(listings[i].FullText) > qualityDescriptionLen {
			quality = append(quality, listings[i])
		}
	}

	// Only rows with newly fetched text are written back; stored rows are
	// already current and fallback teasers are not worth persisting.
	if len(fetched) > 0 {
		var rows []model.JobListing
		for _, l := range listings {
			if _, ok := fetched[l.Link]; ok {
				rows = append(rows, l)
			}
		}
		if written, err := p.opts.Store.UpsertListings(ctx, rows); err != nil {
			log.Warn().Err(err).Msg("Listing upsert failed")
		} else {
			log.Info().Int("written", written).Msg("Listings updated in store")
		}
	}

	historical, err := p.opts.Store.HistoricalDescriptions(ctx, jobTitle)
	if err != nil {
		log.Warn().Err(err).Msg("No historical descriptions available")
		historical = nil
	}

	combined := combineDescriptions(quality, historical)
	if combined == "" {
		return nil, ErrNoDescriptions
	}

	aiStart := time.Now()
	suggestions, err := p.opts.Suggester.Suggest(ctx, combined, jobTitle, country)
	if err != nil {
		return nil, fmt.Errorf("generate suggestions: %w", err)
	}

	result := &model.Result{
		Suggestions:            suggestions,
		JobsAnalyzed:           len(listings),
		QualityDescriptions:    len(quality),
		HistoricalJobsUsed:     min(len(historical), maxHistoricalForPrompt),
		CachedDescriptionsUsed: len(existing),
		NewlyFetched:           len(fetched),
		TotalTimeSeconds:       roundSeconds(time.Since(start)),
		AITimeSeconds:          roundSeconds(time.Since(aiStart)),
	}
	log.Info().
		Str("run_id", runID).
		Int("quality", result.QualityDescriptions).
		Float64("total_s", result.TotalTimeSeconds).
		Float64("ai_s", result.AITimeSeconds).
		Msg("Pipeline run complete")

	return result, nil
}

// combineDescriptions joins the freshest quality descriptions with a slice of
// historical ones, recent quality text first.
func combineDescriptions(quality []model.JobListing, historical []string) string {
	var parts []string
	for i, l := range quality {
		if i >= maxFreshForPrompt {
			break
		}
		parts = append(parts, l.FullText)
	}
	for i, d := range historical {
		if i >= maxHistoricalForPrompt {
			break
		}
		parts = append(parts, d)
	}
	return strings.Join(parts, "\n\n")
}

func roundSeconds(d time.Duration) float64 {
	return float64(d.Milliseconds()) / 1000.0
}

package fetch

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/phuslu/log"
	"golang.org/x/time/rate"

	"jobscout/internal/browser"
)

const (
	// qualityGateLen is the minimum description length that counts toward
	// the target. Stricter than the fetcher's extraction floor: a fetch can
	// succeed and still be too thin to feed the model.
	qualityGateLen = 200

	overallTimeout = 60 * time.Second
	pacingInterval = 500 * time.Millisecond
)

type completion struct {
	link string
	text string
	err  error
}

// Scheduler runs description fetches over a bounded worker pool with early
// termination: once the target number of quality descriptions is collected,
// no further links are submitted and pending work is soft-cancelled.
type Scheduler struct {
	fetcher Fetcher
	pacing  *rate.Limiter
	timeout time.Duration
}

// NewScheduler wraps fetcher with the default pacing and overall timeout.
func NewScheduler(fetcher Fetcher) *Scheduler {
	return &Scheduler{
		fetcher: fetcher,
		pacing:  rate.NewLimiter(rate.Every(pacingInterval), 1),
		timeout: overallTimeout,
	}
}

// FetchMany fetches descriptions for links until target quality results are
// collected, every link is exhausted, or the overall timeout expires. The
// returned map holds only results that passed the quality gate. Per-link
// failures are logged and skipped, never fatal.
//
// At most maxWorkers fetches run at once. Fetches still running when the
// scheduler stops waiting are abandoned: they finish on their own, release
// their browser sessions via the fetcher's own discipline, and their late
// results are discarded.
func (s *Scheduler) FetchMany(ctx context.Context, links []string, target, maxWorkers int) map[string]string {
	results := make(map[string]string)
	if len(links) == 0 || target <= 0 || maxWorkers <= 0 {
		return results
	}

	// Shorter URLs tend to be canonical listing pages rather than tracking
	// redirects, so they go first. A heuristic, not a contract.
	prioritized := make([]string, len(links))
	copy(prioritized, links)
	sort.SliceStable(prioritized, func(i, j int) bool {
		return len(prioritized[i]) < len(prioritized[j])
	})

	runCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	// Buffered to capacity so submits never block; soft cancellation is
	// "workers stop dequeuing", not draining this channel.
	pending := make(chan string, len(prioritized))
	completions := make(chan completion, maxWorkers)

	for i := 0; i < maxWorkers; i++ {
		go s.worker(runCtx, pending, completions)
	}

	next := 0
	for ; next < min(2*maxWorkers, len(prioritized)); next++ {
		pending <- prioritized[next]
	}
	submitted := next
	processed := 0

	start := time.Now()
loop:
	for processed < submitted {
		select {
		case <-runCtx.Done():
			log.Warn().
				Int("collected", len(results)).
				Int("abandoned", submitted-processed).
				Msg("Fetch window closed, abandoning remaining tasks")
			break loop

		case c := <-completions:
			processed++

			switch {
			case errors.Is(c.err, browser.ErrAcquireTimeout):
				log.Warn().Str("link", c.link).Msg("No browser available, skipping link")
			case c.err != nil:
				log.Warn().Err(c.err).Str("link", c.link).Msg("Description fetch failed")
			case len(c.text) > qualityGateLen:
				results[c.link] = c.text
				log.Info().
					Int("collected", len(results)).
					Int("target", target).
					Str("link", c.link).
					Msg("Quality description fetched")
			default:
				log.Debug().Str("link", c.link).Msg("Description below quality gate")
			}

			if len(results) >= target {
				log.Info().
					Int("collected", len(results)).
					Dur("elapsed", time.Since(start)).
					Msg("Target reached, stopping early")
				break loop
			}

			// Replace the freed slot with the next unscheduled link.
			if next < len(prioritized) {
				pending <- prioritized[next]
				next++
				submitted++
			}

			// Pace completions to keep load on the remote site civil.
			if err := s.pacing.Wait(runCtx); err != nil {
				break loop
			}
		}
	}

	return results
}

func (s *Scheduler) worker(ctx context.Context, pending <-chan string, completions chan<- completion) {
	for {
		select {
		case <-ctx.Done():
			return
		case link := <-pending:
			text, err := s.fetcher.Fetch(ctx, link)
			select {
			case completions <- completion{link: link, text: text, err: err}:
			case <-ctx.Done():
				return
			}
		}
	}
}

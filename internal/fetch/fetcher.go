// Package fetch enriches job listings with full description text. A
// DescriptionFetcher drives one headless session per fetch; the Scheduler
// fans fetches out over a bounded worker pool and stops early once enough
// quality descriptions have been collected.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/phuslu/log"

	"jobscout/internal/browser"
	"jobscout/internal/cache"
)

// ErrNoDescription means no selector yielded usable text after all attempts.
var ErrNoDescription = errors.New("fetch: no description extracted")

const (
	maxAttempts     = 2
	minExtractedLen = 100 // shorter matches are nav chrome, not descriptions
	navigateTimeout = 20 * time.Second
	settleDelay     = 1 * time.Second
	expandDelay     = 500 * time.Millisecond
	retryDelay      = 1 * time.Second
)

// descriptionSelectors is tried in order; the most common layouts come first
// so the cascade usually stops at the first entry.
var descriptionSelectors = []string{
	".jobs-description-content__text",
	".jobs-description__content",
	".description__text",
	"[data-test-id='job-description']",
	".jobs-box__html-content",
	".job-description",
	".description",
}

// expandClickJS clicks a "show more" control when one exists. It reports
// whether it clicked and never throws — a missing control is the normal case.
const expandClickJS = `(() => {
	const btn = document.querySelector(
		'button[aria-label*="Show more"], button.show-more-less-html__button, button[class*="show-more"]');
	if (!btn) return false;
	btn.click();
	return true;
})()`

// Fetcher is what the Scheduler drives. Satisfied by DescriptionFetcher;
// tests substitute stubs.
type Fetcher interface {
	Fetch(ctx context.Context, link string) (string, error)
}

// sessionPool is the slice of the browser pool the fetcher needs.
type sessionPool interface {
	Acquire(ctx context.Context) (*browser.Session, error)
	Release(sess *browser.Session)
}

// DescriptionFetcher fetches one job description at a time, consulting the
// content cache before touching the browser pool.
type DescriptionFetcher struct {
	pool    sessionPool
	cache   *cache.ContentCache
	attempt func(sess *browser.Session, link string) (string, error)
}

// NewDescriptionFetcher constructs a fetcher over a shared pool and cache.
func NewDescriptionFetcher(pool *browser.Pool, contentCache *cache.ContentCache) *DescriptionFetcher {
	f := &DescriptionFetcher{pool: pool, cache: contentCache}
	f.attempt = f.extract
	return f
}

// Fetch returns the description text behind link. Cache hits return without
// acquiring a session; an acquire timeout is returned as-is and not retried.
// The acquired session is released on every exit path.
func (f *DescriptionFetcher) Fetch(ctx context.Context, link string) (string, error) {
	if text, ok := f.cache.Lookup(link); ok {
		log.Debug().Str("link", link).Msg("Using cached description")
		return text, nil
	}

	sess, err := f.pool.Acquire(ctx)
	if err != nil {
		return "", err
	}
	defer f.pool.Release(sess)

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		text, err := f.attempt(sess, link)
		if err == nil && len(text) > minExtractedLen {
			f.cache.Store(link, text)
			return text, nil
		}
		if err != nil {
			lastErr = fmt.Errorf("fetch: attempt %d for %s: %w", attempt, link, err)
			log.Debug().Err(err).Int("attempt", attempt).Str("link", link).Msg("Fetch attempt failed")
		} else {
			lastErr = ErrNoDescription
		}

		if attempt < maxAttempts {
			select {
			case <-time.After(retryDelay):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}
	}

	return "", lastErr
}

// extract navigates to link in a fresh tab and walks the selector cascade.
// The tab context is cancelled on return so tabs never accumulate on the
// pooled browser.
func (f *DescriptionFetcher) extract(sess *browser.Session, link string) (string, error) {
	tabCtx, tabCancel := chromedp.NewContext(sess.Context())
	defer tabCancel()

	runCtx, cancel := context.WithTimeout(tabCtx, navigateTimeout)
	defer cancel()

	var clicked bool
	err := chromedp.Run(runCtx,
		chromedp.Navigate(link),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(settleDelay),
		chromedp.Evaluate(expandClickJS, &clicked),
		chromedp.ActionFunc(func(ctx context.Context) error {
			if clicked {
				return chromedp.Sleep(expandDelay).Do(ctx)
			}
			return nil
		}),
	)
	if err != nil {
		return "", fmt.Errorf("navigate: %w", err)
	}

	for _, sel := range descriptionSelectors {
		var text string
		extract := fmt.Sprintf(`(document.querySelector(%q)?.innerText ?? "")`, sel)
		if err := chromedp.Run(runCtx, chromedp.Evaluate(extract, &text)); err != nil {
			continue
		}
		text = strings.TrimSpace(text)
		if len(text) > minExtractedLen {
			return text, nil
		}
	}

	return "", nil
}

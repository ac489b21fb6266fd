// Package browser maintains a fixed-size pool of headless Chrome sessions.
// Sessions are expensive to start, so they are created once at process start
// and handed out to fetch workers through a buffered channel — the channel is
// the only synchronization point for handle ownership.
package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/phuslu/log"
)

var (
	// ErrAcquireTimeout means no session became available within the acquire
	// timeout. Callers skip the task instead of failing the run.
	ErrAcquireTimeout = errors.New("browser: no session available within timeout")

	// ErrPoolClosed means the pool has been shut down.
	ErrPoolClosed = errors.New("browser: pool is closed")
)

const (
	defaultAcquireTimeout = 5 * time.Second
	startupTestTimeout    = 30 * time.Second
	shutdownTimeout       = 30 * time.Second
	defaultUserAgent      = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

// Session is an opaque handle to one headless browser. It is owned by the
// pool except while checked out to exactly one in-flight fetch.
type Session struct {
	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc
}

// Context returns the browser context. Fetches derive per-tab contexts from
// it rather than running actions on it directly.
func (s *Session) Context() context.Context { return s.ctx }

func (s *Session) terminate() {
	if s.cancel != nil {
		s.cancel()
	}
	if s.allocCancel != nil {
		s.allocCancel()
	}
}

// Options configures the pool.
type Options struct {
	Size           int
	Headless       bool
	UserAgent      string
	AcquireTimeout time.Duration
}

// Pool is a fixed-size pool of reusable browser sessions.
type Pool struct {
	available      chan *Session
	sessions       []*Session
	mu             sync.Mutex
	acquireTimeout time.Duration
	closed         atomic.Bool
}

// NewPool launches opts.Size headless sessions and verifies each one against
// about:blank before admitting it. If some sessions fail to start the pool
// continues with fewer; if none start, it fails.
func NewPool(opts Options) (*Pool, error) {
	if opts.Size <= 0 {
		return nil, fmt.Errorf("browser: pool size must be positive, got %d", opts.Size)
	}
	if opts.UserAgent == "" {
		opts.UserAgent = defaultUserAgent
	}
	if opts.AcquireTimeout <= 0 {
		opts.AcquireTimeout = defaultAcquireTimeout
	}

	p := &Pool{
		available:      make(chan *Session, opts.Size),
		sessions:       make([]*Session, 0, opts.Size),
		acquireTimeout: opts.AcquireTimeout,
	}

	log.Info().Int("pool_size", opts.Size).Bool("headless", opts.Headless).Msg("Initializing browser pool")

	var lastErr error
	for i := 0; i < opts.Size; i++ {
		sess, err := newSession(opts)
		if err != nil {
			lastErr = err
			log.Warn().Err(err).Int("session_index", i).Msg("Failed to start browser session")
			continue
		}
		p.sessions = append(p.sessions, sess)
		p.available <- sess
	}

	if len(p.sessions) == 0 {
		return nil, fmt.Errorf("browser: failed to start any session: %w", lastErr)
	}
	if len(p.sessions) < opts.Size {
		log.Warn().Int("requested", opts.Size).Int("started", len(p.sessions)).Msg("Browser pool started degraded")
	}

	return p, nil
}

func newSession(opts Options) (*Session, error) {
	allocOpts := append(
		chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("blink-settings", "imagesEnabled=false"),
		chromedp.WindowSize(1920, 1080),
		chromedp.UserAgent(opts.UserAgent),
	)

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), allocOpts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	// Startup test: an unresponsive Chrome is worse than a smaller pool.
	testCtx, testCancel := context.WithTimeout(browserCtx, startupTestTimeout)
	defer testCancel()
	if err := chromedp.Run(testCtx, chromedp.Navigate("about:blank")); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("browser: session failed startup test: %w", err)
	}

	return &Session{ctx: browserCtx, cancel: browserCancel, allocCancel: allocCancel}, nil
}

// Acquire checks a session out of the pool. It blocks until a session is
// available, the context is cancelled, or the acquire timeout elapses.
// The caller must hand the session back with Release on every exit path.
func (p *Pool) Acquire(ctx context.Context) (*Session, error) {
	if p.closed.Load() {
		return nil, ErrPoolClosed
	}

	timer := time.NewTimer(p.acquireTimeout)
	defer timer.Stop()

	select {
	case sess := <-p.available:
		return sess, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("browser: acquire cancelled: %w", ctx.Err())
	case <-timer.C:
		return nil, ErrAcquireTimeout
	}
}

// Release returns a session to the pool. It never fails: when the pool is
// closed, or momentarily over capacity, the session is terminated instead of
// queued so the pool cannot grow past its fixed size. Safe on nil.
func (p *Pool) Release(sess *Session) {
	if sess == nil {
		return
	}
	if p.closed.Load() {
		sess.terminate()
		return
	}
	select {
	case p.available <- sess:
	default:
		log.Warn().Msg("Browser pool full on release, terminating session")
		sess.terminate()
		p.forget(sess)
	}
}

func (p *Pool) forget(sess *Session) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, s := range p.sessions {
		if s == sess {
			p.sessions = append(p.sessions[:i], p.sessions[i+1:]...)
			return
		}
	}
}

// Available reports how many sessions are currently checked in.
func (p *Pool) Available() int {
	return len(p.available)
}

// Size reports how many sessions the pool currently owns, checked out or not.
func (p *Pool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.sessions)
}

// Shutdown terminates every session. It is bounded by a timeout so a wedged
// Chrome cannot hang process exit, and is safe to call more than once.
// Sessions still checked out are terminated by their holder's Release.
func (p *Pool) Shutdown() {
	if p.closed.Swap(true) {
		return
	}

	p.mu.Lock()
	sessions := p.sessions
	p.sessions = nil
	p.mu.Unlock()

	log.Info().Int("session_count", len(sessions)).Msg("Shutting down browser pool")

	done := make(chan struct{})
	go func() {
		defer close(done)
		for _, sess := range sessions {
			sess.terminate()
		}
	}()

	select {
	case <-done:
	case <-time.After(shutdownTimeout):
		log.Warn().Msg("Browser pool shutdown timed out")
	}
}

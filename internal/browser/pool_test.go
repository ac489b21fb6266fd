package browser

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testPool builds a pool around inert sessions so the handle-ownership rules
// can be exercised without launching Chrome.
func testPool(size int, acquireTimeout time.Duration) *Pool {
	p := &Pool{
		available:      make(chan *Session, size),
		acquireTimeout: acquireTimeout,
	}
	for i := 0; i < size; i++ {
		sess := &Session{}
		p.sessions = append(p.sessions, sess)
		p.available <- sess
	}
	return p
}

// ── Acquire / Release ──────────────────────────────────────────────────────

func TestPool_AcquireReleaseRoundtrip(t *testing.T) {
	p := testPool(2, time.Second)
	assert.Equal(t, 2, p.Available())

	sess, err := p.Acquire(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, p.Available())

	p.Release(sess)
	assert.Equal(t, 2, p.Available())
	assert.Equal(t, 2, p.Size())
}

func TestPool_AcquireTimesOutWhenExhausted(t *testing.T) {
	p := testPool(1, 50*time.Millisecond)

	_, err := p.Acquire(context.Background())
	require.NoError(t, err)

	start := time.Now()
	_, err = p.Acquire(context.Background())
	assert.ErrorIs(t, err, ErrAcquireTimeout)
	assert.Less(t, time.Since(start), time.Second, "acquire must give up at the timeout, not block")
}

func TestPool_AcquireHonoursContext(t *testing.T) {
	p := testPool(1, time.Minute)
	_, err := p.Acquire(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = p.Acquire(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPool_ReleaseWhenFullTerminatesSession(t *testing.T) {
	p := testPool(1, time.Second)

	// A session arriving while the pool is full must be terminated, not
	// queued — the pool can never grow past its fixed size.
	p.Release(&Session{})
	assert.Equal(t, 1, p.Available())
	assert.Equal(t, 1, p.Size())
}

func TestPool_ReleaseNilIsSafe(t *testing.T) {
	p := testPool(1, time.Second)
	assert.NotPanics(t, func() { p.Release(nil) })
	assert.Equal(t, 1, p.Available())
}

// ── Release discipline across fetch sequences ──────────────────────────────

func TestPool_SizeStableAcrossFetchSequences(t *testing.T) {
	p := testPool(3, time.Second)

	// Every fetch sequence checks out one session and hands it back exactly
	// once, whether or not the fetch succeeded.
	for i := 0; i < 20; i++ {
		sess, err := p.Acquire(context.Background())
		require.NoError(t, err)
		p.Release(sess)
	}

	assert.Equal(t, 3, p.Available())
	assert.Equal(t, 3, p.Size())
}

// ── Shutdown ───────────────────────────────────────────────────────────────

func TestPool_ShutdownRejectsAcquire(t *testing.T) {
	p := testPool(2, time.Second)
	p.Shutdown()

	_, err := p.Acquire(context.Background())
	assert.ErrorIs(t, err, ErrPoolClosed)
	assert.Equal(t, 0, p.Size())
}

func TestPool_ReleaseAfterShutdownTerminates(t *testing.T) {
	p := testPool(1, time.Second)
	sess, err := p.Acquire(context.Background())
	require.NoError(t, err)

	p.Shutdown()
	assert.NotPanics(t, func() { p.Release(sess) })
}

func TestPool_ShutdownTwiceIsSafe(t *testing.T) {
	p := testPool(1, time.Second)
	assert.NotPanics(t, func() {
		p.Shutdown()
		p.Shutdown()
	})
}

package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"

	"jobscout/internal/config"
	"jobscout/internal/model"
)

// fakeLocker answers SetNX from a canned result and records Del calls.
type fakeLocker struct {
	acquired bool
	err      error
	deleted  int
}

func (f *fakeLocker) SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd {
	cmd := redis.NewBoolCmd(ctx)
	cmd.SetVal(f.acquired)
	if f.err != nil {
		cmd.SetErr(f.err)
	}
	return cmd
}

func (f *fakeLocker) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	f.deleted++
	return redis.NewIntCmd(ctx)
}

type countingRunner struct {
	runs int
	err  error
}

func (c *countingRunner) Run(ctx context.Context, jobTitle, country string) (*model.Result, error) {
	c.runs++
	if c.err != nil {
		return nil, c.err
	}
	return &model.Result{JobsAnalyzed: 1}, nil
}

func queries(n int) []config.RefreshQuery {
	out := make([]config.RefreshQuery, n)
	for i := range out {
		out[i] = config.RefreshQuery{JobTitle: "Dev", Country: "UK"}
	}
	return out
}

func TestRunRefresh_RunsEveryQueryAndReleasesLock(t *testing.T) {
	lock := &fakeLocker{acquired: true}
	runner := &countingRunner{}
	s := New(lock, runner, queries(3), 6)

	s.runRefresh(context.Background())

	assert.Equal(t, 3, runner.runs)
	assert.Equal(t, 1, lock.deleted, "lock must be released after the cycle")
}

func TestRunRefresh_SkipsWhenLockHeldElsewhere(t *testing.T) {
	lock := &fakeLocker{acquired: false}
	runner := &countingRunner{}
	s := New(lock, runner, queries(2), 6)

	s.runRefresh(context.Background())

	assert.Zero(t, runner.runs, "a held lock means another cycle is in flight")
	assert.Zero(t, lock.deleted, "never release a lock this cycle did not take")
}

func TestRunRefresh_SkipsWhenRedisUnreachable(t *testing.T) {
	lock := &fakeLocker{err: errors.New("connection refused")}
	runner := &countingRunner{}
	s := New(lock, runner, queries(1), 6)

	s.runRefresh(context.Background())

	assert.Zero(t, runner.runs)
}

func TestRunRefresh_FailedQueryDoesNotStopTheRest(t *testing.T) {
	lock := &fakeLocker{acquired: true}
	runner := &countingRunner{err: errors.New("no jobs scraped")}
	s := New(lock, runner, queries(3), 6)

	s.runRefresh(context.Background())

	assert.Equal(t, 3, runner.runs, "every query gets its attempt even after failures")
}

func TestStart_DisabledWithoutQueries(t *testing.T) {
	s := New(&fakeLocker{}, &countingRunner{}, nil, 6)
	assert.NoError(t, s.Start(context.Background()))
}

// Package scheduler wires up the cron job that periodically re-runs the
// pipeline for the configured queries, keeping the description cache and the
// job_listings table warm between interactive requests.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/phuslu/log"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"

	"jobscout/internal/config"
	"jobscout/internal/model"
)

const (
	refreshLockKey = "jobscout:refresh-lock"
	refreshLockTTL = 30 * time.Minute
)

// PipelineRunner is the slice of the pipeline the scheduler drives.
type PipelineRunner interface {
	Run(ctx context.Context, jobTitle, country string) (*model.Result, error)
}

// Locker is the slice of the Redis client the refresh lock needs.
// Satisfied by *redis.Client.
type Locker interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// Scheduler wraps robfig/cron and manages the background refresh loop.
type Scheduler struct {
	cron    *cron.Cron
	rdb     Locker
	runner  PipelineRunner
	queries []config.RefreshQuery
	spec    string // cron spec, e.g. "@every 6h"
}

// New creates a Scheduler that fires every intervalHours hours.
func New(rdb Locker, runner PipelineRunner, queries []config.RefreshQuery, intervalHours int) *Scheduler {
	return &Scheduler{
		cron:    cron.New(cron.WithLogger(cron.DefaultLogger)),
		rdb:     rdb,
		runner:  runner,
		queries: queries,
		spec:    fmt.Sprintf("@every %dh", intervalHours),
	}
}

// Start registers the refresh job and starts the scheduler.
func (s *Scheduler) Start(ctx context.Context) error {
	if len(s.queries) == 0 {
		log.Info().Msg("No refresh queries configured, background refresh disabled")
		return nil
	}

	_, err := s.cron.AddFunc(s.spec, func() {
		s.runRefresh(ctx)
	})
	if err != nil {
		return fmt.Errorf("cron.AddFunc: %w", err)
	}

	s.cron.Start()
	log.Info().Str("spec", s.spec).Int("queries", len(s.queries)).Msg("Refresh scheduler started")
	return nil
}

// Stop gracefully shuts down the scheduler.
func (s *Scheduler) Stop() {
	s.cron.Stop()
	log.Info().Msg("Refresh scheduler stopped")
}

// runRefresh runs the pipeline for every configured query, guarded by a
// Redis lock so overlapping cycles (slow run, multiple instances) skip
// instead of piling onto the browser pool.
func (s *Scheduler) runRefresh(ctx context.Context) {
	acquired, err := s.rdb.SetNX(ctx, refreshLockKey, time.Now().Format(time.RFC3339), refreshLockTTL).Result()
	if err != nil {
		log.Warn().Err(err).Msg("Refresh lock check failed, skipping cycle")
		return
	}
	if !acquired {
		log.Info().Msg("Refresh lock held elsewhere, skipping cycle")
		return
	}
	defer s.rdb.Del(ctx, refreshLockKey)

	log.Info().Msg("Refresh cycle started")
	for _, q := range s.queries {
		result, err := s.runner.Run(ctx, q.JobTitle, q.Country)
		if err != nil {
			log.Warn().Err(err).Str("job_title", q.JobTitle).Msg("Refresh run failed")
			continue
		}
		log.Info().
			Str("job_title", q.JobTitle).
			Int("jobs", result.JobsAnalyzed).
			Int("newly_fetched", result.NewlyFetched).
			Msg("Refresh run complete")
	}
	log.Info().Msg("Refresh cycle complete")
}

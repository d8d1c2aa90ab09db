package modules

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"
)

type AsynqSchedulerEntry struct {
	Cronspec string
	Task     *asynq.Task
}

// AsynqScheduler enqueues periodic tasks. Running it on every replica is
// safe: asynq registers each entry once per scheduler instance and the
// server side deduplicates by task ID when one is set.
type AsynqScheduler struct {
	RedisUsername string
	RedisPassword string
	RedisAddress  string
	RedisDB       int
}

func (s AsynqScheduler) Run(
	ctx context.Context,
	g *errgroup.Group,
	entries ...AsynqSchedulerEntry,
) {
	g.Go(func() error {
		redisConnection := asynq.RedisClientOpt{
			Addr:     s.RedisAddress,
			Username: s.RedisUsername,
			Password: s.RedisPassword,
			DB:       s.RedisDB,
		}

		scheduler := asynq.NewScheduler(redisConnection, nil)

		for _, entry := range entries {
			if _, err := scheduler.Register(entry.Cronspec, entry.Task); err != nil {
				return fmt.Errorf("scheduler.Register: %w", err)
			}
		}

		go func() {
			<-ctx.Done()
			scheduler.Shutdown()
		}()

		logger(ctx).Info("asynq scheduler started", slog.String("redis-address", s.RedisAddress), slog.Int("redis-db", s.RedisDB))

		if err := scheduler.Run(); err != nil {
			return fmt.Errorf("asynqScheduler.Run: %w", err)
		}

		logger(ctx).Info("asynq scheduler stopped", slog.String("redis-address", s.RedisAddress), slog.Int("redis-db", s.RedisDB))

		return nil
	})
}

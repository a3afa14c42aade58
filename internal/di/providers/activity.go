package providers

import (
	"context"
	"fmt"
	"os"

	"github.com/samber/do/v2"

	"github.com/listenupapp/readtrack-server/internal/activity"
	"github.com/listenupapp/readtrack-server/internal/config"
	"github.com/listenupapp/readtrack-server/internal/logger"
)

// healthKeyUser is the pseudo-user read by the activity health check.
const healthKeyUser = "_health"

// ActivityHandle wraps the daily activity counter with shutdown capability.
type ActivityHandle struct {
	*activity.Daily
	ping func(ctx context.Context) error
}

// Ping reports whether the backing counter is reachable.
func (h *ActivityHandle) Ping(ctx context.Context) error {
	return h.ping(ctx)
}

// Shutdown implements do.Shutdownable.
func (h *ActivityHandle) Shutdown() error {
	return h.Close()
}

// ProvideActivity provides the daily activity counter on the configured
// backend. A Redis backend is waited on at startup; it is never retried
// afterwards.
func ProvideActivity(i do.Injector) (*ActivityHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	loc := cfg.Engine.Location()

	switch cfg.Activity.Backend {
	case config.ActivityBackendRedis:
		counter, err := activity.NewRedisCounter(activity.RedisConfig{
			Addr:     cfg.Activity.RedisAddr,
			Password: cfg.Activity.RedisPassword,
			DB:       cfg.Activity.RedisDB,
		})
		if err != nil {
			return nil, err
		}
		if err := counter.WaitReady(context.Background(), cfg.Activity.RedisConnectTimeout, log.ForComponent("activity")); err != nil {
			counter.Close()
			return nil, fmt.Errorf("redis activity store unavailable: %w", err)
		}

		log.Info("Activity store ready", "backend", "redis", "addr", cfg.Activity.RedisAddr)
		return &ActivityHandle{
			Daily: activity.NewDaily(counter, cfg.Activity.TTL, loc),
			ping:  counter.Ping,
		}, nil

	default:
		if err := os.MkdirAll(cfg.Activity.BadgerPath, 0o755); err != nil {
			return nil, fmt.Errorf("create badger directory: %w", err)
		}
		counter, err := activity.OpenBadgerCounter(cfg.Activity.BadgerPath, log.ForComponent("badger"))
		if err != nil {
			return nil, err
		}

		daily := activity.NewDaily(counter, cfg.Activity.TTL, loc)
		log.Info("Activity store ready", "backend", "badger", "path", cfg.Activity.BadgerPath)
		return &ActivityHandle{
			Daily: daily,
			ping: func(ctx context.Context) error {
				_, err := counter.Get(ctx, activity.Key(healthKeyUser, ""))
				return err
			},
		}, nil
	}
}

package providers

import (
	"github.com/samber/do/v2"

	"github.com/listenupapp/readtrack-server/internal/config"
	"github.com/listenupapp/readtrack-server/internal/logger"
	"github.com/listenupapp/readtrack-server/internal/service"
)

// ProvideSweeper provides the stale-session sweeper.
func ProvideSweeper(i do.Injector) (*service.Sweeper, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewSweeper(
		do.MustInvoke[*service.SessionManager](i),
		cfg.Sweep.BatchSize,
		log.ForComponent("sweeper"),
	), nil
}

// SweepJob runs the stale-session sweep on its cron schedule.
type SweepJob struct {
	scheduler *service.SweepScheduler
}

// Shutdown implements do.Shutdownable.
func (j *SweepJob) Shutdown() error {
	if j.scheduler != nil {
		j.scheduler.Stop()
	}
	return nil
}

// ProvideSweepJob provides the periodic stale-session sweep.
func ProvideSweepJob(i do.Injector) (*SweepJob, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	if !cfg.Sweep.Enabled {
		log.Info("Stale-session sweep disabled by configuration")
		return &SweepJob{}, nil
	}

	scheduler, err := service.NewSweepScheduler(
		do.MustInvoke[*service.Sweeper](i),
		cfg.Sweep.Schedule,
		log.ForComponent("sweeper"),
	)
	if err != nil {
		return nil, err
	}
	scheduler.Start()

	log.Info("Stale-session sweep scheduled",
		"schedule", cfg.Sweep.Schedule,
		"batch_size", cfg.Sweep.BatchSize,
		"idle_timeout", cfg.Engine.IdleTimeout,
	)

	return &SweepJob{scheduler: scheduler}, nil
}

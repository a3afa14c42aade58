package providers

import (
	"github.com/samber/do/v2"

	"github.com/listenupapp/readtrack-server/internal/clock"
	"github.com/listenupapp/readtrack-server/internal/config"
	"github.com/listenupapp/readtrack-server/internal/domain"
	"github.com/listenupapp/readtrack-server/internal/logger"
	"github.com/listenupapp/readtrack-server/internal/metrics"
	"github.com/listenupapp/readtrack-server/internal/service"
)

// ProvideClock provides the wall clock shared by every service.
func ProvideClock(_ do.Injector) (clock.Clock, error) {
	return clock.System{}, nil
}

// ProvideMetrics provides the engine's Prometheus collectors.
func ProvideMetrics(_ do.Injector) (*metrics.Metrics, error) {
	return metrics.New(), nil
}

// ProvidePointsSink provides the destination for points-earned events.
func ProvidePointsSink(i do.Injector) (service.PointsSink, error) {
	log := do.MustInvoke[*logger.Logger](i)
	return service.NewLogPointsSink(log.ForComponent("points")), nil
}

// ProvideStreakService provides the streak service.
func ProvideStreakService(i do.Injector) (*service.StreakService, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	activityHandle := do.MustInvoke[*ActivityHandle](i)

	return service.NewStreakService(service.StreakConfig{
		LookbackDays: cfg.Engine.StreakLookbackDays,
		RecentSize:   cfg.Engine.RecentActivitySize,
		Location:     cfg.Engine.Location(),
	},
		storeHandle.Store,
		activityHandle.Daily,
		do.MustInvoke[clock.Clock](i),
		do.MustInvoke[*metrics.Metrics](i),
		log.ForComponent("streak"),
	), nil
}

// ProvideGoalUpdater provides the goal updater applied at completion.
func ProvideGoalUpdater(i do.Injector) (*service.GoalUpdater, error) {
	log := do.MustInvoke[*logger.Logger](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)

	return service.NewGoalUpdater(
		storeHandle.Store,
		do.MustInvoke[*config.Config](i).Engine.Location(),
		do.MustInvoke[clock.Clock](i),
		do.MustInvoke[*metrics.Metrics](i),
		log.ForComponent("goals"),
	), nil
}

// ProvideSessionManager provides the session lifecycle engine.
func ProvideSessionManager(i do.Injector) (*service.SessionManager, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	activityHandle := do.MustInvoke[*ActivityHandle](i)

	engine := cfg.Engine
	return service.NewSessionManager(service.SessionManagerConfig{
		IdleTimeout: engine.IdleTimeout,
		Bounds: domain.PositionBounds{
			MaxMajor: engine.MaxMajorUnit,
			MaxMinor: engine.MaxMinorUnit,
		},
		Location: engine.Location(),
		Points: service.PointsConfig{
			PerUnit:             int64(engine.PointsPerUnit),
			PerMinute:           int64(engine.PointsPerMinute),
			StreakBonusPerDay:   int64(engine.StreakBonusPerDay),
			StreakBonusCap:      engine.StreakBonusCap,
			GoalCompletionBonus: int64(engine.GoalCompletionBonus),
		},
		ExperiencePerLevel: int64(engine.ExperiencePerLevel),
	}, service.SessionManagerDeps{
		Sessions: storeHandle.Store,
		Stats:    storeHandle.Store,
		Activity: activityHandle.Daily,
		Streaks:  do.MustInvoke[*service.StreakService](i),
		Goals:    do.MustInvoke[*service.GoalUpdater](i),
		Points:   do.MustInvoke[service.PointsSink](i),
		Metrics:  do.MustInvoke[*metrics.Metrics](i),
		Clock:    do.MustInvoke[clock.Clock](i),
	}, log.ForComponent("sessions")), nil
}

// ProvideProgressService provides the caller-facing progress facade.
func ProvideProgressService(i do.Injector) (*service.ProgressService, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	db := storeHandle.Store

	return service.NewProgressService(
		do.MustInvoke[*service.SessionManager](i),
		do.MustInvoke[*service.StreakService](i),
		db, db, db, db,
		do.MustInvoke[clock.Clock](i),
		cfg.Engine.Location(),
		log.ForComponent("progress"),
	), nil
}

// Package di provides dependency injection configuration for the reading engine server.
package di

import (
	"github.com/samber/do/v2"

	"github.com/listenupapp/readtrack-server/internal/auth"
	"github.com/listenupapp/readtrack-server/internal/config"
	"github.com/listenupapp/readtrack-server/internal/di/providers"
	"github.com/listenupapp/readtrack-server/internal/logger"
	"github.com/listenupapp/readtrack-server/internal/service"
)

// NewContainer creates and configures the DI container with all providers.
// Configuration is loaded from the process arguments and environment.
func NewContainer() *do.RootScope {
	injector := do.New()
	do.Provide(injector, providers.ProvideConfig)
	registerProviders(injector)
	return injector
}

// NewContainerWithConfig is like NewContainer but uses an already loaded
// configuration. Used by the CLI and tests.
func NewContainerWithConfig(cfg *config.Config) *do.RootScope {
	injector := do.New()
	do.ProvideValue(injector, cfg)
	registerProviders(injector)
	return injector
}

func registerProviders(injector do.Injector) {
	// Core infrastructure
	do.Provide(injector, providers.ProvideLogger)
	do.Provide(injector, providers.ProvideSlogLogger)
	do.Provide(injector, providers.ProvideClock)
	do.Provide(injector, providers.ProvideMetrics)
	do.Provide(injector, providers.ProvideAuthKey)

	// Storage layer
	do.Provide(injector, providers.ProvideStore)
	do.Provide(injector, providers.ProvideActivity)

	// Auth layer
	do.Provide(injector, providers.ProvideTokenService)

	// Engine services
	do.Provide(injector, providers.ProvidePointsSink)
	do.Provide(injector, providers.ProvideStreakService)
	do.Provide(injector, providers.ProvideGoalUpdater)
	do.Provide(injector, providers.ProvideSessionManager)
	do.Provide(injector, providers.ProvideProgressService)
	do.Provide(injector, providers.ProvideSweeper)

	// Workers
	do.Provide(injector, providers.ProvideSweepJob)

	// Server
	do.Provide(injector, providers.ProvideAPIServer)
	do.Provide(injector, providers.ProvideHTTPServer)
}

// Bootstrap initializes all services, starts the sweep and the HTTP server.
func Bootstrap(injector *do.RootScope) error {
	if _, err := do.Invoke[*config.Config](injector); err != nil {
		return err
	}
	_ = do.MustInvoke[*logger.Logger](injector)

	// Fail fast on storage before anything starts listening.
	if _, err := do.Invoke[*providers.StoreHandle](injector); err != nil {
		return err
	}
	if _, err := do.Invoke[*providers.ActivityHandle](injector); err != nil {
		return err
	}
	if _, err := do.Invoke[*auth.TokenService](injector); err != nil {
		return err
	}

	_ = do.MustInvoke[*service.ProgressService](injector)

	// Workers
	if _, err := do.Invoke[*providers.SweepJob](injector); err != nil {
		return err
	}

	// Server
	if _, err := do.Invoke[*providers.HTTPServerHandle](injector); err != nil {
		return err
	}

	return nil
}

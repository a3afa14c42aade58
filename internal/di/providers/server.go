package providers

import (
	"context"
	"errors"
	"net/http"

	"github.com/samber/do/v2"

	"github.com/listenupapp/readtrack-server/internal/api"
	"github.com/listenupapp/readtrack-server/internal/auth"
	"github.com/listenupapp/readtrack-server/internal/config"
	"github.com/listenupapp/readtrack-server/internal/logger"
	"github.com/listenupapp/readtrack-server/internal/metrics"
	"github.com/listenupapp/readtrack-server/internal/service"
)

// APIServerHandle wraps the API handler so its background resources are released.
type APIServerHandle struct {
	*api.Server
}

// Shutdown implements do.Shutdownable.
func (h *APIServerHandle) Shutdown() error {
	h.Close()
	return nil
}

// ProvideAPIServer provides the HTTP handler with all routes registered.
func ProvideAPIServer(i do.Injector) (*APIServerHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	activityHandle := do.MustInvoke[*ActivityHandle](i)

	services := &api.Services{
		Progress: do.MustInvoke[*service.ProgressService](i),
		Tokens:   do.MustInvoke[*auth.TokenService](i),
		Health: map[string]api.HealthCheck{
			"database": storeHandle.Ping,
			"activity": activityHandle.Ping,
		},
	}

	handler := api.NewServer(api.Config{
		CORSOrigins:   cfg.Server.CORSOrigins,
		ProgressRPS:   cfg.RateLimit.ProgressRPS,
		ProgressBurst: cfg.RateLimit.ProgressBurst,
	}, services, do.MustInvoke[*metrics.Metrics](i), log.ForComponent("api"))

	return &APIServerHandle{Server: handler}, nil
}

// HTTPServerHandle wraps http.Server with Shutdownable.
type HTTPServerHandle struct {
	*http.Server
}

// Shutdown implements do.Shutdownable.
func (h *HTTPServerHandle) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return h.Server.Shutdown(ctx)
}

// ProvideHTTPServer provides the HTTP server and starts listening.
func ProvideHTTPServer(i do.Injector) (*HTTPServerHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	handler := do.MustInvoke[*APIServerHandle](i)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start in background
	go func() {
		log.Info("HTTP server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP server error", "error", err)
		}
	}()

	return &HTTPServerHandle{Server: srv}, nil
}

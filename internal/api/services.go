package api

import (
	"context"

	"github.com/listenupapp/readtrack-server/internal/auth"
	"github.com/listenupapp/readtrack-server/internal/service"
)

// HealthCheck checks one backing component.
type HealthCheck func(ctx context.Context) error

// Services groups the collaborators the handlers call into.
type Services struct {
	Progress *service.ProgressService
	Tokens   *auth.TokenService
	// Health maps component names to the checks reported by /health.
	Health map[string]HealthCheck
}

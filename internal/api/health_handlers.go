package api

import (
	"context"
	"maps"
	"net/http"
	"slices"
	"time"

	"github.com/danielgtaylor/huma/v2"
)

// Health statuses.
const (
	statusHealthy   = "healthy"
	statusUnhealthy = "unhealthy"
)

// healthCheckTimeout bounds each component check.
const healthCheckTimeout = 2 * time.Second

func (s *Server) registerHealthRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "healthCheck",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
		Description: "Returns server health status with component checks",
		Tags:        []string{"Health"},
	}, s.handleHealthCheck)
}

// ComponentHealth describes the health of a single component.
type ComponentHealth struct {
	Status  string `json:"status" doc:"Component status: healthy or unhealthy"`
	Latency string `json:"latency,omitempty" doc:"Response time for this component"`
	Message string `json:"message,omitempty" doc:"Additional status information"`
}

// HealthResponse contains health check data in API responses.
type HealthResponse struct {
	Status     string                     `json:"status" doc:"Overall status: healthy or unhealthy"`
	Components map[string]ComponentHealth `json:"components" doc:"Individual component statuses"`
}

// HealthOutput wraps the health response for Huma.
type HealthOutput struct {
	Body HealthResponse
}

func (s *Server) handleHealthCheck(ctx context.Context, _ *struct{}) (*HealthOutput, error) {
	resp := HealthResponse{
		Status:     statusHealthy,
		Components: make(map[string]ComponentHealth, len(s.services.Health)),
	}

	for _, name := range slices.Sorted(maps.Keys(s.services.Health)) {
		component := s.checkComponent(ctx, name, s.services.Health[name])
		if component.Status != statusHealthy {
			resp.Status = statusUnhealthy
		}
		resp.Components[name] = component
	}

	return &HealthOutput{Body: resp}, nil
}

func (s *Server) checkComponent(ctx context.Context, name string, check HealthCheck) ComponentHealth {
	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()

	start := time.Now()
	err := check(ctx)
	latency := time.Since(start).String()

	if err != nil {
		s.logger.Warn("health check failed", "component", name, "error", err)
		return ComponentHealth{Status: statusUnhealthy, Latency: latency, Message: err.Error()}
	}
	return ComponentHealth{Status: statusHealthy, Latency: latency}
}

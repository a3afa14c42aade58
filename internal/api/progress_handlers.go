package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/listenupapp/readtrack-server/internal/domain"
	"github.com/listenupapp/readtrack-server/internal/service"
)

func (s *Server) registerProgressRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "getProgressOverview",
		Method:      http.MethodGet,
		Path:        "/api/v1/progress/overview",
		Summary:     "Progress overview",
		Description: "Returns the active session, recent sessions, goal counts, today's activity and lifetime statistics",
		Tags:        []string{"Progress"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleGetOverview)

	huma.Register(s.api, huma.Operation{
		OperationID: "getStreak",
		Method:      http.MethodGet,
		Path:        "/api/v1/progress/streak",
		Summary:     "Reading streak",
		Description: "Returns current and longest streaks with recent daily activity",
		Tags:        []string{"Progress"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleGetStreak)

	huma.Register(s.api, huma.Operation{
		OperationID: "getReadingStats",
		Method:      http.MethodGet,
		Path:        "/api/v1/progress/stats",
		Summary:     "Reading statistics",
		Description: "Returns totals and a daily breakdown for the period",
		Tags:        []string{"Progress"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleGetStats)
}

// === DTOs ===

// OverviewOutput wraps the overview for Huma.
type OverviewOutput struct {
	Body *service.Overview
}

// StreakOutput wraps the streak response for Huma.
type StreakOutput struct {
	Body *service.StreakResponse
}

// GetStatsInput contains parameters for reading statistics.
type GetStatsInput struct {
	Period string `query:"period" enum:"day,week,month,year,all" default:"week" doc:"Statistics period"`
}

// StatsOutput wraps reading statistics for Huma.
type StatsOutput struct {
	Body *domain.ReadingStats
}

// === Handlers ===

func (s *Server) handleGetOverview(ctx context.Context, _ *struct{}) (*OverviewOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	overview, err := s.services.Progress.GetOverview(ctx, userID)
	if err != nil {
		return nil, err
	}

	return &OverviewOutput{Body: overview}, nil
}

func (s *Server) handleGetStreak(ctx context.Context, _ *struct{}) (*StreakOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := s.services.Progress.GetStreak(ctx, userID)
	if err != nil {
		return nil, err
	}

	return &StreakOutput{Body: resp}, nil
}

func (s *Server) handleGetStats(ctx context.Context, input *GetStatsInput) (*StatsOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	stats, err := s.services.Progress.GetStats(ctx, userID, domain.StatsPeriod(input.Period))
	if err != nil {
		return nil, err
	}

	return &StatsOutput{Body: stats}, nil
}

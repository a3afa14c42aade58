package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/listenupapp/readtrack-server/internal/domain"
	"github.com/listenupapp/readtrack-server/internal/service"
)

func (s *Server) registerGoalRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID:   "createGoal",
		Method:        http.MethodPost,
		Path:          "/api/v1/goals",
		Summary:       "Create goal",
		Description:   "Creates a new active reading goal",
		Tags:          []string{"Goals"},
		DefaultStatus: http.StatusCreated,
		Security:      []map[string][]string{{"bearer": {}}},
	}, s.handleCreateGoal)

	huma.Register(s.api, huma.Operation{
		OperationID: "listGoals",
		Method:      http.MethodGet,
		Path:        "/api/v1/goals",
		Summary:     "List goals",
		Description: "Returns the user's goals, optionally filtered by status",
		Tags:        []string{"Goals"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleListGoals)

	huma.Register(s.api, huma.Operation{
		OperationID: "cancelGoal",
		Method:      http.MethodDelete,
		Path:        "/api/v1/goals/{id}",
		Summary:     "Cancel goal",
		Description: "Cancels an active or paused goal",
		Tags:        []string{"Goals"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleCancelGoal)
}

// === DTOs ===

// CreateGoalRequest is the request body for creating a goal.
type CreateGoalRequest struct {
	Title       string            `json:"title,omitempty" maxLength:"200" doc:"Display title"`
	Type        domain.GoalType   `json:"type" enum:"daily_time,daily_units,weekly_units,monthly_units,streak_days,complete_major_unit" doc:"Goal type"`
	Period      domain.GoalPeriod `json:"period,omitempty" enum:"daily,weekly,monthly,yearly,one_time" doc:"Goal period; derived from the type when omitted"`
	TargetValue int64             `json:"target_value" minimum:"1" doc:"Target in the goal type's unit"`
	IsRecurring bool              `json:"is_recurring,omitempty" doc:"Reopen the goal each period"`
	StartDate   string            `json:"start_date,omitempty" doc:"First day in YYYY-MM-DD form"`
	Deadline    string            `json:"deadline,omitempty" doc:"Deadline in YYYY-MM-DD form"`
}

// CreateGoalInput wraps the create goal request for Huma.
type CreateGoalInput struct {
	Body CreateGoalRequest
}

// GoalOutput wraps a goal for Huma.
type GoalOutput struct {
	Body *domain.Goal
}

// ListGoalsInput contains parameters for listing goals.
type ListGoalsInput struct {
	Status string `query:"status" enum:"active,completed,paused,failed,cancelled" doc:"Only goals in this status"`
}

// ListGoalsResponse contains a list of goals.
type ListGoalsResponse struct {
	Goals []*domain.Goal `json:"goals" doc:"Goals"`
}

// ListGoalsOutput wraps the goal list for Huma.
type ListGoalsOutput struct {
	Body ListGoalsResponse
}

// GoalIDInput addresses a goal by path.
type GoalIDInput struct {
	ID string `path:"id" doc:"Goal ID"`
}

// === Handlers ===

func (s *Server) handleCreateGoal(ctx context.Context, input *CreateGoalInput) (*GoalOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	goal, err := s.services.Progress.CreateGoal(ctx, userID, service.CreateGoalRequest{
		Title:       input.Body.Title,
		Type:        input.Body.Type,
		Period:      input.Body.Period,
		TargetValue: input.Body.TargetValue,
		IsRecurring: input.Body.IsRecurring,
		StartDate:   input.Body.StartDate,
		Deadline:    input.Body.Deadline,
	})
	if err != nil {
		return nil, err
	}

	return &GoalOutput{Body: goal}, nil
}

func (s *Server) handleListGoals(ctx context.Context, input *ListGoalsInput) (*ListGoalsOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	goals, err := s.services.Progress.ListGoals(ctx, userID, domain.GoalStatus(input.Status))
	if err != nil {
		return nil, err
	}

	return &ListGoalsOutput{Body: ListGoalsResponse{Goals: goals}}, nil
}

func (s *Server) handleCancelGoal(ctx context.Context, input *GoalIDInput) (*GoalOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	goal, err := s.services.Progress.CancelGoal(ctx, userID, input.ID)
	if err != nil {
		return nil, err
	}

	return &GoalOutput{Body: goal}, nil
}

package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/listenupapp/readtrack-server/internal/domain"
	"github.com/listenupapp/readtrack-server/internal/id"
)

func (s *Server) registerSessionRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID:   "startSession",
		Method:        http.MethodPost,
		Path:          "/api/v1/sessions",
		Summary:       "Start reading session",
		Description:   "Opens a new active session, abandoning any session the user still has open",
		Tags:          []string{"Sessions"},
		DefaultStatus: http.StatusCreated,
		Security:      []map[string][]string{{"bearer": {}}},
	}, s.handleStartSession)

	huma.Register(s.api, huma.Operation{
		OperationID: "getActiveSession",
		Method:      http.MethodGet,
		Path:        "/api/v1/sessions/active",
		Summary:     "Get active session",
		Description: "Returns the user's active session, or null when there is none. Paused sessions are not returned.",
		Tags:        []string{"Sessions"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleGetActiveSession)

	huma.Register(s.api, huma.Operation{
		OperationID: "updateSessionProgress",
		Method:      http.MethodPost,
		Path:        "/api/v1/sessions/{id}/progress",
		Summary:     "Report progress",
		Description: "Merges a progress delta into the active session",
		Tags:        []string{"Sessions"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleUpdateProgress)

	huma.Register(s.api, huma.Operation{
		OperationID: "pauseSession",
		Method:      http.MethodPost,
		Path:        "/api/v1/sessions/{id}/pause",
		Summary:     "Pause session",
		Tags:        []string{"Sessions"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handlePauseSession)

	huma.Register(s.api, huma.Operation{
		OperationID: "resumeSession",
		Method:      http.MethodPost,
		Path:        "/api/v1/sessions/{id}/resume",
		Summary:     "Resume session",
		Tags:        []string{"Sessions"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleResumeSession)

	huma.Register(s.api, huma.Operation{
		OperationID: "completeSession",
		Method:      http.MethodPost,
		Path:        "/api/v1/sessions/{id}/complete",
		Summary:     "Complete session",
		Description: "Finalizes the session and applies statistics, streak, goal and points updates",
		Tags:        []string{"Sessions"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleCompleteSession)

	huma.Register(s.api, huma.Operation{
		OperationID: "abandonSession",
		Method:      http.MethodPost,
		Path:        "/api/v1/sessions/{id}/abandon",
		Summary:     "Abandon session",
		Tags:        []string{"Sessions"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleAbandonSession)
}

// === DTOs ===

// StartSessionRequest is the request body for starting a session.
type StartSessionRequest struct {
	SessionID     string            `json:"session_id,omitempty" doc:"Client-chosen session ID; generated when omitted"`
	StartPosition *domain.Position  `json:"start_position,omitempty" doc:"Starting position; defaults to 1:1"`
	GoalType      domain.GoalType   `json:"goal_type,omitempty" doc:"Goal the session counts toward"`
	GoalTarget    int64             `json:"goal_target,omitempty" minimum:"0" doc:"Session goal target"`
	Extra         map[string]string `json:"extra,omitempty" doc:"Opaque client data stored with the session"`
}

// StartSessionInput wraps the start session request for Huma.
type StartSessionInput struct {
	Body StartSessionRequest
}

// StartSessionResponse identifies the session that was started.
type StartSessionResponse struct {
	SessionID string `json:"session_id" doc:"Session ID"`
}

// StartSessionOutput wraps the start session response for Huma.
type StartSessionOutput struct {
	Body StartSessionResponse
}

// ActiveSessionResponse contains the open session, if any.
type ActiveSessionResponse struct {
	Session *domain.ReadingSession `json:"session" doc:"Open session or null"`
}

// ActiveSessionOutput wraps the active session response for Huma.
type ActiveSessionOutput struct {
	Body ActiveSessionResponse
}

// SessionIDInput addresses a session by path.
type SessionIDInput struct {
	ID string `path:"id" doc:"Session ID"`
}

// UpdateProgressRequest is an incremental progress report.
type UpdateProgressRequest struct {
	CurrentPosition     *domain.Position  `json:"current_position,omitempty" doc:"Latest reading position"`
	UnitsRead           []domain.UnitRead `json:"units_read,omitempty" doc:"Minor units read since the last report"`
	CompletedMajorUnits []int             `json:"completed_major_units,omitempty" doc:"Major units finished since the last report"`
	AdditionalTimeMs    int64             `json:"additional_time_ms,omitempty" minimum:"0" doc:"Active reading time to add"`
	GoalProgress        *int64            `json:"goal_progress,omitempty" doc:"Absolute session goal progress"`
}

// UpdateProgressInput wraps the progress request for Huma.
type UpdateProgressInput struct {
	ID   string `path:"id" doc:"Session ID"`
	Body UpdateProgressRequest
}

// SessionStatusResponse reports a session's state after a transition.
type SessionStatusResponse struct {
	SessionID string               `json:"session_id" doc:"Session ID"`
	Status    domain.SessionStatus `json:"status" doc:"Session status"`
}

// SessionStatusOutput wraps the status response for Huma.
type SessionStatusOutput struct {
	Body SessionStatusResponse
}

// CompleteSessionRequest carries the values recorded at completion.
type CompleteSessionRequest struct {
	EndPosition *domain.Position `json:"end_position,omitempty" doc:"Final position"`
	Notes       string           `json:"notes,omitempty" maxLength:"5000" doc:"Free-form notes"`
	Reflection  string           `json:"reflection,omitempty" maxLength:"5000" doc:"Free-form reflection"`
	Rating      *int             `json:"rating,omitempty" doc:"Rating from 1 to 5"`
}

// CompleteSessionInput wraps the completion request for Huma.
type CompleteSessionInput struct {
	ID   string `path:"id" doc:"Session ID"`
	Body CompleteSessionRequest
}

// CompleteSessionOutput wraps the completion summary for Huma.
type CompleteSessionOutput struct {
	Body *domain.SessionSummary
}

// === Handlers ===

func (s *Server) handleStartSession(ctx context.Context, input *StartSessionInput) (*StartSessionOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	sessionID := input.Body.SessionID
	if sessionID == "" {
		if sessionID, err = id.NewSessionID(); err != nil {
			return nil, err
		}
	}

	started, err := s.services.Progress.StartSession(ctx, userID, sessionID, input.Body.StartPosition, domain.SessionOptions{
		GoalType:   input.Body.GoalType,
		GoalTarget: input.Body.GoalTarget,
		Extra:      input.Body.Extra,
	})
	if err != nil {
		return nil, err
	}

	return &StartSessionOutput{Body: StartSessionResponse{SessionID: started}}, nil
}

func (s *Server) handleGetActiveSession(ctx context.Context, _ *struct{}) (*ActiveSessionOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	session, err := s.services.Progress.GetActiveSession(ctx, userID)
	if err != nil {
		return nil, err
	}

	return &ActiveSessionOutput{Body: ActiveSessionResponse{Session: session}}, nil
}

func (s *Server) handleUpdateProgress(ctx context.Context, input *UpdateProgressInput) (*SessionStatusOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.checkProgressRate(userID); err != nil {
		return nil, err
	}

	err = s.services.Progress.UpdateProgress(ctx, userID, input.ID, domain.ProgressDelta{
		CurrentPosition:     input.Body.CurrentPosition,
		UnitsRead:           input.Body.UnitsRead,
		CompletedMajorUnits: input.Body.CompletedMajorUnits,
		AdditionalTimeMs:    input.Body.AdditionalTimeMs,
		GoalProgress:        input.Body.GoalProgress,
	})
	if err != nil {
		return nil, err
	}

	return statusOutput(input.ID, domain.SessionActive), nil
}

func (s *Server) handlePauseSession(ctx context.Context, input *SessionIDInput) (*SessionStatusOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	if err := s.services.Progress.PauseSession(ctx, userID, input.ID); err != nil {
		return nil, err
	}

	return statusOutput(input.ID, domain.SessionPaused), nil
}

func (s *Server) handleResumeSession(ctx context.Context, input *SessionIDInput) (*SessionStatusOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	if err := s.services.Progress.ResumeSession(ctx, userID, input.ID); err != nil {
		return nil, err
	}

	return statusOutput(input.ID, domain.SessionActive), nil
}

func (s *Server) handleCompleteSession(ctx context.Context, input *CompleteSessionInput) (*CompleteSessionOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	summary, err := s.services.Progress.CompleteSession(ctx, userID, input.ID, domain.CompletionFields{
		EndPosition: input.Body.EndPosition,
		Notes:       input.Body.Notes,
		Reflection:  input.Body.Reflection,
		Rating:      input.Body.Rating,
	})
	if err != nil {
		return nil, err
	}

	return &CompleteSessionOutput{Body: summary}, nil
}

func (s *Server) handleAbandonSession(ctx context.Context, input *SessionIDInput) (*SessionStatusOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	if err := s.services.Progress.AbandonSession(ctx, userID, input.ID); err != nil {
		return nil, err
	}

	return statusOutput(input.ID, domain.SessionAbandoned), nil
}

func statusOutput(sessionID string, status domain.SessionStatus) *SessionStatusOutput {
	return &SessionStatusOutput{Body: SessionStatusResponse{SessionID: sessionID, Status: status}}
}

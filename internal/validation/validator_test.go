package validation_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/listenupapp/readtrack-server/internal/errors"
	"github.com/listenupapp/readtrack-server/internal/validation"
)

type position struct {
	Major int `json:"major" validate:"gte=1"`
	Minor int `json:"minor" validate:"gte=1"`
}

type startRequest struct {
	SessionID string    `json:"session_id" validate:"required,recordid"`
	Start     *position `json:"start_position" validate:"required"`
	GoalType  string    `json:"goal_type,omitempty" validate:"omitempty,oneof=daily_time daily_units"`
	Day       string    `json:"day,omitempty" validate:"omitempty,isodate"`
}

func TestValidator_ValidateSuccess(t *testing.T) {
	v := validation.New()

	err := v.Validate(startRequest{
		SessionID: "s1",
		Start:     &position{Major: 1, Minor: 1},
		Day:       "2026-03-01",
	})
	assert.NoError(t, err)
}

func TestValidator_ValidateErrors(t *testing.T) {
	v := validation.New()

	tests := []struct {
		name      string
		req       startRequest
		wantField string
	}{
		{
			name:      "missing session id",
			req:       startRequest{Start: &position{Major: 1, Minor: 1}},
			wantField: "session_id",
		},
		{
			name:      "session id with whitespace",
			req:       startRequest{SessionID: "a b", Start: &position{Major: 1, Minor: 1}},
			wantField: "session_id",
		},
		{
			name:      "nested position out of range",
			req:       startRequest{SessionID: "s1", Start: &position{Major: 0, Minor: 1}},
			wantField: "start_position.major",
		},
		{
			name:      "unknown goal type",
			req:       startRequest{SessionID: "s1", Start: &position{Major: 1, Minor: 1}, GoalType: "weekly_time"},
			wantField: "goal_type",
		},
		{
			name:      "malformed day",
			req:       startRequest{SessionID: "s1", Start: &position{Major: 1, Minor: 1}, Day: "03/01/2026"},
			wantField: "day",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(tt.req)
			require.Error(t, err)

			var domainErr *errors.Error
			require.ErrorAs(t, err, &domainErr)
			assert.Equal(t, errors.CodeValidation, domainErr.Code)
			assert.Equal(t, http.StatusBadRequest, domainErr.HTTPStatus())

			details, ok := domainErr.Details.(map[string]string)
			require.True(t, ok)
			assert.Contains(t, details, tt.wantField)
		})
	}
}

func TestValidator_Var(t *testing.T) {
	v := validation.New()

	require.NoError(t, v.Var("rating", 3, "gte=1,lte=5"))

	err := v.Var("rating", 9, "gte=1,lte=5")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrValidation))
}

package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/danielgtaylor/huma/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainerrors "github.com/listenupapp/readtrack-server/internal/errors"
)

func TestEnvelopeTransformer_AlwaysIncludesVersion(t *testing.T) {
	tests := []struct {
		name   string
		status string
		input  any
	}{
		{"success response", "200", map[string]string{"key": "value"}},
		{"created response", "201", map[string]string{"id": "123"}},
		{"no content response", "204", nil},
		{"plain error", "400", errors.New("invalid input")},
		{"coded error", "409", &APIError{Code: "CONFLICT", Message: "version changed"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := EnvelopeTransformer(nil, tt.status, tt.input)
			require.NoError(t, err)

			raw, err := json.Marshal(result)
			require.NoError(t, err)

			var envelope map[string]any
			require.NoError(t, json.Unmarshal(raw, &envelope))
			assert.Equal(t, float64(EnvelopeVersion), envelope["v"])
		})
	}
}

func TestEnvelopeTransformer_SuccessResponse(t *testing.T) {
	data := map[string]string{"session_id": "s1"}

	result, err := EnvelopeTransformer(nil, "200", data)
	require.NoError(t, err)

	envelope, ok := result.(APIEnvelope)
	require.True(t, ok)
	assert.True(t, envelope.Success)
	assert.Equal(t, data, envelope.Data)
	assert.Empty(t, envelope.Error)
}

func TestEnvelopeTransformer_ErrorWithDetails(t *testing.T) {
	apiErr := &APIError{
		Code:    "PARTIAL_FAILURE",
		Message: "some goals could not be updated",
		Details: []string{"goal-1"},
	}

	result, err := EnvelopeTransformer(nil, "207", apiErr)
	require.NoError(t, err)

	// 207 is a success status; the error body is passed through as data.
	_, isEnvelope := result.(APIEnvelope)
	assert.True(t, isEnvelope)

	result, err = EnvelopeTransformer(nil, "409", apiErr)
	require.NoError(t, err)

	envelope, ok := result.(APIErrorEnvelope)
	require.True(t, ok)
	assert.False(t, envelope.Success)
	assert.Equal(t, "PARTIAL_FAILURE", envelope.Code)
	assert.Equal(t, []string{"goal-1"}, envelope.Details)
}

func TestRegisterErrorHandler_MapsDomainErrors(t *testing.T) {
	RegisterErrorHandler()

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"not found", domainerrors.NotFoundf("session %s not found", "s1"), http.StatusNotFound, "NOT_FOUND"},
		{"invalid state", domainerrors.InvalidState("session is paused"), http.StatusConflict, "INVALID_STATE"},
		{"storage", domainerrors.StorageUnavailable(errors.New("disk full"), "update session"), http.StatusServiceUnavailable, "STORAGE_UNAVAILABLE"},
		{"rate limited", domainerrors.RateLimited("slow down"), http.StatusTooManyRequests, "RATE_LIMITED"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			statusErr := huma.NewError(http.StatusInternalServerError, "unexpected error occurred", tt.err)

			apiErr, ok := statusErr.(*APIError)
			require.True(t, ok)
			assert.Equal(t, tt.wantStatus, apiErr.GetStatus())
			assert.Equal(t, tt.wantCode, apiErr.Code)
		})
	}
}

func TestRegisterErrorHandler_PlainStatus(t *testing.T) {
	RegisterErrorHandler()

	statusErr := huma.NewError(http.StatusUnprocessableEntity, "validation failed", errors.New("expected integer"))

	apiErr, ok := statusErr.(*APIError)
	require.True(t, ok)
	assert.Equal(t, http.StatusUnprocessableEntity, apiErr.GetStatus())
	assert.Equal(t, "VALIDATION", apiErr.Code)
	assert.Equal(t, []string{"expected integer"}, apiErr.Details)
}

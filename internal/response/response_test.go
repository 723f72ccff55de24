package response

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gallery/service/internal/apperr"
)

func decode(t *testing.T, rec *httptest.ResponseRecorder) Envelope {
	t.Helper()
	var env Envelope
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&env))
	return env
}

func TestErrMapsKinds(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"validation", apperr.Validation("bad input", map[string]string{"name": "required"}), http.StatusBadRequest, "VALIDATION_ERROR"},
		{"not found", apperr.NotFound("album", "a1"), http.StatusNotFound, "NOT_FOUND"},
		{"duplicate", fmt.Errorf("wrap: %w", apperr.Duplicate("category", "nature")), http.StatusBadRequest, "DUPLICATE"},
		{"constraint", apperr.Constraint("category has %d albums", 2), http.StatusBadRequest, "CONSTRAINT_VIOLATION"},
		{"auth", apperr.Auth("missing token"), http.StatusUnauthorized, "UNAUTHORIZED"},
		{"storage", apperr.Storage("upload failed", errors.New("503")), http.StatusInternalServerError, "STORAGE_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			Err(rec, tt.err)

			assert.Equal(t, tt.status, rec.Code)
			env := decode(t, rec)
			assert.False(t, env.Success)
			assert.Equal(t, tt.code, env.Code)
			assert.NotEmpty(t, env.Error)
		})
	}
}

func TestErrUnknownIsGeneric(t *testing.T) {
	rec := httptest.NewRecorder()
	Err(rec, errors.New("pq: connection refused"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	env := decode(t, rec)
	assert.Equal(t, "internal server error", env.Error)
	assert.Empty(t, env.Code)
}

func TestErrValidationCarriesFields(t *testing.T) {
	rec := httptest.NewRecorder()
	Err(rec, apperr.Validation("invalid request", map[string]string{"name": "is required"}))

	env := decode(t, rec)
	assert.Equal(t, map[string]string{"name": "is required"}, env.Fields)
}

func TestOK(t *testing.T) {
	rec := httptest.NewRecorder()
	OK(rec, map[string]int{"count": 2})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	env := decode(t, rec)
	assert.True(t, env.Success)
}

func TestStatusHelpers(t *testing.T) {
	rec := httptest.NewRecorder()
	Unauthorized(rec, "missing bearer token")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	env := decode(t, rec)
	assert.Equal(t, "UNAUTHORIZED", env.Code)
	assert.Equal(t, "missing bearer token", env.Error)

	rec = httptest.NewRecorder()
	TooManyRequests(rec, "slow down")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.False(t, decode(t, rec).Success)
}

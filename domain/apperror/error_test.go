package apperror

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSentinelsAreDistinct(t *testing.T) {
	sentinels := []error{ErrConfig, ErrAuth, ErrProvider, ErrValidation, ErrPersistence, ErrNotConnected, ErrNotFound}
	for i, a := range sentinels {
		for j, b := range sentinels {
			if i == j {
				continue
			}
			assert.False(t, errors.Is(a, b), "%v should not match %v", a, b)
		}
	}
}

func TestIsMatchesByKind(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", Provider("strava.refresh", http.StatusUnauthorized, "refresh rejected", nil))

	assert.True(t, errors.Is(err, ErrProvider))
	assert.False(t, errors.Is(err, ErrPersistence))
	assert.Equal(t, KindProvider, KindOf(err))
	assert.Equal(t, http.StatusUnauthorized, StatusOf(err))
}

func TestUnwrapKeepsCause(t *testing.T) {
	err := Persistence("stage_results.upsert", sql.ErrConnDone)

	assert.True(t, errors.Is(err, sql.ErrConnDone))
	assert.True(t, errors.Is(err, ErrPersistence))
	assert.Contains(t, err.Error(), "stage_results.upsert")
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{Validation("op", "bad"), http.StatusBadRequest},
		{Provider("op", 500, "down", nil), http.StatusBadRequest},
		{Auth("op", "no session"), http.StatusUnauthorized},
		{NotConnected("op", "no tokens"), http.StatusConflict},
		{NotFound("op", "missing"), http.StatusNotFound},
		{Config("op", "missing secret"), http.StatusInternalServerError},
		{errors.New("plain"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, HTTPStatus(tt.err), tt.err.Error())
	}
}

package core

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/seawatch-io/seawatch/internal/relay/core/model"
)

func TestHTTPStatus(t *testing.T) {
	_, parseErr := model.ParseTelemetry([]byte("B001"), "")

	tests := []struct {
		err  error
		want int
	}{
		{nil, http.StatusOK},
		{fmt.Errorf("login: %w", ErrUnauthorized), http.StatusUnauthorized},
		{parseErr, http.StatusBadRequest},
		{fmt.Errorf("lookup B009: %w", ErrUnknownVehicle), http.StatusNotFound},
		{ErrDownstreamUnavailable, http.StatusInternalServerError},
		{errors.New("database is locked"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, HTTPStatus(tt.err), "%v", tt.err)
	}
}

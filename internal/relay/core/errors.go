package core

import (
	"errors"
	"net/http"

	"github.com/seawatch-io/seawatch/internal/relay/core/model"
)

var (
	// ErrUnauthorized is the only error callers see for a rejected credential.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrMalformedInput marks a record or command that cannot be decoded.
	ErrMalformedInput = model.ErrMalformed

	// ErrUnknownVehicle marks a vehicle identity the inventory does not know.
	ErrUnknownVehicle = errors.New("unknown vehicle")

	// ErrDownstreamUnavailable marks a gateway that could not be reached.
	ErrDownstreamUnavailable = errors.New("downstream unavailable")

	// ErrRegistryInconsistency marks a subscription state that should not occur.
	ErrRegistryInconsistency = errors.New("registry inconsistency")
)

// HTTPStatus maps an error returned by the relay core onto a status code.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrMalformedInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnknownVehicle):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

package api

import (
	"errors"
	"net/http"

	"github.com/xraph/forge"

	"github.com/xraph/conduit"
	"github.com/xraph/conduit/route"
)

// mapError converts conduit errors to Forge HTTP errors.
func mapError(err error) error {
	var verr *route.ValidationError
	switch {
	case errors.Is(err, conduit.ErrRouteNotFound),
		errors.Is(err, conduit.ErrRunNotFound),
		errors.Is(err, conduit.ErrDeadLetterNotFound):
		return forge.NotFound(err.Error())
	case errors.As(err, &verr):
		return forge.BadRequest(err.Error())
	case errors.Is(err, conduit.ErrPayloadValidationFailed):
		return forge.BadRequest(err.Error())
	case errors.Is(err, conduit.ErrDuplicateIdempotencyKey),
		errors.Is(err, conduit.ErrAlreadyReplayed):
		return forge.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, conduit.ErrPoolStopped):
		return forge.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	default:
		return forge.InternalError(err)
	}
}

package api

import (
	"errors"
	"log/slog"
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/rcrt-io/rcrt/pkg/apierr"
)

// statusForKind maps a stable error kind to its HTTP status, keyed by the
// shared taxonomy every package below the gateway constructs directly.
//
// PreconditionRequired uses 428 (RFC 6585's actual "Precondition
// Required" status) rather than 412 ("Precondition Failed", which this
// taxonomy reserves for a mismatched If-Match, i.e. VersionConflict/409).
func statusForKind(kind apierr.Kind) int {
	switch kind {
	case apierr.Unauthenticated:
		return http.StatusUnauthorized
	case apierr.Forbidden:
		return http.StatusForbidden
	case apierr.NotFound:
		return http.StatusNotFound
	case apierr.VersionConflict:
		return http.StatusConflict
	case apierr.PreconditionRequired:
		return http.StatusPreconditionRequired
	case apierr.InvalidArgument:
		return http.StatusBadRequest
	case apierr.Conflict:
		return http.StatusConflict
	case apierr.RateLimited:
		return http.StatusTooManyRequests
	case apierr.UpstreamUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes the {error:{kind,message,details?}} envelope for
// err, logging unclassified errors before returning 500.
func respondError(c *echo.Context, err error) error {
	var apiErr *apierr.Error
	if !errors.As(err, &apiErr) {
		slog.Error("unclassified request error", "error", err)
		apiErr = apierr.New(apierr.Internal, "internal server error")
	}
	if apiErr.Kind == apierr.Internal {
		slog.Error("internal request error", "error", err)
	}
	return c.JSON(statusForKind(apiErr.Kind), ErrorResponse{Error: ErrorBody{
		Kind:    string(apiErr.Kind),
		Message: apiErr.Message,
		Details: apiErr.Details,
	}})
}

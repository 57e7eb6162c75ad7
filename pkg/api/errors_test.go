package api

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	echo "github.com/labstack/echo/v5"
	"github.com/stretchr/testify/assert"

	"github.com/rcrt-io/rcrt/pkg/apierr"
)

func TestStatusForKind(t *testing.T) {
	tests := []struct {
		kind apierr.Kind
		want int
	}{
		{apierr.Unauthenticated, http.StatusUnauthorized},
		{apierr.Forbidden, http.StatusForbidden},
		{apierr.NotFound, http.StatusNotFound},
		{apierr.VersionConflict, http.StatusConflict},
		{apierr.PreconditionRequired, http.StatusPreconditionRequired},
		{apierr.InvalidArgument, http.StatusBadRequest},
		{apierr.Conflict, http.StatusConflict},
		{apierr.RateLimited, http.StatusTooManyRequests},
		{apierr.UpstreamUnavailable, http.StatusServiceUnavailable},
		{apierr.Internal, http.StatusInternalServerError},
		{apierr.Kind("something-unrecognized"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			assert.Equal(t, tt.want, statusForKind(tt.kind))
		})
	}
}

func TestRespondErrorClassified(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := respondError(c, apierr.NotFoundf("breadcrumb %s not found", "bc_1"))

	assert.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "not_found")
	assert.Contains(t, rec.Body.String(), "bc_1")
}

func TestRespondErrorUnclassifiedFallsBackToInternal(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := respondError(c, errors.New("boom"))

	assert.NoError(t, err)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "internal server error")
}

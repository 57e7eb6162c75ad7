package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	echo "github.com/labstack/echo/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcrt-io/rcrt/pkg/apierr"
)

func newTestContext(header, value string) *echo.Context {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPatch, "/breadcrumbs/bc_1", nil)
	if header != "" {
		req.Header.Set(header, value)
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec)
}

func TestParseIfMatchMissingHeaderIsPreconditionRequired(t *testing.T) {
	c := newTestContext("", "")
	_, err := parseIfMatch(c)
	require.Error(t, err)

	var apiErr *apierr.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, apierr.PreconditionRequired, apiErr.Kind)
}

func TestParseIfMatchValid(t *testing.T) {
	c := newTestContext("If-Match", `"7"`)
	version, err := parseIfMatch(c)
	require.NoError(t, err)
	assert.Equal(t, 7, version)
}

func TestParseIfMatchUnquotedValid(t *testing.T) {
	c := newTestContext("If-Match", "3")
	version, err := parseIfMatch(c)
	require.NoError(t, err)
	assert.Equal(t, 3, version)
}

func TestParseIfMatchNonIntegerIsInvalidArgument(t *testing.T) {
	c := newTestContext("If-Match", "not-a-version")
	_, err := parseIfMatch(c)
	require.Error(t, err)

	var apiErr *apierr.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, apierr.InvalidArgument, apiErr.Kind)
}

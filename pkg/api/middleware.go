package api

import (
	"strings"

	echo "github.com/labstack/echo/v5"

	"github.com/rcrt-io/rcrt/pkg/apierr"
	"github.com/rcrt-io/rcrt/pkg/auth"
)

// claimsContextKey is the echo context key the auth middleware stores
// validated claims under.
const claimsContextKey = "claims"

// securityHeaders returns middleware that sets standard security response
// headers.
func securityHeaders() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c *echo.Context) error {
			h := c.Response().Header()
			h.Set("X-Frame-Options", "DENY")
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
			h.Set("Permissions-Policy", "camera=(), microphone=(), geolocation=()")
			return next(c)
		}
	}
}

// requireAuth validates the Authorization: Bearer <token> header via
// issuer and attaches the resulting claims to the request context for
// handlers to read with claimsFrom.
func requireAuth(issuer *auth.Issuer) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c *echo.Context) error {
			header := c.Request().Header.Get("Authorization")
			const prefix = "Bearer "
			if !strings.HasPrefix(header, prefix) {
				return respondError(c, apierr.New(apierr.Unauthenticated, "missing bearer token"))
			}
			claims, err := issuer.Validate(strings.TrimPrefix(header, prefix))
			if err != nil {
				return respondError(c, err)
			}
			c.Set(claimsContextKey, claims)
			return next(c)
		}
	}
}

// claimsFrom retrieves the validated claims a requireAuth middleware
// attached to c.
func claimsFrom(c *echo.Context) *auth.Claims {
	claims, _ := c.Get(claimsContextKey).(*auth.Claims)
	return claims
}

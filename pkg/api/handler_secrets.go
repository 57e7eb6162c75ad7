package api

import (
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/rcrt-io/rcrt/pkg/apierr"
	"github.com/rcrt-io/rcrt/pkg/auth"
	"github.com/rcrt-io/rcrt/pkg/models"
)

// createSecretHandler handles POST /secrets.
func (s *Server) createSecretHandler(c *echo.Context) error {
	claims := claimsFrom(c)
	if err := auth.RequireRole(claims, models.RoleEmitter); err != nil {
		return respondError(c, err)
	}
	var req CreateSecretRequest
	if err := c.Bind(&req); err != nil {
		return respondError(c, apierr.Invalidf("invalid request body: %v", err))
	}
	if req.Name == "" || req.Value == "" {
		return respondError(c, apierr.Invalidf("name and value are required"))
	}
	scope := models.SecretScope(req.Scope)
	switch scope {
	case models.ScopeGlobal, models.ScopeWorkspace, models.ScopeAgent:
	default:
		return respondError(c, apierr.Invalidf("scope must be one of global, workspace, agent"))
	}

	sec, err := s.secretsSv.Create(c.Request().Context(), claims.OwnerID, req.Name, scope, req.ScopeID, req.Value)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, sec)
}

// listSecretsHandler handles GET /secrets.
func (s *Server) listSecretsHandler(c *echo.Context) error {
	claims := claimsFrom(c)
	if claims == nil {
		return respondError(c, apierr.New(apierr.Unauthenticated, "missing credentials"))
	}
	var scope *models.SecretScope
	if raw := c.QueryParam("scope"); raw != "" {
		sc := models.SecretScope(raw)
		scope = &sc
	}
	secs, err := s.secretsSv.List(c.Request().Context(), claims.OwnerID, scope, c.QueryParam("scope_id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"items": secs})
}

// decryptSecretHandler handles POST /secrets/{id}/decrypt.
func (s *Server) decryptSecretHandler(c *echo.Context) error {
	claims := claimsFrom(c)
	if claims == nil {
		return respondError(c, apierr.New(apierr.Unauthenticated, "missing credentials"))
	}
	var req DecryptSecretRequest
	if err := c.Bind(&req); err != nil {
		return respondError(c, apierr.Invalidf("invalid request body: %v", err))
	}
	value, err := s.secretsSv.Decrypt(c.Request().Context(), claims.OwnerID, claims.AgentID, c.Param("id"), req.Reason)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, DecryptSecretResponse{Value: value})
}

// rotateSecretHandler handles POST /secrets/{id}/rotate.
func (s *Server) rotateSecretHandler(c *echo.Context) error {
	claims := claimsFrom(c)
	if claims == nil {
		return respondError(c, apierr.New(apierr.Unauthenticated, "missing credentials"))
	}
	var req RotateSecretRequest
	if err := c.Bind(&req); err != nil {
		return respondError(c, apierr.Invalidf("invalid request body: %v", err))
	}
	if req.NewValue == "" {
		return respondError(c, apierr.Invalidf("new_value is required"))
	}
	sec, err := s.secretsSv.Rotate(c.Request().Context(), claims.OwnerID, claims.AgentID, c.Param("id"), req.NewValue)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, sec)
}

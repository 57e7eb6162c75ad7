package api

import (
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/rcrt-io/rcrt/pkg/apierr"
	"github.com/rcrt-io/rcrt/pkg/auth"
	"github.com/rcrt-io/rcrt/pkg/models"
)

// backfillKeywordsHandler handles POST /admin/schemas/{name}/backfill-keywords:
// recomputes entity_keywords for every live breadcrumb under the named
// schema, for use after a curator edits that schema's llm_hints.
func (s *Server) backfillKeywordsHandler(c *echo.Context) error {
	claims := claimsFrom(c)
	if err := auth.RequireRole(claims, models.RoleCurator); err != nil {
		return respondError(c, err)
	}
	name := c.Param("name")
	if name == "" {
		return respondError(c, apierr.Invalidf("schema name is required"))
	}
	updated, err := s.store.BackfillKeywords(c.Request().Context(), name)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"updated": updated})
}

// listAgentsHandler handles GET /agents, curator only.
func (s *Server) listAgentsHandler(c *echo.Context) error {
	claims := claimsFrom(c)
	if err := auth.RequireRole(claims, models.RoleCurator); err != nil {
		return respondError(c, err)
	}
	agents, err := s.directory.ListAgents(c.Request().Context(), claims.OwnerID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"items": agents})
}

// createAgentHandler handles POST /agents/{id}.
func (s *Server) createAgentHandler(c *echo.Context) error {
	claims := claimsFrom(c)
	if err := auth.RequireRole(claims, models.RoleCurator); err != nil {
		return respondError(c, err)
	}
	var req CreateAgentRequest
	if err := c.Bind(&req); err != nil {
		return respondError(c, apierr.Invalidf("invalid request body: %v", err))
	}
	roles := make([]models.Role, len(req.Roles))
	for i, r := range req.Roles {
		roles[i] = models.Role(r)
	}
	agent, err := s.directory.CreateAgent(c.Request().Context(), c.Param("id"), claims.OwnerID, req.Name, roles)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, agent)
}

// deleteAgentHandler handles DELETE /agents/{id}.
func (s *Server) deleteAgentHandler(c *echo.Context) error {
	claims := claimsFrom(c)
	if err := auth.RequireRole(claims, models.RoleCurator); err != nil {
		return respondError(c, err)
	}
	if err := s.directory.DeleteAgent(c.Request().Context(), claims.OwnerID, c.Param("id")); err != nil {
		return respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// listSubscriptionsHandler handles GET /subscriptions.
func (s *Server) listSubscriptionsHandler(c *echo.Context) error {
	claims := claimsFrom(c)
	if err := auth.RequireRole(claims, models.RoleCurator); err != nil {
		return respondError(c, err)
	}
	agentID := c.QueryParam("agent_id")
	if agentID == "" {
		return respondError(c, apierr.Invalidf("agent_id query parameter is required"))
	}
	subs, err := s.directory.ListSubscriptions(c.Request().Context(), agentID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"items": subs})
}

// createSubscriptionHandler handles POST /subscriptions.
func (s *Server) createSubscriptionHandler(c *echo.Context) error {
	claims := claimsFrom(c)
	if err := auth.RequireRole(claims, models.RoleCurator); err != nil {
		return respondError(c, err)
	}
	var req CreateSubscriptionRequest
	if err := c.Bind(&req); err != nil {
		return respondError(c, apierr.Invalidf("invalid request body: %v", err))
	}
	if req.AgentID == "" {
		return respondError(c, apierr.Invalidf("agent_id is required"))
	}
	sub, err := s.directory.CreateSubscription(c.Request().Context(), req.AgentID, req.Selector)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, sub)
}

// deleteSubscriptionHandler handles DELETE /subscriptions/{id}.
func (s *Server) deleteSubscriptionHandler(c *echo.Context) error {
	claims := claimsFrom(c)
	if err := auth.RequireRole(claims, models.RoleCurator); err != nil {
		return respondError(c, err)
	}
	agentID := c.QueryParam("agent_id")
	if agentID == "" {
		return respondError(c, apierr.Invalidf("agent_id query parameter is required"))
	}
	if err := s.directory.DeleteSubscription(c.Request().Context(), agentID, c.Param("id")); err != nil {
		return respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	echo "github.com/labstack/echo/v5"

	"github.com/rcrt-io/rcrt/pkg/apierr"
	"github.com/rcrt-io/rcrt/pkg/auth"
	"github.com/rcrt-io/rcrt/pkg/models"
)

// createBreadcrumbHandler handles POST /breadcrumbs.
func (s *Server) createBreadcrumbHandler(c *echo.Context) error {
	claims := claimsFrom(c)
	if err := auth.RequireRole(claims, models.RoleEmitter); err != nil {
		return respondError(c, err)
	}

	var req CreateBreadcrumbRequest
	if err := c.Bind(&req); err != nil {
		return respondError(c, apierr.Invalidf("invalid request body: %v", err))
	}
	if req.Title == "" || req.SchemaName == "" {
		return respondError(c, apierr.Invalidf("title and schema_name are required"))
	}

	input := models.CreateInput{
		OwnerID:    claims.OwnerID,
		Title:      req.Title,
		SchemaName: req.SchemaName,
		Tags:       req.Tags,
		Context:    json.RawMessage(req.Context),
		ActorID:    claims.AgentID,
		TTLType:    models.TTLType(req.TTLType),
		TTLConfig:  json.RawMessage(req.TTLConfig),
	}
	if input.TTLType == "" {
		input.TTLType = models.TTLNever
	}

	created, err := s.store.Create(c.Request().Context(), input, c.Request().Header.Get("Idempotency-Key"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, created)
}

// listBreadcrumbsHandler handles GET /breadcrumbs.
func (s *Server) listBreadcrumbsHandler(c *echo.Context) error {
	claims := claimsFrom(c)
	if err := auth.RequireRole(claims, models.RoleSubscriber); err != nil {
		return respondError(c, err)
	}

	filter := models.ListFilter{
		SchemaName:      c.QueryParam("schema_name"),
		Tag:             c.QueryParam("tag"),
		OwnerID:         claims.OwnerID,
		CallerOwnerID:   claims.OwnerID,
		CallerAgentID:   claims.AgentID,
		CallerIsCurator: claims.HasRole(models.RoleCurator),
		IncludeContext:  c.QueryParam("include_context") == "true",
	}
	if anyTags := c.QueryParam("any_tags"); anyTags != "" {
		filter.TagsAny = strings.Split(anyTags, ",")
	}
	if allTags := c.QueryParam("all_tags"); allTags != "" {
		filter.TagsAll = strings.Split(allTags, ",")
	}
	if limit := c.QueryParam("limit"); limit != "" {
		if n, err := strconv.Atoi(limit); err == nil {
			filter.Limit = n
		}
	}
	if offset := c.QueryParam("offset"); offset != "" {
		if n, err := strconv.Atoi(offset); err == nil {
			filter.Offset = n
		}
	}
	if ims := c.Request().Header.Get("If-Modified-Since"); ims != "" {
		if t, err := http.ParseTime(ims); err == nil {
			filter.UpdatedAfter = &t
		}
	}

	items, err := s.store.List(c.Request().Context(), filter)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, ListBreadcrumbsResponse{Items: items})
}

// getBreadcrumbHandler handles GET /breadcrumbs/{id} (transformed read).
func (s *Server) getBreadcrumbHandler(c *echo.Context) error {
	claims := claimsFrom(c)
	if err := auth.RequireRole(claims, models.RoleSubscriber); err != nil {
		return respondError(c, err)
	}
	bc, err := s.store.Get(c.Request().Context(), claims, c.Param("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, bc)
}

// getBreadcrumbFullHandler handles GET /breadcrumbs/{id}/full (raw read).
func (s *Server) getBreadcrumbFullHandler(c *echo.Context) error {
	claims := claimsFrom(c)
	if err := auth.RequireRole(claims, models.RoleCurator); err != nil {
		return respondError(c, err)
	}
	bc, err := s.store.GetRaw(c.Request().Context(), claims, c.Param("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, bc)
}

// historyBreadcrumbHandler handles GET /breadcrumbs/{id}/history, curator
// only — expired/tombstoned breadcrumbs' history stays retrievable here
// even once the live read returns not_found.
func (s *Server) historyBreadcrumbHandler(c *echo.Context) error {
	claims := claimsFrom(c)
	if err := auth.RequireRole(claims, models.RoleCurator); err != nil {
		return respondError(c, err)
	}
	var version *int
	if v := c.QueryParam("version"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return respondError(c, apierr.Invalidf("invalid version query parameter"))
		}
		version = &n
	}
	hist, err := s.store.History(c.Request().Context(), claims, c.Param("id"), version)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"items": hist})
}

// parseIfMatch parses the If-Match header as the integer version it
// carries per the gateway's concurrency contract.
func parseIfMatch(c *echo.Context) (int, error) {
	raw := c.Request().Header.Get("If-Match")
	if raw == "" {
		return 0, apierr.New(apierr.PreconditionRequired, "If-Match header is required")
	}
	n, err := strconv.Atoi(strings.Trim(raw, `"`))
	if err != nil {
		return 0, apierr.Invalidf("If-Match header must be an integer version")
	}
	return n, nil
}

// patchBreadcrumbHandler handles PATCH /breadcrumbs/{id}.
func (s *Server) patchBreadcrumbHandler(c *echo.Context) error {
	claims := claimsFrom(c)
	if err := auth.RequireRole(claims, models.RoleEmitter); err != nil {
		return respondError(c, err)
	}
	ifMatch, err := parseIfMatch(c)
	if err != nil {
		return respondError(c, err)
	}

	var req PatchBreadcrumbRequest
	if err := c.Bind(&req); err != nil {
		return respondError(c, apierr.Invalidf("invalid request body: %v", err))
	}

	input := models.PatchInput{
		Title:      req.Title,
		Tags:       req.Tags,
		Context:    json.RawMessage(req.Context),
		SchemaName: req.SchemaName,
		ActorID:    claims.AgentID,
	}
	if req.TTLType != nil {
		t := models.TTLType(*req.TTLType)
		input.TTLType = &t
	}
	if req.TTLConfig != nil {
		input.TTLConfig = json.RawMessage(req.TTLConfig)
	}

	version, err := s.store.Patch(c.Request().Context(), claims, c.Param("id"), ifMatch, input)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, VersionResponse{Version: version})
}

// deleteBreadcrumbHandler handles DELETE /breadcrumbs/{id}. If-Match is
// optional here — when present it behaves as an optimistic guard, when
// absent the delete proceeds unconditionally.
func (s *Server) deleteBreadcrumbHandler(c *echo.Context) error {
	claims := claimsFrom(c)
	var ifMatch *int
	if raw := c.Request().Header.Get("If-Match"); raw != "" {
		n, err := strconv.Atoi(strings.Trim(raw, `"`))
		if err != nil {
			return respondError(c, apierr.Invalidf("If-Match header must be an integer version"))
		}
		ifMatch = &n
	}
	purge := c.QueryParam("purge") == "true"
	if err := s.store.Delete(c.Request().Context(), claims, c.Param("id"), claims.AgentID, ifMatch, purge); err != nil {
		return respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// addTagsHandler handles POST /breadcrumbs/{id}/tags/add.
func (s *Server) addTagsHandler(c *echo.Context) error {
	claims := claimsFrom(c)
	if err := auth.RequireRole(claims, models.RoleEmitter); err != nil {
		return respondError(c, err)
	}
	var req TagsRequest
	if err := c.Bind(&req); err != nil {
		return respondError(c, apierr.Invalidf("invalid request body: %v", err))
	}
	version, err := s.store.AddTags(c.Request().Context(), claims, c.Param("id"), claims.AgentID, req.Tags)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, VersionResponse{Version: version})
}

// removeTagsHandler handles POST /breadcrumbs/{id}/tags/remove.
func (s *Server) removeTagsHandler(c *echo.Context) error {
	claims := claimsFrom(c)
	if err := auth.RequireRole(claims, models.RoleEmitter); err != nil {
		return respondError(c, err)
	}
	var req TagsRequest
	if err := c.Bind(&req); err != nil {
		return respondError(c, apierr.Invalidf("invalid request body: %v", err))
	}
	version, err := s.store.RemoveTags(c.Request().Context(), claims, c.Param("id"), claims.AgentID, req.Tags)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, VersionResponse{Version: version})
}

// mergeContextHandler handles POST /breadcrumbs/{id}/context/merge. The
// raw request body is the merge patch itself.
func (s *Server) mergeContextHandler(c *echo.Context) error {
	claims := claimsFrom(c)
	if err := auth.RequireRole(claims, models.RoleEmitter); err != nil {
		return respondError(c, err)
	}
	var patch json.RawMessage
	if err := c.Bind(&patch); err != nil {
		return respondError(c, apierr.Invalidf("invalid request body: %v", err))
	}
	version, err := s.store.MergeContext(c.Request().Context(), claims, c.Param("id"), claims.AgentID, patch)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, VersionResponse{Version: version})
}

// approveHandler handles POST /breadcrumbs/{id}/approve.
func (s *Server) approveHandler(c *echo.Context) error {
	claims := claimsFrom(c)
	if err := auth.RequireRole(claims, models.RoleEmitter); err != nil {
		return respondError(c, err)
	}
	version, err := s.store.Approve(c.Request().Context(), claims, c.Param("id"), claims.AgentID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, VersionResponse{Version: version})
}

// rejectHandler handles POST /breadcrumbs/{id}/reject.
func (s *Server) rejectHandler(c *echo.Context) error {
	claims := claimsFrom(c)
	if err := auth.RequireRole(claims, models.RoleEmitter); err != nil {
		return respondError(c, err)
	}
	version, err := s.store.Reject(c.Request().Context(), claims, c.Param("id"), claims.AgentID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, VersionResponse{Version: version})
}

package api

import (
	"net/http"
	"strconv"
	"strings"

	echo "github.com/labstack/echo/v5"

	"github.com/rcrt-io/rcrt/pkg/apierr"
	"github.com/rcrt-io/rcrt/pkg/auth"
	"github.com/rcrt-io/rcrt/pkg/models"
	"github.com/rcrt-io/rcrt/pkg/search"
)

// searchBreadcrumbsHandler handles GET /breadcrumbs/search. A degraded
// response still returns 200 with a Warning header: embedder outages
// fall back to keyword-only search rather than failing the request.
func (s *Server) searchBreadcrumbsHandler(c *echo.Context) error {
	claims := claimsFrom(c)
	if err := auth.RequireRole(claims, models.RoleSubscriber); err != nil {
		return respondError(c, err)
	}

	query := search.Query{
		Text:           c.QueryParam("q"),
		SchemaName:     c.QueryParam("schema_name"),
		IncludeContext: c.QueryParam("include_context") == "true",
		CallerOwnerID:  claims.OwnerID,
	}
	if tag := c.QueryParam("tag"); tag != "" {
		query.AnyTags = strings.Split(tag, ",")
	}
	if nn := c.QueryParam("nn"); nn != "" {
		n, err := strconv.Atoi(nn)
		if err != nil {
			return respondError(c, apierr.Invalidf("nn must be an integer"))
		}
		query.K = n
	}
	if qvec := c.QueryParam("qvec"); qvec != "" {
		vec, err := decodeQueryVector(qvec)
		if err != nil {
			return respondError(c, apierr.Invalidf("qvec must be a comma-separated list of floats"))
		}
		query.Embedding = vec
	}

	results, degraded, err := s.planner.Search(c.Request().Context(), query)
	if err != nil {
		return respondError(c, err)
	}

	hits := make([]SearchHit, 0, len(results))
	for _, r := range results {
		hits = append(hits, SearchHit{
			ID:             r.Summary.ID,
			Version:        r.Summary.Version,
			OwnerID:        r.Summary.OwnerID,
			Title:          r.Summary.Title,
			SchemaName:     r.Summary.SchemaName,
			Tags:           r.Summary.Tags,
			Context:        r.Summary.Context,
			UpdatedAt:      r.Summary.UpdatedAt,
			CreatedAt:      r.Summary.CreatedAt,
			Score:          r.Score,
			VectorDistance: r.VectorDistance,
			KeywordOverlap: r.KeywordOverlap,
		})
	}
	if degraded {
		c.Response().Header().Set("Warning", `199 rcrt "embedder unavailable, results are keyword/tag-only"`)
	}
	return c.JSON(http.StatusOK, SearchResponse{Items: hits, Degraded: degraded})
}

// decodeQueryVector parses qvec as a comma-separated list of floats — a
// caller-precomputed embedding, used by callers that already know the
// target vector and want to query with it directly.
func decodeQueryVector(raw string) ([]float32, error) {
	parts := strings.Split(raw, ",")
	out := make([]float32, 0, len(parts))
	for _, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 32)
		if err != nil {
			return nil, err
		}
		out = append(out, float32(f))
	}
	return out, nil
}

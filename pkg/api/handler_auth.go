package api

import (
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/rcrt-io/rcrt/pkg/apierr"
	"github.com/rcrt-io/rcrt/pkg/models"
)

// mintTokenHandler handles POST /auth/token. Token issuance is delegated
// to a trusted caller (an identity endpoint upstream of this gateway);
// this handler only signs the claims it's handed, it does not
// authenticate the caller itself.
func (s *Server) mintTokenHandler(c *echo.Context) error {
	var req MintTokenRequest
	if err := c.Bind(&req); err != nil {
		return respondError(c, apierr.Invalidf("invalid request body: %v", err))
	}
	if req.OwnerID == "" || req.AgentID == "" {
		return respondError(c, apierr.Invalidf("owner_id and agent_id are required"))
	}
	for _, r := range req.Roles {
		if !models.ValidRole(models.Role(r)) {
			return respondError(c, apierr.Invalidf("unknown role %q", r))
		}
	}

	token, err := s.issuer.Mint(req.OwnerID, req.AgentID, req.Roles)
	if err != nil {
		return respondError(c, apierr.Wrap(apierr.Internal, "mint token", err))
	}
	return c.JSON(http.StatusOK, TokenResponse{Token: token})
}

package auth

import (
	"github.com/rcrt-io/rcrt/pkg/apierr"
	"github.com/rcrt-io/rcrt/pkg/models"
)

// RequireRole enforces the endpoint's declared role gate: curator passes
// every gate, otherwise the caller must carry the named role.
func RequireRole(claims *Claims, role models.Role) error {
	if claims == nil {
		return apierr.New(apierr.Unauthenticated, "missing credentials")
	}
	if !claims.HasRole(role) {
		return apierr.New(apierr.Forbidden, "requires role "+string(role))
	}
	return nil
}

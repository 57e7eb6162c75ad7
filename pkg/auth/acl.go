package auth

import (
	"strings"

	"github.com/rcrt-io/rcrt/pkg/models"
)

// publicTagPrefix marks a breadcrumb as tenant-wide readable regardless
// of ACL grants.
const publicTagPrefix = "public:"

// IsPublic reports whether tags carry a recognized public:* marker.
func IsPublic(tags []string) bool {
	for _, t := range tags {
		if strings.HasPrefix(t, publicTagPrefix) {
			return true
		}
	}
	return false
}

// grant finds the ACL row granting agentID access, if any.
func grant(acls []models.ACL, agentID string) (models.ACL, bool) {
	for _, a := range acls {
		if a.GranteeAgentID == agentID {
			return a, true
		}
	}
	return models.ACL{}, false
}

// CanRead implements the read visibility rule: owner, an explicit read
// grant, or a public:* tag.
func CanRead(claims *Claims, ownerID string, tags []string, acls []models.ACL) bool {
	if claims == nil {
		return false
	}
	if claims.OwnerID == ownerID {
		return true
	}
	if IsPublic(tags) {
		return true
	}
	if a, ok := grant(acls, claims.AgentID); ok {
		return a.Has(models.ActionRead)
	}
	return false
}

// CanUpdate implements the update visibility rule: owner or an explicit
// update grant. Unlike CanRead, a public:* tag never authorizes writes.
func CanUpdate(claims *Claims, ownerID string, acls []models.ACL) bool {
	if claims == nil {
		return false
	}
	if claims.OwnerID == ownerID {
		return true
	}
	if a, ok := grant(acls, claims.AgentID); ok {
		return a.Has(models.ActionUpdate)
	}
	return false
}

// CanDelete implements the delete visibility rule: owner, curator, or an
// explicit delete grant.
func CanDelete(claims *Claims, ownerID string, acls []models.ACL) bool {
	if claims == nil {
		return false
	}
	if claims.OwnerID == ownerID || claims.HasRole(models.RoleCurator) {
		return true
	}
	if a, ok := grant(acls, claims.AgentID); ok {
		return a.Has(models.ActionDelete)
	}
	return false
}

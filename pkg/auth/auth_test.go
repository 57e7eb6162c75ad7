package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcrt-io/rcrt/pkg/models"
)

func TestIssuerMintAndValidate(t *testing.T) {
	issuer := NewIssuer("test-signing-key", "rcrt", time.Hour)
	tok, err := issuer.Mint("owner-1", "agent-1", []string{"emitter"})
	require.NoError(t, err)

	claims, err := issuer.Validate(tok)
	require.NoError(t, err)
	assert.Equal(t, "owner-1", claims.OwnerID)
	assert.Equal(t, "agent-1", claims.AgentID)
	assert.True(t, claims.HasRole(models.RoleEmitter))
	assert.False(t, claims.HasRole(models.RoleCurator))
}

func TestIssuerRejectsForeignSignature(t *testing.T) {
	issuer := NewIssuer("key-a", "rcrt", time.Hour)
	other := NewIssuer("key-b", "rcrt", time.Hour)
	tok, err := issuer.Mint("o", "a", []string{"curator"})
	require.NoError(t, err)

	_, err = other.Validate(tok)
	assert.Error(t, err)
}

func TestCuratorHasAllRoles(t *testing.T) {
	c := Claims{Roles: []string{"curator"}}
	assert.True(t, c.HasRole(models.RoleEmitter))
	assert.True(t, c.HasRole(models.RoleSubscriber))
}

func TestCanReadOwnerAlwaysAllowed(t *testing.T) {
	claims := &Claims{OwnerID: "o1", AgentID: "a1"}
	assert.True(t, CanRead(claims, "o1", nil, nil))
}

func TestCanReadPublicTag(t *testing.T) {
	claims := &Claims{OwnerID: "o1", AgentID: "a1"}
	assert.True(t, CanRead(claims, "o2", []string{"public:team"}, nil))
}

func TestCanReadDeniedWithoutGrant(t *testing.T) {
	claims := &Claims{OwnerID: "o1", AgentID: "a1"}
	assert.False(t, CanRead(claims, "o2", nil, nil))
}

func TestCanReadExplicitGrant(t *testing.T) {
	claims := &Claims{OwnerID: "o1", AgentID: "a1"}
	acls := []models.ACL{{GranteeAgentID: "a1", Actions: models.ACLActions{models.ActionRead}}}
	assert.True(t, CanRead(claims, "o2", nil, acls))
}

func TestCanUpdateIgnoresPublicTag(t *testing.T) {
	claims := &Claims{OwnerID: "o1", AgentID: "a1"}
	assert.False(t, CanUpdate(claims, "o2", nil))
}

func TestMatchesSelectorTagsAndSchema(t *testing.T) {
	sel := models.Selector{AnyTags: []string{"x", "y"}, SchemaName: "note.v1"}
	assert.True(t, MatchesSelector(sel, []string{"y"}, "note.v1", nil))
	assert.False(t, MatchesSelector(sel, []string{"z"}, "note.v1", nil))
	assert.False(t, MatchesSelector(sel, []string{"y"}, "other.v1", nil))
}

func TestMatchesSelectorContextMatch(t *testing.T) {
	sel := models.Selector{
		ContextMatch: []models.ContextMatch{
			{Path: "priority", Op: models.OpGt, Value: float64(5)},
		},
	}
	assert.True(t, MatchesSelector(sel, nil, "", map[string]any{"priority": float64(9)}))
	assert.False(t, MatchesSelector(sel, nil, "", map[string]any{"priority": float64(1)}))
}

func TestMatchesSelectorExists(t *testing.T) {
	sel := models.Selector{ContextMatch: []models.ContextMatch{{Path: "foo.bar", Op: models.OpExists}}}
	assert.True(t, MatchesSelector(sel, nil, "", map[string]any{"foo": map[string]any{"bar": 1.0}}))
	assert.False(t, MatchesSelector(sel, nil, "", map[string]any{"foo": map[string]any{}}))
}

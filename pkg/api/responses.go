package api

import (
	"encoding/json"
	"time"

	"github.com/rcrt-io/rcrt/pkg/models"
)

// ErrorBody is the inner {kind, message, details?} object of an error
// response.
type ErrorBody struct {
	Kind    string         `json:"kind"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// ErrorResponse is the full error envelope every non-2xx response carries.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// TokenResponse is returned by POST /auth/token.
type TokenResponse struct {
	Token string `json:"token"`
}

// MintTokenRequest is the body accepted by POST /auth/token.
type MintTokenRequest struct {
	OwnerID string   `json:"owner_id"`
	AgentID string   `json:"agent_id"`
	Roles   []string `json:"roles"`
}

// CreateBreadcrumbRequest is the body accepted by POST /breadcrumbs.
type CreateBreadcrumbRequest struct {
	Title      string          `json:"title"`
	SchemaName string          `json:"schema_name"`
	Tags       []string        `json:"tags"`
	Context    json.RawMessage `json:"context"`
	TTLType    string          `json:"ttl_type,omitempty"`
	TTLConfig  json.RawMessage `json:"ttl_config,omitempty"`
}

// PatchBreadcrumbRequest is the body accepted by PATCH /breadcrumbs/{id}.
type PatchBreadcrumbRequest struct {
	Title      *string         `json:"title,omitempty"`
	Tags       []string        `json:"tags,omitempty"`
	Context    json.RawMessage `json:"context,omitempty"`
	SchemaName *string         `json:"schema_name,omitempty"`
	TTLType    *string         `json:"ttl_type,omitempty"`
	TTLConfig  json.RawMessage `json:"ttl_config,omitempty"`
}

// TagsRequest is the body accepted by the tags/add and tags/remove
// convenience endpoints.
type TagsRequest struct {
	Tags []string `json:"tags"`
}

// VersionResponse reports the new version produced by a convenience
// mutation (tags add/remove, context merge, approve, reject).
type VersionResponse struct {
	Version int `json:"version"`
}

// ListBreadcrumbsResponse wraps GET /breadcrumbs.
type ListBreadcrumbsResponse struct {
	Items []models.Summary `json:"items"`
}

// SearchHit is one ranked result from GET /breadcrumbs/search.
type SearchHit struct {
	ID             string          `json:"id"`
	Version        int             `json:"version"`
	OwnerID        string          `json:"owner_id"`
	Title          string          `json:"title"`
	SchemaName     string          `json:"schema_name"`
	Tags           models.StringSet `json:"tags"`
	Context        json.RawMessage `json:"context,omitempty"`
	UpdatedAt      time.Time       `json:"updated_at"`
	CreatedAt      time.Time       `json:"created_at"`
	Score          float64         `json:"score"`
	VectorDistance *float64        `json:"vector_distance,omitempty"`
	KeywordOverlap float64         `json:"keyword_overlap"`
}

// SearchResponse wraps GET /breadcrumbs/search. Degraded mirrors the
// Warning response header set when the embedder was unavailable.
type SearchResponse struct {
	Items    []SearchHit `json:"items"`
	Degraded bool        `json:"degraded"`
}

// CreateAgentRequest is the body accepted by POST /agents/{id}.
type CreateAgentRequest struct {
	Name  string   `json:"name"`
	Roles []string `json:"roles"`
}

// CreateSubscriptionRequest is the body accepted by POST /subscriptions.
type CreateSubscriptionRequest struct {
	AgentID  string          `json:"agent_id"`
	Selector models.Selector `json:"selector"`
}

// CreateSecretRequest is the body accepted by POST /secrets.
type CreateSecretRequest struct {
	Name    string `json:"name"`
	Scope   string `json:"scope"`
	ScopeID string `json:"scope_id,omitempty"`
	Value   string `json:"value"`
}

// DecryptSecretRequest is the body accepted by POST /secrets/{id}/decrypt.
type DecryptSecretRequest struct {
	Reason string `json:"reason"`
}

// DecryptSecretResponse carries the one-time plaintext.
type DecryptSecretResponse struct {
	Value string `json:"value"`
}

// RotateSecretRequest is the body accepted by POST /secrets/{id}/rotate.
type RotateSecretRequest struct {
	NewValue string `json:"new_value"`
}

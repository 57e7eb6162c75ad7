// Package models defines the core data shapes of the breadcrumb store:
// breadcrumbs, history rows, edges, schema definitions, secrets,
// subscriptions, ACLs, and agent identities.
package models

import (
	"encoding/json"
	"time"
)

// TTLType enumerates the five expiration policies a breadcrumb may carry.
type TTLType string

// TTL type constants.
const (
	TTLNever    TTLType = "never"
	TTLDatetime TTLType = "datetime"
	TTLDuration TTLType = "duration"
	TTLUsage    TTLType = "usage"
	TTLHybrid   TTLType = "hybrid"
)

// ValidTTLType reports whether t is one of the five known TTL types.
func ValidTTLType(t TTLType) bool {
	switch t {
	case TTLNever, TTLDatetime, TTLDuration, TTLUsage, TTLHybrid:
		return true
	default:
		return false
	}
}

// Breadcrumb is the universal versioned JSON document.
type Breadcrumb struct {
	ID             string     `db:"id" json:"id"`
	Version        int        `db:"version" json:"version"`
	OwnerID        string     `db:"owner_id" json:"owner_id"`
	Title          string     `db:"title" json:"title"`
	SchemaName     string     `db:"schema_name" json:"schema_name"`
	Tags           StringSet  `db:"tags" json:"tags"`
	Context        JSONB      `db:"context" json:"context"`
	Embedding      Vector     `db:"embedding" json:"embedding,omitempty"`
	CreatedBy      string     `db:"created_by" json:"created_by"`
	UpdatedBy      string     `db:"updated_by" json:"updated_by"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`
	Checksum       string     `db:"checksum" json:"checksum"`
	EntityKeywords StringList `db:"entity_keywords" json:"entity_keywords"`
	TTLType        TTLType    `db:"ttl_type" json:"ttl_type"`
	TTLConfig      JSONB      `db:"ttl_config" json:"ttl_config,omitempty"`
	TTLSource      string     `db:"ttl_source" json:"ttl_source,omitempty"`
	ReadCount      int64      `db:"read_count" json:"read_count"`
	ExpiresAt      *time.Time `db:"expires_at" json:"expires_at,omitempty"`
	DeletedAt      *time.Time `db:"deleted_at" json:"-"`
}

// IsLive reports whether the breadcrumb is visible to ordinary reads: not
// tombstoned, and either never-expiring or not yet past expires_at.
func (b *Breadcrumb) IsLive(now time.Time) bool {
	if b.DeletedAt != nil {
		return false
	}
	if b.ExpiresAt == nil {
		return true
	}
	return b.ExpiresAt.After(now)
}

// Summary is the projection returned by list operations (no context body
// unless include_context was requested).
type Summary struct {
	ID         string    `json:"id"`
	Version    int       `json:"version"`
	OwnerID    string    `json:"owner_id"`
	Title      string    `json:"title"`
	SchemaName string    `json:"schema_name"`
	Tags       StringSet `json:"tags"`
	UpdatedAt  time.Time `json:"updated_at"`
	CreatedAt  time.Time `json:"created_at"`
	Context    JSONB     `json:"context,omitempty"`
}

// History is one append-only prior-version row.
type History struct {
	BreadcrumbID string    `db:"breadcrumb_id" json:"breadcrumb_id"`
	Version      int       `db:"version" json:"version"`
	Title        string    `db:"title" json:"title"`
	SchemaName   string    `db:"schema_name" json:"schema_name"`
	Tags         StringSet `db:"tags" json:"tags"`
	Context      JSONB     `db:"context" json:"context"`
	Checksum     string    `db:"checksum" json:"checksum"`
	UpdatedBy    string    `db:"updated_by" json:"updated_by"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// CreateInput is the payload accepted by storage.Create.
type CreateInput struct {
	OwnerID    string
	Title      string
	SchemaName string
	Tags       []string
	Context    json.RawMessage
	Embedding  Vector
	ActorID    string
	TTLType    TTLType
	TTLConfig  json.RawMessage
	TTLSource  string
}

// PatchInput is the payload accepted by storage.Patch; nil fields are left
// unchanged.
type PatchInput struct {
	Title      *string
	Tags       []string
	Context    json.RawMessage
	SchemaName *string
	TTLType    *TTLType
	TTLConfig  json.RawMessage
	ActorID    string
}

// ListFilter describes the query parameters accepted by storage.List.
type ListFilter struct {
	SchemaName      string
	Tag             string
	TagsAny         []string
	TagsAll         []string
	OwnerID         string
	Limit           int
	Offset          int
	IncludeContext  bool
	UpdatedAfter    *time.Time
	CallerOwnerID   string
	CallerAgentID   string
	CallerIsCurator bool
}

package storage

import (
	"database/sql"
	"time"

	"github.com/rcrt-io/rcrt/pkg/models"
)

var breadcrumbColumns = []any{
	"id", "version", "owner_id", "title", "schema_name", "tags", "context",
	"embedding", "created_by", "updated_by", "created_at", "updated_at",
	"checksum", "entity_keywords", "ttl_type", "ttl_config", "ttl_source",
	"read_count", "expires_at", "deleted_at",
}

// breadcrumbRow is the database-native scan target: nullable columns use
// sql.Null* so Scan never fails on NULL, then toModel() converts to the
// model's *time.Time/string representation.
type breadcrumbRow struct {
	ID             string
	Version        int
	OwnerID        string
	Title          string
	SchemaName     string
	Tags           models.StringSet
	Context        models.JSONB
	Embedding      models.Vector
	CreatedBy      string
	UpdatedBy      string
	CreatedAt      time.Time
	UpdatedAt      time.Time
	Checksum       string
	EntityKeywords models.StringList
	TTLType        models.TTLType
	TTLConfig      models.JSONB
	TTLSource      sql.NullString
	ReadCount      int64
	ExpiresAt      sql.NullTime
	DeletedAt      sql.NullTime
}

func (r breadcrumbRow) toModel() models.Breadcrumb {
	b := models.Breadcrumb{
		ID:             r.ID,
		Version:        r.Version,
		OwnerID:        r.OwnerID,
		Title:          r.Title,
		SchemaName:     r.SchemaName,
		Tags:           r.Tags,
		Context:        r.Context,
		Embedding:      r.Embedding,
		CreatedBy:      r.CreatedBy,
		UpdatedBy:      r.UpdatedBy,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
		Checksum:       r.Checksum,
		EntityKeywords: r.EntityKeywords,
		TTLType:        r.TTLType,
		TTLConfig:      r.TTLConfig,
		ReadCount:      r.ReadCount,
	}
	if r.TTLSource.Valid {
		b.TTLSource = r.TTLSource.String
	}
	if r.ExpiresAt.Valid {
		t := r.ExpiresAt.Time
		b.ExpiresAt = &t
	}
	if r.DeletedAt.Valid {
		t := r.DeletedAt.Time
		b.DeletedAt = &t
	}
	return b
}

func scanBreadcrumb(row interface{ Scan(...any) error }) (breadcrumbRow, error) {
	var r breadcrumbRow
	err := row.Scan(
		&r.ID, &r.Version, &r.OwnerID, &r.Title, &r.SchemaName, &r.Tags, &r.Context,
		&r.Embedding, &r.CreatedBy, &r.UpdatedBy, &r.CreatedAt, &r.UpdatedAt,
		&r.Checksum, &r.EntityKeywords, &r.TTLType, &r.TTLConfig, &r.TTLSource,
		&r.ReadCount, &r.ExpiresAt, &r.DeletedAt,
	)
	return r, err
}

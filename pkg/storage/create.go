package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/oklog/ulid/v2"

	"github.com/rcrt-io/rcrt/pkg/apierr"
	"github.com/rcrt-io/rcrt/pkg/events"
	"github.com/rcrt-io/rcrt/pkg/models"
	"github.com/rcrt-io/rcrt/pkg/ttl"
)

// Create persists a new breadcrumb at version 1. When idempotencyKey is
// non-empty and matches a prior create from the same actor within the
// configured bounded window, the prior result is returned untouched — no
// new row, no event, no side effects.
func (s *Store) Create(ctx context.Context, input models.CreateInput, idempotencyKey string) (models.Breadcrumb, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return models.Breadcrumb{}, apierr.Wrap(apierr.Internal, "begin create transaction", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if idempotencyKey != "" {
		if hit, found, err := s.lookupIdempotencyKey(ctx, tx, input.ActorID, idempotencyKey); err != nil {
			return models.Breadcrumb{}, apierr.Wrap(apierr.Internal, "check idempotency key", err)
		} else if found {
			row, found, err := s.getRowTx(ctx, tx, hit.BreadcrumbID)
			if err != nil {
				return models.Breadcrumb{}, apierr.Wrap(apierr.Internal, "reload idempotent create", err)
			}
			if !found {
				return models.Breadcrumb{}, apierr.NotFoundf("breadcrumb %s not found", hit.BreadcrumbID)
			}
			if err := tx.Commit(); err != nil {
				return models.Breadcrumb{}, apierr.Wrap(apierr.Internal, "commit idempotent read", err)
			}
			return s.toProjectedModel(row)
		}
	}

	if input.Context == nil {
		input.Context = []byte("{}")
	}
	if input.TTLType == "" {
		input.TTLType = models.TTLNever
	}

	now := time.Now().UTC()
	id := ulid.Make().String()
	checksum := Checksum(input.Title, input.Tags, input.Context)

	entityKeywords, err := s.deriveKeywords(input.SchemaName, input.Title, input.Tags, input.Context)
	if err != nil {
		return models.Breadcrumb{}, apierr.Wrap(apierr.InvalidArgument, "derive entity keywords", err)
	}

	expiresAt, err := ttl.Materialize(input.TTLType, input.TTLConfig, now, now, 0)
	if err != nil {
		return models.Breadcrumb{}, apierr.Wrap(apierr.InvalidArgument, "materialize ttl", err)
	}

	insertSQL, args, err := s.goqu.Insert("breadcrumbs").Rows(goqu.Record{
		"id":              id,
		"version":         1,
		"owner_id":        input.OwnerID,
		"title":           input.Title,
		"schema_name":     input.SchemaName,
		"tags":            models.StringSet(input.Tags),
		"context":         models.JSONB(input.Context),
		"embedding":       input.Embedding,
		"created_by":      input.ActorID,
		"updated_by":      input.ActorID,
		"created_at":      now,
		"updated_at":      now,
		"checksum":        checksum,
		"entity_keywords": models.StringList(entityKeywords),
		"ttl_type":        string(input.TTLType),
		"ttl_config":      models.JSONB(input.TTLConfig),
		"ttl_source":      nullableString(input.TTLSource),
		"read_count":      0,
		"expires_at":      expiresAt,
	}).ToSQL()
	if err != nil {
		return models.Breadcrumb{}, apierr.Wrap(apierr.Internal, "build create insert", err)
	}
	if _, err := tx.ExecContext(ctx, insertSQL, args...); err != nil {
		return models.Breadcrumb{}, apierr.Wrap(apierr.Internal, "insert breadcrumb", err)
	}

	if idempotencyKey != "" {
		if err := s.recordIdempotencyKey(ctx, tx, input.ActorID, idempotencyKey, id, 1, now); err != nil {
			return models.Breadcrumb{}, apierr.Wrap(apierr.Internal, "record idempotency key", err)
		}
	}

	ev := events.Event{
		Type:         events.TypeBreadcrumbCreate,
		BreadcrumbID: id,
		SchemaName:   input.SchemaName,
		Tags:         input.Tags,
		Version:      1,
		ActorID:      input.ActorID,
		Timestamp:    now,
	}
	if _, err := s.publisher.Publish(ctx, tx, input.OwnerID, ev); err != nil {
		return models.Breadcrumb{}, apierr.Wrap(apierr.Internal, "publish create event", err)
	}

	if err := tx.Commit(); err != nil {
		return models.Breadcrumb{}, apierr.Wrap(apierr.Internal, "commit create transaction", err)
	}
	s.publisher.AfterCommit(ctx, input.OwnerID, ev)
	s.edges.Enqueue(id)

	row, found, err := s.getRowNoTx(ctx, id)
	if err != nil || !found {
		return models.Breadcrumb{}, apierr.Wrap(apierr.Internal, "reload created breadcrumb", err)
	}
	return s.toProjectedModel(row)
}

func nullableString(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func (s *Store) toProjectedModel(row breadcrumbRow) (models.Breadcrumb, error) {
	b := row.toModel()
	projected, err := s.projectContext(b.SchemaName, b.Title, b.Tags, b.Context)
	if err != nil {
		return models.Breadcrumb{}, fmt.Errorf("project context: %w", err)
	}
	b.Context = projected
	return b, nil
}

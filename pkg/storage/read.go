package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/lib/pq"

	"github.com/rcrt-io/rcrt/pkg/apierr"
	"github.com/rcrt-io/rcrt/pkg/auth"
	"github.com/rcrt-io/rcrt/pkg/models"
	"github.com/rcrt-io/rcrt/pkg/schema"
	"github.com/rcrt-io/rcrt/pkg/ttl"
)

// queryer is satisfied by both *sql.DB and *sql.Tx, letting read helpers
// run either standalone or inside a caller's transaction.
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) getRowNoTx(ctx context.Context, id string) (breadcrumbRow, bool, error) {
	return s.getRow(ctx, s.db, id)
}

func (s *Store) getRowTx(ctx context.Context, tx *sql.Tx, id string) (breadcrumbRow, bool, error) {
	return s.getRow(ctx, tx, id)
}

func (s *Store) getRow(ctx context.Context, q queryer, id string) (breadcrumbRow, bool, error) {
	query, args, err := s.goqu.From("breadcrumbs").Select(breadcrumbColumns...).Where(goqu.Ex{"id": id}).ToSQL()
	if err != nil {
		return breadcrumbRow{}, false, fmt.Errorf("build get query: %w", err)
	}
	row, err := scanBreadcrumb(q.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return breadcrumbRow{}, false, nil
	}
	if err != nil {
		return breadcrumbRow{}, false, fmt.Errorf("get breadcrumb %s: %w", id, err)
	}
	return row, true, nil
}

func (s *Store) loadACLs(ctx context.Context, q queryer, breadcrumbID string) ([]models.ACL, error) {
	query, args, err := s.goqu.From("acls").Select("breadcrumb_id", "grantee_agent_id", "actions").
		Where(goqu.Ex{"breadcrumb_id": breadcrumbID}).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build acl query: %w", err)
	}
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("load acls for %s: %w", breadcrumbID, err)
	}
	defer rows.Close()

	var out []models.ACL
	for rows.Next() {
		var a models.ACL
		if err := rows.Scan(&a.BreadcrumbID, &a.GranteeAgentID, &a.Actions); err != nil {
			return nil, fmt.Errorf("scan acl row: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// Get returns a live breadcrumb with its schema transform applied,
// incrementing read_count and re-materializing expires_at (a usage/hybrid
// TTL policy may transition to expired as a result) in the same
// transaction.
func (s *Store) Get(ctx context.Context, claims *auth.Claims, id string) (models.Breadcrumb, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return models.Breadcrumb{}, apierr.Wrap(apierr.Internal, "begin read transaction", err)
	}
	defer tx.Rollback() //nolint:errcheck

	row, found, err := s.getRowTx(ctx, tx, id)
	if err != nil {
		return models.Breadcrumb{}, apierr.Wrap(apierr.Internal, "load breadcrumb", err)
	}
	now := time.Now().UTC()
	if !found || !row.toModel().IsLive(now) {
		return models.Breadcrumb{}, apierr.NotFoundf("breadcrumb %s not found", id)
	}

	acls, err := s.loadACLs(ctx, tx, id)
	if err != nil {
		return models.Breadcrumb{}, apierr.Wrap(apierr.Internal, "load acls", err)
	}
	if !auth.CanRead(claims, row.OwnerID, row.Tags, acls) {
		return models.Breadcrumb{}, apierr.NotFoundf("breadcrumb %s not found", id)
	}

	newReadCount := row.ReadCount + 1
	expiresAt, err := ttl.Materialize(row.TTLType, row.TTLConfig, row.CreatedAt, now, newReadCount)
	if err != nil {
		return models.Breadcrumb{}, apierr.Wrap(apierr.Internal, "materialize ttl on read", err)
	}

	updateSQL, args, err := s.goqu.Update("breadcrumbs").
		Set(goqu.Record{"read_count": newReadCount, "expires_at": expiresAt}).
		Where(goqu.Ex{"id": id}).ToSQL()
	if err != nil {
		return models.Breadcrumb{}, apierr.Wrap(apierr.Internal, "build read_count update", err)
	}
	if _, err := tx.ExecContext(ctx, updateSQL, args...); err != nil {
		return models.Breadcrumb{}, apierr.Wrap(apierr.Internal, "bump read_count", err)
	}

	if err := tx.Commit(); err != nil {
		return models.Breadcrumb{}, apierr.Wrap(apierr.Internal, "commit read transaction", err)
	}

	row.ReadCount = newReadCount
	row.ExpiresAt = sql.NullTime{Time: zeroIfNil(expiresAt), Valid: expiresAt != nil}
	return s.toProjectedModel(row)
}

// GetRaw returns the untransformed breadcrumb, bypassing the schema
// engine. Restricted to curators; used by hygiene and debug tooling.
// Unlike Get, it never bumps read_count — inspection is not a consuming
// read.
func (s *Store) GetRaw(ctx context.Context, claims *auth.Claims, id string) (models.Breadcrumb, error) {
	if err := auth.RequireRole(claims, models.RoleCurator); err != nil {
		return models.Breadcrumb{}, err
	}
	row, found, err := s.getRowNoTx(ctx, id)
	if err != nil {
		return models.Breadcrumb{}, apierr.Wrap(apierr.Internal, "load breadcrumb", err)
	}
	if !found {
		return models.Breadcrumb{}, apierr.NotFoundf("breadcrumb %s not found", id)
	}
	return row.toModel(), nil
}

// SchemaLoader returns a schema.Loader bound to this store, used once at
// startup to prime the registry's cache and again on every Reload. It
// reads live schema.def.v1 breadcrumbs directly rather than going through
// List/Get so it sees every owner's definitions, not just one tenant's.
func (s *Store) SchemaLoader() schema.Loader {
	return func(ctx context.Context) ([]schema.RawDef, error) {
		query, args, err := s.goqu.From("breadcrumbs").
			Select("id", "version", "tags", "context").
			Where(goqu.Ex{"schema_name": schema.DefSchemaName, "deleted_at": nil}).
			ToSQL()
		if err != nil {
			return nil, fmt.Errorf("build schema def query: %w", err)
		}
		rows, err := s.db.QueryContext(ctx, query, args...)
		if err != nil {
			return nil, fmt.Errorf("load schema defs: %w", err)
		}
		defer rows.Close()

		var defs []schema.RawDef
		for rows.Next() {
			var (
				id      string
				version int
				tags    models.StringSet
				ctxJSON models.JSONB
			)
			if err := rows.Scan(&id, &version, &tags, &ctxJSON); err != nil {
				return nil, fmt.Errorf("scan schema def row: %w", err)
			}
			defs = append(defs, schema.RawDef{ID: id, Version: version, Tags: []string(tags), Context: []byte(ctxJSON)})
		}
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("iterate schema def rows: %w", err)
		}
		return defs, nil
	}
}

// List returns summaries matching filter, scoped to the caller's own
// tenant (filter.OwnerID) where every breadcrumb is visible per
// auth.CanRead's owner rule — no per-row ACL join is needed for
// same-tenant listing.
func (s *Store) List(ctx context.Context, filter models.ListFilter) ([]models.Summary, error) {
	selectCols := []any{"id", "version", "owner_id", "title", "schema_name", "tags", "updated_at", "created_at"}
	if filter.IncludeContext {
		selectCols = append(selectCols, "context")
	}

	ds := s.goqu.From(goqu.T("breadcrumbs").As("b")).Select(selectCols...).
		Where(goqu.I("b.deleted_at").IsNull())

	now := time.Now().UTC()
	ds = ds.Where(goqu.Or(goqu.I("b.expires_at").IsNull(), goqu.I("b.expires_at").Gt(now)))

	if filter.OwnerID != "" {
		ds = ds.Where(goqu.Ex{"b.owner_id": filter.OwnerID})
	} else {
		ds = ds.Where(goqu.Ex{"b.owner_id": filter.CallerOwnerID})
	}
	if filter.SchemaName != "" {
		ds = ds.Where(goqu.Ex{"b.schema_name": filter.SchemaName})
	}
	if filter.Tag != "" {
		ds = ds.Where(goqu.L("? = ANY(b.tags)", filter.Tag))
	}
	if len(filter.TagsAny) > 0 {
		ds = ds.Where(goqu.L("b.tags && ?", pq.Array(filter.TagsAny)))
	}
	if len(filter.TagsAll) > 0 {
		ds = ds.Where(goqu.L("b.tags @> ?", pq.Array(filter.TagsAll)))
	}
	if filter.UpdatedAfter != nil {
		ds = ds.Where(goqu.I("b.updated_at").Gt(*filter.UpdatedAfter))
	}

	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	ds = ds.Order(goqu.I("b.updated_at").Desc(), goqu.I("b.id").Asc()).Limit(uint(limit)).Offset(uint(filter.Offset))

	query, args, err := ds.ToSQL()
	if err != nil {
		return nil, apierr.Wrap(apierr.Internal, "build list query", err)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apierr.Wrap(apierr.Internal, "list breadcrumbs", err)
	}
	defer rows.Close()

	var out []models.Summary
	for rows.Next() {
		var sm models.Summary
		var tags models.StringSet
		scanArgs := []any{&sm.ID, &sm.Version, &sm.OwnerID, &sm.Title, &sm.SchemaName, &tags, &sm.UpdatedAt, &sm.CreatedAt}
		if filter.IncludeContext {
			scanArgs = append(scanArgs, &sm.Context)
		}
		if err := rows.Scan(scanArgs...); err != nil {
			return nil, apierr.Wrap(apierr.Internal, "scan summary row", err)
		}
		sm.Tags = tags
		if filter.IncludeContext {
			projected, err := s.projectContext(sm.SchemaName, sm.Title, sm.Tags, sm.Context)
			if err != nil {
				return nil, apierr.Wrap(apierr.Internal, "project summary context", err)
			}
			sm.Context = projected
		}
		out = append(out, sm)
	}
	return out, rows.Err()
}

func zeroIfNil(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}

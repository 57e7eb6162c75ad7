package storage

import (
	"context"

	"github.com/doug-martin/goqu/v9"

	"github.com/rcrt-io/rcrt/pkg/apierr"
	"github.com/rcrt-io/rcrt/pkg/auth"
	"github.com/rcrt-io/rcrt/pkg/models"
)

// History returns one prior version (if version is non-nil) or every
// prior version, oldest first. A breadcrumb still on hand is access
// checked the same way Get is; one purged entirely (hard-deleted, no
// current row) is only inspectable by a curator.
func (s *Store) History(ctx context.Context, claims *auth.Claims, id string, version *int) ([]models.History, error) {
	row, found, err := s.getRowNoTx(ctx, id)
	if err != nil {
		return nil, apierr.Wrap(apierr.Internal, "load breadcrumb", err)
	}
	if found {
		acls, err := s.loadACLs(ctx, s.db, id)
		if err != nil {
			return nil, apierr.Wrap(apierr.Internal, "load acls", err)
		}
		if !auth.CanRead(claims, row.OwnerID, row.Tags, acls) {
			return nil, apierr.NotFoundf("breadcrumb %s not found", id)
		}
	} else if err := auth.RequireRole(claims, models.RoleCurator); err != nil {
		return nil, err
	}

	ds := s.goqu.From("breadcrumb_history").
		Select("breadcrumb_id", "version", "title", "schema_name", "tags", "context", "checksum", "updated_by", "updated_at").
		Where(goqu.Ex{"breadcrumb_id": id}).
		Order(goqu.I("version").Asc())
	if version != nil {
		ds = ds.Where(goqu.Ex{"version": *version})
	}

	query, args, err := ds.ToSQL()
	if err != nil {
		return nil, apierr.Wrap(apierr.Internal, "build history query", err)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apierr.Wrap(apierr.Internal, "query history", err)
	}
	defer rows.Close()

	var out []models.History
	for rows.Next() {
		var h models.History
		var tags models.StringSet
		var ctxBytes models.JSONB
		if err := rows.Scan(&h.BreadcrumbID, &h.Version, &h.Title, &h.SchemaName, &tags, &ctxBytes, &h.Checksum, &h.UpdatedBy, &h.UpdatedAt); err != nil {
			return nil, apierr.Wrap(apierr.Internal, "scan history row", err)
		}
		h.Tags = tags
		h.Context = ctxBytes
		out = append(out, h)
	}
	if err := rows.Err(); err != nil {
		return nil, apierr.Wrap(apierr.Internal, "iterate history rows", err)
	}
	if version != nil && len(out) == 0 {
		return nil, apierr.NotFoundf("version %d of breadcrumb %s not found", *version, id)
	}
	return out, nil
}

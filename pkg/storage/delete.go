package storage

import (
	"context"
	"database/sql"
	"time"

	"github.com/doug-martin/goqu/v9"

	"github.com/rcrt-io/rcrt/pkg/apierr"
	"github.com/rcrt-io/rcrt/pkg/auth"
	"github.com/rcrt-io/rcrt/pkg/events"
	"github.com/rcrt-io/rcrt/pkg/models"
)

// Delete removes a breadcrumb: soft (tombstone, history retained) by
// default, hard (row removed, history still retained) when purge=true —
// which is restricted to curators. An optional ifMatch enforces
// optimistic concurrency the same way Patch does.
func (s *Store) Delete(ctx context.Context, claims *auth.Claims, id, actorID string, ifMatch *int, purge bool) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return apierr.Wrap(apierr.Internal, "begin delete transaction", err)
	}
	defer tx.Rollback() //nolint:errcheck

	row, found, err := s.getRowTx(ctx, tx, id)
	if err != nil {
		return apierr.Wrap(apierr.Internal, "load breadcrumb", err)
	}
	if !found {
		return apierr.NotFoundf("breadcrumb %s not found", id)
	}
	acls, err := s.loadACLs(ctx, tx, id)
	if err != nil {
		return apierr.Wrap(apierr.Internal, "load acls", err)
	}
	if !auth.CanDelete(claims, row.OwnerID, acls) {
		return apierr.NotFoundf("breadcrumb %s not found", id)
	}
	if purge && !claims.HasRole(models.RoleCurator) {
		return apierr.New(apierr.Forbidden, "purge requires the curator role")
	}

	cond := goqu.Ex{"id": id}
	if ifMatch != nil {
		cond["version"] = *ifMatch
	}

	var execSQL string
	var args []any
	now := time.Now().UTC()
	if purge {
		execSQL, args, err = s.goqu.Delete("breadcrumbs").Where(cond).ToSQL()
	} else {
		execSQL, args, err = s.goqu.Update("breadcrumbs").Set(goqu.Record{"deleted_at": now}).Where(cond).ToSQL()
	}
	if err != nil {
		return apierr.Wrap(apierr.Internal, "build delete statement", err)
	}

	res, err := tx.ExecContext(ctx, execSQL, args...)
	if err != nil {
		return apierr.Wrap(apierr.Internal, "execute delete", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return apierr.Wrap(apierr.Internal, "read delete row count", err)
	}
	if affected == 0 {
		if ifMatch != nil {
			return s.disambiguateConflict(ctx, tx, id)
		}
		return apierr.NotFoundf("breadcrumb %s not found", id)
	}

	ev := events.Event{
		Type:         events.TypeBreadcrumbDelete,
		BreadcrumbID: id,
		SchemaName:   row.SchemaName,
		Tags:         row.Tags,
		Version:      row.Version,
		ActorID:      actorID,
		Timestamp:    now,
	}
	if _, err := s.publisher.Publish(ctx, tx, row.OwnerID, ev); err != nil {
		return apierr.Wrap(apierr.Internal, "publish delete event", err)
	}

	if err := tx.Commit(); err != nil {
		return apierr.Wrap(apierr.Internal, "commit delete transaction", err)
	}
	s.publisher.AfterCommit(ctx, row.OwnerID, ev)
	return nil
}

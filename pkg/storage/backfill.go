package storage

import (
	"context"
	"fmt"

	"github.com/doug-martin/goqu/v9"

	"github.com/rcrt-io/rcrt/pkg/apierr"
	"github.com/rcrt-io/rcrt/pkg/models"
)

// BackfillKeywords recomputes entity_keywords for every live breadcrumb
// under schemaName — the curator-only admin operation a schema.def.v1
// update's changed llm_hints requires, since deriveKeywords only runs
// automatically on create/patch and an existing row's keywords would
// otherwise stay stale until its next edit.
func (s *Store) BackfillKeywords(ctx context.Context, schemaName string) (int, error) {
	query, args, err := s.goqu.From("breadcrumbs").
		Select("id", "title", "tags", "context").
		Where(goqu.Ex{"schema_name": schemaName, "deleted_at": nil}).
		ToSQL()
	if err != nil {
		return 0, apierr.Wrap(apierr.Internal, "build backfill select", err)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return 0, apierr.Wrap(apierr.Internal, "load breadcrumbs for backfill", err)
	}
	defer rows.Close()

	type target struct {
		id      string
		title   string
		tags    models.StringSet
		context models.JSONB
	}
	var targets []target
	for rows.Next() {
		var t target
		if err := rows.Scan(&t.id, &t.title, &t.tags, &t.context); err != nil {
			return 0, apierr.Wrap(apierr.Internal, "scan backfill row", err)
		}
		targets = append(targets, t)
	}
	if err := rows.Err(); err != nil {
		return 0, apierr.Wrap(apierr.Internal, "iterate backfill rows", err)
	}

	updated := 0
	for _, t := range targets {
		keywords, err := s.deriveKeywords(schemaName, t.title, []string(t.tags), []byte(t.context))
		if err != nil {
			return updated, apierr.Wrap(apierr.InvalidArgument, fmt.Sprintf("derive keywords for %s", t.id), err)
		}
		updateSQL, updateArgs, err := s.goqu.Update("breadcrumbs").
			Set(goqu.Record{"entity_keywords": models.StringList(keywords)}).
			Where(goqu.Ex{"id": t.id}).ToSQL()
		if err != nil {
			return updated, apierr.Wrap(apierr.Internal, "build backfill update", err)
		}
		if _, err := s.db.ExecContext(ctx, updateSQL, updateArgs...); err != nil {
			return updated, apierr.Wrap(apierr.Internal, fmt.Sprintf("apply backfill update for %s", t.id), err)
		}
		updated++
	}
	return updated, nil
}

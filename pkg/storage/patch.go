package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/doug-martin/goqu/v9"

	"github.com/rcrt-io/rcrt/pkg/apierr"
	"github.com/rcrt-io/rcrt/pkg/auth"
	"github.com/rcrt-io/rcrt/pkg/events"
	"github.com/rcrt-io/rcrt/pkg/models"
	"github.com/rcrt-io/rcrt/pkg/ttl"
)

// Patch applies a partial update under optimistic concurrency control:
// the conditional "WHERE version = if_match" update either succeeds
// (version bumps by exactly one, prior state appended to history) or
// fails, disambiguated into not_found vs version_conflict by a follow-up
// SELECT inside the same transaction.
func (s *Store) Patch(ctx context.Context, claims *auth.Claims, id string, ifMatch int, input models.PatchInput) (int, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return 0, apierr.Wrap(apierr.Internal, "begin patch transaction", err)
	}
	defer tx.Rollback() //nolint:errcheck

	row, found, err := s.getRowTx(ctx, tx, id)
	if err != nil {
		return 0, apierr.Wrap(apierr.Internal, "load breadcrumb", err)
	}
	if !found {
		return 0, apierr.NotFoundf("breadcrumb %s not found", id)
	}
	acls, err := s.loadACLs(ctx, tx, id)
	if err != nil {
		return 0, apierr.Wrap(apierr.Internal, "load acls", err)
	}
	if !auth.CanUpdate(claims, row.OwnerID, acls) {
		return 0, apierr.NotFoundf("breadcrumb %s not found", id)
	}

	newVersion, err := s.applyPatch(ctx, tx, row, ifMatch, input)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, apierr.Wrap(apierr.Internal, "commit patch transaction", err)
	}

	ev := events.Event{
		Type:         events.TypeBreadcrumbUpdate,
		BreadcrumbID: id,
		SchemaName:   row.SchemaName,
		Version:      newVersion,
		ActorID:      input.ActorID,
		Timestamp:    time.Now().UTC(),
	}
	s.publisher.AfterCommit(ctx, row.OwnerID, ev)
	s.edges.Enqueue(id)
	return newVersion, nil
}

// applyPatch performs the conditional UPDATE, history append, and
// in-transaction event publish shared by Patch and every convenience
// mutation. Returns the new version.
func (s *Store) applyPatch(ctx context.Context, tx *sql.Tx, row breadcrumbRow, ifMatch int, input models.PatchInput) (int, error) {
	newTitle := row.Title
	if input.Title != nil {
		newTitle = *input.Title
	}
	newTags := []string(row.Tags)
	if input.Tags != nil {
		newTags = input.Tags
	}
	newContext := []byte(row.Context)
	if len(input.Context) > 0 {
		newContext = input.Context
	}
	newSchemaName := row.SchemaName
	if input.SchemaName != nil {
		newSchemaName = *input.SchemaName
	}
	newTTLType := row.TTLType
	if input.TTLType != nil {
		newTTLType = *input.TTLType
	}
	newTTLConfig := []byte(row.TTLConfig)
	if len(input.TTLConfig) > 0 {
		newTTLConfig = input.TTLConfig
	}

	now := time.Now().UTC()
	checksum := Checksum(newTitle, newTags, newContext)
	entityKeywords, err := s.deriveKeywords(newSchemaName, newTitle, newTags, newContext)
	if err != nil {
		return 0, apierr.Wrap(apierr.InvalidArgument, "derive entity keywords", err)
	}
	expiresAt, err := ttl.Materialize(newTTLType, newTTLConfig, row.CreatedAt, now, row.ReadCount)
	if err != nil {
		return 0, apierr.Wrap(apierr.InvalidArgument, "materialize ttl", err)
	}

	updateSQL, args, err := s.goqu.Update("breadcrumbs").Set(goqu.Record{
		"version":         ifMatch + 1,
		"title":           newTitle,
		"schema_name":     newSchemaName,
		"tags":            models.StringSet(newTags),
		"context":         models.JSONB(newContext),
		"ttl_type":        string(newTTLType),
		"ttl_config":      models.JSONB(newTTLConfig),
		"entity_keywords": models.StringList(entityKeywords),
		"checksum":        checksum,
		"updated_by":      input.ActorID,
		"updated_at":      now,
		"expires_at":      expiresAt,
	}).Where(goqu.Ex{"id": row.ID, "version": ifMatch}).Returning("version").ToSQL()
	if err != nil {
		return 0, apierr.Wrap(apierr.Internal, "build patch update", err)
	}

	var newVersion int
	err = tx.QueryRowContext(ctx, updateSQL, args...).Scan(&newVersion)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, s.disambiguateConflict(ctx, tx, row.ID)
	}
	if err != nil {
		return 0, apierr.Wrap(apierr.Internal, "apply patch update", err)
	}

	historySQL, histArgs, err := s.goqu.Insert("breadcrumb_history").Rows(goqu.Record{
		"breadcrumb_id": row.ID,
		"version":       row.Version,
		"title":         row.Title,
		"schema_name":   row.SchemaName,
		"tags":          row.Tags,
		"context":       row.Context,
		"checksum":      row.Checksum,
		"updated_by":    row.UpdatedBy,
		"updated_at":    row.UpdatedAt,
	}).ToSQL()
	if err != nil {
		return 0, apierr.Wrap(apierr.Internal, "build history insert", err)
	}
	if _, err := tx.ExecContext(ctx, historySQL, histArgs...); err != nil {
		return 0, apierr.Wrap(apierr.Internal, "append history row", err)
	}

	ev := events.Event{
		Type:         events.TypeBreadcrumbUpdate,
		BreadcrumbID: row.ID,
		SchemaName:   newSchemaName,
		Tags:         newTags,
		Version:      newVersion,
		ActorID:      input.ActorID,
		Timestamp:    now,
	}
	if _, err := s.publisher.Publish(ctx, tx, row.OwnerID, ev); err != nil {
		return 0, apierr.Wrap(apierr.Internal, "publish update event", err)
	}
	return newVersion, nil
}

// disambiguateConflict is called after a zero-rows-affected conditional
// update to decide whether the breadcrumb vanished (not_found) or simply
// moved to a different version (version_conflict).
func (s *Store) disambiguateConflict(ctx context.Context, tx *sql.Tx, id string) error {
	query, args, err := s.goqu.From("breadcrumbs").Select("version").Where(goqu.Ex{"id": id}).ToSQL()
	if err != nil {
		return apierr.Wrap(apierr.Internal, "build conflict check query", err)
	}
	var current int
	err = tx.QueryRowContext(ctx, query, args...).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return apierr.NotFoundf("breadcrumb %s not found", id)
	}
	if err != nil {
		return apierr.Wrap(apierr.Internal, "check current version", err)
	}
	return apierr.New(apierr.VersionConflict, "breadcrumb version has changed").
		WithDetails(map[string]any{"current_version": current})
}

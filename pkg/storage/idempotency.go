package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
)

// idempotencyHit is what a prior create within the bounded window left
// behind.
type idempotencyHit struct {
	BreadcrumbID string
	Version      int
}

// lookupIdempotencyKey returns a prior create's (id, version) if agentID
// presented this exact key within the configured bounded window.
func (s *Store) lookupIdempotencyKey(ctx context.Context, tx *sql.Tx, agentID, key string) (idempotencyHit, bool, error) {
	cutoff := time.Now().UTC().Add(-s.idempotencyWindow)
	query, args, err := s.goqu.From("idempotency_keys").
		Select("breadcrumb_id", "version").
		Where(goqu.Ex{"agent_id": agentID, "key": key}, goqu.C("created_at").Gt(cutoff)).
		ToSQL()
	if err != nil {
		return idempotencyHit{}, false, fmt.Errorf("build idempotency lookup: %w", err)
	}
	var hit idempotencyHit
	err = tx.QueryRowContext(ctx, query, args...).Scan(&hit.BreadcrumbID, &hit.Version)
	if errors.Is(err, sql.ErrNoRows) {
		return idempotencyHit{}, false, nil
	}
	if err != nil {
		return idempotencyHit{}, false, fmt.Errorf("lookup idempotency key: %w", err)
	}
	return hit, true, nil
}

// recordIdempotencyKey persists the (agent_id, key) -> (breadcrumb_id,
// version) mapping for a just-completed create.
func (s *Store) recordIdempotencyKey(ctx context.Context, tx *sql.Tx, agentID, key, breadcrumbID string, version int, now time.Time) error {
	insertSQL, args, err := s.goqu.Insert("idempotency_keys").Rows(goqu.Record{
		"agent_id":      agentID,
		"key":           key,
		"breadcrumb_id": breadcrumbID,
		"version":       version,
		"created_at":    now,
	}).ToSQL()
	if err != nil {
		return fmt.Errorf("build idempotency insert: %w", err)
	}
	if _, err := tx.ExecContext(ctx, insertSQL, args...); err != nil {
		return fmt.Errorf("record idempotency key: %w", err)
	}
	return nil
}

package secrets

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"

	"github.com/rcrt-io/rcrt/pkg/models"
)

// store is the goqu-over-*sql.DB data access layer for secrets and
// secret_audit, following the same query-then-exec pattern as the rest of
// the storage layer.
type store struct {
	db   *sql.DB
	goqu *goqu.Database
}

type secretRow struct {
	ID         string
	OwnerID    string
	Name       string
	ScopeType  string
	ScopeID    string
	Ciphertext []byte
	Nonce      []byte
	WrappedDEK []byte
	DEKSalt    []byte
	CreatedAt  time.Time
	RotatedAt  sql.NullTime
	LastUsedAt sql.NullTime
}

func (r secretRow) toModel() models.Secret {
	s := models.Secret{
		ID:         r.ID,
		OwnerID:    r.OwnerID,
		Name:       r.Name,
		ScopeType:  models.SecretScope(r.ScopeType),
		ScopeID:    r.ScopeID,
		Ciphertext: r.Ciphertext,
		Nonce:      r.Nonce,
		WrappedDEK: r.WrappedDEK,
		DEKSalt:    r.DEKSalt,
		CreatedAt:  r.CreatedAt,
	}
	if r.RotatedAt.Valid {
		t := r.RotatedAt.Time
		s.RotatedAt = &t
	}
	if r.LastUsedAt.Valid {
		t := r.LastUsedAt.Time
		s.LastUsedAt = &t
	}
	return s
}

var secretColumns = []any{"id", "owner_id", "name", "scope_type", "scope_id", "ciphertext", "nonce", "wrapped_dek", "dek_salt", "created_at", "rotated_at", "last_used_at"}

func scanSecret(row interface{ Scan(...any) error }) (secretRow, error) {
	var r secretRow
	err := row.Scan(&r.ID, &r.OwnerID, &r.Name, &r.ScopeType, &r.ScopeID, &r.Ciphertext, &r.Nonce, &r.WrappedDEK, &r.DEKSalt, &r.CreatedAt, &r.RotatedAt, &r.LastUsedAt)
	return r, err
}

func (s *store) insert(ctx context.Context, sec models.Secret, env envelope) error {
	insertSQL, args, err := s.goqu.Insert("secrets").Rows(goqu.Record{
		"id":          sec.ID,
		"owner_id":    sec.OwnerID,
		"name":        sec.Name,
		"scope_type":  string(sec.ScopeType),
		"scope_id":    sec.ScopeID,
		"ciphertext":  env.ciphertext,
		"nonce":       env.nonce,
		"wrapped_dek": env.wrappedDEK,
		"dek_salt":    env.dekSalt,
		"created_at":  sec.CreatedAt,
	}).ToSQL()
	if err != nil {
		return fmt.Errorf("build secret insert: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, insertSQL, args...); err != nil {
		return fmt.Errorf("insert secret: %w", err)
	}
	return nil
}

func (s *store) getByID(ctx context.Context, id string) (secretRow, bool, error) {
	query, args, err := s.goqu.From("secrets").Select(secretColumns...).Where(goqu.Ex{"id": id}).ToSQL()
	if err != nil {
		return secretRow{}, false, fmt.Errorf("build get secret query: %w", err)
	}
	r, err := scanSecret(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return secretRow{}, false, nil
	}
	if err != nil {
		return secretRow{}, false, fmt.Errorf("get secret %s: %w", id, err)
	}
	return r, true, nil
}

func (s *store) existsByName(ctx context.Context, ownerID, scopeType, scopeID, name string) (bool, error) {
	query, args, err := s.goqu.From("secrets").Select(goqu.L("1")).
		Where(goqu.Ex{"owner_id": ownerID, "scope_type": scopeType, "scope_id": scopeID, "name": name}).
		Limit(1).ToSQL()
	if err != nil {
		return false, fmt.Errorf("build exists query: %w", err)
	}
	var one int
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check secret exists: %w", err)
	}
	return true, nil
}

func (s *store) list(ctx context.Context, ownerID string, scope *models.SecretScope, scopeID string) ([]models.Secret, error) {
	ds := s.goqu.From("secrets").Select(secretColumns...).Where(goqu.Ex{"owner_id": ownerID}).Order(goqu.I("name").Asc())
	if scope != nil {
		ds = ds.Where(goqu.Ex{"scope_type": string(*scope), "scope_id": scopeID})
	}
	query, args, err := ds.ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build list secrets query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list secrets: %w", err)
	}
	defer rows.Close()

	var out []models.Secret
	for rows.Next() {
		r, err := scanSecret(rows)
		if err != nil {
			return nil, fmt.Errorf("scan secret row: %w", err)
		}
		out = append(out, r.toModel())
	}
	return out, rows.Err()
}

func (s *store) updateCiphertext(ctx context.Context, id string, env envelope, now time.Time) error {
	updateSQL, args, err := s.goqu.Update("secrets").Set(goqu.Record{
		"ciphertext":  env.ciphertext,
		"nonce":       env.nonce,
		"wrapped_dek": env.wrappedDEK,
		"dek_salt":    env.dekSalt,
		"rotated_at":  now,
	}).Where(goqu.Ex{"id": id}).ToSQL()
	if err != nil {
		return fmt.Errorf("build rotate secret update: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, updateSQL, args...); err != nil {
		return fmt.Errorf("rotate secret %s: %w", id, err)
	}
	return nil
}

func (s *store) touchLastUsed(ctx context.Context, id string, now time.Time) error {
	updateSQL, args, err := s.goqu.Update("secrets").Set(goqu.Record{"last_used_at": now}).Where(goqu.Ex{"id": id}).ToSQL()
	if err != nil {
		return fmt.Errorf("build touch last_used_at update: %w", err)
	}
	_, err = s.db.ExecContext(ctx, updateSQL, args...)
	return err
}

func (s *store) insertAudit(ctx context.Context, a models.SecretAudit) error {
	insertSQL, args, err := s.goqu.Insert("secret_audit").Rows(goqu.Record{
		"id":        a.ID,
		"secret_id": a.SecretID,
		"agent_id":  a.AgentID,
		"action":    a.Action,
		"reason":    a.Reason,
		"ts":        a.Ts,
	}).ToSQL()
	if err != nil {
		return fmt.Errorf("build audit insert: %w", err)
	}
	_, err = s.db.ExecContext(ctx, insertSQL, args...)
	return err
}

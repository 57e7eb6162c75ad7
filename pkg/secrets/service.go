package secrets

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/oklog/ulid/v2"

	"github.com/rcrt-io/rcrt/pkg/apierr"
	"github.com/rcrt-io/rcrt/pkg/models"
)

// Service implements the four secret-store operations: create, list,
// decrypt, rotate. Every decrypt and rotate writes an audit row.
type Service struct {
	store *store
	kek   *KEK
}

// New constructs a Service bound to the given database handles and KEK.
func New(db *sql.DB, goquDB *goqu.Database, kek *KEK) *Service {
	return &Service{store: &store{db: db, goqu: goquDB}, kek: kek}
}

// Create encrypts value under a fresh DEK and persists the secret.
// Plaintext is never returned or logged. A duplicate (owner, scope, name)
// is a conflict, matching the stable error taxonomy's duplicate-name case.
func (s *Service) Create(ctx context.Context, ownerID, name string, scope models.SecretScope, scopeID, value string) (models.Secret, error) {
	exists, err := s.store.existsByName(ctx, ownerID, string(scope), scopeID, name)
	if err != nil {
		return models.Secret{}, apierr.Wrap(apierr.Internal, "check existing secret", err)
	}
	if exists {
		return models.Secret{}, apierr.New(apierr.Conflict, fmt.Sprintf("secret %q already exists in this scope", name))
	}

	env, err := s.kek.encryptValue(value)
	if err != nil {
		return models.Secret{}, apierr.Wrap(apierr.Internal, "encrypt secret value", err)
	}

	sec := models.Secret{
		ID:        ulid.Make().String(),
		OwnerID:   ownerID,
		Name:      name,
		ScopeType: scope,
		ScopeID:   scopeID,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.insert(ctx, sec, env); err != nil {
		return models.Secret{}, apierr.Wrap(apierr.Internal, "persist secret", err)
	}
	return sec, nil
}

// List returns metadata only — plaintext never appears here. An optional
// scope narrows the listing to a single (scope_type, scope_id) pair.
func (s *Service) List(ctx context.Context, ownerID string, scope *models.SecretScope, scopeID string) ([]models.Secret, error) {
	secs, err := s.store.list(ctx, ownerID, scope, scopeID)
	if err != nil {
		return nil, apierr.Wrap(apierr.Internal, "list secrets", err)
	}
	return secs, nil
}

// Decrypt returns the plaintext value of secret id to a caller whose
// ownerID matches the secret's owner; any other caller, including one
// holding the curator role, gets forbidden. An audit entry is recorded
// only after decryption succeeds; failed attempts are not audited.
func (s *Service) Decrypt(ctx context.Context, ownerID, agentID, id, reason string) (string, error) {
	row, found, err := s.store.getByID(ctx, id)
	if err != nil {
		return "", apierr.Wrap(apierr.Internal, "load secret", err)
	}
	if !found {
		return "", apierr.NotFoundf("secret %s not found", id)
	}
	if row.OwnerID != ownerID {
		return "", apierr.New(apierr.Forbidden, "not authorized to decrypt this secret")
	}

	env := envelope{ciphertext: row.Ciphertext, nonce: row.Nonce, wrappedDEK: row.WrappedDEK, dekSalt: row.DEKSalt}
	plaintext, err := s.kek.decryptValue(env)
	if err != nil {
		return "", apierr.Wrap(apierr.Internal, "decrypt secret value", err)
	}

	now := time.Now().UTC()
	if err := s.store.touchLastUsed(ctx, id, now); err != nil {
		return "", apierr.Wrap(apierr.Internal, "update last_used_at", err)
	}
	if err := s.store.insertAudit(ctx, models.SecretAudit{
		ID:       ulid.Make().String(),
		SecretID: id,
		AgentID:  agentID,
		Action:   "decrypt",
		Reason:   reason,
		Ts:       now,
	}); err != nil {
		return "", apierr.Wrap(apierr.Internal, "write decrypt audit", err)
	}

	return plaintext, nil
}

// Rotate replaces a secret's value with a fresh DEK and ciphertext,
// recording a rotation audit entry.
func (s *Service) Rotate(ctx context.Context, ownerID, agentID, id, newValue string) (models.Secret, error) {
	row, found, err := s.store.getByID(ctx, id)
	if err != nil {
		return models.Secret{}, apierr.Wrap(apierr.Internal, "load secret", err)
	}
	if !found {
		return models.Secret{}, apierr.NotFoundf("secret %s not found", id)
	}
	if row.OwnerID != ownerID {
		return models.Secret{}, apierr.New(apierr.Forbidden, "not authorized to rotate this secret")
	}

	env, err := s.kek.encryptValue(newValue)
	if err != nil {
		return models.Secret{}, apierr.Wrap(apierr.Internal, "encrypt rotated value", err)
	}

	now := time.Now().UTC()
	if err := s.store.updateCiphertext(ctx, id, env, now); err != nil {
		return models.Secret{}, apierr.Wrap(apierr.Internal, "persist rotated secret", err)
	}
	if err := s.store.insertAudit(ctx, models.SecretAudit{
		ID:       ulid.Make().String(),
		SecretID: id,
		AgentID:  agentID,
		Action:   "rotate",
		Ts:       now,
	}); err != nil {
		return models.Secret{}, apierr.Wrap(apierr.Internal, "write rotate audit", err)
	}

	updated, found, err := s.store.getByID(ctx, id)
	if err != nil || !found {
		return models.Secret{}, apierr.Wrap(apierr.Internal, "reload rotated secret", err)
	}
	return updated.toModel(), nil
}

package config

import (
	"errors"
	"fmt"
)

// Validate checks required fields and rejects configurations that would
// leave the server unable to start safely — an empty signing key or KEK
// is worse than a loud failure at boot.
func (c *Config) Validate() error {
	var errs []error

	if c.Database.Database == "" {
		errs = append(errs, errors.New("database.database is required"))
	}
	if c.Auth.SigningKey == "" {
		errs = append(errs, errors.New("auth.signing_key (JWT_SIGNING_KEY) is required"))
	}
	if c.Secrets.KEKBase64 == "" {
		errs = append(errs, errors.New("secrets.kek (SECRETS_KEK) is required"))
	}
	if c.Embedder.Dim <= 0 {
		errs = append(errs, errors.New("embedder.dim must be positive"))
	}
	if c.Edges.WorkerCount <= 0 {
		errs = append(errs, errors.New("edges.worker_count must be positive"))
	}
	if c.Hygiene.BatchSize <= 0 {
		errs = append(errs, errors.New("hygiene.batch_size must be positive"))
	}
	switch c.Hygiene.Action {
	case "tombstone", "hard_delete", "archive":
	default:
		errs = append(errs, fmt.Errorf("hygiene.action must be one of tombstone, hard_delete, archive, got %q", c.Hygiene.Action))
	}
	if c.Search.CandidateMultiple <= 0 {
		errs = append(errs, errors.New("search.candidate_multiple must be positive"))
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
}

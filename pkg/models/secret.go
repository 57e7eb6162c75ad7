package models

import "time"

// SecretScope controls the blast radius of a secret.
type SecretScope string

// Secret scope constants.
const (
	ScopeGlobal    SecretScope = "global"
	ScopeWorkspace SecretScope = "workspace"
	ScopeAgent     SecretScope = "agent"
)

// Secret is an envelope-encrypted value. Plaintext never leaves the
// secret store except through Decrypt, which is audited.
type Secret struct {
	ID          string      `db:"id" json:"id"`
	OwnerID     string      `db:"owner_id" json:"owner_id"`
	Name        string      `db:"name" json:"name"`
	ScopeType   SecretScope `db:"scope_type" json:"scope_type"`
	ScopeID     string      `db:"scope_id" json:"scope_id,omitempty"`
	Ciphertext  []byte      `db:"ciphertext" json:"-"`
	Nonce       []byte      `db:"nonce" json:"-"`
	WrappedDEK  []byte      `db:"wrapped_dek" json:"-"`
	DEKSalt     []byte      `db:"dek_salt" json:"-"`
	CreatedAt   time.Time   `db:"created_at" json:"created_at"`
	RotatedAt   *time.Time  `db:"rotated_at" json:"rotated_at,omitempty"`
	LastUsedAt  *time.Time  `db:"last_used_at" json:"last_used_at,omitempty"`
}

// SecretAudit is one row written for every decrypt or rotate operation.
type SecretAudit struct {
	ID       string    `db:"id" json:"id"`
	SecretID string    `db:"secret_id" json:"secret_id"`
	AgentID  string    `db:"agent_id" json:"agent_id"`
	Action   string    `db:"action" json:"action"` // "decrypt" | "rotate"
	Reason   string    `db:"reason" json:"reason,omitempty"`
	Ts       time.Time `db:"ts" json:"ts"`
}

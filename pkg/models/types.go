package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/pgvector/pgvector-go"

	"github.com/lib/pq"
)

// StringSet is an unordered set of tags, persisted as a Postgres text[]
// column via lib/pq's array support (goqu's postgres dialect does not
// provide its own array scanner, so we lean on pq.Array for the
// driver.Valuer/sql.Scanner pair).
type StringSet []string

// Value implements driver.Valuer.
func (s StringSet) Value() (driver.Value, error) {
	return pq.Array([]string(s)).Value()
}

// Scan implements sql.Scanner.
func (s *StringSet) Scan(src interface{}) error {
	var arr []string
	if err := pq.Array(&arr).Scan(src); err != nil {
		return fmt.Errorf("scan string set: %w", err)
	}
	*s = arr
	return nil
}

// Has reports whether tag is present in the set.
func (s StringSet) Has(tag string) bool {
	for _, t := range s {
		if t == tag {
			return true
		}
	}
	return false
}

// StringList is an ordered, deduplicated sequence of tokens (entity_keywords),
// persisted the same way as StringSet but semantically order-preserving.
type StringList []string

// Value implements driver.Valuer.
func (s StringList) Value() (driver.Value, error) {
	return pq.Array([]string(s)).Value()
}

// Scan implements sql.Scanner.
func (s *StringList) Scan(src interface{}) error {
	var arr []string
	if err := pq.Array(&arr).Scan(src); err != nil {
		return fmt.Errorf("scan string list: %w", err)
	}
	*s = arr
	return nil
}

// RoleList persists an agent's roles as a Postgres text[] column.
type RoleList []Role

// Value implements driver.Valuer.
func (r RoleList) Value() (driver.Value, error) {
	strs := make([]string, len(r))
	for i, v := range r {
		strs[i] = string(v)
	}
	return pq.Array(strs).Value()
}

// Scan implements sql.Scanner.
func (r *RoleList) Scan(src interface{}) error {
	var arr []string
	if err := pq.Array(&arr).Scan(src); err != nil {
		return fmt.Errorf("scan role list: %w", err)
	}
	roles := make([]Role, len(arr))
	for i, v := range arr {
		roles[i] = Role(v)
	}
	*r = roles
	return nil
}

// ACLActions persists the set of grantable rights as a Postgres text[] column.
type ACLActions []ACLAction

// Value implements driver.Valuer.
func (a ACLActions) Value() (driver.Value, error) {
	strs := make([]string, len(a))
	for i, v := range a {
		strs[i] = string(v)
	}
	return pq.Array(strs).Value()
}

// Scan implements sql.Scanner.
func (a *ACLActions) Scan(src interface{}) error {
	var arr []string
	if err := pq.Array(&arr).Scan(src); err != nil {
		return fmt.Errorf("scan acl actions: %w", err)
	}
	actions := make([]ACLAction, len(arr))
	for i, v := range arr {
		actions[i] = ACLAction(v)
	}
	*a = actions
	return nil
}

// JSONB is a raw JSON document persisted in a Postgres jsonb column. It
// behaves like json.RawMessage for marshaling but additionally implements
// sql.Scanner/driver.Valuer so it can be read and written directly by
// database/sql.
type JSONB []byte

// Value implements driver.Valuer.
func (j JSONB) Value() (driver.Value, error) {
	if len(j) == 0 {
		return nil, nil
	}
	return []byte(j), nil
}

// Scan implements sql.Scanner.
func (j *JSONB) Scan(src interface{}) error {
	if src == nil {
		*j = nil
		return nil
	}
	switch v := src.(type) {
	case []byte:
		cp := make([]byte, len(v))
		copy(cp, v)
		*j = cp
	case string:
		*j = []byte(v)
	default:
		return fmt.Errorf("unsupported jsonb scan source %T", src)
	}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (j JSONB) MarshalJSON() ([]byte, error) {
	if len(j) == 0 {
		return []byte("null"), nil
	}
	return j, nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (j *JSONB) UnmarshalJSON(data []byte) error {
	*j = append((*j)[:0], data...)
	return nil
}

// Value implements driver.Valuer for Selector (persisted as a jsonb column).
func (s Selector) Value() (driver.Value, error) {
	return json.Marshal(s)
}

// Scan implements sql.Scanner.
func (s *Selector) Scan(src interface{}) error {
	var b []byte
	switch v := src.(type) {
	case nil:
		*s = Selector{}
		return nil
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return fmt.Errorf("unsupported selector scan source %T", src)
	}
	return json.Unmarshal(b, s)
}

// Vector wraps pgvector.Vector so breadcrumb.Embedding can be nil (no
// embedding registered) while still round-tripping through the pgvector
// Postgres extension type.
type Vector struct {
	vec   pgvector.Vector
	valid bool
}

// NewVector builds a Vector from a float32 slice.
func NewVector(f []float32) Vector {
	return Vector{vec: pgvector.NewVector(f), valid: true}
}

// Valid reports whether an embedding is present.
func (v Vector) Valid() bool { return v.valid }

// Slice returns the underlying float32 slice, or nil if not Valid.
func (v Vector) Slice() []float32 {
	if !v.valid {
		return nil
	}
	return v.vec.Slice()
}

// Value implements driver.Valuer.
func (v Vector) Value() (driver.Value, error) {
	if !v.valid {
		return nil, nil
	}
	return v.vec.Value()
}

// Scan implements sql.Scanner.
func (v *Vector) Scan(src interface{}) error {
	if src == nil {
		*v = Vector{}
		return nil
	}
	var inner pgvector.Vector
	if err := inner.Scan(src); err != nil {
		return fmt.Errorf("scan vector: %w", err)
	}
	*v = Vector{vec: inner, valid: true}
	return nil
}

package models

import "time"

// EdgeType enumerates the four relation kinds the edge builder computes.
type EdgeType string

// Edge type constants.
const (
	EdgeCausal   EdgeType = "causal"
	EdgeTemporal EdgeType = "temporal"
	EdgeTag      EdgeType = "tag"
	EdgeSemantic EdgeType = "semantic"
)

// Edge is a typed, weighted, directed relation between two breadcrumbs.
// Idempotent per (SourceID, TargetID, Type) — recomputation replaces the
// source's edges of each type rather than duplicating rows.
type Edge struct {
	SourceID  string    `db:"source_id" json:"source_id"`
	TargetID  string    `db:"target_id" json:"target_id"`
	Type      EdgeType  `db:"edge_type" json:"edge_type"`
	Weight    float64   `db:"weight" json:"weight"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

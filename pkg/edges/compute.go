package edges

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/lib/pq"

	"github.com/rcrt-io/rcrt/pkg/config"
	"github.com/rcrt-io/rcrt/pkg/keywords"
	"github.com/rcrt-io/rcrt/pkg/models"
)

// causalFields are the recognized context keys that, when they hold
// another breadcrumb's id, produce a causal edge.
var causalFields = []string{"response_to", "triggered_by", "request_id"}

// sourceRow is the subset of a breadcrumb's row the edge builder needs.
type sourceRow struct {
	ID             string
	OwnerID        string
	Tags           models.StringSet
	EntityKeywords models.StringList
	Context        models.JSONB
	Embedding      models.Vector
	CreatedAt      time.Time
}

// candidate is a (target id, weight) pair before the top-M cap is
// applied.
type candidate struct {
	targetID string
	weight   float64
}

// rebuild recomputes every edge type for breadcrumbID and replaces its
// prior out-edges of each type with the freshly computed top-M. A missing
// (deleted or expired) source breadcrumb is a no-op, not an error — the
// enqueue that raced it is simply stale.
func rebuild(ctx context.Context, db *sql.DB, goquDB *goqu.Database, cfg config.EdgeConfig, breadcrumbID string) error {
	row, found, err := loadSourceRow(ctx, db, goquDB, breadcrumbID)
	if err != nil {
		return fmt.Errorf("load source breadcrumb: %w", err)
	}
	if !found {
		return nil
	}

	causal, err := computeCausal(ctx, db, goquDB, row)
	if err != nil {
		return fmt.Errorf("compute causal edges: %w", err)
	}
	temporal, err := computeTemporal(ctx, db, goquDB, row, cfg.TopMPerType)
	if err != nil {
		return fmt.Errorf("compute temporal edges: %w", err)
	}
	tag, err := computeTag(ctx, db, goquDB, row, cfg.TagOverlapMinK, cfg.TopMPerType)
	if err != nil {
		return fmt.Errorf("compute tag edges: %w", err)
	}
	semantic, err := computeSemantic(ctx, db, goquDB, row, cfg)
	if err != nil {
		return fmt.Errorf("compute semantic edges: %w", err)
	}

	plan := map[models.EdgeType][]candidate{
		models.EdgeCausal:   capTopM(causal, cfg.TopMPerType),
		models.EdgeTemporal: capTopM(temporal, cfg.TopMPerType),
		models.EdgeTag:      capTopM(tag, cfg.TopMPerType),
		models.EdgeSemantic: capTopM(semantic, cfg.TopMPerType),
	}

	return replaceEdges(ctx, db, goquDB, row.ID, plan)
}

// capTopM sorts candidates by descending weight and truncates to m.
func capTopM(cands []candidate, m int) []candidate {
	sort.Slice(cands, func(i, j int) bool {
		if cands[i].weight != cands[j].weight {
			return cands[i].weight > cands[j].weight
		}
		return cands[i].targetID < cands[j].targetID
	})
	if len(cands) > m {
		cands = cands[:m]
	}
	return cands
}

func loadSourceRow(ctx context.Context, db *sql.DB, goquDB *goqu.Database, id string) (sourceRow, bool, error) {
	query, args, err := goquDB.From("breadcrumbs").
		Select("id", "owner_id", "tags", "entity_keywords", "context", "embedding", "created_at").
		Where(goqu.Ex{"id": id}, goqu.C("deleted_at").IsNull()).
		ToSQL()
	if err != nil {
		return sourceRow{}, false, err
	}
	var r sourceRow
	err = db.QueryRowContext(ctx, query, args...).Scan(&r.ID, &r.OwnerID, &r.Tags, &r.EntityKeywords, &r.Context, &r.Embedding, &r.CreatedAt)
	if err == sql.ErrNoRows {
		return sourceRow{}, false, nil
	}
	if err != nil {
		return sourceRow{}, false, err
	}
	return r, true, nil
}

// computeCausal inspects the source's context for recognized reference
// fields and emits an edge to every one that names a live breadcrumb in
// the same tenant.
func computeCausal(ctx context.Context, db *sql.DB, goquDB *goqu.Database, row sourceRow) ([]candidate, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(row.Context, &fields); err != nil {
		return nil, nil // non-object context: no causal references possible
	}

	var refs []string
	for _, field := range causalFields {
		raw, ok := fields[field]
		if !ok {
			continue
		}
		var ref string
		if err := json.Unmarshal(raw, &ref); err != nil || ref == "" || ref == row.ID {
			continue
		}
		refs = append(refs, ref)
	}
	if len(refs) == 0 {
		return nil, nil
	}

	query, args, err := goquDB.From("breadcrumbs").
		Select("id").
		Where(goqu.Ex{"id": refs, "owner_id": row.OwnerID}, goqu.C("deleted_at").IsNull()).
		ToSQL()
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []candidate
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, candidate{targetID: id, weight: 1.0})
	}
	return out, rows.Err()
}

// computeTemporal finds breadcrumbs sharing a session:* tag with the
// source and weights them by inverse time distance — closer in time
// scores higher, favoring the nearest chronological neighbor.
func computeTemporal(ctx context.Context, db *sql.DB, goquDB *goqu.Database, row sourceRow, topM int) ([]candidate, error) {
	sessionTags := sessionTagsOf(row.Tags)
	if len(sessionTags) == 0 {
		return nil, nil
	}

	query, args, err := goquDB.From("breadcrumbs").
		Select("id", "created_at").
		Where(
			goqu.Ex{"owner_id": row.OwnerID},
			goqu.C("deleted_at").IsNull(),
			goqu.C("id").Neq(row.ID),
			goqu.L("tags && ?", pq.Array(sessionTags)),
		).
		Order(goqu.L("abs(extract(epoch from (created_at - ?)))", row.CreatedAt).Asc()).
		Limit(uint(topM)).
		ToSQL()
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []candidate
	for rows.Next() {
		var id string
		var createdAt time.Time
		if err := rows.Scan(&id, &createdAt); err != nil {
			return nil, err
		}
		hours := math.Abs(createdAt.Sub(row.CreatedAt).Hours())
		out = append(out, candidate{targetID: id, weight: 1 / (1 + hours)})
	}
	return out, rows.Err()
}

func sessionTagsOf(tags []string) []string {
	var out []string
	for _, t := range tags {
		if strings.HasPrefix(t, "session:") {
			out = append(out, t)
		}
	}
	return out
}

// computeTag finds breadcrumbs sharing at least minK pointer tags with
// the source, weighted by Jaccard overlap (overlap size / union size).
func computeTag(ctx context.Context, db *sql.DB, goquDB *goqu.Database, row sourceRow, minK, topM int) ([]candidate, error) {
	pointers := keywords.PointerTags(row.Tags)
	if len(pointers) < minK {
		return nil, nil
	}
	pointerSet := make(map[string]bool, len(pointers))
	for _, p := range pointers {
		pointerSet[strings.ToLower(p)] = true
	}

	query, args, err := goquDB.From("breadcrumbs").
		Select("id", "tags").
		Where(
			goqu.Ex{"owner_id": row.OwnerID},
			goqu.C("deleted_at").IsNull(),
			goqu.C("id").Neq(row.ID),
			goqu.L("entity_keywords && ?", pq.Array(pointers)),
		).
		Limit(uint(topM * 10)). // oversample before the exact Jaccard filter below
		ToSQL()
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []candidate
	for rows.Next() {
		var id string
		var tags models.StringSet
		if err := rows.Scan(&id, &tags); err != nil {
			return nil, err
		}
		otherPointers := keywords.PointerTags(tags)
		overlap, union := jaccardCounts(pointerSet, otherPointers)
		if overlap < minK || union == 0 {
			continue
		}
		out = append(out, candidate{targetID: id, weight: float64(overlap) / float64(union)})
	}
	return out, rows.Err()
}

func jaccardCounts(pointerSet map[string]bool, otherPointers []string) (overlap, union int) {
	otherSet := make(map[string]bool, len(otherPointers))
	for _, p := range otherPointers {
		otherSet[strings.ToLower(p)] = true
	}
	seen := make(map[string]bool, len(pointerSet)+len(otherSet))
	for p := range pointerSet {
		seen[p] = true
		if otherSet[p] {
			overlap++
		}
	}
	for p := range otherSet {
		seen[p] = true
	}
	return overlap, len(seen)
}

// computeSemantic finds the nearest neighbors by cosine distance within
// cfg.SemanticThresh (distance <= threshold), weighted 1 - distance. Skipped entirely when the
// source has no embedding.
func computeSemantic(ctx context.Context, db *sql.DB, goquDB *goqu.Database, row sourceRow, cfg config.EdgeConfig) ([]candidate, error) {
	if !row.Embedding.Valid() {
		return nil, nil
	}
	limit := cfg.SemanticTopK
	if limit > cfg.TopMPerType {
		limit = cfg.TopMPerType
	}

	query, args, err := goquDB.From("breadcrumbs").
		Select("id", goqu.L("embedding <=> ?", row.Embedding).As("distance")).
		Where(
			goqu.Ex{"owner_id": row.OwnerID},
			goqu.C("deleted_at").IsNull(),
			goqu.C("id").Neq(row.ID),
			goqu.C("embedding").IsNotNull(),
		).
		Order(goqu.L("embedding <=> ?", row.Embedding).Asc()).
		Limit(uint(limit)).
		ToSQL()
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []candidate
	for rows.Next() {
		var id string
		var distance float64
		if err := rows.Scan(&id, &distance); err != nil {
			return nil, err
		}
		if distance > cfg.SemanticThresh {
			continue
		}
		out = append(out, candidate{targetID: id, weight: 1 - distance})
	}
	return out, rows.Err()
}

// replaceEdges atomically swaps, per edge type, the source's out-edges
// for the freshly computed set. Run inside one transaction so a reader
// never observes a breadcrumb with some edge types pruned and others not
// yet rebuilt.
func replaceEdges(ctx context.Context, db *sql.DB, goquDB *goqu.Database, sourceID string, plan map[models.EdgeType][]candidate) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin edge replace transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	now := time.Now().UTC()
	for edgeType, cands := range plan {
		delSQL, delArgs, err := goquDB.Delete("breadcrumb_edges").
			Where(goqu.Ex{"source_id": sourceID, "edge_type": string(edgeType)}).ToSQL()
		if err != nil {
			return fmt.Errorf("build edge prune: %w", err)
		}
		if _, err := tx.ExecContext(ctx, delSQL, delArgs...); err != nil {
			return fmt.Errorf("prune %s edges: %w", edgeType, err)
		}
		if len(cands) == 0 {
			continue
		}

		rows := make([]goqu.Record, 0, len(cands))
		for _, c := range cands {
			rows = append(rows, goqu.Record{
				"source_id":  sourceID,
				"target_id":  c.targetID,
				"edge_type":  string(edgeType),
				"weight":     c.weight,
				"created_at": now,
				"updated_at": now,
			})
		}
		insertSQL, insertArgs, err := goquDB.Insert("breadcrumb_edges").Rows(toAnySlice(rows)...).ToSQL()
		if err != nil {
			return fmt.Errorf("build edge insert: %w", err)
		}
		if _, err := tx.ExecContext(ctx, insertSQL, insertArgs...); err != nil {
			return fmt.Errorf("insert %s edges: %w", edgeType, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit edge replace transaction: %w", err)
	}
	return nil
}

func toAnySlice(rows []goqu.Record) []any {
	out := make([]any, len(rows))
	for i, r := range rows {
		out[i] = r
	}
	return out
}

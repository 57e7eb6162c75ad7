// Package search implements the hybrid vector + keyword search planner:
// candidate generation by tag/schema filter intersected with keyword
// overlap or top-K' vector distance, re-ranked by a weighted score, with
// a deterministic tie-break.
package search

import (
	"context"
	"database/sql"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/lib/pq"

	"github.com/rcrt-io/rcrt/pkg/apierr"
	"github.com/rcrt-io/rcrt/pkg/config"
	"github.com/rcrt-io/rcrt/pkg/embedder"
	"github.com/rcrt-io/rcrt/pkg/keywords"
	"github.com/rcrt-io/rcrt/pkg/models"
	"github.com/rcrt-io/rcrt/pkg/schema"
)

// Query is the search(query, filters, k) entry point's request shape.
type Query struct {
	Text           string
	Embedding      []float32
	AnyTags        []string
	AllTags        []string
	SchemaName     string
	IncludeContext bool
	K              int

	// Alpha/Beta override the default scoring weights per request; zero
	// means "use the planner's configured default".
	Alpha float64
	Beta  float64

	// CallerOwnerID scopes the candidate set to one tenant, the same
	// same-tenant simplification storage.List uses — search never joins
	// the ACL table for cross-tenant grants.
	CallerOwnerID string
}

// Result is one scored, ranked hit.
type Result struct {
	Summary models.Summary
	Score   float64
	// VectorDistance and KeywordOverlap report the components of the
	// score that actually fired:
	// a candidate found only by keyword overlap has VectorDistance unset.
	VectorDistance *float64
	KeywordOverlap float64
}

// Planner executes Query against the breadcrumbs table.
type Planner struct {
	db       *sql.DB
	goqu     *goqu.Database
	registry *schema.Registry
	embed    embedder.Embedder
	cfg      config.SearchConfig
}

// New constructs a Planner. embed may be nil, in which case any query
// that needs an embedding (text given, no precomputed vector) degrades
// to keyword/tag-only.
func New(db *sql.DB, goquDB *goqu.Database, registry *schema.Registry, embed embedder.Embedder, cfg config.SearchConfig) *Planner {
	return &Planner{db: db, goqu: goquDB, registry: registry, embed: embed, cfg: cfg}
}

type candidateRow struct {
	Summary  models.Summary
	Distance *float64
}

// Search runs candidate generation, scoring, and ranking, returning the
// top k results. Degraded reports whether the embedder was unavailable
// and the result is keyword/tag-only — the gateway surfaces this as a
// Warning response header.
func (p *Planner) Search(ctx context.Context, q Query) (results []Result, degraded bool, err error) {
	k := q.K
	if k <= 0 {
		k = 10
	}
	alpha, beta := q.Alpha, q.Beta
	if alpha == 0 && beta == 0 {
		alpha, beta = p.cfg.Alpha, p.cfg.Beta
	}

	vector := q.Embedding
	if len(vector) == 0 && q.Text != "" {
		if p.embed == nil {
			degraded = true
		} else {
			v, embedErr := p.embed.Embed(ctx, q.Text)
			if embedErr != nil {
				if apiErr, ok := embedErr.(*apierr.Error); ok && apiErr.Kind == apierr.UpstreamUnavailable {
					degraded = true
				} else {
					return nil, false, embedErr
				}
			} else {
				vector = v
			}
		}
	}

	pointerTokens := keywordTokens(q.Text, q.AnyTags)

	kPrime := k * p.cfg.CandidateMultiple
	if kPrime <= 0 {
		kPrime = k
	}

	candidates, err := p.candidates(ctx, q, pointerTokens, vector, kPrime)
	if err != nil {
		return nil, degraded, err
	}

	scored := make([]Result, 0, len(candidates))
	for _, c := range candidates {
		overlap := overlapRatio(pointerTokens, c.Summary.Tags)
		vectorScore := 0.0
		if c.Distance != nil {
			vectorScore = 1 / (1 + *c.Distance)
		}
		score := alpha*vectorScore + beta*overlap
		scored = append(scored, Result{
			Summary:        c.Summary,
			Score:          score,
			VectorDistance: c.Distance,
			KeywordOverlap: overlap,
		})
	}

	sortResults(scored)
	if len(scored) > k {
		scored = scored[:k]
	}

	if q.IncludeContext {
		for i := range scored {
			projected, perr := p.projectContext(scored[i].Summary.SchemaName,
				scored[i].Summary.Title, scored[i].Summary.Tags, scored[i].Summary.Context)
			if perr != nil {
				return nil, degraded, apierr.Wrap(apierr.Internal, "project search result context", perr)
			}
			scored[i].Summary.Context = projected
		}
	}

	return scored, degraded, nil
}

// projectContext applies the schema's context transform the same way
// storage.Store does, so search results look identical to a direct Get.
func (p *Planner) projectContext(schemaName, title string, tags []string, rawContext []byte) ([]byte, error) {
	def, ok := p.registry.Get(schemaName)
	if !ok {
		return rawContext, nil
	}
	return schema.Apply(def.Hints, title, tags, rawContext)
}

// keywordTokens extracts the pointer token set from query text and
// any_tags, using the same routine as the keyword extractor so overlap
// scoring matches what write-time entity_keywords stores.
func keywordTokens(text string, anyTags []string) []string {
	return keywords.Extract(anyTags, []string{text})
}

func overlapRatio(queryTokens []string, candidateTags models.StringSet) float64 {
	if len(queryTokens) == 0 {
		return 0
	}
	candidateKeywords := keywords.Extract(candidateTags, nil)
	if len(candidateKeywords) == 0 {
		return 0
	}
	set := make(map[string]bool, len(candidateKeywords))
	for _, k := range candidateKeywords {
		set[k] = true
	}
	overlap := 0
	for _, t := range queryTokens {
		if set[t] {
			overlap++
		}
	}
	return float64(overlap) / float64(len(candidateKeywords))
}

// sortResults applies the deterministic tie-break: (-score, updated_at
// desc, id asc).
func sortResults(results []Result) {
	less := func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		if !results[i].Summary.UpdatedAt.Equal(results[j].Summary.UpdatedAt) {
			return results[i].Summary.UpdatedAt.After(results[j].Summary.UpdatedAt)
		}
		return results[i].Summary.ID < results[j].Summary.ID
	}
	insertionSort(results, less)
}

func insertionSort(results []Result, less func(i, j int) bool) {
	for i := 1; i < len(results); i++ {
		for j := i; j > 0 && less(j, j-1); j-- {
			results[j], results[j-1] = results[j-1], results[j]
		}
	}
}

func (p *Planner) candidates(ctx context.Context, q Query, pointerTokens []string, vector []float32, kPrime int) ([]candidateRow, error) {
	base := p.goqu.From(goqu.T("breadcrumbs").As("b")).
		Select("b.id", "b.version", "b.owner_id", "b.title", "b.schema_name", "b.tags", "b.context", "b.updated_at", "b.created_at").
		Where(goqu.I("b.deleted_at").IsNull())

	now := time.Now().UTC()
	base = base.Where(goqu.Or(goqu.I("b.expires_at").IsNull(), goqu.I("b.expires_at").Gt(now)))

	if q.CallerOwnerID != "" {
		base = base.Where(goqu.Ex{"b.owner_id": q.CallerOwnerID})
	}
	if q.SchemaName != "" {
		base = base.Where(goqu.Ex{"b.schema_name": q.SchemaName})
	}
	if len(q.AllTags) > 0 {
		base = base.Where(goqu.L("b.tags @> ?", pq.Array(q.AllTags)))
	}

	byKeyword := map[string]candidateRow{}
	if len(pointerTokens) > 0 {
		rows, err := p.runCandidateQuery(ctx,
			base.Where(goqu.L("b.entity_keywords && ?", pq.Array(pointerTokens))).
				Order(goqu.I("b.updated_at").Desc()).Limit(uint(kPrime)),
			nil)
		if err != nil {
			return nil, err
		}
		for _, r := range rows {
			byKeyword[r.Summary.ID] = r
		}
	}

	if len(vector) > 0 {
		v := models.NewVector(vector)
		rows, err := p.runCandidateQuery(ctx,
			base.Select(append([]any{"b.id", "b.version", "b.owner_id", "b.title", "b.schema_name", "b.tags", "b.context", "b.updated_at", "b.created_at"},
				goqu.L("b.embedding <=> ?", v).As("distance"))...).
				Where(goqu.I("b.embedding").IsNotNull()).
				Order(goqu.L("b.embedding <=> ?", v).Asc()).
				Limit(uint(kPrime)),
			&v)
		if err != nil {
			return nil, err
		}
		for _, r := range rows {
			if existing, ok := byKeyword[r.Summary.ID]; !ok || existing.Distance == nil {
				byKeyword[r.Summary.ID] = r
			}
		}
	}

	out := make([]candidateRow, 0, len(byKeyword))
	for _, r := range byKeyword {
		out = append(out, r)
	}
	return out, nil
}

func (p *Planner) runCandidateQuery(ctx context.Context, ds *goqu.SelectDataset, withDistance *models.Vector) ([]candidateRow, error) {
	query, args, err := ds.ToSQL()
	if err != nil {
		return nil, apierr.Wrap(apierr.Internal, "build search candidate query", err)
	}
	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apierr.Wrap(apierr.Internal, "run search candidate query", err)
	}
	defer rows.Close()

	var out []candidateRow
	for rows.Next() {
		var sm models.Summary
		var tags models.StringSet
		var c candidateRow
		if withDistance != nil {
			var distance float64
			if err := rows.Scan(&sm.ID, &sm.Version, &sm.OwnerID, &sm.Title, &sm.SchemaName, &tags, &sm.Context, &sm.UpdatedAt, &sm.CreatedAt, &distance); err != nil {
				return nil, apierr.Wrap(apierr.Internal, "scan search candidate row", err)
			}
			c.Distance = &distance
		} else {
			if err := rows.Scan(&sm.ID, &sm.Version, &sm.OwnerID, &sm.Title, &sm.SchemaName, &tags, &sm.Context, &sm.UpdatedAt, &sm.CreatedAt); err != nil {
				return nil, apierr.Wrap(apierr.Internal, "scan search candidate row", err)
			}
		}
		sm.Tags = tags
		c.Summary = sm
		out = append(out, c)
	}
	return out, rows.Err()
}

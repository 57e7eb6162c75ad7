// Package storage implements the breadcrumb CRUD engine: optimistic
// versioning with history, idempotent creates, serializable convenience
// mutations, and ACL-filtered listing. It is the hub package wiring
// together the keyword extractor, schema transform engine, event
// publisher, and edge-builder enqueue interface on every mutation.
package storage

import (
	"database/sql"
	"time"

	"github.com/doug-martin/goqu/v9"

	"github.com/rcrt-io/rcrt/pkg/events"
	"github.com/rcrt-io/rcrt/pkg/schema"
)

// EdgeEnqueuer is the async edge-recomputation hook C1 calls after every
// successful create/update. Defined here so pkg/storage never imports
// pkg/edges; pkg/edges reads the breadcrumbs table directly.
type EdgeEnqueuer interface {
	Enqueue(breadcrumbID string)
}

// noopEdgeEnqueuer is used when no edge builder is wired (e.g. tests).
type noopEdgeEnqueuer struct{}

func (noopEdgeEnqueuer) Enqueue(string) {}

// Store is the breadcrumb CRUD engine.
type Store struct {
	db                *sql.DB
	goqu              *goqu.Database
	registry          *schema.Registry
	publisher         *events.Publisher
	edges             EdgeEnqueuer
	idempotencyWindow time.Duration
}

// New constructs a Store. edges may be nil, in which case edge
// recomputation is a no-op (useful for tests that don't exercise C3).
func New(db *sql.DB, goquDB *goqu.Database, registry *schema.Registry, publisher *events.Publisher, edges EdgeEnqueuer, idempotencyWindow time.Duration) *Store {
	if edges == nil {
		edges = noopEdgeEnqueuer{}
	}
	return &Store{
		db:                db,
		goqu:              goquDB,
		registry:          registry,
		publisher:         publisher,
		edges:             edges,
		idempotencyWindow: idempotencyWindow,
	}
}

// Package schema implements the schema registry and the read-path
// transform interpreter it drives: a small, total interpreter over three
// node types (template, format, extract) applied to a breadcrumb's context
// before it is returned to a caller.
package schema

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/rcrt-io/rcrt/pkg/models"
)

// DefSchemaName is the schema_name that marks a breadcrumb as a schema
// definition itself.
const DefSchemaName = "schema.def.v1"

// definesPrefix is the tag namespace a schema.def.v1 breadcrumb uses to
// name the schema it defines: "defines:<name>".
const definesPrefix = "defines:"

// Loader fetches the current set of live schema.def.v1 breadcrumbs, used
// only at startup and by Reload. The storage package supplies this so the
// registry never imports storage directly (avoiding an import cycle).
type Loader func(ctx context.Context) ([]RawDef, error)

// RawDef is the minimal shape the registry needs from a schema.def.v1
// breadcrumb row.
type RawDef struct {
	ID      string
	Version int
	Tags    []string
	Context []byte // raw JSON context, containing an optional "llm_hints" key
}

// Registry caches schema_name -> SchemaDef. The cache is copy-on-write: a
// reader takes a single atomic load and never observes a partially
// updated map, matching the copy-on-write snapshot design spec'd for the
// schema cache.
type Registry struct {
	snapshot atomic.Pointer[map[string]models.SchemaDef]
}

// New returns an empty Registry; call Reload (or Put for individual
// definitions) before serving reads.
func New() *Registry {
	r := &Registry{}
	empty := map[string]models.SchemaDef{}
	r.snapshot.Store(&empty)
	return r
}

// Get returns the cached definition for a schema name, if any.
func (r *Registry) Get(schemaName string) (models.SchemaDef, bool) {
	snap := r.snapshot.Load()
	def, ok := (*snap)[schemaName]
	return def, ok
}

// Put installs or replaces a single schema's definition by swapping in a
// new map that shares every other entry with the prior snapshot — the
// "publishers swap a new snapshot atomically" pattern.
func (r *Registry) Put(def models.SchemaDef) {
	for {
		old := r.snapshot.Load()
		next := make(map[string]models.SchemaDef, len(*old)+1)
		for k, v := range *old {
			next[k] = v
		}
		next[def.Name] = def
		if r.snapshot.CompareAndSwap(old, &next) {
			return
		}
	}
}

// Reload rebuilds the entire snapshot from the loader, used at server
// start to prime the cache from persisted schema.def.v1 rows.
func (r *Registry) Reload(ctx context.Context, load Loader) error {
	raws, err := load(ctx)
	if err != nil {
		return fmt.Errorf("load schema definitions: %w", err)
	}
	next := make(map[string]models.SchemaDef, len(raws))
	for _, raw := range raws {
		def, ok, err := ParseDef(raw)
		if err != nil {
			return fmt.Errorf("parse schema definition %s: %w", raw.ID, err)
		}
		if !ok {
			continue
		}
		next[def.Name] = def
	}
	r.snapshot.Store(&next)
	return nil
}

// ParseDef extracts a models.SchemaDef from a raw schema.def.v1 row: the
// defined name comes from the "defines:<name>" tag, the transform rules
// from context.llm_hints.
func ParseDef(raw RawDef) (models.SchemaDef, bool, error) {
	name, ok := DefinedName(raw.Tags)
	if !ok {
		return models.SchemaDef{}, false, nil
	}

	hints, err := parseHints(raw.Context)
	if err != nil {
		return models.SchemaDef{}, false, err
	}

	return models.SchemaDef{
		Name:     name,
		Hints:    hints,
		SourceID: raw.ID,
		Version:  raw.Version,
	}, true, nil
}

// DefinedName extracts the schema name from a "defines:<name>" tag.
func DefinedName(tags []string) (string, bool) {
	for _, t := range tags {
		if strings.HasPrefix(t, definesPrefix) {
			name := strings.TrimPrefix(t, definesPrefix)
			if name != "" {
				return name, true
			}
		}
	}
	return "", false
}

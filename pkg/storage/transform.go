package storage

import (
	"fmt"

	"github.com/rcrt-io/rcrt/pkg/keywords"
	"github.com/rcrt-io/rcrt/pkg/models"
	"github.com/rcrt-io/rcrt/pkg/schema"
)

// deriveKeywords computes entity_keywords = dedup(tag-pointers(tags) ∪
// keyword-extract(apply-llm-hints(context, schema))) — the same routine
// the read path calls too, so write-time and read-time keywords agree.
func (s *Store) deriveKeywords(schemaName string, title string, tags []string, context []byte) ([]string, error) {
	hints := models.LLMHints{}
	if def, ok := s.registry.Get(schemaName); ok {
		hints = def.Hints
	}
	transformed, err := schema.Apply(hints, title, tags, context)
	if err != nil {
		return nil, fmt.Errorf("apply schema transform: %w", err)
	}
	texts, err := schema.ProjectTexts(transformed)
	if err != nil {
		return nil, fmt.Errorf("project transformed text: %w", err)
	}
	return keywords.Extract(tags, texts), nil
}

// projectContext rewrites context for the read path per a breadcrumb's
// registered schema, leaving context untouched if no definition is
// cached for schemaName.
func (s *Store) projectContext(schemaName, title string, tags []string, context []byte) ([]byte, error) {
	def, ok := s.registry.Get(schemaName)
	if !ok {
		return context, nil
	}
	return schema.Apply(def.Hints, title, tags, context)
}

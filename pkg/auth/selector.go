package auth

import (
	"strings"

	"github.com/rcrt-io/rcrt/pkg/models"
)

// MatchesSelector implements the selector evaluator shared by
// subscription fanout matching and read-time filters: any_tags/
// all_tags/schema_name act as a pre-filter, context_match clauses are
// evaluated against the decoded context.
func MatchesSelector(sel models.Selector, tags []string, schemaName string, ctx map[string]any) bool {
	if sel.SchemaName != "" && sel.SchemaName != schemaName {
		return false
	}
	if len(sel.AnyTags) > 0 && !hasAny(tags, sel.AnyTags) {
		return false
	}
	if len(sel.AllTags) > 0 && !hasAll(tags, sel.AllTags) {
		return false
	}
	for _, m := range sel.ContextMatch {
		if !matchContext(m, ctx) {
			return false
		}
	}
	return true
}

func hasAny(tags, want []string) bool {
	set := toSet(tags)
	for _, w := range want {
		if set[w] {
			return true
		}
	}
	return false
}

func hasAll(tags, want []string) bool {
	set := toSet(tags)
	for _, w := range want {
		if !set[w] {
			return false
		}
	}
	return true
}

func toSet(tags []string) map[string]bool {
	set := make(map[string]bool, len(tags))
	for _, t := range tags {
		set[t] = true
	}
	return set
}

func matchContext(m models.ContextMatch, ctx map[string]any) bool {
	v, found := pathLookup(ctx, m.Path)
	switch m.Op {
	case models.OpExists:
		return found
	case models.OpEq:
		return found && equalJSON(v, m.Value)
	case models.OpNe:
		return !found || !equalJSON(v, m.Value)
	case models.OpGt:
		a, aok := asFloat(v)
		b, bok := asFloat(m.Value)
		return found && aok && bok && a > b
	case models.OpLt:
		a, aok := asFloat(v)
		b, bok := asFloat(m.Value)
		return found && aok && bok && a < b
	case models.OpContains:
		return found && containsValue(v, m.Value)
	case models.OpContainsAny:
		want, ok := m.Value.([]any)
		if !ok || !found {
			return false
		}
		for _, w := range want {
			if containsValue(v, w) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

func pathLookup(root any, path string) (any, bool) {
	if path == "" {
		return root, true
	}
	cur := root
	for _, seg := range strings.Split(path, ".") {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		v, ok := obj[seg]
		if !ok {
			return nil, false
		}
		cur = v
	}
	return cur, true
}

func equalJSON(a, b any) bool {
	af, aok := asFloat(a)
	bf, bok := asFloat(b)
	if aok && bok {
		return af == bf
	}
	as, aok := a.(string)
	bs, bok := b.(string)
	if aok && bok {
		return as == bs
	}
	ab, aok := a.(bool)
	bb, bok := b.(bool)
	if aok && bok {
		return ab == bb
	}
	return false
}

func asFloat(v any) (float64, bool) {
	f, ok := v.(float64)
	return f, ok
}

func containsValue(haystack, needle any) bool {
	switch h := haystack.(type) {
	case string:
		s, ok := needle.(string)
		return ok && strings.Contains(h, s)
	case []any:
		for _, e := range h {
			if equalJSON(e, needle) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

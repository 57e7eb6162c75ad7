package schema

import (
	"strconv"
	"strings"
)

// lookup resolves a small JSONPath-like dotted expression against a
// decoded JSON value (map[string]any / []any / scalar), e.g.
// "items.0.name" or "text". It never panics on a missing or mismatched
// segment — a total interpreter, per design — returning (nil, false)
// instead.
func lookup(root any, path string) (any, bool) {
	if path == "" || path == "." {
		return root, true
	}
	segments := strings.Split(path, ".")
	cur := root
	for _, seg := range segments {
		if seg == "" {
			continue
		}
		if idx, err := strconv.Atoi(seg); err == nil {
			arr, ok := cur.([]any)
			if !ok || idx < 0 || idx >= len(arr) {
				return nil, false
			}
			cur = arr[idx]
			continue
		}
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

// stringify renders a resolved value as the string a template
// substitution needs. Scalars render directly; anything else falls back
// to an empty string rather than a Go-syntax dump.
func stringify(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case nil:
		return "", false
	case bool:
		if t {
			return "true", true
		}
		return "false", true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	default:
		return "", false
	}
}

package schema

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/rcrt-io/rcrt/pkg/models"
)

// Apply rewrites a breadcrumb's context per its schema's llm_hints. It
// never mutates the stored row — callers pass the raw, persisted context
// and receive back the projected view for the read path. get_raw bypasses
// this entirely.
func Apply(hints models.LLMHints, title string, tags []string, rawContext []byte) ([]byte, error) {
	orig, err := decodeContext(rawContext)
	if err != nil {
		return nil, fmt.Errorf("decode context: %w", err)
	}

	data := make(map[string]any, len(orig)+2)
	for k, v := range orig {
		data[k] = v
	}
	if _, ok := data["title"]; !ok {
		data["title"] = title
	}
	if _, ok := data["tags"]; !ok {
		tagsAny := make([]any, len(tags))
		for i, t := range tags {
			tagsAny[i] = t
		}
		data["tags"] = tagsAny
	}

	computed := make(map[string]any, len(hints.Transform))
	for outField, rule := range hints.Transform {
		v, err := evalRule(rule, data)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", outField, err)
		}
		computed[outField] = v
	}

	var out map[string]any
	switch hints.Mode {
	case models.ModeReplace:
		out = make(map[string]any, len(computed))
	default: // ModeMerge, and the zero value
		out = make(map[string]any, len(orig)+len(computed))
		for k, v := range orig {
			out[k] = v
		}
	}
	for k, v := range computed {
		out[k] = v
	}
	for _, excluded := range hints.ExcludeFields {
		delete(out, excluded)
	}

	// encoding/json sorts map keys, so repeat reads of an unchanged row
	// and unchanged registry snapshot are byte-identical.
	encoded, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("marshal transformed context: %w", err)
	}
	return encoded, nil
}

func evalRule(rule models.TransformRule, data map[string]any) (any, error) {
	switch rule.Type {
	case models.TransformTemplate, models.TransformFormat:
		return renderTemplate(rule.Template, data), nil
	case models.TransformExtract:
		v, ok := lookup(data, rule.Value)
		if !ok {
			return nil, nil
		}
		return v, nil
	default:
		return nil, fmt.Errorf("unknown transform type %q", rule.Type)
	}
}

func decodeContext(raw []byte) (map[string]any, error) {
	if len(raw) == 0 {
		return map[string]any{}, nil
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	if m == nil {
		m = map[string]any{}
	}
	return m, nil
}

// ProjectTexts walks a transformed context and collects every string leaf
// value, in a stable depth-first order over sorted keys — the textual
// fields C2's content-keyword extraction consumes.
func ProjectTexts(transformedContext []byte) ([]string, error) {
	m, err := decodeContext(transformedContext)
	if err != nil {
		return nil, fmt.Errorf("decode transformed context: %w", err)
	}
	var out []string
	collectStrings(m, &out)
	return out, nil
}

func collectStrings(v any, out *[]string) {
	switch t := v.(type) {
	case string:
		*out = append(*out, t)
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			collectStrings(t[k], out)
		}
	case []any:
		for _, e := range t {
			collectStrings(e, out)
		}
	}
}

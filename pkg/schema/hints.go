package schema

import (
	"encoding/json"
	"fmt"

	"github.com/rcrt-io/rcrt/pkg/models"
)

// llmHintsEnvelope is the shape of the "llm_hints" key inside a
// schema.def.v1 breadcrumb's context.
type llmHintsEnvelope struct {
	LLMHints *models.LLMHints `json:"llm_hints"`
}

// parseHints pulls llm_hints out of a raw context payload. A definition
// with no llm_hints key is valid: it registers the name with no
// transforms (mode defaults to merge, a no-op transform).
func parseHints(rawContext []byte) (models.LLMHints, error) {
	if len(rawContext) == 0 {
		return models.LLMHints{Mode: models.ModeMerge}, nil
	}

	var env llmHintsEnvelope
	if err := json.Unmarshal(rawContext, &env); err != nil {
		return models.LLMHints{}, fmt.Errorf("unmarshal context: %w", err)
	}
	if env.LLMHints == nil {
		return models.LLMHints{Mode: models.ModeMerge}, nil
	}

	hints := *env.LLMHints
	if hints.Mode == "" {
		hints.Mode = models.ModeMerge
	}
	for field, rule := range hints.Transform {
		switch rule.Type {
		case models.TransformTemplate, models.TransformFormat, models.TransformExtract:
		default:
			return models.LLMHints{}, fmt.Errorf("field %q: unknown transform type %q", field, rule.Type)
		}
	}
	return hints, nil
}

package schema

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcrt-io/rcrt/pkg/models"
)

func TestApplyTemplateMerge(t *testing.T) {
	hints := models.LLMHints{
		Mode: models.ModeMerge,
		Transform: map[string]models.TransformRule{
			"formatted": {Type: models.TransformTemplate, Template: "User ({ts}): {text}"},
		},
	}
	rawContext, err := json.Marshal(map[string]any{
		"text": "ping",
		"ts":   "2025-01-01T00:00:00Z",
	})
	require.NoError(t, err)

	out, err := Apply(hints, "title", nil, rawContext)
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(out, &got))
	assert.Equal(t, "User (2025-01-01T00:00:00Z): ping", got["formatted"])
	assert.Equal(t, "ping", got["text"])
	assert.Equal(t, "2025-01-01T00:00:00Z", got["ts"])
}

func TestApplyReplaceMode(t *testing.T) {
	hints := models.LLMHints{
		Mode: models.ModeReplace,
		Transform: map[string]models.TransformRule{
			"summary": {Type: models.TransformFormat, Template: "{text}"},
		},
	}
	rawContext, err := json.Marshal(map[string]any{"text": "hello", "secret": "shh"})
	require.NoError(t, err)

	out, err := Apply(hints, "t", nil, rawContext)
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(out, &got))
	assert.Equal(t, map[string]any{"summary": "hello"}, got)
}

func TestApplyExtractAndExclude(t *testing.T) {
	hints := models.LLMHints{
		Mode: models.ModeMerge,
		Transform: map[string]models.TransformRule{
			"first_item": {Type: models.TransformExtract, Value: "items.0"},
		},
		ExcludeFields: []string{"source_code"},
	}
	rawContext, err := json.Marshal(map[string]any{
		"items":       []any{"a", "b"},
		"source_code": "print(1)",
	})
	require.NoError(t, err)

	out, err := Apply(hints, "t", nil, rawContext)
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(out, &got))
	assert.Equal(t, "a", got["first_item"])
	assert.NotContains(t, got, "source_code")
}

func TestApplyIsDeterministic(t *testing.T) {
	hints := models.LLMHints{
		Mode: models.ModeMerge,
		Transform: map[string]models.TransformRule{
			"a": {Type: models.TransformFormat, Template: "{x}"},
			"b": {Type: models.TransformFormat, Template: "{y}"},
		},
	}
	rawContext, err := json.Marshal(map[string]any{"x": "1", "y": "2"})
	require.NoError(t, err)

	out1, err := Apply(hints, "t", nil, rawContext)
	require.NoError(t, err)
	out2, err := Apply(hints, "t", nil, rawContext)
	require.NoError(t, err)
	assert.Equal(t, out1, out2)
}

func TestDefinedName(t *testing.T) {
	name, ok := DefinedName([]string{"foo", "defines:user.message.v1"})
	assert.True(t, ok)
	assert.Equal(t, "user.message.v1", name)

	_, ok = DefinedName([]string{"foo", "bar"})
	assert.False(t, ok)
}

func TestRegistryPutGet(t *testing.T) {
	r := New()
	_, ok := r.Get("note.v1")
	assert.False(t, ok)

	r.Put(models.SchemaDef{Name: "note.v1", Version: 1})
	def, ok := r.Get("note.v1")
	require.True(t, ok)
	assert.Equal(t, 1, def.Version)
}

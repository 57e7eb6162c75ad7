package keywords

import "testing"

import "github.com/stretchr/testify/assert"

func TestPointerTags(t *testing.T) {
	tags := []string{"browser-automation", "ns:abc123", "approved", "playwright", "system"}
	got := PointerTags(tags)
	assert.Equal(t, []string{"browser-automation", "playwright"}, got)
}

func TestContentKeywords(t *testing.T) {
	got := ContentKeywords([]string{"User (2025-01-01T00:00:00Z): ping pong"})
	assert.Contains(t, got, "user")
	assert.Contains(t, got, "ping")
	assert.Contains(t, got, "pong")
	assert.NotContains(t, got, "the")
}

func TestContentKeywordsDedupAndCap(t *testing.T) {
	got := ContentKeywords([]string{"hello hello hello world"})
	assert.Equal(t, []string{"hello", "world"}, got)
}

func TestExtractUnionDeduped(t *testing.T) {
	tags := []string{"x", "y", "bootstrap"}
	got := Extract(tags, []string{"hello x world"})
	assert.Equal(t, []string{"x", "y", "hello", "world"}, got)
}

func TestExtractDeterministic(t *testing.T) {
	tags := []string{"browser-automation", "ns:1"}
	texts := []string{"hello world"}
	a := Extract(tags, texts)
	b := Extract(tags, texts)
	assert.Equal(t, a, b)
}

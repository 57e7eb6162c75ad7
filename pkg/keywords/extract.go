// Package keywords computes entity_keywords: the deduplicated, ordered
// token sequence used for GIN-indexed hybrid retrieval. Extract is the
// single routine called by both the storage write path and the search
// read path so a trigger breadcrumb's pointer tags match the indexed
// keywords of its targets exactly.
package keywords

import (
	"regexp"
	"strings"
)

// MaxKeywords caps the number of content keywords kept per breadcrumb.
const MaxKeywords = 64

// minTokenLen is the minimum length a content token must have to be kept.
const minTokenLen = 3

var nonAlnumRun = regexp.MustCompile(`[^a-z0-9]+`)

// stopWords is a small, fixed stop list for content-keyword extraction.
var stopWords = map[string]bool{
	"the": true, "and": true, "for": true, "are": true, "but": true,
	"not": true, "you": true, "all": true, "can": true, "was": true,
	"were": true, "with": true, "this": true, "that": true, "from": true,
	"have": true, "has": true, "had": true, "its": true, "it's": true,
	"they": true, "them": true, "their": true, "been": true, "being": true,
	"into": true, "out": true, "about": true, "than": true, "then": true,
	"also": true, "any": true, "our": true, "your": true, "who": true,
	"what": true, "when": true, "where": true, "which": true, "how": true,
}

// stateTags are recognized lifecycle markers, excluded from pointer tags.
var stateTags = map[string]bool{
	"approved":  true,
	"rejected":  true,
	"validated": true,
	"bootstrap": true,
	"system":    true,
}

// TextProjector produces the textual fields a breadcrumb's (possibly
// transformed) context contributes to content-keyword extraction.
// Extract itself takes the already-projected strings, so it never has to
// know about the schema transform engine — it stays a pure function over
// strings.
type TextProjector func() []string

// PointerTags returns the subset of tags that participate in keyword
// overlap search: neither namespaced routing tags (ns:id) nor known
// state tags.
func PointerTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if isNamespaced(t) || stateTags[strings.ToLower(t)] {
			continue
		}
		out = append(out, t)
	}
	return out
}

func isNamespaced(tag string) bool {
	idx := strings.IndexByte(tag, ':')
	return idx > 0 && idx < len(tag)-1
}

// ContentKeywords lowercases, strips non-alphanumeric runs, splits on
// whitespace boundaries, drops the stop list, keeps tokens of length >= 3,
// dedups preserving first occurrence, and caps the result at MaxKeywords.
func ContentKeywords(texts []string) []string {
	seen := make(map[string]bool)
	out := make([]string, 0, MaxKeywords)

	for _, text := range texts {
		lowered := strings.ToLower(text)
		normalized := nonAlnumRun.ReplaceAllString(lowered, " ")
		for _, tok := range strings.Fields(normalized) {
			if len(tok) < minTokenLen || stopWords[tok] || seen[tok] {
				continue
			}
			seen[tok] = true
			out = append(out, tok)
			if len(out) >= MaxKeywords {
				return out
			}
		}
	}
	return out
}

// Extract computes entity_keywords = dedup(pointer-tags ∪ content-keywords),
// deduped in insertion order with pointer tags first. Every token is
// lowercased so tag casing never produces distinct keyword entries for
// what is otherwise the same token.
func Extract(tags []string, projectedTexts []string) []string {
	pointers := PointerTags(tags)
	content := ContentKeywords(projectedTexts)

	seen := make(map[string]bool, len(pointers)+len(content))
	out := make([]string, 0, len(pointers)+len(content))
	for _, p := range pointers {
		key := strings.ToLower(p)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, key)
	}
	for _, c := range content {
		if seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out
}

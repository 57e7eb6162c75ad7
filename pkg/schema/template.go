package schema

import "strings"

// renderTemplate performs Mustache-style "{path}" substitution over tmpl,
// resolving each placeholder against data via lookup. Both the
// "template" and "format" node types share this routine: format's
// convention is simply a single-placeholder template. An unresolved
// placeholder is replaced with an empty string rather than erroring —
// the interpreter is total.
func renderTemplate(tmpl string, data any) string {
	var b strings.Builder
	rest := tmpl
	for {
		start := strings.IndexByte(rest, '{')
		if start < 0 {
			b.WriteString(rest)
			break
		}
		end := strings.IndexByte(rest[start:], '}')
		if end < 0 {
			b.WriteString(rest)
			break
		}
		end += start

		b.WriteString(rest[:start])
		path := strings.TrimSpace(rest[start+1 : end])
		if v, ok := lookup(data, path); ok {
			if s, ok := stringify(v); ok {
				b.WriteString(s)
			}
		}
		rest = rest[end+1:]
	}
	return b.String()
}

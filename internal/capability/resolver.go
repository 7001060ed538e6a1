package capability

import (
	"strings"
	"unicode"
)

// Resolve maps a requested name to the canonical registry key. The exact
// spelling wins so an entry registered under a name that happens to look
// like a converted form of another is never shadowed; only then are the two
// conventions tried, camelCase to snake_case first.
func (r *Registry) Resolve(requested string) (string, bool) {
	if r == nil {
		return "", false
	}
	name := strings.TrimSpace(requested)
	if name == "" {
		return "", false
	}
	if _, ok := r.lookup(name); ok {
		return name, true
	}
	if snake := CamelToSnake(name); snake != name {
		if _, ok := r.lookup(snake); ok {
			return snake, true
		}
	}
	if camel := SnakeToCamel(name); camel != name {
		if _, ok := r.lookup(camel); ok {
			return camel, true
		}
	}
	return "", false
}

// CamelToSnake rewrites each interior uppercase boundary as an underscore:
// "getCourses" -> "get_courses".
func CamelToSnake(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 4)
	for i, r := range s {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// SnakeToCamel joins underscore segments, keeping the first lowercase and
// capitalizing the first letter of each later segment:
// "get_courses" -> "getCourses". Empty segments are dropped.
func SnakeToCamel(s string) string {
	if !strings.Contains(s, "_") {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	first := true
	for _, part := range strings.Split(s, "_") {
		if part == "" {
			continue
		}
		if first {
			b.WriteString(strings.ToLower(part))
			first = false
			continue
		}
		runes := []rune(part)
		b.WriteRune(unicode.ToUpper(runes[0]))
		b.WriteString(string(runes[1:]))
	}
	return b.String()
}

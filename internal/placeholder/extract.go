package placeholder

import "regexp"

var variablePattern = regexp.MustCompile(`\{\{\s*([a-zA-Z0-9_]+)\s*\}\}`)

// ExtractVariables returns the placeholder names referenced by markup in
// first-seen order with duplicates removed.
func ExtractVariables(markup string) []string {
	matches := variablePattern.FindAllStringSubmatch(markup, -1)
	seen := make(map[string]struct{}, len(matches))
	ordered := make([]string, 0, len(matches))
	for _, m := range matches {
		name := m[1]
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		ordered = append(ordered, name)
	}
	return ordered
}

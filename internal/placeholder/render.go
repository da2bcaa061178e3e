package placeholder

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/bhupendraedzeb-hub/programtic-seo/internal/pagegen"
)

// ContextRadius is the number of lines shown on each side of a syntax error.
const ContextRadius = 2

var namePattern = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)

// SyntaxError reports malformed placeholder markup.
type SyntaxError struct {
	Line    int
	Message string
	Context string
}

func (e *SyntaxError) Error() string {
	msg := "Template syntax error"
	if e.Line > 0 {
		msg += fmt.Sprintf(" at line %d", e.Line)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Context != "" {
		msg += "\n" + e.Context
	}
	return msg
}

// Is lets callers match any SyntaxError against pagegen.ErrTemplateSyntax.
func (e *SyntaxError) Is(target error) bool {
	return target == pagegen.ErrTemplateSyntax
}

// Render substitutes every placeholder in markup with its value from vars.
// Referenced names missing from vars render as the empty string.
func Render(markup string, vars map[string]string) (string, error) {
	var b strings.Builder
	b.Grow(len(markup))

	pos := 0
	for {
		rel := nextTag(markup[pos:])
		if rel < 0 {
			b.WriteString(markup[pos:])
			return b.String(), nil
		}
		start := pos + rel
		b.WriteString(markup[pos:start])

		if open := markup[start : start+2]; open != "{{" {
			return "", newSyntaxError(markup, start, fmt.Sprintf("unsupported block tag %q", open))
		}
		end := strings.Index(markup[start+2:], "}}")
		if end < 0 {
			return "", newSyntaxError(markup, start, "unexpected end of template, expected '}}'")
		}
		name := strings.TrimSpace(markup[start+2 : start+2+end])
		switch {
		case name == "":
			return "", newSyntaxError(markup, start, "expected an expression, got '}}'")
		case !namePattern.MatchString(name):
			return "", newSyntaxError(markup, start, fmt.Sprintf("invalid placeholder expression %q", name))
		}
		b.WriteString(vars[name])
		pos = start + 2 + end + 2
	}
}

// nextTag returns the offset of the first "{{", "{%" or "{#" in s, or -1.
func nextTag(s string) int {
	for i := 0; i+1 < len(s); i++ {
		if s[i] != '{' {
			continue
		}
		switch s[i+1] {
		case '{', '%', '#':
			return i
		}
	}
	return -1
}

func newSyntaxError(markup string, offset int, message string) *SyntaxError {
	line := strings.Count(markup[:offset], "\n") + 1
	return &SyntaxError{
		Line:    line,
		Message: message,
		Context: contextWindow(markup, line, ContextRadius),
	}
}

// contextWindow renders the lines around lineNo as "> 3: source", with a
// space marker on every line except the faulting one.
func contextWindow(markup string, lineNo, radius int) string {
	if markup == "" || lineNo <= 0 {
		return ""
	}
	lines := splitLines(markup)
	index := lineNo - 1
	start := max(index-radius, 0)
	end := min(index+radius+1, len(lines))

	out := make([]string, 0, end-start)
	for i := start; i < end; i++ {
		marker := " "
		if i == index {
			marker = ">"
		}
		out = append(out, fmt.Sprintf("%s %d: %s", marker, i+1, lines[i]))
	}
	return strings.Join(out, "\n")
}

func splitLines(s string) []string {
	s = strings.TrimSuffix(strings.ReplaceAll(s, "\r\n", "\n"), "\n")
	return strings.Split(s, "\n")
}

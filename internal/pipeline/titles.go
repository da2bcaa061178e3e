package pipeline

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/bhupendraedzeb-hub/programtic-seo/internal/pagegen"
)

// TitleChecker reports whether an owner already has a page with an exact title.
type TitleChecker interface {
	TitleExists(ctx context.Context, ownerID, title string) (bool, error)
}

// MaxFieldRunes bounds page titles and meta descriptions to their column width.
const MaxFieldRunes = 255

// TruncateRunes cuts s to at most limit runes.
func TruncateRunes(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit])
}

// UniqueTitle returns title, or title with " (N)" appended for the smallest
// N >= 2 not already used by the owner. The result never exceeds
// MaxFieldRunes; the base is shortened to make room for the suffix.
func UniqueTitle(ctx context.Context, pages TitleChecker, ownerID, title string) (string, error) {
	title = TruncateRunes(title, MaxFieldRunes)
	candidate := title
	for n := 2; ; n++ {
		exists, err := pages.TitleExists(ctx, ownerID, candidate)
		if err != nil {
			return "", fmt.Errorf("check title: %w", err)
		}
		if !exists {
			return candidate, nil
		}
		suffix := fmt.Sprintf(" (%d)", n)
		candidate = TruncateRunes(title, MaxFieldRunes-len(suffix)) + suffix
	}
}

// MissingVariables returns the sorted names in required that provided lacks or
// holds only whitespace for.
func MissingVariables(required []string, provided map[string]string) []string {
	seen := make(map[string]struct{}, len(required))
	missing := make([]string, 0)
	for _, name := range required {
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		if strings.TrimSpace(provided[name]) == "" {
			missing = append(missing, name)
		}
	}
	sort.Strings(missing)
	return missing
}

// MissingVariablesError reports missing names as "Missing variables: a, b".
type MissingVariablesError struct {
	Names []string
}

func (e *MissingVariablesError) Error() string {
	return "Missing variables: " + strings.Join(e.Names, ", ")
}

// Is matches pagegen.ErrMissingVariables.
func (e *MissingVariablesError) Is(target error) bool {
	return target == pagegen.ErrMissingVariables
}

// CheckVariables returns a *MissingVariablesError when any required name is
// missing from provided.
func CheckVariables(required []string, provided map[string]string) error {
	if missing := MissingVariables(required, provided); len(missing) > 0 {
		return &MissingVariablesError{Names: missing}
	}
	return nil
}

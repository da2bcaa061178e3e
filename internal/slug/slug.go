// Package slug derives URL-safe slugs and resolves per-owner collisions.
package slug

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/mozillazg/go-unidecode"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Fallback is used when normalization leaves nothing.
const Fallback = "page"

var nonAlphanumeric = regexp.MustCompile(`[^a-z0-9]+`)

// Normalize lowercases s, folds accents, transliterates non-Latin scripts to
// ASCII and joins alphanumeric runs with hyphens.
// Example: "Crème Brûlée, 2026!" → "creme-brulee-2026", "Привет мир" → "privet-mir"
func Normalize(s string) string {
	folded, _, err := transform.String(
		transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC),
		s,
	)
	if err != nil {
		folded = s
	}
	result := strings.ToLower(strings.TrimSpace(unidecode.Unidecode(folded)))
	result = nonAlphanumeric.ReplaceAllString(result, "-")
	result = strings.Trim(result, "-")
	if result == "" {
		return Fallback
	}
	return result
}

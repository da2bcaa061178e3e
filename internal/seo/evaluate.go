package seo

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"

	"github.com/bhupendraedzeb-hub/programtic-seo/internal/pagegen"
)

// Penalties applied per finding.
const (
	IssuePenalty   = 15
	WarningPenalty = 5
)

var wordPattern = regexp.MustCompile(`[\p{L}\p{N}_]+`)

// Report is the outcome of Evaluate.
type Report struct {
	Score                 int
	WordCount             int
	TitleLength           int
	MetaDescriptionLength int
	Issues                []string
	Warnings              []string
	Suggestions           []string
}

// Data converts the report into the blob stored on a page.
func (r Report) Data() pagegen.SEOData {
	return pagegen.SEOData{
		Issues:      r.Issues,
		Warnings:    r.Warnings,
		Suggestions: r.Suggestions,
		WordCount:   r.WordCount,
	}
}

// Evaluate scores rendered markup. Lengths are measured and reported but no
// threshold is enforced: checks are advisory.
func Evaluate(markup, title, metaDescription string) Report {
	issues := []string{}
	warnings := []string{}
	return Report{
		Score:                 Score(len(issues), len(warnings)),
		WordCount:             WordCount(markup),
		TitleLength:           utf8.RuneCountInString(title),
		MetaDescriptionLength: utf8.RuneCountInString(metaDescription),
		Issues:                issues,
		Warnings:              warnings,
		Suggestions:           []string{},
	}
}

// Score starts at 100 and subtracts the per-finding penalties, clamped to [0,100].
func Score(issues, warnings int) int {
	score := 100 - issues*IssuePenalty - warnings*WarningPenalty
	return max(0, min(100, score))
}

// WordCount counts the words of markup's visible text.
func WordCount(markup string) int {
	return len(wordPattern.FindAllString(StripText(markup), -1))
}

// StripText returns the text nodes of markup joined by single spaces.
// Script and style bodies are skipped.
func StripText(markup string) string {
	tokenizer := html.NewTokenizer(strings.NewReader(markup))
	var parts []string
	skip := 0
	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			return strings.Join(parts, " ")
		case html.StartTagToken:
			if isRawText(tokenizer) {
				skip++
			}
		case html.EndTagToken:
			if isRawText(tokenizer) && skip > 0 {
				skip--
			}
		case html.TextToken:
			if skip == 0 {
				parts = append(parts, string(tokenizer.Text()))
			}
		}
	}
}

func isRawText(t *html.Tokenizer) bool {
	name, _ := t.TagName()
	switch string(name) {
	case "script", "style":
		return true
	default:
		return false
	}
}

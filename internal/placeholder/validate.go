package placeholder

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"
)

// Advisory messages produced by Validate.
const (
	IssueMissingTitle         = "Template must include a <title> tag."
	WarningMissingDescription = "Meta description is recommended for SEO."
)

// Validation is the advisory report for a template's markup.
type Validation struct {
	Variables     []string `json:"variables"`
	Issues        []string `json:"issues"`
	Warnings      []string `json:"warnings"`
	Suggestions   []string `json:"suggestions"`
	SanitizedHTML string   `json:"sanitized_html"`
}

// Validate inspects markup for the tags search engines expect. Findings are
// advisory and never block template creation.
func Validate(markup string) (Validation, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return Validation{}, fmt.Errorf("parse template markup: %w", err)
	}
	v := Validation{
		Variables:     ExtractVariables(markup),
		Issues:        []string{},
		Warnings:      []string{},
		Suggestions:   []string{},
		SanitizedHTML: Sanitize(markup),
	}
	if doc.Find("title").Length() == 0 {
		v.Issues = append(v.Issues, IssueMissingTitle)
	}
	if doc.Find(`meta[name="description"]`).Length() == 0 {
		v.Warnings = append(v.Warnings, WarningMissingDescription)
	}
	return v, nil
}

var sanitizePolicy = newSanitizePolicy()

func newSanitizePolicy() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.AllowElements(
		"div", "section", "article", "header", "footer", "main", "nav",
		"h1", "h2", "h3", "h4", "h5", "h6", "img", "meta", "link", "style",
	)
	p.AllowAttrs("class", "id", "style").Globally()
	p.AllowDataAttributes()
	p.AllowAttrs("href", "title", "target", "rel").OnElements("a")
	p.AllowAttrs("src", "alt", "title", "width", "height").OnElements("img")
	p.AllowAttrs("name", "content", "property").OnElements("meta")
	p.AllowAttrs("rel", "href").OnElements("link")
	return p
}

// Sanitize strips scripts, event handlers and unknown tags from markup.
func Sanitize(markup string) string {
	return sanitizePolicy.Sanitize(markup)
}

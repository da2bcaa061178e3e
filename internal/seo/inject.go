package seo

import (
	"fmt"
	"html"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/bhupendraedzeb-hub/programtic-seo/internal/pagegen"
)

// InjectMeta guarantees markup has a <head> and sets its robots meta tag to
// robots, updating an existing tag instead of adding a second one. The second
// argument is the page's public URL; no canonical link is written for it.
func InjectMeta(markup, _, robots string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return "", fmt.Errorf("parse rendered markup: %w", err)
	}

	head := doc.Find("head").First()
	if head.Length() == 0 {
		doc.Find("html").First().PrependHtml("<head></head>")
		head = doc.Find("head").First()
	}

	if robots != "" {
		existing := head.Find("meta").FilterFunction(isRobotsMeta)
		if existing.Length() > 0 {
			existing.First().SetAttr("content", robots)
			existing.Slice(1, goquery.ToEnd).Remove()
		} else {
			head.AppendHtml(fmt.Sprintf(`<meta name="robots" content="%s"/>`, html.EscapeString(robots)))
		}
	}

	out, err := doc.Html()
	if err != nil {
		return "", fmt.Errorf("render markup: %w", err)
	}
	return out, nil
}

// isRobotsMeta matches a robots meta name in any letter case.
func isRobotsMeta(_ int, s *goquery.Selection) bool {
	name, _ := s.Attr("name")
	return strings.EqualFold(strings.TrimSpace(name), "robots")
}

// RobotsFor returns the directive used for bulk and single pages.
func RobotsFor(isBulk bool) string {
	if isBulk {
		return pagegen.RobotsNoIndex
	}
	return pagegen.RobotsIndex
}

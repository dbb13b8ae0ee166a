package fetcher

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// nonContent lists elements whose text is never part of a letter.
const nonContent = "script, style, noscript, template, svg, nav, header > nav, footer nav, form, iframe"

// blockElements get a line break after their text so paragraphs survive extraction.
const blockElements = "p, div, br, li, h1, h2, h3, h4, h5, h6, tr, blockquote, address, section, article, pre"

var (
	spaceRun = regexp.MustCompile(`[ \t\f\v\r\x{00a0}]+`)
	blankRun = regexp.MustCompile(`\n{3,}`)
)

// ExtractText returns the visible text of an HTML document with paragraph breaks kept.
func ExtractText(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}

	doc.Find(nonContent).Remove()
	doc.Find(blockElements).Each(func(_ int, s *goquery.Selection) {
		s.AppendHtml("\n")
	})

	root := doc.Find("body")
	if root.Length() == 0 {
		root = doc.Selection
	}

	text := normalizeWhitespace(root.Text())
	if text == "" {
		return "", ErrNoText
	}
	return text, nil
}

func normalizeWhitespace(s string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(spaceRun.ReplaceAllString(line, " "))
	}
	s = strings.Join(lines, "\n")
	s = blankRun.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

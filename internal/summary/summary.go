// Package summary reduces an entry's HTML description to short plain text.
package summary

import (
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
)

// DefaultMaxRunes bounds summaries carried on fan-out events.
const DefaultMaxRunes = 280

// Extract returns the visible text of html, whitespace collapsed and cut to at
// most maxRunes runes. Content that cannot be parsed as HTML is treated as
// plain text.
func Extract(html string, maxRunes int) string {
	html = strings.TrimSpace(html)
	if html == "" {
		return ""
	}
	if maxRunes <= 0 {
		maxRunes = DefaultMaxRunes
	}

	text := html
	if doc, err := goquery.NewDocumentFromReader(strings.NewReader(html)); err == nil {
		doc.Find("script, style, noscript").Remove()
		text = doc.Text()
	}

	return truncate(strings.Join(strings.Fields(text), " "), maxRunes)
}

// FirstImage returns the src of the first <img> in html, if any.
func FirstImage(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}
	if src, ok := doc.Find("img[src]").First().Attr("src"); ok {
		return strings.TrimSpace(src)
	}
	return ""
}

func truncate(s string, maxRunes int) string {
	if utf8.RuneCountInString(s) <= maxRunes {
		return s
	}
	runes := []rune(s)
	cut := strings.TrimRight(string(runes[:maxRunes-1]), " ")
	return cut + "…"
}

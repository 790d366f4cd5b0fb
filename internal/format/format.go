// Package format renders delivered entries as a Slack mrkdwn message.
package format

import (
	"strings"

	"github.com/Adda-Baaj/changelog-relay/internal/domain"
)

// DefaultHeader opens every update message.
const DefaultHeader = "New GitHub Changelog Updates:"

// dateTokens is how many whitespace separated tokens of the feed's published
// text are shown, e.g. "Wed, 03 Jan".
const dateTokens = 3

var escaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

// Message builds the update text: a header line followed by one line per entry
// of the form "- <date>: *<link|title>*".
func Message(header string, entries []domain.FeedEntry) string {
	if strings.TrimSpace(header) == "" {
		header = DefaultHeader
	}

	var b strings.Builder
	b.WriteString(header)
	b.WriteByte('\n')
	for _, e := range entries {
		b.WriteString("- ")
		b.WriteString(ShortDate(e.PublishedText))
		b.WriteString(": *<")
		b.WriteString(e.Link)
		b.WriteByte('|')
		b.WriteString(escaper.Replace(e.Title))
		b.WriteString(">*\n")
	}
	return b.String()
}

// ShortDate keeps the first three whitespace separated tokens of s.
func ShortDate(s string) string {
	fields := strings.Fields(s)
	if len(fields) > dateTokens {
		fields = fields[:dateTokens]
	}
	return strings.Join(fields, " ")
}

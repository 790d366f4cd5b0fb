package format

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Adda-Baaj/changelog-relay/internal/domain"
)

func TestShortDate(t *testing.T) {
	cases := map[string]string{
		"Wed, 03 Jan 2024 18:30:15 +0000": "Wed, 03 Jan",
		"  Tue,\t02   Jan 2024":           "Tue, 02 Jan",
		"2024-01-02":                      "2024-01-02",
		"":                                "",
	}
	for in, want := range cases {
		assert.Equal(t, want, ShortDate(in), "input %q", in)
	}
}

func TestMessage(t *testing.T) {
	entries := []domain.FeedEntry{
		{Title: "Actions: larger runners", Link: "https://github.blog/a", PublishedText: "Tue, 02 Jan 2024 09:00:00 +0000"},
		{Title: "Issues & Projects <beta>", Link: "https://github.blog/b", PublishedText: "Wed, 03 Jan 2024 18:30:15 +0000"},
	}

	want := "New GitHub Changelog Updates:\n" +
		"- Tue, 02 Jan: *<https://github.blog/a|Actions: larger runners>*\n" +
		"- Wed, 03 Jan: *<https://github.blog/b|Issues &amp; Projects &lt;beta&gt;>*\n"
	assert.Equal(t, want, Message("", entries))
}

func TestMessageCustomHeader(t *testing.T) {
	assert.Equal(t, "Heads up\n", Message("Heads up", nil))
}

// Package feed retrieves the upstream changelog feed and maps its items onto
// domain entries.
package feed

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/Adda-Baaj/changelog-relay/internal/domain"
	"github.com/Adda-Baaj/changelog-relay/internal/logger"
	"github.com/Adda-Baaj/changelog-relay/pkg/httpclient"
)

// DefaultURL is the GitHub changelog feed.
const DefaultURL = "https://github.blog/changelog/feed/"

// ErrMalformedEntry is returned when a feed item has no structured publish time.
var ErrMalformedEntry = errors.New("feed entry has no publish time")

var acceptHeaders = map[string]string{
	"Accept": "application/rss+xml, application/atom+xml, application/xml;q=0.9, */*;q=0.8",
}

// Fetcher downloads and parses a single feed.
type Fetcher struct {
	client httpclient.Client
	parser *gofeed.Parser
	url    string
	log    logger.Logger
}

// NewFetcher builds a Fetcher for url.
func NewFetcher(client httpclient.Client, url string, log logger.Logger) *Fetcher {
	if client == nil {
		client = httpclient.NewRestyClient(httpclient.DefaultTimeout)
	}
	if strings.TrimSpace(url) == "" {
		url = DefaultURL
	}
	return &Fetcher{
		client: client,
		parser: gofeed.NewParser(),
		url:    url,
		log:    logger.Ensure(log),
	}
}

// URL returns the feed address.
func (f *Fetcher) URL() string { return f.url }

// Fetch returns the feed entries in source order (newest first for the
// changelog feed).
func (f *Fetcher) Fetch(ctx context.Context) ([]domain.FeedEntry, error) {
	resp, err := f.client.Get(ctx, f.url, acceptHeaders)
	if err != nil {
		return nil, fmt.Errorf("fetch feed %s: %w", f.url, err)
	}

	body := resp.Body()
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("feed %s returned status %d body: %s", f.url, resp.StatusCode(), httpclient.Snippet(body))
	}

	parsed, err := f.parser.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse feed %s: %w", f.url, err)
	}

	entries, err := buildEntries(parsed.Items)
	if err != nil {
		return nil, err
	}

	f.log.DebugObj("feed fetched", "feed_fetched", map[string]any{
		"url":     f.url,
		"title":   parsed.Title,
		"entries": len(entries),
	})
	return entries, nil
}

// buildEntries converts gofeed items into domain entries.
func buildEntries(items []*gofeed.Item) ([]domain.FeedEntry, error) {
	entries := make([]domain.FeedEntry, 0, len(items))
	for i, item := range items {
		if item == nil {
			continue
		}
		if item.PublishedParsed == nil {
			return nil, fmt.Errorf("item %d (%q): %w", i, item.Link, ErrMalformedEntry)
		}

		entries = append(entries, domain.FeedEntry{
			Title:         strings.TrimSpace(item.Title),
			Link:          strings.TrimSpace(item.Link),
			PublishedText: strings.TrimSpace(item.Published),
			PublishedAt:   item.PublishedParsed.UTC().Truncate(time.Second),
			Description:   firstNonEmpty(item.Description, item.Content),
		})
	}
	return entries, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}

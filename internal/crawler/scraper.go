package crawler

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/Adda-Baaj/changelog-relay/internal/domain"
	"github.com/Adda-Baaj/changelog-relay/internal/logger"
	"github.com/Adda-Baaj/changelog-relay/pkg/httpclient"
)

const (
	maxHTMLBodyBytes = 1 << 20 // 1 MiB
	maxPageWorkers   = 4
)

var pageHeaders = map[string]string{
	"Accept": "text/html,application/xhtml+xml",
}

// Scraper fills missing entry metadata from the entry's own HTML page.
type Scraper struct {
	client httpclient.Client
	log    logger.Logger
	delay  time.Duration
}

// NewScraper creates a Scraper. delay spaces out page requests; zero disables
// rate limiting.
func NewScraper(client httpclient.Client, delay time.Duration, log logger.Logger) *Scraper {
	if client == nil {
		client = httpclient.NewRestyClient(httpclient.DefaultTimeout)
	}
	return &Scraper{client: client, log: logger.Ensure(log), delay: delay}
}

// Enrich returns a copy of entries where an empty Description or ImageURL is
// taken from the page's meta tags. Entries whose page cannot be fetched are
// returned unchanged.
func (s *Scraper) Enrich(ctx context.Context, entries []domain.FeedEntry) []domain.FeedEntry {
	out := make([]domain.FeedEntry, len(entries))
	copy(out, entries) // default to originals so partial results are returned on cancel

	if len(entries) == 0 {
		return out
	}

	workerCount := min(len(entries), maxPageWorkers)

	var limiter <-chan time.Time
	if s.delay > 0 {
		ticker := time.NewTicker(s.delay)
		limiter = ticker.C
		defer ticker.Stop()
	}

	jobCh := make(chan int)
	var wg sync.WaitGroup

	for workerID := range workerCount {
		wg.Add(1)
		go s.pageWorker(ctx, entries, limiter, jobCh, out, &wg, workerID)
	}

	for idx := range entries {
		if ctx.Err() != nil {
			break
		}
		jobCh <- idx
	}
	close(jobCh)

	wg.Wait()

	return out
}

func (s *Scraper) pageWorker(
	ctx context.Context,
	entries []domain.FeedEntry,
	limiter <-chan time.Time,
	jobCh <-chan int,
	out []domain.FeedEntry,
	wg *sync.WaitGroup,
	workerID int,
) {
	defer wg.Done()

	for idx := range jobCh {
		if ctx.Err() != nil {
			continue
		}

		e := entries[idx]
		if e.Description != "" && e.ImageURL != "" {
			continue
		}

		if limiter != nil {
			select {
			case <-ctx.Done():
				continue
			case <-limiter:
			}
		}

		enriched, err := s.fetchAndParse(ctx, e, workerID)
		if err != nil {
			s.log.WarnObj("entry page scrape failed", "metadata_error", map[string]any{
				"worker_id": workerID,
				"link":      e.Link,
				"error":     err.Error(),
			})
			continue
		}
		out[idx] = enriched
	}
}

func (s *Scraper) fetchAndParse(ctx context.Context, e domain.FeedEntry, workerID int) (domain.FeedEntry, error) {
	s.log.DebugObj("scraping entry page", "scrape_start", map[string]any{
		"worker_id": workerID,
		"link":      e.Link,
	})

	resp, err := s.client.Get(ctx, e.Link, pageHeaders)
	if err != nil {
		return e, fmt.Errorf("http fetch: %w", err)
	}
	if !httpclient.IsSuccess(resp) {
		return e, fmt.Errorf("status %d body: %s", resp.StatusCode(), httpclient.Snippet(resp.Body()))
	}

	body := resp.Body()
	if len(body) > maxHTMLBodyBytes {
		s.log.InfoObj("html body truncated", "truncation", map[string]any{
			"worker_id": workerID,
			"link":      e.Link,
			"original":  len(body),
			"kept":      maxHTMLBodyBytes,
		})
		body = body[:maxHTMLBodyBytes]
	}

	meta, err := parseMeta(body)
	if err != nil {
		return e, err
	}
	if e.Description == "" {
		e.Description = meta.Description
	}
	if e.ImageURL == "" && meta.ImageURL != "" {
		e.ImageURL = resolveURL(meta.ImageURL, e.Link)
	}
	return e, nil
}

func parseMeta(body []byte) (pageMeta, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return pageMeta{}, fmt.Errorf("parse html: %w", err)
	}

	extract := func(sel string) string {
		if node := doc.Find(sel).First(); node.Length() > 0 {
			if val, ok := node.Attr("content"); ok {
				return strings.TrimSpace(val)
			}
		}
		return ""
	}

	return pageMeta{
		Description: firstNonEmpty(
			extract(`meta[property="og:description"]`),
			extract(`meta[name="description"]`),
		),
		ImageURL: firstNonEmpty(
			extract(`meta[property="og:image"]`),
			extract(`meta[name="twitter:image"]`),
		),
	}, nil
}

type pageMeta struct {
	Description string
	ImageURL    string
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// resolveURL resolves a possibly relative URL against a base URL.
func resolveURL(raw, base string) string {
	parsed, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	if parsed.IsAbs() {
		return parsed.String()
	}

	baseURL, err := url.Parse(base)
	if err != nil {
		return raw
	}
	return baseURL.ResolveReference(parsed).String()
}

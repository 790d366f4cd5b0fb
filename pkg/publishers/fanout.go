package publishers

import (
	"context"
	"time"

	"github.com/Adda-Baaj/changelog-relay/internal/domain"
)

// Fanout mirrors delivered entries to every enabled publisher. Publish errors
// are logged and counted, never returned: the chat message is the delivery of
// record.
type Fanout struct {
	feedURL    string
	publishers []Publisher
	enricher   Enricher
	log        Logger
}

// Enricher fills entry metadata before events are built.
type Enricher interface {
	Enrich(ctx context.Context, entries []domain.FeedEntry) []domain.FeedEntry
}

// NewFanout wraps already built publishers.
func NewFanout(feedURL string, pubs []Publisher, log Logger) *Fanout {
	return &Fanout{feedURL: feedURL, publishers: pubs, log: ensureLogger(log)}
}

// LoadFanout reads the publishers file at path and builds every enabled entry.
func LoadFanout(ctx context.Context, path, feedURL string, log Logger) (*Fanout, error) {
	reg, err := LoadRegistry(path)
	if err != nil {
		return nil, err
	}
	pubs, err := BuildAll(ctx, DefaultRegistry(), reg.Enabled(), log)
	if err != nil {
		return nil, err
	}
	return NewFanout(feedURL, pubs, log), nil
}

// SetEnricher attaches e; entries pass through it once per Publish.
func (f *Fanout) SetEnricher(e Enricher) {
	f.enricher = e
}

// Len reports how many publishers are attached.
func (f *Fanout) Len() int {
	if f == nil {
		return 0
	}
	return len(f.publishers)
}

// Publish sends one event per entry to every publisher and returns how many
// sends failed.
func (f *Fanout) Publish(ctx context.Context, entries []domain.FeedEntry, deliveredAt time.Time) int {
	if f.Len() == 0 || len(entries) == 0 {
		return 0
	}

	if f.enricher != nil {
		entries = f.enricher.Enrich(ctx, entries)
	}

	failed := 0
	for _, e := range entries {
		evt := NewEvent(f.feedURL, e, deliveredAt)
		for _, p := range f.publishers {
			if err := p.Publish(ctx, evt); err != nil {
				failed++
				f.log.WarnObj("publisher failed to deliver event", "fanout_publish_failed", map[string]any{
					"publisher_id":   p.ID(),
					"publisher_type": p.Type(),
					"link":           e.Link,
					"error":          err.Error(),
				})
			}
		}
	}

	f.log.InfoObj("fan-out finished", "fanout_done", map[string]any{
		"entries":    len(entries),
		"publishers": len(f.publishers),
		"failed":     failed,
	})
	return failed
}

// Close releases publisher resources.
func (f *Fanout) Close() error {
	if f == nil {
		return nil
	}
	return closeAll(f.publishers)
}

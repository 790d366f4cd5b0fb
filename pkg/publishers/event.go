package publishers

import (
	"context"
	"crypto/sha1" //nolint:gosec // non-cryptographic id generation
	"encoding/hex"
	"time"

	"github.com/Adda-Baaj/changelog-relay/internal/domain"
	"github.com/Adda-Baaj/changelog-relay/internal/summary"
)

// EventType tags every event emitted by the relay.
const EventType = "changelog.entry.delivered"

// Event mirrors one delivered feed entry to downstream sinks.
type Event struct {
	ID            string    `json:"id"`
	Type          string    `json:"type"`
	Feed          string    `json:"feed"`
	Title         string    `json:"title"`
	Link          string    `json:"link"`
	PublishedText string    `json:"published_text,omitempty"`
	PublishedAt   time.Time `json:"published_at"`
	Summary       string    `json:"summary,omitempty"`
	ImageURL      string    `json:"image_url,omitempty"`
	DeliveredAt   time.Time `json:"delivered_at"`
}

// Publisher delivers events to one configured sink.
type Publisher interface {
	ID() string
	Type() string
	Publish(ctx context.Context, evt Event) error
}

// Logger is the logging surface publishers need.
type Logger interface {
	DebugObj(msg, event string, fields map[string]any)
	InfoObj(msg, event string, fields map[string]any)
	WarnObj(msg, event string, fields map[string]any)
	ErrorObj(msg, event string, fields map[string]any)
}

type nopLogger struct{}

func (nopLogger) DebugObj(string, string, map[string]any) {}
func (nopLogger) InfoObj(string, string, map[string]any)  {}
func (nopLogger) WarnObj(string, string, map[string]any)  {}
func (nopLogger) ErrorObj(string, string, map[string]any) {}

func ensureLogger(log Logger) Logger {
	if log == nil {
		return nopLogger{}
	}
	return log
}

// eventAttributes are the routing attributes attached to queue messages.
func eventAttributes(evt Event) map[string]string {
	attrs := map[string]string{
		"event_type": evt.Type,
		"event_id":   evt.ID,
		"feed":       evt.Feed,
	}
	if !evt.PublishedAt.IsZero() {
		attrs["published_at"] = evt.PublishedAt.Format(time.RFC3339)
	}
	return attrs
}

// hashLink derives a stable event id from the entry link.
func hashLink(u string) string {
	sum := sha1.Sum([]byte(u))
	return hex.EncodeToString(sum[:])
}

func imageURL(e domain.FeedEntry) string {
	if e.ImageURL != "" {
		return e.ImageURL
	}
	return summary.FirstImage(e.Description)
}

// NewEvent builds the event for a delivered entry.
func NewEvent(feedURL string, e domain.FeedEntry, deliveredAt time.Time) Event {
	return Event{
		ID:            hashLink(e.Link),
		Type:          EventType,
		Feed:          feedURL,
		Title:         e.Title,
		Link:          e.Link,
		PublishedText: e.PublishedText,
		PublishedAt:   e.PublishedAt.UTC(),
		Summary:       summary.Extract(e.Description, summary.DefaultMaxRunes),
		ImageURL:      imageURL(e),
		DeliveredAt:   deliveredAt.UTC(),
	}
}

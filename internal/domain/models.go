package domain

import "time"

// Domain contains core models shared by the relay stages.

// FeedEntry is one item of the upstream feed.
type FeedEntry struct {
	Title string
	Link  string
	// PublishedText is the publish date exactly as the feed renders it. It is
	// only ever used for display.
	PublishedText string
	// PublishedAt is the structured publish time used for filtering.
	PublishedAt time.Time
	Description string
	// ImageURL is filled by page enrichment when the entry page declares one.
	ImageURL string
}

// RunMode selects where the previous watermark comes from.
type RunMode string

const (
	ModeLocal    RunMode = "local"
	ModeArtifact RunMode = "artifact"
)

// Package feedfilter selects the feed entries that are newer than the last
// processed watermark.
package feedfilter

import (
	"slices"
	"time"

	"github.com/Adda-Baaj/changelog-relay/internal/domain"
)

// Result is the outcome of Filter.
type Result struct {
	// Entries holds accepted entries, oldest first.
	Entries []domain.FeedEntry
	// Next is the watermark to persist once Entries have been delivered.
	Next time.Time
}

// Filter expects entries newest-first, as feeds deliver them, and scans them
// oldest-first. An entry is accepted only when it is strictly after the
// original watermark w; the threshold does not move during the scan. Next is
// the latest accepted publish time, or w when nothing was accepted.
func Filter(w time.Time, entries []domain.FeedEntry) Result {
	ordered := slices.Clone(entries)
	slices.Reverse(ordered)

	res := Result{Next: w}
	for _, e := range ordered {
		if !e.PublishedAt.After(w) {
			continue
		}
		res.Entries = append(res.Entries, e)
		if e.PublishedAt.After(res.Next) {
			res.Next = e.PublishedAt
		}
	}
	return res
}

// Package relay runs one pass of the pipeline: load watermark, fetch feed,
// filter, notify, persist.
package relay

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Adda-Baaj/changelog-relay/internal/domain"
	"github.com/Adda-Baaj/changelog-relay/internal/feedfilter"
	"github.com/Adda-Baaj/changelog-relay/internal/ledger"
	"github.com/Adda-Baaj/changelog-relay/internal/logger"
	"github.com/Adda-Baaj/changelog-relay/internal/watermark"
)

// ErrDeliveryFailed means new entries were found but the chat message was not
// delivered. The watermark is left untouched so the next run retries them.
var ErrDeliveryFailed = errors.New("delivery failed, watermark not updated")

// Fetcher returns the current feed snapshot, newest first.
type Fetcher interface {
	Fetch(ctx context.Context) ([]domain.FeedEntry, error)
}

// Notifier delivers entries as one chat message.
type Notifier interface {
	PostUpdate(ctx context.Context, entries []domain.FeedEntry) bool
}

// Recorder keeps an audit trail of runs.
type Recorder interface {
	RecordRun(r ledger.Run) error
	RecordDeliveries(entries []domain.FeedEntry, at time.Time) error
}

// Mirror forwards delivered entries to secondary sinks and returns the number
// of failed sends.
type Mirror interface {
	Publish(ctx context.Context, entries []domain.FeedEntry, deliveredAt time.Time) int
}

// Deps wires a Relay. Recorder and Mirror are optional.
type Deps struct {
	Mode     domain.RunMode
	FeedURL  string
	Source   watermark.Source
	Sink     watermark.Sink
	Fetcher  Fetcher
	Notifier Notifier
	Recorder Recorder
	Mirror   Mirror
	Log      logger.Logger
	// Now defaults to time.Now.
	Now func() time.Time
}

// Report summarizes a finished run.
type Report struct {
	Previous  time.Time
	Next      time.Time
	Found     int
	Delivered int
	Outcome   ledger.Outcome
}

// Relay executes runs.
type Relay struct {
	d Deps
}

// New validates d and returns a Relay.
func New(d Deps) (*Relay, error) {
	switch {
	case d.Source == nil:
		return nil, errors.New("relay: watermark source is required")
	case d.Sink == nil:
		return nil, errors.New("relay: watermark sink is required")
	case d.Fetcher == nil:
		return nil, errors.New("relay: fetcher is required")
	case d.Notifier == nil:
		return nil, errors.New("relay: notifier is required")
	}
	d.Log = logger.Ensure(d.Log)
	if d.Now == nil {
		d.Now = time.Now
	}
	return &Relay{d: d}, nil
}

// Run performs one pass. Any returned error should end the process with a
// non-zero status; ErrDeliveryFailed is returned after a failed chat delivery.
func (r *Relay) Run(ctx context.Context) (Report, error) {
	started := r.d.Now()
	log := r.d.Log

	prev, err := watermark.LoadOrDefault(ctx, r.d.Source, started, log)
	if err != nil {
		log.ErrorObj("an error occurred while reading the previous watermark", "watermark_load_failed", map[string]any{
			"mode":  r.d.Mode,
			"error": err.Error(),
		})
		return Report{}, err
	}

	entries, err := r.d.Fetcher.Fetch(ctx)
	if err != nil {
		log.ErrorObj("an error occurred while fetching the feed", "feed_fetch_failed", map[string]any{
			"feed":  r.d.FeedURL,
			"error": err.Error(),
		})
		return Report{}, fmt.Errorf("fetch feed: %w", err)
	}

	res := feedfilter.Filter(prev, entries)
	rep := Report{Previous: prev, Next: prev, Found: len(res.Entries)}

	if len(res.Entries) == 0 {
		log.InfoObj("no new posts found since last check", "relay_nothing_new", map[string]any{
			"watermark": watermark.Format(prev),
			"scanned":   len(entries),
		})
		if err := r.save(ctx, prev); err != nil {
			return rep, err
		}
		rep.Outcome = ledger.OutcomeNothingNew
		r.record(started, rep)
		return rep, nil
	}

	log.InfoObj("found new posts to share", "relay_found", map[string]any{
		"count":     len(res.Entries),
		"watermark": watermark.Format(prev),
		"next":      watermark.Format(res.Next),
	})

	if !r.d.Notifier.PostUpdate(ctx, res.Entries) {
		log.WarnObj("skipped writing watermark due to delivery failure", "relay_delivery_failed", map[string]any{
			"count":     len(res.Entries),
			"watermark": watermark.Format(prev),
		})
		rep.Outcome = ledger.OutcomeDeliveryFailed
		r.record(started, rep)
		return rep, ErrDeliveryFailed
	}

	if err := r.save(ctx, res.Next); err != nil {
		return rep, err
	}
	rep.Next = res.Next
	rep.Delivered = len(res.Entries)
	rep.Outcome = ledger.OutcomeDelivered

	log.InfoObj("successfully posted updates and saved new watermark", "relay_delivered", map[string]any{
		"count":     rep.Delivered,
		"watermark": watermark.Format(rep.Next),
	})

	deliveredAt := r.d.Now()
	if r.d.Recorder != nil {
		if err := r.d.Recorder.RecordDeliveries(res.Entries, deliveredAt); err != nil {
			log.WarnObj("failed to record deliveries in ledger", "ledger_write_failed", map[string]any{"error": err.Error()})
		}
	}
	r.record(started, rep)
	if r.d.Mirror != nil {
		r.d.Mirror.Publish(ctx, res.Entries, deliveredAt)
	}
	return rep, nil
}

func (r *Relay) save(ctx context.Context, t time.Time) error {
	if err := r.d.Sink.Save(ctx, t); err != nil {
		r.d.Log.ErrorObj("failed to persist watermark", "watermark_save_failed", map[string]any{
			"watermark": watermark.Format(t),
			"error":     err.Error(),
		})
		return fmt.Errorf("save watermark: %w", err)
	}
	r.d.Log.InfoObj("new watermark written", "watermark_saved", map[string]any{
		"watermark": watermark.Format(t),
	})
	return nil
}

func (r *Relay) record(started time.Time, rep Report) {
	if r.d.Recorder == nil {
		return
	}
	err := r.d.Recorder.RecordRun(ledger.Run{
		StartedAt: started,
		Mode:      r.d.Mode,
		FeedURL:   r.d.FeedURL,
		Previous:  rep.Previous,
		Next:      rep.Next,
		Found:     rep.Found,
		Delivered: rep.Delivered,
		Outcome:   rep.Outcome,
	})
	if err != nil {
		r.d.Log.WarnObj("failed to record run in ledger", "ledger_write_failed", map[string]any{"error": err.Error()})
	}
}

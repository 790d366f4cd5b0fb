// Package watermark loads and stores the publish time of the newest entry that
// has already been relayed.
package watermark

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Adda-Baaj/changelog-relay/internal/logger"
)

// DefaultLookback is how far back a first run reaches when no watermark has
// been persisted yet.
const DefaultLookback = 7 * 24 * time.Hour

// Source yields the previously persisted watermark. ok is false when nothing
// has been persisted yet, which is not an error.
type Source interface {
	Name() string
	Load(ctx context.Context) (t time.Time, ok bool, err error)
}

// Sink persists a watermark.
type Sink interface {
	Save(ctx context.Context, t time.Time) error
}

var layouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999Z0700",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999Z0700",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02",
}

// Parse reads an ISO-8601 timestamp. Values without a zone are taken as UTC.
func Parse(s string) (time.Time, error) {
	s = strings.TrimSpace(strings.TrimPrefix(s, "\ufeff"))
	if s == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid ISO-8601 timestamp %q", s)
}

// Format renders t as an RFC 3339 timestamp in UTC.
func Format(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// Default returns the watermark used when none has been persisted.
func Default(now time.Time) time.Time {
	return now.UTC().Add(-DefaultLookback).Truncate(time.Second)
}

// LoadOrDefault loads the watermark from src and falls back to Default when
// src has nothing stored.
func LoadOrDefault(ctx context.Context, src Source, now time.Time, log logger.Logger) (time.Time, error) {
	log = logger.Ensure(log)

	t, ok, err := src.Load(ctx)
	if err != nil {
		return time.Time{}, fmt.Errorf("load watermark from %s: %w", src.Name(), err)
	}
	if !ok {
		t = Default(now)
		log.InfoObj("no existing watermark found, proceeding with initial setup", "watermark_initial", map[string]any{
			"source":    src.Name(),
			"watermark": Format(t),
			"lookback":  DefaultLookback.String(),
		})
		return t, nil
	}

	log.InfoObj("using stored watermark", "watermark_loaded", map[string]any{
		"source":    src.Name(),
		"watermark": Format(t),
	})
	return t, nil
}

// Package ledger keeps an optional bbolt audit trail of relay runs and the
// entries each run delivered. It is never consulted when deciding what is new.
package ledger

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/Adda-Baaj/changelog-relay/internal/domain"
)

var (
	runsBucket       = []byte("runs")
	deliveriesBucket = []byte("deliveries")
)

// Outcome classifies how a run ended.
type Outcome string

const (
	OutcomeNothingNew     Outcome = "nothing_new"
	OutcomeDelivered      Outcome = "delivered"
	OutcomeDeliveryFailed Outcome = "delivery_failed"
)

// Run is one relay invocation.
type Run struct {
	StartedAt time.Time      `json:"started_at"`
	Mode      domain.RunMode `json:"mode"`
	FeedURL   string         `json:"feed_url"`
	Previous  time.Time      `json:"previous"`
	Next      time.Time      `json:"next"`
	Found     int            `json:"found"`
	Delivered int            `json:"delivered"`
	Outcome   Outcome        `json:"outcome"`
}

// Delivery is one entry sent to the channel.
type Delivery struct {
	Title       string    `json:"title"`
	Link        string    `json:"link"`
	PublishedAt time.Time `json:"published_at"`
	DeliveredAt time.Time `json:"delivered_at"`
}

// Ledger is a bbolt-backed store.
type Ledger struct {
	db *bolt.DB
}

// Open opens (creating if needed) the ledger at path.
func Open(path string) (*Ledger, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open ledger %s: %w", path, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{runsBucket, deliveriesBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("create bucket %s: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Ledger{db: db}, nil
}

// Close releases the database file.
func (l *Ledger) Close() error {
	if l == nil || l.db == nil {
		return nil
	}
	return l.db.Close()
}

// runKey sorts lexicographically in start order.
func runKey(t time.Time) []byte {
	return []byte(t.UTC().Format("2006-01-02T15:04:05.000000000Z"))
}

// RecordRun stores r keyed by its start time.
func (l *Ledger) RecordRun(r Run) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal run: %w", err)
	}
	return l.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(runsBucket).Put(runKey(r.StartedAt), data)
	})
}

// RecordDeliveries stores every entry keyed by its link.
func (l *Ledger) RecordDeliveries(entries []domain.FeedEntry, at time.Time) error {
	return l.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(deliveriesBucket)
		for _, e := range entries {
			if e.Link == "" {
				continue
			}
			data, err := json.Marshal(Delivery{
				Title:       e.Title,
				Link:        e.Link,
				PublishedAt: e.PublishedAt,
				DeliveredAt: at.UTC(),
			})
			if err != nil {
				return fmt.Errorf("marshal delivery: %w", err)
			}
			if err := b.Put([]byte(e.Link), data); err != nil {
				return err
			}
		}
		return nil
	})
}

// ErrNotFound is returned by Delivered for unknown links.
var ErrNotFound = errors.New("not found")

// Delivered returns the delivery record for link.
func (l *Ledger) Delivered(link string) (Delivery, error) {
	var d Delivery
	err := l.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(deliveriesBucket).Get([]byte(link))
		if data == nil {
			return ErrNotFound
		}
		return json.Unmarshal(data, &d)
	})
	return d, err
}

// Runs returns up to limit runs, most recent first. limit <= 0 returns all.
func (l *Ledger) Runs(limit int) ([]Run, error) {
	var out []Run
	err := l.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(runsBucket).Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			if limit > 0 && len(out) >= limit {
				break
			}
			var r Run
			if err := json.Unmarshal(v, &r); err != nil {
				return fmt.Errorf("decode run %s: %w", k, err)
			}
			out = append(out, r)
		}
		return nil
	})
	return out, err
}

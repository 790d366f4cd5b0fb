package publishers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adda-Baaj/changelog-relay/internal/domain"
)

var delivered = []domain.FeedEntry{
	{
		Title:         "Larger runners",
		Link:          "https://github.blog/changelog/a",
		PublishedText: "Tue, 02 Jan 2024 09:00:00 +0000",
		PublishedAt:   time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC),
		Description:   `<p>Larger <em>runners</em> are here.</p><img src="https://github.blog/r.png">`,
	},
}

type recordingPublisher struct {
	id     string
	err    error
	events []Event
	closed bool
}

func (p *recordingPublisher) ID() string   { return p.id }
func (p *recordingPublisher) Type() string { return "fake" }
func (p *recordingPublisher) Publish(_ context.Context, evt Event) error {
	p.events = append(p.events, evt)
	return p.err
}
func (p *recordingPublisher) Close() error { p.closed = true; return nil }

func TestNewEvent(t *testing.T) {
	at := time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC)
	evt := NewEvent("https://github.blog/changelog/feed/", delivered[0], at)

	assert.Len(t, evt.ID, 40)
	assert.Equal(t, EventType, evt.Type)
	assert.Equal(t, "Larger runners are here.", evt.Summary)
	assert.Equal(t, "https://github.blog/r.png", evt.ImageURL)
	assert.Equal(t, at, evt.DeliveredAt)
	assert.Equal(t, evt.ID, NewEvent("other", delivered[0], at).ID, "id depends only on the link")
}

func TestFanoutPublish(t *testing.T) {
	ok := &recordingPublisher{id: "ok"}
	bad := &recordingPublisher{id: "bad", err: errors.New("nope")}
	f := NewFanout("feed", []Publisher{ok, bad}, nil)

	failed := f.Publish(context.Background(), delivered, time.Now())
	assert.Equal(t, 1, failed)
	assert.Len(t, ok.events, 1)
	assert.Len(t, bad.events, 1)

	require.NoError(t, f.Close())
	assert.True(t, ok.closed)
	assert.True(t, bad.closed)
}

type stampEnricher struct{ calls int }

func (e *stampEnricher) Enrich(_ context.Context, entries []domain.FeedEntry) []domain.FeedEntry {
	e.calls++
	out := make([]domain.FeedEntry, len(entries))
	for i, en := range entries {
		en.ImageURL = "https://img.example/" + en.Title
		out[i] = en
	}
	return out
}

func TestFanoutEnricher(t *testing.T) {
	rec := &recordingPublisher{id: "rec"}
	en := &stampEnricher{}
	f := NewFanout("feed", []Publisher{rec}, nil)
	f.SetEnricher(en)

	assert.Zero(t, f.Publish(context.Background(), delivered, time.Now()))
	assert.Equal(t, 1, en.calls)
	require.Len(t, rec.events, 1)
	assert.Equal(t, "https://img.example/Larger runners", rec.events[0].ImageURL)
	assert.Empty(t, delivered[0].ImageURL, "input entries are not modified")
}

func TestFanoutEmpty(t *testing.T) {
	var f *Fanout
	assert.Zero(t, f.Len())
	assert.Zero(t, f.Publish(context.Background(), delivered, time.Now()))
	assert.NoError(t, f.Close())
}

func TestLoadFanoutHTTP(t *testing.T) {
	var (
		mu  sync.Mutex
		got []Event
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "token", r.Header.Get("X-Token"))
		assert.Equal(t, EventType, r.Header.Get("X-Relay-Event"))
		var evt Event
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&evt))
		mu.Lock()
		got = append(got, evt)
		mu.Unlock()
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	path := writeFile(t, "p.yaml", "publishers:\n  - id: hook\n    type: http\n    http:\n      url: "+srv.URL+"\n      method: put\n      headers: {X-Token: token}\n")
	f, err := LoadFanout(context.Background(), path, "feed-url", nil)
	require.NoError(t, err)
	defer f.Close()

	require.Equal(t, 1, f.Len())
	assert.Zero(t, f.Publish(context.Background(), delivered, time.Now()))
	require.Len(t, got, 1)
	assert.Equal(t, "feed-url", got[0].Feed)
	assert.Equal(t, "https://github.blog/changelog/a", got[0].Link)
}

func TestHTTPPublisherRejectsNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer srv.Close()

	cfg := sanitizePublisherConfig(PublisherConfig{ID: "hook", Type: TypeHTTP, HTTP: &HTTPPublisherConfig{URL: srv.URL}})
	p, err := newHTTPPublisher(context.Background(), cfg, nil)
	require.NoError(t, err)
	err = p.Publish(context.Background(), NewEvent("f", delivered[0], time.Now()))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

type fakeSQS struct{ input *sqs.SendMessageInput }

func (f *fakeSQS) SendMessage(_ context.Context, in *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	f.input = in
	return &sqs.SendMessageOutput{MessageId: aws.String("m-1")}, nil
}

type fakeSNS struct{ input *sns.PublishInput }

func (f *fakeSNS) Publish(_ context.Context, in *sns.PublishInput, _ ...func(*sns.Options)) (*sns.PublishOutput, error) {
	f.input = in
	return &sns.PublishOutput{MessageId: aws.String("m-2")}, nil
}

func TestQueueSenders(t *testing.T) {
	evt := NewEvent("feed-url", delivered[0], time.Now())

	sqsFake := &fakeSQS{}
	qs := &awsSQSSender{queueURL: "https://sqs/q", client: sqsFake, log: nopLogger{}}
	require.NoError(t, qs.Send(context.Background(), evt))
	assert.Equal(t, "https://sqs/q", aws.ToString(sqsFake.input.QueueUrl))
	assert.Equal(t, "feed-url", aws.ToString(sqsFake.input.MessageAttributes["feed"].StringValue))
	assert.Contains(t, aws.ToString(sqsFake.input.MessageBody), `"link":"https://github.blog/changelog/a"`)
	assert.Equal(t, evt.ID, aws.ToString(sqsFake.input.MessageAttributes["event_id"].StringValue))
	assert.Equal(t, "2024-01-02T09:00:00Z", aws.ToString(sqsFake.input.MessageAttributes["published_at"].StringValue))
	assert.Nil(t, sqsFake.input.MessageDeduplicationId)

	fifoFake := &fakeSQS{}
	fifo := &awsSQSSender{queueURL: "https://sqs/q.fifo", fifo: true, client: fifoFake, log: nopLogger{}}
	require.NoError(t, fifo.Send(context.Background(), evt))
	assert.Equal(t, evt.ID, aws.ToString(fifoFake.input.MessageDeduplicationId))
	assert.Equal(t, fifoGroupID, aws.ToString(fifoFake.input.MessageGroupId))

	snsFake := &fakeSNS{}
	ns := &awsSNSSender{topicARN: "arn:t", client: snsFake, log: nopLogger{}}
	pub := &queuePublisher{id: "sns", provider: QueueProviderAWSSNS, sender: ns}
	require.NoError(t, pub.Publish(context.Background(), evt))
	assert.Equal(t, "Larger runners", aws.ToString(snsFake.input.Subject))
	assert.Equal(t, EventType, aws.ToString(snsFake.input.MessageAttributes["event_type"].StringValue))
	assert.NoError(t, pub.Close())
}

func TestSNSSenderOmitsEmptySubject(t *testing.T) {
	untitled := delivered[0]
	untitled.Title = "  "
	evt := NewEvent("feed-url", untitled, time.Now())

	snsFake := &fakeSNS{}
	ns := &awsSNSSender{topicARN: "arn:t", client: snsFake, log: nopLogger{}}
	require.NoError(t, ns.Send(context.Background(), evt))
	assert.Nil(t, snsFake.input.Subject)
	assert.NotEmpty(t, aws.ToString(snsFake.input.Message))
}

func TestTruncateSubject(t *testing.T) {
	long := make([]rune, 150)
	for i := range long {
		long[i] = 'é'
	}
	assert.Len(t, []rune(truncateSubject(string(long))), 100)
	assert.Equal(t, "short", truncateSubject("short"))
}

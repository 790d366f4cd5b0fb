package publishers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"cloud.google.com/go/pubsub"
	"google.golang.org/api/option"
)

// gcpPubSubSender publishes events to one topic. With ordering enabled every
// message of a feed shares the feed URL as ordering key, so subscribers see
// entries oldest first.
type gcpPubSubSender struct {
	client  *pubsub.Client
	topic   *pubsub.Topic
	ordered bool
	log     Logger
}

func newGCPPubSubSender(ctx context.Context, cfg *GCPQueueConfig, log Logger) (queueSender, error) {
	if cfg == nil {
		return nil, errors.New("gcp queue configuration is missing")
	}

	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	client, err := pubsub.NewClient(ctx, cfg.ProjectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("create pubsub client: %w", err)
	}

	topic := client.Topic(cfg.Topic)
	topic.EnableMessageOrdering = cfg.Ordered

	return &gcpPubSubSender{
		client:  client,
		topic:   topic,
		ordered: cfg.Ordered,
		log:     ensureLogger(log),
	}, nil
}

// Send publishes the event and waits for the server acknowledgement.
func (s *gcpPubSubSender) Send(ctx context.Context, evt Event) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	msg := &pubsub.Message{Data: payload, Attributes: eventAttributes(evt)}
	if s.ordered {
		msg.OrderingKey = evt.Feed
	}

	msgID, err := s.topic.Publish(ctx, msg).Get(ctx)
	if err != nil {
		if s.ordered {
			// A failed ordered publish pauses the key until resumed.
			s.topic.ResumePublish(msg.OrderingKey)
		}
		s.log.ErrorObj("gcp pubsub publisher send failed", "publisher_gcp_pubsub_error", map[string]any{
			"event_id": evt.ID,
			"link":     evt.Link,
			"error":    err.Error(),
		})
		return fmt.Errorf("send message to pubsub: %w", err)
	}

	s.log.DebugObj("gcp pubsub publisher delivered event", "publisher_gcp_pubsub_delivery", map[string]any{
		"event_id":   evt.ID,
		"message_id": msgID,
	})
	return nil
}

// Close flushes pending messages and releases the client.
func (s *gcpPubSubSender) Close() error {
	s.topic.Stop()
	return s.client.Close()
}

// Package slack posts relay updates through the Slack Web API.
package slack

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Adda-Baaj/changelog-relay/internal/domain"
	"github.com/Adda-Baaj/changelog-relay/internal/format"
	"github.com/Adda-Baaj/changelog-relay/internal/logger"
	"github.com/Adda-Baaj/changelog-relay/pkg/httpclient"
)

const (
	// DefaultAPIURL is the Slack Web API base.
	DefaultAPIURL = "https://slack.com/api"
	// DefaultIconEmoji decorates every posted message.
	DefaultIconEmoji = ":chart_with_upwards_trend:"
)

// Config holds the Slack delivery settings.
type Config struct {
	Token     string
	ChannelID string
	IconEmoji string
	Header    string
	APIURL    string
}

type postMessageRequest struct {
	Channel     string `json:"channel"`
	Text        string `json:"text"`
	IconEmoji   string `json:"icon_emoji,omitempty"`
	UnfurlMedia bool   `json:"unfurl_media"`
}

type postMessageResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
	TS    string `json:"ts"`
}

// Notifier sends one message per run to a fixed channel.
type Notifier struct {
	cfg    Config
	client httpclient.Client
	log    logger.Logger
}

// NewNotifier builds a Notifier.
func NewNotifier(cfg Config, client httpclient.Client, log logger.Logger) *Notifier {
	if client == nil {
		client = httpclient.NewRestyClient(httpclient.DefaultTimeout)
	}
	cfg.APIURL = strings.TrimRight(strings.TrimSpace(cfg.APIURL), "/")
	if cfg.APIURL == "" {
		cfg.APIURL = DefaultAPIURL
	}
	if cfg.IconEmoji == "" {
		cfg.IconEmoji = DefaultIconEmoji
	}
	return &Notifier{cfg: cfg, client: client, log: logger.Ensure(log)}
}

// PostUpdate formats entries into a single message and sends it. It reports
// false when Slack rejects the message or cannot be reached; the reason is
// logged.
func (n *Notifier) PostUpdate(ctx context.Context, entries []domain.FeedEntry) bool {
	req := postMessageRequest{
		Channel:     n.cfg.ChannelID,
		Text:        format.Message(n.cfg.Header, entries),
		IconEmoji:   n.cfg.IconEmoji,
		UnfurlMedia: false,
	}

	ts, err := n.post(ctx, req)
	if err != nil {
		n.log.ErrorObj("error posting to slack", "slack_post_error", map[string]any{
			"channel": n.cfg.ChannelID,
			"entries": len(entries),
			"error":   err.Error(),
		})
		return false
	}

	n.log.DebugObj("slack message delivered", "slack_post_delivered", map[string]any{
		"channel": n.cfg.ChannelID,
		"ts":      ts,
	})
	return true
}

func (n *Notifier) post(ctx context.Context, req postMessageRequest) (string, error) {
	headers := map[string]string{"Authorization": "Bearer " + n.cfg.Token}

	resp, err := n.client.PostJSON(ctx, n.cfg.APIURL+"/chat.postMessage", headers, req)
	if err != nil {
		return "", fmt.Errorf("chat.postMessage: %w", err)
	}
	if !httpclient.IsSuccess(resp) {
		return "", fmt.Errorf("chat.postMessage returned status %d body: %s", resp.StatusCode(), httpclient.Snippet(resp.Body()))
	}

	var out postMessageResponse
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return "", fmt.Errorf("decode chat.postMessage response: %w", err)
	}
	if !out.OK {
		return "", fmt.Errorf("slack api error: %s", out.Error)
	}
	return out.TS, nil
}

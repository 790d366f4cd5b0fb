package slack

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/Adda-Baaj/changelog-relay/internal/domain"
	"github.com/Adda-Baaj/changelog-relay/internal/logger"
)

var entries = []domain.FeedEntry{
	{Title: "Larger runners", Link: "https://github.blog/a", PublishedText: "Tue, 02 Jan 2024 09:00:00 +0000"},
}

func TestPostUpdate(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat.postMessage", r.URL.Path)
		assert.Equal(t, "Bearer xoxb-test", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"ok":true,"ts":"1700000000.000100"}`))
	}))
	defer srv.Close()

	n := NewNotifier(Config{Token: "xoxb-test", ChannelID: "C123", APIURL: srv.URL + "/"}, nil, nil)
	require.True(t, n.PostUpdate(context.Background(), entries))

	assert.Equal(t, "C123", got["channel"])
	assert.Equal(t, DefaultIconEmoji, got["icon_emoji"])
	assert.Equal(t, false, got["unfurl_media"])
	assert.Equal(t, "New GitHub Changelog Updates:\n- Tue, 02 Jan: *<https://github.blog/a|Larger runners>*\n", got["text"])
}

func TestPostUpdateAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"ok":false,"error":"channel_not_found"}`))
	}))
	defer srv.Close()

	core, logs := observer.New(zapcore.DebugLevel)
	n := NewNotifier(Config{Token: "t", ChannelID: "C404", APIURL: srv.URL}, nil, logger.FromZap(zap.New(core)))
	assert.False(t, n.PostUpdate(context.Background(), entries))

	errs := logs.FilterField(zap.String("event", "slack_post_error")).All()
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].ContextMap()["error"], "channel_not_found")
}

func TestPostUpdateHTTPFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	n := NewNotifier(Config{Token: "t", ChannelID: "C1", APIURL: srv.URL}, nil, nil)
	assert.False(t, n.PostUpdate(context.Background(), entries))
}

func TestPostUpdateUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	n := NewNotifier(Config{Token: "t", ChannelID: "C1", APIURL: url}, nil, nil)
	assert.False(t, n.PostUpdate(context.Background(), entries))
}

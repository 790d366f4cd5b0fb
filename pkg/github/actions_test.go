package github

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func zipOf(t *testing.T, files ...[2]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, f := range files {
		w, err := zw.Create(f[0])
		require.NoError(t, err)
		_, err = w.Write([]byte(f[1]))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func newTestClient(t *testing.T, mux *http.ServeMux) *Client {
	t.Helper()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return NewClient(Config{Owner: "octo", Repo: "relay", Workflow: "relay.yml", Token: "ghp_test", APIURL: srv.URL}, nil, nil)
}

func TestArtifactRoundTrip(t *testing.T) {
	archive := zipOf(t, [2]string{"artifact-file.txt", "2024-01-03T18:30:15Z"})

	mux := http.NewServeMux()
	mux.HandleFunc("/repos/octo/relay/actions/workflows/relay.yml/runs", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer ghp_test", r.Header.Get("Authorization"))
		assert.Equal(t, "completed", r.URL.Query().Get("status"))
		_, _ = w.Write([]byte(`{"total_count":2,"workflow_runs":[{"id":42,"status":"completed","conclusion":"success"}]}`))
	})
	mux.HandleFunc("/repos/octo/relay/actions/runs/42/artifacts", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"total_count":1,"artifacts":[{"id":7,"name":"timestamp"}]}`))
	})
	mux.HandleFunc("/repos/octo/relay/actions/artifacts/7/zip", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/zip")
		_, _ = w.Write(archive)
	})
	c := newTestClient(t, mux)
	ctx := context.Background()

	runID, ok, err := c.LatestRunID(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.EqualValues(t, 42, runID)

	artifactID, ok, err := c.FirstArtifactID(ctx, runID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.EqualValues(t, 7, artifactID)

	data, err := c.DownloadArtifact(ctx, artifactID)
	require.NoError(t, err)
	name, text, err := ReadFirstFile(data)
	require.NoError(t, err)
	assert.Equal(t, "artifact-file.txt", name)
	assert.Equal(t, "2024-01-03T18:30:15Z", text)
}

func TestNoRunsNoArtifacts(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/octo/relay/actions/workflows/relay.yml/runs", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"total_count":0,"workflow_runs":[]}`))
	})
	mux.HandleFunc("/repos/octo/relay/actions/runs/1/artifacts", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"total_count":0,"artifacts":[]}`))
	})
	c := newTestClient(t, mux)

	_, ok, err := c.LatestRunID(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = c.FirstArtifactID(context.Background(), 1)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestUnexpectedStatus(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/octo/relay/actions/workflows/relay.yml/runs", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"Bad credentials"}`, http.StatusUnauthorized)
	})
	c := newTestClient(t, mux)

	_, _, err := c.LatestRunID(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnexpectedStatus))
	assert.Contains(t, err.Error(), "Bad credentials")
}

func TestReadFirstFile(t *testing.T) {
	_, _, err := ReadFirstFile([]byte("not a zip"))
	require.Error(t, err)

	_, _, err = ReadFirstFile(zipOf(t))
	assert.True(t, errors.Is(err, ErrEmptyArchive))

	_, _, err = ReadFirstFile(zipOf(t, [2]string{"bin", "\xff\xfe"}))
	require.Error(t, err)

	name, text, err := ReadFirstFile(zipOf(t, [2]string{"a.txt", "first"}, [2]string{"b.txt", "second"}))
	require.NoError(t, err)
	assert.Equal(t, "a.txt", name)
	assert.Equal(t, "first", text)
}

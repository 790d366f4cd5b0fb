package watermark

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/Adda-Baaj/changelog-relay/internal/logger"
)

func TestParse(t *testing.T) {
	want := time.Date(2024, 1, 3, 18, 30, 15, 0, time.UTC)
	cases := map[string]time.Time{
		"2024-01-03T18:30:15Z":             want,
		"2024-01-03T18:30:15+00:00":        want,
		"2024-01-03T20:30:15+02:00":        want,
		"2024-01-03T18:30:15":              want,
		" 2024-01-03T18:30:15\n":           want,
		"\ufeff2024-01-03T18:30:15":        want,
		"2024-01-03 18:30:15":              want,
		"2024-01-03T18:30:15.250000":       want.Add(250 * time.Millisecond),
		"2024-01-03":                       time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC),
		"2024-01-03T18:30":                 time.Date(2024, 1, 3, 18, 30, 0, 0, time.UTC),
		"2024-01-03T18:30:15.000000+00:00": want,
		"2024-01-03 18:30:15+00:00":        want,
		"2024-01-03 20:30:15.000000+02:00": want,
		"2024-01-03T18:30:15+0000":         want,
		"2024-01-03 18:30:15+0000":         want,
	}
	for in, want := range cases {
		got, err := Parse(in)
		require.NoError(t, err, "input %q", in)
		assert.True(t, want.Equal(got), "input %q: got %v want %v", in, got, want)
		assert.Equal(t, time.UTC, got.Location())
	}

	for _, bad := range []string{"", "   ", "yesterday", "03/01/2024"} {
		_, err := Parse(bad)
		assert.Error(t, err, "input %q", bad)
	}
}

func TestFormatRoundTrip(t *testing.T) {
	in := time.Date(2024, 1, 3, 18, 30, 15, 0, time.FixedZone("x", 3600))
	assert.Equal(t, "2024-01-03T17:30:15Z", Format(in))
	got, err := Parse(Format(in))
	require.NoError(t, err)
	assert.True(t, in.Equal(got))
}

func TestDefault(t *testing.T) {
	now := time.Date(2024, 1, 10, 12, 0, 0, 500, time.UTC)
	assert.Equal(t, time.Date(2024, 1, 3, 12, 0, 0, 0, time.UTC), Default(now))
}

func TestFileStore(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state", "artifact-file.txt")
	s := NewFileStore(path)

	_, ok, err := s.Load(ctx)
	require.NoError(t, err)
	assert.False(t, ok, "missing file is reported as absent")

	w := time.Date(2024, 1, 3, 18, 30, 15, 0, time.UTC)
	require.NoError(t, s.Save(ctx, w))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "2024-01-03T18:30:15Z", string(raw))

	got, ok, err := s.Load(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, w.Equal(got))
}

func TestFileStoreCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ts.txt")
	require.NoError(t, os.WriteFile(path, []byte("garbage"), 0o644))

	_, _, err := NewFileStore(path).Load(context.Background())
	require.Error(t, err)
}

func TestNewFileStoreDefault(t *testing.T) {
	assert.Equal(t, DefaultFile, NewFileStore("").Path())
}

type stubSource struct {
	t   time.Time
	ok  bool
	err error
}

func (s stubSource) Name() string { return "stub" }
func (s stubSource) Load(context.Context) (time.Time, bool, error) {
	return s.t, s.ok, s.err
}

func TestLoadOrDefault(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)

	core, logs := observer.New(zapcore.DebugLevel)
	log := logger.FromZap(zap.New(core))

	got, err := LoadOrDefault(ctx, stubSource{}, now, log)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC), got)
	initial := logs.FilterField(zap.String("event", "watermark_initial")).All()
	require.Len(t, initial, 1)
	assert.Equal(t, zapcore.InfoLevel, initial[0].Level)

	stored := time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)
	got, err = LoadOrDefault(ctx, stubSource{t: stored, ok: true}, now, log)
	require.NoError(t, err)
	assert.Equal(t, stored, got)

	boom := errors.New("boom")
	_, err = LoadOrDefault(ctx, stubSource{err: boom}, now, nil)
	assert.ErrorIs(t, err, boom)
}

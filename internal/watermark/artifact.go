package watermark

import (
	"context"
	"fmt"
	"time"

	"github.com/Adda-Baaj/changelog-relay/internal/logger"
	"github.com/Adda-Baaj/changelog-relay/pkg/github"
)

// ArtifactClient is the subset of the Actions API needed to recover the
// previous watermark.
type ArtifactClient interface {
	LatestRunID(ctx context.Context) (int64, bool, error)
	FirstArtifactID(ctx context.Context, runID int64) (int64, bool, error)
	DownloadArtifact(ctx context.Context, artifactID int64) ([]byte, error)
}

// ArtifactSource reads the watermark uploaded by the previous workflow run.
type ArtifactSource struct {
	client ArtifactClient
	log    logger.Logger
}

// NewArtifactSource builds an ArtifactSource.
func NewArtifactSource(client ArtifactClient, log logger.Logger) *ArtifactSource {
	return &ArtifactSource{client: client, log: logger.Ensure(log)}
}

func (s *ArtifactSource) Name() string { return "artifact" }

// Load reports ok=false when there is no completed run or the run carries no
// artifact. Any API failure is returned as an error.
func (s *ArtifactSource) Load(ctx context.Context) (time.Time, bool, error) {
	runID, ok, err := s.client.LatestRunID(ctx)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("latest workflow run: %w", err)
	}
	if !ok {
		s.log.InfoObj("no completed workflow runs found", "artifact_no_runs", nil)
		return time.Time{}, false, nil
	}

	artifactID, ok, err := s.client.FirstArtifactID(ctx, runID)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("artifacts of run %d: %w", runID, err)
	}
	if !ok {
		s.log.InfoObj("no artifacts found for this workflow run", "artifact_missing", map[string]any{
			"run_id": runID,
		})
		return time.Time{}, false, nil
	}

	archive, err := s.client.DownloadArtifact(ctx, artifactID)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("download artifact %d: %w", artifactID, err)
	}

	name, text, err := github.ReadFirstFile(archive)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("artifact %d: %w", artifactID, err)
	}
	s.log.DebugObj("artifact read", "artifact_read", map[string]any{
		"run_id":      runID,
		"artifact_id": artifactID,
		"file":        name,
		"content":     text,
	})

	t, err := Parse(text)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("artifact %d file %s: %w", artifactID, name, err)
	}
	return t, true, nil
}

// Package github reads workflow run artifacts through the GitHub Actions REST
// API.
package github

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/Adda-Baaj/changelog-relay/internal/logger"
	"github.com/Adda-Baaj/changelog-relay/pkg/httpclient"
)

// DefaultAPIURL is the public GitHub REST endpoint.
const DefaultAPIURL = "https://api.github.com"

var (
	// ErrUnexpectedStatus wraps every non-2xx API response.
	ErrUnexpectedStatus = errors.New("unexpected github api status")
	// ErrEmptyArchive is returned when an artifact zip holds no files.
	ErrEmptyArchive = errors.New("artifact archive is empty")
)

// Config identifies the workflow whose artifacts are read.
type Config struct {
	Owner    string
	Repo     string
	Workflow string
	Token    string
	APIURL   string
}

// Client is a narrow Actions API client.
type Client struct {
	cfg    Config
	client httpclient.Client
	log    logger.Logger
}

type workflowRunsResponse struct {
	TotalCount   int           `json:"total_count"`
	WorkflowRuns []workflowRun `json:"workflow_runs"`
}

type workflowRun struct {
	ID         int64  `json:"id"`
	Status     string `json:"status"`
	Conclusion string `json:"conclusion"`
}

type artifactsResponse struct {
	TotalCount int        `json:"total_count"`
	Artifacts  []artifact `json:"artifacts"`
}

type artifact struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Expired bool   `json:"expired"`
}

// NewClient builds a Client.
func NewClient(cfg Config, client httpclient.Client, log logger.Logger) *Client {
	if client == nil {
		client = httpclient.NewRestyClient(httpclient.DefaultTimeout)
	}
	cfg.APIURL = strings.TrimRight(strings.TrimSpace(cfg.APIURL), "/")
	if cfg.APIURL == "" {
		cfg.APIURL = DefaultAPIURL
	}
	return &Client{cfg: cfg, client: client, log: logger.Ensure(log)}
}

func (c *Client) headers() map[string]string {
	return map[string]string{
		"Authorization":        "Bearer " + c.cfg.Token,
		"Accept":               "application/vnd.github+json",
		"X-GitHub-Api-Version": "2022-11-28",
	}
}

func (c *Client) repoURL(parts ...string) string {
	escaped := make([]string, 0, len(parts)+4)
	escaped = append(escaped, c.cfg.APIURL, "repos", url.PathEscape(c.cfg.Owner), url.PathEscape(c.cfg.Repo))
	for _, p := range parts {
		escaped = append(escaped, url.PathEscape(p))
	}
	return strings.Join(escaped, "/")
}

func (c *Client) get(ctx context.Context, endpoint string) ([]byte, error) {
	resp, err := c.client.Get(ctx, endpoint, c.headers())
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", endpoint, err)
	}
	if !httpclient.IsSuccess(resp) {
		return nil, fmt.Errorf("%w: get %s returned status %d body: %s",
			ErrUnexpectedStatus, endpoint, resp.StatusCode(), httpclient.Snippet(resp.Body()))
	}
	return resp.Body(), nil
}

// LatestRunID returns the most recent completed run of the configured
// workflow. ok is false when the workflow has never completed.
func (c *Client) LatestRunID(ctx context.Context) (id int64, ok bool, err error) {
	endpoint := c.repoURL("actions", "workflows", c.cfg.Workflow, "runs") + "?status=completed&per_page=1"
	body, err := c.get(ctx, endpoint)
	if err != nil {
		return 0, false, err
	}

	var runs workflowRunsResponse
	if err := json.Unmarshal(body, &runs); err != nil {
		return 0, false, fmt.Errorf("decode workflow runs: %w", err)
	}
	if len(runs.WorkflowRuns) == 0 {
		return 0, false, nil
	}

	run := runs.WorkflowRuns[0]
	c.log.DebugObj("latest workflow run", "github_latest_run", map[string]any{
		"workflow":   c.cfg.Workflow,
		"run_id":     run.ID,
		"conclusion": run.Conclusion,
	})
	return run.ID, true, nil
}

// FirstArtifactID returns the first artifact attached to runID. ok is false
// when the run has none.
func (c *Client) FirstArtifactID(ctx context.Context, runID int64) (id int64, ok bool, err error) {
	body, err := c.get(ctx, c.repoURL("actions", "runs", fmt.Sprint(runID), "artifacts"))
	if err != nil {
		return 0, false, err
	}

	var list artifactsResponse
	if err := json.Unmarshal(body, &list); err != nil {
		return 0, false, fmt.Errorf("decode run artifacts: %w", err)
	}
	if len(list.Artifacts) == 0 {
		return 0, false, nil
	}

	a := list.Artifacts[0]
	c.log.DebugObj("run artifact found", "github_artifact_found", map[string]any{
		"run_id":      runID,
		"artifact_id": a.ID,
		"name":        a.Name,
		"expired":     a.Expired,
	})
	return a.ID, true, nil
}

// DownloadArtifact returns the zip archive of artifactID.
func (c *Client) DownloadArtifact(ctx context.Context, artifactID int64) ([]byte, error) {
	return c.get(ctx, c.repoURL("actions", "artifacts", fmt.Sprint(artifactID), "zip"))
}

// ReadFirstFile returns the text of the first file stored in a zip archive.
func ReadFirstFile(archive []byte) (name, text string, err error) {
	zr, err := zip.NewReader(bytes.NewReader(archive), int64(len(archive)))
	if err != nil {
		return "", "", fmt.Errorf("open artifact archive: %w", err)
	}

	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", "", fmt.Errorf("open %s: %w", f.Name, err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return "", "", fmt.Errorf("read %s: %w", f.Name, err)
		}
		if !utf8.Valid(data) {
			return "", "", fmt.Errorf("%s is not valid utf-8", f.Name)
		}
		return f.Name, string(data), nil
	}
	return "", "", ErrEmptyArchive
}

// Package config loads relay settings from the environment, an optional .env
// file and an optional YAML file, and validates them once at startup.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/Adda-Baaj/changelog-relay/internal/domain"
	"github.com/Adda-Baaj/changelog-relay/internal/format"
	"github.com/Adda-Baaj/changelog-relay/internal/watermark"
	"github.com/Adda-Baaj/changelog-relay/pkg/feed"
	"github.com/Adda-Baaj/changelog-relay/pkg/github"
	"github.com/Adda-Baaj/changelog-relay/pkg/httpclient"
	"github.com/Adda-Baaj/changelog-relay/pkg/slack"
)

// DefaultEnvFile is read by Load when no other file is named.
const DefaultEnvFile = ".env"

// ErrMissing is matched by errors.Is on a *MissingError.
var ErrMissing = errors.New("required configuration is not set")

// MissingError names every required variable that was empty.
type MissingError struct {
	Vars []string
}

func (e *MissingError) Error() string {
	return fmt.Sprintf("%s: %s", ErrMissing, strings.Join(e.Vars, ", "))
}

func (e *MissingError) Is(target error) bool { return target == ErrMissing }

// Options tune Load.
type Options struct {
	// Local selects local mode: the .env file must exist and the GitHub
	// settings become optional.
	Local bool
	// EnvFile overrides DefaultEnvFile.
	EnvFile string
	// ConfigFile is an optional YAML file whose keys mirror the variable names
	// in lower case.
	ConfigFile string
	// SkipValidation loads the settings without checking the notifier and
	// GitHub variables, for commands that only read local state.
	SkipValidation bool
}

// Config is the validated relay configuration.
type Config struct {
	Mode           domain.RunMode
	FeedURL        string
	TimestampFile  string
	RequestTimeout time.Duration
	LedgerPath     string
	PublishersFile string
	// EnrichPages makes the fan-out scrape each entry page for metadata.
	EnrichPages bool

	Slack  slack.Config
	GitHub github.Config
	Log    LogConfig
}

// LogConfig selects the logger level and encoding.
type LogConfig struct {
	Level  string
	Format string
}

// Local reports whether the relay runs in local mode.
func (c *Config) Local() bool { return c.Mode == domain.ModeLocal }

var keys = []string{
	"slack_token", "channel_id", "slack_icon_emoji", "slack_api_url", "message_header",
	"repo_owner", "repo_name", "workflow_name", "github_token", "github_api_url",
	"feed_url", "timestamp_file", "request_timeout", "ledger_path", "publishers_file",
	"enrich_pages", "log_level", "log_format",
}

// Load assembles a Config. Environment variables take precedence over the
// config file, which takes precedence over defaults.
func Load(opts Options) (*Config, error) {
	if err := loadEnvFile(opts); err != nil {
		return nil, err
	}

	v := viper.New()
	setDefaults(v)
	for _, k := range keys {
		if err := v.BindEnv(k, strings.ToUpper(k)); err != nil {
			return nil, fmt.Errorf("bind %s: %w", k, err)
		}
	}

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", opts.ConfigFile, err)
		}
	}

	timeout, err := parseTimeout(v.GetString("request_timeout"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Mode:           domain.ModeArtifact,
		FeedURL:        strings.TrimSpace(v.GetString("feed_url")),
		TimestampFile:  strings.TrimSpace(v.GetString("timestamp_file")),
		RequestTimeout: timeout,
		LedgerPath:     strings.TrimSpace(v.GetString("ledger_path")),
		PublishersFile: strings.TrimSpace(v.GetString("publishers_file")),
		EnrichPages:    v.GetBool("enrich_pages"),
		Slack: slack.Config{
			Token:     strings.TrimSpace(v.GetString("slack_token")),
			ChannelID: strings.TrimSpace(v.GetString("channel_id")),
			IconEmoji: strings.TrimSpace(v.GetString("slack_icon_emoji")),
			Header:    v.GetString("message_header"),
			APIURL:    strings.TrimSpace(v.GetString("slack_api_url")),
		},
		GitHub: github.Config{
			Owner:    strings.TrimSpace(v.GetString("repo_owner")),
			Repo:     strings.TrimSpace(v.GetString("repo_name")),
			Workflow: strings.TrimSpace(v.GetString("workflow_name")),
			Token:    strings.TrimSpace(v.GetString("github_token")),
			APIURL:   strings.TrimSpace(v.GetString("github_api_url")),
		},
		Log: LogConfig{
			Level:  v.GetString("log_level"),
			Format: v.GetString("log_format"),
		},
	}
	if opts.Local {
		cfg.Mode = domain.ModeLocal
	}

	if opts.SkipValidation {
		return cfg, nil
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("feed_url", feed.DefaultURL)
	v.SetDefault("timestamp_file", watermark.DefaultFile)
	v.SetDefault("request_timeout", httpclient.DefaultTimeout.String())
	v.SetDefault("message_header", format.DefaultHeader)
	v.SetDefault("slack_icon_emoji", slack.DefaultIconEmoji)
	v.SetDefault("slack_api_url", slack.DefaultAPIURL)
	v.SetDefault("github_api_url", github.DefaultAPIURL)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "json")
}

// parseTimeout reads REQUEST_TIMEOUT. A bare integer counts seconds; anything
// else must be a Go duration such as "45s" or "1m".
func parseTimeout(raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return httpclient.DefaultTimeout, nil
	}
	if secs, err := strconv.Atoi(raw); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("REQUEST_TIMEOUT %q is neither whole seconds nor a duration: %w", raw, err)
	}
	return d, nil
}

// loadEnvFile applies the .env file without overriding variables already set
// in the process environment.
func loadEnvFile(opts Options) error {
	path := opts.EnvFile
	if path == "" {
		path = DefaultEnvFile
	}

	err := godotenv.Load(path)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, fs.ErrNotExist) && !opts.Local:
		return nil
	case errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("%s file not found; create it from .env.example and fill in your credentials: %w", path, err)
	default:
		return fmt.Errorf("load %s: %w", path, err)
	}
}

// Validate reports every missing required setting at once.
func (c *Config) Validate() error {
	var missing []string
	add := func(name, val string) {
		if val == "" {
			missing = append(missing, name)
		}
	}

	add("SLACK_TOKEN", c.Slack.Token)
	add("CHANNEL_ID", c.Slack.ChannelID)
	if !c.Local() {
		add("REPO_OWNER", c.GitHub.Owner)
		add("REPO_NAME", c.GitHub.Repo)
		add("WORKFLOW_NAME", c.GitHub.Workflow)
		add("GITHUB_TOKEN", c.GitHub.Token)
	}
	if len(missing) > 0 {
		return &MissingError{Vars: missing}
	}

	if c.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must be positive, got %s", c.RequestTimeout)
	}
	return nil
}

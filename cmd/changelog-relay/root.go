package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Adda-Baaj/changelog-relay/internal/config"
	"github.com/Adda-Baaj/changelog-relay/internal/logger"
)

type rootFlags struct {
	local      bool
	envFile    string
	configFile string
}

func (f rootFlags) options() config.Options {
	return config.Options{Local: f.local, EnvFile: f.envFile, ConfigFile: f.configFile}
}

func newRootCmd() *cobra.Command {
	var flags rootFlags

	root := &cobra.Command{
		Use:   "changelog-relay",
		Short: "Relay new GitHub changelog entries to Slack",
		Long: `changelog-relay fetches the GitHub changelog feed, posts entries newer than
the stored watermark to a Slack channel as one message and then advances the
watermark.

Required environment: SLACK_TOKEN, CHANNEL_ID and, outside --local mode,
REPO_OWNER, REPO_NAME, WORKFLOW_NAME and GITHUB_TOKEN.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(flags.options())
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			return runRelay(cmd.Context(), cfg)
		},
	}

	pf := root.PersistentFlags()
	pf.BoolVar(&flags.local, "local", false, "read and write the watermark from the local timestamp file only")
	pf.StringVar(&flags.envFile, "env-file", config.DefaultEnvFile, "dotenv file to load (required in --local mode)")
	pf.StringVar(&flags.configFile, "config", "", "optional YAML config file")

	root.AddCommand(newHistoryCmd(&flags))
	return root
}

func runRelay(ctx context.Context, cfg *config.Config) error {
	log, err := logger.New(logger.Options{Level: cfg.Log.Level, Format: cfg.Log.Format})
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	app, err := newApp(ctx, cfg, log)
	if err != nil {
		log.ErrorObj("failed to initialise relay", "relay_init_failed", map[string]any{"error": err.Error()})
		return err
	}
	defer app.Close()

	_, err = app.relay.Run(ctx)
	return err
}

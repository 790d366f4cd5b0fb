package main

import (
	"context"

	"github.com/Adda-Baaj/changelog-relay/internal/config"
	"github.com/Adda-Baaj/changelog-relay/internal/crawler"
	"github.com/Adda-Baaj/changelog-relay/internal/ledger"
	"github.com/Adda-Baaj/changelog-relay/internal/logger"
	"github.com/Adda-Baaj/changelog-relay/internal/relay"
	"github.com/Adda-Baaj/changelog-relay/internal/watermark"
	"github.com/Adda-Baaj/changelog-relay/pkg/feed"
	"github.com/Adda-Baaj/changelog-relay/pkg/github"
	"github.com/Adda-Baaj/changelog-relay/pkg/httpclient"
	"github.com/Adda-Baaj/changelog-relay/pkg/publishers"
	"github.com/Adda-Baaj/changelog-relay/pkg/slack"
)

// app owns the wired relay and the resources it must release.
type app struct {
	relay  *relay.Relay
	ledger *ledger.Ledger
	fanout *publishers.Fanout
}

func newApp(ctx context.Context, cfg *config.Config, log logger.Logger) (*app, error) {
	client := httpclient.NewRestyClient(cfg.RequestTimeout)
	store := watermark.NewFileStore(cfg.TimestampFile)

	var source watermark.Source = store
	if !cfg.Local() {
		source = watermark.NewArtifactSource(github.NewClient(cfg.GitHub, client, log), log)
	}

	fetcher := feed.NewFetcher(client, cfg.FeedURL, log)
	a := &app{}
	deps := relay.Deps{
		Mode:     cfg.Mode,
		FeedURL:  fetcher.URL(),
		Source:   source,
		Sink:     store,
		Fetcher:  fetcher,
		Notifier: slack.NewNotifier(cfg.Slack, client, log),
		Log:      log,
	}

	if cfg.LedgerPath != "" {
		l, err := ledger.Open(cfg.LedgerPath)
		if err != nil {
			return nil, err
		}
		a.ledger = l
		deps.Recorder = l
	}

	if cfg.PublishersFile != "" {
		f, err := publishers.LoadFanout(ctx, cfg.PublishersFile, fetcher.URL(), log)
		if err != nil {
			a.Close()
			return nil, err
		}
		if cfg.EnrichPages {
			f.SetEnricher(crawler.NewScraper(client, 0, log))
		}
		a.fanout = f
		deps.Mirror = f
	}

	r, err := relay.New(deps)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.relay = r
	return a, nil
}

// Close releases the ledger and publisher clients.
func (a *app) Close() {
	if a.fanout != nil {
		_ = a.fanout.Close()
	}
	if a.ledger != nil {
		_ = a.ledger.Close()
	}
}

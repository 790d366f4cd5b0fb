package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
	"github.com/spf13/cobra"

	"github.com/Adda-Baaj/changelog-relay/internal/config"
	"github.com/Adda-Baaj/changelog-relay/internal/ledger"
	"github.com/Adda-Baaj/changelog-relay/internal/watermark"
)

var historyHeader = []string{"STARTED", "MODE", "OUTCOME", "FOUND", "DELIVERED", "WATERMARK"}

func newHistoryCmd(flags *rootFlags) *cobra.Command {
	var (
		limit int
		link  string
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent runs recorded in the ledger",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts := flags.options()
			opts.SkipValidation = true
			cfg, err := config.Load(opts)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			if cfg.LedgerPath == "" {
				return errors.New("LEDGER_PATH is not set, no history is recorded")
			}

			l, err := ledger.Open(cfg.LedgerPath)
			if err != nil {
				return err
			}
			defer l.Close()

			if link != "" {
				d, err := l.Delivered(link)
				if errors.Is(err, ledger.ErrNotFound) {
					return fmt.Errorf("%s has not been delivered", link)
				}
				if err != nil {
					return err
				}
				return renderDeliveries(cmd.OutOrStdout(), []ledger.Delivery{d})
			}

			runs, err := l.Runs(limit)
			if err != nil {
				return err
			}
			return renderRuns(cmd.OutOrStdout(), runs)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "number of runs to show (0 shows all)")
	cmd.Flags().StringVar(&link, "link", "", "show when the entry with this link was delivered")
	return cmd
}

var deliveryHeader = []string{"DELIVERED", "PUBLISHED", "TITLE", "LINK"}

func renderDeliveries(w io.Writer, ds []ledger.Delivery) error {
	rows := make([][]string, 0, len(ds))
	for _, d := range ds {
		rows = append(rows, []string{
			watermark.Format(d.DeliveredAt),
			watermark.Format(d.PublishedAt),
			d.Title,
			d.Link,
		})
	}
	return renderTable(w, deliveryHeader, rows)
}

func renderRuns(w io.Writer, runs []ledger.Run) error {
	rows := make([][]string, 0, len(runs))
	for _, r := range runs {
		rows = append(rows, []string{
			watermark.Format(r.StartedAt),
			string(r.Mode),
			string(r.Outcome),
			strconv.Itoa(r.Found),
			strconv.Itoa(r.Delivered),
			watermark.Format(r.Next),
		})
	}
	return renderTable(w, historyHeader, rows)
}

func renderTable(w io.Writer, header []string, rows [][]string) error {
	table := tablewriter.NewTable(w,
		tablewriter.WithConfig(tablewriter.Config{
			Row: tw.CellConfig{
				Formatting: tw.CellFormatting{AutoWrap: tw.WrapNone},
				Alignment:  tw.CellAlignment{Global: tw.AlignLeft},
			},
			Header: tw.CellConfig{
				Alignment: tw.CellAlignment{Global: tw.AlignLeft},
			},
		}),
		tablewriter.WithRendition(tw.Rendition{Borders: tw.BorderNone}),
	)

	table.Header(header)
	if err := table.Bulk(rows); err != nil {
		return err
	}
	return table.Render()
}

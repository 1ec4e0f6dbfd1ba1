package cmd

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/1-icenine/eci-tracker/internal/app"
	"github.com/1-icenine/eci-tracker/internal/config"
	"github.com/1-icenine/eci-tracker/internal/snapshot"
)

// harvester is the part of *app.App the harvest command drives.
type harvester interface {
	Harvest(ctx context.Context, urls []string) (app.Report, error)
	Close() error
}

// newApp is the application factory. It's a variable so tests can
// replace it.
var newApp = func(ctx context.Context, cfg config.Config, logger *zap.Logger) (harvester, error) {
	a, err := app.New(ctx, cfg, logger, app.Deps{})
	if err != nil {
		return nil, err
	}
	return a, nil
}

func newHarvestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "harvest",
		Short: "Harvest signature tables from a list of snapshot URLs",
		Long: `Reads the snapshot URL list, fetches every snapshot with bounded
concurrency and exponential backoff, sweeps the failures once more, then
writes the dataset CSV plus the no-data and exception URL lists.`,
		Args: cobra.NoArgs,
		RunE: runHarvest,
	}
	flags := cmd.Flags()
	flags.StringP("input", "i", "", "snapshot URL list")
	flags.Int("concurrency", 0, "concurrent workers")
	flags.Int("max-attempts", 0, "attempts per URL in the first pass")
	flags.Duration("base-delay", 0, "backoff base delay")
	flags.Int("sweep-attempts", 0, "attempts per URL in the sweep pass")
	flags.String("fetcher", "", fmt.Sprintf("page fetcher: %s, %s or %s",
		config.FetcherHeadless, config.FetcherHTTP, config.FetcherAuto))
	flags.StringP("output", "o", "", "dataset CSV path")
	flags.String("append-from", "", "existing dataset to append to")
	flags.String("status-addr", "", "serve status endpoints on this address")
	bindFlag(flags, "input", "input.url_file")
	bindFlag(flags, "concurrency", "harvest.concurrency")
	bindFlag(flags, "max-attempts", "harvest.max_attempts")
	bindFlag(flags, "base-delay", "harvest.base_delay")
	bindFlag(flags, "sweep-attempts", "harvest.sweep_attempts")
	bindFlag(flags, "fetcher", "fetcher.mode")
	bindFlag(flags, "output", "output.dataset_path")
	bindFlag(flags, "append-from", "output.append_from")
	bindFlag(flags, "status-addr", "status.addr")
	return cmd
}

func runHarvest(cmd *cobra.Command, _ []string) error {
	rt, err := resolveRuntime(cmd.Context())
	if err != nil {
		return err
	}
	urls, err := snapshot.ReadURLList(rt.cfg.Input.URLFile)
	if err != nil {
		return err
	}
	rt.logger.Info("loaded snapshot urls",
		zap.String("file", rt.cfg.Input.URLFile),
		zap.Int("urls", len(urls)),
	)

	h, err := newApp(cmd.Context(), rt.cfg, rt.logger)
	if err != nil {
		return fmt.Errorf("initialize application services: %w", err)
	}
	defer func() {
		if cerr := h.Close(); cerr != nil {
			rt.logger.Warn("failed to close services", zap.Error(cerr))
		}
	}()

	report, err := h.Harvest(cmd.Context(), urls)
	if report.Summary.RunID != "" {
		renderSummary(cmd.OutOrStdout(), report)
	}
	if err != nil {
		return fmt.Errorf("harvest: %w", err)
	}
	return nil
}

func renderSummary(w io.Writer, report app.Report) {
	s := report.Summary
	t := newTable(w, "Harvest "+s.RunID, table.Row{"Metric", "Value"})
	t.AppendRows([]table.Row{
		{"URLs", s.URLs},
		{"Succeeded", s.Succeeded},
		{"No data", s.NoData},
		{"Exceptions", s.Exceptions},
		{"Records", s.Records},
	})
	t.AppendSeparator()
	t.AppendRows([]table.Row{
		{"Dataset", s.DatasetPath},
		{"Dataset rows", report.Written.Rows},
		{"Elapsed", s.FinishedAt.Sub(s.StartedAt).Round(time.Second).String()},
	})
	if s.DatasetURI != "" {
		t.AppendRow(table.Row{"Dataset URI", s.DatasetURI})
	}
	if report.NotifyID != "" {
		t.AppendRow(table.Row{"Notification", report.NotifyID})
	}
	t.Render()
}

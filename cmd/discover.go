package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/1-icenine/eci-tracker/internal/wayback"
)

func newDiscoverCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "discover",
		Short: "List Wayback Machine snapshots of the campaign page",
		Long: `Queries the Wayback Machine CDX API for captures of the target page and
writes their replay URLs, one per line, to a file named after the first and
last capture day.`,
		Args: cobra.NoArgs,
		RunE: runDiscover,
	}
	flags := cmd.Flags()
	flags.String("target", "", "page whose captures are listed")
	flags.String("from", "", "earliest capture day (YYYY-MM-DD)")
	flags.String("to", "", "latest capture day (YYYY-MM-DD)")
	flags.Bool("status-ok", false, "only list captures that returned HTTP 200")
	flags.String("output-dir", "", "directory receiving the URL list")
	bindFlag(flags, "target", "wayback.target_url")
	bindFlag(flags, "from", "wayback.from")
	bindFlag(flags, "to", "wayback.to")
	bindFlag(flags, "status-ok", "wayback.status_ok")
	bindFlag(flags, "output-dir", "wayback.output_dir")
	return cmd
}

func runDiscover(cmd *cobra.Command, _ []string) error {
	rt, err := resolveRuntime(cmd.Context())
	if err != nil {
		return err
	}
	cfg := rt.cfg.Wayback
	window, err := cfg.Window()
	if err != nil {
		return err
	}

	start := time.Now()
	client := wayback.New(wayback.Config{
		BaseURL:   cfg.BaseURL,
		UserAgent: cfg.UserAgent,
		Timeout:   cfg.Timeout,
	}, rt.logger)
	snaps, err := client.Snapshots(cmd.Context(), cfg.TargetURL, wayback.Filter{
		From:     window.From,
		To:       window.To,
		StatusOK: cfg.StatusOK,
	})
	if err != nil {
		return fmt.Errorf("discover snapshots: %w", err)
	}
	path, err := wayback.Save(cfg.OutputDir, snaps)
	if err != nil {
		return fmt.Errorf("save snapshot list: %w", err)
	}
	rt.logger.Info("snapshot list written", zap.String("path", path), zap.Int("snapshots", len(snaps)))

	fmt.Fprintf(cmd.OutOrStdout(), "Saved %d snapshots to '%s'\n", len(snaps), path)
	fmt.Fprintf(cmd.OutOrStdout(), "Time taken: %s\n", time.Since(start).Round(time.Second))
	return nil
}

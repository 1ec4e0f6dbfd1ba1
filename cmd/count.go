package cmd

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/1-icenine/eci-tracker/internal/dataset"
	"github.com/1-icenine/eci-tracker/internal/snapshot"
)

func newCountCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "count [url-file]",
		Short: "Count snapshots per capture day",
		Long: `Counts the snapshot URLs of a list per calendar day (UTC), oldest first,
with a separator between months. URLs without a valid timestamp are skipped.
Defaults to input.url_file.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runCount,
	}
}

func runCount(cmd *cobra.Command, args []string) error {
	rt, err := resolveRuntime(cmd.Context())
	if err != nil {
		return err
	}
	path := rt.cfg.Input.URLFile
	if len(args) == 1 {
		path = args[0]
	}
	urls, err := snapshot.ReadURLList(path)
	if err != nil {
		return err
	}

	counts := dataset.CountByDay(urls)
	t := newTable(cmd.OutOrStdout(), "Snapshots per day", table.Row{"Day", "Snapshots"})
	total := 0
	for i, c := range counts {
		if dataset.NewMonth(counts, i) {
			t.AppendSeparator()
		}
		t.AppendRow(table.Row{c.Label(), c.Count})
		total += c.Count
	}
	t.AppendFooter(table.Row{"Total", total})
	t.Render()
	return nil
}

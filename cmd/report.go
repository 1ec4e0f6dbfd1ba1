package cmd

import (
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/1-icenine/eci-tracker/internal/dataset"
	"github.com/1-icenine/eci-tracker/internal/snapshot"
)

func newReportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Reports over a harvested dataset",
	}
	cmd.PersistentFlags().String("dataset", "", "dataset CSV (defaults to output.dataset_path)")
	cmd.PersistentFlags().String("total-label", "", "entity name of the aggregate row")
	bindFlag(cmd.PersistentFlags(), "dataset", "output.dataset_path")
	bindFlag(cmd.PersistentFlags(), "total-label", "report.total_label")
	cmd.AddCommand(newReportDailyCmd(), newReportThresholdsCmd(), newReportProjectionCmd())
	return cmd
}

func loadDataset(cmd *cobra.Command) (*runtime, []snapshot.Record, error) {
	rt, err := resolveRuntime(cmd.Context())
	if err != nil {
		return nil, nil, err
	}
	records, err := dataset.ReadFile(rt.cfg.Output.DatasetPath)
	if err != nil {
		return nil, nil, err
	}
	return rt, records, nil
}

func newReportDailyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "daily",
		Short: "Total signatures per day and the daily change",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, records, err := loadDataset(cmd)
			if err != nil {
				return err
			}
			days := dataset.DailySignatures(records, rt.cfg.Report.TotalLabel)
			t := newTable(cmd.OutOrStdout(), "Daily signatures", table.Row{"Date", "Total", "Change"})
			for _, d := range days {
				t.AppendRow(table.Row{d.Date.Format(snapshot.DateLayout), d.Total, fmt.Sprintf("%+d", d.Delta)})
			}
			t.Render()
			return nil
		},
	}
}

func newReportThresholdsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "thresholds",
		Short: "First day each country passed its threshold",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, records, err := loadDataset(cmd)
			if err != nil {
				return err
			}
			crossings := dataset.ThresholdCrossings(records, rt.cfg.Report.TotalLabel)
			t := newTable(cmd.OutOrStdout(), "Threshold crossings",
				table.Row{"#", "Country", "Date", "Support", "Threshold"})
			for i, c := range crossings {
				t.AppendRow(table.Row{i + 1, c.Entity, c.Date.Format(snapshot.DateLayout), c.Support, c.Threshold})
			}
			t.AppendFooter(table.Row{"", "Countries", len(crossings)})
			t.Render()
			return nil
		},
	}
}

func newReportProjectionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "projection",
		Short: "Daily pace a country needs to reach its threshold by a deadline",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, records, err := loadDataset(cmd)
			if err != nil {
				return err
			}
			deadline, ok := rt.cfg.Report.DeadlineTime()
			if !ok {
				return fmt.Errorf("report.deadline is required (use --deadline YYYY-MM-DD)")
			}
			p, err := dataset.Project(records, rt.cfg.Report.Entity, deadline)
			if err != nil {
				return err
			}
			renderProjection(cmd, p, deadline)
			return nil
		},
	}
	cmd.Flags().String("entity", "", "country to project")
	cmd.Flags().String("deadline", "", "collection deadline (YYYY-MM-DD)")
	bindFlag(cmd.Flags(), "entity", "report.entity")
	bindFlag(cmd.Flags(), "deadline", "report.deadline")
	return cmd
}

func renderProjection(cmd *cobra.Command, p dataset.Projection, deadline time.Time) {
	t := newTable(cmd.OutOrStdout(), "Projection for "+p.Entity, table.Row{"Metric", "Value"})
	t.AppendRows([]table.Row{
		{"As of", p.AsOf.Format(snapshot.DateLayout)},
		{"Deadline", deadline.Format(snapshot.DateLayout)},
		{"Support", p.Support},
		{"Threshold", p.Threshold},
		{"Remaining", p.Remaining},
		{"Days remaining", p.DaysRemaining},
	})
	t.AppendSeparator()
	needed := "threshold reached"
	switch {
	case p.Remaining > 0 && p.DaysRemaining > 0:
		needed = fmt.Sprintf("%.1f per day", p.DailyNeeded)
	case p.Remaining > 0:
		needed = "deadline passed"
	}
	t.AppendRow(table.Row{"Needed", needed})
	t.Render()
}

package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/1-icenine/eci-tracker/internal/dataset"
	"github.com/1-icenine/eci-tracker/internal/sink"
)

func newFixupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fixup [dataset]",
		Short: "Normalise capture dates and times in a dataset",
		Long: `Rewrites capture_date as YYYY-MM-DD and GMT_capture_time with colons.
Defaults to output.dataset_path and rewrites it in place unless --out is set.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runFixup,
	}
	cmd.Flags().String("out", "", "write the fixed dataset here instead")
	return cmd
}

func runFixup(cmd *cobra.Command, args []string) error {
	rt, err := resolveRuntime(cmd.Context())
	if err != nil {
		return err
	}
	in := rt.cfg.Output.DatasetPath
	if len(args) == 1 {
		in = args[0]
	}
	out, err := cmd.Flags().GetString("out")
	if err != nil {
		return err
	}
	if out == "" {
		out = in
	}

	records, err := dataset.ReadFile(in)
	if err != nil {
		return err
	}
	fixed, changed := dataset.Normalize(records)
	if err := sink.WriteAtomic(out, func(w io.Writer) error {
		return dataset.WriteCSV(w, fixed)
	}); err != nil {
		return fmt.Errorf("write %s: %w", out, err)
	}
	rt.logger.Info("dataset normalized",
		zap.String("input", in),
		zap.String("output", out),
		zap.Int("rows", len(fixed)),
		zap.Int("changed", changed),
	)
	fmt.Fprintf(cmd.OutOrStdout(), "Fixed %d of %d rows, saved to '%s'\n", changed, len(fixed), out)
	return nil
}

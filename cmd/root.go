// Package cmd defines and implements the CLI commands of the harvester.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/1-icenine/eci-tracker/internal/config"
	"github.com/1-icenine/eci-tracker/internal/logging"
)

// configKeyAnnotation marks a flag as an override for a config key.
const configKeyAnnotation = "harvester/config-key"

// appKeyType is the key for storing the runtime in the context.
type appKeyType string

const appKey appKeyType = "app"

// runtime is what every subcommand receives: the loaded configuration and
// a logger built from it.
type runtime struct {
	cfg    config.Config
	logger *zap.Logger
}

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	var cfgFile string
	cmd := &cobra.Command{
		Use:   "harvester",
		Short: "Harvests European Citizens' Initiative signature counts from archived snapshots.",
		Long: `harvester discovers Wayback Machine snapshots of an ECI campaign page,
extracts the per-country signature table from each, and builds a CSV dataset
plus reports over it.`,
		SilenceUsage: true,

		// Loads config and builds the logger before any subcommand runs.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgFile, flagBindings(cmd))
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger, err := logging.New(logging.Options{
				Development: cfg.Logging.Development,
				Level:       cfg.Logging.Level,
			})
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			ctx := context.WithValue(cmd.Context(), appKey, &runtime{cfg: cfg, logger: logger})
			cmd.SetContext(ctx)
			return nil
		},

		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if rt, ok := cmd.Context().Value(appKey).(*runtime); ok && rt != nil {
				_ = rt.logger.Sync()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML)")
	cmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	bindFlag(cmd.PersistentFlags(), "log-level", "logging.level")

	cmd.AddCommand(
		newHarvestCmd(),
		newDiscoverCmd(),
		newCountCmd(),
		newFixupCmd(),
		newReportCmd(),
	)
	return cmd
}

// bindFlag annotates flag name so it overrides key when set.
func bindFlag(flags *pflag.FlagSet, name, key string) {
	if err := flags.SetAnnotation(name, configKeyAnnotation, []string{key}); err != nil {
		panic(fmt.Sprintf("bind flag %s: %v", name, err))
	}
}

// flagBindings collects the annotated flags visible to cmd.
func flagBindings(cmd *cobra.Command) map[string]*pflag.Flag {
	bindings := map[string]*pflag.Flag{}
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if keys := f.Annotations[configKeyAnnotation]; len(keys) == 1 {
			bindings[keys[0]] = f
		}
	})
	return bindings
}

func resolveRuntime(ctx context.Context) (*runtime, error) {
	rt, ok := ctx.Value(appKey).(*runtime)
	if !ok || rt == nil {
		return nil, errors.New("runtime not initialized")
	}
	return rt, nil
}

// Execute is the main entry point. SIGINT and SIGTERM cancel the command's
// context.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

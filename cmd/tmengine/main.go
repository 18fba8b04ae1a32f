// Package main provides the tmengine CLI entry point.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/orneryd/tmengine/pkg/config"
	"github.com/orneryd/tmengine/pkg/logging"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "tmengine",
		Short: "tmengine - in-memory Topic Maps engine",
		Long: `tmengine loads topic maps written as YAML fixtures into an in-memory
ISO 13250-2 engine that merges topics by identity, removes duplicate
characteristics and maintains type-instance and scoped indices.

Configuration is read from --config (YAML) and TMENGINE_* environment
variables.`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().String("config", "", "Configuration file (YAML)")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "tmengine v%s (%s)\n", version, commit)
		},
	})

	loadCmd := &cobra.Command{
		Use:   "load <files...>",
		Short: "Load fixture files and print their statistics",
		Long: `Load one or more fixture files, each into its own topic map, in parallel.
With --into every loaded map is merged into a single topic map with the
given base locator.`,
		Args: cobra.MinimumNArgs(1),
		RunE: runLoad,
	}
	loadCmd.Flags().String("into", "", "Merge all loaded maps into a topic map with this base locator")
	rootCmd.AddCommand(loadCmd)

	rootCmd.AddCommand(&cobra.Command{
		Use:   "stats <file>",
		Short: "Load one fixture file and print its index statistics",
		Args:  cobra.ExactArgs(1),
		RunE:  runStats,
	})

	return rootCmd
}

// setup loads the configuration named by --config and builds the logger.
func setup(cmd *cobra.Command) (*config.Config, *zap.Logger, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}
	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, nil, fmt.Errorf("creating logger: %w", err)
	}
	logger.Debug("configuration loaded", zap.Stringer("config", cfg))
	return cfg, logger, nil
}

package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/aretw0/escrow/internal/cli"
	"github.com/aretw0/escrow/internal/config"
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "escrow",
		Short: "Escrow tracks real estate closings from accepted offer to keys",
		Long: `Escrow moves each closing transaction through a fixed pipeline of stages,
advancing automatically when the checklist tasks gating the current stage are done.`,
		SilenceUsage: true,
	}

	// Persistent flags (available to all commands)
	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "Path to a YAML config file")
	flags.String("log-level", "info", "Log level (debug, info, warn, error)")
	flags.String("log-format", "text", "Log format (text, json)")
	flags.String("store", config.DriverMemory, "Store driver (memory, redis, postgres)")
	flags.String("redis-addr", "localhost:6379", "Redis address for the redis store and locking")
	flags.String("postgres-dsn", "", "PostgreSQL connection string for the postgres store")
	flags.String("user", "user-1", "Account the commands act for")
	flags.Bool("lock", false, "Serialize stage advancement across replicas with a Redis lock")

	rootCmd.AddCommand(
		newServeCmd(),
		newStagesCmd(),
		newGraphCmd(),
		newAdvanceCmd(),
		newTimelineCmd(),
		newVersionCmd(),
	)
	return rootCmd
}

// Execute builds the command tree and runs it.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig applies --config, ESCROW_* variables and changed flags, in that order.
func loadConfig(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path, cmd.Flags())
	if err != nil {
		return nil, nil, fmt.Errorf("error loading config: %w", err)
	}
	logger, err := cli.NewLogger(cfg)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

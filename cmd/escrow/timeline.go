package main

import (
	"fmt"
	"os"

	"github.com/aretw0/escrow/internal/cli"
	"github.com/aretw0/escrow/internal/presentation/tui"
	"github.com/spf13/cobra"
)

func newTimelineCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "timeline <transaction-id>",
		Short: "Show a transaction's progress through the pipeline",
		Long:  `Loads a transaction from the configured store and prints its stage timeline and checklist.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			cfg.Metrics.Enabled = false

			rt, err := cli.Build(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer rt.Close()

			tl, err := rt.Service.Timeline(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("error loading transaction %s: %w", args[0], err)
			}

			out, err := tui.NewRenderer(os.Stdout)(tui.RenderTimeline(tl))
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), out)
			return nil
		},
	}
}

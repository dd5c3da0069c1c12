package main

import (
	"fmt"

	"github.com/aretw0/escrow/internal/presentation/graph"
	"github.com/aretw0/escrow/pkg/domain"
	"github.com/aretw0/escrow/pkg/stages"
	"github.com/spf13/cobra"
)

func newGraphCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Export the stage pipeline visualization",
		Long:  `Outputs a Mermaid diagram (graph LR) of the stage pipeline, optionally highlighting a current stage.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			catalog := stages.Default()

			var overlay *graph.GraphOverlay
			current, _ := cmd.Flags().GetString("current")
			if current != "" {
				id := domain.StageID(current)
				if !catalog.IsValid(id) {
					return fmt.Errorf("%q: %w", current, domain.ErrInvalidStage)
				}
				overlay = &graph.GraphOverlay{CurrentStage: id}
				for _, def := range catalog.Completed(id) {
					overlay.CompletedStages = append(overlay.CompletedStages, def.ID)
				}
			}

			fmt.Fprint(cmd.OutOrStdout(), graph.GenerateMermaid(catalog.All(), overlay))
			return nil
		},
	}
	cmd.Flags().String("current", "", "Stage to highlight as current")
	return cmd
}

package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/aretw0/escrow/internal/presentation/tui"
	"github.com/aretw0/escrow/pkg/stages"
	"github.com/spf13/cobra"
)

func newStagesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stages",
		Short: "List the closing pipeline",
		Long:  `Prints every stage in order with the task titles that gate it.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			catalog := stages.Default()

			check, _ := cmd.Flags().GetBool("check")
			if check {
				if err := catalog.Validate(); err != nil {
					return fmt.Errorf("stage catalog is invalid: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "✓ Stage catalog is valid (%d stages)\n", catalog.Len())
				return nil
			}

			var sb strings.Builder
			sb.WriteString("# Closing Pipeline\n\n")
			for i, def := range catalog.All() {
				fmt.Fprintf(&sb, "## %d. %s (`%s`)\n\n%s\n\n", i+1, def.Label, def.ID, def.Description)
				for _, title := range def.RequiredTaskTitles {
					fmt.Fprintf(&sb, "- %s\n", title)
				}
				if !def.AutoAdvanceOnComplete {
					sb.WriteString("\n_Terminal stage._\n")
				}
				sb.WriteString("\n")
			}

			out, err := tui.NewRenderer(os.Stdout)(sb.String())
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), out)
			return nil
		},
	}
	cmd.Flags().Bool("check", false, "Validate the catalog and exit")
	return cmd
}

package main

import (
	"fmt"
	"os"

	"github.com/aretw0/escrow/internal/presentation/tui"
	"github.com/aretw0/escrow/pkg/domain"
	"github.com/aretw0/escrow/pkg/stages"
	"github.com/spf13/cobra"
)

func newAdvanceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "advance",
		Short: "Check whether a stage would advance",
		Long: `Evaluates the auto-advance rule offline: given the current stage and the titles
of completed tasks, prints the stage the transaction would move to, if any.`,
		Example: `  escrow advance --stage under_contract --done "Send Earnest Money Deposit"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			stage, _ := cmd.Flags().GetString("stage")
			done, _ := cmd.Flags().GetStringArray("done")

			current := domain.StageID(stage)
			if !stages.IsValid(current) {
				return fmt.Errorf("%q: %w", stage, domain.ErrInvalidStage)
			}

			tasks := make([]domain.TaskState, 0, len(done))
			for _, title := range done {
				tasks = append(tasks, domain.TaskState{Title: title, Completed: true})
			}

			next, ok := stages.ShouldAutoAdvance(current, tasks)
			def, _ := stages.Definition(current)
			progress := stages.StageProgress(def, tasks)

			out, err := tui.NewRenderer(os.Stdout)(tui.RenderDecision(current, next, ok, progress))
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), out)
			return nil
		},
	}
	cmd.Flags().String("stage", string(domain.StageUnderContract), "Current stage")
	cmd.Flags().StringArray("done", nil, "Title of a completed task (repeatable)")
	return cmd
}

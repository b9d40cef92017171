package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

// AddPlanCommand adds the plan command to the root command.
func AddPlanCommand(root *cobra.Command) {
	root.AddCommand(newPlanCmd())
}

func newPlanCmd() *cobra.Command {
	var modelID string

	cmd := &cobra.Command{
		Use:   "plan <task-id>",
		Short: "Generate an execution plan",
		Long: `Generate a plan for a task in planning. Plan text streams to stdout as the
model produces it; the completed plan is persisted and the task advances to
awaiting approval.

If generation fails partway, the task stays in planning and the command can
be rerun. Re-running after approval was already possible regenerates nothing;
use a fresh task instead.

Examples:
  overture plan task-1234
  overture plan task-1234 --model claude-sonnet-4-20250514`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlan(cmd.Context(), cmd, os.Stdout, args[0], modelID)
		},
	}

	cmd.Flags().StringVar(&modelID, "model", "", "model ID (default: deployment default)")
	return cmd
}

func runPlan(ctx context.Context, cmd *cobra.Command, w io.Writer, taskID, modelID string) error {
	logger := GetLogger()
	outputFormat := cmd.Flag("output").Value.String()

	rt, err := newRuntime(ctx, logger)
	if err != nil {
		return err
	}
	defer rt.close()

	// Text mode streams fragments as they arrive; JSON mode stays quiet
	// until the final task document.
	var onFragment func(string)
	if outputFormat == OutputText {
		onFragment = func(fragment string) {
			fmt.Fprint(w, fragment)
		}
	}

	task, err := rt.engine.GeneratePlan(ctx, taskID, modelID, onFragment)
	if err != nil {
		return err
	}

	if outputFormat == OutputJSON {
		return printJSON(w, task)
	}

	fmt.Fprintf(w, "\n\nPlan version %d saved.\n", task.PlanVersion)
	fmt.Fprintf(w, "Next: overture approve %s\n", task.ID)
	return nil
}

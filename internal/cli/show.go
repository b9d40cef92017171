package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

// AddShowCommand adds the show command to the root command.
func AddShowCommand(root *cobra.Command) {
	root.AddCommand(newShowCmd())
}

func newShowCmd() *cobra.Command {
	var withPlan bool

	cmd := &cobra.Command{
		Use:   "show <task-id>",
		Short: "Show a task's state and timeline",
		Long: `Display a task's current status, metadata, and audit timeline.

Examples:
  overture show task-1234
  overture show task-1234 --plan    # include the full plan text
  overture show -o json task-1234`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShow(cmd.Context(), cmd, os.Stdout, args[0], withPlan)
		},
	}

	cmd.Flags().BoolVar(&withPlan, "plan", false, "include the full plan text")
	return cmd
}

func runShow(ctx context.Context, cmd *cobra.Command, w io.Writer, taskID string, withPlan bool) error {
	logger := GetLogger()
	outputFormat := cmd.Flag("output").Value.String()

	rt, err := newRuntime(ctx, logger)
	if err != nil {
		return err
	}
	defer rt.close()

	task, err := rt.engine.Get(ctx, taskID)
	if err != nil {
		return err
	}

	if outputFormat == OutputJSON {
		return printJSON(w, task)
	}

	if err := printTask(w, task, outputFormat); err != nil {
		return err
	}
	printTimeline(w, task.Timeline)
	if withPlan && task.Plan != "" {
		fmt.Fprintf(w, "\nPlan (version %d):\n%s\n", task.PlanVersion, task.Plan)
	}
	return nil
}

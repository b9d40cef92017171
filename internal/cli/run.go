package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

// AddRunCommand adds the run command to the root command.
func AddRunCommand(root *cobra.Command) {
	root.AddCommand(newRunCmd())
}

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <task-id>",
		Short: "Execute the approved plan",
		Long: `Execute a task whose plan has been approved. The result and execution log
are persisted on the task; success completes it, failure records the error
and fails it.

Examples:
  overture run task-1234
  overture run -o json task-1234`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRun(cmd.Context(), cmd, os.Stdout, args[0])
		},
	}
	return cmd
}

func runRun(ctx context.Context, cmd *cobra.Command, w io.Writer, taskID string) error {
	logger := GetLogger()
	outputFormat := cmd.Flag("output").Value.String()

	rt, err := newRuntime(ctx, logger)
	if err != nil {
		return err
	}
	defer rt.close()

	task, err := rt.engine.Execute(ctx, taskID)
	if err != nil {
		return err
	}

	if outputFormat == OutputJSON {
		return printJSON(w, task)
	}

	fmt.Fprintf(w, "Task %s completed.\n\n", task.ID)
	fmt.Fprintln(w, task.Result)
	return nil
}

package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

// AddApproveCommand adds the approve command to the root command.
func AddApproveCommand(root *cobra.Command) {
	root.AddCommand(newApproveCmd())
}

func newApproveCmd() *cobra.Command {
	var approvedBy string

	cmd := &cobra.Command{
		Use:   "approve <task-id>",
		Short: "Approve the generated plan",
		Long: `Approve a task's plan and advance it to executing. This is the mandatory
human gate: nothing executes without it, and no automatic path skips it.

Examples:
  overture approve task-1234
  overture approve task-1234 --by reviewer@acme.com`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApprove(cmd.Context(), cmd, os.Stdout, args[0], approvedBy)
		},
	}

	cmd.Flags().StringVar(&approvedBy, "by", defaultUserID(), "identity recorded as the approver")
	return cmd
}

func runApprove(ctx context.Context, cmd *cobra.Command, w io.Writer, taskID, approvedBy string) error {
	logger := GetLogger()
	outputFormat := cmd.Flag("output").Value.String()

	rt, err := newRuntime(ctx, logger)
	if err != nil {
		return err
	}
	defer rt.close()

	task, err := rt.engine.Approve(ctx, taskID, approvedBy)
	if err != nil {
		return err
	}

	if err := printTask(w, task, outputFormat); err != nil {
		return err
	}
	if outputFormat == OutputText {
		fmt.Fprintf(w, "\nNext: overture run %s\n", task.ID)
	}
	return nil
}

package cli

import (
	"context"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/overture-dev/overture/internal/constants"
	"github.com/overture-dev/overture/internal/domain"
)

// AddListCommand adds the list command to the root command.
func AddListCommand(root *cobra.Command) {
	root.AddCommand(newListCmd())
}

func newListCmd() *cobra.Command {
	var status string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks",
		Long: `List all tasks, newest first.

Examples:
  overture list
  overture list --status awaiting_approval
  overture list -o json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runList(cmd.Context(), cmd, os.Stdout, status)
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "filter by task status")
	return cmd
}

func runList(ctx context.Context, cmd *cobra.Command, w io.Writer, status string) error {
	logger := GetLogger()
	outputFormat := cmd.Flag("output").Value.String()

	rt, err := newRuntime(ctx, logger)
	if err != nil {
		return err
	}
	defer rt.close()

	tasks, err := rt.engine.List(ctx)
	if err != nil {
		return err
	}

	if status != "" {
		filtered := make([]*domain.Task, 0, len(tasks))
		for _, task := range tasks {
			if task.Status == constants.TaskStatus(status) {
				filtered = append(filtered, task)
			}
		}
		tasks = filtered
	}

	return printTaskList(w, tasks, outputFormat)
}

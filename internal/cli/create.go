package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/overture-dev/overture/internal/quota"
)

// AddCreateCommand adds the create command to the root command.
func AddCreateCommand(root *cobra.Command) {
	root.AddCommand(newCreateCmd())
}

func newCreateCmd() *cobra.Command {
	var userID string

	cmd := &cobra.Command{
		Use:   "create <repo-url>",
		Short: "Create a task and analyze the repository",
		Long: `Create a task for a repository and run it through sandboxed analysis.

The repository is cloned inside an isolated container and profiled; the
resulting summary is saved on the task. On success the task awaits an
action (overture action). Creation counts against the user's daily quota.

Examples:
  overture create https://github.com/acme/shop
  overture create https://github.com/acme/shop --user user-42
  overture create -o json https://github.com/acme/shop`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCreate(cmd.Context(), cmd, os.Stdout, args[0], userID)
		},
	}

	cmd.Flags().StringVar(&userID, "user", defaultUserID(), "user ID for quota and usage accounting")
	return cmd
}

func runCreate(ctx context.Context, cmd *cobra.Command, w io.Writer, repoURL, userID string) error {
	logger := GetLogger()
	outputFormat := cmd.Flag("output").Value.String()

	rt, err := newRuntime(ctx, logger)
	if err != nil {
		return err
	}
	defer rt.close()

	task, err := rt.engine.Create(ctx, repoURL, userID)
	if err != nil {
		var exceeded *quota.ExceededError
		if errors.As(err, &exceeded) {
			fmt.Fprintf(w, "Daily task limit reached: %d of %d used. Quota resets at %s.\n",
				exceeded.Used, exceeded.Limit, exceeded.ResetAt.Format("15:04 MST"))
		}
		return err
	}

	if err := printTask(w, task, outputFormat); err != nil {
		return err
	}
	if outputFormat == OutputText {
		fmt.Fprintf(w, "\nNext: overture action %s <FIX_ISSUE|IMPLEMENT_FEATURE|REVIEW_PR|REFACTOR_CODE>\n", task.ID)
	}
	return nil
}

// defaultUserID derives a stable per-machine user ID when none is given.
func defaultUserID() string {
	if user := os.Getenv("OVERTURE_USER"); user != "" {
		return user
	}
	if user := os.Getenv("USER"); user != "" {
		return user
	}
	return "default"
}

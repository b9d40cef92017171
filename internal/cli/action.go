package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/overture-dev/overture/internal/constants"
	overtureerrors "github.com/overture-dev/overture/internal/errors"
)

// AddActionCommand adds the action command to the root command.
func AddActionCommand(root *cobra.Command) {
	root.AddCommand(newActionCmd())
}

func newActionCmd() *cobra.Command {
	var inputs []string

	cmd := &cobra.Command{
		Use:   "action <task-id> <action>",
		Short: "Choose what to do with an analyzed repository",
		Long: `Set the workflow action for a task awaiting one. The action is immutable
once set; the task advances to planning.

Actions: FIX_ISSUE, IMPLEMENT_FEATURE, REVIEW_PR, REFACTOR_CODE

Structured details are passed as repeated --input key=value pairs and become
part of the plan prompt.

Examples:
  overture action task-1234 FIX_ISSUE --input issue=1423 --input severity=high
  overture action task-1234 IMPLEMENT_FEATURE --input description="dark mode"`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAction(cmd.Context(), cmd, os.Stdout, args[0], args[1], inputs)
		},
	}

	cmd.Flags().StringArrayVar(&inputs, "input", nil, "action detail as key=value (repeatable)")
	return cmd
}

func runAction(ctx context.Context, cmd *cobra.Command, w io.Writer, taskID, actionName string, inputs []string) error {
	logger := GetLogger()
	outputFormat := cmd.Flag("output").Value.String()

	userInput, err := parseInputPairs(inputs)
	if err != nil {
		return err
	}

	rt, err := newRuntime(ctx, logger)
	if err != nil {
		return err
	}
	defer rt.close()

	task, err := rt.engine.SetAction(ctx, taskID, constants.Action(actionName), userInput)
	if err != nil {
		return err
	}

	if err := printTask(w, task, outputFormat); err != nil {
		return err
	}
	if outputFormat == OutputText {
		fmt.Fprintf(w, "\nNext: overture plan %s\n", task.ID)
	}
	return nil
}

// parseInputPairs converts repeated key=value flags into the user input map.
func parseInputPairs(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}

	userInput := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, value, found := strings.Cut(pair, "=")
		if !found || strings.TrimSpace(key) == "" {
			return nil, fmt.Errorf("%w: input %q must be key=value", overtureerrors.ErrEmptyValue, pair)
		}
		userInput[strings.TrimSpace(key)] = value
	}
	return userInput, nil
}

package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/overture-dev/overture/internal/config"
)

// AddInitCommand adds the init command to the root command.
func AddInitCommand(root *cobra.Command) {
	root.AddCommand(newInitCmd())
}

func newInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create the default configuration file",
		Long: `Write the default Overture configuration to ~/.overture/config.yaml.

The file documents every setting with its default value. Settings can be
overridden per project in .overture/config.yaml or via OVERTURE_* environment
variables.

Examples:
  overture init
  overture init --force   # overwrite an existing config`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runInit(cmd.Context(), os.Stdout, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing config file")
	return cmd
}

func runInit(ctx context.Context, w io.Writer, force bool) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	path, err := config.GlobalConfigPath()
	if err != nil {
		return err
	}

	if _, err := os.Stat(path); err == nil && !force {
		fmt.Fprintf(w, "Config already exists at %s (use --force to overwrite)\n", path)
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	rendered, err := config.RenderYAML(config.DefaultConfig())
	if err != nil {
		return err
	}

	if err := os.WriteFile(path, rendered, 0o600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	fmt.Fprintf(w, "Wrote default config to %s\n", path)
	return nil
}

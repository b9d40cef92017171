// Package main provides the entry point for the overture CLI.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/overture-dev/overture/internal/cli"
)

// Build information set via ldflags.
var (
	version = "dev"     //nolint:gochecknoglobals // Set by ldflags
	commit  = "none"    //nolint:gochecknoglobals // Set by ldflags
	date    = "unknown" //nolint:gochecknoglobals // Set by ldflags
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := cli.Execute(ctx, cli.BuildInfo{
		Version: version,
		Commit:  commit,
		Date:    date,
	})
	if err != nil {
		os.Exit(cli.ExitCodeForError(err))
	}
}

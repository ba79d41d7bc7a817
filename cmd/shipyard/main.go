// Package main provides the shipyard CLI entrypoint.
//
// Usage:
//
//	shipyard <command> [options]
//
// Exit codes for `deploy` and `upload`:
//   - 0: success
//   - 1: config, usage or unexpected error
//   - 2: archive failure
//   - 3: upload failure
//   - 4: version resolution failure
package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/shipyard/cli/cmd"
	"github.com/pithecene-io/shipyard/types"
)

// Commit is set via ldflags at build time.
var commit = "unknown"

var (
	osExit           = os.Exit
	stderr io.Writer = os.Stderr
)

func main() {
	app := &cli.App{
		Name:           "shipyard",
		Usage:          "Package a web game build and ship it to the intake endpoint",
		Version:        fmt.Sprintf("%s (commit: %s)", types.Version, commit),
		ExitErrHandler: exitErrHandler,
		Commands: []*cli.Command{
			cmd.DeployCommand(),
			cmd.UploadCommand(),
			cmd.NextVersionCommand(),
			cmd.PatchCommand(),
			cmd.ReportCommand(),
			cmd.VersionCommand(commit),
		},
	}

	if err := app.Run(os.Args); err != nil {
		// ExitErrHandler already handled the exit for cli.ExitCoder errors.
		// This branch handles unexpected errors that weren't wrapped.
		os.Exit(1)
	}
}

// exitErrHandler handles errors from the CLI, preserving exit codes from cli.Exit().
func exitErrHandler(_ *cli.Context, err error) {
	if err == nil {
		return
	}

	// Check for ExitCoder (from cli.Exit), handles wrapped errors
	var exitCoder cli.ExitCoder
	if errors.As(err, &exitCoder) {
		code := exitCoder.ExitCode()
		msg := exitCoder.Error()

		// cli.Exit("", N).Error() may render as "exit status N"; skip those
		if msg != "" && msg != fmt.Sprintf("exit status %d", code) {
			_, _ = fmt.Fprintln(stderr, msg)
		}
		osExit(code)
		return
	}

	_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
	osExit(1)
}

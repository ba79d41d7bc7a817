package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/pithecene-io/shipyard/deploy"
	"github.com/pithecene-io/shipyard/types"
)

// Exit codes for deploy and upload.
const (
	exitSuccess        = 0
	exitConfigError    = 1
	exitArchiveFailure = 2
	exitUploadFailure  = 3
	exitVersionFailure = 4
)

// exitCodeFor maps a pipeline error to a process exit code.
func exitCodeFor(err error) int {
	if err == nil {
		return exitSuccess
	}
	var se *deploy.StageError
	if !errors.As(err, &se) {
		return exitConfigError
	}
	return exitCodeForStage(se.Stage)
}

// exitCodeForStage maps the stage a run failed in to an exit code.
// An empty stage means the run succeeded.
func exitCodeForStage(stage types.Stage) int {
	switch stage {
	case "":
		return exitSuccess
	case types.StageArchive:
		return exitArchiveFailure
	case types.StageUpload:
		return exitUploadFailure
	case types.StageVersion:
		return exitVersionFailure
	default:
		return exitConfigError
	}
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()
	return ctx, cancel
}

// fileExists reports whether path names an existing file.
func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

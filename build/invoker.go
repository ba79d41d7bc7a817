// Package build invokes the external game build tool.
//
// The builder is known to report non-zero exit statuses for builds that
// actually succeeded, so its status is advisory: a failing build is
// logged and recorded in the stage outcome but never stops the run.
package build

import (
	"context"
	"fmt"
	"time"

	"github.com/pithecene-io/shipyard/log"
	"github.com/pithecene-io/shipyard/process"
	"github.com/pithecene-io/shipyard/types"
)

// DefaultArgs is the argument template used when none is configured.
var DefaultArgs = []string{"--project", "{project}", "--platform", "{platform}", "--debug", "false"}

// stderrTail bounds how much tool output ends up in an outcome message.
const stderrTail = 512

// Config configures the build invocation.
type Config struct {
	// Tool is the build executable.
	Tool string
	// Project is substituted for {project}.
	Project string
	// Platform is substituted for {platform}.
	Platform string
	// OutputDir is substituted for {output}.
	OutputDir string
	// Args is the argument template. Nil uses DefaultArgs.
	Args []string
	// Dir is the working directory for the tool.
	Dir string
	// Timeout bounds the build. Zero means unbounded.
	Timeout time.Duration
}

// Invoker runs the build tool once per deploy.
type Invoker struct {
	config Config
	runner process.Runner
	logger *log.Logger
}

// NewInvoker creates an Invoker. A nil logger discards output.
func NewInvoker(cfg Config, runner process.Runner, logger *log.Logger) *Invoker {
	if logger == nil {
		logger = log.Nop()
	}
	return &Invoker{config: cfg, runner: runner, logger: logger}
}

// Command returns the fully expanded build command.
func (i *Invoker) Command() process.Command {
	tmpl := i.config.Args
	if tmpl == nil {
		tmpl = DefaultArgs
	}
	return process.Command{
		Name: i.config.Tool,
		Args: process.ExpandArgs(tmpl, map[string]string{
			"project":  i.config.Project,
			"platform": i.config.Platform,
			"output":   i.config.OutputDir,
		}),
		Dir:     i.config.Dir,
		Timeout: i.config.Timeout,
	}
}

// Run invokes the builder and waits for it. The returned outcome is ok
// on exit status 0 and advisory otherwise; it is never failed.
func (i *Invoker) Run(ctx context.Context) types.StageOutcome {
	cmd := i.Command()
	start := time.Now()

	i.logger.Info("build started", map[string]any{"command": cmd.String()})

	res, err := i.runner.Run(ctx, cmd)
	outcome := types.Outcome(types.StageBuild, "", types.StatusOK, "build completed")
	switch {
	case err != nil:
		outcome.Status = types.StatusAdvisory
		outcome.Message = fmt.Sprintf("build tool did not run: %v", err)
		i.logger.Warn("build tool did not run, continuing", map[string]any{"error": err})
	case !res.Success():
		outcome.Status = types.StatusAdvisory
		outcome.Message = fmt.Sprintf("build exited with status %d", res.ExitCode)
		if tail := process.Tail(res.Stderr, stderrTail); tail != "" {
			outcome.Message += ": " + tail
		}
		i.logger.Warn("build exited non-zero, continuing", map[string]any{
			"exit_code": res.ExitCode,
			"stderr":    process.Tail(res.Stderr, stderrTail),
		})
	default:
		i.logger.Info("build completed", map[string]any{"duration_ms": res.Duration.Milliseconds()})
	}

	outcome.Duration = time.Since(start)
	return outcome
}

// Package process runs external tools (the game builder, the image
// compressor, git) and reports their exit status without interpreting it.
//
// A non-zero exit is not an error at this layer: callers decide whether
// the status is advisory or fatal. Run only returns an error when the
// process could not be started or waited on.
package process

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"
)

// Command describes one external invocation.
type Command struct {
	// Name is the executable path or name resolved via PATH.
	Name string
	// Args are the arguments, already expanded.
	Args []string
	// Dir is the working directory. Empty means the current directory.
	Dir string
	// Env holds extra KEY=VALUE entries appended to the inherited environment.
	Env []string
	// Timeout bounds the invocation. Zero means no timeout beyond ctx.
	Timeout time.Duration
}

// String renders the command line for logs.
func (c Command) String() string {
	if len(c.Args) == 0 {
		return c.Name
	}
	return c.Name + " " + strings.Join(c.Args, " ")
}

// Result is the outcome of a finished process.
type Result struct {
	// ExitCode is the process exit code, or -1 when killed by a signal.
	ExitCode int
	// Stdout is the captured standard output.
	Stdout []byte
	// Stderr is the captured standard error.
	Stderr []byte
	// Duration is the wall time from start to exit.
	Duration time.Duration
}

// Success reports whether the process exited with status 0.
func (r *Result) Success() bool {
	return r != nil && r.ExitCode == 0
}

// Runner runs external commands. Tests substitute a fake.
type Runner interface {
	Run(ctx context.Context, cmd Command) (*Result, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

// NewExecRunner returns the production Runner.
func NewExecRunner() *ExecRunner {
	return &ExecRunner{}
}

// Run starts the command, waits for it and captures both output streams.
func (ExecRunner) Run(ctx context.Context, c Command) (*Result, error) {
	if c.Name == "" {
		return nil, errors.New("process: empty command name")
	}

	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	cmd.Dir = c.Dir
	if len(c.Env) > 0 {
		cmd.Env = deduplicateEnv(append(os.Environ(), c.Env...))
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	result := &Result{
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
		Duration: time.Since(start),
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
			return result, nil
		}
		return nil, fmt.Errorf("run %s: %w", c.Name, err)
	}

	return result, nil
}

// ExpandArgs substitutes {name} placeholders in each template argument
// with vars[name]. Unknown placeholders are left untouched so that
// literal braces in tool arguments survive.
func ExpandArgs(template []string, vars map[string]string) []string {
	out := make([]string, len(template))
	for i, arg := range template {
		for k, v := range vars {
			arg = strings.ReplaceAll(arg, "{"+k+"}", v)
		}
		out[i] = arg
	}
	return out
}

// Tail returns the last n bytes of output as trimmed text, prefixed with
// an ellipsis when truncated. Used to keep log lines and report messages
// readable when a tool dumps pages of diagnostics.
func Tail(b []byte, n int) string {
	s := strings.TrimSpace(string(b))
	if n <= 0 || len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}

// deduplicateEnv keeps the last occurrence of each env var key so that
// appended entries win over inherited ones.
func deduplicateEnv(env []string) []string {
	seen := make(map[string]int, len(env))
	for i, entry := range env {
		key, _, _ := strings.Cut(entry, "=")
		seen[key] = i
	}
	result := make([]string, 0, len(seen))
	for i, entry := range env {
		key, _, _ := strings.Cut(entry, "=")
		if seen[key] == i {
			result = append(result, entry)
		}
	}
	return result
}

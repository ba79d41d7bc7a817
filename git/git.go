// Package git provides read-only access to the git CLI for a single
// repository. Every command targets the repository directory via
// "git -C <dir>", which Repository injects automatically.
package git

import (
	"context"
	"fmt"
	"strings"

	"github.com/pithecene-io/shipyard/process"
)

// Repository represents a git working tree or bare repository.
type Repository struct {
	dir    string
	runner process.Runner
}

// NewRepository returns a Repository targeting dir, running git through
// runner. A nil runner uses process.NewExecRunner().
func NewRepository(dir string, runner process.Runner) *Repository {
	if runner == nil {
		runner = process.NewExecRunner()
	}
	return &Repository{dir: dir, runner: runner}
}

// Dir returns the repository directory.
func (r *Repository) Dir() string {
	return r.dir
}

// Run executes a git command and returns stdout. A non-zero exit is an
// error carrying the trimmed stderr.
func (r *Repository) Run(ctx context.Context, args ...string) (string, error) {
	fullArgs := append([]string{"-C", r.dir}, args...)
	res, err := r.runner.Run(ctx, process.Command{Name: "git", Args: fullArgs})
	if err != nil {
		return "", fmt.Errorf("git %s in %s: %w", strings.Join(args, " "), r.dir, err)
	}
	if !res.Success() {
		return "", fmt.Errorf("git %s in %s: exit status %d (stderr: %s)",
			strings.Join(args, " "), r.dir, res.ExitCode, strings.TrimSpace(string(res.Stderr)))
	}
	return string(res.Stdout), nil
}

// Tags lists tag names in the order git prints them. sortKey is passed
// to --sort when non-empty (e.g. "v:refname", "creatordate"); otherwise
// git's default refname order applies.
func (r *Repository) Tags(ctx context.Context, sortKey string) ([]string, error) {
	args := []string{"tag", "--list"}
	if sortKey != "" {
		args = append(args, "--sort="+sortKey)
	}
	out, err := r.Run(ctx, args...)
	if err != nil {
		return nil, err
	}
	return SplitLines(out), nil
}

// SplitLines splits newline-separated git output, dropping blank lines
// and surrounding whitespace.
func SplitLines(out string) []string {
	var lines []string
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

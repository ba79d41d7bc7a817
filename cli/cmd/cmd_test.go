package cmd

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/shipyard/deploy"
	"github.com/pithecene-io/shipyard/process"
	"github.com/pithecene-io/shipyard/types"
)

// tagRunner answers git tag listings with tags and succeeds for every
// other tool.
func tagRunner(tags ...string) *process.FakeRunner {
	return &process.FakeRunner{Handler: func(cmd process.Command) (*process.Result, error) {
		if cmd.Name == "git" {
			return &process.Result{Stdout: []byte(strings.Join(tags, "\n") + "\n")}, nil
		}
		return &process.Result{}, nil
	}}
}

// runApp runs the shipyard commands with the given arguments and returns
// what they wrote to stdout.
func runApp(t *testing.T, runner process.Runner, args ...string) (string, error) {
	t.Helper()
	prev := newRunner
	newRunner = func() process.Runner { return runner }
	t.Cleanup(func() { newRunner = prev })

	var out bytes.Buffer
	app := &cli.App{
		Name:           "shipyard",
		Writer:         &out,
		ErrWriter:      io.Discard,
		ExitErrHandler: func(*cli.Context, error) {},
		Commands: []*cli.Command{
			DeployCommand(),
			UploadCommand(),
			NextVersionCommand(),
			PatchCommand(),
			ReportCommand(),
			VersionCommand("abc123"),
		},
	}
	err := app.RunContext(t.Context(), append([]string{"shipyard"}, args...))
	return out.String(), err
}

func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var ec cli.ExitCoder
	if errors.As(err, &ec) {
		return ec.ExitCode()
	}
	return -1
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

// intake records the parts posted to it.
type intake struct {
	mu     sync.Mutex
	status int
	parts  []http.Header
}

func (in *intake) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	_, _ = io.Copy(io.Discard, r.Body)
	in.mu.Lock()
	in.parts = append(in.parts, r.Header.Clone())
	status := in.status
	in.mu.Unlock()
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
}

func (in *intake) received() []http.Header {
	in.mu.Lock()
	defer in.mu.Unlock()
	return append([]http.Header(nil), in.parts...)
}

func TestReadOnlyFlags_IncludesTUI(t *testing.T) {
	flags := ReadOnlyFlags()

	hasTUI := false
	for _, f := range flags {
		if f.Names()[0] == "tui" {
			hasTUI = true
			break
		}
	}

	if !hasTUI {
		t.Error("ReadOnlyFlags should include --tui flag for explicit error handling")
	}
}

func TestExitCodeFor(t *testing.T) {
	stageErr := func(stage types.Stage) error {
		return fmt.Errorf("run: %w", &deploy.StageError{Stage: stage, Err: errors.New("boom")})
	}

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, exitSuccess},
		{"plain error", errors.New("boom"), exitConfigError},
		{"archive", stageErr(types.StageArchive), exitArchiveFailure},
		{"upload", stageErr(types.StageUpload), exitUploadFailure},
		{"version", stageErr(types.StageVersion), exitVersionFailure},
		{"patch", stageErr(types.StagePatch), exitConfigError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := exitCodeFor(tt.err); got != tt.want {
				t.Errorf("exitCodeFor = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestExitCodeForStage(t *testing.T) {
	if got := exitCodeForStage(""); got != exitSuccess {
		t.Errorf("empty stage = %d, want %d", got, exitSuccess)
	}
	if got := exitCodeForStage(types.StageUpload); got != exitUploadFailure {
		t.Errorf("upload = %d, want %d", got, exitUploadFailure)
	}
}

func TestVersionCommand(t *testing.T) {
	out, err := runApp(t, tagRunner(), "version", "--format", "json")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	var resp VersionResponse
	if err := json.Unmarshal([]byte(out), &resp); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if resp.Version != types.Version || resp.Commit != "abc123" {
		t.Errorf("resp = %+v", resp)
	}
	if resp.ReportSchema != types.ReportSchemaVersion {
		t.Errorf("report schema = %q", resp.ReportSchema)
	}
	if resp.GoVersion != runtime.Version() {
		t.Errorf("go version = %q, want %q", resp.GoVersion, runtime.Version())
	}
	if resp.Platform != runtime.GOOS+"/"+runtime.GOARCH {
		t.Errorf("platform = %q", resp.Platform)
	}
}

func TestVersionCommand_InvalidFormat(t *testing.T) {
	_, err := runApp(t, tagRunner(), "version", "--format", "xml")
	if exitCode(err) != exitConfigError {
		t.Errorf("exit = %d, want %d (err %v)", exitCode(err), exitConfigError, err)
	}
}

func TestVersionCommand_TUIUnsupported(t *testing.T) {
	_, err := runApp(t, tagRunner(), "version", "--tui")
	if exitCode(err) != exitConfigError {
		t.Errorf("exit = %d, want %d (err %v)", exitCode(err), exitConfigError, err)
	}
}

func TestNextVersionCommand(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "shipyard.yaml")
	writeFile(t, cfgPath, "version:\n  prefix: v\n  tag_sort: v:refname\n")

	runner := tagRunner("v1", "release-9", "v3", "v2")
	out, err := runApp(t, runner, "next-version", "--config", cfgPath, "--format", "json")
	if err != nil {
		t.Fatalf("next-version: %v", err)
	}

	var resp NextVersionResponse
	if err := json.Unmarshal([]byte(out), &resp); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	// Last matching tag in listing order, not numeric max.
	if resp.Version != "v3" || resp.PreviousTag != "v2" || resp.Matched != 3 {
		t.Errorf("resp = %+v, want v3 after v2 with 3 matches", resp)
	}

	calls := runner.Calls()
	if len(calls) != 1 || !strings.Contains(calls[0].String(), "--sort=v:refname") {
		t.Errorf("git calls = %v, want one tag listing sorted by v:refname", calls)
	}
}

func TestNextVersionCommand_GitFailure(t *testing.T) {
	runner := &process.FakeRunner{Handler: func(process.Command) (*process.Result, error) {
		return &process.Result{ExitCode: 128, Stderr: []byte("not a git repository")}, nil
	}}
	_, err := runApp(t, runner, "next-version", "--repo", t.TempDir(), "--format", "json")
	if exitCode(err) != exitVersionFailure {
		t.Errorf("exit = %d, want %d (err %v)", exitCode(err), exitVersionFailure, err)
	}
}

func TestPatchCommand_ExplicitVersion(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "build")
	writeFile(t, filepath.Join(out, "src", "settings.778899.js"), "window.cfg = {debug: true, version: \"v0\"};\n")

	cfgPath := filepath.Join(dir, "shipyard.yaml")
	writeFile(t, cfgPath, `build:
  output_dir: `+out+`
artifacts:
  variables_file: settings.js
  debug_key: debug
  version_key: version
`)

	stdout, err := runApp(t, tagRunner(), "patch", "--config", cfgPath, "--version", "v7", "--format", "json")
	if err != nil {
		t.Fatalf("patch: %v", err)
	}

	var resp PatchResponse
	if err := json.Unmarshal([]byte(stdout), &resp); err != nil {
		t.Fatalf("decode %q: %v", stdout, err)
	}
	if resp.Version != "v7" {
		t.Errorf("version = %q, want v7", resp.Version)
	}

	data, err := os.ReadFile(filepath.Join(out, "src", "settings.778899.js"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `version: "v7"`) || !strings.Contains(string(data), "debug: false") {
		t.Errorf("variables not patched: %q", data)
	}
}

func TestPatchCommand_InvalidVersion(t *testing.T) {
	_, err := runApp(t, tagRunner(), "patch", "--output-dir", t.TempDir(), "--version", "release-3")
	if exitCode(err) != exitConfigError {
		t.Errorf("exit = %d, want %d (err %v)", exitCode(err), exitConfigError, err)
	}
}
